package mempool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizeClass(t *testing.T) {
	tests := []struct {
		name     string
		input    int
		expected int
	}{
		{"small request rounds up to minimum", 1, 64 * 1024},
		{"exact minimum stays", 64 * 1024, 64 * 1024},
		{"one over minimum moves to next bucket", 64*1024 + 1, 128 * 1024},
		{"large request rounds to bucket", 1_000_000, 1024 * 1024},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, sizeClass(tt.input))
		})
	}
}

func TestGetBytes_LengthAndCapacity(t *testing.T) {
	buf := GetBytes(100)
	require.Len(t, buf, 100)
	assert.GreaterOrEqual(t, cap(buf), 64*1024)
	PutBytes(buf)
}

func TestPutBytes_NilIsSafe(t *testing.T) {
	assert.NotPanics(t, func() { PutBytes(nil) })
}

func TestGetBytes_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				buf := GetBytes(70 * 1024)
				for k := range buf[:16] {
					buf[k] = byte(k)
				}
				PutBytes(buf)
			}
		}()
	}
	wg.Wait()
}

func BenchmarkGetPutBytes(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		buf := GetBytes(256 * 1024)
		PutBytes(buf)
	}
}
