package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEngine records calls and asserts they never overlap.
type fakeEngine struct {
	mu       sync.Mutex
	inFlight int
	calls    int
	pages    []Page
	err      error
	overlap  bool
}

func (f *fakeEngine) Predict(ctx context.Context, path string) ([]Page, error) {
	f.mu.Lock()
	f.calls++
	f.inFlight++
	if f.inFlight > 1 {
		f.overlap = true
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	return f.pages, f.err
}

func TestPipeline_Process(t *testing.T) {
	engine := &fakeEngine{pages: []Page{{Text: "one"}, {Text: "two"}}}
	p := NewWithEngine(DefaultConfig(), engine)

	pages, err := p.Process(context.Background(), "doc.pdf")
	require.NoError(t, err)
	assert.Len(t, pages, 2)
	assert.Equal(t, 1, engine.calls)
}

func TestPipeline_Process_WrapsEngineError(t *testing.T) {
	cause := errors.New("gpu out of memory")
	p := NewWithEngine(DefaultConfig(), &fakeEngine{err: cause})

	_, err := p.Process(context.Background(), "doc.pdf")
	require.Error(t, err)

	var infErr *InferenceError
	require.ErrorAs(t, err, &infErr)
	assert.ErrorIs(t, err, cause)
}

func TestPipeline_Process_SerializesInference(t *testing.T) {
	engine := &fakeEngine{pages: []Page{{Text: "p"}}}
	p := NewWithEngine(DefaultConfig(), engine)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = p.Process(context.Background(), "doc.png")
		}()
	}
	wg.Wait()

	assert.Equal(t, 8, engine.calls)
	assert.False(t, engine.overlap, "concurrent inference calls must be serialized")
}

func TestPipeline_LazyEngineConstruction(t *testing.T) {
	p := New(DefaultConfig())
	assert.Nil(t, p.engine)

	// First Process constructs the engine even when inference then fails
	// (no serving endpoint configured here).
	_, err := p.Process(context.Background(), "missing.png")
	require.Error(t, err)
	assert.NotNil(t, p.engine)

	first := p.engine
	_, _ = p.Process(context.Background(), "missing.png")
	assert.Same(t, first, p.engine)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.True(t, cfg.UseDocOrientationClassify)
	assert.True(t, cfg.UseDocUnwarping)
	assert.True(t, cfg.UseLayoutDetection)
	assert.Positive(t, cfg.RequestTimeoutSec)
}
