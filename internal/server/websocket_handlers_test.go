package server

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doclens/doclens/internal/pipeline"
)

// dialStream connects a websocket client to a test server's stream route.
func dialStream(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()

	mux := http.NewServeMux()
	srv.SetupRoutes(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/extract/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

// readFrames reads stream frames until a terminal status or timeout.
func readFrames(t *testing.T, conn *websocket.Conn) []StreamResponse {
	t.Helper()

	var frames []StreamResponse
	for {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var frame StreamResponse
		require.NoError(t, json.Unmarshal(data, &frame))
		frames = append(frames, frame)

		if frame.Status == "completed" || frame.Status == "error" {
			return frames
		}
	}
}

func TestExtractStreamHandler_Completed(t *testing.T) {
	fake := &fakePipeline{pages: []pipeline.Page{{Text: "streamed text"}}}
	srv, _, _ := newTestServer(t, fake)

	conn := dialStream(t, srv)

	req := ExtractRequest{ImageData: base64.StdEncoding.EncodeToString([]byte("x"))}
	data, err := json.Marshal(req)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))

	frames := readFrames(t, conn)
	require.GreaterOrEqual(t, len(frames), 2)

	assert.Equal(t, "processing", frames[0].Status)
	assert.NotEmpty(t, frames[0].RequestID)

	final := frames[len(frames)-1]
	assert.Equal(t, "completed", final.Status)
	assert.InDelta(t, 1.0, final.Progress, 1e-9)

	result, ok := final.Result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, result["success"])
	assert.EqualValues(t, 1, result["total_pages"])
}

func TestExtractStreamHandler_InvalidRequest(t *testing.T) {
	srv, _, _ := newTestServer(t, &fakePipeline{})

	conn := dialStream(t, srv)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))

	frames := readFrames(t, conn)
	final := frames[len(frames)-1]
	assert.Equal(t, "error", final.Status)
	assert.Equal(t, "InvalidInput", final.ErrorType)
}

func TestExtractStreamHandler_PipelineFailure(t *testing.T) {
	srv, _, _ := newTestServer(t, &fakePipeline{err: &pipeline.InferenceError{Err: assertError{}}})

	conn := dialStream(t, srv)

	data, err := json.Marshal(ExtractRequest{ImageData: base64.StdEncoding.EncodeToString([]byte("x"))})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))

	frames := readFrames(t, conn)
	final := frames[len(frames)-1]
	assert.Equal(t, "error", final.Status)
	assert.Equal(t, "InferenceError", final.ErrorType)
}

type assertError struct{}

func (assertError) Error() string { return "gpu went away" }
