package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doclens/doclens/internal/assets"
	"github.com/doclens/doclens/internal/input"
	"github.com/doclens/doclens/internal/pipeline"
)

// fakePipeline returns canned pages and records the paths it was fed.
type fakePipeline struct {
	pages []pipeline.Page
	err   error
	paths []string
}

func (f *fakePipeline) Process(ctx context.Context, path string) ([]pipeline.Page, error) {
	f.paths = append(f.paths, path)
	if f.err != nil {
		return nil, f.err
	}
	return f.pages, nil
}

func testPNG(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.White)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// newTestServer builds a server around a fake pipeline and temp mounts.
func newTestServer(t *testing.T, fake *fakePipeline) (*Server, string, string) {
	t.Helper()

	mount := t.TempDir()
	uploads := t.TempDir()

	srv := &Server{
		pipeline:    fake,
		resolver:    input.NewResolver(uploads),
		store:       assets.NewStore(mount),
		engineCfg:   pipeline.DefaultConfig(),
		corsOrigin:  "*",
		maxUploadMB: 10,
		timeoutSec:  30,
	}
	return srv, mount, uploads
}

func postJSON(t *testing.T, handler http.HandlerFunc, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func TestServer_HealthHandler(t *testing.T) {
	srv, _, _ := newTestServer(t, &fakePipeline{})

	tests := []struct {
		name           string
		method         string
		expectedStatus int
		checkResponse  bool
	}{
		{name: "GET request success", method: "GET", expectedStatus: http.StatusOK, checkResponse: true},
		{name: "POST request not allowed", method: "POST", expectedStatus: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/health", nil)
			w := httptest.NewRecorder()

			srv.healthHandler(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)

			if tt.checkResponse {
				var response HealthResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
				assert.Equal(t, "healthy", response.Status)
				assert.NotEmpty(t, response.Time)
			}
		})
	}
}

func TestServer_ExtractHandler_Success(t *testing.T) {
	fake := &fakePipeline{
		pages: []pipeline.Page{
			{
				Text:      "Invoice total: 42.00",
				Structure: map[string]any{"doc_type": "invoice"},
				Layout: map[string]any{
					"blocks": []any{
						map[string]any{"type": "text", "content": "Invoice total: 42.00"},
						assets.NewBinaryAsset(testPNG(t)),
					},
				},
				Markdown: "# Invoice",
			},
		},
	}
	srv, mount, _ := newTestServer(t, fake)

	w := postJSON(t, srv.extractHandler, "/v1/extract", ExtractRequest{
		ImageData: base64.StdEncoding.EncodeToString(testPNG(t)),
	})

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, true, resp["success"])
	assert.EqualValues(t, 1, resp["total_pages"])
	assert.NotEmpty(t, resp["session_id"])
	assert.Equal(t, "image_data", resp["input_method"])

	info := resp["processing_info"].(map[string]any)
	assert.Equal(t, "PaddleOCR-VL", info["model"])
	assert.Equal(t, true, info["gpu_accelerated"])

	results := resp["results"].([]any)
	require.Len(t, results, 1)
	page := results[0].(map[string]any)
	assert.Equal(t, "Invoice total: 42.00", page["text_content"])

	structureInfo := page["structure_info"].(map[string]any)
	assert.Equal(t, map[string]any{"doc_type": "invoice"}, structureInfo["json"])

	metrics := page["character_metrics"].(map[string]any)
	assert.EqualValues(t, 3, metrics["word_count"])

	// The embedded image was externalized to the mount and replaced by a
	// reference at the same tree position.
	blocks := page["layout_analysis"].(map[string]any)["blocks"].([]any)
	require.Len(t, blocks, 2)
	ref := blocks[1].(map[string]any)
	assert.Equal(t, "extracted_image", ref["type"])
	url := ref["url"].(string)
	assert.True(t, strings.HasPrefix(url, "images/"), "url %q", url)
	assert.FileExists(t, filepath.Join(mount, filepath.FromSlash(url)))

	// No markdown key: output_format defaulted to json.
	_, hasMarkdown := page["markdown"]
	assert.False(t, hasMarkdown)
}

func TestServer_ExtractHandler_LayoutReplacedAtSamePath(t *testing.T) {
	fake := &fakePipeline{
		pages: []pipeline.Page{
			{Text: "page", Layout: map[string]any{"figure": assets.NewBinaryAsset(testPNG(t))}},
		},
	}
	srv, _, _ := newTestServer(t, fake)

	w := postJSON(t, srv.extractHandler, "/v1/extract", ExtractRequest{
		ImageData: base64.StdEncoding.EncodeToString([]byte("payload")),
		FileName:  "",
	})

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, true, resp["success"])

	ref := resp["results"].([]any)[0].(map[string]any)["layout_analysis"].(map[string]any)["figure"].(map[string]any)
	assert.Equal(t, "extracted_image", ref["type"])
	assert.Equal(t, "results[0].layout_analysis.figure", ref["context"])
}

func TestServer_ExtractHandler_OptionsRespected(t *testing.T) {
	no := false
	fake := &fakePipeline{
		pages: []pipeline.Page{{
			Text:     "hello",
			Layout:   map[string]any{"blocks": []any{}},
			Markdown: "# hello",
		}},
	}
	srv, _, _ := newTestServer(t, fake)

	w := postJSON(t, srv.extractHandler, "/v1/extract", ExtractRequest{
		ImageData:               base64.StdEncoding.EncodeToString([]byte("x")),
		OutputFormat:            "markdown",
		IncludeCharacterMetrics: &no,
		IncludeLayoutAnalysis:   &no,
	})

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, true, resp["success"])

	page := resp["results"].([]any)[0].(map[string]any)
	assert.Equal(t, "# hello", page["markdown"])

	_, hasLayout := page["layout_analysis"]
	assert.False(t, hasLayout)
	_, hasMetrics := page["character_metrics"]
	assert.False(t, hasMetrics)

	info := resp["processing_info"].(map[string]any)
	features := info["features_used"].(map[string]any)
	assert.Equal(t, false, features["layout_detection"])
}

func TestServer_ExtractHandler_Failures(t *testing.T) {
	tests := []struct {
		name      string
		request   ExtractRequest
		pipeErr   error
		errorType string
	}{
		{
			name:      "neither input",
			request:   ExtractRequest{},
			errorType: "InvalidInput",
		},
		{
			name: "both inputs",
			request: ExtractRequest{
				ImageData: base64.StdEncoding.EncodeToString([]byte("x")),
				FileName:  "doc.png",
			},
			errorType: "InvalidInput",
		},
		{
			name:      "missing reference",
			request:   ExtractRequest{FileName: "missing.pdf"},
			errorType: "NotFound",
		},
		{
			name:      "inference failure",
			request:   ExtractRequest{ImageData: base64.StdEncoding.EncodeToString([]byte("x"))},
			pipeErr:   &pipeline.InferenceError{Err: errors.New("model crashed")},
			errorType: "InferenceError",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _, _ := newTestServer(t, &fakePipeline{err: tt.pipeErr})

			w := postJSON(t, srv.extractHandler, "/v1/extract", tt.request)

			// Failures ride inside the envelope, not the HTTP status.
			assert.Equal(t, http.StatusOK, w.Code)

			var resp ExtractResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Error)
			assert.Equal(t, tt.errorType, resp.ErrorType)
		})
	}
}

func TestServer_ExtractHandler_CleansUpTempFile(t *testing.T) {
	fake := &fakePipeline{pages: []pipeline.Page{{Text: "hi"}}}
	srv, _, _ := newTestServer(t, fake)

	postJSON(t, srv.extractHandler, "/v1/extract", ExtractRequest{
		ImageData: base64.StdEncoding.EncodeToString([]byte("payload")),
	})

	require.Len(t, fake.paths, 1)
	_, err := os.Stat(fake.paths[0])
	assert.True(t, os.IsNotExist(err), "temp file %s must be removed", fake.paths[0])
}

func TestServer_ExtractHandler_ReferenceInputSurvives(t *testing.T) {
	fake := &fakePipeline{pages: []pipeline.Page{{Text: "hi"}}}
	srv, _, uploads := newTestServer(t, fake)

	path := filepath.Join(uploads, "scan.png")
	require.NoError(t, os.WriteFile(path, testPNG(t), 0o600))

	w := postJSON(t, srv.extractHandler, "/v1/extract", ExtractRequest{FileName: "scan.png"})

	var resp ExtractResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "file_name", resp.InputMethod)
	assert.Equal(t, "scan.png", resp.OriginalFilename)

	// Referenced uploads are never deleted.
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestServer_ExtractSimpleHandler_Success(t *testing.T) {
	fake := &fakePipeline{
		pages: []pipeline.Page{
			{Text: "first page"},
			{Text: ""},
			{Text: "second page"},
		},
	}
	srv, _, _ := newTestServer(t, fake)

	w := postJSON(t, srv.extractSimpleHandler, "/v1/extract/simple", SimpleExtractRequest{
		ImageData: base64.StdEncoding.EncodeToString([]byte("x")),
	})

	assert.Equal(t, http.StatusOK, w.Code)

	var resp SimpleExtractResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.True(t, resp.Success)
	assert.Equal(t, "first page\nsecond page", resp.ExtractedText)
	assert.Equal(t, 4, resp.WordCount)
	assert.Equal(t, len("firstpage\nsecondpage"), resp.CharacterCount)
	require.NotNil(t, resp.CharacterMetrics)
	assert.Equal(t, 2, resp.CharacterMetrics.TotalLines)
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, "image_data", resp.InputMethod)
	require.NotNil(t, resp.ProcessingInfo)
	assert.Equal(t, "simple_extraction", resp.ProcessingInfo.Mode)

	rawResults, ok := resp.RawResults.([]any)
	require.True(t, ok)
	assert.Len(t, rawResults, 2) // empty page skipped
}

func TestServer_ExtractSimpleHandler_NoText(t *testing.T) {
	fake := &fakePipeline{pages: []pipeline.Page{{Text: ""}}}
	srv, _, _ := newTestServer(t, fake)

	w := postJSON(t, srv.extractSimpleHandler, "/v1/extract/simple", SimpleExtractRequest{
		ImageData: base64.StdEncoding.EncodeToString([]byte("x")),
	})

	var resp SimpleExtractResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.True(t, resp.Success)
	assert.Empty(t, resp.ExtractedText)
	assert.Zero(t, resp.WordCount)
	require.NotNil(t, resp.CharacterMetrics)
	assert.NotEmpty(t, resp.CharacterMetrics.Note)
}

func TestServer_ExtractSimpleHandler_FailureEnvelope(t *testing.T) {
	srv, _, _ := newTestServer(t, &fakePipeline{})

	w := postJSON(t, srv.extractSimpleHandler, "/v1/extract/simple", SimpleExtractRequest{})

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["success"])
	assert.NotEmpty(t, resp["error"])

	// The simple envelope carries no error_type field.
	_, hasErrorType := resp["error_type"]
	assert.False(t, hasErrorType)
}

func TestServer_MethodNotAllowed(t *testing.T) {
	srv, _, _ := newTestServer(t, &fakePipeline{})

	for _, target := range []string{"/v1/extract", "/v1/extract/simple"} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		w := httptest.NewRecorder()

		switch target {
		case "/v1/extract":
			srv.extractHandler(w, req)
		default:
			srv.extractSimpleHandler(w, req)
		}

		assert.Equal(t, http.StatusMethodNotAllowed, w.Code, target)
	}
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{name: "invalid input", err: input.ErrInvalidInput, expected: "InvalidInput"},
		{name: "wrapped invalid input", err: errors.Join(errors.New("ctx"), input.ErrInvalidInput), expected: "InvalidInput"},
		{name: "not found", err: input.ErrNotFound, expected: "NotFound"},
		{name: "inference", err: &pipeline.InferenceError{Err: errors.New("boom")}, expected: "InferenceError"},
		{name: "unknown", err: errors.New("boom"), expected: "InternalError"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, errorKind(tt.err))
		})
	}
}
