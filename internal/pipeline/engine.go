package pipeline

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/doclens/doclens/internal/assets"
	"github.com/doclens/doclens/internal/mempool"
)

// Engine runs OCR inference over a local document file and yields one
// page result per detected page.
type Engine interface {
	Predict(ctx context.Context, path string) ([]Page, error)
}

// httpEngine talks to a remote PaddleOCR-VL serving endpoint.
type httpEngine struct {
	cfg    Config
	client *http.Client
}

// newHTTPEngine builds the serving client with a dedicated transport.
func newHTTPEngine(cfg Config) *httpEngine {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxConnsPerHost:     4,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}
	return &httpEngine{
		cfg:    cfg,
		client: &http.Client{Transport: transport},
	}
}

// predictRequest is the wire request to the serving endpoint.
type predictRequest struct {
	File                      string `json:"file"`
	FileName                  string `json:"file_name"`
	UseDocOrientationClassify bool   `json:"use_doc_orientation_classify"`
	UseDocUnwarping           bool   `json:"use_doc_unwarping"`
	UseLayoutDetection        bool   `json:"use_layout_detection"`
}

// predictResponse is the wire response from the serving endpoint.
type predictResponse struct {
	Pages []struct {
		Text      string          `json:"text"`
		Structure map[string]any  `json:"structure,omitempty"`
		Layout    json.RawMessage `json:"layout,omitempty"`
		Markdown  string          `json:"markdown,omitempty"`
	} `json:"pages"`
}

// Predict uploads the document and parses the per-page results, converting
// embedded base64 image blocks in layout trees into binary asset nodes.
func (e *httpEngine) Predict(ctx context.Context, path string) ([]Page, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: Path was produced by the input resolver
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}

	encoded := mempool.GetBytes(base64.StdEncoding.EncodedLen(len(data)))
	base64.StdEncoding.Encode(encoded, data)
	body, err := json.Marshal(predictRequest{
		File:                      string(encoded),
		FileName:                  filepath.Base(path),
		UseDocOrientationClassify: e.cfg.UseDocOrientationClassify,
		UseDocUnwarping:           e.cfg.UseDocUnwarping,
		UseLayoutDetection:        e.cfg.UseLayoutDetection,
	})
	mempool.PutBytes(encoded)
	if err != nil {
		return nil, err
	}

	reqCtx := ctx
	var cancel context.CancelFunc
	if e.cfg.RequestTimeoutSec > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, time.Duration(e.cfg.RequestTimeoutSec)*time.Second)
		defer cancel()
	}

	request, err := http.NewRequestWithContext(reqCtx, http.MethodPost, e.cfg.EngineURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	request.Header.Set("Content-Type", "application/json")
	if e.cfg.AuthToken != "" {
		request.Header.Set("X-Internal-Token", e.cfg.AuthToken)
	}

	resp, err := e.client.Do(request)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("serving endpoint returned status %d: %s", resp.StatusCode, string(detail))
	}

	var parsed predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding serving response: %w", err)
	}

	pages := make([]Page, 0, len(parsed.Pages))
	for _, raw := range parsed.Pages {
		page := Page{Text: raw.Text, Structure: raw.Structure, Markdown: raw.Markdown}
		if len(raw.Layout) > 0 {
			layout, err := parseLayout(raw.Layout)
			if err != nil {
				return nil, fmt.Errorf("decoding layout tree: %w", err)
			}
			page.Layout = layout
		}
		pages = append(pages, page)
	}
	return pages, nil
}

// parseLayout decodes a layout tree and converts embedded image blocks
// into typed binary assets.
func parseLayout(raw json.RawMessage) (map[string]any, error) {
	var tree map[string]any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, err
	}
	converted, _ := decodeEmbeddedImages(tree).(map[string]any)
	return converted, nil
}

// decodeEmbeddedImages walks a decoded layout tree and replaces every
// image block carrying inline base64 data with a *assets.BinaryAsset.
// This is the single place binary assets enter result trees.
func decodeEmbeddedImages(node any) any {
	switch v := node.(type) {
	case map[string]any:
		if asset := embeddedImage(v); asset != nil {
			return asset
		}
		for key, val := range v {
			v[key] = decodeEmbeddedImages(val)
		}
		return v
	case []any:
		for i, val := range v {
			v[i] = decodeEmbeddedImages(val)
		}
		return v
	default:
		return node
	}
}

// embeddedImage converts an image block node to a binary asset, or nil
// when the node is not one. Blocks with undecodable data are left alone.
func embeddedImage(node map[string]any) *assets.BinaryAsset {
	blockType, _ := node["type"].(string)
	data, ok := node["data"].(string)
	if blockType != "image" || !ok || data == "" {
		return nil
	}

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil
	}

	asset := assets.NewBinaryAsset(raw)
	if w, ok := node["width"].(float64); ok && asset.Width == 0 {
		asset.Width = int(w)
	}
	if h, ok := node["height"].(float64); ok && asset.Height == 0 {
		asset.Height = int(h)
	}
	if f, ok := node["format"].(string); ok && asset.Format == "" {
		asset.Format = f
	}
	return asset
}
