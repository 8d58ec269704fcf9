// Package pipeline wraps the remote PaddleOCR-VL serving endpoint behind
// a lazily-initialized, process-lifetime handle.
package pipeline

import (
	"context"
	"log/slog"
	"sync"
)

// Pipeline is the process-wide OCR handle. The engine is constructed on
// first use and reused for the lifetime of the process; inference calls
// are serialized so concurrent requests queue on the single warm model
// instead of racing on it.
type Pipeline struct {
	mu     sync.Mutex
	cfg    Config
	engine Engine
}

// New creates an unstarted pipeline. No engine is constructed until the
// first Process call.
func New(cfg Config) *Pipeline {
	return &Pipeline{cfg: cfg}
}

// NewWithEngine creates a pipeline with a pre-built engine. Used by tests
// and by callers that manage the engine themselves.
func NewWithEngine(cfg Config, engine Engine) *Pipeline {
	return &Pipeline{cfg: cfg, engine: engine}
}

// Config returns the capability configuration the pipeline was built with.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Process runs OCR inference over the document at path. The first call
// constructs the engine; every call holds the pipeline lock for the
// duration of inference. Failures are wrapped as *InferenceError.
func (p *Pipeline) Process(ctx context.Context, path string) ([]Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.engine == nil {
		slog.Info("initializing OCR pipeline",
			"engine_url", p.cfg.EngineURL,
			"doc_orientation_classify", p.cfg.UseDocOrientationClassify,
			"doc_unwarping", p.cfg.UseDocUnwarping,
			"layout_detection", p.cfg.UseLayoutDetection)
		p.engine = newHTTPEngine(p.cfg)
	}

	pages, err := p.engine.Predict(ctx, path)
	if err != nil {
		return nil, &InferenceError{Err: err}
	}
	return pages, nil
}
