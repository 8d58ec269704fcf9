package server

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/doclens/doclens/internal/assets"
	"github.com/doclens/doclens/internal/input"
	"github.com/doclens/doclens/internal/pipeline"
	"github.com/doclens/doclens/internal/textmetrics"
)

// ocrPipeline defines the methods the server needs from the OCR pipeline.
type ocrPipeline interface {
	Process(ctx context.Context, path string) ([]pipeline.Page, error)
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	pipeline    ocrPipeline
	resolver    *input.Resolver
	store       *assets.Store
	engineCfg   pipeline.Config
	corsOrigin  string
	maxUploadMB int64
	timeoutSec  int
}

// Config holds server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigin  string
	MaxUploadMB int64
	TimeoutSec  int
	MountDir    string
	UploadsDir  string
	Pipeline    pipeline.Config
}

// NewServer creates a new extraction server instance. The OCR pipeline is
// created unstarted; the first request warms it.
func NewServer(config Config) *Server {
	return &Server{
		pipeline:    pipeline.New(config.Pipeline),
		resolver:    input.NewResolver(config.UploadsDir),
		store:       assets.NewStore(config.MountDir),
		engineCfg:   config.Pipeline,
		corsOrigin:  config.CORSOrigin,
		maxUploadMB: config.MaxUploadMB,
		timeoutSec:  config.TimeoutSec,
	}
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/v1/extract", s.corsMiddleware(s.extractHandler))
	mux.HandleFunc("/v1/extract/simple", s.corsMiddleware(s.extractSimpleHandler))
	mux.HandleFunc("/v1/extract/stream", s.extractStreamHandler)
	mux.Handle("/metrics", promhttp.Handler())
}

// Request types for API endpoints.
type ExtractRequest struct {
	ImageData               string `json:"image_data,omitempty"`
	FileName                string `json:"file_name,omitempty"`
	OutputFormat            string `json:"output_format,omitempty"`
	IncludeCharacterMetrics *bool  `json:"include_character_metrics,omitempty"`
	IncludeLayoutAnalysis   *bool  `json:"include_layout_analysis,omitempty"`
}

// includeCharacterMetrics reports the effective flag value (default true).
func (r *ExtractRequest) includeCharacterMetrics() bool {
	return r.IncludeCharacterMetrics == nil || *r.IncludeCharacterMetrics
}

// includeLayoutAnalysis reports the effective flag value (default true).
func (r *ExtractRequest) includeLayoutAnalysis() bool {
	return r.IncludeLayoutAnalysis == nil || *r.IncludeLayoutAnalysis
}

type SimpleExtractRequest struct {
	ImageData string `json:"image_data,omitempty"`
	FileName  string `json:"file_name,omitempty"`
}

// Response types for API endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// FeaturesUsed mirrors the pipeline capability flags in responses.
type FeaturesUsed struct {
	DocOrientationClassify bool `json:"doc_orientation_classify"`
	DocUnwarping           bool `json:"doc_unwarping"`
	LayoutDetection        bool `json:"layout_detection"`
}

// ProcessingInfo is the fixed processing description block.
type ProcessingInfo struct {
	Model          string        `json:"model"`
	GPUAccelerated bool          `json:"gpu_accelerated"`
	Mode           string        `json:"mode,omitempty"`
	FeaturesUsed   *FeaturesUsed `json:"features_used,omitempty"`
}

// ExtractResponse is the envelope of the full extraction endpoint.
type ExtractResponse struct {
	Success          bool            `json:"success"`
	Results          any             `json:"results,omitempty"`
	TotalPages       int             `json:"total_pages,omitempty"`
	SessionID        string          `json:"session_id,omitempty"`
	OriginalFilename string          `json:"original_filename,omitempty"`
	InputMethod      string          `json:"input_method,omitempty"`
	ProcessingInfo   *ProcessingInfo `json:"processing_info,omitempty"`
	Error            string          `json:"error,omitempty"`
	ErrorType        string          `json:"error_type,omitempty"`
}

// SimpleExtractResponse is the envelope of the simple extraction endpoint.
type SimpleExtractResponse struct {
	Success          bool                   `json:"success"`
	ExtractedText    string                 `json:"extracted_text"`
	WordCount        int                    `json:"word_count"`
	CharacterCount   int                    `json:"character_count"`
	CharacterMetrics *textmetrics.Aggregate `json:"character_metrics,omitempty"`
	SessionID        string                 `json:"session_id,omitempty"`
	RawResults       any                    `json:"raw_results,omitempty"`
	InputMethod      string                 `json:"input_method,omitempty"`
	ProcessingInfo   *ProcessingInfo        `json:"processing_info,omitempty"`
	Error            string                 `json:"error,omitempty"`
}
