package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/doclens/doclens/internal/assets"
	"github.com/doclens/doclens/internal/input"
	"github.com/doclens/doclens/internal/pipeline"
	"github.com/doclens/doclens/internal/textmetrics"
	"github.com/doclens/doclens/internal/version"
)

const (
	modelName      = "PaddleOCR-VL"
	formatMarkdown = "markdown"
)

// Error type tags reported in failure envelopes.
const (
	errorInvalidInput = "InvalidInput"
	errorNotFound     = "NotFound"
	errorInference    = "InferenceError"
	errorInternal     = "InternalError"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding health response: %v\n", err)
	}
}

// extractHandler processes full extraction requests: text, structure,
// optional layout and markdown, and character metrics.
func (s *Server) extractHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB*1024*1024)

	var req ExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		extractRequestsTotal.WithLabelValues("full", "error").Inc()
		s.writeExtractFailure(w, fmt.Errorf("%w: invalid request body: %w", input.ErrInvalidInput, err))
		return
	}

	start := time.Now()
	response := s.runExtract(r, &req)
	duration := time.Since(start)

	status := "success"
	if !response.Success {
		status = "error"
	}
	extractRequestsTotal.WithLabelValues("full", status).Inc()
	extractProcessingDuration.WithLabelValues("full").Observe(duration.Seconds())

	s.writeJSON(w, response)
}

// runExtract executes the full extraction sequence for one request and
// assembles the response envelope. Every stage failure is mapped to a
// structured failure envelope here, never to a transport error.
func (s *Server) runExtract(r *http.Request, req *ExtractRequest) ExtractResponse {
	res, err := s.resolver.Resolve(req.ImageData, req.FileName)
	if err != nil {
		return extractFailure(err)
	}
	defer res.Cleanup()

	if pipeline.IsPDF(res.Path) {
		count, err := pipeline.DocumentPages(res.Path)
		if err != nil {
			return extractFailure(&pipeline.InferenceError{Err: err})
		}
		slog.Debug("processing pdf document", "path", res.Path, "pages", count)
	}

	pages, err := s.pipeline.Process(r.Context(), res.Path)
	if err != nil {
		return extractFailure(err)
	}

	sessionID := assets.NewSessionID()
	results := buildPageResults(pages, req)

	ext := assets.NewExternalizer(s.store, sessionID, req.FileName)
	externalized := ext.ExternalizeUnder("results", results)
	assetsExternalizedTotal.Add(float64(ext.Count))
	assetBytesTotal.Add(float64(ext.Bytes))

	var textLen int
	for _, page := range pages {
		textLen += len(page.Text)
	}
	extractTextLength.WithLabelValues("full").Observe(float64(textLen))
	extractPagesTotal.WithLabelValues("full").Observe(float64(len(pages)))

	return ExtractResponse{
		Success:          true,
		Results:          externalized,
		TotalPages:       len(pages),
		SessionID:        sessionID,
		OriginalFilename: req.FileName,
		InputMethod:      res.Method,
		ProcessingInfo: &ProcessingInfo{
			Model:          modelName,
			GPUAccelerated: true,
			FeaturesUsed: &FeaturesUsed{
				DocOrientationClassify: s.engineCfg.UseDocOrientationClassify,
				DocUnwarping:           s.engineCfg.UseDocUnwarping,
				LayoutDetection:        s.engineCfg.UseLayoutDetection && req.includeLayoutAnalysis(),
			},
		},
	}
}

// buildPageResults assembles the per-page result records as a generic tree
// so the externalizer can rewrite embedded binary assets in place.
func buildPageResults(pages []pipeline.Page, req *ExtractRequest) []any {
	results := make([]any, 0, len(pages))
	for _, page := range pages {
		structureInfo := map[string]any{}
		if page.Structure != nil {
			structureInfo["json"] = page.Structure
		}

		rec := map[string]any{
			"success":        true,
			"text_content":   page.Text,
			"structure_info": structureInfo,
		}

		if req.OutputFormat == formatMarkdown && page.Markdown != "" {
			rec["markdown"] = page.Markdown
		}
		if req.includeLayoutAnalysis() && page.Layout != nil {
			rec["layout_analysis"] = page.Layout
		}
		if req.includeCharacterMetrics() {
			rec["character_metrics"] = textmetrics.Compute(page.Text)
		}

		results = append(results, rec)
	}
	return results
}

// extractSimpleHandler processes fast text-only extraction requests.
func (s *Server) extractSimpleHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB*1024*1024)

	var req SimpleExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		extractRequestsTotal.WithLabelValues("simple", "error").Inc()
		s.writeJSON(w, simpleFailure(fmt.Errorf("%w: invalid request body: %w", input.ErrInvalidInput, err)))
		return
	}

	start := time.Now()
	response := s.runExtractSimple(r, &req)
	duration := time.Since(start)

	status := "success"
	if !response.Success {
		status = "error"
	}
	extractRequestsTotal.WithLabelValues("simple", status).Inc()
	extractProcessingDuration.WithLabelValues("simple").Observe(duration.Seconds())

	s.writeJSON(w, response)
}

// runExtractSimple executes the fast extraction sequence for one request.
func (s *Server) runExtractSimple(r *http.Request, req *SimpleExtractRequest) SimpleExtractResponse {
	res, err := s.resolver.Resolve(req.ImageData, req.FileName)
	if err != nil {
		return simpleFailure(err)
	}
	defer res.Cleanup()

	pages, err := s.pipeline.Process(r.Context(), res.Path)
	if err != nil {
		return simpleFailure(err)
	}

	sessionID := assets.NewSessionID()

	var texts []string
	var records []textmetrics.Record
	rawResults := make([]any, 0, len(pages))
	for _, page := range pages {
		if page.Text == "" {
			continue
		}
		texts = append(texts, page.Text)

		metrics := textmetrics.Compute(page.Text)
		records = append(records, metrics)
		rawResults = append(rawResults, map[string]any{
			"text_content":      page.Text,
			"character_metrics": metrics,
		})
	}

	fullText := strings.Join(texts, "\n")
	aggregate := textmetrics.Average(records)

	ext := assets.NewExternalizer(s.store, sessionID, req.FileName)
	externalized := ext.ExternalizeUnder("raw_results", rawResults)
	assetsExternalizedTotal.Add(float64(ext.Count))
	assetBytesTotal.Add(float64(ext.Bytes))

	extractTextLength.WithLabelValues("simple").Observe(float64(len(fullText)))
	extractPagesTotal.WithLabelValues("simple").Observe(float64(len(pages)))

	return SimpleExtractResponse{
		Success:          true,
		ExtractedText:    fullText,
		WordCount:        len(strings.Fields(fullText)),
		CharacterCount:   len(strings.ReplaceAll(fullText, " ", "")),
		CharacterMetrics: &aggregate,
		SessionID:        sessionID,
		RawResults:       externalized,
		InputMethod:      res.Method,
		ProcessingInfo: &ProcessingInfo{
			Model:          modelName,
			GPUAccelerated: true,
			Mode:           "simple_extraction",
		},
	}
}

// errorKind maps a stage error to its failure envelope tag.
func errorKind(err error) string {
	var infErr *pipeline.InferenceError
	switch {
	case errors.Is(err, input.ErrInvalidInput):
		return errorInvalidInput
	case errors.Is(err, input.ErrNotFound):
		return errorNotFound
	case errors.As(err, &infErr):
		return errorInference
	default:
		return errorInternal
	}
}

// extractFailure builds a full-endpoint failure envelope.
func extractFailure(err error) ExtractResponse {
	slog.Error("extraction failed", "error", err, "error_type", errorKind(err))
	return ExtractResponse{
		Success:   false,
		Error:     err.Error(),
		ErrorType: errorKind(err),
	}
}

// simpleFailure builds a simple-endpoint failure envelope.
func simpleFailure(err error) SimpleExtractResponse {
	slog.Error("simple extraction failed", "error", err, "error_type", errorKind(err))
	return SimpleExtractResponse{
		Success: false,
		Error:   err.Error(),
	}
}

// writeExtractFailure writes a failure envelope for the full endpoint.
func (s *Server) writeExtractFailure(w http.ResponseWriter, err error) {
	s.writeJSON(w, extractFailure(err))
}

// writeJSON writes a response envelope. Failures are carried inside the
// envelope; the HTTP status stays 200 so callers always get a well-formed
// body with an explicit success flag.
func (s *Server) writeJSON(w http.ResponseWriter, response any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding response: %v\n", err)
	}
}
