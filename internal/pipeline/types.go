package pipeline

// Page is the structured OCR output for one page of a document.
type Page struct {
	// Text is the extracted plain text.
	Text string

	// Structure is the model's structured output for the page, passed
	// through as a plain JSON tree.
	Structure map[string]any

	// Layout is the nested layout analysis tree. Embedded binary images
	// have already been converted to *assets.BinaryAsset nodes by the
	// engine adapter.
	Layout map[string]any

	// Markdown is the markdown rendering of the page, when the engine
	// produced one.
	Markdown string
}

// Config holds the fixed capability flags and engine connection settings
// for the OCR pipeline. Capabilities are set once at construction; they
// are not configurable per request so a single warm instance can serve
// all requests.
type Config struct {
	// EngineURL is the base URL of the PaddleOCR-VL serving endpoint.
	EngineURL string

	// AuthToken, when set, is sent as an internal auth header.
	AuthToken string

	// RequestTimeoutSec bounds a single inference call. Zero disables
	// the client-side timeout.
	RequestTimeoutSec int

	// UseDocOrientationClassify enables document rotation correction.
	UseDocOrientationClassify bool

	// UseDocUnwarping enables document perspective correction.
	UseDocUnwarping bool

	// UseLayoutDetection enables layout analysis.
	UseLayoutDetection bool
}

// DefaultConfig returns the pipeline configuration with all document
// preprocessing capabilities enabled.
func DefaultConfig() Config {
	return Config{
		RequestTimeoutSec:         300,
		UseDocOrientationClassify: true,
		UseDocUnwarping:           true,
		UseLayoutDetection:        true,
	}
}
