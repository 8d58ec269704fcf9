package pipeline

// InferenceError wraps any failure raised while invoking the OCR engine,
// so callers can classify it without inspecting engine internals.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string {
	return "ocr inference failed: " + e.Err.Error()
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}
