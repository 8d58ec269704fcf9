package assets

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewSessionID returns an opaque identifier grouping all assets extracted
// during one request: a UTC timestamp plus a short random suffix.
func NewSessionID() string {
	return time.Now().UTC().Format("20060102_150405") + "_" + shortID()
}

// shortID returns an 8-character hex identifier.
func shortID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
}
