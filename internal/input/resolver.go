// Package input resolves document inputs to readable local file paths.
//
// A request carries either an inline base64 payload (optionally a data URL)
// or the name of a file previously uploaded to the mounted uploads
// directory. Exactly one of the two must be present.
package input

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Method tags how a document input was supplied.
const (
	MethodInline    = "image_data"
	MethodReference = "file_name"
)

// Resolved is a document input resolved to a local file path.
type Resolved struct {
	// Path is a readable local file path.
	Path string

	// Owned marks paths created by the resolver (temp files for inline
	// payloads). Owned paths are removed by Cleanup; referenced uploads
	// are never deleted.
	Owned bool

	// Method is the input method tag echoed in responses.
	Method string
}

// Cleanup removes the resolved file if the resolver created it.
func (r Resolved) Cleanup() {
	if r.Owned && r.Path != "" {
		_ = os.Remove(r.Path)
	}
}

// Resolver turns request inputs into local file paths.
type Resolver struct {
	// UploadsDir is the mounted directory referenced file names are
	// joined against.
	UploadsDir string
}

// NewResolver creates a resolver rooted at the given uploads directory.
func NewResolver(uploadsDir string) *Resolver {
	return &Resolver{UploadsDir: uploadsDir}
}

// Resolve produces a local file path for the given request input.
// It returns ErrInvalidInput unless exactly one of imageData and fileName
// is non-empty, and ErrNotFound when a referenced file is absent.
func (r *Resolver) Resolve(imageData, fileName string) (Resolved, error) {
	switch {
	case imageData == "" && fileName == "":
		return Resolved{}, ErrInvalidInput
	case imageData != "" && fileName != "":
		return Resolved{}, ErrInvalidInput
	case imageData != "":
		return r.resolveInline(imageData)
	default:
		return r.resolveReference(fileName)
	}
}

// resolveInline decodes a base64 payload into a fresh temp file.
func (r *Resolver) resolveInline(imageData string) (Resolved, error) {
	// Strip any data-URL prefix up to the first comma.
	if idx := strings.Index(imageData, ","); idx >= 0 && strings.HasPrefix(imageData, "data:") {
		imageData = imageData[idx+1:]
	}

	raw, err := base64.StdEncoding.DecodeString(imageData)
	if err != nil {
		// Some clients send unpadded payloads.
		raw, err = base64.RawStdEncoding.DecodeString(imageData)
		if err != nil {
			return Resolved{}, fmt.Errorf("%w: invalid base64 payload: %w", ErrInvalidInput, err)
		}
	}

	tmp, err := os.CreateTemp("", "doclens-upload-*")
	if err != nil {
		return Resolved{}, fmt.Errorf("creating temp file: %w", err)
	}

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return Resolved{}, fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return Resolved{}, fmt.Errorf("closing temp file: %w", err)
	}

	return Resolved{Path: tmp.Name(), Owned: true, Method: MethodInline}, nil
}

// resolveReference joins a file name against the uploads mount.
func (r *Resolver) resolveReference(fileName string) (Resolved, error) {
	path := filepath.Join(r.UploadsDir, filepath.Base(fileName))

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return Resolved{}, fmt.Errorf("%w: %s", ErrNotFound, fileName)
		}
		return Resolved{}, fmt.Errorf("checking referenced file: %w", err)
	}

	return Resolved{Path: path, Owned: false, Method: MethodReference}, nil
}
