// Package assets persists binary image content extracted from OCR results
// and rewrites result trees to reference the stored copies by URL.
package assets

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// BinaryAsset is an embedded binary image found inside an OCR result tree.
// Instances are produced only by the OCR adapter layer when it parses a
// serving response; the externalizer detects them by type, not by shape.
type BinaryAsset struct {
	Data   []byte
	Width  int
	Height int
	Format string
}

// NewBinaryAsset wraps raw image bytes, probing the pixel dimensions and
// format from the encoded header. Unknown dimensions stay zero.
func NewBinaryAsset(data []byte) *BinaryAsset {
	asset := &BinaryAsset{Data: data}
	if cfg, format, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		asset.Width = cfg.Width
		asset.Height = cfg.Height
		asset.Format = format
	}
	return asset
}

// SizeLabel renders the dimensions as "WxH", or "?" when unknown.
func (a *BinaryAsset) SizeLabel() string {
	if a.Width <= 0 || a.Height <= 0 {
		return "?"
	}
	return fmt.Sprintf("%dx%d", a.Width, a.Height)
}
