package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// IsPDF reports whether the path looks like a PDF document.
func IsPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// DocumentPages returns the expected page count for a document: the PDF
// page count for PDFs, 1 for single-image inputs. PDF inputs that fail to
// parse are reported as errors before any inference is attempted.
func DocumentPages(path string) (int, error) {
	if !IsPDF(path) {
		return 1, nil
	}

	count, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("counting pdf pages: %w", err)
	}
	return count, nil
}
