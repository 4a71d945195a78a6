// Package pdfimport expands PDF files into per-page images for the import
// pipeline. It extracts the images already embedded in the PDF (the common
// case for scanned documents) rather than rasterizing page content; pages
// without embedded images simply contribute nothing.
package pdfimport

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"paperscan/internal/service"
)

// Importer implements service.PDFImporter with pdfcpu.
type Importer struct {
	logger *slog.Logger
}

// New creates an Importer.
func New(logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{logger: logger}
}

// ImportToTempImages extracts the page images of the PDF at path into a
// fresh temporary directory and returns their paths in page order. The
// caller owns the returned files; the import pipeline moves them into the
// document folder.
func (i *Importer) ImportToTempImages(ctx context.Context, path string, _ service.PDFImportOptions) ([]string, error) {
	start := time.Now()

	pageCount, err := api.PageCountFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pdf page count: %w", err)
	}

	tempDir, err := os.MkdirTemp("", "pdf-import-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}

	if err := api.ExtractImagesFile(path, tempDir, nil, nil); err != nil {
		_ = os.RemoveAll(tempDir)
		return nil, fmt.Errorf("failed to extract pdf images: %w", err)
	}

	entries, err := os.ReadDir(tempDir)
	if err != nil {
		_ = os.RemoveAll(tempDir)
		return nil, fmt.Errorf("failed to list extracted images: %w", err)
	}

	images := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		images = append(images, filepath.Join(tempDir, entry.Name()))
	}
	// pdfcpu names extracted files <base>_<page>_<resource>.<ext>, so a
	// lexicographic sort yields page order for single-image pages.
	sort.Strings(images)

	i.logger.DebugContext(ctx, "pdf images extracted",
		"path", path, "pages", pageCount, "images", len(images), "took", time.Since(start))
	return images, nil
}
