// Package imageproc hosts image-processing backends for the import pipeline.
//
// The real perspective-correction, QR-decoding and OCR code is a native
// plugin linked into the mobile builds. Passthrough is the backend used when
// that plugin is not available: sizes are read from image headers, detection
// finds nothing (so imports fall back to full-frame pages) and "cropping"
// copies the source image unchanged.
package imageproc

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"

	"paperscan/internal/service"
	"paperscan/internal/storage"
)

// Passthrough implements service.ImageProcessor without native code.
type Passthrough struct{}

// NewPassthrough creates a Passthrough processor.
func NewPassthrough() *Passthrough {
	return &Passthrough{}
}

// ImageSize reads dimensions from the image header without decoding pixels.
func (p *Passthrough) ImageSize(_ context.Context, path string) (service.ImageInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return service.ImageInfo{}, fmt.Errorf("failed to open image: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return service.ImageInfo{}, fmt.Errorf("failed to decode image header: %w", err)
	}
	return service.ImageInfo{Width: cfg.Width, Height: cfg.Height}, nil
}

// DetectDocumentCorners never finds a document boundary.
func (p *Passthrough) DetectDocumentCorners(context.Context, string, service.CornersOptions) ([]storage.Quad, error) {
	return nil, nil
}

// CropDocumentFromFile copies the source image once per quad. The quads are
// recorded on the pages so a native backend can re-crop later.
func (p *Passthrough) CropDocumentFromFile(_ context.Context, path string, quads []storage.Quad, opts service.CropOptions) ([]service.CropResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	cfg, _, err := image.DecodeConfig(f)
	_ = f.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to decode image header: %w", err)
	}

	folder := opts.SaveInFolder
	if folder == "" {
		folder = filepath.Dir(path)
	}

	results := make([]service.CropResult, 0, len(quads))
	for i := range quads {
		dest := filepath.Join(folder, fmt.Sprintf("%d_%s", i, filepath.Base(path)))
		if opts.FileName != "" {
			dest = filepath.Join(folder, fmt.Sprintf("%d_%s", i, opts.FileName))
		}
		if err := copyFile(path, dest); err != nil {
			return nil, err
		}
		results = append(results, service.CropResult{ImagePath: dest, Width: cfg.Width, Height: cfg.Height})
	}
	return results, nil
}

// DetectQRCodeFromFile never detects a code.
func (p *Passthrough) DetectQRCodeFromFile(context.Context, string, service.QRDetectOptions) ([]storage.QRCodeData, error) {
	return nil, nil
}

// ProcessFromFile returns one empty result per requested operation.
func (p *Passthrough) ProcessFromFile(_ context.Context, _ string, ops []service.ProcessOperation, _ service.ProcessOptions) ([]service.ProcessResult, error) {
	return make([]service.ProcessResult, len(ops)), nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		_ = in.Close()
	}()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
