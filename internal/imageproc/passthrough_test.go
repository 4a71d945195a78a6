package imageproc

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"paperscan/internal/service"
	"paperscan/internal/storage"
)

// writeTestPNG writes a solid PNG of the given size and returns its path.
func writeTestPNG(t *testing.T, dir string, width, height int) string {
	t.Helper()
	path := filepath.Join(dir, "test.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create test image: %v", err)
	}
	defer func() {
		_ = f.Close()
	}()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return path
}

func TestPassthrough_ImageSize(t *testing.T) {
	proc := NewPassthrough()
	path := writeTestPNG(t, t.TempDir(), 320, 240)

	info, err := proc.ImageSize(context.Background(), path)
	if err != nil {
		t.Fatalf("ImageSize() error = %v", err)
	}
	if info.Width != 320 || info.Height != 240 {
		t.Errorf("ImageSize() = %dx%d, want 320x240", info.Width, info.Height)
	}
}

func TestPassthrough_ImageSize_MissingFile(t *testing.T) {
	proc := NewPassthrough()

	_, err := proc.ImageSize(context.Background(), "/nonexistent.png")
	if err == nil {
		t.Error("ImageSize() expected error for missing file")
	}
}

func TestPassthrough_CropDocumentFromFile(t *testing.T) {
	proc := NewPassthrough()
	dir := t.TempDir()
	path := writeTestPNG(t, dir, 100, 80)

	quads := []storage.Quad{
		{{0, 0}, {100, 0}, {100, 80}, {0, 80}},
		{{10, 10}, {90, 10}, {90, 70}, {10, 70}},
	}
	outDir := t.TempDir()

	results, err := proc.CropDocumentFromFile(context.Background(), path, quads, service.CropOptions{SaveInFolder: outDir})
	if err != nil {
		t.Fatalf("CropDocumentFromFile() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("CropDocumentFromFile() produced %d results, want 2", len(results))
	}
	for _, res := range results {
		if _, err := os.Stat(res.ImagePath); err != nil {
			t.Errorf("result image missing: %v", err)
		}
		if res.Width != 100 || res.Height != 80 {
			t.Errorf("result size = %dx%d, want 100x80", res.Width, res.Height)
		}
	}
}

func TestPassthrough_Detectors(t *testing.T) {
	proc := NewPassthrough()
	ctx := context.Background()

	quads, err := proc.DetectDocumentCorners(ctx, "any.png", service.CornersOptions{})
	if err != nil || quads != nil {
		t.Errorf("DetectDocumentCorners() = %v, %v; want nil, nil", quads, err)
	}

	codes, err := proc.DetectQRCodeFromFile(ctx, "any.png", service.QRDetectOptions{})
	if err != nil || codes != nil {
		t.Errorf("DetectQRCodeFromFile() = %v, %v; want nil, nil", codes, err)
	}

	results, err := proc.ProcessFromFile(ctx, "any.png", []service.ProcessOperation{{Type: "qrcode"}, {Type: "palette"}}, service.ProcessOptions{})
	if err != nil {
		t.Fatalf("ProcessFromFile() error = %v", err)
	}
	if len(results) != 2 {
		t.Errorf("ProcessFromFile() returned %d results, want 2", len(results))
	}
}
