package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"paperscan/internal/storage"
)

// stubProcessor implements ImageProcessor with overridable behavior.
type stubProcessor struct {
	info    ImageInfo
	quads   []storage.Quad
	results []ProcessResult
	qrCodes []storage.QRCodeData

	cropCalls int
}

func (s *stubProcessor) ImageSize(_ context.Context, _ string) (ImageInfo, error) {
	return s.info, nil
}

func (s *stubProcessor) DetectDocumentCorners(_ context.Context, _ string, _ CornersOptions) ([]storage.Quad, error) {
	return s.quads, nil
}

func (s *stubProcessor) CropDocumentFromFile(_ context.Context, path string, quads []storage.Quad, opts CropOptions) ([]CropResult, error) {
	s.cropCalls++
	results := make([]CropResult, len(quads))
	for i := range quads {
		out := filepath.Join(opts.SaveInFolder, opts.FileName)
		if err := os.WriteFile(out, []byte("cropped"), 0o644); err != nil {
			return nil, err
		}
		results[i] = CropResult{ImagePath: out, Width: s.info.Width, Height: s.info.Height}
	}
	return results, nil
}

func (s *stubProcessor) DetectQRCodeFromFile(_ context.Context, _ string, _ QRDetectOptions) ([]storage.QRCodeData, error) {
	return s.qrCodes, nil
}

func (s *stubProcessor) ProcessFromFile(_ context.Context, _ string, ops []ProcessOperation, _ ProcessOptions) ([]ProcessResult, error) {
	if s.results != nil {
		return s.results, nil
	}
	return make([]ProcessResult, len(ops)), nil
}

// stubPDFImporter expands every PDF to a fixed number of fresh image files.
type stubPDFImporter struct {
	pagesPerPDF int
	calls       int
}

func (s *stubPDFImporter) ImportToTempImages(_ context.Context, _ string, _ PDFImportOptions) ([]string, error) {
	s.calls++
	dir, err := os.MkdirTemp("", "pdf-stub-*")
	if err != nil {
		return nil, err
	}
	paths := make([]string, s.pagesPerPDF)
	for i := range paths {
		paths[i] = filepath.Join(dir, fmt.Sprintf("page-%d.jpg", i))
		if err := os.WriteFile(paths[i], []byte("pdf-page"), 0o644); err != nil {
			return nil, err
		}
	}
	return paths, nil
}

func TestImporter_ImportImagesWithoutCrop(t *testing.T) {
	svc := startTestService(t, nil)
	proc := &stubProcessor{info: ImageInfo{Width: 640, Height: 480}}
	importer := NewImporter(svc, proc, &stubPDFImporter{}, svc.cfg, nil)

	paths := []string{
		writeSourceImage(t, "scan1.jpg"),
		writeSourceImage(t, "scan2.jpg"),
	}
	doc, err := importer.ImportFromFiles(context.Background(), paths, nil, ImportOptions{})
	if err != nil {
		t.Fatalf("ImportFromFiles() error = %v", err)
	}

	if len(doc.Pages) != 2 {
		t.Fatalf("imported %d pages, want 2", len(doc.Pages))
	}
	if proc.cropCalls != 0 {
		t.Errorf("crop ran %d times with cropping disabled, want 0", proc.cropCalls)
	}
	for _, page := range doc.Pages {
		if page.Width != 640 || page.Height != 480 {
			t.Errorf("page dimensions = %dx%d, want 640x480", page.Width, page.Height)
		}
		// Full-frame import still records a crop covering the whole image.
		if page.Crop == nil {
			t.Fatal("page has no crop quad")
		}
		if (*page.Crop)[2] != (storage.Point{640, 480}) {
			t.Errorf("crop bottom-right = %v, want [640 480]", (*page.Crop)[2])
		}
	}
}

func TestImporter_ImportWithDetection(t *testing.T) {
	svc := startTestService(t, nil)
	quad := storage.Quad{{5, 5}, {600, 8}, {598, 470}, {4, 468}}
	proc := &stubProcessor{
		info:  ImageInfo{Width: 640, Height: 480},
		quads: []storage.Quad{quad},
	}
	importer := NewImporter(svc, proc, &stubPDFImporter{}, svc.cfg, nil)

	doc, err := importer.ImportFromFiles(context.Background(),
		[]string{writeSourceImage(t, "scan.jpg")}, nil, ImportOptions{CropEnabled: true})
	if err != nil {
		t.Fatalf("ImportFromFiles() error = %v", err)
	}

	if proc.cropCalls != 1 {
		t.Errorf("crop ran %d times, want 1", proc.cropCalls)
	}
	if len(doc.Pages) != 1 {
		t.Fatalf("imported %d pages, want 1", len(doc.Pages))
	}
	if doc.Pages[0].Crop == nil || *doc.Pages[0].Crop != quad {
		t.Errorf("page crop = %v, want detected quad %v", doc.Pages[0].Crop, quad)
	}
	if doc.Pages[0].SourceImageWidth != 640 || doc.Pages[0].SourceImageHeight != 480 {
		t.Errorf("source dimensions = %dx%d, want 640x480",
			doc.Pages[0].SourceImageWidth, doc.Pages[0].SourceImageHeight)
	}
}

func TestImporter_FallbackQuadWhenNothingDetected(t *testing.T) {
	svc := startTestService(t, nil)
	proc := &stubProcessor{info: ImageInfo{Width: 640, Height: 480}}
	importer := NewImporter(svc, proc, &stubPDFImporter{}, svc.cfg, nil)

	doc, err := importer.ImportFromFiles(context.Background(),
		[]string{writeSourceImage(t, "scan.jpg")}, nil,
		ImportOptions{CropEnabled: true, NoDetectionMargin: 10})
	if err != nil {
		t.Fatalf("ImportFromFiles() error = %v", err)
	}

	if len(doc.Pages) != 1 {
		t.Fatalf("imported %d pages, want 1", len(doc.Pages))
	}
	want := storage.Quad{{10, 10}, {630, 10}, {630, 470}, {10, 470}}
	if doc.Pages[0].Crop == nil || *doc.Pages[0].Crop != want {
		t.Errorf("fallback crop = %v, want %v", doc.Pages[0].Crop, want)
	}
}

func TestImporter_FallbackQuadSwapsRotatedDimensions(t *testing.T) {
	svc := startTestService(t, nil)
	proc := &stubProcessor{info: ImageInfo{Width: 640, Height: 480, Rotation: 90}}
	importer := NewImporter(svc, proc, &stubPDFImporter{}, svc.cfg, nil)

	doc, err := importer.ImportFromFiles(context.Background(),
		[]string{writeSourceImage(t, "scan.jpg")}, nil,
		ImportOptions{CropEnabled: true})
	if err != nil {
		t.Fatalf("ImportFromFiles() error = %v", err)
	}

	// With 90 degrees of EXIF rotation the fallback quad spans 480x640.
	want := storage.Quad{{0, 0}, {480, 0}, {480, 640}, {0, 640}}
	if doc.Pages[0].Crop == nil || *doc.Pages[0].Crop != want {
		t.Errorf("fallback crop = %v, want %v", doc.Pages[0].Crop, want)
	}
}

func TestImporter_ExpandsPDFs(t *testing.T) {
	svc := startTestService(t, nil)
	proc := &stubProcessor{info: ImageInfo{Width: 300, Height: 400}}
	pdf := &stubPDFImporter{pagesPerPDF: 2}
	importer := NewImporter(svc, proc, pdf, svc.cfg, nil)

	paths := []string{
		writeSourceImage(t, "cover.jpg"),
		filepath.Join(t.TempDir(), "report.PDF"),
	}
	if err := os.WriteFile(paths[1], []byte("%PDF"), 0o644); err != nil {
		t.Fatalf("writing test pdf: %v", err)
	}

	doc, err := importer.ImportFromFiles(context.Background(), paths, nil, ImportOptions{})
	if err != nil {
		t.Fatalf("ImportFromFiles() error = %v", err)
	}

	if pdf.calls != 1 {
		t.Errorf("pdf importer ran %d times, want 1", pdf.calls)
	}
	// One page for the image, two for the PDF.
	if len(doc.Pages) != 3 {
		t.Errorf("imported %d pages, want 3", len(doc.Pages))
	}
}

func TestImporter_AppendsToExistingDocument(t *testing.T) {
	svc := startTestService(t, nil)
	proc := &stubProcessor{info: ImageInfo{Width: 100, Height: 100}}
	importer := NewImporter(svc, proc, &stubPDFImporter{}, svc.cfg, nil)
	ctx := context.Background()

	doc := createDocWithPages(t, svc, 1)
	firstPage := doc.Pages[0].ID

	got, err := importer.ImportFromFiles(ctx,
		[]string{writeSourceImage(t, "extra.jpg")}, doc, ImportOptions{})
	if err != nil {
		t.Fatalf("ImportFromFiles() error = %v", err)
	}
	if got != doc {
		t.Error("ImportFromFiles() returned a different document when appending")
	}
	if len(doc.Pages) != 2 {
		t.Fatalf("document has %d pages, want 2", len(doc.Pages))
	}
	if doc.PagesOrder[0] != firstPage {
		t.Errorf("existing page lost its leading position: %v", doc.PagesOrder)
	}
}

func TestImporter_QRCodeOnlyDocuments(t *testing.T) {
	svc := startTestService(t, nil)
	proc := &stubProcessor{
		info: ImageInfo{Width: 100, Height: 100},
		results: []ProcessResult{
			{QRCodes: []storage.QRCodeData{{Text: "ticket-42", Format: "qrcode"}}},
			{Colors: []string{"#102030"}},
		},
	}
	importer := NewImporter(svc, proc, &stubPDFImporter{}, svc.cfg, nil)
	ctx := context.Background()

	doc, err := svc.CreateDocument(ctx, "qr", true, nil)
	if err != nil {
		t.Fatalf("CreateDocument() error = %v", err)
	}

	if _, err := importer.ImportFromFiles(ctx,
		[]string{writeSourceImage(t, "code.jpg")}, doc, ImportOptions{}); err != nil {
		t.Fatalf("ImportFromFiles() error = %v", err)
	}

	if len(doc.Pages) != 1 {
		t.Fatalf("document has %d pages, want 1", len(doc.Pages))
	}
	page := doc.Pages[0]
	if len(page.QRCode) != 1 || page.QRCode[0].Text != "ticket-42" {
		t.Errorf("page qrcode = %v, want detected code", page.QRCode)
	}
	if len(page.Colors) != 1 || page.Colors[0] != "#102030" {
		t.Errorf("page colors = %v, want extracted palette", page.Colors)
	}
}

func TestImporter_NoFiles(t *testing.T) {
	svc := startTestService(t, nil)
	importer := NewImporter(svc, &stubProcessor{}, &stubPDFImporter{}, svc.cfg, nil)

	_, err := importer.ImportFromFiles(context.Background(), nil, nil, ImportOptions{})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("ImportFromFiles() error = %v, want ErrInvalidInput", err)
	}
}
