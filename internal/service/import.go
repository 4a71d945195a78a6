package service

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"paperscan/internal/batch"
	"paperscan/internal/config"
	"paperscan/internal/storage"
)

// Importer turns image and PDF files into document pages: PDFs are expanded
// to per-page images, document boundaries are detected and cropped, and for
// QR-only documents a combined QR/palette pass runs over each produced page.
// Native calls run through the batch runner to bound concurrency.
type Importer struct {
	svc    *DocumentsService
	proc   ImageProcessor
	pdf    PDFImporter
	cfg    *config.Config
	logger *slog.Logger
}

// NewImporter creates an Importer on top of a started documents service.
func NewImporter(svc *DocumentsService, proc ImageProcessor, pdf PDFImporter, cfg *config.Config, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{svc: svc, proc: proc, pdf: pdf, cfg: cfg, logger: logger}
}

// ImportOptions control one import run.
type ImportOptions struct {
	// CropEnabled runs document boundary detection and perspective crop.
	// When disabled, pages are imported full-frame.
	CropEnabled bool
	// NoDetectionMargin insets the fallback quad used when no document
	// boundary is found, in pixels.
	NoDetectionMargin int
}

// importItem is one source image after detection, before cropping.
type importItem struct {
	imagePath     string
	quads         []storage.Quad
	imageWidth    int
	imageHeight   int
	imageRotation int
}

// ImportFromFiles imports the given image/PDF paths. When doc is nil a new
// document is created; otherwise pages are appended to it. Returns the
// document the pages ended up in.
func (im *Importer) ImportFromFiles(ctx context.Context, paths []string, doc *storage.DocumentRecord, opts ImportOptions) (*storage.DocumentRecord, error) {
	if !im.svc.Started() {
		return nil, ErrNotStarted
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no files to import", ErrInvalidInput)
	}

	var images, pdfs []string
	for _, p := range paths {
		if strings.EqualFold(filepath.Ext(p), ".pdf") {
			pdfs = append(pdfs, p)
		} else {
			images = append(images, p)
		}
	}

	// Expand PDFs first; their page images join the image list.
	pdfImages, err := batch.Run(ctx, pdfs, im.cfg.ImportBatchSize, func(ctx context.Context, pdfPath string, _ int) ([]string, error) {
		start := time.Now()
		pages, err := im.pdf.ImportToTempImages(ctx, pdfPath, PDFImportOptions{
			CompressFormat:  im.cfg.ImageFormat,
			CompressQuality: im.cfg.ImageQuality,
		})
		if err != nil {
			return nil, WrapError(err, "failed to import pdf")
		}
		im.logger.DebugContext(ctx, "pdf imported", "path", pdfPath, "pages", len(pages), "took", time.Since(start))
		return pages, nil
	})
	if err != nil {
		return nil, err
	}
	for _, pages := range pdfImages {
		images = append(images, pages...)
	}

	items, err := batch.Run(ctx, images, im.cfg.ImportBatchSize, func(ctx context.Context, imagePath string, _ int) (importItem, error) {
		return im.detect(ctx, imagePath, opts)
	})
	if err != nil {
		return nil, err
	}

	qrCodeOnly := doc != nil && doc.QRCodeOnly
	pageBatches, err := batch.Run(ctx, items, im.cfg.ImportBatchSize, func(ctx context.Context, item importItem, index int) ([]PageData, error) {
		return im.crop(ctx, item, index, qrCodeOnly)
	})
	if err != nil {
		return nil, err
	}

	var pagesToAdd []PageData
	for _, pages := range pageBatches {
		pagesToAdd = append(pagesToAdd, pages...)
	}
	if len(pagesToAdd) == 0 {
		return doc, nil
	}

	if doc != nil {
		if err := im.svc.AddPages(ctx, doc, pagesToAdd); err != nil {
			return nil, err
		}
		return doc, nil
	}
	return im.svc.CreateDocument(ctx, "", false, pagesToAdd)
}

// detect reads the image's dimensions and finds document boundaries. When
// detection finds nothing (or cropping is disabled), a full-frame quad inset
// by the configured margin stands in, swapped for EXIF rotation.
func (im *Importer) detect(ctx context.Context, imagePath string, opts ImportOptions) (importItem, error) {
	info, err := im.proc.ImageSize(ctx, imagePath)
	if err != nil {
		return importItem{}, WrapError(err, "failed to read image size")
	}

	item := importItem{
		imagePath:     imagePath,
		imageWidth:    info.Width,
		imageHeight:   info.Height,
		imageRotation: info.Rotation,
	}

	if opts.CropEnabled {
		quads, err := im.proc.DetectDocumentCorners(ctx, imagePath, CornersOptions{
			ResizeThreshold: im.cfg.CornersResizeThreshold,
		})
		if err != nil {
			return importItem{}, WrapError(err, "failed to detect document corners")
		}
		item.quads = quads
		if len(item.quads) == 0 {
			width, height := float64(info.Width), float64(info.Height)
			if info.Rotation%180 != 0 {
				width, height = height, width
			}
			margin := float64(opts.NoDetectionMargin)
			item.quads = []storage.Quad{{
				{margin, margin},
				{width - margin, margin},
				{width - margin, height - margin},
				{margin, height - margin},
			}}
		}
	}
	return item, nil
}

// crop produces the final page images for one import item.
func (im *Importer) crop(ctx context.Context, item importItem, index int, qrCodeOnly bool) ([]PageData, error) {
	var produced []CropResult
	if len(item.quads) > 0 {
		results, err := im.proc.CropDocumentFromFile(ctx, item.imagePath, item.quads, CropOptions{
			FileName:        fmt.Sprintf("croppedBitmap_%d.%s", index, im.cfg.ImageFormat),
			SaveInFolder:    filepath.Dir(item.imagePath),
			CompressFormat:  im.cfg.ImageFormat,
			CompressQuality: im.cfg.ImageQuality,
		})
		if err != nil {
			return nil, WrapError(err, "failed to crop document")
		}
		produced = results
	} else {
		produced = []CropResult{{ImagePath: item.imagePath, Width: item.imageWidth, Height: item.imageHeight}}
	}

	pages := make([]PageData, 0, len(produced))
	for i, image := range produced {
		page := PageData{
			ImagePath:           image.ImagePath,
			Width:               image.Width,
			Height:              image.Height,
			SourceImagePath:     item.imagePath,
			SourceImageWidth:    item.imageWidth,
			SourceImageHeight:   item.imageHeight,
			SourceImageRotation: item.imageRotation,
		}
		if i < len(item.quads) {
			quad := item.quads[i]
			page.Crop = &quad
		} else {
			page.Crop = &storage.Quad{
				{0, 0},
				{float64(item.imageWidth), 0},
				{float64(item.imageWidth), float64(item.imageHeight)},
				{0, float64(item.imageHeight)},
			}
		}

		if qrCodeOnly {
			results, err := im.proc.ProcessFromFile(ctx, image.ImagePath, []ProcessOperation{
				{Type: "qrcode"},
				{
					Type:                          "palette",
					ShrunkImageHeight:             im.cfg.PaletteResizeThreshold,
					ColorsFilterDistanceThreshold: 20,
					NBColors:                      5,
					ColorPalette:                  2,
				},
			}, ProcessOptions{MaxSize: im.cfg.QRCodeResizeThreshold})
			if err != nil {
				return nil, WrapError(err, "failed to process image")
			}
			if len(results) > 0 {
				page.QRCode = results[0].QRCodes
			}
			if len(results) > 1 {
				page.Colors = results[1].Colors
			}
		}
		pages = append(pages, page)
	}
	return pages, nil
}
