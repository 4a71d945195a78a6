package service

import (
	"context"

	"paperscan/internal/storage"
)

// The native image pipeline (perspective correction, QR decoding, OCR,
// palette extraction) lives outside this module. These interfaces are the
// call/response contracts it is consumed through; implementations are
// injected at wiring time.

// ImageInfo describes an image file without loading its pixels.
type ImageInfo struct {
	Width    int
	Height   int
	Rotation int // EXIF rotation in degrees
}

// CropResult is one corrected image produced from a source image and a quad.
type CropResult struct {
	ImagePath string
	Width     int
	Height    int
}

// CornersOptions tune document boundary detection.
type CornersOptions struct {
	ResizeThreshold    int
	AreaScaleMinFactor float64
}

// CropOptions tune perspective cropping and the produced files.
type CropOptions struct {
	FileName        string
	SaveInFolder    string
	CompressFormat  string
	CompressQuality int
}

// QRDetectOptions tune barcode detection.
type QRDetectOptions struct {
	ResizeThreshold int
	Rotation        int
}

// ProcessOperation names one step of a composite processing pass.
type ProcessOperation struct {
	Type string // "qrcode" or "palette"

	// Palette parameters, ignored for other operation types.
	ShrunkImageHeight             int
	ColorsFilterDistanceThreshold int
	ColorPalette                  int
	NBColors                      int
}

// ProcessOptions apply to a whole composite pass.
type ProcessOptions struct {
	MaxSize int
}

// ProcessResult carries the output of one operation of a composite pass;
// only the field matching the operation type is set.
type ProcessResult struct {
	QRCodes []storage.QRCodeData
	Colors  []string
}

// ImageProcessor is the native image-processing plugin surface.
type ImageProcessor interface {
	// ImageSize returns dimensions and EXIF rotation without decoding pixels.
	ImageSize(ctx context.Context, path string) (ImageInfo, error)
	// DetectDocumentCorners returns candidate document quadrilaterals, empty
	// when no document-like shape is found.
	DetectDocumentCorners(ctx context.Context, path string, opts CornersOptions) ([]storage.Quad, error)
	// CropDocumentFromFile perspective-crops one image per quad and writes
	// the results to disk.
	CropDocumentFromFile(ctx context.Context, path string, quads []storage.Quad, opts CropOptions) ([]CropResult, error)
	// DetectQRCodeFromFile returns detected codes, empty when none.
	DetectQRCodeFromFile(ctx context.Context, path string, opts QRDetectOptions) ([]storage.QRCodeData, error)
	// ProcessFromFile runs several operations over one decode of the image,
	// returning one result per operation.
	ProcessFromFile(ctx context.Context, path string, ops []ProcessOperation, opts ProcessOptions) ([]ProcessResult, error)
}

// PDFImportOptions tune PDF page-image extraction.
type PDFImportOptions struct {
	CompressFormat  string
	CompressQuality int
}

// PDFImporter extracts a PDF's page images into temporary files.
type PDFImporter interface {
	ImportToTempImages(ctx context.Context, path string, opts PDFImportOptions) ([]string, error)
}

// AssetRemover deletes the on-disk files behind documents and pages. Row
// deletion and file deletion are separate concerns: the stores never touch
// the filesystem.
type AssetRemover interface {
	RemoveDocumentAssets(ctx context.Context, doc *storage.DocumentRecord) error
	RemovePageAssets(ctx context.Context, page *storage.PageRecord) error
}
