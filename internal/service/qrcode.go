package service

import (
	"context"

	"paperscan/internal/config"
	"paperscan/internal/storage"
)

// QRCodeService detects barcodes on already-imported pages.
type QRCodeService struct {
	svc  *DocumentsService
	proc ImageProcessor
	cfg  *config.Config
}

// NewQRCodeService creates a QRCodeService.
func NewQRCodeService(svc *DocumentsService, proc ImageProcessor, cfg *config.Config) *QRCodeService {
	return &QRCodeService{svc: svc, proc: proc, cfg: cfg}
}

// DetectQRCode runs detection over the page at pageIndex and merges any
// found codes into the page's qrcode field. Returns the newly detected
// codes; nil when the page has none.
func (q *QRCodeService) DetectQRCode(ctx context.Context, doc *storage.DocumentRecord, pageIndex int) ([]storage.QRCodeData, error) {
	if pageIndex < 0 || pageIndex >= len(doc.Pages) {
		return nil, ErrPageIndexOutOfRange
	}
	page := doc.Pages[pageIndex]

	codes, err := q.proc.DetectQRCodeFromFile(ctx, page.ImagePath, QRDetectOptions{
		ResizeThreshold: q.cfg.QRCodeResizeThreshold,
		Rotation:        page.Rotation,
	})
	if err != nil {
		return nil, WrapError(err, "failed to detect qr code")
	}
	if len(codes) == 0 {
		return nil, nil
	}

	merged := append(append([]storage.QRCodeData{}, page.QRCode...), codes...)
	if err := q.svc.UpdatePage(ctx, doc, pageIndex, &storage.PageUpdate{QRCode: &merged}); err != nil {
		return nil, err
	}
	return codes, nil
}
