package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"paperscan/internal/storage"
)

// PageData is everything needed to attach one new page to a document: the
// produced (cropped) image, its source image and the geometry linking them,
// plus any detection results already computed during import.
type PageData struct {
	ImagePath string
	Width     int
	Height    int

	Crop                *storage.Quad
	SourceImagePath     string
	SourceImageWidth    int
	SourceImageHeight   int
	SourceImageRotation int

	ColorType   string
	ColorMatrix []float64
	Transforms  string
	Rotation    int

	QRCode []storage.QRCodeData
	Colors []string
}

// CreateDocument creates a new document and attaches the given pages. The
// two steps are separate store operations; a failure between them leaves a
// zero-page document behind, which Search is required to hide.
func (s *DocumentsService) CreateDocument(ctx context.Context, name string, qrCodeOnly bool, pages []PageData) (*storage.DocumentRecord, error) {
	if !s.Started() {
		return nil, ErrNotStarted
	}

	doc := &storage.DocumentRecord{Name: name, QRCodeOnly: qrCodeOnly}
	if err := s.Documents.Create(ctx, doc); err != nil {
		return nil, err
	}
	if len(pages) > 0 {
		if err := s.AddPages(ctx, doc, pages); err != nil {
			return nil, err
		}
	}
	s.events.emit(Event{Name: EventDocumentAdded, Document: doc})
	return doc, nil
}

// AddPages appends pages to the document. Each produced image is moved into
// the document's folder under the data root, the page rows are created, and
// pagesOrder is extended with the new ids in one update.
func (s *DocumentsService) AddPages(ctx context.Context, doc *storage.DocumentRecord, pages []PageData) error {
	if !s.Started() {
		return ErrNotStarted
	}
	if len(pages) == 0 {
		return nil
	}

	docFolder := filepath.Join(s.DataFolder, doc.ID)
	if err := os.MkdirAll(docFolder, 0o755); err != nil {
		return WrapError(err, "failed to create document folder")
	}

	added := make([]*storage.PageRecord, 0, len(pages))
	for _, data := range pages {
		page := &storage.PageRecord{
			DocumentID:          doc.ID,
			Width:               data.Width,
			Height:              data.Height,
			Crop:                data.Crop,
			SourceImagePath:     data.SourceImagePath,
			SourceImageWidth:    data.SourceImageWidth,
			SourceImageHeight:   data.SourceImageHeight,
			SourceImageRotation: data.SourceImageRotation,
			ColorType:           data.ColorType,
			ColorMatrix:         data.ColorMatrix,
			Transforms:          data.Transforms,
			Rotation:            data.Rotation,
			QRCode:              data.QRCode,
			Colors:              data.Colors,
		}

		page.ID = uuid.New().String()
		dest := filepath.Join(docFolder, page.ID+filepath.Ext(data.ImagePath))
		if err := moveFile(data.ImagePath, dest); err != nil {
			return WrapError(err, "failed to move page image")
		}
		page.ImagePath = dest
		if info, err := os.Stat(dest); err == nil {
			page.Size = info.Size()
		}

		if err := s.Pages.Create(ctx, page); err != nil {
			return err
		}
		added = append(added, page)
	}

	doc.Pages = append(doc.Pages, added...)
	order := make([]string, len(doc.Pages))
	for i, p := range doc.Pages {
		order[i] = p.ID
	}
	if err := s.Documents.Update(ctx, doc, &storage.DocumentUpdate{PagesOrder: &order}, true); err != nil {
		return err
	}

	s.events.emit(Event{Name: EventDocumentPagesAdded, Document: doc, Pages: added})
	return nil
}

// UpdatePage applies a partial update to the page at pageIndex and marks the
// document dirty.
func (s *DocumentsService) UpdatePage(ctx context.Context, doc *storage.DocumentRecord, pageIndex int, upd *storage.PageUpdate) error {
	if !s.Started() {
		return ErrNotStarted
	}
	if pageIndex < 0 || pageIndex >= len(doc.Pages) {
		return fmt.Errorf("%w: %d", ErrPageIndexOutOfRange, pageIndex)
	}

	page := doc.Pages[pageIndex]
	if err := s.Pages.Update(ctx, page, upd, true); err != nil {
		return err
	}
	if err := s.Documents.Touch(ctx, doc); err != nil {
		return err
	}

	s.events.emit(Event{
		Name:         EventDocumentPageUpdated,
		Document:     doc,
		PageIndex:    pageIndex,
		ImageUpdated: upd != nil && upd.ImagePath != nil,
	})
	return nil
}

// DeletePage removes the page at pageIndex: the row, its position in
// pagesOrder, and its on-disk images.
func (s *DocumentsService) DeletePage(ctx context.Context, doc *storage.DocumentRecord, pageIndex int) error {
	if !s.Started() {
		return ErrNotStarted
	}
	if pageIndex < 0 || pageIndex >= len(doc.Pages) {
		return fmt.Errorf("%w: %d", ErrPageIndexOutOfRange, pageIndex)
	}

	page := doc.Pages[pageIndex]
	if err := s.Pages.Delete(ctx, page); err != nil {
		return err
	}
	doc.Pages = append(doc.Pages[:pageIndex], doc.Pages[pageIndex+1:]...)

	order := make([]string, 0, len(doc.Pages))
	for _, p := range doc.Pages {
		order = append(order, p.ID)
	}
	if err := s.Documents.Update(ctx, doc, &storage.DocumentUpdate{PagesOrder: &order}, true); err != nil {
		return err
	}

	if err := s.assets.RemovePageAssets(ctx, page); err != nil {
		s.logger.WarnContext(ctx, "failed to remove page assets", "page", page.ID, "error", err)
	}

	s.events.emit(Event{Name: EventDocumentPageDeleted, Document: doc, PageIndex: pageIndex})
	return nil
}

// MovePage moves the page at from to position to and persists the new order.
func (s *DocumentsService) MovePage(ctx context.Context, doc *storage.DocumentRecord, from, to int) error {
	if !s.Started() {
		return ErrNotStarted
	}
	if from < 0 || from >= len(doc.Pages) || to < 0 || to >= len(doc.Pages) {
		return fmt.Errorf("%w: %d -> %d", ErrPageIndexOutOfRange, from, to)
	}
	if from == to {
		return nil
	}

	pages := doc.Pages
	page := pages[from]
	pages = append(pages[:from], pages[from+1:]...)
	pages = append(pages[:to], append([]*storage.PageRecord{page}, pages[to:]...)...)
	doc.Pages = pages

	order := make([]string, len(pages))
	for i, p := range pages {
		order[i] = p.ID
	}
	if err := s.Documents.Update(ctx, doc, &storage.DocumentUpdate{PagesOrder: &order}, true); err != nil {
		return err
	}

	s.events.emit(Event{Name: EventDocumentUpdated, Document: doc})
	return nil
}

// moveFile renames src to dest, falling back to copy+remove across devices
// (temp dirs frequently live on another filesystem).
func moveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
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
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
