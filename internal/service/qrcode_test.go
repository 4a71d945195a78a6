package service

import (
	"context"
	"errors"
	"testing"

	"paperscan/internal/storage"
)

func TestQRCodeService_DetectQRCode(t *testing.T) {
	svc := startTestService(t, nil)
	ctx := context.Background()
	doc := createDocWithPages(t, svc, 1)

	detected := []storage.QRCodeData{{Text: "https://example.com", Format: "qrcode"}}
	proc := &stubProcessor{qrCodes: detected}
	qr := NewQRCodeService(svc, proc, svc.cfg)

	codes, err := qr.DetectQRCode(ctx, doc, 0)
	if err != nil {
		t.Fatalf("DetectQRCode() error = %v", err)
	}
	if len(codes) != 1 || codes[0].Text != "https://example.com" {
		t.Errorf("DetectQRCode() = %v, want detected code", codes)
	}

	// Detection results are merged onto the page and persisted.
	got, err := svc.Pages.Get(ctx, doc.Pages[0].ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(got.QRCode) != 1 || got.QRCode[0].Text != "https://example.com" {
		t.Errorf("stored qrcode = %v, want detected code", got.QRCode)
	}

	// A second detection appends rather than replaces.
	proc.qrCodes = []storage.QRCodeData{{Text: "second", Format: "qrcode"}}
	if _, err := qr.DetectQRCode(ctx, doc, 0); err != nil {
		t.Fatalf("DetectQRCode() second call error = %v", err)
	}
	if len(doc.Pages[0].QRCode) != 2 {
		t.Errorf("merged qrcode count = %d, want 2", len(doc.Pages[0].QRCode))
	}
}

func TestQRCodeService_NoCodesFound(t *testing.T) {
	svc := startTestService(t, nil)
	ctx := context.Background()
	doc := createDocWithPages(t, svc, 1)
	before := doc.Pages[0].ModifiedDate

	qr := NewQRCodeService(svc, &stubProcessor{}, svc.cfg)
	codes, err := qr.DetectQRCode(ctx, doc, 0)
	if err != nil {
		t.Fatalf("DetectQRCode() error = %v", err)
	}
	if codes != nil {
		t.Errorf("DetectQRCode() = %v, want nil when nothing found", codes)
	}
	// An empty detection never dirties the page.
	if doc.Pages[0].ModifiedDate != before {
		t.Error("page modified by empty detection")
	}
}

func TestQRCodeService_OutOfRange(t *testing.T) {
	svc := startTestService(t, nil)
	doc := createDocWithPages(t, svc, 1)

	qr := NewQRCodeService(svc, &stubProcessor{}, svc.cfg)
	if _, err := qr.DetectQRCode(context.Background(), doc, 3); !errors.Is(err, ErrPageIndexOutOfRange) {
		t.Errorf("DetectQRCode() error = %v, want ErrPageIndexOutOfRange", err)
	}
}
