package storage

// Point is a single 2D coordinate in image space, stored as [x, y].
type Point [2]float64

// Quad is a quadrilateral described by its four corners, in the order
// top-left, top-right, bottom-right, bottom-left.
type Quad [4]Point

// OCRBlock is one recognized text region within a page.
type OCRBlock struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence,omitempty"`
	Box        *Quad   `json:"box,omitempty"`
}

// OCRData is the recognition result for a whole page.
type OCRData struct {
	Text   string     `json:"text"`
	Blocks []OCRBlock `json:"blocks,omitempty"`
}

// QRCodeData is one detected barcode/QR code on a page.
type QRCodeData struct {
	Text     string `json:"text"`
	Format   string `json:"format"`
	Position *Quad  `json:"position,omitempty"`
}

// TagRecord is a user-defined label. Tags are created on first use with
// name == id and are shared across documents through the DocumentsTags
// join table.
type TagRecord struct {
	ID   string
	Name string
}

// PageRecord is one scanned or imported image together with its geometric
// and color transform state and derived OCR/QR data.
//
// Structured fields (Crop, ColorMatrix, OCRData, QRCode, Colors) are stored
// as JSON text columns; nil means the column is absent, which is distinct
// from an empty value. ImagePath and SourceImagePath are absolute in memory
// and stored relative to the data folder so the database survives the data
// root moving between launches.
type PageRecord struct {
	ID           string
	DocumentID   string
	CreatedDate  int64 // milliseconds since epoch
	ModifiedDate int64

	// PageIndex is the legacy ordering field, superseded by the document's
	// pagesOrder. Always -1 for newly created pages; we are stuck with the
	// column since SQLite cannot drop it without a table rebuild.
	PageIndex int

	Name        string
	ColorType   string
	ColorMatrix []float64
	Transforms  string // "|"-delimited transform identifiers
	Rotation    int    // degrees
	Scale       float64
	Brightness  *int
	Contrast    *int
	Crop        *Quad
	OCRData     *OCRData
	QRCode      []QRCodeData
	Colors      []string

	Width  int
	Height int
	Size   int64

	ImagePath           string
	SourceImagePath     string
	SourceImageWidth    int
	SourceImageHeight   int
	SourceImageRotation int
}

// DocumentRecord is the document aggregate: identity and metadata on the
// Document row, plus the ordered pages and associated tag ids loaded from
// their own tables.
type DocumentRecord struct {
	ID           string
	CreatedDate  int64 // milliseconds since epoch
	ModifiedDate int64
	Name         string

	// PagesOrder is the authoritative ordering of page ids. nil means the
	// document predates the column; hydration backfills it from the legacy
	// per-page index.
	PagesOrder []string

	// Synced is 0 whenever the last mutation has not been picked up by an
	// external sync; every update resets it unless the caller supplies it.
	Synced int

	QRCodeOnly bool

	// Derived, not columns on the Document row.
	Tags  []string
	Pages []*PageRecord
}

// PageUpdate is a typed partial update for a page. nil fields are left
// untouched; a non-nil field is written even when it points at a zero value.
type PageUpdate struct {
	ModifiedDate    *int64
	Name            *string
	ColorType       *string
	ColorMatrix     *[]float64
	Transforms      *string
	Rotation        *int
	Scale           *float64
	Brightness      *int
	Contrast        *int
	Crop            *Quad
	OCRData         *OCRData
	QRCode          *[]QRCodeData
	Colors          *[]string
	Width           *int
	Height          *int
	Size            *int64
	ImagePath       *string
	SourceImagePath *string
}

// DocumentUpdate is a typed partial update for a document. Unless Synced is
// supplied, every update forces it back to 0.
type DocumentUpdate struct {
	ModifiedDate *int64
	Name         *string
	PagesOrder   *[]string
	Synced       *int
	QRCodeOnly   *bool
}
