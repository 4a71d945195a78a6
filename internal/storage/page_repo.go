package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// pageColumns is the column list shared by every page SELECT. It includes
// migration-added columns, which is safe because EnsureTable runs before any
// query.
const pageColumns = `id, document_id, createdDate, modifiedDate, pageIndex, name,
	colorType, colorMatrix, transforms, rotation, scale, brightness, contrast,
	crop, ocrData, qrcode, colors, width, height, size,
	sourceImagePath, imagePath, sourceImageWidth, sourceImageHeight, sourceImageRotation`

// PageRepo provides methods for page operations.
type PageRepo struct {
	db     *sql.DB
	codec  PathCodec
	logger *slog.Logger
}

// NewPageRepo creates a new PageRepo. The codec carries the data root used to
// relativize image paths before they hit the database.
func NewPageRepo(db *sql.DB, codec PathCodec, logger *slog.Logger) *PageRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &PageRepo{db: db, codec: codec, logger: logger}
}

// migrations for the Page table, applied in order on every startup.
// transformsSplit and removeDataPath are one-time data rewrites from older
// releases; re-running them is a no-op on already-migrated rows.
func (r *PageRepo) migrations() []Migration {
	return []Migration{
		{Name: "addPageName", SQL: `ALTER TABLE Page ADD COLUMN name TEXT`},
		{Name: "addPageBrightness", SQL: `ALTER TABLE Page ADD COLUMN brightness INTEGER`},
		{Name: "addPageContrast", SQL: `ALTER TABLE Page ADD COLUMN contrast INTEGER`},
		{Name: "transformsSplit", SQL: `UPDATE Page SET transforms = replace(transforms, ',', '|')`},
		{Name: "removeDataPath", SQL: fmt.Sprintf(
			`UPDATE Page SET imagePath = replace(imagePath, %s, ''), sourceImagePath = replace(sourceImagePath, %s, '')`,
			quoteSQLString(r.codec.DataRoot), quoteSQLString(r.codec.DataRoot))},
		{Name: "addSourceImageWidth", SQL: `ALTER TABLE Page ADD COLUMN sourceImageWidth INTEGER`},
		{Name: "addSourceImageHeight", SQL: `ALTER TABLE Page ADD COLUMN sourceImageHeight INTEGER`},
		{Name: "addSourceImageRotation", SQL: `ALTER TABLE Page ADD COLUMN sourceImageRotation INTEGER`},
		{Name: "addQRCode", SQL: `ALTER TABLE Page ADD COLUMN qrcode TEXT`},
		{Name: "addColors", SQL: `ALTER TABLE Page ADD COLUMN colors TEXT`},
	}
}

// EnsureTable idempotently creates the Page table and applies migrations.
func (r *PageRepo) EnsureTable(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS "Page" (
		id TEXT PRIMARY KEY NOT NULL,
		createdDate BIGINT NOT NULL,
		modifiedDate BIGINT NOT NULL,
		pageIndex INTEGER,
		colorType TEXT,
		colorMatrix TEXT,
		transforms TEXT,
		rotation INTEGER DEFAULT 0,
		scale INTEGER DEFAULT 1,
		crop TEXT,
		ocrData TEXT,
		width INTEGER,
		height INTEGER,
		size INTEGER,
		sourceImagePath TEXT,
		imagePath TEXT,
		document_id TEXT,
		FOREIGN KEY(document_id) REFERENCES Document(id) ON DELETE CASCADE ON UPDATE CASCADE
	);`)
	if err != nil {
		return fmt.Errorf("failed to create Page table: %w", err)
	}
	applyMigrations(ctx, r.db, r.logger, "Page", r.migrations())
	return nil
}

// Create persists a new page and returns with the record's defaults stamped:
// timestamps, pageIndex forced to -1, rotation defaulting to 0 and scale to 1.
// Image paths are stored relative to the data root; the in-memory record
// keeps its absolute paths.
func (r *PageRepo) Create(ctx context.Context, page *PageRecord) error {
	if page.ID == "" {
		page.ID = uuid.New().String()
	}
	now := time.Now().UnixMilli()
	page.CreatedDate = now
	page.ModifiedDate = now
	page.PageIndex = -1
	if page.Scale == 0 {
		page.Scale = 1
	}

	cols := []string{
		"id", "document_id", "createdDate", "modifiedDate", "pageIndex", "name",
		"colorType", "transforms", "rotation", "scale", "width", "height", "size",
		"sourceImagePath", "imagePath",
		"sourceImageWidth", "sourceImageHeight", "sourceImageRotation",
	}
	args := []any{
		page.ID, page.DocumentID, page.CreatedDate, page.ModifiedDate, page.PageIndex, page.Name,
		page.ColorType, page.Transforms, page.Rotation, page.Scale, page.Width, page.Height, page.Size,
		r.codec.Strip(page.SourceImagePath), r.codec.Strip(page.ImagePath),
		page.SourceImageWidth, page.SourceImageHeight, page.SourceImageRotation,
	}

	// Structured fields: absent values are omitted from the statement, never
	// written as NULL.
	addJSON := func(col string, v any) error {
		encoded, err := encodeJSON("Page", col, v)
		if err != nil {
			return err
		}
		cols = append(cols, col)
		args = append(args, encoded)
		return nil
	}
	if page.Crop != nil {
		if err := addJSON("crop", page.Crop); err != nil {
			return err
		}
	}
	if page.ColorMatrix != nil {
		if err := addJSON("colorMatrix", page.ColorMatrix); err != nil {
			return err
		}
	}
	if page.OCRData != nil {
		if err := addJSON("ocrData", page.OCRData); err != nil {
			return err
		}
	}
	if page.QRCode != nil {
		if err := addJSON("qrcode", page.QRCode); err != nil {
			return err
		}
	}
	if page.Colors != nil {
		if err := addJSON("colors", page.Colors); err != nil {
			return err
		}
	}
	if page.Brightness != nil {
		cols = append(cols, "brightness")
		args = append(args, *page.Brightness)
	}
	if page.Contrast != nil {
		cols = append(cols, "contrast")
		args = append(args, *page.Contrast)
	}

	stmt := "INSERT INTO Page (" + joinColumns(cols) + ") VALUES (" + placeholders(len(cols)) + ")"
	if _, err := r.db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("failed to insert page: %w", err)
	}
	return nil
}

// Touch bumps the page's modifiedDate without changing any other field.
func (r *PageRepo) Touch(ctx context.Context, page *PageRecord) error {
	now := time.Now().UnixMilli()
	return r.Update(ctx, page, &PageUpdate{ModifiedDate: &now}, false)
}

// Update applies a typed partial update. Only supplied fields are written and
// the in-memory record is merged after the statement succeeds, so a failed
// write never leaves the record ahead of the database. When touchModified is
// true and the update does not carry its own modifiedDate, the current time
// is stamped.
func (r *PageRepo) Update(ctx context.Context, page *PageRecord, upd *PageUpdate, touchModified bool) error {
	if upd == nil {
		upd = &PageUpdate{}
	}
	if touchModified && upd.ModifiedDate == nil {
		now := time.Now().UnixMilli()
		upd.ModifiedDate = &now
	}

	var sets []string
	var args []any
	set := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}

	if upd.ModifiedDate != nil {
		set("modifiedDate", *upd.ModifiedDate)
	}
	if upd.Name != nil {
		set("name", *upd.Name)
	}
	if upd.ColorType != nil {
		set("colorType", *upd.ColorType)
	}
	if upd.Transforms != nil {
		set("transforms", *upd.Transforms)
	}
	if upd.Rotation != nil {
		set("rotation", *upd.Rotation)
	}
	if upd.Scale != nil {
		set("scale", *upd.Scale)
	}
	if upd.Brightness != nil {
		set("brightness", *upd.Brightness)
	}
	if upd.Contrast != nil {
		set("contrast", *upd.Contrast)
	}
	if upd.Width != nil {
		set("width", *upd.Width)
	}
	if upd.Height != nil {
		set("height", *upd.Height)
	}
	if upd.Size != nil {
		set("size", *upd.Size)
	}
	if upd.ImagePath != nil {
		set("imagePath", r.codec.Strip(*upd.ImagePath))
	}
	if upd.SourceImagePath != nil {
		set("sourceImagePath", r.codec.Strip(*upd.SourceImagePath))
	}
	if upd.Crop != nil {
		encoded, err := encodeJSON("Page", "crop", upd.Crop)
		if err != nil {
			return err
		}
		set("crop", encoded)
	}
	if upd.ColorMatrix != nil {
		encoded, err := encodeJSON("Page", "colorMatrix", *upd.ColorMatrix)
		if err != nil {
			return err
		}
		set("colorMatrix", encoded)
	}
	if upd.OCRData != nil {
		encoded, err := encodeJSON("Page", "ocrData", upd.OCRData)
		if err != nil {
			return err
		}
		set("ocrData", encoded)
	}
	if upd.QRCode != nil {
		encoded, err := encodeJSON("Page", "qrcode", *upd.QRCode)
		if err != nil {
			return err
		}
		set("qrcode", encoded)
	}
	if upd.Colors != nil {
		encoded, err := encodeJSON("Page", "colors", *upd.Colors)
		if err != nil {
			return err
		}
		set("colors", encoded)
	}

	if len(sets) == 0 {
		return nil
	}

	stmt := "UPDATE Page SET " + joinColumns(sets) + " WHERE id = ?"
	args = append(args, page.ID)
	if _, err := r.db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("failed to update page: %w", err)
	}

	mergePageUpdate(page, upd)
	return nil
}

// mergePageUpdate applies the written fields onto the in-memory record.
func mergePageUpdate(page *PageRecord, upd *PageUpdate) {
	if upd.ModifiedDate != nil {
		page.ModifiedDate = *upd.ModifiedDate
	}
	if upd.Name != nil {
		page.Name = *upd.Name
	}
	if upd.ColorType != nil {
		page.ColorType = *upd.ColorType
	}
	if upd.Transforms != nil {
		page.Transforms = *upd.Transforms
	}
	if upd.Rotation != nil {
		page.Rotation = *upd.Rotation
	}
	if upd.Scale != nil {
		page.Scale = *upd.Scale
	}
	if upd.Brightness != nil {
		page.Brightness = upd.Brightness
	}
	if upd.Contrast != nil {
		page.Contrast = upd.Contrast
	}
	if upd.Crop != nil {
		page.Crop = upd.Crop
	}
	if upd.ColorMatrix != nil {
		page.ColorMatrix = *upd.ColorMatrix
	}
	if upd.OCRData != nil {
		page.OCRData = upd.OCRData
	}
	if upd.QRCode != nil {
		page.QRCode = *upd.QRCode
	}
	if upd.Colors != nil {
		page.Colors = *upd.Colors
	}
	if upd.Width != nil {
		page.Width = *upd.Width
	}
	if upd.Height != nil {
		page.Height = *upd.Height
	}
	if upd.Size != nil {
		page.Size = *upd.Size
	}
	if upd.ImagePath != nil {
		page.ImagePath = *upd.ImagePath
	}
	if upd.SourceImagePath != nil {
		page.SourceImagePath = *upd.SourceImagePath
	}
}

// Get returns a page by id. Returns ErrNotFound if absent.
func (r *PageRepo) Get(ctx context.Context, id string) (*PageRecord, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+pageColumns+" FROM Page WHERE id = ?", id)
	page, err := r.scanPage(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return page, nil
}

// FindByDocument returns all pages belonging to a document, unordered.
// Ordering is the document store's responsibility.
func (r *PageRepo) FindByDocument(ctx context.Context, documentID string) ([]*PageRecord, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+pageColumns+" FROM Page WHERE document_id = ?", documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pages: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var pages []*PageRecord
	for rows.Next() {
		page, err := r.scanPage(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return pages, nil
}

// Delete removes the page row. Removing the image file from disk is the
// caller's responsibility.
func (r *PageRepo) Delete(ctx context.Context, page *PageRecord) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM Page WHERE id = ?", page.ID); err != nil {
		return fmt.Errorf("failed to delete page: %w", err)
	}
	return nil
}

// quoteSQLString renders s as a single-quoted SQL string literal. Only used
// for the data root in the removeDataPath migration, which cannot take bind
// arguments through the Migration type.
func quoteSQLString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanPage reads one page row, decoding structured fields and rehydrating
// paths to their absolute form.
func (r *PageRepo) scanPage(row rowScanner) (*PageRecord, error) {
	var page PageRecord
	var (
		name, colorType, colorMatrix, transforms sql.NullString
		crop, ocrData, qrcode, colors            sql.NullString
		sourceImagePath, imagePath               sql.NullString
		rotation, brightness, contrast           sql.NullInt64
		width, height, size                      sql.NullInt64
		srcWidth, srcHeight, srcRotation         sql.NullInt64
		scale                                    sql.NullFloat64
	)

	err := row.Scan(
		&page.ID, &page.DocumentID, &page.CreatedDate, &page.ModifiedDate, &page.PageIndex, &name,
		&colorType, &colorMatrix, &transforms, &rotation, &scale, &brightness, &contrast,
		&crop, &ocrData, &qrcode, &colors, &width, &height, &size,
		&sourceImagePath, &imagePath, &srcWidth, &srcHeight, &srcRotation,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan page: %w", err)
	}

	page.Name = name.String
	page.ColorType = colorType.String
	page.Transforms = transforms.String
	page.Rotation = int(rotation.Int64)
	page.Scale = scale.Float64
	if !scale.Valid {
		page.Scale = 1
	}
	if brightness.Valid {
		v := int(brightness.Int64)
		page.Brightness = &v
	}
	if contrast.Valid {
		v := int(contrast.Int64)
		page.Contrast = &v
	}
	page.Width = int(width.Int64)
	page.Height = int(height.Int64)
	page.Size = size.Int64
	page.SourceImageWidth = int(srcWidth.Int64)
	page.SourceImageHeight = int(srcHeight.Int64)
	page.SourceImageRotation = int(srcRotation.Int64)
	page.ImagePath = r.codec.Rehydrate(imagePath.String)
	page.SourceImagePath = r.codec.Rehydrate(sourceImagePath.String)

	if crop.Valid {
		var q Quad
		if err := decodeJSON("Page", "crop", page.ID, crop.String, &q); err != nil {
			return nil, err
		}
		page.Crop = &q
	}
	if colorMatrix.Valid {
		if err := decodeJSON("Page", "colorMatrix", page.ID, colorMatrix.String, &page.ColorMatrix); err != nil {
			return nil, err
		}
	}
	if ocrData.Valid {
		var o OCRData
		if err := decodeJSON("Page", "ocrData", page.ID, ocrData.String, &o); err != nil {
			return nil, err
		}
		page.OCRData = &o
	}
	if qrcode.Valid {
		if err := decodeJSON("Page", "qrcode", page.ID, qrcode.String, &page.QRCode); err != nil {
			return nil, err
		}
	}
	if colors.Valid {
		if err := decodeJSON("Page", "colors", page.ID, colors.String, &page.Colors); err != nil {
			return nil, err
		}
	}

	return &page, nil
}

// joinColumns joins a column or assignment list with commas.
func joinColumns(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}

// placeholders returns n comma-separated "?" markers.
func placeholders(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			out += ", "
		}
		out += "?"
	}
	return out
}
