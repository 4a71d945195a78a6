package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
)

const documentColumns = `id, createdDate, modifiedDate, name, _synced, pagesOrder, qrcodeOnly`

// DocumentRepo provides methods for document aggregate operations. It owns
// the Document and DocumentsTags tables and leans on PageRepo and TagRepo
// for the dependent entities.
type DocumentRepo struct {
	db     *sql.DB
	pages  *PageRepo
	tags   *TagRepo
	logger *slog.Logger
}

// NewDocumentRepo creates a new DocumentRepo bound to the shared connection.
func NewDocumentRepo(db *sql.DB, pages *PageRepo, tags *TagRepo, logger *slog.Logger) *DocumentRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentRepo{db: db, pages: pages, tags: tags, logger: logger}
}

func (r *DocumentRepo) migrations() []Migration {
	return []Migration{
		{Name: "addPagesOrder", SQL: `ALTER TABLE Document ADD COLUMN pagesOrder TEXT`},
		{Name: "addQRCodeOnly", SQL: `ALTER TABLE Document ADD COLUMN qrcodeOnly INTEGER DEFAULT 0`},
	}
}

// EnsureTable idempotently creates the Document and DocumentsTags tables and
// applies migrations. Both join-table foreign keys cascade on delete, which
// is what makes unordered bulk deletion safe.
func (r *DocumentRepo) EnsureTable(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS "Document" (
		id TEXT PRIMARY KEY NOT NULL,
		createdDate BIGINT NOT NULL,
		modifiedDate BIGINT NOT NULL,
		name TEXT,
		_synced INTEGER DEFAULT 0
	);`)
	if err != nil {
		return fmt.Errorf("failed to create Document table: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS "DocumentsTags" (
		document_id TEXT,
		tag_id TEXT,
		PRIMARY KEY(document_id, tag_id),
		FOREIGN KEY(document_id) REFERENCES Document(id) ON DELETE CASCADE,
		FOREIGN KEY(tag_id) REFERENCES Tag(id) ON DELETE CASCADE
	);`)
	if err != nil {
		return fmt.Errorf("failed to create DocumentsTags table: %w", err)
	}
	applyMigrations(ctx, r.db, r.logger, "Document", r.migrations())
	return nil
}

// Create persists a new document row. Pages are attached separately; this
// never creates page rows.
func (r *DocumentRepo) Create(ctx context.Context, doc *DocumentRecord) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	now := time.Now().UnixMilli()
	doc.CreatedDate = now
	doc.ModifiedDate = now
	doc.Synced = 0

	cols := []string{"id", "createdDate", "modifiedDate", "name", "_synced", "qrcodeOnly"}
	args := []any{doc.ID, doc.CreatedDate, doc.ModifiedDate, doc.Name, doc.Synced, doc.QRCodeOnly}
	if doc.PagesOrder != nil {
		encoded, err := encodeJSON("Document", "pagesOrder", doc.PagesOrder)
		if err != nil {
			return err
		}
		cols = append(cols, "pagesOrder")
		args = append(args, encoded)
	}

	stmt := "INSERT INTO Document (" + joinColumns(cols) + ") VALUES (" + placeholders(len(cols)) + ")"
	if _, err := r.db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

// Touch bumps modifiedDate and resets the sync flag without changing any
// other field. Used to mark a document dirty after an aggregate mutation.
func (r *DocumentRepo) Touch(ctx context.Context, doc *DocumentRecord) error {
	return r.Update(ctx, doc, &DocumentUpdate{}, true)
}

// Update applies a typed partial update. Unless the caller supplies Synced,
// it is forced to 0: any mutation invalidates external sync state. The
// in-memory record is merged only after the statement succeeds.
func (r *DocumentRepo) Update(ctx context.Context, doc *DocumentRecord, upd *DocumentUpdate, touchModified bool) error {
	if upd == nil {
		upd = &DocumentUpdate{}
	}
	if touchModified && upd.ModifiedDate == nil {
		now := time.Now().UnixMilli()
		upd.ModifiedDate = &now
	}
	if upd.Synced == nil {
		zero := 0
		upd.Synced = &zero
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
	if upd.Synced != nil {
		set("_synced", *upd.Synced)
	}
	if upd.QRCodeOnly != nil {
		set("qrcodeOnly", *upd.QRCodeOnly)
	}
	if upd.PagesOrder != nil {
		encoded, err := encodeJSON("Document", "pagesOrder", *upd.PagesOrder)
		if err != nil {
			return err
		}
		set("pagesOrder", encoded)
	}

	stmt := "UPDATE Document SET " + joinColumns(sets) + " WHERE id = ?"
	args = append(args, doc.ID)
	if _, err := r.db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}

	if upd.ModifiedDate != nil {
		doc.ModifiedDate = *upd.ModifiedDate
	}
	if upd.Name != nil {
		doc.Name = *upd.Name
	}
	if upd.Synced != nil {
		doc.Synced = *upd.Synced
	}
	if upd.QRCodeOnly != nil {
		doc.QRCodeOnly = *upd.QRCodeOnly
	}
	if upd.PagesOrder != nil {
		doc.PagesOrder = *upd.PagesOrder
	}
	return nil
}

// LoadTags populates doc.Tags with the tag ids associated through the join
// table.
func (r *DocumentRepo) LoadTags(ctx context.Context, doc *DocumentRecord) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM Tag WHERE id IN (
			SELECT tag_id FROM DocumentsTags WHERE document_id = ?
		)`, doc.ID)
	if err != nil {
		return fmt.Errorf("failed to query document tags: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var tags []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("failed to scan tag id: %w", err)
		}
		tags = append(tags, id)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("row iteration error: %w", err)
	}
	doc.Tags = tags
	return nil
}

// AddTag associates a tag with the document, creating the tag on first use.
// The join insert is idempotent and the in-memory list never gains a
// duplicate. Tag association is best-effort: failures are logged, never
// propagated.
func (r *DocumentRepo) AddTag(ctx context.Context, doc *DocumentRecord, tagID string) {
	if _, err := r.tags.GetOrCreate(ctx, tagID); err != nil {
		r.logger.ErrorContext(ctx, "failed to ensure tag", "tag", tagID, "error", err)
		return
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO DocumentsTags (document_id, tag_id) VALUES (?, ?)
		 ON CONFLICT (document_id, tag_id) DO NOTHING`,
		doc.ID, tagID,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to link tag", "document", doc.ID, "tag", tagID, "error", err)
		return
	}
	for _, existing := range doc.Tags {
		if existing == tagID {
			return
		}
	}
	doc.Tags = append(doc.Tags, tagID)
}

// Get returns a fully hydrated document aggregate. Returns ErrNotFound if
// the row is absent.
func (r *DocumentRepo) Get(ctx context.Context, id string) (*DocumentRecord, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+documentColumns+" FROM Document WHERE id = ?", id)
	doc, err := r.scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := r.hydrate(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// SearchCriteria filters document listings. Zero values mean "no filter".
type SearchCriteria struct {
	// Name matches documents whose name contains the given substring.
	Name string
	// TagID restricts results to documents carrying the tag.
	TagID string
}

// Search returns hydrated documents matching the criteria, newest first.
// Documents that resolve to zero pages are dropped: such rows indicate a
// prior partial failure and must never surface to callers.
func (r *DocumentRepo) Search(ctx context.Context, criteria SearchCriteria) ([]*DocumentRecord, error) {
	query := "SELECT " + documentColumns + " FROM Document"
	var where []string
	var args []any
	if criteria.Name != "" {
		where = append(where, "name LIKE ?")
		args = append(args, "%"+criteria.Name+"%")
	}
	if criteria.TagID != "" {
		where = append(where, "id IN (SELECT document_id FROM DocumentsTags WHERE tag_id = ?)")
		args = append(args, criteria.TagID)
	}
	for i, w := range where {
		if i == 0 {
			query += " WHERE " + w
		} else {
			query += " AND " + w
		}
	}
	query += " ORDER BY modifiedDate DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var docs []*DocumentRecord
	for rows.Next() {
		doc, err := r.scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	result := make([]*DocumentRecord, 0, len(docs))
	for _, doc := range docs {
		if err := r.hydrate(ctx, doc); err != nil {
			return nil, err
		}
		if len(doc.Pages) == 0 {
			continue
		}
		result = append(result, doc)
	}
	return result, nil
}

// Delete removes the document row. The Page and DocumentsTags foreign keys
// cascade, so dependent rows need no explicit cleanup here; bulk deletion
// lives on the documents service.
func (r *DocumentRepo) Delete(ctx context.Context, doc *DocumentRecord) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM Document WHERE id = ?", doc.ID); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// scanDocument reads one document row, decoding pagesOrder.
func (r *DocumentRepo) scanDocument(row rowScanner) (*DocumentRecord, error) {
	var doc DocumentRecord
	var name, pagesOrder sql.NullString
	var qrcodeOnly sql.NullInt64

	err := row.Scan(&doc.ID, &doc.CreatedDate, &doc.ModifiedDate, &name, &doc.Synced, &pagesOrder, &qrcodeOnly)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan document: %w", err)
	}

	doc.Name = name.String
	doc.QRCodeOnly = qrcodeOnly.Int64 != 0
	if pagesOrder.Valid && pagesOrder.String != "" {
		if err := decodeJSON("Document", "pagesOrder", doc.ID, pagesOrder.String, &doc.PagesOrder); err != nil {
			return nil, err
		}
	}
	return &doc, nil
}

// hydrate loads the document's pages and resolves their order.
//
// When pagesOrder exists it is authoritative: pages are sorted by their id's
// position in the list, and pages missing from the list keep their relative
// order after all listed pages. When pagesOrder is absent the pages sort by
// the legacy pageIndex and the computed order is persisted back onto the row,
// a one-time backfill for documents predating the pagesOrder column. The
// backfill deliberately neither advances modifiedDate nor resets the sync
// flag: it is a storage-format repair, not a user mutation.
func (r *DocumentRepo) hydrate(ctx context.Context, doc *DocumentRecord) error {
	pages, err := r.pages.FindByDocument(ctx, doc.ID)
	if err != nil {
		return err
	}
	if len(pages) == 0 {
		doc.Pages = nil
		return nil
	}

	if doc.PagesOrder != nil {
		position := make(map[string]int, len(doc.PagesOrder))
		for i, id := range doc.PagesOrder {
			position[id] = i
		}
		sort.SliceStable(pages, func(a, b int) bool {
			pa, aok := position[pages[a].ID]
			pb, bok := position[pages[b].ID]
			if aok && bok {
				return pa < pb
			}
			// Pages absent from pagesOrder sort after all ordered pages,
			// keeping their relative order.
			return aok && !bok
		})
		doc.Pages = pages
		return nil
	}

	sort.SliceStable(pages, func(a, b int) bool {
		return pages[a].PageIndex < pages[b].PageIndex
	})
	doc.Pages = pages

	order := make([]string, len(pages))
	for i, p := range pages {
		order[i] = p.ID
	}
	synced := doc.Synced
	return r.Update(ctx, doc, &DocumentUpdate{PagesOrder: &order, Synced: &synced}, false)
}
