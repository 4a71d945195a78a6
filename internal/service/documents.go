package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"paperscan/internal/config"
	"paperscan/internal/storage"
)

const (
	dbFileName        = "db.sqlite"
	dataFolderName    = "data"
	settingsFileName  = "settings.json"
	rootFolderSetting = "root_data_folder"
)

// DocumentsService owns the storage connection and the three stores, and is
// the process-wide entry point for document lifecycle operations. It has an
// explicit stopped/started lifecycle; Start and Stop are both idempotent.
type DocumentsService struct {
	cfg    *config.Config
	logger *slog.Logger

	mu      sync.Mutex
	started bool
	ownsDB  bool
	db      *sql.DB

	// RootDataFolder holds the database file and the data folder; DataFolder
	// is where page images live.
	RootDataFolder string
	DataFolder     string

	Tags      *storage.TagRepo
	Pages     *storage.PageRepo
	Documents *storage.DocumentRepo

	assets AssetRemover
	events emitter
}

// NewDocumentsService creates a stopped service. When assets is nil a
// disk-backed remover rooted at the resolved data folder is used.
func NewDocumentsService(cfg *config.Config, assets AssetRemover, logger *slog.Logger) *DocumentsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentsService{cfg: cfg, assets: assets, logger: logger}
}

// Subscribe registers a listener for service events and returns an
// unsubscribe function.
func (s *DocumentsService) Subscribe(fn func(Event)) func() {
	return s.events.subscribe(fn)
}

// Started reports whether Start has completed.
func (s *DocumentsService) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Start resolves the root data folder, opens (or adopts) the storage
// connection, builds the stores and ensures all tables exist in dependency
// order. It emits the started event on completion and is a no-op when
// already started.
//
// When existing is non-nil the service uses that connection and will not
// close it on Stop; this is how tests and embedding processes share a
// database.
func (s *DocumentsService) Start(ctx context.Context, existing *sql.DB) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	root, err := s.resolveRootDataFolder()
	if err != nil {
		return WrapError(err, "failed to resolve root data folder")
	}
	s.RootDataFolder = root
	s.DataFolder = filepath.Join(root, dataFolderName)
	if err := os.MkdirAll(s.DataFolder, 0o755); err != nil {
		return WrapError(err, "failed to create data folder")
	}

	if existing != nil {
		s.db = existing
		s.ownsDB = false
	} else {
		db, err := storage.New(filepath.Join(root, dbFileName))
		if err != nil {
			return WrapError(err, "failed to open database")
		}
		s.db = db
		s.ownsDB = true
	}

	codec := storage.PathCodec{DataRoot: s.DataFolder}
	s.Tags = storage.NewTagRepo(s.db)
	s.Pages = storage.NewPageRepo(s.db, codec, s.logger)
	s.Documents = storage.NewDocumentRepo(s.db, s.Pages, s.Tags, s.logger)

	// Document (and its join table) first: Page's foreign key references it.
	if err := s.Documents.EnsureTable(ctx); err != nil {
		return err
	}
	if err := s.Pages.EnsureTable(ctx); err != nil {
		return err
	}
	if err := s.Tags.EnsureTable(ctx); err != nil {
		return err
	}

	if s.assets == nil {
		s.assets = &diskAssetRemover{dataFolder: s.DataFolder}
	}

	s.logger.InfoContext(ctx, "documents service started", "root", root)
	s.started = true
	s.events.emit(Event{Name: EventStarted})
	return nil
}

// Stop releases the storage connection if the service owns it. Idempotent.
func (s *DocumentsService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.started = false
	if s.ownsDB && s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Warn("failed to close database", "error", err)
		}
	}
	s.db = nil
	s.logger.Info("documents service stopped")
}

// resolveRootDataFolder picks the base directory. An explicitly configured
// folder wins. Otherwise the previously persisted choice is reused as long
// as the directory still exists; the persisted value is dropped when it
// does not, mirroring a data folder that moved between app upgrades.
func (s *DocumentsService) resolveRootDataFolder() (string, error) {
	if s.cfg.RootDataFolder != "" {
		return s.cfg.RootDataFolder, nil
	}

	confDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	appDir := filepath.Join(confDir, "paperscan")
	settingsPath := filepath.Join(appDir, settingsFileName)

	settings := map[string]string{}
	if data, err := os.ReadFile(settingsPath); err == nil {
		// Unreadable settings are treated the same as missing ones.
		_ = json.Unmarshal(data, &settings)
	}
	if root := settings[rootFolderSetting]; root != "" {
		if info, err := os.Stat(root); err == nil && info.IsDir() {
			return root, nil
		}
	}

	root := filepath.Join(appDir, "documents")
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", err
	}
	settings[rootFolderSetting] = root
	data, err := json.Marshal(settings)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(settingsPath, data, 0o644); err != nil {
		return "", err
	}
	return root, nil
}

// DeleteDocuments removes the given documents: all page rows and document
// rows are deleted concurrently (the join-table cleanup cascades at the
// storage layer, so no ordering is required), then each document's on-disk
// assets are removed, then a single deletion event carrying the full list is
// emitted. Any individual row deletion failure fails the whole call; there
// is no per-document retry or rollback.
func (s *DocumentsService) DeleteDocuments(ctx context.Context, documents []*storage.DocumentRecord) error {
	if !s.Started() {
		return ErrNotStarted
	}

	eg, gctx := errgroup.WithContext(ctx)
	for _, doc := range documents {
		doc := doc
		for _, page := range doc.Pages {
			page := page
			eg.Go(func() error {
				return s.Pages.Delete(gctx, page)
			})
		}
		eg.Go(func() error {
			return s.Documents.Delete(gctx, doc)
		})
	}
	if err := eg.Wait(); err != nil {
		return WrapError(err, "failed to delete documents")
	}

	// Asset removal is best-effort: the rows are gone, a leftover file must
	// not resurrect the document.
	for _, doc := range documents {
		if err := s.assets.RemoveDocumentAssets(ctx, doc); err != nil {
			s.logger.WarnContext(ctx, "failed to remove document assets", "document", doc.ID, "error", err)
		}
	}

	s.events.emit(Event{Name: EventDocumentsDeleted, Documents: documents})
	return nil
}

// SaveDocument marks the document dirty: modifiedDate advances and the sync
// flag resets, without changing any other field.
func (s *DocumentsService) SaveDocument(ctx context.Context, doc *storage.DocumentRecord) error {
	if !s.Started() {
		return ErrNotStarted
	}
	if err := s.Documents.Touch(ctx, doc); err != nil {
		return err
	}
	s.events.emit(Event{Name: EventDocumentUpdated, Document: doc})
	return nil
}

// diskAssetRemover deletes page images and per-document folders under the
// data folder.
type diskAssetRemover struct {
	dataFolder string
}

func (d *diskAssetRemover) RemoveDocumentAssets(_ context.Context, doc *storage.DocumentRecord) error {
	err := os.RemoveAll(filepath.Join(d.dataFolder, doc.ID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove document folder: %w", err)
	}
	return nil
}

func (d *diskAssetRemover) RemovePageAssets(_ context.Context, page *storage.PageRecord) error {
	for _, p := range []string{page.ImagePath, page.SourceImagePath} {
		if p == "" || !strings.HasPrefix(p, d.dataFolder) {
			// Never delete files outside the data folder: source images can
			// point at the user's originals.
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove page image: %w", err)
		}
	}
	return nil
}
