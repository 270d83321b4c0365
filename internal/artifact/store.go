package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"landing/internal/fileutil"
	"landing/internal/logging"
	"landing/internal/services"
)

const (
	indexFile    = "index.html"
	metadataFile = "metadata.json"
	assetsDir    = "assets"
	soundsDir    = "sounds"
)

// FS is the filesystem surface used by the store.
type FS interface {
	MkdirAll(path string, perm fs.FileMode) error
	WriteFile(path string, data []byte, perm fs.FileMode) error
	CopyFile(src, dst string) error
	ReadFile(path string) ([]byte, error)
	ReadDir(path string) ([]fs.DirEntry, error)
	Stat(path string) (fs.FileInfo, error)
	Open(path string) (io.ReadCloser, error)
	RemoveAll(path string) error
}

type osFS struct{}

func (osFS) MkdirAll(path string, perm fs.FileMode) error { return os.MkdirAll(path, perm) }

func (osFS) WriteFile(path string, data []byte, perm fs.FileMode) error {
	return fileutil.WriteFileAtomic(path, data, perm)
}

func (osFS) CopyFile(src, dst string) error { return fileutil.CopyFile(src, dst) }

func (osFS) ReadFile(path string) ([]byte, error) { return os.ReadFile(path) }

func (osFS) ReadDir(path string) ([]fs.DirEntry, error) { return os.ReadDir(path) }

func (osFS) Stat(path string) (fs.FileInfo, error) { return os.Stat(path) }

func (osFS) Open(path string) (io.ReadCloser, error) { return os.Open(path) }

func (osFS) RemoveAll(path string) error { return os.RemoveAll(path) }

// Metadata is persisted as metadata.json inside each bundle.
type Metadata struct {
	LandingID     string          `json:"landingId"`
	OwnerID       int64           `json:"ownerId"`
	Title         string          `json:"title"`
	Prompt        string          `json:"prompt,omitempty"`
	Analysis      json.RawMessage `json:"analysis,omitempty"`
	Palette       json.RawMessage `json:"palette,omitempty"`
	Assets        []string        `json:"assets"`
	Sounds        []string        `json:"sounds"`
	MissingAssets []string        `json:"missingAssets,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	CompletedAt   time.Time       `json:"completedAt"`
	DurationMs    int64           `json:"durationMs,omitempty"`
}

// Bundle describes a materialized landing on disk.
type Bundle struct {
	LandingID string
	OwnerID   int64
	Dir       string
	Metadata  Metadata
}

// IndexPath returns the bundle's HTML entry point.
func (b Bundle) IndexPath() string {
	return filepath.Join(b.Dir, indexFile)
}

// Option customizes a Store.
type Option func(*Store)

// WithFS swaps the filesystem implementation.
func WithFS(fsys FS) Option {
	return func(s *Store) {
		if fsys != nil {
			s.fs = fsys
		}
	}
}

// Store manages bundles beneath a fixed root directory.
type Store struct {
	root   string
	fs     FS
	logger *slog.Logger
}

// New constructs a store rooted at root. The root is cleaned and made absolute.
func New(root string, logger *slog.Logger, opts ...Option) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "artifact", "init", "artifact root is required", nil)
	}
	abs, err := filepath.Abs(filepath.Clean(root))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "artifact", "init", "resolve artifact root", err)
	}
	s := &Store{
		root:   abs,
		fs:     osFS{},
		logger: logging.NewComponentLogger(logger, "artifact"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Root returns the absolute artifact root.
func (s *Store) Root() string {
	return s.root
}

func (s *Store) bundleDir(landingID string, ownerID int64) string {
	return filepath.Join(s.root, strconv.FormatInt(ownerID, 10), landingID)
}

// checkIDs validates both identifiers and audit logs rejections.
func (s *Store) checkIDs(operation, landingID string, ownerID int64) error {
	if err := ValidateLandingID(landingID); err != nil {
		s.auditRejectedID(operation, landingID, err)
		return err
	}
	if err := ValidateOwnerID(ownerID); err != nil {
		s.auditRejectedID(operation, strconv.FormatInt(ownerID, 10), err)
		return err
	}
	return nil
}

func (s *Store) auditRejectedID(operation, raw string, err error) {
	logging.WarnWithContext(s.logger, "identifier rejected", "identifier_rejected",
		logging.String("operation", operation),
		logging.String("raw_value", truncate(raw, 128)),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "client supplied a malformed landing or owner id"),
		logging.String(logging.FieldImpact, "request refused before any filesystem access"),
	)
}

// Get loads a bundle owned by ownerID. A missing bundle, or one owned by a
// different user, returns nil without error.
func (s *Store) Get(landingID string, ownerID int64) (*Bundle, error) {
	if err := s.checkIDs("get", landingID, ownerID); err != nil {
		return nil, err
	}
	return s.load(s.bundleDir(landingID, ownerID), landingID, ownerID)
}

// GetByOpaqueID finds a bundle by landing ID alone. It exists for anonymous
// preview asset serving where the unguessable ID is the capability.
func (s *Store) GetByOpaqueID(landingID string) (*Bundle, error) {
	if err := ValidateLandingID(landingID); err != nil {
		s.auditRejectedID("get_by_opaque_id", landingID, err)
		return nil, err
	}
	entries, err := s.fs.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, services.Wrap(services.ErrTransient, "artifact", "scan root", "", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		ownerID, err := ParseOwnerID(entry.Name())
		if err != nil {
			continue
		}
		bundle, err := s.load(s.bundleDir(landingID, ownerID), landingID, ownerID)
		if err != nil {
			return nil, err
		}
		if bundle != nil {
			return bundle, nil
		}
	}
	return nil, nil
}

// List returns every complete bundle owned by ownerID, newest first.
func (s *Store) List(ownerID int64) ([]Bundle, error) {
	if err := ValidateOwnerID(ownerID); err != nil {
		s.auditRejectedID("list", strconv.FormatInt(ownerID, 10), err)
		return nil, err
	}
	ownerDir := filepath.Join(s.root, strconv.FormatInt(ownerID, 10))
	entries, err := s.fs.ReadDir(ownerDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, services.Wrap(services.ErrTransient, "artifact", "list", "", err)
	}
	bundles := make([]Bundle, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || ValidateLandingID(entry.Name()) != nil {
			continue
		}
		bundle, err := s.load(filepath.Join(ownerDir, entry.Name()), entry.Name(), ownerID)
		if err != nil {
			s.logger.Warn("skipping unreadable bundle",
				logging.String(logging.FieldLandingID, entry.Name()),
				logging.Error(err),
				logging.String(logging.FieldEventType, "bundle_unreadable"),
				logging.String(logging.FieldErrorHint, "inspect or delete the bundle directory"),
				logging.String(logging.FieldImpact, "bundle hidden from listings"),
			)
			continue
		}
		if bundle != nil {
			bundles = append(bundles, *bundle)
		}
	}
	slices.SortFunc(bundles, func(a, b Bundle) int {
		if c := b.Metadata.CreatedAt.Compare(a.Metadata.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.LandingID, b.LandingID)
	})
	return bundles, nil
}

// Delete removes a bundle. It reports false when nothing was there.
func (s *Store) Delete(landingID string, ownerID int64) (bool, error) {
	if err := s.checkIDs("delete", landingID, ownerID); err != nil {
		return false, err
	}
	dir := s.bundleDir(landingID, ownerID)
	if _, err := s.fs.Stat(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, services.Wrap(services.ErrTransient, "artifact", "delete", "stat bundle", err)
	}
	if err := s.fs.RemoveAll(dir); err != nil {
		return false, services.Wrap(services.ErrTransient, "artifact", "delete", "remove bundle", err)
	}
	s.logger.Info("bundle deleted",
		logging.String(logging.FieldLandingID, landingID),
		logging.Int64(logging.FieldOwnerID, ownerID),
		logging.String(logging.FieldEventType, "bundle_deleted"),
	)
	return true, nil
}

// ReadIndex returns the bundle's index.html.
func (s *Store) ReadIndex(landingID string, ownerID int64) ([]byte, error) {
	bundle, err := s.Get(landingID, ownerID)
	if err != nil {
		return nil, err
	}
	if bundle == nil {
		return nil, services.Wrap(services.ErrNotFound, "artifact", "read index", "landing not found", nil)
	}
	data, err := s.fs.ReadFile(bundle.IndexPath())
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "artifact", "read index", "", err)
	}
	return data, nil
}

func (s *Store) load(dir, landingID string, ownerID int64) (*Bundle, error) {
	data, err := s.fs.ReadFile(filepath.Join(dir, metadataFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, services.Wrap(services.ErrTransient, "artifact", "read metadata", "", err)
	}
	var meta Metadata
	if err := sonic.ConfigStd.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Join(dir, metadataFile), err)
	}
	// The path is authoritative for identity.
	meta.LandingID = landingID
	meta.OwnerID = ownerID
	return &Bundle{LandingID: landingID, OwnerID: ownerID, Dir: dir, Metadata: meta}, nil
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit] + "..."
}
