package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"landing/internal/config"
)

// DatabaseFile is the SQLite file name inside the log directory.
const DatabaseFile = "landings.db"

// dsnPragmas are applied by the modernc driver on every new connection.
var dsnPragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"foreign_keys(1)",
}

const (
	// SQLITE_BUSY primary result code.
	sqliteBusy = 5

	busyAttempts   = 5
	busyFirstDelay = 10 * time.Millisecond
	busyDelayCap   = 200 * time.Millisecond
)

const landingColumns = "landing_id, owner_id, title, prompt, asset_count, sound_count, missing_count, created_at, completed_at, duration_ms"

// Store manages landing records backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates the configured directories and opens, or creates, the
// records database in the log directory.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("records: %w", err)
	}
	path := filepath.Join(cfg.Paths.LogDir, DatabaseFile)
	query := url.Values{"_pragma": dsnPragmas}
	db, err := sql.Open("sqlite", "file:"+path+"?"+query.Encode())
	if err != nil {
		return nil, fmt.Errorf("records: open %s: %w", path, err)
	}
	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("records: %w", err)
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Insert records a completed landing. Re-inserting the same landing ID
// replaces the previous row.
func (s *Store) Insert(ctx context.Context, rec *Landing) error {
	if rec == nil {
		return errors.New("record is nil")
	}
	if strings.TrimSpace(rec.LandingID) == "" {
		return errors.New("landing id is required")
	}
	if rec.CompletedAt.IsZero() {
		rec.CompletedAt = time.Now().UTC()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = rec.CompletedAt
	}
	return s.execWithRetry(ctx,
		`INSERT INTO landings (`+landingColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(landing_id) DO UPDATE SET
             owner_id = excluded.owner_id,
             title = excluded.title,
             prompt = excluded.prompt,
             asset_count = excluded.asset_count,
             sound_count = excluded.sound_count,
             missing_count = excluded.missing_count,
             created_at = excluded.created_at,
             completed_at = excluded.completed_at,
             duration_ms = excluded.duration_ms`,
		rec.LandingID,
		rec.OwnerID,
		nullableString(rec.Title),
		nullableString(rec.Prompt),
		rec.AssetCount,
		rec.SoundCount,
		rec.MissingCount,
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		rec.CompletedAt.UTC().Format(time.RFC3339Nano),
		rec.DurationMs,
	)
}

// GetByID fetches a landing record. A missing row returns nil without error.
func (s *Store) GetByID(ctx context.Context, landingID string) (*Landing, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+landingColumns+` FROM landings WHERE landing_id = ?`, landingID)
	rec, err := scanLanding(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get landing: %w", err)
	}
	return rec, nil
}

// ListByOwner returns an owner's landings, most recently completed first.
func (s *Store) ListByOwner(ctx context.Context, ownerID int64) ([]*Landing, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+landingColumns+` FROM landings WHERE owner_id = ? ORDER BY completed_at DESC, landing_id`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list landings: %w", err)
	}
	defer rows.Close()

	var out []*Landing
	for rows.Next() {
		rec, err := scanLanding(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Delete removes a landing owned by ownerID and reports whether a row existed.
func (s *Store) Delete(ctx context.Context, landingID string, ownerID int64) (bool, error) {
	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM landings WHERE landing_id = ? AND owner_id = ?`, landingID, ownerID)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return false, fmt.Errorf("delete landing: %w", err)
	}
	return affected > 0, nil
}

// Count returns the total number of stored landings.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM landings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count landings: %w", err)
	}
	return n, nil
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) error {
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

// retryOnBusy reruns op with doubling backoff while SQLite reports the
// database as locked.
func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyFirstDelay
	for attempt := 1; ; attempt++ {
		err := op()
		if err == nil || attempt == busyAttempts || !isSQLiteBusy(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, busyDelayCap)
	}
}

func isSQLiteBusy(err error) bool {
	var coded interface{ Code() int }
	if errors.As(err, &coded) {
		// Extended codes keep the primary code in the low byte.
		return coded.Code()&0xff == sqliteBusy
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
