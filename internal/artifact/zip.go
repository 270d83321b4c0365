package artifact

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"landing/internal/logging"
	"landing/internal/services"
)

// storedExtensions are already compressed and are written without deflate.
var storedExtensions = []string{".webp", ".png", ".jpg", ".jpeg", ".gif", ".mp3", ".ogg"}

// ZipStream returns a reader producing a zip archive of the bundle: index.html
// at the root plus the assets/ and sounds/ trees. The archive is written by a
// goroutine into a pipe, so it is never held in memory. Closing the reader
// early, or cancelling ctx, stops the writer.
func (s *Store) ZipStream(ctx context.Context, landingID string, ownerID int64) (io.ReadCloser, error) {
	bundle, err := s.Get(landingID, ownerID)
	if err != nil {
		return nil, err
	}
	if bundle == nil {
		return nil, services.Wrap(services.ErrNotFound, "artifact", "zip", "landing not found", nil)
	}

	pr, pw := io.Pipe()
	go func() {
		err := s.writeZip(ctx, pw, bundle)
		if err != nil {
			logging.WarnWithContext(s.logger, "zip stream aborted", "zip_stream_failed",
				logging.String(logging.FieldLandingID, landingID),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "client may have disconnected"),
				logging.String(logging.FieldImpact, "download incomplete"),
			)
		}
		_ = pw.CloseWithError(err)
	}()
	return pr, nil
}

func (s *Store) writeZip(ctx context.Context, w io.Writer, bundle *Bundle) error {
	zw := zip.NewWriter(w)
	if err := s.addZipEntry(zw, bundle.IndexPath(), indexFile); err != nil {
		return err
	}
	for _, sub := range []string{assetsDir, soundsDir} {
		entries, err := s.fs.ReadDir(filepath.Join(bundle.Dir, sub))
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !entry.Type().IsRegular() {
				continue
			}
			if err := s.addZipEntry(zw, filepath.Join(bundle.Dir, sub, entry.Name()), sub+"/"+entry.Name()); err != nil {
				return err
			}
		}
	}
	return zw.Close()
}

func (s *Store) addZipEntry(zw *zip.Writer, path, name string) error {
	src, err := s.fs.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer src.Close()

	method := zip.Deflate
	if slices.Contains(storedExtensions, strings.ToLower(filepath.Ext(name))) {
		method = zip.Store
	}
	header := &zip.FileHeader{Name: name, Method: method}
	if info, err := s.fs.Stat(path); err == nil {
		header.Modified = info.ModTime()
	}
	dst, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("zip header %s: %w", name, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("zip copy %s: %w", name, err)
	}
	return nil
}
