package artifact

import (
	"context"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"landing/internal/logging"
	"landing/internal/services"
)

// AssetFile is a generated file waiting to be copied into a bundle.
type AssetFile struct {
	Key        string
	SourcePath string
}

// AssembleRequest carries everything needed to materialize a bundle.
type AssembleRequest struct {
	LandingID string
	OwnerID   int64
	HTML      string
	Assets    []AssetFile
	Sounds    []AssetFile
	Metadata  Metadata
}

// Assemble creates the bundle tree, copies assets and sounds, rewrites their
// references in the HTML, and writes index.html and metadata.json.
//
// A failed asset copy is logged and leaves that placeholder untouched. Failing
// to write index.html or metadata.json is fatal and removes the partial
// bundle so it is never mistaken for a finished one.
func (s *Store) Assemble(ctx context.Context, req AssembleRequest) (*Bundle, error) {
	if err := s.checkIDs("assemble", req.LandingID, req.OwnerID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.HTML) == "" {
		return nil, services.Wrap(services.ErrValidation, "artifact", "assemble", "html is empty", nil)
	}

	logger := logging.WithContext(ctx, s.logger).With(
		logging.String(logging.FieldLandingID, req.LandingID),
		logging.Int64(logging.FieldOwnerID, req.OwnerID),
	)
	dir := s.bundleDir(req.LandingID, req.OwnerID)
	for _, sub := range []string{dir, filepath.Join(dir, assetsDir), filepath.Join(dir, soundsDir)} {
		if err := s.fs.MkdirAll(sub, 0o755); err != nil {
			return nil, services.Wrap(services.ErrTransient, "artifact", "assemble", "create bundle directories", err)
		}
	}

	targets := make(map[string]string, len(req.Assets)+len(req.Sounds))
	// Entries the caller already knows are missing, such as assets that
	// failed to generate, are kept alongside copy failures.
	missing := slices.Clone(req.Metadata.MissingAssets)
	assets := s.copyFiles(ctx, logger, dir, assetsDir, req.Assets, targets, &missing)
	sounds := s.copyFiles(ctx, logger, dir, soundsDir, req.Sounds, targets, &missing)

	html := RewriteAssetRefs(req.HTML, targets)
	if err := s.fs.WriteFile(filepath.Join(dir, indexFile), []byte(html), 0o644); err != nil {
		s.discard(logger, dir)
		return nil, services.Wrap(services.ErrTransient, "artifact", "assemble", "write index.html", err)
	}

	meta := req.Metadata
	meta.LandingID = req.LandingID
	meta.OwnerID = req.OwnerID
	meta.Assets = assets
	meta.Sounds = sounds
	meta.MissingAssets = missing
	if meta.CompletedAt.IsZero() {
		meta.CompletedAt = time.Now().UTC()
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = meta.CompletedAt
	}
	data, err := sonic.ConfigStd.MarshalIndent(meta, "", "  ")
	if err != nil {
		s.discard(logger, dir)
		return nil, services.Wrap(services.ErrTransient, "artifact", "assemble", "encode metadata", err)
	}
	if err := s.fs.WriteFile(filepath.Join(dir, metadataFile), data, 0o644); err != nil {
		s.discard(logger, dir)
		return nil, services.Wrap(services.ErrTransient, "artifact", "assemble", "write metadata.json", err)
	}

	logger.Info("bundle assembled",
		logging.Int("asset_count", len(assets)),
		logging.Int("sound_count", len(sounds)),
		logging.Int("missing_count", len(missing)),
		logging.String(logging.FieldEventType, "bundle_assembled"),
	)
	return &Bundle{LandingID: req.LandingID, OwnerID: req.OwnerID, Dir: dir, Metadata: meta}, nil
}

func (s *Store) copyFiles(ctx context.Context, logger *slog.Logger, dir, sub string, files []AssetFile, targets map[string]string, missing *[]string) []string {
	written := make([]string, 0, len(files))
	for _, file := range files {
		if ctx.Err() != nil {
			*missing = append(*missing, sub+"/"+file.Key)
			continue
		}
		if !ValidAssetKey(file.Key) {
			logging.WarnWithContext(logger, "asset key rejected", "asset_key_rejected",
				logging.String("raw_value", truncate(file.Key, 128)),
				logging.String(logging.FieldErrorHint, "asset keys must be letters, digits, underscore, or hyphen"),
				logging.String(logging.FieldImpact, "placeholder left unreplaced"),
			)
			*missing = append(*missing, sub+"/"+truncate(file.Key, 64))
			continue
		}
		ext := strings.ToLower(filepath.Ext(file.SourcePath))
		if !slices.Contains(fallbackExtensions, ext) {
			ext = ""
		}
		name := file.Key + ext
		if err := s.fs.CopyFile(file.SourcePath, filepath.Join(dir, sub, name)); err != nil {
			logging.WarnWithContext(logger, "asset copy failed", "asset_copy_failed",
				logging.String("asset_key", file.Key),
				logging.String("source", file.SourcePath),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check staging directory contents and disk space"),
				logging.String(logging.FieldImpact, "placeholder left unreplaced"),
			)
			*missing = append(*missing, sub+"/"+file.Key)
			continue
		}
		targets[sub+"/"+file.Key] = sub + "/" + name
		written = append(written, name)
	}
	slices.Sort(written)
	return written
}

func (s *Store) discard(logger *slog.Logger, dir string) {
	if err := s.fs.RemoveAll(dir); err != nil {
		logging.WarnWithContext(logger, "partial bundle cleanup failed", "bundle_cleanup_failed",
			logging.String("path", dir),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the directory manually"),
			logging.String(logging.FieldImpact, "incomplete bundle directory remains on disk"),
		)
	}
}
