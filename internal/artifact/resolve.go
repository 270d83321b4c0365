package artifact

import (
	"mime"
	"net/url"
	"path/filepath"
	"strings"

	"landing/internal/logging"
	"landing/internal/services"
)

// fallbackExtensions are tried in order when a requested asset is missing.
var fallbackExtensions = []string{".webp", ".png", ".jpg", ".jpeg", ".gif", ".svg", ".mp3", ".ogg", ".wav"}

var contentTypes = map[string]string{
	".webp": "image/webp",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".mp3":  "audio/mpeg",
	".ogg":  "audio/ogg",
	".wav":  "audio/wav",
	".html": "text/html; charset=utf-8",
	".json": "application/json",
}

// Asset is a resolved file inside a bundle.
type Asset struct {
	Path        string
	ContentType string
	Size        int64
}

// ContentTypeFor derives a content type from the file's real extension.
func ContentTypeFor(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// ResolveAsset maps a client supplied path to a file under the bundle's
// assets/ or sounds/ subtree. The path is percent-decoded and cleaned, and
// must stay inside the subtree; traversal attempts fail with
// services.ErrInvalidPath before the filesystem is consulted. When the exact
// file is missing the same stem is retried with each fallback extension.
func (s *Store) ResolveAsset(landingID, rawPath string) (*Asset, error) {
	if err := ValidateLandingID(landingID); err != nil {
		s.auditRejectedID("resolve_asset", landingID, err)
		return nil, err
	}
	rel, err := s.cleanAssetPath(landingID, rawPath)
	if err != nil {
		return nil, err
	}

	bundle, err := s.GetByOpaqueID(landingID)
	if err != nil {
		return nil, err
	}
	if bundle == nil {
		return nil, services.Wrap(services.ErrNotFound, "artifact", "resolve asset", "landing not found", nil)
	}

	candidates := []string{rel}
	if first, _, _ := strings.Cut(rel, "/"); first != assetsDir && first != soundsDir {
		candidates = []string{assetsDir + "/" + rel, soundsDir + "/" + rel}
	}
	for _, candidate := range candidates {
		resolved, ok := containedPath(bundle.Dir, candidate)
		if !ok {
			s.auditRejectedPath(landingID, rawPath, resolved)
			return nil, services.Wrap(services.ErrInvalidPath, "artifact", "resolve asset", "path escapes bundle", nil)
		}
		if asset := s.statAsset(resolved); asset != nil {
			return asset, nil
		}
		stem := strings.TrimSuffix(resolved, filepath.Ext(resolved))
		for _, ext := range fallbackExtensions {
			alt := stem + ext
			if alt == resolved {
				continue
			}
			if asset := s.statAsset(alt); asset != nil {
				return asset, nil
			}
		}
	}
	return nil, services.Wrap(services.ErrNotFound, "artifact", "resolve asset", "asset not found", nil)
}

// cleanAssetPath decodes and lexically normalizes rawPath without touching the
// filesystem. The returned path is slash separated and relative.
func (s *Store) cleanAssetPath(landingID, rawPath string) (string, error) {
	reject := func(resolved string) error {
		s.auditRejectedPath(landingID, rawPath, resolved)
		return services.Wrap(services.ErrInvalidPath, "artifact", "resolve asset", "invalid asset path", nil)
	}
	decoded, err := url.PathUnescape(rawPath)
	if err != nil {
		return "", reject("")
	}
	if decoded == "" || strings.ContainsAny(decoded, "\x00\\") {
		return "", reject("")
	}
	decoded = strings.TrimLeft(decoded, "/")
	// Resolve against a lexical stand-in for the bundle root; the real
	// directory is not known until the bundle is located.
	base := filepath.Join(s.root, landingID)
	resolved, ok := containedPath(base, decoded)
	if !ok {
		return "", reject(resolved)
	}
	rel, err := filepath.Rel(base, resolved)
	if err != nil || rel == "." {
		return "", reject(resolved)
	}
	rel = filepath.ToSlash(rel)
	if first, rest, found := strings.Cut(rel, "/"); (first == assetsDir || first == soundsDir) && (!found || rest == "") {
		return "", reject(resolved)
	}
	return rel, nil
}

// containedPath joins rel onto base and reports whether the result is a
// strict descendant of base.
func containedPath(base, rel string) (string, bool) {
	resolved := filepath.Join(base, filepath.FromSlash(rel))
	prefix := filepath.Clean(base) + string(filepath.Separator)
	return resolved, strings.HasPrefix(resolved, prefix)
}

// statAsset returns nil for anything that is not an existing regular file.
func (s *Store) statAsset(path string) *Asset {
	info, err := s.fs.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil
	}
	return &Asset{Path: path, ContentType: ContentTypeFor(path), Size: info.Size()}
}

func (s *Store) auditRejectedPath(landingID, rawPath, resolved string) {
	logging.WarnWithContext(s.logger, "asset path rejected", "path_rejected",
		logging.String(logging.FieldLandingID, landingID),
		logging.String("raw_path", truncate(rawPath, 256)),
		logging.String("resolved_path", resolved),
		logging.String(logging.FieldErrorHint, "client requested a path outside the bundle"),
		logging.String(logging.FieldImpact, "request refused"),
	)
}
