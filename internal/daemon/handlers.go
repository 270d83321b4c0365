package daemon

import (
	"errors"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"

	"landing/internal/api"
	"landing/internal/artifact"
	"landing/internal/hub"
	"landing/internal/logging"
	"landing/internal/services"
	"landing/internal/session"
	"landing/internal/textutil"
)

const maxCreateBody = 64 << 10

func (s *apiServer) handleCreate(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFrom(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req api.CreateLandingRequest
	if err := sonic.ConfigStd.NewDecoder(io.LimitReader(r.Body, maxCreateBody)).Decode(&req); err != nil {
		s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "create", "malformed request body", err))
		return
	}
	if req.ChatID != "" {
		if _, _, err := hub.ParseChannel(hub.ChatChannel(req.ChatID)); err != nil {
			s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "create", "chatId must be 1-64 letters, digits, or hyphens", nil))
			return
		}
	}
	sess, err := s.daemon.runner.Start(owner, session.Input{Prompt: req.Prompt, Title: req.Title, ChatID: req.ChatID})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, api.CreateLandingResponse{
		LandingID: sess.ID,
		ChannelID: hub.LandingChannel(sess.ID),
		State:     string(sess.State),
	})
}

func (s *apiServer) handleList(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFrom(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	bundles, err := s.daemon.bundles.List(owner)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.LandingListResponse{Landings: api.FromBundles(bundles)})
}

func (s *apiServer) handleShow(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := s.target(w, r)
	if !ok {
		return
	}
	bundle, err := s.daemon.bundles.Get(id, owner)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if bundle == nil {
		s.writeError(w, r, services.Wrap(services.ErrNotFound, "api", "show", "landing not found", nil))
		return
	}
	writeJSON(w, http.StatusOK, api.LandingResponse{Landing: api.FromBundle(*bundle)})
}

func (s *apiServer) handleLandingStatus(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := s.target(w, r)
	if !ok {
		return
	}
	status, err := s.daemon.status.Status(r.Context(), id, owner)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *apiServer) handlePreview(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := s.target(w, r)
	if !ok {
		return
	}
	html, err := s.daemon.bundles.ReadIndex(id, owner)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, withAssetBase(string(html), api.AssetPath(id)))
}

func (s *apiServer) handleZip(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := s.target(w, r)
	if !ok {
		return
	}
	bundle, err := s.daemon.bundles.Get(id, owner)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if bundle == nil {
		s.writeError(w, r, services.Wrap(services.ErrNotFound, "api", "zip", "landing not found", nil))
		return
	}
	stream, err := s.daemon.bundles.ZipStream(r.Context(), id, owner)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer stream.Close()
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+zipFileName(bundle.Metadata.Title, id)+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, stream); err != nil {
		s.logger.Debug("zip download interrupted",
			logging.String(logging.FieldLandingID, id),
			logging.Error(err),
		)
	}
}

// handleDelete removes the live session, the bundle, and the durable record.
// A live session owned by someone else is left alone and reported as not found.
func (s *apiServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := s.target(w, r)
	if !ok {
		return
	}
	deleted := false
	if sess, live := s.daemon.registry.Get(id); live {
		if sess.OwnerID != owner {
			s.writeError(w, r, services.Wrap(services.ErrNotFound, "api", "delete", "landing not found", nil))
			return
		}
		deleted = s.daemon.runner.DeleteSession(id) || deleted
	}
	removed, err := s.daemon.bundles.Delete(id, owner)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	deleted = removed || deleted
	if s.daemon.records != nil {
		removed, err := s.daemon.records.Delete(r.Context(), id, owner)
		if err != nil {
			s.writeError(w, r, services.Wrap(services.ErrTransient, "api", "delete", "remove landing record", err))
			return
		}
		deleted = removed || deleted
	}
	if !deleted {
		s.writeError(w, r, services.Wrap(services.ErrNotFound, "api", "delete", "landing not found", nil))
		return
	}
	writeJSON(w, http.StatusOK, api.DeleteResponse{Deleted: true})
}

// handleAsset serves a bundle file anonymously. The content type comes from
// the resolved file's real extension, never from the request.
func (s *apiServer) handleAsset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "landingId")
	asset, err := s.daemon.bundles.ResolveAsset(id, chi.URLParam(r, "*"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	f, err := os.Open(asset.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.writeError(w, r, services.Wrap(services.ErrNotFound, "api", "asset", "asset not found", nil))
			return
		}
		s.writeError(w, r, services.Wrap(services.ErrTransient, "api", "asset", "open asset", err))
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		s.writeError(w, r, services.Wrap(services.ErrTransient, "api", "asset", "stat asset", err))
		return
	}
	w.Header().Set("Content-Type", asset.ContentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeContent(w, r, "", info.ModTime(), f)
}

// target extracts the caller's owner and the path's landing id, writing the
// error response itself when either is invalid.
func (s *apiServer) target(w http.ResponseWriter, r *http.Request) (int64, string, bool) {
	owner, err := ownerFrom(r)
	if err != nil {
		s.writeError(w, r, err)
		return 0, "", false
	}
	id := chi.URLParam(r, "landingId")
	if err := artifact.ValidateLandingID(id); err != nil {
		s.writeError(w, r, err)
		return 0, "", false
	}
	return owner, id, true
}

// withAssetBase points relative asset references in a preview at the
// anonymous asset route.
func withAssetBase(html, base string) string {
	tag := `<base href="` + base + `">`
	lower := strings.ToLower(html)
	if i := strings.Index(lower, "<head"); i >= 0 {
		if end := strings.IndexByte(html[i:], '>'); end >= 0 {
			pos := i + end + 1
			return html[:pos] + tag + html[pos:]
		}
	}
	return tag + html
}

// zipFileName names the download after the page title when it has one.
func zipFileName(title, landingID string) string {
	if slug := textutil.Slug(title, 48); slug != "" {
		return slug + "-" + landingID[:min(8, len(landingID))] + ".zip"
	}
	return "landing-" + landingID + ".zip"
}
