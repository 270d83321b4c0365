package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"landing/internal/api"
	"landing/internal/artifact"
	"landing/internal/config"
	"landing/internal/hub"
	"landing/internal/logging"
	"landing/internal/services"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon
	ws     hub.WSOptions

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
		ws: hub.WSOptions{
			WriteTimeout:    cfg.WriteTimeout(),
			MaxMessageBytes: cfg.Hub.MaxMessageBytes,
		},
	}
	srv.ws.Authorize = srv.authorizeChannel
	srv.server = &http.Server{
		Handler:           srv.routes(strings.TrimSpace(cfg.Paths.APIToken)),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

// routes builds the chi router. /health and /asset are anonymous: the
// unguessable landing id is the capability for preview assets.
func (s *apiServer) routes(token string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestContext)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/asset/{landingId}/*", s.handleAsset)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware(token))
		r.Get("/ws", s.handleWS)
		r.Route("/api", func(r chi.Router) {
			r.Get("/status", s.handleStatus)
			r.Route("/landings", func(r chi.Router) {
				r.Post("/", s.handleCreate)
				r.Get("/", s.handleList)
				r.Route("/{landingId}", func(r chi.Router) {
					r.Get("/", s.handleShow)
					r.Delete("/", s.handleDelete)
					r.Get("/status", s.handleLandingStatus)
					r.Get("/preview", s.handlePreview)
					r.Get("/zip", s.handleZip)
				})
			})
		})
	})
	return r
}

// requestContext copies chi's request id into the services context so log
// lines carry it as correlation_id.
func (s *apiServer) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			r = r.WithContext(services.WithRequestID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(s.logger, "api server error", "api_server_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check api_bind and port availability"),
				logging.String(logging.FieldImpact, "HTTP API unavailable"),
			)
		}
	}()

	s.logger.Info("api server listening",
		logging.String("address", listener.Addr().String()),
		logging.String(logging.FieldEventType, "api_listen"),
	)
	return nil
}

func (s *apiServer) stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// Hijacked WebSocket connections are not tracked by Shutdown.
	s.daemon.hub.CloseAll()
	_ = s.server.Shutdown(shutdownCtx)
	s.mu.Lock()
	s.listener = nil
	s.mu.Unlock()
}

func (s *apiServer) addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.daemon.Status())
}

func (s *apiServer) handleWS(w http.ResponseWriter, r *http.Request) {
	s.daemon.hub.ServeWS(w, r, s.ws)
}

// authorizeChannel refuses landing channels whose live session belongs to a
// different owner. Unknown ids are allowed: the subscriber only ever sees
// events for a job it started.
func (s *apiServer) authorizeChannel(r *http.Request, channelID string) error {
	kind, id, err := hub.ParseChannel(channelID)
	if err != nil {
		return services.Wrap(services.ErrValidation, "api", "subscribe", err.Error(), nil)
	}
	if kind != hub.KindLanding {
		return nil
	}
	owner, err := ownerFrom(r)
	if err != nil {
		return err
	}
	if sess, ok := s.daemon.registry.Get(id); ok && sess.OwnerID != owner {
		return services.Wrap(services.ErrNotFound, "api", "subscribe", "landing not found", nil)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, err := sonic.Marshal(payload)
	if err != nil {
		status = http.StatusInternalServerError
		data = []byte(`{"error":"encode response","code":"INTERNAL"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func errorBody(message, code string) api.ErrorResponse {
	return api.ErrorResponse{Error: message, Code: code}
}

// httpStatus maps an error marker to its HTTP status.
func httpStatus(err error) int {
	switch {
	case services.IsClientError(err):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrSessionExpired):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := httpStatus(err)
	code := services.ReasonCode(err)
	if status == http.StatusInternalServerError {
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), "api request failed", "api_request_failed",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "see the wrapped error for the failing component"),
			logging.String(logging.FieldImpact, "request returned 500"),
		)
	}
	writeJSON(w, status, errorBody(err.Error(), code))
}

func parseOwner(raw string) (int64, error) {
	owner, err := artifact.ParseOwnerID(raw)
	if err != nil {
		return 0, err
	}
	if err := artifact.ValidateOwnerID(owner); err != nil {
		return 0, err
	}
	return owner, nil
}
