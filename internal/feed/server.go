package feed

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/FocuswithJustin/MapLabeler/core/errors"
	"github.com/FocuswithJustin/MapLabeler/internal/cache"
	"github.com/FocuswithJustin/MapLabeler/internal/logging"
	"github.com/FocuswithJustin/MapLabeler/internal/report"
	"github.com/FocuswithJustin/MapLabeler/internal/session"
)

// reportTTL bounds how stale GET /report can be after edits made outside
// the hub.
const reportTTL = 5 * time.Second

// APIResponse is the envelope of every JSON response.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *APIMeta    `json:"meta,omitempty"`
}

// APIError describes a failed request.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIMeta carries response metadata.
type APIMeta struct {
	Timestamp string `json:"timestamp"`
	SessionID string `json:"session_id,omitempty"`
}

// Server exposes a session over HTTP: read-only JSON endpoints and the
// websocket feed.
type Server struct {
	session  *session.Session
	hub      *Hub
	security SecurityConfig
	reports  *cache.TTLCache[string, *report.Report]
}

// NewServer creates a server for s using hub for the websocket feed. Call it
// before running the hub.
func NewServer(s *session.Session, hub *Hub, security SecurityConfig) *Server {
	srv := &Server{
		session:  s,
		hub:      hub,
		security: security,
		reports:  cache.New[string, *report.Report](reportTTL),
	}
	hub.onChange = srv.reports.Invalidate
	return srv
}

// Handler returns the routes wrapped in request logging.
func (srv *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", srv.handleHealth)
	mux.HandleFunc("GET /labels", srv.handleLabels)
	mux.HandleFunc("GET /labels/{mergeKey}", srv.handleLabel)
	mux.HandleFunc("GET /labels/{mergeKey}/verses", srv.handleVerses)
	mux.HandleFunc("GET /labels/{mergeKey}/suggestions", srv.handleSuggestions)
	mux.HandleFunc("GET /report", srv.handleReport)
	mux.HandleFunc("POST /save", srv.handleSave)
	mux.HandleFunc("GET /ws", ServeWS(srv.hub, srv.security))
	return logging.CombinedMiddleware(mux)
}

// ListenAndServe runs the hub and serves on addr until ctx is done.
func (srv *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return apperrors.NewIO("listen", addr, err)
	}
	return srv.Serve(ctx, ln)
}

// Serve runs the hub and serves on ln until ctx is done.
func (srv *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(logging.WithSessionID(ctx, srv.session.ID))
	defer cancel()
	go srv.hub.Run(ctx)

	httpServer := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	logging.ServerStartup(ctx, "feed", ln.Addr().String())

	errc := make(chan error, 1)
	go func() { errc <- httpServer.Serve(ln) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (srv *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	srv.respond(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"clients": srv.hub.ClientCount(),
	})
}

func (srv *Server) handleLabels(w http.ResponseWriter, r *http.Request) {
	srv.respond(w, http.StatusOK, srv.session.Labels())
}

func (srv *Server) handleLabel(w http.ResponseWriter, r *http.Request) {
	l, err := srv.session.Label(r.PathValue("mergeKey"))
	if err != nil {
		srv.respondErr(w, err)
		return
	}
	srv.respond(w, http.StatusOK, l)
}

func (srv *Server) handleVerses(w http.ResponseWriter, r *http.Request) {
	detail, err := srv.session.VerseDetail(r.PathValue("mergeKey"))
	if err != nil {
		srv.respondErr(w, err)
		return
	}
	srv.respond(w, http.StatusOK, detail)
}

func (srv *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			srv.respondErr(w, apperrors.NewValidation("limit", "must be a non-negative integer"))
			return
		}
		limit = n
	}
	got, err := srv.session.Suggest(r.PathValue("mergeKey"), limit)
	if err != nil {
		srv.respondErr(w, err)
		return
	}
	if got == nil {
		got = []session.Suggestion{}
	}
	srv.respond(w, http.StatusOK, got)
}

func (srv *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	rep, _ := srv.reports.GetOrLoad("current", func() (*report.Report, error) {
		return report.Build(srv.session), nil
	})
	srv.respond(w, http.StatusOK, rep)
}

func (srv *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if err := srv.session.Save(r.Context()); err != nil {
		srv.respondErr(w, err)
		return
	}
	srv.respond(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (srv *Server) respond(w http.ResponseWriter, status int, data interface{}) {
	response := APIResponse{
		Success: true,
		Data:    data,
		Meta: &APIMeta{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			SessionID: srv.session.ID,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

func (srv *Server) respondErr(w http.ResponseWriter, err error) {
	code := apperrors.Code(err)
	status := http.StatusInternalServerError
	switch code {
	case "NOT_FOUND":
		status = http.StatusNotFound
	case "INVALID_INPUT":
		status = http.StatusBadRequest
	}

	response := APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: err.Error(),
		},
		Meta: &APIMeta{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			SessionID: srv.session.ID,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}
