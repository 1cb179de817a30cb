package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rpggio/feedsync/internal/domain/watermark"
	"github.com/rpggio/feedsync/internal/engine"
)

// StatusSource reports engine status. engine.StatusCache implements it.
type StatusSource interface {
	Snapshot() engine.Snapshot
}

// Deps are the handlers mounted by NewServer.
type Deps struct {
	// MCP serves the streamable MCP endpoint. It is not mounted when nil.
	MCP        http.Handler
	Status     StatusSource
	Watermarks watermark.Store
	// AuthToken protects /status and /mcp when set.
	AuthToken string
	Logger    *slog.Logger
}

// Server wires HTTP handlers.
type Server struct {
	deps Deps
}

type statusResponse struct {
	engine.Snapshot
	Watermarks map[watermark.Kind]watermark.Watermark `json:"watermarks"`
}

// NewServer creates an HTTP server router with middleware.
func NewServer(deps Deps) *chi.Mux {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	srv := &Server{deps: deps}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(SessionMiddleware)
	r.Use(RequestLogger(deps.Logger))

	r.Get("/health", srv.handleHealth)
	r.Group(func(r chi.Router) {
		if deps.AuthToken != "" {
			r.Use(AuthMiddleware(deps.AuthToken))
		}
		r.Get("/status", srv.handleStatus)
		if deps.MCP != nil {
			r.Handle("/mcp", deps.MCP)
			r.Handle("/mcp/*", deps.MCP)
		}
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{Watermarks: make(map[watermark.Kind]watermark.Watermark, len(watermark.Kinds))}
	if s.deps.Status != nil {
		resp.Snapshot = s.deps.Status.Snapshot()
	}
	if s.deps.Watermarks != nil {
		for _, kind := range watermark.Kinds {
			mark, err := s.deps.Watermarks.Get(r.Context(), kind)
			if err != nil {
				s.deps.Logger.Error("reading watermark", "kind", kind, "error", err)
				http.Error(w, "failed to read watermarks", http.StatusInternalServerError)
				return
			}
			resp.Watermarks[kind] = mark
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}
