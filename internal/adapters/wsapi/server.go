// Package wsapi serves the broadcast stream over websockets, plus a small
// JSON surface for health and hidden opportunities.
package wsapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/alejandrodnm/valuebot/internal/adapters/storage"
	"github.com/alejandrodnm/valuebot/internal/application/broadcast"
	"github.com/alejandrodnm/valuebot/internal/domain"
	"github.com/alejandrodnm/valuebot/internal/ports"
)

// Broadcaster is the subscription side of the broadcast loop.
type Broadcaster interface {
	Subscribe(presetID string, s broadcast.Subscriber) error
	Unsubscribe(presetID, subscriberID string)
}

// HiddenScanner lists the opportunities a preset's hidden items suppress.
type HiddenScanner interface {
	ScanHidden(ctx context.Context, p domain.Preset) ([]domain.Opportunity, error)
}

// Server wires the HTTP routes.
type Server struct {
	// ctx bounds the client pumps; request contexts end with the upgrade.
	ctx      context.Context
	loop     Broadcaster
	presets  ports.PresetStore
	hidden   HiddenScanner
	origins  []string
	upgrader websocket.Upgrader
}

// NewServer returns a server. allowedOrigins may contain "*".
func NewServer(ctx context.Context, loop Broadcaster, presets ports.PresetStore, hidden HiddenScanner, allowedOrigins []string) *Server {
	s := &Server{
		ctx:     ctx,
		loop:    loop,
		presets: presets,
		hidden:  hidden,
		origins: allowedOrigins,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Router builds the chi router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Get("/ws/presets/{presetID}", s.handleWebSocket)
	r.Get("/api/presets/{presetID}/hidden", s.handleHidden)
	return r
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return slices.Contains(s.origins, "*") || slices.Contains(s.origins, origin)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "time": time.Now().UTC()})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	presetID := chi.URLParam(r, "presetID")
	if _, ok := s.preset(w, r, presetID); !ok {
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("wsapi: upgrade failed", "preset", presetID, "err", err)
		return
	}

	c := newClient(uuid.NewString(), presetID, conn, s.loop)
	if err := s.loop.Subscribe(presetID, c); err != nil {
		slog.Warn("wsapi: subscribe failed", "preset", presetID, "err", err)
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "shutting down"))
		conn.Close()
		return
	}

	go c.writePump(s.ctx)
	go c.readPump(s.ctx)
	slog.Info("wsapi: client connected", "client", c.id, "preset", presetID)
}

type hiddenResponse struct {
	PresetID      string                      `json:"preset_id"`
	Opportunities []broadcast.OpportunityView `json:"opportunities"`
}

func (s *Server) handleHidden(w http.ResponseWriter, r *http.Request) {
	presetID := chi.URLParam(r, "presetID")
	p, ok := s.preset(w, r, presetID)
	if !ok {
		return
	}
	opps, err := s.hidden.ScanHidden(r.Context(), p)
	if err != nil {
		slog.Error("wsapi: hidden scan failed", "preset", presetID, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "scan failed"})
		return
	}
	writeJSON(w, http.StatusOK, hiddenResponse{PresetID: presetID, Opportunities: broadcast.Views(opps)})
}

// preset loads the preset or writes the error response.
func (s *Server) preset(w http.ResponseWriter, r *http.Request, id string) (domain.Preset, bool) {
	p, err := s.presets.Preset(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "preset not found"})
		return domain.Preset{}, false
	}
	if err != nil {
		slog.Error("wsapi: preset lookup failed", "preset", id, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "preset lookup failed"})
		return domain.Preset{}, false
	}
	return p, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("wsapi: encode response", "err", err)
	}
}
