// Package webhook serves the HTTP control and status API. Control requests
// are published to the event bus like any other input.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rcrowley/go-metrics"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/stripd/internal/color"
	"github.com/dokzlo13/stripd/internal/control"
	"github.com/dokzlo13/stripd/internal/ledger"
)

// Source is the event source name used for HTTP control requests.
const Source = "http"

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
)

var errNotInPlaylist = errors.New("routine not in playlist")

// Engine is the part of the render loop the server reads from.
type Engine interface {
	Status() control.Status
	LastFrame() color.Frame
	Metrics() metrics.Registry
	Do(fn func(a *control.Adapter) error) error
}

// Publisher accepts control events.
type Publisher interface {
	Publish(ev control.Event) bool
}

// History lists recorded ledger entries.
type History interface {
	Recent(limit int) ([]*ledger.Entry, error)
	GetByType(eventType ledger.EventType, limit int) ([]*ledger.Entry, error)
}

// Server is the HTTP control and status server.
type Server struct {
	addr       string
	engine     Engine
	bus        Publisher
	history    History
	httpServer *http.Server
}

// NewServer creates a new server. history may be nil when the ledger is
// disabled.
func NewServer(host string, port int, engine Engine, bus Publisher, history History) *Server {
	return &Server{
		addr:    fmt.Sprintf("%s:%d", host, port),
		engine:  engine,
		bus:     bus,
		history: history,
	}
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	mux.HandleFunc("GET /ready", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /frame", s.handleFrame)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("POST /control/{kind}", s.handleControl)
	mux.HandleFunc("GET /playlist", s.handlePlaylist)
	mux.HandleFunc("DELETE /playlist/{name}", s.handleRemove)

	return mux
}

// Run starts the server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().Str("addr", s.addr).Msg("Starting HTTP server")

	// Handle graceful shutdown
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP server shutdown error")
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"pixels": s.engine.LastFrame()})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	metrics.WriteJSONOnce(s.engine.Metrics(), w)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "event ledger disabled")
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	var (
		entries []*ledger.Entry
		err     error
	)
	switch t := ledger.EventType(r.URL.Query().Get("type")); t {
	case "":
		entries, err = s.history.Recent(limit)
	case ledger.EventControlReceived, ledger.EventStateRestored:
		entries, err = s.history.GetByType(t, limit)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown event type %q", t))
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to read event ledger")
		writeError(w, http.StatusInternalServerError, "failed to read event ledger")
		return
	}
	if entries == nil {
		entries = []*ledger.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// controlParams is the optional JSON body of a control request. Query
// parameters of the same name take precedence. A client that retries a
// request should send the same ID each time.
type controlParams struct {
	ID    string   `json:"id"`
	Steps *int     `json:"steps"`
	Index *int     `json:"index"`
	Value *float64 `json:"value"`
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	kind, err := control.ParseKind(r.PathValue("kind"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var params controlParams
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &params); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	ev := control.NewEvent(kind, Source)
	if params.ID != "" {
		ev.ID = params.ID
	}
	if params.Steps != nil {
		ev.Steps = *params.Steps
	}
	if params.Index != nil {
		ev.Index = *params.Index
	}
	if params.Value != nil {
		ev.Value = *params.Value
	}

	q := r.URL.Query()
	if v := q.Get("id"); v != "" {
		ev.ID = v
	}
	if v := q.Get("steps"); v != "" {
		if ev.Steps, err = strconv.Atoi(v); err != nil {
			writeError(w, http.StatusBadRequest, "steps must be an integer")
			return
		}
	}
	if ev.Steps < 1 {
		writeError(w, http.StatusBadRequest, "steps must be at least 1")
		return
	}
	if v := q.Get("index"); v != "" {
		if ev.Index, err = strconv.Atoi(v); err != nil {
			writeError(w, http.StatusBadRequest, "index must be an integer")
			return
		}
	}
	if v := q.Get("value"); v != "" {
		if ev.Value, err = strconv.ParseFloat(v, 64); err != nil {
			writeError(w, http.StatusBadRequest, "value must be a number")
			return
		}
	}

	log.Debug().
		Str("event_id", ev.ID).
		Str("event", ev.String()).
		Str("remote", r.RemoteAddr).
		Msg("Received control request")

	if !s.bus.Publish(ev) {
		writeError(w, http.StatusServiceUnavailable, "event queue full")
		return
	}
	writeJSON(w, http.StatusAccepted, ev)
}

type playlistView struct {
	Routines []string `json:"routines"`
	Cursor   int      `json:"cursor"`
	Active   string   `json:"active,omitempty"`
	Powered  bool     `json:"powered"`
}

func (s *Server) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	st := s.engine.Status()
	writeJSON(w, http.StatusOK, playlistView{
		Routines: st.Playlist,
		Cursor:   st.Cursor,
		Active:   st.Compositor.Active,
		Powered:  st.Powered,
	})
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	err := s.engine.Do(func(a *control.Adapter) error {
		if a.Playlist().Find(name) < 0 {
			return errNotInPlaylist
		}
		return a.Remove(name)
	})
	switch {
	case errors.Is(err, errNotInPlaylist):
		writeError(w, http.StatusNotFound, fmt.Sprintf("routine %q not in playlist", name))
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	log.Info().Str("routine", name).Msg("Removed routine from playlist")
	s.handlePlaylist(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
