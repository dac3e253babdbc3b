// Package httpapi is the control surface: thin token-guarded endpoints over
// the pipeline state (status, listener toggle, roster refresh, recent
// senders, pairing) plus the QR and admin pages.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/nextlevelbuilder/wareact/internal/config"
	"github.com/nextlevelbuilder/wareact/internal/filter"
	"github.com/nextlevelbuilder/wareact/internal/jid"
	"github.com/nextlevelbuilder/wareact/internal/reactor"
	"github.com/nextlevelbuilder/wareact/internal/wa"
)

// Core is the pipeline surface the control endpoints consume.
type Core interface {
	Status() reactor.Status
	SetListening(enabled bool)
	RefreshRoster(ctx context.Context) error
	Recent() []filter.RecentEntry
	QR() (qr string, at time.Time)
}

// Pairer requests phone-number pairing codes from the bridge.
type Pairer interface {
	RequestPairingCode(ctx context.Context, phone string) (string, error)
}

// Server serves the control API. Create with NewServer, then Start.
type Server struct {
	cfg      config.HTTPConfig
	core     Core
	pairer   Pairer
	limiters *clientLimiters

	httpServer *http.Server
	errCh      chan error
}

// NewServer wires the control surface. pairer may be nil (pairing disabled).
func NewServer(cfg config.HTTPConfig, core Core, pairer Pairer) *Server {
	return &Server{
		cfg:      cfg,
		core:     core,
		pairer:   pairer,
		limiters: newClientLimiters(),
		errCh:    make(chan error, 1),
	}
}

// Routes builds the mux with all control endpoints registered.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", requireMethod(http.MethodGet, s.handleHealth))
	mux.HandleFunc("/status", requireMethod(http.MethodGet, s.auth(s.handleStatus)))
	mux.HandleFunc("/listener", requireMethod(http.MethodPost, s.auth(s.handleListener)))
	mux.HandleFunc("/groups/refresh", requireMethod(http.MethodPost, s.auth(s.handleGroupsRefresh)))
	mux.HandleFunc("/recent-senders", requireMethod(http.MethodGet, s.auth(s.handleRecentSenders)))
	mux.HandleFunc("/pairing-code", requireMethod(http.MethodPost, s.auth(s.handlePairingCode)))
	mux.HandleFunc("/qr.png", requireMethod(http.MethodGet, s.auth(s.handleQRImage)))
	mux.HandleFunc("/qr", requireMethod(http.MethodGet, s.auth(s.handleQRPage)))
	mux.HandleFunc("/admin", requireMethod(http.MethodGet, s.auth(s.handleAdmin)))

	return mux
}

// requireMethod emulates the Go 1.22 "METHOD /path" ServeMux patterns, which
// the Go 1.21 toolchain building this module does not support.
func requireMethod(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.Header().Set("Allow", method)
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

// Start listens in the background; failures surface on Err.
func (s *Server) Start() {
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("control API listening", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.errCh <- err
		}
	}()
}

// Err reports a fatal listen error.
func (s *Server) Err() <-chan error { return s.errCh }

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	st := s.core.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"status": st,
	})
}

// handleListener sets the listening flag. The body must be exactly
// {"enabled": <bool>}; anything else is rejected without touching state.
func (s *Server) handleListener(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Enabled == nil {
		writeError(w, http.StatusBadRequest, "body.enabled must be a boolean")
		return
	}
	s.core.SetListening(*body.Enabled)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "listening": *body.Enabled})
}

func (s *Server) handleGroupsRefresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	if err := s.core.RefreshRoster(ctx); err != nil {
		writeError(w, http.StatusBadGateway, "roster refresh failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"tracked": s.core.Status().GroupsTracked,
	})
}

func (s *Server) handleRecentSenders(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":    true,
		"items": s.core.Recent(),
	})
}

func (s *Server) handlePairingCode(w http.ResponseWriter, r *http.Request) {
	if s.pairer == nil {
		writeError(w, http.StatusServiceUnavailable, "pairing not available")
		return
	}
	var body struct {
		Phone string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || jid.Digits(body.Phone) == "" {
		writeError(w, http.StatusBadRequest, "body.phone required, E.164 digits")
		return
	}

	code, err := s.pairer.RequestPairingCode(r.Context(), body.Phone)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, wa.ErrNotConnected) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "code": code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": msg})
}
