// SPDX-License-Identifier: MIT

// Package api exposes the wall's control surface over HTTP: aggregated
// stream status, manual retry, and the viewport/visibility signal the UI
// reports. It never carries media, only state.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mhartig/gridcam/internal/engine"
	"github.com/mhartig/gridcam/internal/log"
	"github.com/mhartig/gridcam/internal/session"
)

// Wall is the engine surface the API depends on.
type Wall interface {
	Snapshot() map[string]session.Status
	Status(cameraID string) (session.Status, bool)
	Retry(cameraID string) error
	Appear(cameraID string)
	Disappear(cameraID string)
	SetViewport(width, height int)
	SetCapacity(ctx context.Context, n int) error
	Columns() int
}

var _ Wall = (*engine.Engine)(nil)

// Config holds the API server settings.
type Config struct {
	// RateLimitRPS bounds requests per second per client IP. Zero disables
	// the limiter (tests).
	RateLimitRPS int
}

// Server serves the status API for one engine.
type Server struct {
	wall Wall
	cfg  Config

	// visible is the last set the UI reported; /api/view diffs against it.
	mu      sync.Mutex
	visible map[string]struct{}
}

// NewServer creates a Server for the given engine.
func NewServer(wall Wall, cfg Config) *Server {
	return &Server{
		wall:    wall,
		cfg:     cfg,
		visible: make(map[string]struct{}),
	}
}

// Router builds the chi router with the full middleware stack.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(Recoverer)
	r.Use(RequestID)
	r.Use(Logging)
	if s.cfg.RateLimitRPS > 0 {
		r.Use(RateLimit(s.cfg.RateLimitRPS))
	}

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/status/{id}", s.handleStatusByID)
		r.Post("/cameras/{id}/retry", s.handleRetry)
		r.Post("/view", s.handleView)
		r.Put("/capacity", s.handleCapacity)
	})
	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.wall.Snapshot())
}

func (s *Server) handleStatusByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st, ok := s.wall.Status(id)
	if !ok {
		writeNotFound(w)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.wall.Retry(id); err != nil {
		writeNotFound(w)
		return
	}
	log.FromContext(r.Context()).Info().
		Str(log.FieldCameraID, id).
		Msg("manual retry requested")
	writeJSON(w, http.StatusAccepted, map[string]string{"camera_id": id, "result": "retry"})
}

// viewRequest is the UI's visibility signal: the viewport geometry plus the
// set of camera tiles currently on screen.
type viewRequest struct {
	Width   int      `json:"width"`
	Height  int      `json:"height"`
	Visible []string `json:"visible"`
}

type viewResponse struct {
	Columns int `json:"columns"`
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	var req viewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.New("invalid view payload"))
		return
	}
	if req.Width < 0 || req.Height < 0 {
		writeError(w, errors.New("viewport dimensions must be non-negative"))
		return
	}

	s.wall.SetViewport(req.Width, req.Height)

	next := make(map[string]struct{}, len(req.Visible))
	for _, id := range req.Visible {
		if id != "" {
			next[id] = struct{}{}
		}
	}

	s.mu.Lock()
	prev := s.visible
	s.visible = next
	s.mu.Unlock()

	for id := range next {
		if _, ok := prev[id]; !ok {
			s.wall.Appear(id)
		}
	}
	for id := range prev {
		if _, ok := next[id]; !ok {
			s.wall.Disappear(id)
		}
	}

	writeJSON(w, http.StatusOK, viewResponse{Columns: s.wall.Columns()})
}

type capacityRequest struct {
	Capacity int `json:"capacity"`
}

func (s *Server) handleCapacity(w http.ResponseWriter, r *http.Request) {
	var req capacityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.New("invalid capacity payload"))
		return
	}
	if req.Capacity < 0 {
		writeError(w, errors.New("capacity must be non-negative"))
		return
	}
	if err := s.wall.SetCapacity(r.Context(), req.Capacity); err != nil {
		writeServiceUnavailable(w, err)
		return
	}
	log.FromContext(r.Context()).Info().
		Int(log.FieldCapacity, req.Capacity).
		Msg("capacity updated")
	writeJSON(w, http.StatusOK, capacityRequest{Capacity: req.Capacity})
}
