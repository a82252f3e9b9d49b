// Package api exposes the window engine and curve computation over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/summavi/summavi/pkg/fitfile"
	"github.com/summavi/summavi/pkg/pdc"
	"github.com/summavi/summavi/pkg/storage"
	"github.com/summavi/summavi/pkg/types"
	"github.com/summavi/summavi/pkg/window"
)

// Server implements the HTTP API server.
type Server struct {
	provider  *storage.CachingProvider
	pdcConfig pdc.Config
	addr      string
	server    *http.Server
	log       *zap.SugaredLogger
}

// NewServer creates a new API server on top of an open provider.
func NewServer(addr string, provider *storage.CachingProvider, cfg pdc.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		provider:  provider,
		pdcConfig: cfg,
		addr:      addr,
		log:       logger.Sugar(),
	}
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/windows", s.handleWindows)
	mux.HandleFunc("/api/v1/pdc", s.handlePDC)
	mux.HandleFunc("/api/v1/recordings", s.handleRecordings)
	mux.HandleFunc("/health", s.handleHealth)

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	s.log.Infow("API server listening", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// windowsRequest is a caller-supplied series plus a window spec.
type windowsRequest struct {
	Times  []float64 `json:"times"`
	Values []float64 `json:"values"`
	Length float64   `json:"length"`
	Step   float64   `json:"step"`
	Origin *float64  `json:"origin,omitempty"`
	Agg    string    `json:"agg,omitempty"`
}

// windowResponse is one emitted window. A failed aggregation carries its
// error string and no value.
type windowResponse struct {
	BeginTime  float64  `json:"begin_time"`
	EndTime    float64  `json:"end_time"`
	BeginIndex int      `json:"begin_index"`
	EndIndex   int      `json:"end_index"`
	Value      *float64 `json:"value,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// handleWindows runs one sliding-window sweep over a posted series.
func (s *Server) handleWindows(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req windowsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request: %v", err), http.StatusBadRequest)
		return
	}

	fn, err := pdc.Aggregator(req.Agg)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	series := types.TimeSeries{Times: req.Times, Values: req.Values}
	spec := window.Spec{Length: req.Length, Step: req.Step, Origin: req.Origin}

	it, err := window.AdvanceValues(series, spec, fn)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, window.ErrBadSpec) || errors.Is(err, types.ErrMalformedSeries) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}

	windows := make([]windowResponse, 0)
	for it.Next() {
		out := it.Window()
		resp := windowResponse{
			BeginTime:  out.BeginTime,
			EndTime:    out.EndTime,
			BeginIndex: out.BeginIndex,
			EndIndex:   out.EndIndex,
		}
		if out.Result.Failed() {
			resp.Error = out.Result.Err.Error()
		} else {
			v := out.Result.Value
			resp.Value = &v
		}
		windows = append(windows, resp)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"windows": windows,
	})
}

// pdcRequest names a recording (and optionally a channel) to compute a
// curve for.
type pdcRequest struct {
	Recording string `json:"recording"`
	Channel   string `json:"channel,omitempty"`
}

// handlePDC computes a power-duration curve over a stored recording.
func (s *Server) handlePDC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req pdcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request: %v", err), http.StatusBadRequest)
		return
	}
	if req.Recording == "" {
		http.Error(w, "Missing recording", http.StatusBadRequest)
		return
	}

	ch := fitfile.ChannelPower
	if req.Channel != "" {
		var err error
		if ch, err = fitfile.ParseChannel(req.Channel); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	series, err := s.provider.Series(r.Context(), req.Recording, ch)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, fitfile.ErrChannelUnsupported) || errors.Is(err, fitfile.ErrNoSamples) {
			status = http.StatusUnprocessableEntity
		}
		s.log.Warnw("series lookup failed", "recording", req.Recording, "channel", ch, "err", err)
		http.Error(w, err.Error(), status)
		return
	}

	curve, err := pdc.Compute(series, s.pdcConfig)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"recording": req.Recording,
		"channel":   ch,
		"curve":     curve,
	})
}

// handleRecordings lists cataloged recordings.
func (s *Server) handleRecordings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"recordings": s.provider.Recordings(),
	})
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
	})
}
