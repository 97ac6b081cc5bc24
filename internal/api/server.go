// Package api exposes the bot over HTTP: status and trade history reads
// plus the start/stop/settings controls. It mounts on the metrics server's
// mux so the whole operational surface shares one listener.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/nundapaulo885-rgb/Nund-Comercial/internal/engine"
	"github.com/nundapaulo885-rgb/Nund-Comercial/internal/model"
	"github.com/nundapaulo885-rgb/Nund-Comercial/internal/settings"
)

// Server handles the bot's HTTP API.
type Server struct {
	engine *engine.Engine
}

// NewServer creates the API server around an engine.
func NewServer(e *engine.Engine) *Server {
	return &Server{engine: e}
}

// Register mounts all routes on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/trades", s.handleTrades)
	mux.HandleFunc("/api/v1/advisory", s.handleAdvisory)
	mux.HandleFunc("/api/v1/start", s.handleStart)
	mux.HandleFunc("/api/v1/stop", s.handleStop)
	mux.HandleFunc("/api/v1/settings", s.handleSettings)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Trades []model.Trade `json:"trades"`
	}{Trades: s.engine.History()})
}

func (s *Server) handleAdvisory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.LatestAdvice())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if err := s.engine.Start(); err != nil {
		if errors.Is(err, engine.ErrAlreadyRunning) {
			writeError(w, http.StatusConflict, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	log.Printf("[api] bot started via API")
	writeJSON(w, http.StatusOK, map[string]string{"state": string(s.engine.State())})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if err := s.engine.Stop(); err != nil {
		if errors.Is(err, engine.ErrNotRunning) {
			writeError(w, http.StatusConflict, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	log.Printf("[api] bot stopped via API")
	writeJSON(w, http.StatusOK, map[string]string{"state": string(s.engine.State())})
}

// settingsRequest carries only the fields the API may change; the API token
// is never settable (or readable) over HTTP.
type settingsRequest struct {
	Stake      *float64 `json:"stake"`
	TakeProfit *float64 `json:"take_profit"`
	StopLoss   *float64 `json:"stop_loss"`
	Strategy   *string  `json:"strategy"`
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		st := s.engine.Status().Settings
		writeJSON(w, http.StatusOK, st)
	case http.MethodPut, http.MethodPost:
		var req settingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		next := s.engine.CurrentSettings()
		if req.Stake != nil {
			next.Stake = *req.Stake
		}
		if req.TakeProfit != nil {
			next.TakeProfit = *req.TakeProfit
		}
		if req.StopLoss != nil {
			next.StopLoss = *req.StopLoss
		}
		if req.Strategy != nil {
			next.Strategy = model.StrategyType(*req.Strategy)
		}
		if err := s.engine.UpdateSettings(next); err != nil {
			switch {
			case errors.Is(err, settings.ErrLocked):
				writeError(w, http.StatusConflict, err)
			case errors.Is(err, settings.ErrInvalid):
				writeError(w, http.StatusBadRequest, err)
			default:
				writeError(w, http.StatusInternalServerError, err)
			}
			return
		}
		scrubbed := next
		scrubbed.APIToken = ""
		writeJSON(w, http.StatusOK, scrubbed)
	default:
		methodNotAllowed(w)
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
}
