package metrics

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the bot.
type Metrics struct {
	TicksTotal    prometheus.Counter
	DroppedTicks  prometheus.Counter
	WSReconnects  prometheus.Counter
	TradesOpened  prometheus.Counter
	TradesSettled *prometheus.CounterVec // labels: result
	Balance       prometheus.Gauge
	EngineState   prometheus.Gauge // 0=idle/stopped, 1=trading

	AdvisoryRequests prometheus.Counter
	AdvisoryFailures prometheus.Counter
	AdvisoryLatency  prometheus.Histogram
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bot_ticks_total",
			Help: "Total ticks processed by the engine",
		}),
		DroppedTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bot_dropped_ticks_total",
			Help: "Ticks dropped because the engine channel was full",
		}),
		WSReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bot_ws_reconnects_total",
			Help: "Live feed reconnection attempts",
		}),
		TradesOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bot_trades_opened_total",
			Help: "Trades opened",
		}),
		TradesSettled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_trades_settled_total",
			Help: "Trades settled or cancelled (by result)",
		}, []string{"result"}),
		Balance: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bot_balance",
			Help: "Current running balance",
		}),
		EngineState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bot_engine_trading",
			Help: "Engine run state (1=TRADING, 0 otherwise)",
		}),
		AdvisoryRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bot_advisory_requests_total",
			Help: "Advisory oracle requests issued",
		}),
		AdvisoryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bot_advisory_failures_total",
			Help: "Advisory oracle failures degraded to HOLD",
		}),
		AdvisoryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bot_advisory_latency_seconds",
			Help:    "Advisory oracle round-trip latency",
			Buckets: prometheus.DefBuckets,
		}),
	}

	prometheus.MustRegister(
		m.TicksTotal,
		m.DroppedTicks,
		m.WSReconnects,
		m.TradesOpened,
		m.TradesSettled,
		m.Balance,
		m.EngineState,
		m.AdvisoryRequests,
		m.AdvisoryFailures,
		m.AdvisoryLatency,
	)

	return m
}

// HealthStatus represents the bot's health for the /healthz endpoint.
type HealthStatus struct {
	mu sync.RWMutex

	FeedConnected bool      `json:"feed_connected"`
	LastTickTime  time.Time `json:"last_tick_time"`
	RedisOK       bool      `json:"redis_ok"`
	JournalOK     bool      `json:"journal_ok"`
	StartedAt     time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now()}
}

func (h *HealthStatus) SetFeedConnected(v bool) {
	h.mu.Lock()
	h.FeedConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastTickTime(t time.Time) {
	h.mu.Lock()
	h.LastTickTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetRedisOK(v bool) {
	h.mu.Lock()
	h.RedisOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetJournalOK(v bool) {
	h.mu.Lock()
	h.JournalOK = v
	h.mu.Unlock()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overall := "healthy"
	code := http.StatusOK
	if !h.FeedConnected {
		overall = "degraded"
		code = http.StatusServiceUnavailable
	}

	tickAge := ""
	if !h.LastTickTime.IsZero() {
		tickAge = time.Since(h.LastTickTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status        string `json:"status"`
		Uptime        string `json:"uptime"`
		FeedConnected bool   `json:"feed_connected"`
		LastTickTime  string `json:"last_tick_time"`
		TickAge       string `json:"tick_age"`
		RedisOK       bool   `json:"redis_ok"`
		JournalOK     bool   `json:"journal_ok"`
	}{
		Status:        overall,
		Uptime:        time.Since(h.StartedAt).Round(time.Second).String(),
		FeedConnected: h.FeedConnected,
		LastTickTime:  h.LastTickTime.Format(time.RFC3339),
		TickAge:       tickAge,
		RedisOK:       h.RedisOK,
		JournalOK:     h.JournalOK,
	}

	w.Header().Set("Content-Type", "application/json")
	if code != http.StatusOK {
		w.WriteHeader(code)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics, /healthz and any extra
// routes mounted on its mux (the status API attaches here).
type Server struct {
	addr string
	mux  *http.ServeMux
	srv  *http.Server
}

// NewServer creates the metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		addr: addr,
		mux:  mux,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Mux exposes the underlying mux for additional routes.
func (s *Server) Mux() *http.ServeMux { return s.mux }

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
