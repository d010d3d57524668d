package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the screener pipeline.
type Metrics struct {
	// Streaming ingest
	TickerMessagesTotal prometheus.Counter
	DroppedFramesTotal  prometheus.Counter
	WSReconnects        prometheus.Counter
	ThrottledUpdates    prometheus.Counter
	OpenChannels        prometheus.Gauge

	// Recompute pipeline
	RecomputesTotal    prometheus.Counter
	RecomputeBatches   prometheus.Counter
	RecomputeDur       prometheus.Histogram
	SignalChangesTotal *prometheus.CounterVec // labels: signal

	// Backfill
	BackfillLoaded   prometheus.Counter
	BackfillFailures prometheus.Counter

	// Memory management
	SeriesEvicted      prometheus.Counter
	AccumulatorRescale prometheus.Counter

	// Persistence
	PersistSaveDur      prometheus.Histogram
	CircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	CircuitBreakerTrips prometheus.Counter
	JournalDropsTotal   prometheus.Counter

	// Sentiment
	SentimentValue prometheus.Gauge
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		TickerMessagesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "screener_ticker_messages_total",
			Help: "Total ticker messages received over the combined streams",
		}),
		DroppedFramesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "screener_dropped_frames_total",
			Help: "Malformed stream frames dropped",
		}),
		WSReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "screener_ws_reconnects_total",
			Help: "Total WebSocket reconnection attempts",
		}),
		ThrottledUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "screener_throttled_updates_total",
			Help: "Full ticker updates deferred by the per-instrument throttle",
		}),
		OpenChannels: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "screener_open_channels",
			Help: "Subscription channels currently open",
		}),

		RecomputesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "screener_recomputes_total",
			Help: "Per-instrument signal recomputes executed",
		}),
		RecomputeBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "screener_recompute_batches_total",
			Help: "Debounced recompute batches drained",
		}),
		RecomputeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "screener_recompute_duration_seconds",
			Help:    "Latency of one debounced recompute batch",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
		SignalChangesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "screener_signal_changes_total",
			Help: "Stored signal transitions (by resulting signal)",
		}, []string{"signal"}),

		BackfillLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "screener_backfill_loaded_total",
			Help: "Instruments with history loaded by the backfill pool",
		}),
		BackfillFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "screener_backfill_failures_total",
			Help: "Backfill requests that failed or timed out",
		}),

		SeriesEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "screener_series_evicted_total",
			Help: "Historical series evicted by the memory cleanup cycle",
		}),
		AccumulatorRescale: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "screener_accumulator_rescales_total",
			Help: "Buy/sell volume accumulator rescale operations",
		}),

		PersistSaveDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "screener_persist_save_duration_seconds",
			Help:    "Redis state save latency",
			Buckets: prometheus.DefBuckets,
		}),
		CircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "screener_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		CircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "screener_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
		JournalDropsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "screener_journal_drops_total",
			Help: "Signal transitions dropped by the journal buffer",
		}),

		SentimentValue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "screener_sentiment_index",
			Help: "Latest fear/greed index value (0-100)",
		}),
	}

	prometheus.MustRegister(
		m.TickerMessagesTotal,
		m.DroppedFramesTotal,
		m.WSReconnects,
		m.ThrottledUpdates,
		m.OpenChannels,
		m.RecomputesTotal,
		m.RecomputeBatches,
		m.RecomputeDur,
		m.SignalChangesTotal,
		m.BackfillLoaded,
		m.BackfillFailures,
		m.SeriesEvicted,
		m.AccumulatorRescale,
		m.PersistSaveDur,
		m.CircuitBreakerState,
		m.CircuitBreakerTrips,
		m.JournalDropsTotal,
		m.SentimentValue,
	)

	return m
}

// HealthStatus represents the screener's health.
type HealthStatus struct {
	mu sync.RWMutex

	StreamStatus   string    `json:"stream_status"` // supervisor status line
	OpenChannels   int       `json:"open_channels"`
	TotalChannels  int       `json:"total_channels"`
	LastTickTime   time.Time `json:"last_tick_time"`
	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`
	SentimentOK    bool      `json:"sentiment_ok"`
	Instruments    int       `json:"instruments"`

	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetStreamStatus(status string, open, total int) {
	h.mu.Lock()
	h.StreamStatus = status
	h.OpenChannels = open
	h.TotalChannels = total
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastTickTime(t time.Time) {
	h.mu.Lock()
	h.LastTickTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetSentimentOK(v bool) {
	h.mu.Lock()
	h.SentimentOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetInstruments(n int) {
	h.mu.Lock()
	h.Instruments = n
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the journal database and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK

	streamsHealthy := h.TotalChannels == 0 || h.OpenChannels*2 >= h.TotalChannels
	if !streamsHealthy {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if h.TotalChannels > 0 && h.OpenChannels == 0 {
		overallStatus = "unhealthy"
	}

	tickAge := ""
	if !h.LastTickTime.IsZero() {
		tickAge = time.Since(h.LastTickTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		StreamStatus    string  `json:"stream_status"`
		OpenChannels    int     `json:"open_channels"`
		TotalChannels   int     `json:"total_channels"`
		LastTickTime    string  `json:"last_tick_time"`
		TickAge         string  `json:"tick_age"`
		Instruments     int     `json:"instruments"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		SentimentOK     bool    `json:"sentiment_ok"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		StreamStatus:    h.StreamStatus,
		OpenChannels:    h.OpenChannels,
		TotalChannels:   h.TotalChannels,
		LastTickTime:    h.LastTickTime.Format(time.RFC3339),
		TickAge:         tickAge,
		Instruments:     h.Instruments,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		SentimentOK:     h.SentimentOK,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
