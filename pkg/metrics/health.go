package metrics

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Snapshot is the instance state sampled by the health monitor.
type Snapshot struct {
	Running              bool `json:"running"`
	Clusters             int  `json:"clusters"`
	ActiveClusters       int  `json:"active_clusters"`
	Members              int  `json:"members"`
	Subscriptions        int  `json:"subscriptions"`
	PendingNotifications int  `json:"pending_notifications"`
	QueueCapacity        int  `json:"queue_capacity"`
}

// Source provides snapshots to the health monitor.
type Source interface {
	Snapshot() Snapshot
}

// HealthMonitor periodically samples a Source and publishes gauges
type HealthMonitor struct {
	metrics *Metrics
	source  Source
	logger  *zap.Logger

	checkInterval time.Duration
	mu            sync.RWMutex
	lastCheck     time.Time
	lastSnapshot  Snapshot
	health        float64
	stopChan      chan struct{}
	stopOnce      sync.Once
}

// NewHealthMonitor creates a new health monitor
func NewHealthMonitor(metrics *Metrics, source Source, interval time.Duration, logger *zap.Logger) *HealthMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}

	return &HealthMonitor{
		metrics:       metrics,
		source:        source,
		logger:        logger,
		checkInterval: interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins periodic health monitoring
func (hm *HealthMonitor) Start() {
	go hm.monitorLoop()
}

// Stop stops the health monitor
func (hm *HealthMonitor) Stop() {
	hm.stopOnce.Do(func() { close(hm.stopChan) })
}

func (hm *HealthMonitor) monitorLoop() {
	ticker := time.NewTicker(hm.checkInterval)
	defer ticker.Stop()

	hm.Check()

	for {
		select {
		case <-ticker.C:
			hm.Check()
		case <-hm.stopChan:
			return
		}
	}
}

// Check samples the source once and updates the health gauges.
func (hm *HealthMonitor) Check() {
	snap := hm.source.Snapshot()
	score := Score(snap)

	hm.mu.Lock()
	hm.lastCheck = time.Now()
	hm.lastSnapshot = snap
	hm.health = score
	hm.mu.Unlock()

	if hm.metrics != nil {
		hm.metrics.LastHealthCheck.Set(float64(hm.lastCheck.Unix()))
		hm.metrics.HealthScore.Set(score)
		hm.metrics.SetClusters(snap.Clusters)
		hm.metrics.SetQueueDepth(snap.PendingNotifications)
	}

	hm.logger.Debug("Health check completed",
		zap.Float64("health_score", score),
		zap.Int("pending_notifications", snap.PendingNotifications))
}

// Score rates a snapshot from 0 to 100. A stopped instance scores 0; queue
// saturation costs up to 60 points and clusters that never became active
// cost 10.
func Score(s Snapshot) float64 {
	if !s.Running {
		return 0
	}
	score := 100.0
	if s.QueueCapacity > 0 {
		utilization := float64(s.PendingNotifications) / float64(s.QueueCapacity)
		if utilization > 1 {
			utilization = 1
		}
		score -= 60 * utilization
	}
	if s.ActiveClusters < s.Clusters {
		score -= 10
	}
	if score < 0 {
		score = 0
	}
	return score
}

// GetHealth returns the last score and when it was computed
func (hm *HealthMonitor) GetHealth() (float64, time.Time) {
	hm.mu.RLock()
	defer hm.mu.RUnlock()
	return hm.health, hm.lastCheck
}

func (hm *HealthMonitor) snapshot() Snapshot {
	hm.mu.RLock()
	defer hm.mu.RUnlock()
	return hm.lastSnapshot
}

// HealthEndpoint serves health checks and the metrics scrape endpoint
type HealthEndpoint struct {
	monitor  *HealthMonitor
	gatherer prometheus.Gatherer
	logger   *zap.Logger
}

// NewHealthEndpoint creates health check HTTP handlers
func NewHealthEndpoint(monitor *HealthMonitor, gatherer prometheus.Gatherer, logger *zap.Logger) *HealthEndpoint {
	if logger == nil {
		logger = zap.NewNop()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	return &HealthEndpoint{
		monitor:  monitor,
		gatherer: gatherer,
		logger:   logger,
	}
}

// RegisterHandlers registers HTTP handlers
func (he *HealthEndpoint) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/health", he.handleHealth)
	mux.HandleFunc("/health/live", he.handleLiveness)
	mux.HandleFunc("/health/ready", he.handleReadiness)
	mux.Handle("/metrics", promhttp.HandlerFor(he.gatherer, promhttp.HandlerOpts{}))
}

type healthResponse struct {
	Status      string   `json:"status"`
	HealthScore float64  `json:"health_score"`
	LastCheck   string   `json:"last_check"`
	Timestamp   string   `json:"timestamp"`
	Instance    Snapshot `json:"instance"`
}

func (he *HealthEndpoint) handleHealth(w http.ResponseWriter, r *http.Request) {
	health, lastCheck := he.monitor.GetHealth()

	status := "healthy"
	statusCode := http.StatusOK
	if health < 50 {
		status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	} else if health < 80 {
		status = "degraded"
	}

	resp := healthResponse{
		Status:      status,
		HealthScore: health,
		LastCheck:   lastCheck.Format(time.RFC3339),
		Timestamp:   time.Now().Format(time.RFC3339),
		Instance:    he.monitor.snapshot(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		he.logger.Debug("Failed to write health response", zap.Error(err))
	}
}

func (he *HealthEndpoint) handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (he *HealthEndpoint) handleReadiness(w http.ResponseWriter, r *http.Request) {
	health, _ := he.monitor.GetHealth()

	if health > 30 {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("READY"))
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("NOT READY"))
	}
}

// StartServer serves the health and metrics endpoints on addr
func StartServer(addr string, monitor *HealthMonitor, gatherer prometheus.Gatherer, logger *zap.Logger) *http.Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	NewHealthEndpoint(monitor, gatherer, logger).RegisterHandlers(mux)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting metrics server", zap.String("address", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()

	return server
}
