package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
)

type staticSource struct {
	snap Snapshot
}

func (s *staticSource) Snapshot() Snapshot { return s.snap }

func TestMetrics_Creation(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	if m.ClustersTotal == nil {
		t.Error("ClustersTotal metric not created")
	}
	if m.NotificationsDropped == nil {
		t.Error("NotificationsDropped metric not created")
	}
	if m.HealthScore == nil {
		t.Error("HealthScore metric not created")
	}
}

func TestMetrics_NilReceiver(t *testing.T) {
	var m *Metrics

	// None of these may panic.
	m.SetClusters(1)
	m.SetMembers("c", 1)
	m.SetSubscriptions("c", 1)
	m.ForgetCluster("c")
	m.ObserveMutation(MutationMatched)
	m.NotificationQueued()
	m.NotificationDelivered("c", time.Now())
	m.NotificationDropped(DropOverflow)
	m.SubscriberFailed("c")
	m.SetQueueDepth(3)
	m.WriterBlocked()
	m.LinkAssociation(true)
}

func TestMetrics_Recording(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.SetMembers("wallet", 3)
	m.SetSubscriptions("wallet", 2)
	m.ObserveMutation(MutationMatched)
	m.ObserveMutation(MutationMatched)
	m.ObserveMutation(MutationUnmatched)
	m.NotificationDropped(DropOverflow)
	m.SubscriberFailed("wallet")
	m.LinkAssociation(true)
	m.LinkAssociation(false)
	m.LinkAssociation(false)

	if v := testutil.ToFloat64(m.Members.WithLabelValues("wallet")); v != 3 {
		t.Errorf("Expected 3 members, got %f", v)
	}
	if v := testutil.ToFloat64(m.Mutations.WithLabelValues(MutationMatched)); v != 2 {
		t.Errorf("Expected 2 matched mutations, got %f", v)
	}
	if v := testutil.ToFloat64(m.NotificationsDropped.WithLabelValues(DropOverflow)); v != 1 {
		t.Errorf("Expected 1 overflow drop, got %f", v)
	}
	if v := testutil.ToFloat64(m.LinkAssociations.WithLabelValues("rejected")); v != 2 {
		t.Errorf("Expected 2 rejected associations, got %f", v)
	}

	m.ForgetCluster("wallet")
	if n := testutil.CollectAndCount(m.Members); n != 0 {
		t.Errorf("Expected member series to be removed, got %d", n)
	}
}

func TestScore(t *testing.T) {
	tests := []struct {
		name string
		snap Snapshot
		want float64
	}{
		{"stopped", Snapshot{Running: false}, 0},
		{"idle", Snapshot{Running: true, QueueCapacity: 100}, 100},
		{"half full", Snapshot{Running: true, QueueCapacity: 100, PendingNotifications: 50}, 70},
		{"saturated", Snapshot{Running: true, QueueCapacity: 100, PendingNotifications: 500}, 40},
		{"inactive clusters", Snapshot{Running: true, Clusters: 2, ActiveClusters: 1}, 90},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Score(tt.snap); got != tt.want {
				t.Errorf("Score() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestHealthMonitor_Check(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)
	source := &staticSource{snap: Snapshot{Running: true, Clusters: 2, ActiveClusters: 2, PendingNotifications: 7, QueueCapacity: 100}}

	monitor := NewHealthMonitor(m, source, time.Hour, zap.NewNop())
	monitor.Check()

	health, last := monitor.GetHealth()
	if health <= 90 || health > 100 {
		t.Errorf("Unexpected health %f", health)
	}
	if last.IsZero() {
		t.Error("Last check time not recorded")
	}
	if v := testutil.ToFloat64(m.QueueDepth); v != 7 {
		t.Errorf("Expected queue depth 7, got %f", v)
	}
	if v := testutil.ToFloat64(m.ClustersTotal); v != 2 {
		t.Errorf("Expected 2 clusters, got %f", v)
	}
}

func TestHealthMonitor_StartStop(t *testing.T) {
	source := &staticSource{snap: Snapshot{Running: true}}
	monitor := NewHealthMonitor(nil, source, 10*time.Millisecond, nil)
	monitor.Start()
	time.Sleep(30 * time.Millisecond)
	monitor.Stop()
	monitor.Stop()

	if health, _ := monitor.GetHealth(); health != 100 {
		t.Errorf("Expected health 100, got %f", health)
	}
}

func TestHealthEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)
	source := &staticSource{snap: Snapshot{Running: true, QueueCapacity: 10}}
	monitor := NewHealthMonitor(m, source, time.Hour, nil)
	monitor.Check()

	mux := http.NewServeMux()
	NewHealthEndpoint(monitor, registry, zap.NewNop()).RegisterHandlers(mux)

	tests := []struct {
		path     string
		code     int
		contains string
	}{
		{"/health", http.StatusOK, `"status":"healthy"`},
		{"/health/live", http.StatusOK, "OK"},
		{"/health/ready", http.StatusOK, "READY"},
		{"/metrics", http.StatusOK, "globaldb_health_score"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.code {
				t.Errorf("Expected status %d, got %d", tt.code, rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.contains) {
				t.Errorf("Expected body to contain %q, got %q", tt.contains, rec.Body.String())
			}
		})
	}

	source.snap.Running = false
	monitor.Check()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected not ready after stop, got %d", rec.Code)
	}
}
