// Package metrics exposes sync daemon health as Prometheus metrics.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CyclesTotal counts completed sync cycles, successful or not.
	CyclesTotal prometheus.Counter

	// CycleErrorsTotal counts cycles that captured a cycle-level error.
	CycleErrorsTotal prometheus.Counter

	// MemoriesSyncedTotal counts records successfully propagated.
	MemoriesSyncedTotal prometheus.Counter

	// DeletionsMarkedTotal counts tombstones propagated to the cloud.
	DeletionsMarkedTotal prometheus.Counter

	// LastCycleDuration reports the duration of the most recent cycle.
	LastCycleDuration prometheus.Gauge
)

var initOnce sync.Once

// Init registers all metrics. Safe to call multiple times; only the first
// call registers.
func Init() {
	initOnce.Do(func() {
		f := promauto.With(prometheus.DefaultRegisterer)
		CyclesTotal = f.NewCounter(prometheus.CounterOpts{
			Name: "memory_cloud_sync_cycles_total",
			Help: "Total number of completed sync cycles",
		})
		CycleErrorsTotal = f.NewCounter(prometheus.CounterOpts{
			Name: "memory_cloud_sync_cycle_errors_total",
			Help: "Total number of sync cycles that ended in error",
		})
		MemoriesSyncedTotal = f.NewCounter(prometheus.CounterOpts{
			Name: "memory_cloud_memories_synced_total",
			Help: "Total number of memories propagated to the cloud",
		})
		DeletionsMarkedTotal = f.NewCounter(prometheus.CounterOpts{
			Name: "memory_cloud_deletions_marked_total",
			Help: "Total number of local deletions marked in the cloud",
		})
		LastCycleDuration = f.NewGauge(prometheus.GaugeOpts{
			Name: "memory_cloud_last_cycle_duration_seconds",
			Help: "Duration of the most recent sync cycle",
		})
	})
}

// Serve runs the management listener with /metrics and /health until the
// context is cancelled. Intended for daemon mode.
func Serve(ctx context.Context, port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("Management listener started", "port", port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("Management listener failed", "err", err)
	}
}
