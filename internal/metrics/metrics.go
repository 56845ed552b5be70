// Package metrics provides Prometheus metrics for the klip daemon.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Capture metrics
	capturesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "klip_captures_total",
			Help: "Total number of clipboard entries captured, by kind",
		},
		[]string{"kind"},
	)

	duplicatesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "klip_capture_duplicates_total",
			Help: "Captures rejected because they duplicate the newest entry",
		},
	)

	noCaptureTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "klip_capture_skipped_total",
			Help: "Clipboard changes that produced no entry",
		},
	)

	captureErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "klip_capture_errors_total",
			Help: "Clipboard reads that failed",
		},
	)

	// History metrics
	historySize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "klip_history_entries",
			Help: "Number of entries in history",
		},
	)

	evictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "klip_history_evictions_total",
			Help: "Entries evicted from the tail by the history cap",
		},
	)

	// Paste metrics
	pastesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "klip_pastes_total",
			Help: "Total paste operations",
		},
		[]string{"status"},
	)

	// Sweep metrics
	sweepRemovalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "klip_sweep_removals_total",
			Help: "Entries removed by retention sweeps, by reason",
		},
		[]string{"reason"},
	)

	sweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "klip_sweep_duration_seconds",
			Help:    "Retention sweep duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	assetsReclaimedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "klip_assets_reclaimed_total",
			Help: "Asset files deleted after their entry was removed",
		},
	)

	// Persistence metrics
	saveDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "klip_db_save_duration_seconds",
			Help:    "Time to persist the history snapshot",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// RecordCapture records an accepted capture of the given kind.
func RecordCapture(kind string) {
	capturesTotal.WithLabelValues(kind).Inc()
}

// RecordDuplicate records a capture rejected by head deduplication.
func RecordDuplicate() {
	duplicatesTotal.Inc()
}

// RecordNoCapture records a clipboard change that was not captured.
func RecordNoCapture() {
	noCaptureTotal.Inc()
}

// RecordCaptureError records a failed clipboard read.
func RecordCaptureError() {
	captureErrorsTotal.Inc()
}

// SetHistorySize sets the current history length.
func SetHistorySize(n int) {
	historySize.Set(float64(n))
}

// RecordEvictions records cap evictions.
func RecordEvictions(n int) {
	evictionsTotal.Add(float64(n))
}

// RecordPaste records a paste attempt.
func RecordPaste(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	pastesTotal.WithLabelValues(status).Inc()
}

// RecordSweep records a sweep run and its removals per reason.
func RecordSweep(duration time.Duration, aged, overCap, invalid int) {
	sweepDuration.Observe(duration.Seconds())
	sweepRemovalsTotal.WithLabelValues("age").Add(float64(aged))
	sweepRemovalsTotal.WithLabelValues("count").Add(float64(overCap))
	sweepRemovalsTotal.WithLabelValues("invalid").Add(float64(invalid))
}

// RecordAssetsReclaimed records deleted asset files.
func RecordAssetsReclaimed(n int) {
	assetsReclaimedTotal.Add(float64(n))
}

// RecordSave records a persistence save.
func RecordSave(duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	saveDuration.WithLabelValues(status).Observe(duration.Seconds())
}
