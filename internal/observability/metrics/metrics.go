package metrics

import (
	"context"
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "hydrolog_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	saveTotal    *prometheus.CounterVec
	saveLatency  *prometheus.HistogramVec
	saveRejected *prometheus.CounterVec

	rolloverAutosaves *prometheus.CounterVec
	debounceAutosaves *prometheus.CounterVec

	problemsFlagged *prometheus.CounterVec

	finalizeTotal *prometheus.CounterVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec

	openIssues prometheus.Gauge
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		saveTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "record_saves_total",
				Help: "Total hourly record save attempts by result",
			},
			[]string{"result"},
		)
		saveLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "record_save_latency_seconds",
				Help:    "Hourly record save latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		saveRejected = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "record_saves_rejected_total",
				Help: "Saves rejected at the editability boundary by reason",
			},
			[]string{"reason"},
		)

		rolloverAutosaves = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "rollover_autosaves_total",
				Help: "Autosaves triggered by wall-clock hour rollover by result",
			},
			[]string{"result"},
		)
		debounceAutosaves = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "debounce_autosaves_total",
				Help: "Autosaves triggered by the edit debounce timer by result",
			},
			[]string{"result"},
		)

		problemsFlagged = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "problems_flagged_total",
				Help: "Out-of-range readings flagged by entity kind",
			},
			[]string{"entity_kind"},
		)

		finalizeTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "day_finalize_total",
				Help: "Day finalization attempts by result",
			},
			[]string{"result"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "daysheet_export_total",
				Help: "Day sheet export operations by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "daysheet_export_latency_seconds",
				Help:    "Day sheet export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		openIssues = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "open_issues",
				Help: "Currently open flagged issues",
			},
		)

		prometheus.MustRegister(
			saveTotal,
			saveLatency,
			saveRejected,
			rolloverAutosaves,
			debounceAutosaves,
			problemsFlagged,
			finalizeTotal,
			exportTotal,
			exportLatency,
			openIssues,
		)

		if db != nil {
			go pollOpenIssues(db, logger)
		}
	})
}

func pollOpenIssues(db *sql.DB, logger *log.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		var count int
		err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM issues WHERE status = 'open'`).Scan(&count)
		cancel()
		if err != nil {
			if logger != nil {
				logger.Printf("metrics: open issues poll error: %v", err)
			}
			continue
		}
		if openIssues != nil {
			openIssues.Set(float64(count))
		}
	}
}

// ObserveSave records a save attempt's result and duration.
func ObserveSave(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if saveTotal != nil {
		saveTotal.WithLabelValues(result).Inc()
	}
	if saveLatency != nil {
		saveLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncSaveRejected counts a save rejected at the editability boundary.
func IncSaveRejected(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if saveRejected != nil {
		saveRejected.WithLabelValues(reason).Inc()
	}
}

// IncRolloverAutosave counts a rollover-triggered autosave.
func IncRolloverAutosave(result string) {
	if result == "" {
		result = resultSuccess
	}
	if rolloverAutosaves != nil {
		rolloverAutosaves.WithLabelValues(result).Inc()
	}
}

// IncDebounceAutosave counts a debounce-triggered autosave.
func IncDebounceAutosave(result string) {
	if result == "" {
		result = resultSuccess
	}
	if debounceAutosaves != nil {
		debounceAutosaves.WithLabelValues(result).Inc()
	}
}

// IncProblemFlagged counts a danger-classified reading.
func IncProblemFlagged(entityKind string) {
	if entityKind == "" {
		entityKind = "unknown"
	}
	if problemsFlagged != nil {
		problemsFlagged.WithLabelValues(entityKind).Inc()
	}
}

// IncFinalize counts a day finalization attempt.
func IncFinalize(result string) {
	if result == "" {
		result = resultSuccess
	}
	if finalizeTotal != nil {
		finalizeTotal.WithLabelValues(result).Inc()
	}
}

// ObserveExport records day sheet export latency and result.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError

	RejectReasonLocked    = "hour_locked"
	RejectReasonFinalized = "day_finalized"
)
