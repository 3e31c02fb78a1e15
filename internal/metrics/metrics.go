package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is what the service and HTTP layer report into.
type Recorder interface {
	ObserveSale(status string, totalAmount float64)
	AddPoints(kind string, points int64)
	ObserveReport(kind string, elapsed time.Duration)
	ObserveRequest(method string, status int, elapsed time.Duration)
}

type ledgerMetrics struct {
	salesRecorded   *prometheus.CounterVec
	saleAmount      prometheus.Histogram
	pointsMoved     *prometheus.CounterVec
	reportDuration  *prometheus.HistogramVec
	requestDuration *prometheus.HistogramVec
}

func New(registry *prometheus.Registry) Recorder {
	factory := promauto.With(registry)

	return &ledgerMetrics{
		salesRecorded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "posledger_sales_recorded_total",
				Help: "Checkouts attempted, by outcome",
			},
			[]string{"status"},
		),
		saleAmount: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "posledger_sale_amount",
				Help:    "Total amount of recorded sales",
				Buckets: prometheus.ExponentialBuckets(10, 4, 7), // 10 .. 40960
			},
		),
		pointsMoved: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "posledger_points_moved_total",
				Help: "Absolute loyalty points written to the ledger, by kind",
			},
			[]string{"kind"},
		),
		reportDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "posledger_report_duration_seconds",
				Help:    "Time spent building reports",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "posledger_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "code"},
		),
	}
}

func (m *ledgerMetrics) ObserveSale(status string, totalAmount float64) {
	m.salesRecorded.WithLabelValues(status).Inc()
	if status == StatusRecorded {
		m.saleAmount.Observe(totalAmount)
	}
}

func (m *ledgerMetrics) AddPoints(kind string, points int64) {
	if points < 0 {
		points = -points
	}
	m.pointsMoved.WithLabelValues(kind).Add(float64(points))
}

func (m *ledgerMetrics) ObserveReport(kind string, elapsed time.Duration) {
	m.reportDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func (m *ledgerMetrics) ObserveRequest(method string, status int, elapsed time.Duration) {
	m.requestDuration.WithLabelValues(method, statusClass(status)).Observe(elapsed.Seconds())
}

const (
	StatusRecorded = "recorded"
	StatusRejected = "rejected"
	StatusFailed   = "failed"
)

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// Nop discards everything.
type Nop struct{}

func (Nop) ObserveSale(string, float64)               {}
func (Nop) AddPoints(string, int64)                   {}
func (Nop) ObserveReport(string, time.Duration)       {}
func (Nop) ObserveRequest(string, int, time.Duration) {}
