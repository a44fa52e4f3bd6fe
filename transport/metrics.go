package transport

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records transport activity. A nil *Metrics records nothing.
type Metrics struct {
	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	uploadedBytes prometheus.Counter
	cancelled     prometheus.Counter
}

// NewMetrics registers the transport collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "labbcat_client_requests_total",
				Help: "Total number of HTTP exchanges with the LaBB-CAT server",
			},
			[]string{"op", "method", "status"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "labbcat_client_request_duration_seconds",
				Help:    "HTTP exchange duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"op", "method"},
		),
		uploadedBytes: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "labbcat_client_uploaded_file_bytes_total",
				Help: "File content bytes streamed in multipart requests",
			},
		),
		cancelled: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "labbcat_client_cancelled_uploads_total",
				Help: "Multipart requests stopped by a cooperative cancel",
			},
		),
	}
}

func (m *Metrics) observe(op, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.requests.WithLabelValues(op, method, label).Inc()
	m.duration.WithLabelValues(op, method).Observe(elapsed.Seconds())
}

func (m *Metrics) addUploaded(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.uploadedBytes.Add(float64(n))
}

func (m *Metrics) incCancelled() {
	if m == nil {
		return
	}
	m.cancelled.Inc()
}
