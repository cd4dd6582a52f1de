package swift

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts transport activity. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	requests   *prometheus.CounterVec
	reauths    prometheus.Counter
	uploaded   prometheus.Counter
	downloaded prometheus.Counter
}

// NewMetrics creates the transport counters and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "objectstorage_requests_total",
				Help: "Total number of storage requests by method and status code.",
			},
			[]string{"method", "code"},
		),
		reauths: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "objectstorage_reauthentications_total",
			Help: "Total number of re-authentications triggered by a 401 response.",
		}),
		uploaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "objectstorage_uploaded_bytes_total",
			Help: "Total number of object bytes written to upload streams.",
		}),
		downloaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "objectstorage_downloaded_bytes_total",
			Help: "Total number of object bytes read from download streams.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.requests, m.reauths, m.uploaded, m.downloaded)
	}

	return m
}

// requestDone records a finished request. code 0 means no response.
func (m *Metrics) requestDone(method string, code int) {
	if m == nil {
		return
	}

	label := "error"
	if code != 0 {
		label = strconv.Itoa(code)
	}

	m.requests.WithLabelValues(method, label).Inc()
}

func (m *Metrics) reauthenticated() {
	if m == nil {
		return
	}

	m.reauths.Inc()
}

func (m *Metrics) addUploaded(n int) {
	if m == nil || n <= 0 {
		return
	}

	m.uploaded.Add(float64(n))
}

func (m *Metrics) addDownloaded(n int) {
	if m == nil || n <= 0 {
		return
	}

	m.downloaded.Add(float64(n))
}
