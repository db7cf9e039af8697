package httpclient

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//Metrics counts and times the requests sent to the API
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

//NewMetrics creates the client collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "farmdash_api_requests_total",
			Help: "Requests sent to the farm management API, by status code and method.",
		}, []string{"code", "method"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "farmdash_api_request_duration_seconds",
			Help:    "Latency of requests sent to the farm management API.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}

	reg.MustRegister(m.requests, m.duration)

	return m
}

//Instrument wraps next so that every round trip is counted and timed
func (m *Metrics) Instrument(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return promhttp.InstrumentRoundTripperCounter(m.requests,
		promhttp.InstrumentRoundTripperDuration(m.duration, next),
	)
}

//Requests returns the counter for the given status code and lower case method
func (m *Metrics) Requests(code, method string) prometheus.Counter {
	return m.requests.WithLabelValues(code, method)
}
