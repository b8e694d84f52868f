package client

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	Requests     *prometheus.CounterVec
	SlowRequests *prometheus.CounterVec
	Refreshes    *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forum_client_requests_total",
				Help: "Total number of API requests issued by the client",
			},
			[]string{"resource", "method", "outcome"},
		),
		SlowRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forum_client_slow_requests_total",
				Help: "Total number of API requests slower than the slow threshold",
			},
			[]string{"resource"},
		),
		Refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forum_client_refreshes_total",
				Help: "Total number of topic refreshes by trigger",
			},
			[]string{"trigger", "outcome"},
		),
	}

	reg.MustRegister(m.Requests)
	reg.MustRegister(m.SlowRequests)
	reg.MustRegister(m.Refreshes)

	return m
}

// ObserveRefresh is nil-safe so that views may run without metrics.
func (m *Metrics) ObserveRefresh(trigger string, err error) {
	if m == nil {
		return
	}
	m.Refreshes.WithLabelValues(trigger, outcome(err)).Inc()
}

func (m *Metrics) observeRequest(resource, method string, err error) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(resource, method, outcome(err)).Inc()
}

func (m *Metrics) observeSlow(resource string) {
	if m == nil {
		return
	}
	m.SlowRequests.WithLabelValues(resource).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
