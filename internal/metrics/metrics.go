package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "labkiosk",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	scans = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "labkiosk",
			Name:      "kiosk_scans_total",
			Help:      "Kiosk scans by outcome.",
		},
		[]string{"outcome"},
	)

	bookingTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "labkiosk",
			Name:      "booking_transitions_total",
			Help:      "Booking status transitions.",
		},
		[]string{"status"},
	)

	notifyTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "labkiosk",
			Name:      "notify_tasks_total",
			Help:      "Notification tasks by result.",
		},
		[]string{"result"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, scans, bookingTransitions, notifyTasks)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncScan increments the scan counter: outcome is the action for accepted
// scans or the error kind for rejected ones.
func IncScan(outcome string) {
	scans.WithLabelValues(outcome).Inc()
}

// IncTransition increments the transition counter for a target status.
func IncTransition(status string) {
	bookingTransitions.WithLabelValues(status).Inc()
}

// IncNotify counts a processed notification task ("sent", "retry", "failed").
func IncNotify(result string) {
	notifyTasks.WithLabelValues(result).Inc()
}
