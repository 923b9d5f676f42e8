// Package metrics exposes the fleet state as Prometheus gauges.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ukydev/fleet-carsharing/internal/models"
)

const namespace = "fleet"

var carStatuses = []models.StatusKind{
	models.StatusAvailable,
	models.StatusRented,
	models.StatusMaintenance,
	models.StatusTuv,
	models.StatusRetired,
}

var personStatuses = []models.PersonStatus{models.PersonActive, models.PersonBlocked}

// Recorder owns a private registry so tests and multiple servers do not
// collide on the global one.
type Recorder struct {
	registry     *prometheus.Registry
	currentDay   prometheus.Gauge
	cars         *prometheus.GaugeVec
	persons      *prometheus.GaugeVec
	rentals      prometheus.Gauge
	reservations prometheus.Gauge
	operations   *prometheus.CounterVec
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		currentDay: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current_day",
			Help:      "Simulated day counter.",
		}),
		cars: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cars",
			Help:      "Registered cars by status.",
		}, []string{"status"}),
		persons: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "persons",
			Help:      "Registered persons by status.",
		}, []string{"status"}),
		rentals: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rentals",
			Help:      "Rentals currently in progress.",
		}),
		reservations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queued_reservations",
			Help:      "Reservations waiting in the queue.",
		}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Fleet operations by name and result.",
		}, []string{"operation", "result"}),
	}

	r.registry.MustRegister(
		r.currentDay, r.cars, r.persons, r.rentals, r.reservations, r.operations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObserveSnapshot sets every gauge from the given state.
func (r *Recorder) ObserveSnapshot(s models.Snapshot) {
	r.currentDay.Set(float64(s.CurrentDay))
	r.rentals.Set(float64(len(s.Rentals)))
	r.reservations.Set(float64(len(s.Reservations)))

	carCounts := make(map[models.StatusKind]int, len(carStatuses))
	for _, c := range s.Cars {
		carCounts[c.Status.Kind()]++
	}
	for _, kind := range carStatuses {
		r.cars.WithLabelValues(kind.String()).Set(float64(carCounts[kind]))
	}

	personCounts := make(map[models.PersonStatus]int, len(personStatuses))
	for _, p := range s.Persons {
		personCounts[p.Status]++
	}
	for _, status := range personStatuses {
		r.persons.WithLabelValues(string(status)).Set(float64(personCounts[status]))
	}
}

// CountOperation records one fleet operation. Rejections are not errors:
// the engine refused the request.
func (r *Recorder) CountOperation(operation string, accepted bool) {
	result := "accepted"
	if !accepted {
		result = "rejected"
	}
	r.operations.WithLabelValues(operation, result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
