package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-carsharing/internal/models"
)

func TestObserveSnapshot(t *testing.T) {
	r := NewRecorder()
	r.ObserveSnapshot(models.Snapshot{
		Persons: []models.Person{
			{Identifier: "p1", LicenseValidDays: 3, Status: models.PersonActive},
			{Identifier: "p2", Status: models.PersonBlocked},
			{Identifier: "p3", LicenseValidDays: 9, Status: models.PersonActive},
		},
		Cars: []models.Car{
			{Identifier: "c1", Status: models.Rented()},
			{Identifier: "c2", Status: models.Maintenance(1)},
			{Identifier: "c3", Status: models.Available()},
		},
		Rentals:      []models.Rental{{PersonID: "p1", CarID: "c1"}},
		Reservations: []models.Reservation{{PersonID: "p3", CarID: "c1", Priority: 2}},
		CurrentDay:   12,
	})

	assert.Equal(t, 12.0, testutil.ToFloat64(r.currentDay))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.rentals))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.reservations))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.cars.WithLabelValues("Rented")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.cars.WithLabelValues("Maintenance")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.cars.WithLabelValues("Retired")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.persons.WithLabelValues("Active")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.persons.WithLabelValues("Blocked")))

	// a later snapshot resets stale counts
	r.ObserveSnapshot(models.Snapshot{})
	assert.Equal(t, 0.0, testutil.ToFloat64(r.cars.WithLabelValues("Rented")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.persons.WithLabelValues("Active")))
}

func TestCountOperation(t *testing.T) {
	r := NewRecorder()
	r.CountOperation("rent", true)
	r.CountOperation("rent", false)
	r.CountOperation("rent", false)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.operations.WithLabelValues("rent", "accepted")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.operations.WithLabelValues("rent", "rejected")))
}

func TestHandler(t *testing.T) {
	r := NewRecorder()
	r.ObserveSnapshot(models.Snapshot{CurrentDay: 4})

	rr := httptest.NewRecorder()
	r.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "fleet_current_day 4")
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}
