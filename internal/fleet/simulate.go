package fleet

import (
	"github.com/ukydev/fleet-carsharing/internal/models"
)

// Simulate advances the fleet by the given number of days, one tick at a
// time. It returns every rental granted by the reservation resolver along
// the way, in grant order. Zero or negative days is a no-op.
func (e *Engine) Simulate(days int) []models.Rental {
	granted := []models.Rental{}
	for range days {
		granted = append(granted, e.tick()...)
	}
	return granted
}

// tick advances a single day. The step order is fixed: each step sees the
// result of the previous one.
func (e *Engine) tick() []models.Rental {
	e.currentDay++

	for i := range e.persons {
		p := &e.persons[i]
		if p.LicenseValidDays > 0 {
			p.LicenseValidDays--
		}
		if p.LicenseValidDays == 0 {
			p.Status = models.PersonBlocked
		}
	}

	for i := range e.cars {
		e.cars[i].AgeDays++
	}

	// retirement waits until a rented car comes back
	for i := range e.cars {
		c := &e.cars[i]
		if c.Status.Is(models.StatusRented) || c.Status.Is(models.StatusRetired) {
			continue
		}
		if dueForRetirement(*c) {
			c.Status = models.Retired()
		}
	}

	for i := range e.cars {
		e.cars[i].Status = e.cars[i].Status.Countdown()
	}

	return e.ProcessReservations()
}
