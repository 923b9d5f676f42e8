package fleet

import (
	"cmp"
	"slices"

	"github.com/ukydev/fleet-carsharing/internal/models"
)

// Reserve queues the person for the car with the given priority.
func (e *Engine) Reserve(personID, carID string, priority int) bool {
	if !e.CanReserve(personID, carID) {
		return false
	}
	e.reservations = append(e.reservations, models.Reservation{
		PersonID: personID,
		CarID:    carID,
		Priority: priority,
	})
	return true
}

// CancelReservation removes the reservation of the person for the car.
func (e *Engine) CancelReservation(personID, carID string) bool {
	i := slices.IndexFunc(e.reservations, func(r models.Reservation) bool {
		return r.PersonID == personID && r.CarID == carID
	})
	if i < 0 {
		return false
	}
	e.reservations = slices.Delete(e.reservations, i, i+1)
	return true
}

// ReservationsForCar lists the persons queued for the car in queue order.
func (e *Engine) ReservationsForCar(carID string) []string {
	ids := []string{}
	for _, r := range e.reservations {
		if r.CarID == carID {
			ids = append(ids, r.PersonID)
		}
	}
	return ids
}

// Reservations returns a copy of the reservation queue.
func (e *Engine) Reservations() []models.Reservation {
	return cloneOrEmpty(e.reservations)
}

// ProcessReservations turns queued reservations into rentals. The queue is
// ordered by descending priority, keeping the previous order among equal
// priorities, and tried once front to back. A person who is granted a car
// loses all other reservations. Reservations that cannot be served stay
// queued. The granted pairs are returned in grant order.
func (e *Engine) ProcessReservations() []models.Rental {
	slices.SortStableFunc(e.reservations, func(a, b models.Reservation) int {
		return cmp.Compare(b.Priority, a.Priority)
	})

	granted := []models.Rental{}
	served := make(map[string]bool)
	for _, r := range slices.Clone(e.reservations) {
		if e.Rent(r.PersonID, r.CarID) {
			granted = append(granted, models.Rental{PersonID: r.PersonID, CarID: r.CarID})
			served[r.PersonID] = true
		}
	}

	if len(served) > 0 {
		e.reservations = slices.DeleteFunc(e.reservations, func(r models.Reservation) bool {
			return served[r.PersonID]
		})
	}
	return granted
}
