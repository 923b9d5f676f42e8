package fleet

import (
	"slices"

	"github.com/ukydev/fleet-carsharing/internal/models"
)

// CanRent reports whether the person may rent the car right now: the person
// holds no rental and is not blocked, and the car is Available.
func (e *Engine) CanRent(personID, carID string) bool {
	pi, ci := e.personIndex(personID), e.carIndex(carID)
	if pi < 0 || ci < 0 {
		return false
	}
	return !e.hasRental(personID) &&
		e.persons[pi].Status != models.PersonBlocked &&
		e.cars[ci].Status.Is(models.StatusAvailable)
}

// CanReserve reports whether the person may queue for the car. The car does
// not need to be Available.
func (e *Engine) CanReserve(personID, carID string) bool {
	pi, ci := e.personIndex(personID), e.carIndex(carID)
	if pi < 0 || ci < 0 {
		return false
	}
	return e.persons[pi].Status != models.PersonBlocked &&
		!e.hasRental(personID) &&
		!e.hasReservation(personID, carID)
}

func (e *Engine) canRegisterCar(car models.Car) bool {
	if car.Identifier == "" || e.carIndex(car.Identifier) >= 0 {
		return false
	}
	if car.Mileage < 0 || car.AgeDays < 0 || car.RentalCount < 0 {
		return false
	}
	return car.Mileage <= MaxMileage && RetirementScore(car) <= RetirementThreshold
}

func (e *Engine) hasReservation(personID, carID string) bool {
	return slices.ContainsFunc(e.reservations, func(r models.Reservation) bool {
		return r.PersonID == personID && r.CarID == carID
	})
}

// dueForRetirement applies the daily retirement rules to a car that is not rented.
func dueForRetirement(car models.Car) bool {
	return car.AgeDays >= MaxAgeDays ||
		car.RentalCount >= MaxRentals ||
		RetirementScore(car) > RetirementThreshold
}
