package fleet

import (
	"slices"

	"github.com/ukydev/fleet-carsharing/internal/models"
)

// Rent hands the car to the person if CanRent holds.
func (e *Engine) Rent(personID, carID string) bool {
	if !e.CanRent(personID, carID) {
		return false
	}
	i := e.carIndex(carID)
	e.rentals = append(e.rentals, models.Rental{PersonID: personID, CarID: carID})
	e.cars[i].Status = models.Rented()
	e.cars[i].RentalCount++
	return true
}

// Return ends the rental of the car by the person and books the driven
// distance. The car then retires, goes to inspection or maintenance, or
// becomes Available again, in that order of precedence.
func (e *Engine) Return(personID, carID string, drivenKm int) bool {
	if drivenKm < 0 {
		return false
	}
	ri := e.rentalIndex(personID, carID)
	ci := e.carIndex(carID)
	if ri < 0 || ci < 0 {
		return false
	}

	car := &e.cars[ci]
	start := car.Mileage
	car.Mileage += drivenKm
	car.Status = statusAfterReturn(*car, start, drivenKm)

	e.rentals = slices.Delete(e.rentals, ri, ri+1)
	return true
}

func statusAfterReturn(car models.Car, startKm, drivenKm int) models.CarStatus {
	switch {
	case RetirementScore(car) > RetirementThreshold, car.Mileage >= MaxMileage:
		return models.Retired()
	case crossesInterval(startKm, drivenKm, TuvIntervalKm):
		return models.Tuv(TuvDays)
	case crossesInterval(startKm, drivenKm, MaintenanceIntervalKm):
		return models.Maintenance(MaintenanceDays)
	default:
		return models.Available()
	}
}

// crossesInterval reports whether driving from startKm passes a multiple of interval.
func crossesInterval(startKm, drivenKm, interval int) bool {
	return startKm/interval < (startKm+drivenKm)/interval
}
