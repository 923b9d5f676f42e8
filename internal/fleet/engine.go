// Package fleet implements the car sharing domain engine: persons, cars,
// rentals and the reservation queue, advanced by a day-by-day clock.
//
// An Engine is not safe for concurrent use. Callers serialize access, see
// the state package for the server-side wrapper.
package fleet

import (
	"errors"
	"fmt"
	"slices"

	"github.com/ukydev/fleet-carsharing/internal/models"
)

// Thresholds of the car lifecycle.
const (
	MaintenanceIntervalKm = 5000
	TuvIntervalKm         = 15000
	MaintenanceDays       = 2
	TuvDays               = 3
	MaxAgeDays            = 3650
	MaxMileage            = 200000
	MaxRentals            = 500
	RetirementThreshold   = 1.0
)

// ErrInvalidSnapshot is returned by Replace when a snapshot violates a fleet invariant.
var ErrInvalidSnapshot = errors.New("invalid fleet snapshot")

// Engine owns all state of one fleet.
type Engine struct {
	persons      []models.Person
	cars         []models.Car
	rentals      []models.Rental
	reservations []models.Reservation
	currentDay   int
}

// New returns an empty fleet on day 0.
func New() *Engine {
	return &Engine{}
}

// CurrentDay returns the simulation day counter.
func (e *Engine) CurrentDay() int {
	return e.currentDay
}

// RetirementScore sums the age, mileage and rental count of a car, each
// relative to its lifetime maximum. A car retires once the score exceeds 1.
func RetirementScore(car models.Car) float64 {
	return float64(car.AgeDays)/MaxAgeDays +
		float64(car.Mileage)/MaxMileage +
		float64(car.RentalCount)/MaxRentals
}

// RegisterPerson adds a person with the given license validity. A person
// without remaining license days starts out blocked.
func (e *Engine) RegisterPerson(identifier string, licenseValidDays int) bool {
	if identifier == "" || licenseValidDays < 0 || e.personIndex(identifier) >= 0 {
		return false
	}
	e.persons = append(e.persons, models.Person{
		Identifier:       identifier,
		LicenseValidDays: licenseValidDays,
		Status:           licenseStatus(licenseValidDays),
	})
	return true
}

// UnregisterPerson removes a person who holds no rental, together with all
// of their reservations.
func (e *Engine) UnregisterPerson(identifier string) bool {
	i := e.personIndex(identifier)
	if i < 0 || e.hasRental(identifier) {
		return false
	}
	e.reservations = slices.DeleteFunc(e.reservations, func(r models.Reservation) bool {
		return r.PersonID == identifier
	})
	e.persons = slices.Delete(e.persons, i, i+1)
	return true
}

// RenewLicense replaces the remaining license days of a person and
// unblocks them.
func (e *Engine) RenewLicense(identifier string, validDays int) bool {
	i := e.personIndex(identifier)
	if i < 0 || validDays < 0 {
		return false
	}
	e.persons[i].LicenseValidDays = validDays
	e.persons[i].Status = licenseStatus(validDays)
	return true
}

// Person returns a copy of the person with the given identifier.
func (e *Engine) Person(identifier string) (models.Person, bool) {
	i := e.personIndex(identifier)
	if i < 0 {
		return models.Person{}, false
	}
	return e.persons[i], true
}

// PersonStatus returns the status of a registered person.
func (e *Engine) PersonStatus(identifier string) (models.PersonStatus, bool) {
	p, ok := e.Person(identifier)
	return p.Status, ok
}

// RegisterCar admits a car into the fleet. The car always starts out
// Available; its status field is ignored.
func (e *Engine) RegisterCar(car models.Car) bool {
	if !e.canRegisterCar(car) {
		return false
	}
	car.Status = models.Available()
	e.cars = append(e.cars, car)
	return true
}

// UnregisterCar removes a car that is neither rented nor in the workshop,
// together with all reservations for it. Retired cars may be removed.
func (e *Engine) UnregisterCar(identifier string) bool {
	i := e.carIndex(identifier)
	if i < 0 || e.isRented(identifier) {
		return false
	}
	if status := e.cars[i].Status; status.Is(models.StatusRented) || status.InService() {
		return false
	}
	e.reservations = slices.DeleteFunc(e.reservations, func(r models.Reservation) bool {
		return r.CarID == identifier
	})
	e.cars = slices.Delete(e.cars, i, i+1)
	return true
}

// Car returns a copy of the car with the given identifier.
func (e *Engine) Car(identifier string) (models.Car, bool) {
	i := e.carIndex(identifier)
	if i < 0 {
		return models.Car{}, false
	}
	return e.cars[i], true
}

// CarStatus returns the status of a registered car.
func (e *Engine) CarStatus(identifier string) (models.CarStatus, bool) {
	c, ok := e.Car(identifier)
	return c.Status, ok
}

// AvailableCars lists the identifiers of all Available cars in registration order.
func (e *Engine) AvailableCars() []string {
	ids := make([]string, 0, len(e.cars))
	for _, c := range e.cars {
		if c.Status.Is(models.StatusAvailable) {
			ids = append(ids, c.Identifier)
		}
	}
	return ids
}

// Snapshot returns a deep copy of the whole fleet state.
func (e *Engine) Snapshot() models.Snapshot {
	return models.Snapshot{
		Persons:      cloneOrEmpty(e.persons),
		Cars:         cloneOrEmpty(e.cars),
		Rentals:      cloneOrEmpty(e.rentals),
		Reservations: cloneOrEmpty(e.reservations),
		CurrentDay:   e.currentDay,
	}
}

// Replace swaps the whole fleet state for the given snapshot. The snapshot
// is validated first; on error the engine is left untouched.
func (e *Engine) Replace(snap models.Snapshot) error {
	if err := validateSnapshot(snap); err != nil {
		return err
	}
	e.persons = cloneOrEmpty(snap.Persons)
	e.cars = cloneOrEmpty(snap.Cars)
	e.rentals = cloneOrEmpty(snap.Rentals)
	e.reservations = cloneOrEmpty(snap.Reservations)
	e.currentDay = snap.CurrentDay
	return nil
}

func validateSnapshot(snap models.Snapshot) error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidSnapshot, fmt.Sprintf(format, args...))
	}

	if snap.CurrentDay < 0 {
		return invalid("negative current day %d", snap.CurrentDay)
	}

	persons := make(map[string]bool, len(snap.Persons))
	for _, p := range snap.Persons {
		if p.Identifier == "" {
			return invalid("person without identifier")
		}
		if persons[p.Identifier] {
			return invalid("duplicate person %q", p.Identifier)
		}
		if p.LicenseValidDays < 0 || !models.IsValidPersonStatus(p.Status) {
			return invalid("person %q has invalid license state", p.Identifier)
		}
		persons[p.Identifier] = true
	}

	cars := make(map[string]models.Car, len(snap.Cars))
	for _, c := range snap.Cars {
		if c.Identifier == "" {
			return invalid("car without identifier")
		}
		if _, dup := cars[c.Identifier]; dup {
			return invalid("duplicate car %q", c.Identifier)
		}
		if c.Mileage < 0 || c.AgeDays < 0 || c.RentalCount < 0 {
			return invalid("car %q has negative counters", c.Identifier)
		}
		cars[c.Identifier] = c
	}

	renters := make(map[string]bool, len(snap.Rentals))
	rentedCars := make(map[string]bool, len(snap.Rentals))
	for _, r := range snap.Rentals {
		car, ok := cars[r.CarID]
		if !persons[r.PersonID] || !ok {
			return invalid("rental (%q, %q) references an unknown person or car", r.PersonID, r.CarID)
		}
		if renters[r.PersonID] || rentedCars[r.CarID] {
			return invalid("rental (%q, %q) overlaps another rental", r.PersonID, r.CarID)
		}
		if !car.Status.Is(models.StatusRented) {
			return invalid("rented car %q has status %s", r.CarID, car.Status)
		}
		renters[r.PersonID] = true
		rentedCars[r.CarID] = true
	}
	for id, c := range cars {
		if c.Status.Is(models.StatusRented) && !rentedCars[id] {
			return invalid("car %q is Rented without a rental", id)
		}
	}

	type pair struct{ person, car string }
	queued := make(map[pair]bool, len(snap.Reservations))
	for _, r := range snap.Reservations {
		if _, ok := cars[r.CarID]; !persons[r.PersonID] || !ok {
			return invalid("reservation (%q, %q) references an unknown person or car", r.PersonID, r.CarID)
		}
		key := pair{r.PersonID, r.CarID}
		if queued[key] {
			return invalid("duplicate reservation (%q, %q)", r.PersonID, r.CarID)
		}
		queued[key] = true
	}
	return nil
}

func licenseStatus(validDays int) models.PersonStatus {
	if validDays == 0 {
		return models.PersonBlocked
	}
	return models.PersonActive
}

func (e *Engine) personIndex(identifier string) int {
	return slices.IndexFunc(e.persons, func(p models.Person) bool { return p.Identifier == identifier })
}

func (e *Engine) carIndex(identifier string) int {
	return slices.IndexFunc(e.cars, func(c models.Car) bool { return c.Identifier == identifier })
}

func (e *Engine) rentalIndex(personID, carID string) int {
	return slices.IndexFunc(e.rentals, func(r models.Rental) bool {
		return r.PersonID == personID && r.CarID == carID
	})
}

func (e *Engine) hasRental(personID string) bool {
	return slices.ContainsFunc(e.rentals, func(r models.Rental) bool { return r.PersonID == personID })
}

func (e *Engine) isRented(carID string) bool {
	return slices.ContainsFunc(e.rentals, func(r models.Rental) bool { return r.CarID == carID })
}

// cloneOrEmpty copies s, returning an empty non-nil slice for empty input
// so snapshots encode as [] rather than null.
func cloneOrEmpty[T any](s []T) []T {
	out := make([]T, len(s))
	copy(out, s)
	return out
}
