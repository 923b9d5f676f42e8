package models

import (
	"encoding/json"
	"fmt"
)

// Rental pairs a person with the car they are currently driving.
// It is encoded as a two-element array: ["person", "car"].
type Rental struct {
	PersonID string
	CarID    string
}

// MarshalJSON encodes the rental as a [person, car] pair.
func (r Rental) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{r.PersonID, r.CarID})
}

// UnmarshalJSON accepts a two-element string array.
func (r *Rental) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("invalid rental: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("invalid rental: expected 2 elements, got %d", len(pair))
	}
	r.PersonID, r.CarID = pair[0], pair[1]
	return nil
}

// Reservation is a queued request of a person for a specific car.
type Reservation struct {
	PersonID string `json:"person_id"`
	CarID    string `json:"car_id"`
	Priority int    `json:"priority"`
}

// Snapshot is the full state of a fleet, suitable for storage and transport.
type Snapshot struct {
	Persons      []Person      `json:"persons"`
	Cars         []Car         `json:"cars"`
	Rentals      []Rental      `json:"rentals"`
	Reservations []Reservation `json:"reservations"`
	CurrentDay   int           `json:"current_day"`
}
