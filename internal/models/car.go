package models

import (
	"encoding/json"
	"fmt"
)

// StatusKind identifies the variant of a CarStatus.
type StatusKind int

const (
	StatusAvailable StatusKind = iota
	StatusRented
	StatusMaintenance
	StatusTuv
	StatusRetired
)

var statusNames = map[StatusKind]string{
	StatusAvailable:   "Available",
	StatusRented:      "Rented",
	StatusMaintenance: "Maintenance",
	StatusTuv:         "Tuv",
	StatusRetired:     "Retired",
}

// String returns the variant name.
func (k StatusKind) String() string {
	if name, ok := statusNames[k]; ok {
		return name
	}
	return fmt.Sprintf("StatusKind(%d)", int(k))
}

// CarStatus is the car state machine value. Maintenance and Tuv carry the
// number of days the car is still held; the other variants carry nothing.
// The zero value is Available.
type CarStatus struct {
	kind     StatusKind
	daysLeft int
}

// Available is the status of a car that can be rented.
func Available() CarStatus { return CarStatus{kind: StatusAvailable} }

// Rented is the status of a car that is out with a person.
func Rented() CarStatus { return CarStatus{kind: StatusRented} }

// Retired is the final status of a car taken out of service.
func Retired() CarStatus { return CarStatus{kind: StatusRetired} }

// Maintenance holds a car for the given number of days.
func Maintenance(days int) CarStatus {
	return CarStatus{kind: StatusMaintenance, daysLeft: days}
}

// Tuv holds a car for technical inspection for the given number of days.
func Tuv(days int) CarStatus {
	return CarStatus{kind: StatusTuv, daysLeft: days}
}

// Kind returns the variant.
func (s CarStatus) Kind() StatusKind { return s.kind }

// DaysLeft returns the countdown of a Maintenance or Tuv status and 0 otherwise.
func (s CarStatus) DaysLeft() int { return s.daysLeft }

// Is reports whether s is of the given variant.
func (s CarStatus) Is(kind StatusKind) bool { return s.kind == kind }

// InService reports whether the car is held in the workshop.
func (s CarStatus) InService() bool {
	return s.kind == StatusMaintenance || s.kind == StatusTuv
}

// Countdown advances a Maintenance or Tuv status by one day. Any other
// status is returned unchanged.
func (s CarStatus) Countdown() CarStatus {
	if !s.InService() {
		return s
	}
	if s.daysLeft > 1 {
		return CarStatus{kind: s.kind, daysLeft: s.daysLeft - 1}
	}
	return Available()
}

// String renders the status for logs and events, e.g. "Maintenance(2)".
func (s CarStatus) String() string {
	if s.InService() {
		return fmt.Sprintf("%s(%d)", s.kind, s.daysLeft)
	}
	return s.kind.String()
}

// MarshalJSON encodes unit variants as a bare string and countdown variants
// as a single-key object, e.g. "Rented" or {"Tuv":3}.
func (s CarStatus) MarshalJSON() ([]byte, error) {
	name, ok := statusNames[s.kind]
	if !ok {
		return nil, fmt.Errorf("unknown car status kind %d", int(s.kind))
	}
	if s.InService() {
		return json.Marshal(map[string]int{name: s.daysLeft})
	}
	return json.Marshal(name)
}

// UnmarshalJSON accepts the encoding produced by MarshalJSON.
func (s *CarStatus) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		switch name {
		case "Available":
			*s = Available()
		case "Rented":
			*s = Rented()
		case "Retired":
			*s = Retired()
		default:
			return fmt.Errorf("invalid car status %q", name)
		}
		return nil
	}

	var tagged map[string]int
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("invalid car status: %w", err)
	}
	if len(tagged) != 1 {
		return fmt.Errorf("invalid car status: expected one variant, got %d", len(tagged))
	}
	for name, days := range tagged {
		if days < 0 {
			return fmt.Errorf("invalid car status: negative countdown %d", days)
		}
		switch name {
		case "Maintenance":
			*s = Maintenance(days)
		case "Tuv":
			*s = Tuv(days)
		default:
			return fmt.Errorf("invalid car status %q", name)
		}
	}
	return nil
}

// Car is a vehicle of the shared fleet.
type Car struct {
	Identifier  string    `json:"identifier"`
	Mileage     int       `json:"mileage"`      // in kilometers
	Status      CarStatus `json:"status"`
	AgeDays     int       `json:"age_days"`
	RentalCount int       `json:"rental_count"`
}
