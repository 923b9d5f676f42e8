package models

// PersonStatus represents whether a person may rent or reserve cars.
type PersonStatus string

const (
	PersonActive  PersonStatus = "Active"
	PersonBlocked PersonStatus = "Blocked"
)

// IsValidPersonStatus checks if a person status is valid
func IsValidPersonStatus(status PersonStatus) bool {
	switch status {
	case PersonActive, PersonBlocked:
		return true
	default:
		return false
	}
}

// Person represents a registered driver.
type Person struct {
	Identifier       string       `json:"identifier"`
	LicenseValidDays int          `json:"license_valid_days"`
	Status           PersonStatus `json:"status"`
}
