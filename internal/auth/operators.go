package auth

import (
	"fmt"
	"strings"

	"github.com/ukydev/fleet-carsharing/internal/models"
)

// Directory is the fixed set of operators allowed to use the API. It is
// read once from configuration; there is no sign-up.
type Directory struct {
	operators map[string]models.Operator
}

// ParseOperators reads a comma separated list of username:role:bcrypt-hash
// entries. An empty list yields an empty directory.
func ParseOperators(list string) (*Directory, error) {
	d := &Directory{operators: map[string]models.Operator{}}

	for _, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
			return nil, fmt.Errorf("operator entry %q: want username:role:hash", entry)
		}

		role := models.Role(parts[1])
		if !models.IsValidRole(role) {
			return nil, fmt.Errorf("operator %s: unknown role %q", parts[0], parts[1])
		}
		if _, dup := d.operators[parts[0]]; dup {
			return nil, fmt.Errorf("operator %s listed twice", parts[0])
		}

		d.operators[parts[0]] = models.Operator{
			Username:     parts[0],
			PasswordHash: parts[2],
			Role:         role,
		}
	}
	return d, nil
}

// Len returns the number of configured operators.
func (d *Directory) Len() int {
	return len(d.operators)
}

// Lookup finds an operator by username.
func (d *Directory) Lookup(username string) (*models.Operator, error) {
	op, ok := d.operators[username]
	if !ok {
		return nil, ErrOperatorNotFound
	}
	return &op, nil
}

// Authenticate checks a username/password pair against the directory.
func (d *Directory) Authenticate(s *Service, username, password string) (*models.Operator, error) {
	op, err := d.Lookup(username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if !s.CheckPassword(password, op.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return op, nil
}
