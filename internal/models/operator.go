package models

// Role represents operator roles of the fleet API
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
	RoleViewer   Role = "viewer"
)

// Actions checked by HasPermission
const (
	ActionViewFleet    = "view_fleet"
	ActionManageFleet  = "manage_fleet"
	ActionReplaceState = "replace_state"
)

// Operator is an account allowed to use the fleet API
type Operator struct {
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Role         Role   `json:"role"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse represents a successful login response
type LoginResponse struct {
	Token    string   `json:"token"`
	Operator Operator `json:"operator"`
}

// Claims represents JWT claims
type Claims struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
	Exp      int64  `json:"exp"`
}

// IsValidRole checks if a role is valid
func IsValidRole(role Role) bool {
	switch role {
	case RoleAdmin, RoleOperator, RoleViewer:
		return true
	default:
		return false
	}
}

// HasPermission checks if an operator has permission for a specific action
func (o *Operator) HasPermission(action string) bool {
	switch o.Role {
	case RoleAdmin:
		return true
	case RoleOperator:
		return action == ActionViewFleet || action == ActionManageFleet
	case RoleViewer:
		return action == ActionViewFleet
	default:
		return false
	}
}
