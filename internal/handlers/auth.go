package handlers

import (
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-carsharing/internal/auth"
	"github.com/ukydev/fleet-carsharing/internal/middleware"
	"github.com/ukydev/fleet-carsharing/internal/models"
)

// AuthHandler handles authentication requests
type AuthHandler struct {
	authService *auth.Service
	operators   *auth.Directory
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(authService *auth.Service, operators *auth.Directory) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		operators:   operators,
	}
}

// Login handles operator login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	var loginReq models.LoginRequest
	if err := json.Unmarshal(body, &loginReq); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if loginReq.Username == "" || loginReq.Password == "" {
		http.Error(w, "Username and password are required", http.StatusBadRequest)
		return
	}

	operator, err := h.operators.Authenticate(h.authService, loginReq.Username, loginReq.Password)
	if err != nil {
		log.WithFields(log.Fields{
			"username":   loginReq.Username,
			"request_id": middleware.GetRequestID(r.Context()),
		}).Warn("Failed login attempt")
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := h.authService.GenerateToken(operator)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	log.WithFields(log.Fields{
		"username": operator.Username,
		"role":     operator.Role,
	}).Info("Operator logged in")

	writeJSON(w, http.StatusOK, models.LoginResponse{
		Token:    token,
		Operator: *operator,
	})
}

// Me returns the operator behind the current token
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetOperatorFromContext(r.Context())
	if !ok {
		http.Error(w, "Operator context not found", http.StatusUnauthorized)
		return
	}

	operator, err := h.operators.Lookup(claims.Username)
	if err != nil {
		http.Error(w, "Operator not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, operator)
}
