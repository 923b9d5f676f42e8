package handlers

import (
	"net/http"

	"github.com/ukydev/fleet-carsharing/internal/middleware"
	"github.com/ukydev/fleet-carsharing/internal/models"
	"github.com/ukydev/fleet-carsharing/internal/state"
)

// RouterConfig collects what the API router needs. RateLimiter and Metrics
// are optional, a zero MaxSimulateDays selects DefaultMaxSimulateDays.
type RouterConfig struct {
	Manager         *state.Manager
	Auth            *AuthHandler
	AuthMiddleware  *middleware.AuthMiddleware
	RateLimiter     *middleware.RateLimitMiddleware
	Metrics         http.Handler
	MaxSimulateDays int
}

// NewRouter builds the complete API handler: routes, authentication, rate
// limiting and access logging.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	fleet := NewFleetHandler(cfg.Manager, cfg.MaxSimulateDays)
	authz := cfg.AuthMiddleware

	route := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, authz.RequireFleetAccess(h))
	}

	mux.HandleFunc("POST /api/auth/login", cfg.Auth.Login)
	mux.HandleFunc("GET /api/auth/me", cfg.Auth.Me)

	route("GET /api/state", fleet.GetState)
	replaceState := authz.RequirePermission(models.ActionReplaceState)
	mux.Handle("POST /api/state", replaceState(http.HandlerFunc(fleet.ReplaceState)))
	mux.Handle("DELETE /api/state", replaceState(http.HandlerFunc(fleet.ResetState)))

	route("POST /api/persons", fleet.RegisterPerson)
	route("GET /api/persons/{id}", fleet.GetPerson)
	route("DELETE /api/persons/{id}", fleet.UnregisterPerson)
	route("POST /api/persons/{id}/license", fleet.RenewLicense)

	route("POST /api/cars", fleet.RegisterCar)
	route("GET /api/cars/available", fleet.AvailableCars)
	route("GET /api/cars/{id}", fleet.GetCar)
	route("DELETE /api/cars/{id}", fleet.UnregisterCar)
	route("GET /api/cars/{id}/reservations", fleet.CarReservations)

	route("POST /api/reservations", fleet.Reserve)
	route("DELETE /api/reservations", fleet.CancelReservation)
	route("POST /api/reservations/process", fleet.ProcessReservations)

	route("POST /api/rentals", fleet.Rent)
	route("POST /api/rentals/return", fleet.Return)

	route("POST /api/simulate", fleet.Simulate)

	mux.HandleFunc("GET /health", fleet.Health)
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}

	var handler http.Handler = authz.Authenticate(mux)
	if cfg.RateLimiter != nil {
		handler = cfg.RateLimiter.RateLimit(handler)
	}
	return middleware.RequestLogger(handler)
}
