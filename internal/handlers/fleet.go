package handlers

import (
	"fmt"
	"net/http"

	"github.com/ukydev/fleet-carsharing/internal/models"
	"github.com/ukydev/fleet-carsharing/internal/state"
)

// DefaultMaxSimulateDays caps a single simulate request when no other limit is configured.
const DefaultMaxSimulateDays = 3650

// FleetHandler exposes the fleet operations over HTTP
type FleetHandler struct {
	manager         *state.Manager
	maxSimulateDays int
}

// NewFleetHandler creates a handler. maxSimulateDays <= 0 selects DefaultMaxSimulateDays.
func NewFleetHandler(manager *state.Manager, maxSimulateDays int) *FleetHandler {
	if maxSimulateDays <= 0 {
		maxSimulateDays = DefaultMaxSimulateDays
	}
	return &FleetHandler{manager: manager, maxSimulateDays: maxSimulateDays}
}

type registerPersonRequest struct {
	Identifier       string `json:"identifier"`
	LicenseValidDays int    `json:"license_valid_days"`
}

type renewLicenseRequest struct {
	ValidDays int `json:"valid_days"`
}

type registerCarRequest struct {
	Identifier  string `json:"identifier"`
	Mileage     int    `json:"mileage"`
	AgeDays     int    `json:"age_days"`
	RentalCount int    `json:"rental_count"`
}

type pairRequest struct {
	PersonID string `json:"person_id"`
	CarID    string `json:"car_id"`
}

type reservationRequest struct {
	PersonID string `json:"person_id"`
	CarID    string `json:"car_id"`
	Priority int    `json:"priority"`
}

type returnRequest struct {
	PersonID string `json:"person_id"`
	CarID    string `json:"car_id"`
	DrivenKm int    `json:"driven_km"`
}

type returnResponse struct {
	CarID  string           `json:"car_id"`
	Status models.CarStatus `json:"status"`
}

type simulateRequest struct {
	Days int `json:"days"`
}

type grantedResponse struct {
	Granted []models.Rental `json:"granted"`
}

func (h *FleetHandler) Health(w http.ResponseWriter, r *http.Request) {
	snap := h.manager.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"current_day": snap.CurrentDay,
	})
}

func (h *FleetHandler) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.Snapshot())
}

// ReplaceState swaps the whole fleet for the posted snapshot. Posting an
// empty object resets the fleet.
func (h *FleetHandler) ReplaceState(w http.ResponseWriter, r *http.Request) {
	var snap models.Snapshot
	if !decodeBody(w, r, &snap) {
		return
	}
	if err := h.manager.Replace(r.Context(), snap); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.manager.Snapshot())
}

// ResetState empties the fleet and deletes the stored snapshot.
func (h *FleetHandler) ResetState(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Reset(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *FleetHandler) RegisterPerson(w http.ResponseWriter, r *http.Request) {
	var req registerPersonRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Identifier == "" {
		http.Error(w, "identifier is required", http.StatusBadRequest)
		return
	}
	if err := h.manager.RegisterPerson(r.Context(), req.Identifier, req.LicenseValidDays); err != nil {
		writeError(w, r, err)
		return
	}
	h.writePerson(w, r, req.Identifier, http.StatusCreated)
}

func (h *FleetHandler) GetPerson(w http.ResponseWriter, r *http.Request) {
	h.writePerson(w, r, r.PathValue("id"), http.StatusOK)
}

func (h *FleetHandler) UnregisterPerson(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.UnregisterPerson(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *FleetHandler) RenewLicense(w http.ResponseWriter, r *http.Request) {
	var req renewLicenseRequest
	if !decodeBody(w, r, &req) {
		return
	}
	id := r.PathValue("id")
	if err := h.manager.RenewLicense(r.Context(), id, req.ValidDays); err != nil {
		writeError(w, r, err)
		return
	}
	h.writePerson(w, r, id, http.StatusOK)
}

func (h *FleetHandler) RegisterCar(w http.ResponseWriter, r *http.Request) {
	var req registerCarRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Identifier == "" {
		http.Error(w, "identifier is required", http.StatusBadRequest)
		return
	}
	car := models.Car{
		Identifier:  req.Identifier,
		Mileage:     req.Mileage,
		AgeDays:     req.AgeDays,
		RentalCount: req.RentalCount,
	}
	if err := h.manager.RegisterCar(r.Context(), car); err != nil {
		writeError(w, r, err)
		return
	}
	h.writeCar(w, r, req.Identifier, http.StatusCreated)
}

func (h *FleetHandler) GetCar(w http.ResponseWriter, r *http.Request) {
	h.writeCar(w, r, r.PathValue("id"), http.StatusOK)
}

func (h *FleetHandler) UnregisterCar(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.UnregisterCar(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *FleetHandler) AvailableCars(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.AvailableCars())
}

func (h *FleetHandler) CarReservations(w http.ResponseWriter, r *http.Request) {
	holders, err := h.manager.ReservationsForCar(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, holders)
}

func (h *FleetHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	var req reservationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.PersonID == "" || req.CarID == "" {
		http.Error(w, "person_id and car_id are required", http.StatusBadRequest)
		return
	}
	if req.Priority < 0 {
		http.Error(w, "priority must not be negative", http.StatusBadRequest)
		return
	}
	if err := h.manager.Reserve(r.Context(), req.PersonID, req.CarID, req.Priority); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, models.Reservation{PersonID: req.PersonID, CarID: req.CarID, Priority: req.Priority})
}

func (h *FleetHandler) CancelReservation(w http.ResponseWriter, r *http.Request) {
	var req pairRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.manager.CancelReservation(r.Context(), req.PersonID, req.CarID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *FleetHandler) ProcessReservations(w http.ResponseWriter, r *http.Request) {
	granted, err := h.manager.ProcessReservations(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, grantedResponse{Granted: granted})
}

func (h *FleetHandler) Rent(w http.ResponseWriter, r *http.Request) {
	var req pairRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.PersonID == "" || req.CarID == "" {
		http.Error(w, "person_id and car_id are required", http.StatusBadRequest)
		return
	}
	if err := h.manager.Rent(r.Context(), req.PersonID, req.CarID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, models.Rental{PersonID: req.PersonID, CarID: req.CarID})
}

func (h *FleetHandler) Return(w http.ResponseWriter, r *http.Request) {
	var req returnRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.PersonID == "" || req.CarID == "" {
		http.Error(w, "person_id and car_id are required", http.StatusBadRequest)
		return
	}
	status, err := h.manager.Return(r.Context(), req.PersonID, req.CarID, req.DrivenKm)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, returnResponse{CarID: req.CarID, Status: status})
}

func (h *FleetHandler) Simulate(w http.ResponseWriter, r *http.Request) {
	var req simulateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Days < 0 || req.Days > h.maxSimulateDays {
		http.Error(w, fmt.Sprintf("days must be between 0 and %d", h.maxSimulateDays), http.StatusBadRequest)
		return
	}
	result, err := h.manager.Simulate(r.Context(), req.Days)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *FleetHandler) writePerson(w http.ResponseWriter, r *http.Request, id string, status int) {
	person, err := h.manager.Person(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, person)
}

func (h *FleetHandler) writeCar(w http.ResponseWriter, r *http.Request, id string, status int) {
	car, err := h.manager.Car(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, car)
}
