// Package state owns the single fleet engine of a running server. It
// serialises access, persists a snapshot after each accepted mutation and
// fans out fleet events.
package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-carsharing/internal/db"
	"github.com/ukydev/fleet-carsharing/internal/fleet"
	"github.com/ukydev/fleet-carsharing/internal/metrics"
	"github.com/ukydev/fleet-carsharing/internal/models"
	"github.com/ukydev/fleet-carsharing/internal/notify"
)

// DefaultPublishTimeout bounds how long one operation waits for the broker
// to acknowledge its events.
const DefaultPublishTimeout = 5 * time.Second

var (
	// ErrUnknownPerson and ErrUnknownCar report an identifier that is not registered.
	ErrUnknownPerson = errors.New("unknown person")
	ErrUnknownCar    = errors.New("unknown car")
	// ErrRejected means the engine refused the operation. State is unchanged.
	ErrRejected = errors.New("operation rejected")
)

// SimulationResult is what a simulate call produced.
type SimulationResult struct {
	CurrentDay int             `json:"current_day"`
	Granted    []models.Rental `json:"granted"`
}

// Manager is the concurrency safe owner of one fleet engine.
type Manager struct {
	mu             sync.Mutex
	engine         *fleet.Engine
	store          db.SnapshotStore
	publisher      notify.Publisher
	publishTimeout time.Duration
	metrics        *metrics.Recorder
	now            func() time.Time
}

// NewManager creates a manager around an empty fleet. A nil store keeps
// state in memory only; a nil publisher drops events.
func NewManager(store db.SnapshotStore, publisher notify.Publisher, recorder *metrics.Recorder) *Manager {
	if publisher == nil {
		publisher = notify.NopPublisher{}
	}
	if recorder == nil {
		recorder = metrics.NewRecorder()
	}
	m := &Manager{
		engine:    fleet.New(),
		store:     store,
		publisher:      publisher,
		publishTimeout: DefaultPublishTimeout,
		metrics:        recorder,
		now:            time.Now,
	}
	m.metrics.ObserveSnapshot(m.engine.Snapshot())
	return m
}

// SetPublishTimeout changes the publish deadline of an operation. Values <= 0 are ignored.
func (m *Manager) SetPublishTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	m.mu.Lock()
	m.publishTimeout = d
	m.mu.Unlock()
}

// Load replaces the in-memory fleet with the stored snapshot. A store with
// nothing saved yet leaves the fleet empty.
func (m *Manager) Load(ctx context.Context) error {
	if m.store == nil {
		return nil
	}

	snap, err := m.store.Load(ctx)
	if errors.Is(err, db.ErrSnapshotNotFound) {
		log.Info("No stored fleet snapshot, starting with an empty fleet")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.engine.Replace(snap); err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}
	m.metrics.ObserveSnapshot(snap)

	log.WithFields(log.Fields{
		"persons":      len(snap.Persons),
		"cars":         len(snap.Cars),
		"rentals":      len(snap.Rentals),
		"reservations": len(snap.Reservations),
		"current_day":  snap.CurrentDay,
	}).Info("Fleet snapshot restored")
	return nil
}

// Snapshot returns a detached copy of the whole fleet.
func (m *Manager) Snapshot() models.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.engine.Snapshot()
}

// Replace swaps in a new fleet state. An invalid snapshot leaves the fleet
// untouched and the returned error wraps fleet.ErrInvalidSnapshot.
func (m *Manager) Replace(ctx context.Context, snap models.Snapshot) error {
	return m.mutate(ctx, "replace", func(e *fleet.Engine) ([]notify.Event, error) {
		return nil, e.Replace(snap)
	})
}

// Reset drops every person, car, rental and reservation, rewinds the clock to
// day 0 and deletes the stored snapshot.
func (m *Manager) Reset(ctx context.Context) error {
	m.mu.Lock()
	m.engine = fleet.New()
	snap := m.engine.Snapshot()
	m.metrics.CountOperation("reset", true)
	m.metrics.ObserveSnapshot(snap)
	var err error
	if m.store != nil {
		err = m.store.Delete(ctx)
	}
	m.mu.Unlock()

	if err != nil {
		log.WithError(err).Error("Failed to delete stored fleet snapshot")
		return fmt.Errorf("reset: delete snapshot: %w", err)
	}
	log.Info("Fleet reset")
	return nil
}

// RegisterPerson adds a person. Zero license days register the person as Blocked.
func (m *Manager) RegisterPerson(ctx context.Context, identifier string, licenseValidDays int) error {
	return m.mutate(ctx, "register_person", func(e *fleet.Engine) ([]notify.Event, error) {
		return nil, accepted(e.RegisterPerson(identifier, licenseValidDays))
	})
}

// UnregisterPerson removes a person that holds no rental, together with
// their reservations.
func (m *Manager) UnregisterPerson(ctx context.Context, identifier string) error {
	return m.mutate(ctx, "unregister_person", func(e *fleet.Engine) ([]notify.Event, error) {
		if err := requirePerson(e, identifier); err != nil {
			return nil, err
		}
		return nil, accepted(e.UnregisterPerson(identifier))
	})
}

// RenewLicense sets the remaining license days and unblocks the person when
// the new value is positive.
func (m *Manager) RenewLicense(ctx context.Context, identifier string, validDays int) error {
	return m.mutate(ctx, "renew_license", func(e *fleet.Engine) ([]notify.Event, error) {
		if err := requirePerson(e, identifier); err != nil {
			return nil, err
		}
		return nil, accepted(e.RenewLicense(identifier, validDays))
	})
}

// Person returns a copy of the person or ErrUnknownPerson.
func (m *Manager) Person(identifier string) (models.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.engine.Person(identifier)
	if !ok {
		return models.Person{}, ErrUnknownPerson
	}
	return p, nil
}

// RegisterCar adds a car. Its status always starts as Available.
func (m *Manager) RegisterCar(ctx context.Context, car models.Car) error {
	return m.mutate(ctx, "register_car", func(e *fleet.Engine) ([]notify.Event, error) {
		return nil, accepted(e.RegisterCar(car))
	})
}

// UnregisterCar removes an Available or Retired car and every reservation for it.
func (m *Manager) UnregisterCar(ctx context.Context, identifier string) error {
	return m.mutate(ctx, "unregister_car", func(e *fleet.Engine) ([]notify.Event, error) {
		if err := requireCar(e, identifier); err != nil {
			return nil, err
		}
		return nil, accepted(e.UnregisterCar(identifier))
	})
}

// Car returns a copy of the car or ErrUnknownCar.
func (m *Manager) Car(identifier string) (models.Car, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.engine.Car(identifier)
	if !ok {
		return models.Car{}, ErrUnknownCar
	}
	return c, nil
}

// AvailableCars lists the identifiers of Available cars in registration order.
func (m *Manager) AvailableCars() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.engine.AvailableCars()
}

// Reserve queues the person for the car with the given priority.
func (m *Manager) Reserve(ctx context.Context, personID, carID string, priority int) error {
	return m.mutate(ctx, "reserve", func(e *fleet.Engine) ([]notify.Event, error) {
		if err := requirePair(e, personID, carID); err != nil {
			return nil, err
		}
		return nil, accepted(e.Reserve(personID, carID, priority))
	})
}

// CancelReservation drops the reservation of the pair.
func (m *Manager) CancelReservation(ctx context.Context, personID, carID string) error {
	return m.mutate(ctx, "cancel_reservation", func(e *fleet.Engine) ([]notify.Event, error) {
		return nil, accepted(e.CancelReservation(personID, carID))
	})
}

// ReservationsForCar lists the persons holding a reservation on the car, in
// queue order.
func (m *Manager) ReservationsForCar(carID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := requireCar(m.engine, carID); err != nil {
		return nil, err
	}
	return m.engine.ReservationsForCar(carID), nil
}

// ProcessReservations runs the resolver once and returns the granted pairs.
func (m *Manager) ProcessReservations(ctx context.Context) ([]models.Rental, error) {
	var granted []models.Rental
	err := m.mutate(ctx, "process_reservations", func(e *fleet.Engine) ([]notify.Event, error) {
		granted = e.ProcessReservations()
		return grantEvents(granted, e.CurrentDay()), nil
	})
	return granted, err
}

// Rent hands the car to the person.
func (m *Manager) Rent(ctx context.Context, personID, carID string) error {
	return m.mutate(ctx, "rent", func(e *fleet.Engine) ([]notify.Event, error) {
		if err := requirePair(e, personID, carID); err != nil {
			return nil, err
		}
		return nil, accepted(e.Rent(personID, carID))
	})
}

// Return ends the rental and reports the car's status afterwards.
func (m *Manager) Return(ctx context.Context, personID, carID string, drivenKm int) (models.CarStatus, error) {
	var status models.CarStatus
	err := m.mutate(ctx, "return", func(e *fleet.Engine) ([]notify.Event, error) {
		if err := requirePair(e, personID, carID); err != nil {
			return nil, err
		}
		if !e.Return(personID, carID, drivenKm) {
			return nil, ErrRejected
		}
		status, _ = e.CarStatus(carID)
		return nil, nil
	})
	return status, err
}

// Simulate advances the fleet day by day so every grant carries the day it
// happened on. When ctx ends part way, the days already simulated are kept
// and CurrentDay tells how far the fleet got.
func (m *Manager) Simulate(ctx context.Context, days int) (SimulationResult, error) {
	result := SimulationResult{Granted: []models.Rental{}}
	err := m.mutate(ctx, "simulate", func(e *fleet.Engine) ([]notify.Event, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var events []notify.Event
		for day := range days {
			if ctx.Err() != nil {
				log.WithFields(log.Fields{
					"requested": days,
					"simulated": day,
				}).Warn("Simulation interrupted")
				break
			}
			granted := e.Simulate(1)
			result.Granted = append(result.Granted, granted...)
			events = append(events, grantEvents(granted, e.CurrentDay())...)
		}
		result.CurrentDay = e.CurrentDay()
		if days > 0 {
			events = append(events, notify.Event{Type: notify.EventDayAdvanced, Day: result.CurrentDay})
		}
		return events, nil
	})
	return result, err
}

// mutate runs fn under the lock. When fn accepts, the new state is saved,
// metrics are refreshed and, once the lock is released, events are
// published. A failed save is returned but the mutation stays applied.
func (m *Manager) mutate(ctx context.Context, operation string, fn func(*fleet.Engine) ([]notify.Event, error)) error {
	m.mu.Lock()

	before := carStatuses(m.engine.Snapshot())
	events, err := fn(m.engine)
	m.metrics.CountOperation(operation, err == nil)
	if err != nil {
		m.mu.Unlock()
		log.WithFields(log.Fields{
			"operation": operation,
			"reason":    err.Error(),
		}).Debug("Fleet operation rejected")
		return fmt.Errorf("%s: %w", operation, err)
	}

	snap := m.engine.Snapshot()
	events = append(events, statusEvents(before, snap)...)
	saveErr := m.save(context.WithoutCancel(ctx), snap)
	m.metrics.ObserveSnapshot(snap)
	m.mu.Unlock()

	log.WithFields(log.Fields{
		"operation":   operation,
		"current_day": snap.CurrentDay,
		"events":      len(events),
	}).Info("Fleet operation applied")

	m.publish(ctx, events)

	if saveErr != nil {
		return fmt.Errorf("%s: %w", operation, saveErr)
	}
	return nil
}

func (m *Manager) save(ctx context.Context, snap models.Snapshot) error {
	if m.store == nil {
		return nil
	}
	if err := m.store.Save(ctx, snap); err != nil {
		log.WithError(err).Error("Failed to persist fleet snapshot")
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// publish sends the events of one operation under a shared deadline. The
// state change is already committed, so a cancelled request does not drop
// its events.
func (m *Manager) publish(ctx context.Context, events []notify.Event) {
	if len(events) == 0 {
		return
	}
	m.mu.Lock()
	timeout := m.publishTimeout
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	for _, event := range events {
		event.Timestamp = m.now().UTC()
		if err := m.publisher.Publish(ctx, event); err != nil {
			log.WithError(err).WithField("type", event.Type).Warn("Failed to publish fleet event")
		}
	}
}

func accepted(ok bool) error {
	if !ok {
		return ErrRejected
	}
	return nil
}

func requirePerson(e *fleet.Engine, identifier string) error {
	if _, ok := e.Person(identifier); !ok {
		return ErrUnknownPerson
	}
	return nil
}

func requireCar(e *fleet.Engine, identifier string) error {
	if _, ok := e.Car(identifier); !ok {
		return ErrUnknownCar
	}
	return nil
}

func requirePair(e *fleet.Engine, personID, carID string) error {
	if err := requirePerson(e, personID); err != nil {
		return err
	}
	return requireCar(e, carID)
}

func grantEvents(granted []models.Rental, day int) []notify.Event {
	events := make([]notify.Event, 0, len(granted))
	for _, r := range granted {
		events = append(events, notify.Event{
			Type:     notify.EventReservationGranted,
			Day:      day,
			PersonID: r.PersonID,
			CarID:    r.CarID,
		})
	}
	return events
}

func carStatuses(snap models.Snapshot) map[string]models.CarStatus {
	statuses := make(map[string]models.CarStatus, len(snap.Cars))
	for _, c := range snap.Cars {
		statuses[c.Identifier] = c.Status
	}
	return statuses
}

// statusEvents reports cars that existed before and now have another status.
func statusEvents(before map[string]models.CarStatus, after models.Snapshot) []notify.Event {
	var events []notify.Event
	for _, c := range after.Cars {
		prev, ok := before[c.Identifier]
		if !ok || prev == c.Status {
			continue
		}
		events = append(events, notify.Event{
			Type:   notify.EventCarStatus,
			Day:    after.CurrentDay,
			CarID:  c.Identifier,
			Status: c.Status.String(),
		})
	}
	return events
}
