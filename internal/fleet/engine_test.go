package fleet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-carsharing/internal/models"
)

// newFleet returns an engine with active persons p1..p3 and fresh cars c1..c3.
func newFleet(t *testing.T) *Engine {
	t.Helper()
	e := New()
	for _, id := range []string{"p1", "p2", "p3"} {
		require.True(t, e.RegisterPerson(id, 365))
	}
	for _, id := range []string{"c1", "c2", "c3"} {
		require.True(t, e.RegisterCar(models.Car{Identifier: id}))
	}
	return e
}

func assertRentalInvariant(t *testing.T, e *Engine) {
	t.Helper()
	persons := map[string]bool{}
	cars := map[string]bool{}
	for _, r := range e.Snapshot().Rentals {
		assert.False(t, persons[r.PersonID], "person %s holds two rentals", r.PersonID)
		assert.False(t, cars[r.CarID], "car %s is rented twice", r.CarID)
		persons[r.PersonID] = true
		cars[r.CarID] = true
	}
}

func TestRegisterPerson(t *testing.T) {
	e := New()

	assert.True(t, e.RegisterPerson("alice", 10))
	assert.False(t, e.RegisterPerson("alice", 20), "duplicate identifier")
	assert.False(t, e.RegisterPerson("", 20), "empty identifier")
	assert.False(t, e.RegisterPerson("bob", -1), "negative license days")

	status, ok := e.PersonStatus("alice")
	require.True(t, ok)
	assert.Equal(t, models.PersonActive, status)

	assert.True(t, e.RegisterPerson("carol", 0))
	status, _ = e.PersonStatus("carol")
	assert.Equal(t, models.PersonBlocked, status)

	_, ok = e.PersonStatus("nobody")
	assert.False(t, ok)
}

func TestUnregisterPerson(t *testing.T) {
	t.Run("drops reservations of the person", func(t *testing.T) {
		e := newFleet(t)
		require.True(t, e.Reserve("p1", "c1", 1))
		require.True(t, e.Reserve("p1", "c2", 1))
		require.True(t, e.Reserve("p2", "c1", 1))

		assert.True(t, e.UnregisterPerson("p1"))
		_, ok := e.Person("p1")
		assert.False(t, ok)
		assert.Equal(t, []models.Reservation{{PersonID: "p2", CarID: "c1", Priority: 1}}, e.Reservations())
	})

	t.Run("refuses while renting", func(t *testing.T) {
		e := newFleet(t)
		require.True(t, e.Rent("p1", "c1"))
		assert.False(t, e.UnregisterPerson("p1"))
		_, ok := e.Person("p1")
		assert.True(t, ok)
	})

	t.Run("unknown person", func(t *testing.T) {
		assert.False(t, newFleet(t).UnregisterPerson("nobody"))
	})
}

func TestRenewLicense(t *testing.T) {
	e := New()
	require.True(t, e.RegisterPerson("p1", 1))
	e.Simulate(1)

	status, _ := e.PersonStatus("p1")
	require.Equal(t, models.PersonBlocked, status)

	assert.True(t, e.RenewLicense("p1", 30))
	p, _ := e.Person("p1")
	assert.Equal(t, 30, p.LicenseValidDays)
	assert.Equal(t, models.PersonActive, p.Status)

	assert.False(t, e.RenewLicense("nobody", 30))
	assert.False(t, e.RenewLicense("p1", -5))
}

func TestRegisterCar(t *testing.T) {
	tests := []struct {
		name     string
		car      models.Car
		expected bool
	}{
		{"fresh car", models.Car{Identifier: "new"}, true},
		{"mileage at limit", models.Car{Identifier: "limit", Mileage: MaxMileage}, true},
		{"mileage above limit", models.Car{Identifier: "over", Mileage: MaxMileage + 1}, false},
		{"worn out by combined score", models.Car{Identifier: "worn", Mileage: 150000, AgeDays: 1825}, false},
		{"empty identifier", models.Car{}, false},
		{"negative mileage", models.Car{Identifier: "neg", Mileage: -1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New()
			assert.Equal(t, tt.expected, e.RegisterCar(tt.car))
		})
	}

	t.Run("duplicate identifier", func(t *testing.T) {
		e := New()
		require.True(t, e.RegisterCar(models.Car{Identifier: "c1"}))
		assert.False(t, e.RegisterCar(models.Car{Identifier: "c1"}))
	})

	t.Run("status is reset to Available", func(t *testing.T) {
		e := New()
		require.True(t, e.RegisterCar(models.Car{Identifier: "c1", Status: models.Retired()}))
		status, ok := e.CarStatus("c1")
		require.True(t, ok)
		assert.Equal(t, models.Available(), status)
	})
}

func TestRegisteredCarsStayWithinScore(t *testing.T) {
	e := New()
	candidates := []models.Car{
		{Identifier: "a", Mileage: 100000, AgeDays: 1000, RentalCount: 100},
		{Identifier: "b", Mileage: 199999, AgeDays: 1},
		{Identifier: "c", AgeDays: 3650},
		{Identifier: "d", Mileage: 120000, RentalCount: 250},
		{Identifier: "e", Mileage: 250000},
	}
	for _, c := range candidates {
		e.RegisterCar(c)
	}

	for _, c := range e.Snapshot().Cars {
		score := RetirementScore(c)
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, RetirementThreshold, "car %s", c.Identifier)
		assert.LessOrEqual(t, c.Mileage, MaxMileage, "car %s", c.Identifier)
	}
}

func TestUnregisterCar(t *testing.T) {
	t.Run("drops reservations for the car", func(t *testing.T) {
		e := newFleet(t)
		require.True(t, e.Reserve("p1", "c1", 1))
		require.True(t, e.Reserve("p2", "c1", 2))
		require.True(t, e.Reserve("p2", "c2", 2))

		assert.True(t, e.UnregisterCar("c1"))
		assert.Empty(t, e.ReservationsForCar("c1"))
		assert.Equal(t, []string{"p2"}, e.ReservationsForCar("c2"))
	})

	t.Run("refuses while rented", func(t *testing.T) {
		e := newFleet(t)
		require.True(t, e.Rent("p1", "c1"))
		assert.False(t, e.UnregisterCar("c1"))
	})

	t.Run("refuses while in maintenance", func(t *testing.T) {
		e := New()
		require.True(t, e.RegisterPerson("p1", 10))
		require.True(t, e.RegisterCar(models.Car{Identifier: "c1", Mileage: 4999}))
		require.True(t, e.Rent("p1", "c1"))
		require.True(t, e.Return("p1", "c1", 2))
		assert.False(t, e.UnregisterCar("c1"))
	})

	t.Run("retired cars can be removed", func(t *testing.T) {
		e := New()
		require.True(t, e.RegisterCar(models.Car{Identifier: "old", AgeDays: MaxAgeDays - 1}))
		e.Simulate(1)
		status, _ := e.CarStatus("old")
		require.Equal(t, models.Retired(), status)
		assert.True(t, e.UnregisterCar("old"))
	})

	t.Run("unknown car", func(t *testing.T) {
		assert.False(t, newFleet(t).UnregisterCar("nobody"))
	})
}

func TestAvailableCars(t *testing.T) {
	e := newFleet(t)
	require.True(t, e.Rent("p1", "c2"))
	assert.Equal(t, []string{"c1", "c3"}, e.AvailableCars())

	assert.Empty(t, New().AvailableCars())
}

func TestSnapshotIsDetached(t *testing.T) {
	e := newFleet(t)
	snap := e.Snapshot()
	snap.Persons[0].Status = models.PersonBlocked
	snap.Cars[0].Mileage = 999

	status, _ := e.PersonStatus("p1")
	assert.Equal(t, models.PersonActive, status)
	car, _ := e.Car("c1")
	assert.Equal(t, 0, car.Mileage)
}

func TestSnapshotOfEmptyFleetHasEmptyLists(t *testing.T) {
	snap := New().Snapshot()
	assert.NotNil(t, snap.Persons)
	assert.NotNil(t, snap.Cars)
	assert.NotNil(t, snap.Rentals)
	assert.NotNil(t, snap.Reservations)
}

func TestReplace(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		e := newFleet(t)
		require.True(t, e.Rent("p1", "c1"))
		require.True(t, e.Reserve("p2", "c1", 4))
		e.Simulate(3)

		other := New()
		require.NoError(t, other.Replace(e.Snapshot()))
		assert.Equal(t, e.Snapshot(), other.Snapshot())
		assert.Equal(t, 3, other.CurrentDay())
	})

	valid := func() models.Snapshot {
		return models.Snapshot{
			Persons: []models.Person{
				{Identifier: "p1", LicenseValidDays: 5, Status: models.PersonActive},
				{Identifier: "p2", LicenseValidDays: 5, Status: models.PersonActive},
			},
			Cars: []models.Car{
				{Identifier: "c1", Status: models.Rented(), RentalCount: 1},
				{Identifier: "c2", Status: models.Tuv(2)},
			},
			Rentals:      []models.Rental{{PersonID: "p1", CarID: "c1"}},
			Reservations: []models.Reservation{{PersonID: "p2", CarID: "c1", Priority: 1}},
			CurrentDay:   7,
		}
	}

	invalid := []struct {
		name   string
		mutate func(*models.Snapshot)
	}{
		{"duplicate person", func(s *models.Snapshot) { s.Persons[1].Identifier = "p1" }},
		{"duplicate car", func(s *models.Snapshot) { s.Cars[1].Identifier = "c1" }},
		{"unknown person status", func(s *models.Snapshot) { s.Persons[0].Status = "Suspended" }},
		{"rental of unknown car", func(s *models.Snapshot) { s.Rentals[0].CarID = "c9" }},
		{"rental of car not marked rented", func(s *models.Snapshot) { s.Cars[0].Status = models.Available() }},
		{"rented car without rental", func(s *models.Snapshot) { s.Rentals = nil }},
		{"person renting twice", func(s *models.Snapshot) {
			s.Cars[1].Status = models.Rented()
			s.Rentals = append(s.Rentals, models.Rental{PersonID: "p1", CarID: "c2"})
		}},
		{"duplicate reservation", func(s *models.Snapshot) {
			s.Reservations = append(s.Reservations, models.Reservation{PersonID: "p2", CarID: "c1", Priority: 9})
		}},
		{"reservation of unknown person", func(s *models.Snapshot) { s.Reservations[0].PersonID = "p9" }},
		{"negative day", func(s *models.Snapshot) { s.CurrentDay = -1 }},
		{"negative mileage", func(s *models.Snapshot) { s.Cars[1].Mileage = -10 }},
	}

	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			e := newFleet(t)
			before := e.Snapshot()

			snap := valid()
			tt.mutate(&snap)
			err := e.Replace(snap)
			assert.ErrorIs(t, err, ErrInvalidSnapshot)
			assert.Equal(t, before, e.Snapshot(), "engine must be untouched")
		})
	}

	t.Run("valid snapshot is accepted", func(t *testing.T) {
		e := New()
		require.NoError(t, e.Replace(valid()))
		assert.Equal(t, 7, e.CurrentDay())
		assert.Equal(t, []string{"p2"}, e.ReservationsForCar("c1"))
	})
}
