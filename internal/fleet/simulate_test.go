package fleet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-carsharing/internal/models"
)

func TestSimulate_ZeroDaysIsNoop(t *testing.T) {
	e := newFleet(t)
	require.True(t, e.Reserve("p1", "c1", 1))
	before := e.Snapshot()

	assert.Empty(t, e.Simulate(0))
	assert.Empty(t, e.Simulate(-3))
	assert.Equal(t, before, e.Snapshot())
}

func TestSimulate_Composes(t *testing.T) {
	build := func() *Engine {
		e := New()
		require.True(t, e.RegisterPerson("p1", 3))
		require.True(t, e.RegisterPerson("p2", 10))
		require.True(t, e.RegisterCar(models.Car{Identifier: "c1", Mileage: 14999}))
		require.True(t, e.RegisterCar(models.Car{Identifier: "c2", AgeDays: MaxAgeDays - 4}))
		require.True(t, e.RegisterCar(models.Car{Identifier: "c3"}))
		require.True(t, e.Rent("p1", "c1"))
		require.True(t, e.Return("p1", "c1", 5))
		require.True(t, e.Reserve("p1", "c1", 2))
		require.True(t, e.Reserve("p2", "c1", 1))
		return e
	}

	for _, split := range []struct{ n, m int }{{0, 7}, {1, 6}, {3, 4}, {7, 0}} {
		whole := build()
		whole.Simulate(split.n + split.m)

		parts := build()
		parts.Simulate(split.n)
		parts.Simulate(split.m)

		assert.Equal(t, whole.Snapshot(), parts.Snapshot(), "simulate(%d) then simulate(%d)", split.n, split.m)
	}
}

func TestSimulate_LicenseExpiry(t *testing.T) {
	e := newFleet(t)
	require.True(t, e.RegisterPerson("short", 1))

	e.Simulate(1)

	p, _ := e.Person("short")
	assert.Equal(t, 0, p.LicenseValidDays)
	assert.Equal(t, models.PersonBlocked, p.Status)
	assert.False(t, e.Rent("short", "c1"))
	assert.False(t, e.Reserve("short", "c1", 1))

	e.Simulate(5)
	p, _ = e.Person("short")
	assert.Equal(t, 0, p.LicenseValidDays, "counter does not go below zero")

	require.True(t, e.RenewLicense("short", 2))
	assert.True(t, e.Rent("short", "c1"))

	other, _ := e.Person("p1")
	assert.Equal(t, 365-6, other.LicenseValidDays)
}

func TestSimulate_AdvancesDayAndAge(t *testing.T) {
	e := newFleet(t)
	e.Simulate(4)

	assert.Equal(t, 4, e.CurrentDay())
	for _, c := range e.Snapshot().Cars {
		assert.Equal(t, 4, c.AgeDays)
	}
}

func TestSimulate_Retirement(t *testing.T) {
	t.Run("by age", func(t *testing.T) {
		e := New()
		require.True(t, e.RegisterCar(models.Car{Identifier: "c1", AgeDays: MaxAgeDays - 2}))
		e.Simulate(1)
		status, _ := e.CarStatus("c1")
		assert.Equal(t, models.Available(), status)
		e.Simulate(1)
		status, _ = e.CarStatus("c1")
		assert.Equal(t, models.Retired(), status)
	})

	t.Run("by rental count", func(t *testing.T) {
		e := New()
		require.True(t, e.RegisterCar(models.Car{Identifier: "c1", RentalCount: MaxRentals}))
		e.Simulate(1)
		status, _ := e.CarStatus("c1")
		assert.Equal(t, models.Retired(), status)
	})

	t.Run("by combined score", func(t *testing.T) {
		e := New()
		// 0.5 + 0.4999 is admissible, one more day pushes it over
		require.True(t, e.RegisterCar(models.Car{Identifier: "c1", AgeDays: 1825, Mileage: 99980}))
		e.Simulate(1)
		status, _ := e.CarStatus("c1")
		assert.Equal(t, models.Retired(), status)
	})

	t.Run("deferred while rented", func(t *testing.T) {
		e := New()
		require.True(t, e.RegisterPerson("p1", 100))
		require.True(t, e.RegisterCar(models.Car{Identifier: "c1", AgeDays: MaxAgeDays - 3}))
		require.True(t, e.Rent("p1", "c1"))

		e.Simulate(5)
		status, _ := e.CarStatus("c1")
		assert.Equal(t, models.Rented(), status)

		require.True(t, e.Return("p1", "c1", 10))
		status, _ = e.CarStatus("c1")
		assert.Equal(t, models.Retired(), status, "score is over the limit on return")
	})

	t.Run("retired cars are never resurrected", func(t *testing.T) {
		e := New()
		require.True(t, e.RegisterPerson("p1", 100))
		require.True(t, e.RegisterCar(models.Car{Identifier: "c1", AgeDays: MaxAgeDays - 1}))
		require.True(t, e.Reserve("p1", "c1", 1))
		e.Simulate(10)

		status, _ := e.CarStatus("c1")
		assert.Equal(t, models.Retired(), status)
		assert.Equal(t, []string{"p1"}, e.ReservationsForCar("c1"))
	})

	t.Run("workshop cars can retire", func(t *testing.T) {
		e := New()
		require.True(t, e.RegisterPerson("p1", 100))
		// score 0.99988 on return, just above 1 one day later
		require.True(t, e.RegisterCar(models.Car{Identifier: "c1", Mileage: 4999, AgeDays: 3551}))
		require.True(t, e.Rent("p1", "c1"))
		require.True(t, e.Return("p1", "c1", 2))

		status, _ := e.CarStatus("c1")
		require.Equal(t, models.Maintenance(2), status)

		e.Simulate(1)
		status, _ = e.CarStatus("c1")
		assert.Equal(t, models.Retired(), status)
	})
}

func TestSimulate_InspectionCountdown(t *testing.T) {
	e := New()
	require.True(t, e.RegisterPerson("p1", 100))
	require.True(t, e.RegisterCar(models.Car{Identifier: "c1", Mileage: 14990}))
	require.True(t, e.Rent("p1", "c1"))
	require.True(t, e.Return("p1", "c1", 20))

	expected := []models.CarStatus{models.Tuv(2), models.Tuv(1), models.Available()}
	for day, want := range expected {
		e.Simulate(1)
		status, _ := e.CarStatus("c1")
		assert.Equal(t, want, status, "after day %d", day+1)
	}
}

func TestSimulate_ResolvesReservationsWhenCarComesBack(t *testing.T) {
	e := New()
	require.True(t, e.RegisterPerson("p1", 100))
	require.True(t, e.RegisterPerson("p2", 100))
	require.True(t, e.RegisterCar(models.Car{Identifier: "c1", Mileage: 4999}))
	require.True(t, e.Rent("p1", "c1"))
	require.True(t, e.Reserve("p2", "c1", 1))
	require.True(t, e.Return("p1", "c1", 2))

	assert.Empty(t, e.Simulate(1), "still in maintenance")
	assert.Equal(t, []models.Rental{{PersonID: "p2", CarID: "c1"}}, e.Simulate(1))
	assert.Empty(t, e.Reservations())
	assertRentalInvariant(t, e)
}
