package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Options controls a simulator run.
type Options struct {
	APIURL    string
	AuthToken string
	Persons   int
	Cars      int
	Days      int
	Interval  time.Duration
	SeedFile  string
	RandSeed  int64
}

// Seed is the YAML fixture describing the initial fleet.
type Seed struct {
	Persons []SeedPerson `yaml:"persons"`
	Cars    []SeedCar    `yaml:"cars"`
}

type SeedPerson struct {
	Identifier       string `yaml:"identifier" json:"identifier"`
	LicenseValidDays int    `yaml:"license_valid_days" json:"license_valid_days"`
}

type SeedCar struct {
	Identifier  string `yaml:"identifier" json:"identifier"`
	Mileage     int    `yaml:"mileage" json:"mileage"`
	AgeDays     int    `yaml:"age_days" json:"age_days"`
	RentalCount int    `yaml:"rental_count" json:"rental_count"`
}

func main() {
	opts, err := parseOptions(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		log.WithError(err).Fatal("Invalid options")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("Simulation failed")
	}
}

// parseOptions reads flags, falling back to the environment for defaults.
func parseOptions(args []string) (Options, error) {
	opts := Options{}
	flags := pflag.NewFlagSet("simulator", pflag.ContinueOnError)
	flags.StringVar(&opts.APIURL, "api-url", envString("API_BASE_URL", "http://localhost:8080/api"), "fleet API base URL")
	flags.StringVar(&opts.AuthToken, "token", os.Getenv("SIM_AUTH_TOKEN"), "bearer token for the fleet API")
	flags.IntVar(&opts.Persons, "persons", envInt("SIM_PERSONS", 20), "persons to register when no seed file is given")
	flags.IntVar(&opts.Cars, "cars", envInt("FLEET_SIZE", 10), "cars to register when no seed file is given")
	flags.IntVar(&opts.Days, "days", envInt("SIM_DAYS", 30), "days to simulate, 0 runs until interrupted")
	flags.DurationVar(&opts.Interval, "interval", time.Duration(envInt("SIM_TICK_SECONDS", 2))*time.Second, "wall-clock pause between simulated days")
	flags.StringVar(&opts.SeedFile, "seed-file", os.Getenv("SIM_SEED_FILE"), "YAML file with the initial persons and cars")
	flags.Int64Var(&opts.RandSeed, "rand-seed", time.Now().UnixNano(), "seed for the random behaviour")

	if err := flags.Parse(args); err != nil {
		return Options{}, err
	}
	if opts.Days < 0 {
		return Options{}, fmt.Errorf("--days must not be negative")
	}
	return opts, nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return fallback
}

// LoadSeed reads a YAML fleet fixture.
func LoadSeed(path string) (Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("read seed file: %w", err)
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return Seed{}, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	return seed, nil
}

// RandomSeed generates a fleet with unique identifiers.
func RandomSeed(rng *rand.Rand, persons, cars int) Seed {
	var seed Seed
	for range persons {
		seed.Persons = append(seed.Persons, SeedPerson{
			Identifier:       "person-" + uuid.NewString()[:8],
			LicenseValidDays: 5 + rng.Intn(360),
		})
	}
	for range cars {
		seed.Cars = append(seed.Cars, SeedCar{
			Identifier:  "car-" + uuid.NewString()[:8],
			Mileage:     rng.Intn(60000),
			AgeDays:     rng.Intn(1000),
			RentalCount: rng.Intn(100),
		})
	}
	return seed
}

func run(ctx context.Context, opts Options) error {
	rng := rand.New(rand.NewSource(opts.RandSeed))

	seed := RandomSeed(rng, opts.Persons, opts.Cars)
	if opts.SeedFile != "" {
		var err error
		if seed, err = LoadSeed(opts.SeedFile); err != nil {
			return err
		}
	}

	client := NewClient(opts.APIURL, opts.AuthToken)
	d := NewDriver(client, rng)

	log.WithFields(log.Fields{
		"api_url": opts.APIURL,
		"persons": len(seed.Persons),
		"cars":    len(seed.Cars),
		"days":    opts.Days,
	}).Info("Starting car sharing simulation")

	if err := d.Register(ctx, seed); err != nil {
		return err
	}
	if len(d.persons) == 0 {
		return errors.New("no persons registered, check SIM_AUTH_TOKEN and that the API is reachable")
	}

	ticker := time.NewTicker(max(opts.Interval, time.Millisecond))
	defer ticker.Stop()

	for day := 1; opts.Days == 0 || day <= opts.Days; day++ {
		if err := d.Step(ctx); err != nil {
			return err
		}
		if opts.Days != 0 && day == opts.Days {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	log.WithFields(log.Fields{
		"rentals":  d.stats.rentals,
		"returns":  d.stats.returns,
		"reserved": d.stats.reserved,
		"granted":  d.stats.granted,
	}).Info("Simulation finished")
	return nil
}

// Client is a thin JSON client for the fleet API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// StatusError carries a non-2xx API answer.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api returned %d: %s", e.Code, e.Body)
}

// IsConflict reports whether the API rejected the operation.
func IsConflict(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusConflict
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: string(bytes.TrimSpace(msg))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) RegisterPerson(ctx context.Context, p SeedPerson) error {
	return c.call(ctx, http.MethodPost, "/persons", p, nil)
}

func (c *Client) RegisterCar(ctx context.Context, car SeedCar) error {
	return c.call(ctx, http.MethodPost, "/cars", car, nil)
}

func (c *Client) AvailableCars(ctx context.Context) ([]string, error) {
	var cars []string
	err := c.call(ctx, http.MethodGet, "/cars/available", nil, &cars)
	return cars, err
}

func (c *Client) Rent(ctx context.Context, personID, carID string) error {
	return c.call(ctx, http.MethodPost, "/rentals", map[string]string{"person_id": personID, "car_id": carID}, nil)
}

func (c *Client) Return(ctx context.Context, personID, carID string, drivenKm int) error {
	return c.call(ctx, http.MethodPost, "/rentals/return", map[string]any{
		"person_id": personID,
		"car_id":    carID,
		"driven_km": drivenKm,
	}, nil)
}

func (c *Client) Reserve(ctx context.Context, personID, carID string, priority int) error {
	return c.call(ctx, http.MethodPost, "/reservations", map[string]any{
		"person_id": personID,
		"car_id":    carID,
		"priority":  priority,
	}, nil)
}

func (c *Client) RenewLicense(ctx context.Context, personID string, validDays int) error {
	return c.call(ctx, http.MethodPost, "/persons/"+personID+"/license", map[string]int{"valid_days": validDays}, nil)
}

// SimulateResult mirrors the API's simulate answer; rentals are pairs.
type SimulateResult struct {
	CurrentDay int         `json:"current_day"`
	Granted    [][2]string `json:"granted"`
}

func (c *Client) Simulate(ctx context.Context, days int) (SimulateResult, error) {
	var result SimulateResult
	err := c.call(ctx, http.MethodPost, "/simulate", map[string]int{"days": days}, &result)
	return result, err
}

type driverStats struct {
	rentals  int
	returns  int
	reserved int
	granted  int
}

// Driver plays the customers: it rents, returns and reserves cars at random
// and advances the fleet one day per step.
type Driver struct {
	client  *Client
	rng     *rand.Rand
	persons []string
	cars    []string
	renting map[string]string // person -> car
	stats   driverStats
}

func NewDriver(client *Client, rng *rand.Rand) *Driver {
	return &Driver{
		client:  client,
		rng:     rng,
		renting: make(map[string]string),
	}
}

// Register creates the seed fleet. Entries the API refuses are skipped.
func (d *Driver) Register(ctx context.Context, seed Seed) error {
	for _, p := range seed.Persons {
		if err := d.client.RegisterPerson(ctx, p); err != nil {
			if IsConflict(err) {
				log.WithField("person_id", p.Identifier).Warn("Person rejected")
				continue
			}
			return err
		}
		d.persons = append(d.persons, p.Identifier)
	}
	for _, c := range seed.Cars {
		if err := d.client.RegisterCar(ctx, c); err != nil {
			if IsConflict(err) {
				log.WithField("car_id", c.Identifier).Warn("Car rejected")
				continue
			}
			return err
		}
		d.cars = append(d.cars, c.Identifier)
	}
	log.WithFields(log.Fields{
		"persons": len(d.persons),
		"cars":    len(d.cars),
	}).Info("Fleet registered")
	return nil
}

// Step runs one simulated day of customer behaviour followed by a tick.
func (d *Driver) Step(ctx context.Context) error {
	for person, car := range d.renting {
		if d.rng.Float64() >= 0.4 {
			continue
		}
		err := d.client.Return(ctx, person, car, 10+d.rng.Intn(800))
		if err != nil && !IsConflict(err) {
			return err
		}
		delete(d.renting, person)
		if err == nil {
			d.stats.returns++
		}
	}

	available, err := d.client.AvailableCars(ctx)
	if err != nil {
		return err
	}

	for _, person := range d.persons {
		if _, busy := d.renting[person]; busy || d.rng.Float64() >= 0.3 {
			continue
		}

		if len(available) > 0 {
			i := d.rng.Intn(len(available))
			car := available[i]
			err := d.client.Rent(ctx, person, car)
			if err == nil {
				d.renting[person] = car
				d.stats.rentals++
				available = append(available[:i], available[i+1:]...)
				continue
			}
			if !IsConflict(err) {
				return err
			}
		}

		if len(d.cars) == 0 {
			continue
		}
		car := d.cars[d.rng.Intn(len(d.cars))]
		err := d.client.Reserve(ctx, person, car, d.rng.Intn(10))
		if err == nil {
			d.stats.reserved++
			continue
		}
		if !IsConflict(err) {
			return err
		}
		// a blocked licence is the usual reason; renew some of them
		if d.rng.Float64() < 0.2 {
			if err := d.client.RenewLicense(ctx, person, 30+d.rng.Intn(335)); err != nil && !IsConflict(err) {
				return err
			}
		}
	}

	result, err := d.client.Simulate(ctx, 1)
	if err != nil {
		return err
	}
	for _, pair := range result.Granted {
		d.renting[pair[0]] = pair[1]
		d.stats.granted++
	}

	log.WithFields(log.Fields{
		"day":     result.CurrentDay,
		"renting": len(d.renting),
		"granted": len(result.Granted),
	}).Info("Simulated day")
	return nil
}
