package cab

import (
	"fmt"
	"math"
)

// Config holds the hyperparameters of the environment.
// A Config is copied into the Driver at construction and never mutated afterwards.
type Config struct {
	// number of distinct locations (m)
	Locations int
	// hours in a day (t)
	HoursPerDay int
	// days in a week (d)
	DaysPerWeek int

	// flat per hour fuel and other costs (C)
	CostPerHour float64
	// revenue per hour of ride (R)
	RevenuePerHour float64

	// upper bound on the number of requests offered in one step
	MaxRequests int
	// poisson rate of requests keyed by location
	RequestRates map[int]float64

	// length of a training episode in hours, used by Env only
	EpisodeHours float64
}

// DefaultConfig returns the configuration of the five location city
func DefaultConfig() Config {
	return Config{
		Locations:      5,
		HoursPerDay:    24,
		DaysPerWeek:    7,
		CostPerHour:    5,
		RevenuePerHour: 9,
		MaxRequests:    15,
		RequestRates: map[int]float64{
			0: 2,
			1: 12,
			2: 4,
			3: 7,
			4: 8,
		},
		EpisodeHours: 24 * 30,
	}
}

// Validate checks that the bounds are positive and that every location has a request rate
func (c Config) Validate() error {
	if c.Locations <= 0 || c.HoursPerDay <= 0 || c.DaysPerWeek <= 0 {
		return fmt.Errorf("%w: locations=%d hours=%d days=%d must be positive",
			ErrConfiguration, c.Locations, c.HoursPerDay, c.DaysPerWeek)
	}
	if c.MaxRequests < 0 {
		return fmt.Errorf("%w: max requests %d is negative", ErrConfiguration, c.MaxRequests)
	}
	if c.EpisodeHours < 0 {
		return fmt.Errorf("%w: episode hours %f is negative", ErrConfiguration, c.EpisodeHours)
	}
	for loc := 0; loc < c.Locations; loc++ {
		rate, ok := c.RequestRates[loc]
		if !ok {
			return fmt.Errorf("%w: no request rate for location %d", ErrConfiguration, loc)
		}
		if rate < 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
			return fmt.Errorf("%w: invalid request rate %f for location %d", ErrConfiguration, rate, loc)
		}
	}
	return nil
}

// ActionSpaceSize is 1 + m(m-1)
func (c Config) ActionSpaceSize() int {
	return 1 + c.RequestPoolSize()
}

// RequestPoolSize is the number of non refuse actions, (m-1)m
func (c Config) RequestPoolSize() int {
	return (c.Locations - 1) * c.Locations
}

func (c Config) StateSpaceSize() int {
	return c.Locations * c.HoursPerDay * c.DaysPerWeek
}

// EncodingSize is the length of the state vector, m+t+d
func (c Config) EncodingSize() int {
	return c.Locations + c.HoursPerDay + c.DaysPerWeek
}

// copy returns a Config that shares no map with c
func (c Config) copy() Config {
	out := c
	out.RequestRates = make(map[int]float64, len(c.RequestRates))
	for loc, rate := range c.RequestRates {
		out.RequestRates[loc] = rate
	}
	return out
}
