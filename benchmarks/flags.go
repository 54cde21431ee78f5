package benchmarks

import (
	"fmt"
	"path"
	"time"

	"golang.org/x/exp/rand"

	"github.com/js0n-statham/Cab-Driving-Agent/cab"
	"github.com/js0n-statham/Cab-Driving-Agent/policies"
	"github.com/js0n-statham/Cab-Driving-Agent/types"
	"github.com/js0n-statham/Cab-Driving-Agent/util"
)

// Flags holds every setting of the commands. Values come from the defaults,
// then cab.yaml and CAB_* variables, then the flags given on the command line.
type Flags struct {
	SavePath   string `json:"save_path" mapstructure:"save_path"`
	ConfigPath string `json:"-" mapstructure:"-"`
	Debug      bool   `json:"debug" mapstructure:"debug"`
	Seed       uint64 `json:"seed" mapstructure:"seed"`

	// environment
	Locations      int             `json:"locations" mapstructure:"locations"`
	HoursPerDay    int             `json:"hours_per_day" mapstructure:"hours_per_day"`
	DaysPerWeek    int             `json:"days_per_week" mapstructure:"days_per_week"`
	CostPerHour    float64         `json:"cost_per_hour" mapstructure:"cost_per_hour"`
	RevenuePerHour float64         `json:"revenue_per_hour" mapstructure:"revenue_per_hour"`
	MaxRequests    int             `json:"max_requests" mapstructure:"max_requests"`
	RequestRates   map[int]float64 `json:"request_rates" mapstructure:"request_rates"`
	EpisodeHours   float64         `json:"episode_hours" mapstructure:"episode_hours"`
	TimeMatrix     string          `json:"time_matrix" mapstructure:"time_matrix"`

	// runs
	Runs                   int           `json:"runs" mapstructure:"runs"`
	Episodes               int           `json:"episodes" mapstructure:"episodes"`
	Horizon                int           `json:"horizon" mapstructure:"horizon"`
	MaxConsecutiveErrors   int           `json:"max_consecutive_errors" mapstructure:"max_consecutive_errors"`
	MaxConsecutiveTimeouts int           `json:"max_consecutive_timeouts" mapstructure:"max_consecutive_timeouts"`
	EpisodeTimeout         time.Duration `json:"episode_timeout" mapstructure:"episode_timeout"`
	Parallelism            int           `json:"parallelism" mapstructure:"parallelism"`
	Policies               string        `json:"policies" mapstructure:"policies"`
	RecordTraces           bool          `json:"record_traces" mapstructure:"record_traces"`
	RecordPolicy           bool          `json:"record_policy" mapstructure:"record_policy"`
	RecordVisits           bool          `json:"record_visits" mapstructure:"record_visits"`
	Clean                  bool          `json:"clean" mapstructure:"clean"`

	// learning
	Alpha        float64 `json:"alpha" mapstructure:"alpha"`
	Gamma        float64 `json:"gamma" mapstructure:"gamma"`
	Epsilon      float64 `json:"epsilon" mapstructure:"epsilon"`
	EpsilonMin   float64 `json:"epsilon_min" mapstructure:"epsilon_min"`
	EpsilonDecay float64 `json:"epsilon_decay" mapstructure:"epsilon_decay"`
	Temperature  float64 `json:"temperature" mapstructure:"temperature"`

	RedisAddr   string `json:"redis_addr" mapstructure:"redis_addr"`
	RedisPrefix string `json:"redis_prefix" mapstructure:"redis_prefix"`

	ServeAddr string `json:"serve_addr" mapstructure:"serve_addr"`

	CPUProfile string `json:"cpu_profile" mapstructure:"cpu_profile"`
	MemProfile string `json:"mem_profile" mapstructure:"mem_profile"`
}

func DefaultFlags() *Flags {
	config := cab.DefaultConfig()
	qConfig := policies.DefaultQLearningConfig()
	return &Flags{
		SavePath:   "results",
		ConfigPath: ".",
		Debug:      false,
		Seed:       0,

		Locations:      config.Locations,
		HoursPerDay:    config.HoursPerDay,
		DaysPerWeek:    config.DaysPerWeek,
		CostPerHour:    config.CostPerHour,
		RevenuePerHour: config.RevenuePerHour,
		MaxRequests:    config.MaxRequests,
		RequestRates:   config.RequestRates,
		EpisodeHours:   config.EpisodeHours,
		TimeMatrix:     "",

		Runs:                   1,
		Episodes:               1000,
		Horizon:                1000,
		MaxConsecutiveErrors:   10,
		MaxConsecutiveTimeouts: 10,
		EpisodeTimeout:         0,
		Parallelism:            1,
		Policies:               "random,qlearning,softmax",
		RecordTraces:           false,
		RecordPolicy:           true,
		RecordVisits:           false,
		Clean:                  false,

		Alpha:        qConfig.Alpha,
		Gamma:        qConfig.Gamma,
		Epsilon:      qConfig.Epsilon,
		EpsilonMin:   qConfig.EpsilonMin,
		EpsilonDecay: qConfig.EpsilonDecay,
		Temperature:  1,

		RedisAddr:   "",
		RedisPrefix: "cab",

		ServeAddr: "localhost:8080",
	}
}

// Record saves the resolved flags to <save path>/config.json
func (f *Flags) Record() error {
	return util.SaveJson(path.Join(f.SavePath, "config.json"), f)
}

func (f *Flags) EnvConfig() cab.Config {
	rates := make(map[int]float64, len(f.RequestRates))
	for loc, rate := range f.RequestRates {
		rates[loc] = rate
	}
	return cab.Config{
		Locations:      f.Locations,
		HoursPerDay:    f.HoursPerDay,
		DaysPerWeek:    f.DaysPerWeek,
		CostPerHour:    f.CostPerHour,
		RevenuePerHour: f.RevenuePerHour,
		MaxRequests:    f.MaxRequests,
		RequestRates:   rates,
		EpisodeHours:   f.EpisodeHours,
	}
}

func (f *Flags) QLearningConfig() policies.QLearningConfig {
	return policies.QLearningConfig{
		Alpha:        f.Alpha,
		Gamma:        f.Gamma,
		Epsilon:      f.Epsilon,
		EpsilonMin:   f.EpsilonMin,
		EpsilonDecay: f.EpsilonDecay,
		Seed:         f.Seed,
	}
}

func (f *Flags) ComparisonConfig() *types.ComparisonConfig {
	return &types.ComparisonConfig{
		Runs:                     f.Runs,
		Episodes:                 f.Episodes,
		Horizon:                  f.Horizon,
		RecordPath:               f.SavePath,
		Timeout:                  f.EpisodeTimeout,
		ConsecutiveTimeoutsAbort: f.MaxConsecutiveTimeouts,
		ConsecutiveErrorsAbort:   f.MaxConsecutiveErrors,
		RecordTraces:             f.RecordTraces,
		RecordPolicy:             f.RecordPolicy,
	}
}

// source returns a random source seeded with the seed flag, or the time when it is zero
func (f *Flags) source() rand.Source {
	seed := f.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.NewSource(seed)
}

// LoadTimeMatrix reads the time matrix flag, or generates one when it is empty.
// The matrix is checked against the environment config.
func (f *Flags) LoadTimeMatrix(config cab.Config) (cab.TimeMatrix, error) {
	var tm cab.TimeMatrix
	if f.TimeMatrix == "" {
		tm = cab.GenerateTimeMatrix(config, f.source())
	} else {
		var err error
		if tm, err = cab.LoadTimeMatrix(f.TimeMatrix); err != nil {
			return nil, err
		}
	}
	if err := tm.Validate(config); err != nil {
		return nil, fmt.Errorf("time matrix %q: %w", f.TimeMatrix, err)
	}
	return tm, nil
}
