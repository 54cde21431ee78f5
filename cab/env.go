package cab

import (
	"fmt"
	"time"

	"golang.org/x/exp/rand"

	"github.com/js0n-statham/Cab-Driving-Agent/types"
)

const (
	// keys of the values Env reports in the episode context
	InfoEpisodeHours = "episode_hours"
	InfoStepHours    = "step_hours"
)

// Observation is the state handed to policies: the driver state and the requests offered there
type Observation struct {
	State    State    `json:"state"`
	Requests []Action `json:"requests"`
	Terminal bool     `json:"terminal"`
}

var _ types.State = &Observation{}

// Hash identifies the observation by the driver state only, the offered requests are not part of it
func (o *Observation) Hash() string {
	return o.State.Hash()
}

// Actions returns the sampled requests, none once the episode is over
func (o *Observation) Actions() []types.Action {
	if o.Terminal {
		return []types.Action{}
	}
	actions := make([]types.Action, len(o.Requests))
	for i, a := range o.Requests {
		actions[i] = a
	}
	return actions
}

// Env runs episodes of EpisodeHours simulated hours on a Driver and a TimeMatrix.
// With EpisodeHours zero the episode only ends at the horizon of the agent.
type Env struct {
	driver *Driver
	tm     TimeMatrix

	current *Observation
	clock   float64
}

var _ types.Environment = &Env{}

func NewEnv(driver *Driver, tm TimeMatrix) *Env {
	return &Env{
		driver: driver,
		tm:     tm,
	}
}

func (e *Env) Driver() *Driver {
	return e.driver
}

// Current is the last observation returned by Reset or Step, nil before the first Reset
func (e *Env) Current() *Observation {
	return e.current
}

// Clock is the number of hours elapsed in the episode
func (e *Env) Clock() float64 {
	return e.clock
}

// Reset starts an episode from a random state
func (e *Env) Reset(eCtx *types.EpisodeContext) (types.State, error) {
	obs, err := e.observe(e.driver.RandomState(), false)
	if err != nil {
		return nil, err
	}
	e.clock = 0
	e.current = obs
	if eCtx != nil {
		eCtx.Info[InfoEpisodeHours] = 0
	}
	return obs, nil
}

// Step takes a cab Action from the current state
func (e *Env) Step(a types.Action, sCtx *types.StepContext) (types.State, float64, error) {
	if e.current == nil {
		return nil, 0, fmt.Errorf("%w: step before reset", ErrConfiguration)
	}
	action, ok := a.(Action)
	if !ok {
		return nil, 0, fmt.Errorf("%w: unexpected action %T", ErrOutOfRange, a)
	}
	reward, next, elapsed, err := e.driver.Step(e.current.State, action, e.tm)
	if err != nil {
		return nil, 0, err
	}
	clock := e.clock + elapsed
	limit := e.driver.config.EpisodeHours
	terminal := limit > 0 && clock >= limit

	// a failed observation leaves the episode untouched
	obs, err := e.observe(next, terminal)
	if err != nil {
		return nil, 0, err
	}
	e.clock = clock
	e.current = obs
	if sCtx != nil && sCtx.EpisodeContext != nil {
		sCtx.Info[InfoEpisodeHours] = e.clock
		sCtx.Info[InfoStepHours] = elapsed
	}
	return obs, reward, nil
}

// Resample draws a new set of requests for the current state
func (e *Env) Resample() (*Observation, error) {
	if e.current == nil {
		return nil, fmt.Errorf("%w: resample before reset", ErrConfiguration)
	}
	if e.current.Terminal {
		return e.current, nil
	}
	obs, err := e.observe(e.current.State, false)
	if err != nil {
		return nil, err
	}
	e.current = obs
	return obs, nil
}

func (e *Env) observe(state State, terminal bool) (*Observation, error) {
	obs := &Observation{State: state, Terminal: terminal, Requests: []Action{}}
	if terminal {
		return obs, nil
	}
	_, requests, err := e.driver.Requests(state)
	if err != nil {
		return nil, err
	}
	obs.Requests = requests
	return obs, nil
}

// EnvConstructor creates independent environments sharing the read only spaces and time matrix
type EnvConstructor struct {
	config      Config
	tm          TimeMatrix
	seed        uint64
	actionSpace []Action
	stateSpace  []State
}

var _ types.EnvironmentConstructor = &EnvConstructor{}

// NewEnvConstructor checks the config and matrix and builds the spaces once, NewEnvironment cannot fail.
// Environment i is seeded with seed+i, a zero seed is replaced by the current time.
func NewEnvConstructor(config Config, tm TimeMatrix, seed uint64) (*EnvConstructor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := tm.Validate(config); err != nil {
		return nil, err
	}
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &EnvConstructor{
		config:      config.copy(),
		tm:          tm,
		seed:        seed,
		actionSpace: BuildActionSpace(config.Locations),
		stateSpace:  BuildStateSpace(config.Locations, config.HoursPerDay, config.DaysPerWeek),
	}, nil
}

func (c *EnvConstructor) NewEnvironment(instance int) types.Environment {
	return c.NewEnv(instance)
}

func (c *EnvConstructor) NewEnv(instance int) *Env {
	driver := newDriver(c.config, c.actionSpace, c.stateSpace, rand.NewSource(c.seed+uint64(instance)))
	return NewEnv(driver, c.tm)
}
