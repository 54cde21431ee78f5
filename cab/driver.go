package cab

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	"gonum.org/v1/gonum/stat/sampleuv"
)

// Driver is the single cab MDP. It owns the action and state spaces and implements
// request sampling, transitions and rewards.
// A Driver is not safe for concurrent use, the spaces returned by ActionSpace and
// StateSpace are read only and can be shared.
type Driver struct {
	config Config

	actionSpace []Action
	stateSpace  []State
	initState   State

	src  rand.Source
	rand *rand.Rand
}

// New validates the config and builds the action and state spaces.
// All randomness of the driver is drawn from src.
func New(config Config, src rand.Source) (*Driver, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if src == nil {
		return nil, fmt.Errorf("%w: nil random source", ErrConfiguration)
	}
	actionSpace := BuildActionSpace(config.Locations)
	stateSpace := BuildStateSpace(config.Locations, config.HoursPerDay, config.DaysPerWeek)
	return newDriver(config, actionSpace, stateSpace, src), nil
}

// newDriver takes spaces built for a validated config, they are only ever read
func newDriver(config Config, actionSpace []Action, stateSpace []State, src rand.Source) *Driver {
	d := &Driver{
		config:      config.copy(),
		actionSpace: actionSpace,
		stateSpace:  stateSpace,
		src:         src,
		rand:        rand.New(src),
	}
	d.initState = d.RandomState()
	return d
}

func (d *Driver) Config() Config {
	return d.config.copy()
}

func (d *Driver) ActionSpace() []Action {
	return d.actionSpace
}

func (d *Driver) StateSpace() []State {
	return d.stateSpace
}

// InitialState is the state chosen when the driver was constructed
func (d *Driver) InitialState() State {
	return d.initState
}

// Reset returns the action space, state space and the initial state
func (d *Driver) Reset() ([]Action, []State, State) {
	return d.actionSpace, d.stateSpace, d.initState
}

// RandomState draws a state uniformly from the state space
func (d *Driver) RandomState() State {
	return d.stateSpace[d.rand.Intn(len(d.stateSpace))]
}

// Requests samples the ride requests offered at the location of state.
// The refuse action (index 0) is always the last entry, the remaining indices are distinct.
func (d *Driver) Requests(state State) ([]int, []Action, error) {
	if err := d.config.checkState(state); err != nil {
		return nil, nil, err
	}
	rate, ok := d.config.RequestRates[state.Location]
	if !ok {
		return nil, nil, fmt.Errorf("%w: no request rate for location %d", ErrConfiguration, state.Location)
	}
	return d.sampleRequests(d.requestCount(rate))
}

// requestCount draws from Poisson(rate) capped at MaxRequests
func (d *Driver) requestCount(rate float64) int {
	n := int(distuv.Poisson{Lambda: rate, Src: d.src}.Rand())
	if n > d.config.MaxRequests {
		n = d.config.MaxRequests
	}
	return n
}

func (d *Driver) sampleRequests(n int) ([]int, []Action, error) {
	pool := d.config.RequestPoolSize()
	if n < 0 || n > pool {
		return nil, nil, fmt.Errorf("%w: cannot draw %d distinct requests from %d actions", ErrSampling, n, pool)
	}

	indices := make([]int, n, n+1)
	if n > 0 {
		// draws from [0, pool), shifted past the refuse action
		sampleuv.WithoutReplacement(indices, pool, d.src)
		for i := range indices {
			indices[i]++
		}
	}
	indices = append(indices, 0)

	actions := make([]Action, len(indices))
	for i, idx := range indices {
		actions[i] = d.actionSpace[idx]
	}
	return indices, actions, nil
}

// Transition is the outcome of taking an action from a state
type Transition struct {
	Next State `json:"next_state"`
	// idle hour when refusing
	Wait float64 `json:"wait_time"`
	// hours to reach the pickup location
	Transit float64 `json:"transit_time"`
	// hours from pickup to drop
	Ride float64 `json:"ride_time"`
}

func (t Transition) Total() float64 {
	return t.Wait + t.Transit + t.Ride
}

// NextState resolves the action against the current location.
// Ride time is always looked up at the hour and day of the state, even after a transit.
func (d *Driver) NextState(state State, action Action, tm TimeMatrix) (Transition, error) {
	if err := d.config.checkState(state); err != nil {
		return Transition{}, err
	}
	if err := d.config.checkAction(action); err != nil {
		return Transition{}, err
	}

	tr := Transition{}
	nextLoc := state.Location
	var err error

	switch {
	case action.IsRefuse():
		tr.Wait = 1
	case action.Pickup == state.Location:
		tr.Ride, err = tm.Lookup(state.Location, action.Drop, state.Hour, state.Day)
		if err != nil {
			return Transition{}, err
		}
		nextLoc = action.Drop
	default:
		tr.Transit, err = tm.Lookup(state.Location, action.Pickup, state.Hour, state.Day)
		if err != nil {
			return Transition{}, err
		}
		tr.Ride, err = tm.Lookup(action.Pickup, action.Drop, state.Hour, state.Day)
		if err != nil {
			return Transition{}, err
		}
		nextLoc = action.Drop
	}

	hour, day := d.Advance(state.Hour, state.Day, tr.Total())
	tr.Next = State{Location: nextLoc, Hour: hour, Day: day}
	return tr, nil
}

// Advance moves the clock forward by elapsed hours rounded up.
// The day moves forward at most once per call, even when elapsed exceeds a day.
func (d *Driver) Advance(hour, day int, elapsed float64) (int, int) {
	newHour := hour + int(math.Ceil(elapsed))
	newDay := day
	if newHour >= d.config.HoursPerDay {
		newHour = newHour % d.config.HoursPerDay
		newDay += 1
		if newDay >= d.config.DaysPerWeek {
			newDay = newDay % d.config.DaysPerWeek
		}
	}
	return newHour, newDay
}

// Reward is R*ride - (C - (ride + idle)), idle being wait plus transit
func (d *Driver) Reward(wait, transit, ride float64) float64 {
	idle := wait + transit
	return d.config.RevenuePerHour*ride - (d.config.CostPerHour - (ride + idle))
}

// Step takes the action and returns the reward, the next state and the hours it took
func (d *Driver) Step(state State, action Action, tm TimeMatrix) (float64, State, float64, error) {
	tr, err := d.NextState(state, action, tm)
	if err != nil {
		return 0, State{}, 0, err
	}
	reward := d.Reward(tr.Wait, tr.Transit, tr.Ride)
	return reward, tr.Next, tr.Total(), nil
}

// Encode one-hot encodes the state into a vector of size m+t+d
func (d *Driver) Encode(state State) ([]float64, error) {
	if err := d.config.checkState(state); err != nil {
		return nil, err
	}
	m, t := d.config.Locations, d.config.HoursPerDay
	vec := make([]float64, d.config.EncodingSize())
	vec[state.Location] = 1
	vec[m+state.Hour] = 1
	vec[m+t+state.Day] = 1
	return vec, nil
}

// EncodeStateAction appends the pickup and drop one-hots to the state encoding,
// a vector of size m+t+d+m+m. The refuse action sets no pickup or drop bit.
func (d *Driver) EncodeStateAction(state State, action Action) ([]float64, error) {
	if err := d.config.checkAction(action); err != nil {
		return nil, err
	}
	stateVec, err := d.Encode(state)
	if err != nil {
		return nil, err
	}
	m := d.config.Locations
	vec := make([]float64, len(stateVec)+2*m)
	copy(vec, stateVec)
	if !action.IsRefuse() {
		vec[len(stateVec)+action.Pickup] = 1
		vec[len(stateVec)+m+action.Drop] = 1
	}
	return vec, nil
}

// ActionIndex is the position of a in the action space
func (d *Driver) ActionIndex(a Action) (int, bool) {
	for i, action := range d.actionSpace {
		if action == a {
			return i, true
		}
	}
	return -1, false
}
