package cab

import (
	"fmt"

	"github.com/js0n-statham/Cab-Driving-Agent/types"
)

// State of the driver: where the cab is and when
type State struct {
	Location int `json:"location"`
	Hour     int `json:"hour"`
	Day      int `json:"day"`
}

func (s State) Hash() string {
	return fmt.Sprintf("(%d, %d, %d)", s.Location, s.Hour, s.Day)
}

func (s State) String() string {
	return s.Hash()
}

// Action is a (pickup, drop) pair, (0, 0) refuses every request
type Action struct {
	Pickup int `json:"pickup"`
	Drop   int `json:"drop"`
}

var _ types.Action = Action{}

// RefuseAction is always offered and always legal
var RefuseAction = Action{Pickup: 0, Drop: 0}

func (a Action) Hash() string {
	return fmt.Sprintf("(%d, %d)", a.Pickup, a.Drop)
}

func (a Action) String() string {
	return a.Hash()
}

func (a Action) IsRefuse() bool {
	return a == RefuseAction
}

// BuildActionSpace returns (0,0) followed by every ordered pair of distinct locations,
// pickup major and drop minor
func BuildActionSpace(locations int) []Action {
	actions := make([]Action, 0, 1+locations*(locations-1))
	actions = append(actions, RefuseAction)
	for pickup := 0; pickup < locations; pickup++ {
		for drop := 0; drop < locations; drop++ {
			if pickup == drop {
				continue
			}
			actions = append(actions, Action{Pickup: pickup, Drop: drop})
		}
	}
	return actions
}

// BuildStateSpace enumerates every (location, hour, day) with location outermost and day innermost.
// Callers index into the result by position so the order must not change.
func BuildStateSpace(locations, hours, days int) []State {
	states := make([]State, 0, locations*hours*days)
	for loc := 0; loc < locations; loc++ {
		for hour := 0; hour < hours; hour++ {
			for day := 0; day < days; day++ {
				states = append(states, State{Location: loc, Hour: hour, Day: day})
			}
		}
	}
	return states
}

// StateIndex is the position of s in the state space
func (c Config) StateIndex(s State) (int, error) {
	if err := c.checkState(s); err != nil {
		return -1, err
	}
	return (s.Location*c.HoursPerDay+s.Hour)*c.DaysPerWeek + s.Day, nil
}

func (c Config) checkState(s State) error {
	if s.Location < 0 || s.Location >= c.Locations {
		return fmt.Errorf("%w: location %d not in [0, %d)", ErrOutOfRange, s.Location, c.Locations)
	}
	if s.Hour < 0 || s.Hour >= c.HoursPerDay {
		return fmt.Errorf("%w: hour %d not in [0, %d)", ErrOutOfRange, s.Hour, c.HoursPerDay)
	}
	if s.Day < 0 || s.Day >= c.DaysPerWeek {
		return fmt.Errorf("%w: day %d not in [0, %d)", ErrOutOfRange, s.Day, c.DaysPerWeek)
	}
	return nil
}

func (c Config) checkAction(a Action) error {
	if a.IsRefuse() {
		return nil
	}
	if a.Pickup < 0 || a.Pickup >= c.Locations || a.Drop < 0 || a.Drop >= c.Locations {
		return fmt.Errorf("%w: action %s outside [0, %d)", ErrOutOfRange, a, c.Locations)
	}
	if a.Pickup == a.Drop {
		return fmt.Errorf("%w: action %s has identical pickup and drop", ErrOutOfRange, a)
	}
	return nil
}
