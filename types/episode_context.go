package types

import (
	"context"
	"time"
)

// EpisodeContext carries the information used and returned by a single episode
type EpisodeContext struct {
	Context context.Context
	Cancel  context.CancelFunc // cancel function to stop the episode

	Run            int
	Episode        int
	ExperimentName string
	StartTimeStep  int

	Trace       *Trace
	Timesteps   int           // number of steps executed
	RunDuration time.Duration // wall clock time of the episode

	Err        error
	TimedOut   bool
	Terminal   bool // reached a state with no actions before the horizon
	HorizonEnd bool

	// free form values set by environments, e.g. the simulated hours elapsed
	Info map[string]float64
}

// NewEpisodeContext creates the context for an episode, a zero timeout disables it
func NewEpisodeContext(ctx context.Context, timeout time.Duration) *EpisodeContext {
	var eCtx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		eCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		eCtx, cancel = context.WithCancel(ctx)
	}
	return &EpisodeContext{
		Context: eCtx,
		Cancel:  cancel,
		Trace:   NewTrace(),
		Info:    make(map[string]float64),
	}
}

func (e *EpisodeContext) SetError(err error) {
	e.Err = err
}

func (e *EpisodeContext) SetTimedOut() {
	e.TimedOut = true
}

// StepContext is the episode context along with the current step
type StepContext struct {
	Step int
	*EpisodeContext
}
