package types

import (
	"sync/atomic"
	"time"

	"golang.org/x/exp/rand"
)

type Policy interface {
	// Reset clears everything learnt, called between runs
	Reset()
	// ResetEpisode is called before the first step of every episode
	ResetEpisode(*EpisodeContext)
	NextAction(*StepContext, State, []Action) (Action, bool)
	// Update with the observed (state, action, reward, nextState)
	Update(*StepContext, State, Action, float64, State)
	// UpdateIteration is called with the complete trace at the end of each episode
	UpdateIteration(int, *Trace)
}

// PolicyRecorder is implemented by policies that can dump what they learnt
type PolicyRecorder interface {
	Record(path string) error
}

type PolicyConstructor interface {
	NewPolicy() Policy
}

type RandomPolicy struct {
	rand *rand.Rand
}

var _ Policy = &RandomPolicy{}

func NewRandomPolicy() *RandomPolicy {
	return NewRandomPolicyWithSeed(uint64(time.Now().UnixNano()))
}

func NewRandomPolicyWithSeed(seed uint64) *RandomPolicy {
	return &RandomPolicy{
		rand: rand.New(rand.NewSource(seed)),
	}
}

func (r *RandomPolicy) Reset() {

}

func (r *RandomPolicy) ResetEpisode(_ *EpisodeContext) {}

func (r *RandomPolicy) UpdateIteration(_ int, _ *Trace) {

}

func (r *RandomPolicy) NextAction(_ *StepContext, _ State, actions []Action) (Action, bool) {
	if len(actions) == 0 {
		return nil, false
	}
	i := r.rand.Intn(len(actions))
	return actions[i], true
}

func (r *RandomPolicy) Update(_ *StepContext, _ State, _ Action, _ float64, _ State) {}

// RandomPolicyConstructor seeds policy i with Seed+i, or with the time when Seed is zero
type RandomPolicyConstructor struct {
	Seed uint64

	instances atomic.Uint64
}

var _ PolicyConstructor = &RandomPolicyConstructor{}

func (r *RandomPolicyConstructor) NewPolicy() Policy {
	instance := r.instances.Add(1) - 1
	if r.Seed == 0 {
		return NewRandomPolicy()
	}
	return NewRandomPolicyWithSeed(r.Seed + instance)
}
