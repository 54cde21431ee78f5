package policies

import (
	"math"
	"sync/atomic"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/sampleuv"

	"github.com/js0n-statham/Cab-Driving-Agent/types"
)

// SoftMaxPolicy learns like QLearningPolicy and samples actions with probability
// proportional to exp(Q/temperature)
type SoftMaxPolicy struct {
	*QLearningPolicy
	temperature float64
	src         rand.Source
}

var _ types.Policy = &SoftMaxPolicy{}

func NewSoftMaxPolicy(config QLearningConfig, temperature float64) *SoftMaxPolicy {
	config.Epsilon = 0
	config.EpsilonMin = 0
	seed := config.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	if temperature <= 0 {
		temperature = 1
	}
	return &SoftMaxPolicy{
		QLearningPolicy: NewQLearningPolicy(config),
		temperature:     temperature,
		src:             rand.NewSource(seed + 1),
	}
}

func (s *SoftMaxPolicy) NextAction(_ *types.StepContext, state types.State, actions []types.Action) (types.Action, bool) {
	if len(actions) == 0 {
		return nil, false
	}
	stateHash := state.Hash()

	vals := make([]float64, len(actions))
	maxVal := math.Inf(-1)
	for i, action := range actions {
		vals[i] = s.qTable.Get(stateHash, action.Hash(), 0) / s.temperature
		if vals[i] > maxVal {
			maxVal = vals[i]
		}
	}
	// shifted by the max to keep exp finite
	sum := 0.0
	for i, val := range vals {
		vals[i] = math.Exp(val - maxVal)
		sum += vals[i]
	}
	weights := make([]float64, len(actions))
	for i, v := range vals {
		weights[i] = v / sum
	}
	i, ok := sampleuv.NewWeighted(weights, s.src).Take()
	if !ok {
		return nil, false
	}
	return actions[i], true
}

type SoftMaxPolicyConstructor struct {
	Config      QLearningConfig
	Temperature float64

	instances atomic.Uint64
}

var _ types.PolicyConstructor = &SoftMaxPolicyConstructor{}

func (c *SoftMaxPolicyConstructor) NewPolicy() types.Policy {
	config := c.Config
	instance := c.instances.Add(1) - 1
	if config.Seed != 0 {
		config.Seed += instance
	}
	return NewSoftMaxPolicy(config, c.Temperature)
}
