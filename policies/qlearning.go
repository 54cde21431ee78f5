package policies

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/exp/rand"

	"github.com/js0n-statham/Cab-Driving-Agent/types"
)

// QLearningConfig holds the hyperparameters of QLearningPolicy
type QLearningConfig struct {
	Alpha float64 `json:"alpha"`
	Gamma float64 `json:"gamma"`
	// exploration probability at the start, multiplied by EpsilonDecay after every episode
	Epsilon      float64 `json:"epsilon"`
	EpsilonMin   float64 `json:"epsilon_min"`
	EpsilonDecay float64 `json:"epsilon_decay"`
	Seed         uint64  `json:"seed"`
}

func DefaultQLearningConfig() QLearningConfig {
	return QLearningConfig{
		Alpha:        0.1,
		Gamma:        0.95,
		Epsilon:      1,
		EpsilonMin:   0.01,
		EpsilonDecay: 0.995,
	}
}

// QLearningPolicy is tabular epsilon greedy Q learning over the offered actions
type QLearningPolicy struct {
	config  QLearningConfig
	qTable  *QTable
	epsilon float64
	rand    *rand.Rand

	// optional, receives the episode rewards and the table on Record under the current run
	store *RedisStore
	run   int
}

var _ types.Policy = &QLearningPolicy{}
var _ types.PolicyRecorder = &QLearningPolicy{}

func NewQLearningPolicy(config QLearningConfig) *QLearningPolicy {
	seed := config.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &QLearningPolicy{
		config:  config,
		qTable:  NewQTable(),
		epsilon: config.Epsilon,
		rand:    rand.New(rand.NewSource(seed)),
	}
}

// WithStore mirrors the learning into redis
func (q *QLearningPolicy) WithStore(store *RedisStore) *QLearningPolicy {
	q.store = store
	return q
}

func (q *QLearningPolicy) QTable() *QTable {
	return q.qTable
}

func (q *QLearningPolicy) Epsilon() float64 {
	return q.epsilon
}

// Reset starts a new run, learning starts over and the store moves to the next run
func (q *QLearningPolicy) Reset() {
	q.qTable = NewQTable()
	q.epsilon = q.config.Epsilon
	q.run += 1
}

// Run is the run the policy currently learns in
func (q *QLearningPolicy) Run() int {
	return q.run
}

func (q *QLearningPolicy) runStore() *RedisStore {
	if q.store == nil {
		return nil
	}
	return q.store.ForRun(q.run)
}

func (q *QLearningPolicy) ResetEpisode(_ *types.EpisodeContext) {}

func (q *QLearningPolicy) NextAction(_ *types.StepContext, state types.State, actions []types.Action) (types.Action, bool) {
	if len(actions) == 0 {
		return nil, false
	}
	if q.rand.Float64() < q.epsilon {
		return actions[q.rand.Intn(len(actions))], true
	}

	actionsMap := make(map[string]types.Action)
	availableActions := make([]string, len(actions))
	for i, a := range actions {
		aHash := a.Hash()
		actionsMap[aHash] = a
		availableActions[i] = aHash
	}
	maxAction, _ := q.qTable.MaxAmong(state.Hash(), availableActions, 0, q.rand.Intn)
	return actionsMap[maxAction], true
}

// Update moves Q(s, a) towards reward + gamma * max Q(s', .), without bootstrapping from terminal states
func (q *QLearningPolicy) Update(_ *types.StepContext, state types.State, action types.Action, reward float64, nextState types.State) {
	stateHash := state.Hash()
	actionHash := action.Hash()

	nextStateVal := 0.0
	if len(nextState.Actions()) > 0 {
		_, nextStateVal = q.qTable.Max(nextState.Hash(), 0)
	}
	curVal := q.qTable.Get(stateHash, actionHash, 0)
	newVal := (1-q.config.Alpha)*curVal + q.config.Alpha*(reward+q.config.Gamma*nextStateVal)
	q.qTable.Set(stateHash, actionHash, newVal)
}

func (q *QLearningPolicy) UpdateIteration(iteration int, trace *types.Trace) {
	q.epsilon = math.Max(q.config.EpsilonMin, q.epsilon*q.config.EpsilonDecay)

	if store := q.runStore(); store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.PushEpisodeReward(ctx, trace.TotalReward()); err != nil {
			log.Warn().Err(err).Int("episode", iteration).Msg("failed to push episode reward")
		}
	}
}

// Record writes the table to path.jsonl and, with a store, to redis
func (q *QLearningPolicy) Record(path string) error {
	if err := q.qTable.Record(path + ".jsonl"); err != nil {
		return err
	}
	if store := q.runStore(); store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return store.SaveQTable(ctx, q.qTable)
	}
	return nil
}

// QLearningPolicyConstructor gives every policy its own seed derived from the config.
// Policy i stores its first run as run i of the store, one policy per run is created in parallel comparisons.
type QLearningPolicyConstructor struct {
	Config QLearningConfig
	Store  *RedisStore

	instances atomic.Uint64
}

var _ types.PolicyConstructor = &QLearningPolicyConstructor{}

func (c *QLearningPolicyConstructor) NewPolicy() types.Policy {
	config := c.Config
	instance := c.instances.Add(1) - 1
	if config.Seed != 0 {
		config.Seed += instance
	}
	policy := NewQLearningPolicy(config)
	policy.run = int(instance)
	if c.Store != nil {
		policy.WithStore(c.Store)
	}
	return policy
}
