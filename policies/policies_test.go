package policies

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/js0n-statham/Cab-Driving-Agent/types"
)

type testState struct {
	hash    string
	actions []types.Action
}

func (s testState) Hash() string            { return s.hash }
func (s testState) Actions() []types.Action { return s.actions }

type testAction string

func (a testAction) Hash() string { return string(a) }

func TestQTable(t *testing.T) {
	q := NewQTable()
	require.Equal(t, 1.0, q.Get("s", "a", 1))
	require.Equal(t, 1.0, q.Get("s", "a", 5))
	q.Set("s", "a", 3)
	require.Equal(t, 3.0, q.Get("s", "a", 0))
	q.Set("s", "b", 7)

	action, val := q.Max("s", 0)
	require.Equal(t, "b", action)
	require.Equal(t, 7.0, val)

	action, val = q.Max("unknown", -1)
	require.Equal(t, "", action)
	require.Equal(t, -1.0, val)

	action, val = q.MaxAmong("s", []string{"a", "c"}, 4, nil)
	require.Equal(t, "c", action)
	require.Equal(t, 4.0, val)

	require.Equal(t, []string{"s"}, q.States())
	require.True(t, q.HasState("s"))
	require.Len(t, q.Actions("s"), 3)
}

func TestQTableTieBreak(t *testing.T) {
	q := NewQTable()
	action, _ := q.MaxAmong("s", []string{"a", "b", "c"}, 0, func(n int) int { return n - 1 })
	require.Equal(t, "c", action)
	action, _ = q.MaxAmong("s", []string{"a", "b", "c"}, 0, nil)
	require.Equal(t, "a", action)
}

func TestQTableRecord(t *testing.T) {
	q := NewQTable()
	q.Set("(1, 2, 3)", "(0, 0)", -4)
	q.Set("(1, 2, 3)", "(1, 3)", 15.5)
	q.Set("(0, 0, 0)", "(0, 1)", 2)

	file := filepath.Join(t.TempDir(), "policies", "q.jsonl")
	require.NoError(t, q.Record(file))
	// recording again replaces the file
	require.NoError(t, q.Record(file))

	loaded, err := ReadQTable(file)
	require.NoError(t, err)
	require.Equal(t, q.States(), loaded.States())
	require.Equal(t, q.Actions("(1, 2, 3)"), loaded.Actions("(1, 2, 3)"))
}

func TestQLearningUpdate(t *testing.T) {
	config := DefaultQLearningConfig()
	config.Alpha = 0.5
	config.Gamma = 0.9
	config.Seed = 3
	p := NewQLearningPolicy(config)

	next := testState{hash: "s1", actions: []types.Action{testAction("x")}}
	p.QTable().Set("s1", "x", 10)

	p.Update(nil, testState{hash: "s0"}, testAction("a"), 2, next)
	// 0.5*0 + 0.5*(2 + 0.9*10)
	require.InDelta(t, 5.5, p.QTable().Get("s0", "a", 0), 1e-9)

	terminal := testState{hash: "s1"}
	p.Update(nil, testState{hash: "s0"}, testAction("a"), 2, terminal)
	// no bootstrapping from terminal states: 0.5*5.5 + 0.5*2
	require.InDelta(t, 3.75, p.QTable().Get("s0", "a", 0), 1e-9)
}

func TestQLearningGreedyAndDecay(t *testing.T) {
	config := DefaultQLearningConfig()
	config.Epsilon = 0
	config.EpsilonMin = 0
	config.Seed = 1
	p := NewQLearningPolicy(config)
	p.QTable().Set("s", "good", 10)
	p.QTable().Set("s", "bad", -10)

	state := testState{hash: "s"}
	actions := []types.Action{testAction("bad"), testAction("good")}
	for i := 0; i < 20; i++ {
		a, ok := p.NextAction(nil, state, actions)
		require.True(t, ok)
		require.Equal(t, "good", a.Hash())
	}
	_, ok := p.NextAction(nil, state, nil)
	require.False(t, ok)

	config = DefaultQLearningConfig()
	config.Epsilon = 1
	config.EpsilonMin = 0.5
	config.EpsilonDecay = 0.5
	p = NewQLearningPolicy(config)
	p.UpdateIteration(0, types.NewTrace())
	require.Equal(t, 0.5, p.Epsilon())
	p.UpdateIteration(1, types.NewTrace())
	require.Equal(t, 0.5, p.Epsilon())

	p.QTable().Set("s", "a", 1)
	p.Reset()
	require.Equal(t, 0, p.QTable().Len())
	require.Equal(t, 1.0, p.Epsilon())
}

func TestQLearningRecord(t *testing.T) {
	p := NewQLearningPolicy(DefaultQLearningConfig())
	p.QTable().Set("s", "a", 1)
	base := filepath.Join(t.TempDir(), "qlearning_0")
	require.NoError(t, p.Record(base))
	_, err := os.Stat(base + ".jsonl")
	require.NoError(t, err)
}

func TestSoftMaxPrefersBestAction(t *testing.T) {
	config := DefaultQLearningConfig()
	config.Seed = 9
	p := NewSoftMaxPolicy(config, 0.1)
	p.QTable().Set("s", "good", 5)
	p.QTable().Set("s", "bad", 0)

	state := testState{hash: "s"}
	actions := []types.Action{testAction("bad"), testAction("good")}
	good := 0
	for i := 0; i < 200; i++ {
		a, ok := p.NextAction(nil, state, actions)
		require.True(t, ok)
		if a.Hash() == "good" {
			good += 1
		}
	}
	// exp(-50) makes the bad action practically impossible
	require.Equal(t, 200, good)
}

func TestConstructorsSeedInstances(t *testing.T) {
	c := &QLearningPolicyConstructor{Config: DefaultQLearningConfig()}
	c.Config.Seed = 10
	first := c.NewPolicy().(*QLearningPolicy)
	second := c.NewPolicy().(*QLearningPolicy)
	require.Equal(t, uint64(10), first.config.Seed)
	require.Equal(t, uint64(11), second.config.Seed)

	s := &SoftMaxPolicyConstructor{Config: DefaultQLearningConfig(), Temperature: 2}
	_, ok := s.NewPolicy().(*SoftMaxPolicy)
	require.True(t, ok)
}

func TestQLearningRuns(t *testing.T) {
	p := NewQLearningPolicy(DefaultQLearningConfig())
	require.Equal(t, 0, p.Run())
	p.Reset()
	require.Equal(t, 1, p.Run())

	c := &QLearningPolicyConstructor{Config: DefaultQLearningConfig()}
	for run := 0; run < 3; run++ {
		require.Equal(t, run, c.NewPolicy().(*QLearningPolicy).Run())
	}
}

func testRedisStore(t *testing.T, prefix string) (context.Context, *RedisStore) {
	t.Helper()
	addr := os.Getenv("CAB_TEST_REDIS")
	if addr == "" {
		t.Skip("CAB_TEST_REDIS not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	store := NewRedisStore(addr, prefix)
	t.Cleanup(func() {
		store.Clear(context.Background())
		store.Close()
	})
	require.NoError(t, store.Ping(ctx))
	require.NoError(t, store.Clear(ctx))
	return ctx, store
}

// the redis tests need a running redis, e.g. CAB_TEST_REDIS=localhost:6379
func TestRedisStore(t *testing.T) {
	ctx, store := testRedisStore(t, "cab-test")

	q := NewQTable()
	q.Set("(1, 2, 3)", "(1, 3)", 15.5)
	q.Set("(1, 2, 3)", "(0, 0)", -4)
	q.Set("(0, 0, 0)", "(0, 1)", 0.125)
	require.NoError(t, store.SaveQTable(ctx, q))

	loaded, err := store.LoadQTable(ctx)
	require.NoError(t, err)
	require.Equal(t, q.States(), loaded.States())
	require.Equal(t, q.Actions("(1, 2, 3)"), loaded.Actions("(1, 2, 3)"))

	require.NoError(t, store.PushEpisodeReward(ctx, 12.5))
	require.NoError(t, store.PushEpisodeReward(ctx, -3))
	rewards, err := store.EpisodeRewards(ctx)
	require.NoError(t, err)
	require.Equal(t, []float64{12.5, -3}, rewards)
}

func TestRedisStoreSaveReplacesTable(t *testing.T) {
	ctx, store := testRedisStore(t, "cab-test-replace")

	first := NewQTable()
	first.Set("(0, 0, 0)", "(0, 1)", 1)
	first.Set("(1, 1, 1)", "(1, 2)", 2)
	require.NoError(t, store.SaveQTable(ctx, first))

	second := NewQTable()
	second.Set("(1, 1, 1)", "(0, 0)", 3)
	require.NoError(t, store.SaveQTable(ctx, second))

	loaded, err := store.LoadQTable(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"(1, 1, 1)"}, loaded.States())
	require.Equal(t, map[string]float64{"(0, 0)": 3}, loaded.Actions("(1, 1, 1)"))
}

func TestRedisStoreRunsAreSeparate(t *testing.T) {
	ctx, store := testRedisStore(t, "cab-test-runs")

	config := DefaultQLearningConfig()
	config.Epsilon = 0
	p := NewQLearningPolicy(config).WithStore(store)
	state := testState{hash: "s0"}
	next := testState{hash: "s1"}

	p.Update(nil, state, testAction("a"), 1, next)
	trace := types.NewTrace()
	trace.Append(0, state, testAction("a"), 1, next)
	p.UpdateIteration(0, trace)
	require.NoError(t, p.Record(filepath.Join(t.TempDir(), "run0")))

	p.Reset()
	p.Update(nil, next, testAction("b"), 2, state)
	require.NoError(t, p.Record(filepath.Join(t.TempDir(), "run1")))

	run0, err := store.ForRun(0).LoadQTable(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"s0"}, run0.States())
	rewards, err := store.ForRun(0).EpisodeRewards(ctx)
	require.NoError(t, err)
	require.Equal(t, []float64{1}, rewards)

	run1, err := store.ForRun(1).LoadQTable(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"s1"}, run1.States())
	rewards, err = store.ForRun(1).EpisodeRewards(ctx)
	require.NoError(t, err)
	require.Empty(t, rewards)

	// the store of the experiment holds no table of its own
	parent, err := store.LoadQTable(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, parent.Len())

	require.NoError(t, store.Clear(ctx))
	run0, err = store.ForRun(0).LoadQTable(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, run0.Len())
}
