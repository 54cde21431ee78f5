package cab

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"github.com/js0n-statham/Cab-Driving-Agent/types"
)

func newTestEnv(t *testing.T, episodeHours float64) (*Env, Config) {
	t.Helper()
	config := DefaultConfig()
	config.EpisodeHours = episodeHours
	envs, err := NewEnvConstructor(config, constMatrix(config, 1), 9)
	require.NoError(t, err)
	return envs.NewEnv(0), config
}

func TestEnvReset(t *testing.T) {
	env, _ := newTestEnv(t, 10)
	eCtx := types.NewEpisodeContext(context.Background(), 0)
	defer eCtx.Cancel()

	s, err := env.Reset(eCtx)
	require.NoError(t, err)
	obs, ok := s.(*Observation)
	require.True(t, ok)
	require.False(t, obs.Terminal)
	require.NotEmpty(t, obs.Actions())
	require.Equal(t, RefuseAction, obs.Requests[len(obs.Requests)-1])
	require.Equal(t, obs.State.Hash(), obs.Hash())
	require.Equal(t, 0.0, env.Clock())
}

func TestEnvStepBeforeReset(t *testing.T) {
	env, _ := newTestEnv(t, 10)
	_, _, err := env.Step(RefuseAction, nil)
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestEnvTerminal(t *testing.T) {
	env, _ := newTestEnv(t, 5)
	eCtx := types.NewEpisodeContext(context.Background(), 0)
	defer eCtx.Cancel()

	s, err := env.Reset(eCtx)
	require.NoError(t, err)
	steps := 0
	for len(s.Actions()) > 0 {
		sCtx := &types.StepContext{Step: steps, EpisodeContext: eCtx}
		var reward float64
		s, reward, err = env.Step(s.Actions()[0], sCtx)
		require.NoError(t, err)
		require.NotZero(t, reward)
		steps += 1
		require.LessOrEqual(t, steps, 5)
	}
	require.True(t, s.(*Observation).Terminal)
	require.GreaterOrEqual(t, env.Clock(), 5.0)
	require.Equal(t, env.Clock(), eCtx.Info[InfoEpisodeHours])
}

func TestEnvRefuseReward(t *testing.T) {
	env, _ := newTestEnv(t, 100)
	s, err := env.Reset(nil)
	require.NoError(t, err)
	before := s.(*Observation).State

	next, reward, err := env.Step(RefuseAction, nil)
	require.NoError(t, err)
	require.Equal(t, -4.0, reward)
	require.Equal(t, before.Location, next.(*Observation).State.Location)
	require.Equal(t, 1.0, env.Clock())
}

func TestEnvRejectsForeignAction(t *testing.T) {
	env, _ := newTestEnv(t, 100)
	_, err := env.Reset(nil)
	require.NoError(t, err)
	_, _, err = env.Step(nil, nil)
	require.ErrorIs(t, err, ErrOutOfRange)
}

func TestEnvConstructorSeeds(t *testing.T) {
	config := DefaultConfig()
	envs, err := NewEnvConstructor(config, constMatrix(config, 1), 21)
	require.NoError(t, err)

	a, err := envs.NewEnv(3).Reset(nil)
	require.NoError(t, err)
	b, err := envs.NewEnv(3).Reset(nil)
	require.NoError(t, err)
	require.Equal(t, a, b)

	first, second := envs.NewEnv(0).Driver(), envs.NewEnv(1).Driver()
	require.Same(t, &first.ActionSpace()[0], &second.ActionSpace()[0])
	require.Same(t, &first.StateSpace()[0], &second.StateSpace()[0])

	_, err = NewEnvConstructor(config, NewTimeMatrix(Config{Locations: 2, HoursPerDay: 1, DaysPerWeek: 1}), 1)
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestAgentRunsToTerminal(t *testing.T) {
	env, _ := newTestEnv(t, 48)
	agent := types.NewAgent(&types.AgentConfig{
		Episodes:    3,
		Horizon:     1000,
		Policy:      types.NewRandomPolicyWithSeed(4),
		Environment: env,
	})
	for i := 0; i < 3; i++ {
		eCtx := types.NewEpisodeContext(context.Background(), 0)
		eCtx.Episode = i
		agent.RunEpisode(eCtx)
		eCtx.Cancel()
		require.NoError(t, eCtx.Err)
		require.True(t, eCtx.Terminal)

		trace := eCtx.Trace
		require.Greater(t, trace.Len(), 0)
		_, _, last, ok := trace.Last()
		require.True(t, ok)
		require.Empty(t, last.Actions())
	}
}

// location 1 draws more distinct requests than a three location city can offer
func samplingFailureConfig() Config {
	config := DefaultConfig()
	config.Locations = 3
	config.RequestRates = map[int]float64{0: 0, 1: 1000, 2: 0}
	config.EpisodeHours = 100
	return config
}

func TestEnvStepSamplingErrorKeepsEpisode(t *testing.T) {
	config := samplingFailureConfig()
	driver, err := New(config, rand.NewSource(5))
	require.NoError(t, err)
	env := NewEnv(driver, constMatrix(config, 1))

	start := State{Location: 0, Hour: 3, Day: 4}
	env.current = &Observation{State: start, Requests: []Action{{Pickup: 0, Drop: 1}, RefuseAction}}
	env.clock = 2

	_, _, err = env.Step(Action{Pickup: 0, Drop: 1}, nil)
	require.ErrorIs(t, err, ErrSampling)
	require.Equal(t, 2.0, env.Clock())
	require.Equal(t, start, env.Current().State)

	// the same episode can go on with an action that stays out of location 1
	next, _, err := env.Step(Action{Pickup: 0, Drop: 2}, nil)
	require.NoError(t, err)
	require.Equal(t, 2, next.(*Observation).State.Location)
	require.Equal(t, 3.0, env.Clock())
}

func TestEnvResetSamplingErrorKeepsEpisode(t *testing.T) {
	config := samplingFailureConfig()
	config.RequestRates = map[int]float64{0: 1000, 1: 1000, 2: 1000}
	driver, err := New(config, rand.NewSource(5))
	require.NoError(t, err)
	env := NewEnv(driver, constMatrix(config, 1))

	current := &Observation{State: State{Location: 2, Hour: 1, Day: 1}, Requests: []Action{RefuseAction}}
	env.current = current
	env.clock = 7

	_, err = env.Reset(nil)
	require.ErrorIs(t, err, ErrSampling)
	require.Equal(t, 7.0, env.Clock())
	require.Same(t, current, env.Current())
}
