package cab

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func newTestDriver(t *testing.T, config Config, seed uint64) *Driver {
	t.Helper()
	d, err := New(config, rand.NewSource(seed))
	require.NoError(t, err)
	return d
}

// constMatrix has value v between distinct locations and 0 on the diagonal
func constMatrix(config Config, v float64) TimeMatrix {
	tm := NewTimeMatrix(config)
	for from := range tm {
		for to := range tm[from] {
			if from == to {
				continue
			}
			for hour := range tm[from][to] {
				for day := range tm[from][to][hour] {
					tm[from][to][hour][day] = v
				}
			}
		}
	}
	return tm
}

func TestActionSpace(t *testing.T) {
	actions := BuildActionSpace(5)
	require.Len(t, actions, 21)
	require.Equal(t, RefuseAction, actions[0])
	require.Equal(t, Action{Pickup: 0, Drop: 1}, actions[1])
	require.Equal(t, Action{Pickup: 0, Drop: 4}, actions[4])
	require.Equal(t, Action{Pickup: 1, Drop: 0}, actions[5])
	require.Equal(t, Action{Pickup: 4, Drop: 3}, actions[20])

	seen := make(map[Action]bool)
	for _, a := range actions[1:] {
		require.NotEqual(t, a.Pickup, a.Drop)
		require.False(t, seen[a])
		seen[a] = true
	}
}

func TestStateSpace(t *testing.T) {
	config := DefaultConfig()
	states := BuildStateSpace(config.Locations, config.HoursPerDay, config.DaysPerWeek)
	require.Len(t, states, 5*24*7)
	require.Equal(t, State{0, 0, 0}, states[0])
	require.Equal(t, State{0, 0, 1}, states[1])
	require.Equal(t, State{0, 1, 0}, states[7])
	require.Equal(t, State{4, 23, 6}, states[len(states)-1])

	for i, s := range states {
		idx, err := config.StateIndex(s)
		require.NoError(t, err)
		require.Equal(t, i, idx)
	}
}

func TestNewValidatesConfig(t *testing.T) {
	config := DefaultConfig()
	delete(config.RequestRates, 3)
	_, err := New(config, rand.NewSource(1))
	require.ErrorIs(t, err, ErrConfiguration)

	config = DefaultConfig()
	config.Locations = 0
	_, err = New(config, rand.NewSource(1))
	require.ErrorIs(t, err, ErrConfiguration)

	config = DefaultConfig()
	config.RequestRates[0] = -1
	_, err = New(config, rand.NewSource(1))
	require.ErrorIs(t, err, ErrConfiguration)

	_, err = New(DefaultConfig(), nil)
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestConfigIsCopied(t *testing.T) {
	config := DefaultConfig()
	d := newTestDriver(t, config, 1)
	config.RequestRates[0] = 100
	require.Equal(t, 2.0, d.Config().RequestRates[0])
}

func TestReset(t *testing.T) {
	d := newTestDriver(t, DefaultConfig(), 7)
	actions, states, init := d.Reset()
	require.Len(t, actions, 21)
	require.Len(t, states, 840)
	require.Contains(t, states, init)

	_, _, again := d.Reset()
	require.Equal(t, init, again)
}

func TestRequestsCapAndDistinct(t *testing.T) {
	config := DefaultConfig()
	d := newTestDriver(t, config, 42)
	pool := config.RequestPoolSize()

	for loc := 0; loc < config.Locations; loc++ {
		for i := 0; i < 200; i++ {
			indices, actions, err := d.Requests(State{Location: loc, Hour: 3, Day: 2})
			require.NoError(t, err)
			require.LessOrEqual(t, len(indices), config.MaxRequests+1)
			require.Len(t, actions, len(indices))
			require.Equal(t, 0, indices[len(indices)-1])
			require.Equal(t, RefuseAction, actions[len(actions)-1])

			seen := make(map[int]bool)
			for j, idx := range indices[:len(indices)-1] {
				require.GreaterOrEqual(t, idx, 1)
				require.LessOrEqual(t, idx, pool)
				require.False(t, seen[idx], "duplicate request index %d", idx)
				seen[idx] = true
				require.Equal(t, d.ActionSpace()[idx], actions[j])
			}
		}
	}
}

func TestRequestsHitCap(t *testing.T) {
	config := DefaultConfig()
	config.RequestRates[1] = 100
	d := newTestDriver(t, config, 3)
	indices, _, err := d.Requests(State{Location: 1})
	require.NoError(t, err)
	require.Len(t, indices, config.MaxRequests+1)
}

func TestRequestsZeroRate(t *testing.T) {
	config := DefaultConfig()
	config.RequestRates[2] = 0
	d := newTestDriver(t, config, 8)
	for i := 0; i < 20; i++ {
		indices, actions, err := d.Requests(State{Location: 2, Hour: 5, Day: 1})
		require.NoError(t, err)
		require.Equal(t, []int{0}, indices)
		require.Equal(t, []Action{RefuseAction}, actions)
	}
}

func TestRequestsSamplingError(t *testing.T) {
	config := DefaultConfig()
	config.Locations = 3
	config.RequestRates = map[int]float64{0: 100, 1: 100, 2: 100}
	d := newTestDriver(t, config, 5)

	_, _, err := d.Requests(State{Location: 0, Hour: 0, Day: 0})
	require.ErrorIs(t, err, ErrSampling)
}

func TestRequestsOutOfRange(t *testing.T) {
	d := newTestDriver(t, DefaultConfig(), 1)
	_, _, err := d.Requests(State{Location: 5})
	require.ErrorIs(t, err, ErrOutOfRange)
	_, _, err = d.Requests(State{Location: 0, Hour: 24})
	require.ErrorIs(t, err, ErrOutOfRange)
}

func TestAdvance(t *testing.T) {
	d := newTestDriver(t, DefaultConfig(), 1)

	hour, day := d.Advance(23, 6, 2)
	require.Equal(t, 1, hour)
	require.Equal(t, 0, day)

	hour, day = d.Advance(10, 2, 5)
	require.Equal(t, 15, hour)
	require.Equal(t, 2, day)

	// fractional hours round up
	hour, day = d.Advance(10, 2, 0.5)
	require.Equal(t, 11, hour)
	require.Equal(t, 2, day)

	// the day moves at most once
	hour, day = d.Advance(20, 1, 30)
	require.Equal(t, 2, hour)
	require.Equal(t, 2, day)
}

func TestNextStateRefuse(t *testing.T) {
	config := DefaultConfig()
	d := newTestDriver(t, config, 1)
	tr, err := d.NextState(State{2, 10, 3}, RefuseAction, constMatrix(config, 4))
	require.NoError(t, err)
	require.Equal(t, State{2, 11, 3}, tr.Next)
	require.Equal(t, 1.0, tr.Wait)
	require.Equal(t, 0.0, tr.Transit)
	require.Equal(t, 0.0, tr.Ride)
	require.Equal(t, 1.0, tr.Total())
}

func TestNextStateAtPickup(t *testing.T) {
	config := DefaultConfig()
	d := newTestDriver(t, config, 1)
	tm := constMatrix(config, 7)
	tm[1][3][9][0] = 2

	tr, err := d.NextState(State{1, 9, 0}, Action{Pickup: 1, Drop: 3}, tm)
	require.NoError(t, err)
	require.Equal(t, State{3, 11, 0}, tr.Next)
	require.Equal(t, 2.0, tr.Ride)
	require.Equal(t, 0.0, tr.Transit)
	require.Equal(t, 0.0, tr.Wait)
}

func TestNextStateRepositionUsesOriginalTime(t *testing.T) {
	config := DefaultConfig()
	d := newTestDriver(t, config, 1)
	tm := constMatrix(config, 100)
	tm[0][2][22][6] = 3
	tm[2][4][22][6] = 4

	tr, err := d.NextState(State{0, 22, 6}, Action{Pickup: 2, Drop: 4}, tm)
	require.NoError(t, err)
	require.Equal(t, 3.0, tr.Transit)
	require.Equal(t, 4.0, tr.Ride)
	require.Equal(t, State{4, 5, 0}, tr.Next)
}

func TestNextStateOutOfRange(t *testing.T) {
	config := DefaultConfig()
	d := newTestDriver(t, config, 1)
	tm := constMatrix(config, 1)

	_, err := d.NextState(State{0, 0, 0}, Action{Pickup: 5, Drop: 1}, tm)
	require.ErrorIs(t, err, ErrOutOfRange)
	_, err = d.NextState(State{0, 0, 0}, Action{Pickup: 2, Drop: 2}, tm)
	require.ErrorIs(t, err, ErrOutOfRange)
	_, err = d.NextState(State{0, 0, 7}, RefuseAction, tm)
	require.ErrorIs(t, err, ErrOutOfRange)

	small := constMatrix(Config{Locations: 2, HoursPerDay: 24, DaysPerWeek: 7}, 1)
	_, err = d.NextState(State{0, 0, 0}, Action{Pickup: 3, Drop: 4}, small)
	require.True(t, errors.Is(err, ErrOutOfRange))
}

func TestReward(t *testing.T) {
	config := DefaultConfig()
	d := newTestDriver(t, config, 1)

	require.Equal(t, -(config.CostPerHour - 1), d.Reward(1, 0, 0))
	require.Equal(t, -4.0, d.Reward(1, 0, 0))
	// 9*2 - (5 - 2)
	require.Equal(t, 15.0, d.Reward(0, 0, 2))
	// 9*4 - (5 - (4 + 3))
	require.Equal(t, 38.0, d.Reward(0, 3, 4))
}

func TestStep(t *testing.T) {
	config := DefaultConfig()
	d := newTestDriver(t, config, 1)
	tm := constMatrix(config, 7)
	tm[1][3][9][0] = 2

	reward, next, elapsed, err := d.Step(State{1, 9, 0}, Action{Pickup: 1, Drop: 3}, tm)
	require.NoError(t, err)
	require.Equal(t, 15.0, reward)
	require.Equal(t, State{3, 11, 0}, next)
	require.Equal(t, 2.0, elapsed)

	reward, next, elapsed, err = d.Step(State{2, 10, 3}, RefuseAction, tm)
	require.NoError(t, err)
	require.Equal(t, -4.0, reward)
	require.Equal(t, State{2, 11, 3}, next)
	require.Equal(t, 1.0, elapsed)

	_, _, _, err = d.Step(State{9, 0, 0}, RefuseAction, tm)
	require.ErrorIs(t, err, ErrOutOfRange)
}

func TestEncode(t *testing.T) {
	config := DefaultConfig()
	d := newTestDriver(t, config, 1)
	state := State{1, 9, 0}

	vec, err := d.Encode(state)
	require.NoError(t, err)
	require.Len(t, vec, config.EncodingSize())
	require.Len(t, vec, 36)

	ones := 0
	for _, v := range vec {
		if v == 1 {
			ones += 1
		} else {
			require.Equal(t, 0.0, v)
		}
	}
	require.Equal(t, 3, ones)
	require.Equal(t, 1.0, vec[1])
	require.Equal(t, 1.0, vec[5+9])
	require.Equal(t, 1.0, vec[5+24+0])

	again, err := d.Encode(state)
	require.NoError(t, err)
	require.Equal(t, vec, again)

	_, err = d.Encode(State{0, 24, 0})
	require.ErrorIs(t, err, ErrOutOfRange)
}

func TestEncodeStateAction(t *testing.T) {
	config := DefaultConfig()
	d := newTestDriver(t, config, 1)

	vec, err := d.EncodeStateAction(State{1, 9, 0}, Action{Pickup: 2, Drop: 4})
	require.NoError(t, err)
	require.Len(t, vec, 36+10)
	require.Equal(t, 1.0, vec[36+2])
	require.Equal(t, 1.0, vec[36+5+4])

	refuse, err := d.EncodeStateAction(State{1, 9, 0}, RefuseAction)
	require.NoError(t, err)
	for _, v := range refuse[36:] {
		require.Equal(t, 0.0, v)
	}
}

func TestActionIndex(t *testing.T) {
	d := newTestDriver(t, DefaultConfig(), 1)
	for i, a := range d.ActionSpace() {
		idx, ok := d.ActionIndex(a)
		require.True(t, ok)
		require.Equal(t, i, idx)
	}
	_, ok := d.ActionIndex(Action{Pickup: 7, Drop: 1})
	require.False(t, ok)
}
