package cab

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/js0n-statham/Cab-Driving-Agent/types"
)

func testTrace() *types.Trace {
	trace := types.NewTrace()
	s0 := &Observation{State: State{1, 9, 0}, Requests: []Action{{1, 3}, RefuseAction}}
	s1 := &Observation{State: State{3, 11, 0}, Requests: []Action{RefuseAction}}
	s2 := &Observation{State: State{3, 12, 0}, Terminal: true}
	trace.Append(0, s0, Action{1, 3}, 15, s1)
	trace.Append(1, s1, RefuseAction, -4, s2)
	return trace
}

func TestRewardAnalyzer(t *testing.T) {
	a := NewRewardAnalyzer()
	a.Analyze(0, 0, 0, "test", testTrace())
	a.Analyze(0, 1, 2, "test", types.NewTrace())

	ds := a.DataSet().(*RewardDataSet)
	require.Equal(t, []float64{11, 0}, ds.Rewards)
	require.Equal(t, []int{1, 0}, ds.Rides)
	require.Equal(t, []int{1, 0}, ds.Refusals)

	a.Reset()
	require.Empty(t, a.DataSet().(*RewardDataSet).Rewards)
	// the returned dataset is not affected by the reset
	require.Len(t, ds.Rewards, 2)
}

func TestLocationAnalyzer(t *testing.T) {
	a := NewLocationAnalyzer(DefaultConfig())
	a.Analyze(0, 0, 0, "test", testTrace())

	ds := a.DataSet().(*LocationDataSet)
	c, r := ds.Dims()
	require.Equal(t, 24, c)
	require.Equal(t, 5, r)
	require.Equal(t, 1.0, ds.Z(9, 1))
	require.Equal(t, 1.0, ds.Z(11, 3))
	require.Equal(t, 0.0, ds.Z(12, 3))
	require.Equal(t, 2, ds.Total())
	require.Equal(t, 1.0, ds.Max())
	require.Equal(t, 0.0, ds.Min())
}

func TestComparatorsWriteFiles(t *testing.T) {
	dir := t.TempDir()

	rewards := NewRewardAnalyzer()
	locations := NewLocationAnalyzer(DefaultConfig())
	for i := 0; i < 3; i++ {
		rewards.Analyze(0, i, 0, "test", testTrace())
		locations.Analyze(0, i, 0, "test", testTrace())
	}

	RewardComparator(filepath.Join(dir, "rewards"))(0, 3, []string{"test"}, []types.DataSet{rewards.DataSet()})
	for _, f := range []string{"0_rewards.json", "0_rewards.png", "0_rewards.html"} {
		_, err := os.Stat(filepath.Join(dir, "rewards", f))
		require.NoError(t, err, f)
	}

	LocationHeatMapComparator(filepath.Join(dir, "locations"))(0, 3, []string{"test"}, []types.DataSet{locations.DataSet()})
	for _, f := range []string{"0_test_locations.json", "0_test_locations.png"} {
		_, err := os.Stat(filepath.Join(dir, "locations", f))
		require.NoError(t, err, f)
	}
}
