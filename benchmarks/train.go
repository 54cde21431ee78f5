package benchmarks

import (
	"context"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/logrusorgru/aurora"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/js0n-statham/Cab-Driving-Agent/cab"
	"github.com/js0n-statham/Cab-Driving-Agent/policies"
	"github.com/js0n-statham/Cab-Driving-Agent/types"
	"github.com/js0n-statham/Cab-Driving-Agent/util"
)

const (
	randomPolicy    = "random"
	qLearningPolicy = "qlearning"
	softMaxPolicy   = "softmax"
)

func parsePolicies(s string) ([]string, error) {
	names := make([]string, 0)
	seen := make(map[string]bool)
	for _, name := range strings.Split(s, ",") {
		name = strings.TrimSpace(strings.ToLower(name))
		if name == "" || seen[name] {
			continue
		}
		switch name {
		case randomPolicy, qLearningPolicy, softMaxPolicy:
		default:
			return nil, fmt.Errorf("unknown policy %q", name)
		}
		seen[name] = true
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no policy to train")
	}
	return names, nil
}

// trainer holds what the sequential and the parallel comparisons share
type trainer struct {
	flags  *Flags
	config cab.Config
	envs   *cab.EnvConstructor
	client *redis.Client
	names  []string
}

func newTrainer(ctx context.Context, f *Flags) (*trainer, error) {
	names, err := parsePolicies(f.Policies)
	if err != nil {
		return nil, err
	}
	config := f.EnvConfig()
	tm, err := f.LoadTimeMatrix(config)
	if err != nil {
		return nil, err
	}
	envs, err := cab.NewEnvConstructor(config, tm, f.Seed)
	if err != nil {
		return nil, err
	}
	if err := tm.Save(path.Join(f.SavePath, "time_matrix.json")); err != nil {
		log.Warn().Err(err).Msg("failed to save time matrix")
	}
	if config.MaxRequests > config.RequestPoolSize() {
		log.Warn().Int("max_requests", config.MaxRequests).Int("pool", config.RequestPoolSize()).
			Msg("more requests can be drawn than there are actions, sampling may fail")
	}

	t := &trainer{flags: f, config: config, envs: envs, names: names}
	if f.RedisAddr != "" {
		t.client = redis.NewClient(&redis.Options{Addr: f.RedisAddr})
		if err := t.client.Ping(ctx).Err(); err != nil {
			t.client.Close()
			return nil, fmt.Errorf("connecting to redis at %s: %w", f.RedisAddr, err)
		}
		// runs of an earlier train under the same prefix would mix with this one
		for _, name := range names {
			if err := t.store(name).Clear(ctx); err != nil {
				t.client.Close()
				return nil, fmt.Errorf("clearing redis keys of %s: %w", name, err)
			}
		}
		log.Info().Str("redis_address", f.RedisAddr).Msg("storing q tables in redis")
	}
	return t, nil
}

func (t *trainer) close() {
	if t.client != nil {
		t.client.Close()
	}
}

// store is the redis store of the named experiment, nil without redis.
// Runs are stored under <prefix>:<name>:<run>.
func (t *trainer) store(name string) *policies.RedisStore {
	if t.client == nil {
		return nil
	}
	return policies.NewRedisStoreWithClient(t.client, t.flags.RedisPrefix+":"+name)
}

func (t *trainer) policyConstructor(name string) types.PolicyConstructor {
	switch name {
	case qLearningPolicy:
		return &policies.QLearningPolicyConstructor{Config: t.flags.QLearningConfig(), Store: t.store(name)}
	case softMaxPolicy:
		return &policies.SoftMaxPolicyConstructor{Config: t.flags.QLearningConfig(), Temperature: t.flags.Temperature}
	}
	return &types.RandomPolicyConstructor{Seed: t.flags.Seed}
}

func (t *trainer) runSequential(ctx context.Context) map[string]*types.ExperimentStats {
	c := types.NewComparison(t.flags.ComparisonConfig())
	c.AddAnalysis("rewards", cab.NewRewardAnalyzer(), cab.RewardComparator(path.Join(t.flags.SavePath, "rewards")))
	c.AddAnalysis("locations", cab.NewLocationAnalyzer(t.config), cab.LocationHeatMapComparator(path.Join(t.flags.SavePath, "locations")))
	c.AddAnalysis("coverage", types.NewPureCoverage(), types.PureCoveragePlotter(path.Join(t.flags.SavePath, "coverage")))
	if t.flags.RecordVisits {
		c.AddAnalysis("visits", types.NewVisitGraphAnalyzer(), types.VisitGraphRecorder(path.Join(t.flags.SavePath, "visits")))
	}

	for i, name := range t.names {
		c.AddExperiment(types.NewExperiment(
			name,
			t.policyConstructor(name).NewPolicy(),
			t.envs.NewEnvironment(i),
		))
	}
	c.Run(ctx)
	return c.Stats
}

func (t *trainer) runParallel(ctx context.Context) map[string]*types.ExperimentStats {
	c := types.NewParallelComparison(t.flags.ComparisonConfig(), t.flags.Parallelism)
	c.AddAnalysis("rewards", cab.RewardAnalyzerConstructor{}, cab.RewardComparator(path.Join(t.flags.SavePath, "rewards")))
	c.AddAnalysis("locations", cab.LocationAnalyzerConstructor{Config: t.config}, cab.LocationHeatMapComparator(path.Join(t.flags.SavePath, "locations")))
	c.AddAnalysis("coverage", types.PureCoverageConstructor{}, types.PureCoveragePlotter(path.Join(t.flags.SavePath, "coverage")))
	if t.flags.RecordVisits {
		c.AddAnalysis("visits", types.VisitGraphConstructor{}, types.VisitGraphRecorder(path.Join(t.flags.SavePath, "visits")))
	}

	for _, name := range t.names {
		c.AddExperiment(&types.ParallelExperiment{
			Name:        name,
			Environment: t.envs,
			Policy:      t.policyConstructor(name),
		})
	}
	c.Run(ctx)
	return c.Stats
}

// Train compares the selected policies on the cab environment
func Train(ctx context.Context, f *Flags) error {
	if f.Clean {
		if err := types.RemoveContents(f.SavePath); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	if err := f.Record(); err != nil {
		log.Warn().Err(err).Msg("failed to record config")
	}
	t, err := newTrainer(ctx, f)
	if err != nil {
		return err
	}
	defer t.close()

	stopProfiling := startProfiling(f)
	defer stopProfiling()

	log.Info().Strs("policies", t.names).Int("episodes", f.Episodes).Int("runs", f.Runs).Msg("training")
	var stats map[string]*types.ExperimentStats
	if f.Parallelism > 1 {
		stats = t.runParallel(ctx)
	} else {
		stats = t.runSequential(ctx)
	}
	if err := util.SaveJson(path.Join(f.SavePath, "stats.json"), stats); err != nil {
		log.Warn().Err(err).Msg("failed to save stats")
	}
	printSummary(stats)
	return nil
}

func printSummary(stats map[string]*types.ExperimentStats) {
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return stats[names[i]].AvgEpisodeReward > stats[names[j]].AvgEpisodeReward
	})

	for i, name := range names {
		s := stats[name]
		reward := fmt.Sprintf("%10.2f", s.AvgEpisodeReward)
		line := fmt.Sprintf("%-10s avg reward %s  episodes %d/%d  steps %d", name, reward, s.ValidEpisodes, s.Episodes, s.ValidTimesteps)
		switch {
		case s.Aborted:
			fmt.Println(aurora.Red(line + "  aborted: " + s.LastError))
		case i == 0:
			fmt.Println(aurora.Bold(aurora.Green(line)))
		default:
			fmt.Println(aurora.Cyan(line))
		}
	}
}

func TrainCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train and compare policies on the cab environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, done := interruptContext()
			defer done()
			return Train(ctx, flags)
		},
	}
	cmd.PersistentFlags().IntVar(&flags.Runs, "runs", flags.Runs, "Number of experiment runs")
	cmd.PersistentFlags().IntVarP(&flags.Episodes, "episodes", "e", flags.Episodes, "Number of episodes to run")
	cmd.PersistentFlags().IntVar(&flags.Horizon, "horizon", flags.Horizon, "Maximum steps of each episode")
	cmd.PersistentFlags().IntVar(&flags.MaxConsecutiveErrors, "max-consecutive-errors", flags.MaxConsecutiveErrors, "Abort an experiment after this many failing episodes in a row")
	cmd.PersistentFlags().IntVar(&flags.MaxConsecutiveTimeouts, "max-consecutive-timeouts", flags.MaxConsecutiveTimeouts, "Abort an experiment after this many timeouts in a row")
	cmd.PersistentFlags().DurationVar(&flags.EpisodeTimeout, "episode-timeout", flags.EpisodeTimeout, "Timeout of an episode, 0 disables it")
	cmd.PersistentFlags().IntVar(&flags.Parallelism, "parallelism", flags.Parallelism, "Number of experiments running at once")
	cmd.PersistentFlags().StringVar(&flags.Policies, "policies", flags.Policies, "Comma separated policies among random, qlearning and softmax")
	cmd.PersistentFlags().BoolVar(&flags.RecordTraces, "record-traces", flags.RecordTraces, "Record every trace as json lines")
	cmd.PersistentFlags().BoolVar(&flags.RecordPolicy, "record-policy", flags.RecordPolicy, "Record the q tables at the end of each run")
	cmd.PersistentFlags().BoolVar(&flags.RecordVisits, "record-visits", flags.RecordVisits, "Record the graph of visited states")
	cmd.PersistentFlags().BoolVar(&flags.Clean, "clean", flags.Clean, "Remove previous results from the save folder")

	cmd.PersistentFlags().Float64Var(&flags.Alpha, "alpha", flags.Alpha, "Learning rate")
	cmd.PersistentFlags().Float64Var(&flags.Gamma, "gamma", flags.Gamma, "Discount factor")
	cmd.PersistentFlags().Float64Var(&flags.Epsilon, "epsilon", flags.Epsilon, "Initial exploration probability")
	cmd.PersistentFlags().Float64Var(&flags.EpsilonMin, "epsilon-min", flags.EpsilonMin, "Minimum exploration probability")
	cmd.PersistentFlags().Float64Var(&flags.EpsilonDecay, "epsilon-decay", flags.EpsilonDecay, "Exploration decay per episode")
	cmd.PersistentFlags().Float64Var(&flags.Temperature, "temperature", flags.Temperature, "Temperature of the softmax policy")

	cmd.PersistentFlags().StringVar(&flags.CPUProfile, "cpuprofile", flags.CPUProfile, "Write a cpu profile to this file in the save folder")
	cmd.PersistentFlags().StringVar(&flags.MemProfile, "memprofile", flags.MemProfile, "Write a memory profile to this file in the save folder")
	return cmd
}
