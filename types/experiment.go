package types

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/js0n-statham/Cab-Driving-Agent/util"
)

type experimentRunConfig struct {
	// execution configuration
	CurrentRun int
	Episodes   int
	Horizon    int
	Analyzers  []Analyzer
	Timeout    time.Duration
	Context    context.Context

	// thresholds to abort the experiment
	ConsecutiveTimeoutsAbort int
	ConsecutiveErrorsAbort   int

	// record flags
	RecordTraces bool
	RecordPolicy bool

	ReportSavePath string

	// where the progress line is written, stdout when nil
	Output *ParallelOutput

	//misc
	LongestExpNameLen int
}

// ExperimentStats summarises how the episodes of a run ended
type ExperimentStats struct {
	Episodes         int
	ValidEpisodes    int
	Timesteps        int
	ValidTimesteps   int
	TimedOut         int
	Errored          int
	Terminal         int
	HorizonReached   int
	Aborted          bool
	LastError        string
	TotalReward      float64
	AvgEpisodeReward float64
}

// Experiment encapsulates the different parameters to configure an agent and analyze the traces
type Experiment struct {
	Name        string
	policy      Policy
	environment Environment
}

// NewExperiment creates a new experiment instance
func NewExperiment(name string, policy Policy, environment Environment) *Experiment {
	return &Experiment{
		Name:        name,
		policy:      policy,
		environment: environment,
	}
}

func (e *Experiment) Policy() Policy {
	return e.policy
}

func (e *Experiment) recordTrace(rConfig *experimentRunConfig, trace *Trace) {
	tracesFile := path.Join(rConfig.ReportSavePath, "traces", e.Name+"_"+strconv.Itoa(rConfig.CurrentRun)+".jsonl")
	bs, err := json.Marshal(trace)
	if err != nil {
		log.Error().Err(err).Str("experiment", e.Name).Msg("failed to marshal trace")
		return
	}

	if err := util.AppendToFile(tracesFile, string(bs)); err != nil {
		log.Error().Err(err).Str("file", tracesFile).Msg("failed to record trace")
	}
}

func (e *Experiment) progress(rConfig *experimentRunConfig, stats *ExperimentStats, final bool) {
	availableTimesteps := rConfig.Episodes * rConfig.Horizon
	EPPadding := len(strconv.Itoa(rConfig.Episodes))
	line := fmt.Sprintf("Exp:%*s, Run:%d, TSteps:%d/%d || Eps:%*d/%d, Valid:%*d, TOut:%*d, Err:%*d || Horizon:%*d, Terminal:%*d || AvgReward:%10.2f",
		rConfig.LongestExpNameLen, e.Name, rConfig.CurrentRun, stats.Timesteps, availableTimesteps,
		EPPadding, stats.Episodes, rConfig.Episodes, EPPadding, stats.ValidEpisodes, EPPadding, stats.TimedOut, EPPadding, stats.Errored,
		EPPadding, stats.HorizonReached, EPPadding, stats.Terminal, stats.AvgEpisodeReward)
	if rConfig.Output != nil {
		if final {
			rConfig.Output.Set(line)
		} else {
			rConfig.Output.TrySet(line)
		}
		return
	}
	fmt.Printf("\r%s", line)
}

// Run the experiment for the specified number of episodes
// Each trace is passed to the analyzers, even if the episode timed out or ended with an error
func (e *Experiment) Run(rConfig *experimentRunConfig) *ExperimentStats {
	stats := &ExperimentStats{}
	select {
	case <-rConfig.Context.Done():
		return stats
	default:
	}

	consecutiveTimeouts := 0
	consecutiveErrors := 0

	agent := NewAgent(&AgentConfig{
		Episodes:    rConfig.Episodes,
		Horizon:     rConfig.Horizon,
		Policy:      e.policy,
		Environment: e.environment,
	})

	e.progress(rConfig, stats, false)
	for episode := 0; episode < rConfig.Episodes; episode++ {
		select {
		case <-rConfig.Context.Done():
			return stats
		default:
		}

		eCtx := NewEpisodeContext(rConfig.Context, rConfig.Timeout)
		eCtx.Run = rConfig.CurrentRun
		eCtx.Episode = episode
		eCtx.ExperimentName = e.Name
		eCtx.StartTimeStep = stats.Timesteps

		e.runEpisode(eCtx, agent)

		stats.Timesteps += eCtx.Timesteps
		stats.Episodes += 1

		// possible outcomes of the episode
		if eCtx.TimedOut {
			stats.TimedOut += 1
			consecutiveTimeouts += 1
		} else {
			consecutiveTimeouts = 0
		}

		if eCtx.Err != nil {
			stats.Errored += 1
			stats.LastError = eCtx.Err.Error()
			consecutiveErrors += 1
			log.Debug().Err(eCtx.Err).Str("experiment", e.Name).Int("episode", episode).Msg("episode failed")
		} else {
			consecutiveErrors = 0
		}

		if rConfig.RecordTraces {
			e.recordTrace(rConfig, eCtx.Trace)
		}

		for _, a := range rConfig.Analyzers {
			a.Analyze(rConfig.CurrentRun, episode, eCtx.StartTimeStep, e.Name, eCtx.Trace)
		}

		if !eCtx.TimedOut && eCtx.Err == nil {
			stats.ValidEpisodes += 1
			stats.ValidTimesteps += eCtx.Timesteps
			stats.TotalReward += eCtx.Trace.TotalReward()
			stats.AvgEpisodeReward = stats.TotalReward / float64(stats.ValidEpisodes)
			if eCtx.Terminal {
				stats.Terminal += 1
			} else if eCtx.HorizonEnd {
				stats.HorizonReached += 1
			}
		}

		// check to eventually abort the experiment
		if consecutiveTimeouts >= rConfig.ConsecutiveTimeoutsAbort {
			log.Warn().Str("experiment", e.Name).Int("timeouts", consecutiveTimeouts).Msg("aborting experiment after consecutive timeouts")
			stats.Aborted = true
			break
		}
		if consecutiveErrors >= rConfig.ConsecutiveErrorsAbort {
			log.Warn().Str("experiment", e.Name).Int("errors", consecutiveErrors).Str("last_error", stats.LastError).Msg("aborting experiment after consecutive errors")
			stats.Aborted = true
			break
		}

		e.progress(rConfig, stats, false)
	}
	e.progress(rConfig, stats, true)
	if rConfig.Output == nil {
		fmt.Println("")
	}

	if rConfig.RecordPolicy {
		if recorder, ok := e.policy.(PolicyRecorder); ok {
			policyPath := path.Join(rConfig.ReportSavePath, "policies", e.Name+"_"+strconv.Itoa(rConfig.CurrentRun))
			if err := recorder.Record(policyPath); err != nil {
				log.Error().Err(err).Str("experiment", e.Name).Msg("failed to record policy")
			}
		}
	}
	return stats
}

func (e *Experiment) runEpisode(eCtx *EpisodeContext, agent *Agent) {
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				eCtx.SetError(fmt.Errorf("%v", r))
			}
		}()
		start := time.Now()
		agent.RunEpisode(eCtx)
		eCtx.RunDuration = time.Since(start)
	}()

	select {
	case <-eCtx.Context.Done():
		// Timeout occurred
		if deadline, ok := eCtx.Context.Deadline(); ok && time.Now().After(deadline) {
			eCtx.SetTimedOut()
		}
		<-done
	case <-done:
	}
	eCtx.Cancel()
}

// Reset cleans the information learnt by the policy
func (e *Experiment) Reset() {
	e.policy.Reset()
}

// Generic Dataset that contains information after processing the traces
type DataSet interface{}

// Analyzer compresses the information in the traces to a DataSet
type Analyzer interface {
	// Run, episode, starting timestep, experiment, trace
	Analyze(int, int, int, string, *Trace)
	// Resulting dataset
	DataSet() DataSet
	// Reset the analyzer
	Reset()
}

// Comparator differentiates between different datasets with associated names
// run, total episodes, experiment names, datasets
type Comparator func(int, int, []string, []DataSet)

func NoopComparator() Comparator {
	return func(i, _ int, s []string, ds []DataSet) {}
}

// ComparisonConfig contains the configuration for the comparison
type ComparisonConfig struct {
	Runs     int // number of runs
	Episodes int // number of episodes
	Horizon  int // number of steps

	RecordPath string        // path to store the results
	Timeout    time.Duration // timeout for each episode

	// thresholds to abort the experiment
	ConsecutiveTimeoutsAbort int
	ConsecutiveErrorsAbort   int

	// record flags
	RecordTraces bool
	RecordPolicy bool

	// remove previous results from RecordPath
	Clean bool
}

// record the configuration of the comparison
func (c *Comparison) recordConfig() error {
	cfg := c.cConfig

	out := make(map[string]interface{})
	out["runs"] = cfg.Runs
	out["episodes"] = cfg.Episodes
	out["horizon"] = cfg.Horizon
	out["record_traces"] = cfg.RecordTraces
	out["record_policy"] = cfg.RecordPolicy
	if cfg.Timeout != 0 {
		out["timeout"] = cfg.Timeout.String()
	}

	experiments := make([]string, 0)
	for _, e := range c.Experiments {
		experiments = append(experiments, e.Name)
	}
	out["experiments"] = experiments

	analyzers := make([]string, 0)
	for name := range c.analyzers {
		analyzers = append(analyzers, name)
	}
	out["analyzers"] = analyzers

	return util.SaveJson(path.Join(cfg.RecordPath, "comparison_config.json"), out)
}

// Comparison contains the different experiments to compare
// The traces obtained from the experiments are analyzed
// The analyzed datasets are then compared
type Comparison struct {
	Experiments []*Experiment
	analyzers   map[string]Analyzer
	comparators map[string]Comparator
	cConfig     *ComparisonConfig

	// stats of the last run keyed by experiment name
	Stats map[string]*ExperimentStats
}

// NewComparison creates a comparison instance and the folders to record into
func NewComparison(config *ComparisonConfig) *Comparison {
	prepareRecordPath(config)
	return &Comparison{
		Experiments: make([]*Experiment, 0),
		analyzers:   make(map[string]Analyzer),
		comparators: make(map[string]Comparator),
		cConfig:     config,
		Stats:       make(map[string]*ExperimentStats),
	}
}

func prepareRecordPath(config *ComparisonConfig) {
	if _, err := os.Stat(config.RecordPath); err == nil && config.Clean {
		if err := RemoveContents(config.RecordPath); err != nil {
			log.Error().Err(err).Str("path", config.RecordPath).Msg("failed to clean record folder")
		}
	}
	foldersToCreate := []string{""}
	if config.RecordTraces {
		foldersToCreate = append(foldersToCreate, "traces")
	}
	if config.RecordPolicy {
		foldersToCreate = append(foldersToCreate, "policies")
	}
	for _, s := range foldersToCreate {
		if err := util.EnsureDir(path.Join(config.RecordPath, s)); err != nil {
			log.Error().Err(err).Str("path", config.RecordPath).Msg("failed to create record folder")
		}
	}
}

// AddAnalysis adds an analyzer and comparator to the comparison
func (c *Comparison) AddAnalysis(name string, analyzer Analyzer, comparator Comparator) {
	c.analyzers[name] = analyzer
	c.comparators[name] = comparator
}

// Add experiments to compare
func (c *Comparison) AddExperiment(e *Experiment) {
	c.Experiments = append(c.Experiments, e)
}

// Run the comparison
func (c *Comparison) Run(ctx context.Context) {
	if err := c.recordConfig(); err != nil {
		log.Error().Err(err).Msg("failed to record comparison config")
	}

	longestNameLen := 0
	for _, e := range c.Experiments {
		if len(e.Name) > longestNameLen {
			longestNameLen = len(e.Name)
		}
	}

	for run := 0; run < c.cConfig.Runs; run++ { // number of runs
		log.Info().Int("run", run+1).Int("runs", c.cConfig.Runs).Msg("starting run")
		datasets := make(map[string][]DataSet)

		for name := range c.analyzers {
			datasets[name] = make([]DataSet, len(c.Experiments))
		}

		names := make([]string, len(c.Experiments))
		for i, e := range c.Experiments {
			select {
			case <-ctx.Done():
				return
			default:
			}
			rConfig := c.prepareRunConfig(ctx, run, longestNameLen)
			c.Stats[e.Name] = e.Run(rConfig)
			for name, a := range c.analyzers {
				datasets[name][i] = a.DataSet()
				a.Reset()
			}
			names[i] = e.Name
			e.Reset()
		}
		for name, comp := range c.comparators {
			comp(run, c.cConfig.Episodes, names, datasets[name])
		}
	}
}

// prepare the run configuration for the experiment
func (c *Comparison) prepareRunConfig(ctx context.Context, run int, longestExpNameLen int) *experimentRunConfig {
	rCfg := newRunConfig(ctx, c.cConfig, run, longestExpNameLen)
	for _, a := range c.analyzers {
		rCfg.Analyzers = append(rCfg.Analyzers, a)
	}
	return rCfg
}

func newRunConfig(ctx context.Context, cfg *ComparisonConfig, run int, longestExpNameLen int) *experimentRunConfig {
	rCfg := &experimentRunConfig{
		CurrentRun:               run,
		Episodes:                 cfg.Episodes,
		Horizon:                  cfg.Horizon,
		Analyzers:                make([]Analyzer, 0),
		RecordTraces:             cfg.RecordTraces,
		RecordPolicy:             cfg.RecordPolicy,
		ReportSavePath:           cfg.RecordPath,
		Timeout:                  cfg.Timeout,
		Context:                  ctx,
		ConsecutiveErrorsAbort:   cfg.ConsecutiveErrorsAbort,
		ConsecutiveTimeoutsAbort: cfg.ConsecutiveTimeoutsAbort,

		LongestExpNameLen: longestExpNameLen,
	}

	if rCfg.ConsecutiveErrorsAbort == 0 {
		rCfg.ConsecutiveErrorsAbort = 10
	}
	if rCfg.ConsecutiveTimeoutsAbort == 0 {
		rCfg.ConsecutiveTimeoutsAbort = 10
	}
	return rCfg
}

// RemoveContents deletes everything in the directory
func RemoveContents(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	names, err := d.Readdirnames(-1)
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := os.RemoveAll(path.Join(dir, name)); err != nil {
			return err
		}
	}
	return nil
}
