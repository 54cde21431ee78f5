package types

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gosuri/uilive"
	"github.com/rs/zerolog/log"
)

// ParallelExperiment builds a fresh environment and policy for every run so that
// experiments can be executed on different goroutines without sharing state
type ParallelExperiment struct {
	Name        string
	Environment EnvironmentConstructor
	Policy      PolicyConstructor
}

// AnalyzerConstructor creates an analyzer for one experiment instance
type AnalyzerConstructor interface {
	// new analyzer based on experiment name and instance
	NewAnalyzer(string, int) Analyzer
}

// ParallelComparison runs the experiments of a run concurrently
type ParallelComparison struct {
	Experiments []*ParallelExperiment
	analyzers   map[string]AnalyzerConstructor
	comparators map[string]Comparator
	cConfig     *ComparisonConfig
	parallelism int

	lock  *sync.Mutex
	Stats map[string]*ExperimentStats
}

func NewParallelComparison(config *ComparisonConfig, parallelism int) *ParallelComparison {
	prepareRecordPath(config)
	if parallelism < 1 {
		parallelism = 1
	}
	return &ParallelComparison{
		Experiments: make([]*ParallelExperiment, 0),
		analyzers:   make(map[string]AnalyzerConstructor),
		comparators: make(map[string]Comparator),
		cConfig:     config,
		parallelism: parallelism,
		lock:        new(sync.Mutex),
		Stats:       make(map[string]*ExperimentStats),
	}
}

func (c *ParallelComparison) AddExperiment(e *ParallelExperiment) {
	c.Experiments = append(c.Experiments, e)
}

func (c *ParallelComparison) AddAnalysis(name string, a AnalyzerConstructor, cmp Comparator) {
	c.analyzers[name] = a
	c.comparators[name] = cmp
}

// parallelWork is a struct that contains all the information needed to run an experiment
type parallelWork struct {
	index      int
	instance   int // distinct across runs, every run gets its own environment
	experiment *ParallelExperiment
	run        int
	output     *ParallelOutput
}

type parallelResult struct {
	index    int
	stats    *ExperimentStats
	datasets map[string]DataSet
}

func (c *ParallelComparison) runWork(ctx context.Context, work *parallelWork, longestNameLen int) *parallelResult {
	rConfig := newRunConfig(ctx, c.cConfig, work.run, longestNameLen)
	rConfig.Output = work.output

	analyzers := make(map[string]Analyzer)
	for name, aC := range c.analyzers {
		analyzers[name] = aC.NewAnalyzer(work.experiment.Name, work.index)
		rConfig.Analyzers = append(rConfig.Analyzers, analyzers[name])
	}

	exp := NewExperiment(
		work.experiment.Name,
		work.experiment.Policy.NewPolicy(),
		work.experiment.Environment.NewEnvironment(work.instance),
	)
	stats := exp.Run(rConfig)

	result := &parallelResult{
		index:    work.index,
		stats:    stats,
		datasets: make(map[string]DataSet),
	}
	for name, a := range analyzers {
		result.datasets[name] = a.DataSet()
	}
	return result
}

// Run executes every run with at most parallelism experiments at a time
func (c *ParallelComparison) Run(ctx context.Context) {
	longestNameLen := 0
	for _, e := range c.Experiments {
		if len(e.Name) > longestNameLen {
			longestNameLen = len(e.Name)
		}
	}

	for run := 0; run < c.cConfig.Runs; run++ {
		select {
		case <-ctx.Done():
			return
		default:
		}
		log.Info().Int("run", run+1).Int("runs", c.cConfig.Runs).Int("parallelism", c.parallelism).Msg("starting parallel run")

		outputs := make([]*ParallelOutput, len(c.Experiments))
		for i := range outputs {
			outputs[i] = NewParallelOutput()
		}
		printer := NewTerminalPrinter(ctx, outputs, time.Second)
		printer.Start()

		workCh := make(chan *parallelWork)
		resultsCh := make(chan *parallelResult, len(c.Experiments))
		wg := new(sync.WaitGroup)
		for w := 0; w < c.parallelism; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for work := range workCh {
					resultsCh <- c.runWork(ctx, work, longestNameLen)
				}
			}()
		}

	WorkLoop:
		for i, e := range c.Experiments {
			select {
			case <-ctx.Done():
				break WorkLoop
			case workCh <- &parallelWork{
				index:      i,
				instance:   run*len(c.Experiments) + i,
				experiment: e,
				run:        run,
				output:     outputs[i],
			}:
			}
		}
		close(workCh)
		wg.Wait()
		close(resultsCh)
		printer.Stop()

		names := make([]string, len(c.Experiments))
		for i, e := range c.Experiments {
			names[i] = e.Name
		}
		datasets := make(map[string][]DataSet)
		for name := range c.analyzers {
			datasets[name] = make([]DataSet, len(c.Experiments))
		}
		for result := range resultsCh {
			c.lock.Lock()
			c.Stats[names[result.index]] = result.stats
			c.lock.Unlock()
			for name, ds := range result.datasets {
				datasets[name][result.index] = ds
			}
		}

		select {
		case <-ctx.Done():
			return
		default:
		}
		for name, comp := range c.comparators {
			comp(run, c.cConfig.Episodes, names, datasets[name])
		}
	}
}

// TERMINAL PRINTER

type TerminalPrinter struct {
	parallelOutputs []*ParallelOutput
	ctx             context.Context
	printerCtx      context.Context
	printerCancel   context.CancelFunc
	frequency       time.Duration
	done            chan struct{}

	writer  *uilive.Writer
	writers []io.Writer
}

func NewTerminalPrinter(ctx context.Context, parallelOutputs []*ParallelOutput, frequency time.Duration) *TerminalPrinter {
	printerCtx, cancel := context.WithCancel(ctx)
	writer := uilive.New()
	writers := make([]io.Writer, len(parallelOutputs))
	for i := range parallelOutputs {
		if i == 0 {
			writers[i] = writer
			continue
		}
		writers[i] = writer.Newline()
	}

	return &TerminalPrinter{
		parallelOutputs: parallelOutputs,
		ctx:             ctx,
		printerCtx:      printerCtx,
		printerCancel:   cancel,
		frequency:       frequency,
		done:            make(chan struct{}),

		writer:  writer,
		writers: writers,
	}
}

func (p *TerminalPrinter) Start() {
	p.writer.Start()
	go func() {
		defer close(p.done)
		for {
			select {
			case <-p.printerCtx.Done():
				p.print()
				p.writer.Stop()
				return
			case <-time.After(p.frequency):
				p.print()
			}
		}
	}()
}

// Stop prints the outputs one last time and waits for the printer to exit
func (p *TerminalPrinter) Stop() {
	p.printerCancel()
	<-p.done
}

func (p *TerminalPrinter) print() {
	for i, output := range p.parallelOutputs {
		fmt.Fprint(p.writers[i], output.Get()+"\n")
	}
	p.writer.Flush()
}

// PARALLEL OUTPUT

// used to update and print experiment outputs
type ParallelOutput struct {
	mu        sync.Mutex
	printable string
}

func NewParallelOutput() *ParallelOutput {
	return &ParallelOutput{
		printable: "Pending",
	}
}

// Set the output string (blocking)
func (p *ParallelOutput) Set(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.printable = s
}

// Try to set the output string (non-blocking)
func (p *ParallelOutput) TrySet(s string) bool {
	success := p.mu.TryLock()
	if success {
		defer p.mu.Unlock()
		p.printable = s
		return true
	}
	return false
}

// Get the output string (blocking)
func (p *ParallelOutput) Get() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.printable
}
