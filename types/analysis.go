package types

import (
	"fmt"
	"path"
	"strconv"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/js0n-statham/Cab-Driving-Agent/util"
)

// PureCoverage counts the distinct state hashes seen so far, one point per episode
type PureCoverage struct {
	uniqueStates    map[string]bool
	numUniqueStates []int
}

var _ Analyzer = &PureCoverage{}

func NewPureCoverage() *PureCoverage {
	return &PureCoverage{
		uniqueStates:    make(map[string]bool),
		numUniqueStates: make([]int, 0),
	}
}

func (pc *PureCoverage) Analyze(_, _, _ int, _ string, trace *Trace) {
	for j := 0; j < trace.Len(); j++ {
		s, _, _, _ := trace.Get(j)
		pc.uniqueStates[s.Hash()] = true
	}
	pc.numUniqueStates = append(pc.numUniqueStates, len(pc.uniqueStates))
}

func (pc *PureCoverage) DataSet() DataSet {
	out := make([]int, len(pc.numUniqueStates))
	copy(out, pc.numUniqueStates)
	return out
}

func (pc *PureCoverage) Reset() {
	pc.uniqueStates = make(map[string]bool)
	pc.numUniqueStates = make([]int, 0)
}

type PureCoverageConstructor struct{}

var _ AnalyzerConstructor = PureCoverageConstructor{}

func (PureCoverageConstructor) NewAnalyzer(_ string, _ int) Analyzer {
	return NewPureCoverage()
}

// PureCoveragePlotter draws the coverage curves of all experiments of a run in one plot
func PureCoveragePlotter(plotPath string) Comparator {
	if err := util.EnsureDir(plotPath); err != nil {
		log.Error().Err(err).Str("path", plotPath).Msg("failed to create plot folder")
	}
	return func(run, _ int, names []string, ds []DataSet) {
		p := plot.New()
		p.Title.Text = "Comparison"
		p.X.Label.Text = "Episode"
		p.Y.Label.Text = "States covered"

		coverage := make(map[string]int)
		for i := 0; i < len(names); i++ {
			uniqueStates, ok := ds[i].([]int)
			if !ok || len(uniqueStates) == 0 {
				continue
			}
			points := make(plotter.XYs, len(uniqueStates))
			for j, v := range uniqueStates {
				points[j] = plotter.XY{
					X: float64(j),
					Y: float64(v),
				}
			}
			line, err := plotter.NewLine(points)
			if err != nil {
				continue
			}
			line.Color = plotutil.Color(i)
			p.Add(line)
			p.Legend.Add(names[i], line)
			coverage[names[i]] = uniqueStates[len(uniqueStates)-1]
			log.Info().Str("experiment", names[i]).Int("states", uniqueStates[len(uniqueStates)-1]).Msg("coverage")
		}

		if err := p.Save(8*vg.Inch, 8*vg.Inch, path.Join(plotPath, strconv.Itoa(run)+"_pure_coverage.png")); err != nil {
			log.Error().Err(err).Msg("failed to save coverage plot")
		}
		if err := util.SaveJson(path.Join(plotPath, strconv.Itoa(run)+"_pure_coverage.json"), coverage); err != nil {
			log.Error().Err(err).Msg("failed to save coverage data")
		}
	}
}

// VisitGraphAnalyzer accumulates the transitions of all episodes in a VisitGraph
type VisitGraphAnalyzer struct {
	graph *VisitGraph
}

var _ Analyzer = &VisitGraphAnalyzer{}

func NewVisitGraphAnalyzer() *VisitGraphAnalyzer {
	return &VisitGraphAnalyzer{graph: NewVisitGraph()}
}

func (v *VisitGraphAnalyzer) Analyze(_, _, _ int, _ string, trace *Trace) {
	for j := 0; j < trace.Len(); j++ {
		s, a, ns, _ := trace.Get(j)
		v.graph.Update(s, a.Hash(), ns)
	}
}

func (v *VisitGraphAnalyzer) DataSet() DataSet {
	return v.graph
}

func (v *VisitGraphAnalyzer) Reset() {
	v.graph = NewVisitGraph()
}

type VisitGraphConstructor struct{}

var _ AnalyzerConstructor = VisitGraphConstructor{}

func (VisitGraphConstructor) NewAnalyzer(_ string, _ int) Analyzer {
	return NewVisitGraphAnalyzer()
}

// VisitGraphRecorder writes the visit graph of every experiment to <run>_<name>_visits.json
func VisitGraphRecorder(savePath string) Comparator {
	if err := util.EnsureDir(savePath); err != nil {
		log.Error().Err(err).Str("path", savePath).Msg("failed to create visit graph folder")
	}
	return func(run, _ int, names []string, ds []DataSet) {
		for i, name := range names {
			graph, ok := ds[i].(*VisitGraph)
			if !ok {
				continue
			}
			file := path.Join(savePath, fmt.Sprintf("%d_%s_visits.json", run, name))
			if err := graph.Record(file); err != nil {
				log.Error().Err(err).Str("file", file).Msg("failed to record visit graph")
			}
		}
	}
}
