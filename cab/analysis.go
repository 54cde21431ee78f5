package cab

import (
	"fmt"
	"os"
	"path"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/js0n-statham/Cab-Driving-Agent/types"
	"github.com/js0n-statham/Cab-Driving-Agent/util"
)

func stateOf(s types.State) (State, bool) {
	obs, ok := s.(*Observation)
	if !ok {
		return State{}, false
	}
	return obs.State, true
}

// RewardDataSet holds one entry per episode
type RewardDataSet struct {
	Rewards  []float64 `json:"rewards"`
	Rides    []int     `json:"rides"`
	Refusals []int     `json:"refusals"`
}

func newRewardDataSet() *RewardDataSet {
	return &RewardDataSet{
		Rewards:  make([]float64, 0),
		Rides:    make([]int, 0),
		Refusals: make([]int, 0),
	}
}

// RewardAnalyzer records the total reward and the accepted and refused requests of every episode
type RewardAnalyzer struct {
	dataSet *RewardDataSet
}

var _ types.Analyzer = &RewardAnalyzer{}

func NewRewardAnalyzer() *RewardAnalyzer {
	return &RewardAnalyzer{dataSet: newRewardDataSet()}
}

func (r *RewardAnalyzer) Analyze(_, _, _ int, _ string, trace *types.Trace) {
	rides, refusals := 0, 0
	for i := 0; i < trace.Len(); i++ {
		_, a, _, _ := trace.Get(i)
		if action, ok := a.(Action); ok && action.IsRefuse() {
			refusals += 1
		} else {
			rides += 1
		}
	}
	r.dataSet.Rewards = append(r.dataSet.Rewards, trace.TotalReward())
	r.dataSet.Rides = append(r.dataSet.Rides, rides)
	r.dataSet.Refusals = append(r.dataSet.Refusals, refusals)
}

func (r *RewardAnalyzer) DataSet() types.DataSet {
	out := newRewardDataSet()
	out.Rewards = append(out.Rewards, r.dataSet.Rewards...)
	out.Rides = append(out.Rides, r.dataSet.Rides...)
	out.Refusals = append(out.Refusals, r.dataSet.Refusals...)
	return out
}

func (r *RewardAnalyzer) Reset() {
	r.dataSet = newRewardDataSet()
}

type RewardAnalyzerConstructor struct{}

var _ types.AnalyzerConstructor = RewardAnalyzerConstructor{}

func (RewardAnalyzerConstructor) NewAnalyzer(_ string, _ int) types.Analyzer {
	return NewRewardAnalyzer()
}

// RewardComparator saves for every run a png and an html chart of the episode rewards
// along with the raw datasets as json
func RewardComparator(savePath string) types.Comparator {
	if err := util.EnsureDir(savePath); err != nil {
		log.Error().Err(err).Str("path", savePath).Msg("failed to create reward folder")
	}
	return func(run, episodes int, names []string, ds []types.DataSet) {
		dataSets := make(map[string]*RewardDataSet)
		for i, name := range names {
			if d, ok := ds[i].(*RewardDataSet); ok {
				dataSets[name] = d
			}
		}
		prefix := path.Join(savePath, strconv.Itoa(run)+"_rewards")

		if err := util.SaveJson(prefix+".json", dataSets); err != nil {
			log.Error().Err(err).Msg("failed to save reward data")
		}
		if err := plotRewards(prefix+".png", names, dataSets); err != nil {
			log.Error().Err(err).Msg("failed to save reward plot")
		}
		if err := chartRewards(prefix+".html", run, episodes, names, dataSets); err != nil {
			log.Error().Err(err).Msg("failed to save reward chart")
		}
	}
}

func plotRewards(file string, names []string, dataSets map[string]*RewardDataSet) error {
	p := plot.New()
	p.Title.Text = "Episode reward"
	p.X.Label.Text = "Episode"
	p.Y.Label.Text = "Reward"

	for i, name := range names {
		d, ok := dataSets[name]
		if !ok || len(d.Rewards) == 0 {
			continue
		}
		points := make(plotter.XYs, len(d.Rewards))
		for j, v := range d.Rewards {
			points[j] = plotter.XY{X: float64(j), Y: v}
		}
		line, err := plotter.NewLine(points)
		if err != nil {
			continue
		}
		line.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(name, line)
	}
	return p.Save(8*vg.Inch, 6*vg.Inch, file)
}

func chartRewards(file string, run, episodes int, names []string, dataSets map[string]*RewardDataSet) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: fmt.Sprintf("Episode reward, run %d", run),
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Episode"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Reward"}),
	)

	episodeLabels := make([]string, episodes)
	for i := range episodeLabels {
		episodeLabels[i] = strconv.Itoa(i)
	}
	line = line.SetXAxis(episodeLabels)
	for _, name := range names {
		d, ok := dataSets[name]
		if !ok {
			continue
		}
		items := make([]opts.LineData, 0, len(d.Rewards))
		for _, v := range d.Rewards {
			items = append(items, opts.LineData{Value: v})
		}
		line.AddSeries(name, items)
	}

	page := components.NewPage()
	page.AddCharts(line)

	f, err := os.Create(file)
	if err != nil {
		return err
	}
	defer f.Close()
	return page.Render(f)
}

// LocationDataSet counts the visits to every (location, hour), it is a plotter.GridXYZ
// with hours along the x axis and locations along the y axis
type LocationDataSet struct {
	Visits [][]int `json:"visits"`
}

var _ plotter.GridXYZ = &LocationDataSet{}

func NewLocationDataSet(locations, hours int) *LocationDataSet {
	visits := make([][]int, locations)
	for i := range visits {
		visits[i] = make([]int, hours)
	}
	return &LocationDataSet{Visits: visits}
}

func (l *LocationDataSet) Dims() (int, int) {
	if len(l.Visits) == 0 {
		return 0, 0
	}
	return len(l.Visits[0]), len(l.Visits)
}

func (l *LocationDataSet) Z(c, r int) float64 {
	return float64(l.Visits[r][c])
}

func (l *LocationDataSet) X(c int) float64 {
	return float64(c)
}

func (l *LocationDataSet) Y(r int) float64 {
	return float64(r)
}

func (l *LocationDataSet) Min() float64 {
	min := -1
	for _, hours := range l.Visits {
		for _, count := range hours {
			if min == -1 || count < min {
				min = count
			}
		}
	}
	if min < 0 {
		return 0
	}
	return float64(min)
}

func (l *LocationDataSet) Max() float64 {
	max := 0
	for _, hours := range l.Visits {
		for _, count := range hours {
			if count > max {
				max = count
			}
		}
	}
	return float64(max)
}

func (l *LocationDataSet) Total() int {
	total := 0
	for _, hours := range l.Visits {
		for _, count := range hours {
			total += count
		}
	}
	return total
}

// LocationAnalyzer counts in which location and at which hour the driver takes decisions
type LocationAnalyzer struct {
	locations int
	hours     int
	dataSet   *LocationDataSet
}

var _ types.Analyzer = &LocationAnalyzer{}

func NewLocationAnalyzer(config Config) *LocationAnalyzer {
	return &LocationAnalyzer{
		locations: config.Locations,
		hours:     config.HoursPerDay,
		dataSet:   NewLocationDataSet(config.Locations, config.HoursPerDay),
	}
}

func (l *LocationAnalyzer) Analyze(_, _, _ int, _ string, trace *types.Trace) {
	for i := 0; i < trace.Len(); i++ {
		s, _, _, _ := trace.Get(i)
		state, ok := stateOf(s)
		if !ok {
			continue
		}
		if state.Location < 0 || state.Location >= l.locations || state.Hour < 0 || state.Hour >= l.hours {
			continue
		}
		l.dataSet.Visits[state.Location][state.Hour] += 1
	}
}

func (l *LocationAnalyzer) DataSet() types.DataSet {
	out := NewLocationDataSet(l.locations, l.hours)
	for loc := range l.dataSet.Visits {
		copy(out.Visits[loc], l.dataSet.Visits[loc])
	}
	return out
}

func (l *LocationAnalyzer) Reset() {
	l.dataSet = NewLocationDataSet(l.locations, l.hours)
}

type LocationAnalyzerConstructor struct {
	Config Config
}

var _ types.AnalyzerConstructor = LocationAnalyzerConstructor{}

func (c LocationAnalyzerConstructor) NewAnalyzer(_ string, _ int) types.Analyzer {
	return NewLocationAnalyzer(c.Config)
}

// LocationHeatMapComparator saves a heat map of the visits for every experiment
func LocationHeatMapComparator(savePath string) types.Comparator {
	if err := util.EnsureDir(savePath); err != nil {
		log.Error().Err(err).Str("path", savePath).Msg("failed to create heat map folder")
	}
	return func(run, _ int, names []string, ds []types.DataSet) {
		for i, name := range names {
			dataSet, ok := ds[i].(*LocationDataSet)
			if !ok {
				continue
			}
			file := path.Join(savePath, fmt.Sprintf("%d_%s_locations", run, name))
			if err := util.SaveJson(file+".json", dataSet); err != nil {
				log.Error().Err(err).Str("experiment", name).Msg("failed to save location data")
			}
			// a flat grid has no colour range to map onto
			if dataSet.Max() == dataSet.Min() {
				continue
			}

			p := plot.New()
			p.Title.Text = name
			p.X.Label.Text = "Hour"
			p.Y.Label.Text = "Location"
			p.Add(plotter.NewHeatMap(dataSet, palette.Heat(16, 1)))
			if err := p.Save(8*vg.Inch, 4*vg.Inch, file+".png"); err != nil {
				log.Error().Err(err).Str("experiment", name).Msg("failed to save heat map")
			}
		}
	}
}
