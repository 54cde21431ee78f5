package cab

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/sbinet/npyio"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/js0n-statham/Cab-Driving-Agent/util"
)

// TimeMatrix holds the travel time in hours indexed [from][to][hour][day]
type TimeMatrix [][][][]float64

// NewTimeMatrix returns a zero matrix sized for the config
func NewTimeMatrix(config Config) TimeMatrix {
	m, t, d := config.Locations, config.HoursPerDay, config.DaysPerWeek
	tm := make(TimeMatrix, m)
	for from := 0; from < m; from++ {
		tm[from] = make([][][]float64, m)
		for to := 0; to < m; to++ {
			tm[from][to] = make([][]float64, t)
			for hour := 0; hour < t; hour++ {
				tm[from][to][hour] = make([]float64, d)
			}
		}
	}
	return tm
}

// Lookup returns the travel time or ErrOutOfRange when any index falls outside the table
func (tm TimeMatrix) Lookup(from, to, hour, day int) (float64, error) {
	if from < 0 || from >= len(tm) {
		return 0, fmt.Errorf("%w: time matrix origin %d", ErrOutOfRange, from)
	}
	if to < 0 || to >= len(tm[from]) {
		return 0, fmt.Errorf("%w: time matrix destination %d", ErrOutOfRange, to)
	}
	if hour < 0 || hour >= len(tm[from][to]) {
		return 0, fmt.Errorf("%w: time matrix hour %d", ErrOutOfRange, hour)
	}
	if day < 0 || day >= len(tm[from][to][hour]) {
		return 0, fmt.Errorf("%w: time matrix day %d", ErrOutOfRange, day)
	}
	return tm[from][to][hour][day], nil
}

// Validate checks the shape against the config and that every entry is finite and not negative
func (tm TimeMatrix) Validate(config Config) error {
	m, t, d := config.Locations, config.HoursPerDay, config.DaysPerWeek
	if len(tm) != m {
		return fmt.Errorf("%w: time matrix has %d origins, expected %d", ErrConfiguration, len(tm), m)
	}
	for from := range tm {
		if len(tm[from]) != m {
			return fmt.Errorf("%w: origin %d has %d destinations, expected %d", ErrConfiguration, from, len(tm[from]), m)
		}
		for to := range tm[from] {
			if len(tm[from][to]) != t {
				return fmt.Errorf("%w: (%d, %d) has %d hours, expected %d", ErrConfiguration, from, to, len(tm[from][to]), t)
			}
			for hour := range tm[from][to] {
				if len(tm[from][to][hour]) != d {
					return fmt.Errorf("%w: (%d, %d, %d) has %d days, expected %d", ErrConfiguration, from, to, hour, len(tm[from][to][hour]), d)
				}
				for day, v := range tm[from][to][hour] {
					if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
						return fmt.Errorf("%w: travel time %f at (%d, %d, %d, %d)", ErrConfiguration, v, from, to, hour, day)
					}
				}
			}
		}
	}
	return nil
}

// Shape returns the dimensions of the matrix
func (tm TimeMatrix) Shape() []int {
	shape := []int{len(tm), 0, 0, 0}
	if len(tm) > 0 {
		shape[1] = len(tm[0])
		if len(tm[0]) > 0 {
			shape[2] = len(tm[0][0])
			if len(tm[0][0]) > 0 {
				shape[3] = len(tm[0][0][0])
			}
		}
	}
	return shape
}

// GenerateTimeMatrix fills a matrix with whole hours drawn uniformly from [1, 11]
// and zero travel time from a location to itself
func GenerateTimeMatrix(config Config, src rand.Source) TimeMatrix {
	tm := NewTimeMatrix(config)
	dist := distuv.Uniform{Min: 1, Max: 12, Src: src}
	for from := range tm {
		for to := range tm[from] {
			if from == to {
				continue
			}
			for hour := range tm[from][to] {
				for day := range tm[from][to][hour] {
					tm[from][to][hour][day] = math.Min(math.Floor(dist.Rand()), 11)
				}
			}
		}
	}
	return tm
}

// LoadTimeMatrix reads a matrix from a numpy .npy file (float64, C order) or a JSON file
func LoadTimeMatrix(path string) (TimeMatrix, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".npy":
		return loadNpy(path)
	case ".json":
		bs, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading time matrix: %w", err)
		}
		tm := TimeMatrix{}
		if err := json.Unmarshal(bs, &tm); err != nil {
			return nil, fmt.Errorf("error decoding time matrix: %w", err)
		}
		return tm, nil
	default:
		return nil, fmt.Errorf("unsupported time matrix format: %s", path)
	}
}

func loadNpy(path string) (TimeMatrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error reading time matrix: %w", err)
	}
	defer f.Close()

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("error reading npy header: %w", err)
	}
	shape := r.Header.Descr.Shape
	if len(shape) != 4 {
		return nil, fmt.Errorf("time matrix must have 4 dimensions, got %v", shape)
	}
	if r.Header.Descr.Fortran {
		return nil, fmt.Errorf("fortran ordered time matrix is not supported")
	}

	data := make([]float64, 0)
	if err := r.Read(&data); err != nil {
		return nil, fmt.Errorf("error reading npy data: %w", err)
	}
	return fromFlat(data, shape)
}

func fromFlat(data []float64, shape []int) (TimeMatrix, error) {
	m, n, t, d := shape[0], shape[1], shape[2], shape[3]
	if len(data) != m*n*t*d {
		return nil, fmt.Errorf("time matrix has %d values, shape %v needs %d", len(data), shape, m*n*t*d)
	}
	tm := make(TimeMatrix, m)
	i := 0
	for from := 0; from < m; from++ {
		tm[from] = make([][][]float64, n)
		for to := 0; to < n; to++ {
			tm[from][to] = make([][]float64, t)
			for hour := 0; hour < t; hour++ {
				tm[from][to][hour] = make([]float64, d)
				copy(tm[from][to][hour], data[i:i+d])
				i += d
			}
		}
	}
	return tm, nil
}

// Save writes the matrix as nested JSON arrays
func (tm TimeMatrix) Save(path string) error {
	return util.SaveJson(path, tm)
}
