package policies

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/js0n-statham/Cab-Driving-Agent/util"
)

// QTable maps state hash and action hash to a value
type QTable struct {
	table map[string]map[string]float64
}

func NewQTable() *QTable {
	return &QTable{
		table: make(map[string]map[string]float64),
	}
}

// Get returns the value of (state, action), storing def the first time the pair is seen
func (q *QTable) Get(state, action string, def float64) float64 {
	if _, ok := q.table[state]; !ok {
		q.table[state] = make(map[string]float64)
	}
	if _, ok := q.table[state][action]; !ok {
		q.table[state][action] = def
	}
	return q.table[state][action]
}

func (q *QTable) Set(state, action string, val float64) {
	if _, ok := q.table[state]; !ok {
		q.table[state] = make(map[string]float64)
	}
	q.table[state][action] = val
}

func (q *QTable) HasState(state string) bool {
	_, ok := q.table[state]
	return ok
}

// States returns the known state hashes in sorted order
func (q *QTable) States() []string {
	states := make([]string, 0, len(q.table))
	for s := range q.table {
		states = append(states, s)
	}
	sort.Strings(states)
	return states
}

// Actions returns a copy of the values of the state
func (q *QTable) Actions(state string) map[string]float64 {
	out := make(map[string]float64, len(q.table[state]))
	for a, v := range q.table[state] {
		out[a] = v
	}
	return out
}

func (q *QTable) Len() int {
	return len(q.table)
}

// Max returns the best known action of the state, ("", def) if none is known
func (q *QTable) Max(state string, def float64) (string, float64) {
	actions, ok := q.table[state]
	if !ok || len(actions) == 0 {
		return "", def
	}
	maxAction := ""
	maxVal := math.Inf(-1)
	for a, val := range actions {
		// ties resolve to the smallest hash so the result does not depend on map order
		if val > maxVal || (val == maxVal && a < maxAction) {
			maxAction = a
			maxVal = val
		}
	}
	return maxAction, maxVal
}

// MaxAmong returns the best of the given actions, unseen actions count as def.
// Ties are broken by tieBreak when it is not nil, otherwise the first action wins.
func (q *QTable) MaxAmong(state string, actions []string, def float64, tieBreak func(int) int) (string, float64) {
	if len(actions) == 0 {
		return "", def
	}
	best := make([]string, 0, 1)
	maxVal := math.Inf(-1)
	for _, a := range actions {
		val := q.Get(state, a, def)
		switch {
		case val > maxVal:
			maxVal = val
			best = append(best[:0], a)
		case val == maxVal:
			best = append(best, a)
		}
	}
	if tieBreak != nil && len(best) > 1 {
		return best[tieBreak(len(best))], maxVal
	}
	return best[0], maxVal
}

type qTableEntry struct {
	State   string             `json:"state"`
	Actions map[string]float64 `json:"actions"`
}

// Record writes one json line per state
func (q *QTable) Record(path string) error {
	if err := util.WriteToFile(path); err != nil {
		return err
	}
	for _, state := range q.States() {
		bs, err := json.Marshal(qTableEntry{State: state, Actions: q.table[state]})
		if err != nil {
			return err
		}
		if err := util.AppendToFile(path, string(bs)); err != nil {
			return err
		}
	}
	return nil
}

// ReadQTable loads a table written by Record
func ReadQTable(path string) (*QTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	q := NewQTable()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line += 1
		if len(scanner.Bytes()) == 0 {
			continue
		}
		entry := qTableEntry{}
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return nil, fmt.Errorf("line %d of %s: %w", line, path, err)
		}
		for a, v := range entry.Actions {
			q.Set(entry.State, a, v)
		}
	}
	return q, scanner.Err()
}
