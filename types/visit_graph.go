package types

import "github.com/js0n-statham/Cab-Driving-Agent/util"

// VisitGraph is the graph of observed transitions keyed by state hash
type VisitGraph struct {
	Nodes map[string]*Node `json:"nodes"`
}

func NewVisitGraph() *VisitGraph {
	return &VisitGraph{
		Nodes: make(map[string]*Node),
	}
}

// Update adds the transition and returns true if from had not been seen before
func (v *VisitGraph) Update(from State, action string, to State) bool {
	fromKey := from.Hash()
	toKey := to.Hash()
	new := false
	if _, ok := v.Nodes[fromKey]; !ok {
		v.Nodes[fromKey] = NewNode(fromKey)
		new = true
	}
	if _, ok := v.Nodes[toKey]; !ok {
		v.Nodes[toKey] = NewNode(toKey)
	}
	v.Nodes[fromKey].Visits += 1
	v.Nodes[fromKey].AddNext(action, toKey)
	v.Nodes[toKey].AddPrev(action, fromKey)
	return new
}

func (v *VisitGraph) GetVisits() map[string]int {
	results := make(map[string]int)
	for k, n := range v.Nodes {
		results[k] = n.Visits
	}
	return results
}

func (v *VisitGraph) Record(filePath string) error {
	return util.SaveJson(filePath, v)
}

type Node struct {
	Key    string `json:"key"`
	Visits int    `json:"visits"`
	// Next, Prev: Each action can lead to many states
	Next map[string]map[string]bool `json:"next"`
	Prev map[string]map[string]bool `json:"prev"`
}

func NewNode(key string) *Node {
	return &Node{
		Key:    key,
		Visits: 0,
		Next:   make(map[string]map[string]bool),
		Prev:   make(map[string]map[string]bool),
	}
}

func (n *Node) AddPrev(a, prev string) {
	if _, ok := n.Prev[a]; !ok {
		n.Prev[a] = make(map[string]bool)
	}
	n.Prev[a][prev] = true
}

func (n *Node) AddNext(a, next string) {
	if _, ok := n.Next[a]; !ok {
		n.Next[a] = make(map[string]bool)
	}
	n.Next[a][next] = true
}
