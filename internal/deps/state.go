package deps

import (
	"errors"
	"io"
	"sort"

	"github.com/apex/log"
	"github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"
)

type visit int

const (
	inProgress visit = iota + 1
	done
	failed
)

// Failure is one tool or copy failure that did not stop the run
type Failure struct {
	Op    string `yaml:"op"`
	Path  string `yaml:"path"`
	Error string `yaml:"error"`
}

// Summary counts what a run did
type Summary struct {
	Roots     int       `yaml:"roots"`
	Libraries int       `yaml:"libraries"`
	Copied    int       `yaml:"copied"`
	Bytes     int64     `yaml:"bytes"`
	Rewrites  int       `yaml:"rewrites"`
	Skipped   int       `yaml:"skipped"`
	Warnings  int       `yaml:"warnings"`
	Failures  []Failure `yaml:"failures,omitempty"`
}

// State is threaded through a walk. Visited is keyed by local library name and only
// ever grows; an object is marked before its dependencies are walked. A library that
// could not be copied or inspected stays marked as failed so later references to it
// are left alone.
type State struct {
	Visited map[string]visit
	Graph   graph.Graph[string, string]
	Summary Summary
}

// NewState returns an empty walk state
func NewState() *State {
	return &State{
		Visited: make(map[string]visit),
		Graph:   graph.New(graph.StringHash, graph.Directed()),
	}
}

func (s *State) fail(op, path string, err error) {
	s.Summary.Failures = append(s.Summary.Failures, Failure{Op: op, Path: path, Error: err.Error()})
}

func (s *State) addVertex(name string, root bool) {
	var opts []func(*graph.VertexProperties)
	if root {
		opts = append(opts, graph.VertexAttribute("shape", "box"))
	}
	if err := s.Graph.AddVertex(name, opts...); err != nil && !errors.Is(err, graph.ErrVertexAlreadyExists) {
		log.WithError(err).Debugf("failed to add %s to dependency graph", name)
	}
}

func (s *State) addEdge(from, to string) {
	s.addVertex(to, false)
	if err := s.Graph.AddEdge(from, to); err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
		log.WithError(err).Debugf("failed to add %s -> %s to dependency graph", from, to)
	}
}

// Dependents maps every library in the graph to the sorted local names of the objects
// that load it. Roots, which nothing loads, are left out.
func (s *State) Dependents() (map[string][]string, error) {
	pm, err := s.Graph.PredecessorMap()
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string)
	for name, edges := range pm {
		if len(edges) == 0 {
			continue
		}
		for from := range edges {
			out[name] = append(out[name], from)
		}
		sort.Strings(out[name])
	}
	return out, nil
}

// WriteDOT writes the dependency graph in graphviz format
func (s *State) WriteDOT(w io.Writer) error {
	return draw.DOT(s.Graph, w)
}
