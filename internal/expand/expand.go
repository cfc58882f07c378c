// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package expand grows a seed set into a bounded subgraph by frontier-based
// breadth-first traversal.
package expand

import (
	"fmt"
	"sort"

	"github.com/pdiddy/hypothesis-engine/internal/graph"
	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

// StopReason records which rule ended an expansion.
type StopReason string

const (
	// StopThreshold means both size thresholds were reached.
	StopThreshold StopReason = "threshold"

	// StopHopLimit means the hop bound was reached first.
	StopHopLimit StopReason = "hop_limit"

	// StopExhausted means the frontier emptied before any other rule fired.
	StopExhausted StopReason = "exhausted"
)

// Subgraph is the result of one expansion. It references the graph it was
// expanded from and never copies graph content.
type Subgraph struct {
	g *graph.Graph

	// Seed holds the seed ERE ids, ascending.
	Seed []string

	// EREs holds every included ERE id, ascending.
	EREs []string

	// Statements holds every included statement id, ordered by discovery
	// hop then id.
	Statements []string

	// EREHop and StatementHop record the hop at which each element was
	// first reached. Seed EREs are at hop 0.
	EREHop       map[string]int
	StatementHop map[string]int

	// Hops is the number of completed hops.
	Hops int
	Stop StopReason
}

// Graph returns the graph the subgraph was expanded from.
func (s *Subgraph) Graph() *graph.Graph { return s.g }

// NumEREs returns the number of included EREs.
func (s *Subgraph) NumEREs() int { return len(s.EREs) }

// NumStatements returns the number of included statements.
func (s *Subgraph) NumStatements() int { return len(s.Statements) }

// Empty reports whether the subgraph has no EREs.
func (s *Subgraph) Empty() bool { return len(s.EREs) == 0 }

// HasERE reports whether id is part of the subgraph.
func (s *Subgraph) HasERE(id string) bool {
	_, ok := s.EREHop[id]
	return ok
}

// HasStatement reports whether id is part of the subgraph.
func (s *Subgraph) HasStatement(id string) bool {
	_, ok := s.StatementHop[id]
	return ok
}

// Options bounds an expansion.
type Options struct {
	MaxHops     int
	MinEREs     int
	MinStmts    int
	AttachTypes bool
}

// OptionsFrom converts the engine's expansion settings.
func OptionsFrom(cfg types.ExpansionConfig) Options {
	return Options{
		MaxHops:     cfg.MaxHops,
		MinEREs:     cfg.MinEREs,
		MinStmts:    cfg.MinStmts,
		AttachTypes: cfg.AttachTypes,
	}
}

// Expand runs breadth-first expansion from seed. Each hop explores every
// unexplored statement incident to the current frontier, visiting frontier
// EREs in ascending id order and their statements in ascending id order;
// newly reached EREs form the next frontier.
//
// After each hop the stop rules are checked in order: both thresholds met
// (StopThreshold), MaxHops reached (StopHopLimit), frontier empty
// (StopExhausted). An empty seed yields an empty subgraph. An unknown seed
// id fails with a *graph.NotFoundError.
func Expand(g *graph.Graph, seed []string, opts Options) (*Subgraph, error) {
	sub := &Subgraph{
		g:            g,
		EREHop:       make(map[string]int),
		StatementHop: make(map[string]int),
		Stop:         StopExhausted,
	}
	if len(seed) == 0 {
		return sub, nil
	}

	var frontier []string
	for _, id := range seed {
		if _, err := g.ERE(id); err != nil {
			return nil, fmt.Errorf("expanding seed: %w", err)
		}
		if _, dup := sub.EREHop[id]; dup {
			continue
		}
		sub.EREHop[id] = 0
		frontier = append(frontier, id)
	}
	sort.Strings(frontier)
	sub.Seed = append([]string(nil), frontier...)

	if opts.MaxHops <= 0 {
		sub.Stop = StopHopLimit
		sub.finish(opts)
		return sub, nil
	}

	for hop := 1; ; hop++ {
		var next []string
		for _, id := range frontier {
			stmts, err := g.Incident(id)
			if err != nil {
				return nil, err
			}
			for _, s := range stmts {
				if _, seen := sub.StatementHop[s.ID]; seen {
					continue
				}
				sub.StatementHop[s.ID] = hop
				for _, end := range endpoints(s) {
					if _, seen := sub.EREHop[end]; seen {
						continue
					}
					sub.EREHop[end] = hop
					next = append(next, end)
				}
			}
		}
		sort.Strings(next)
		frontier = next
		sub.Hops = hop

		if len(sub.EREHop) >= opts.MinEREs && len(sub.StatementHop) >= opts.MinStmts {
			sub.Stop = StopThreshold
			break
		}
		if hop >= opts.MaxHops {
			sub.Stop = StopHopLimit
			break
		}
		if len(frontier) == 0 {
			sub.Stop = StopExhausted
			break
		}
	}

	sub.finish(opts)
	return sub, nil
}

// finish attaches type statements when requested and builds the sorted
// id lists.
func (s *Subgraph) finish(opts Options) {
	if opts.AttachTypes {
		s.attachTypes()
	}

	s.EREs = make([]string, 0, len(s.EREHop))
	for id := range s.EREHop {
		s.EREs = append(s.EREs, id)
	}
	sort.Strings(s.EREs)

	s.Statements = make([]string, 0, len(s.StatementHop))
	for id := range s.StatementHop {
		s.Statements = append(s.Statements, id)
	}
	sort.Slice(s.Statements, func(i, j int) bool {
		a, b := s.Statements[i], s.Statements[j]
		if ha, hb := s.StatementHop[a], s.StatementHop[b]; ha != hb {
			return ha < hb
		}
		return a < b
	})
}

// attachTypes adds the type statements of every included ERE that were not
// reached by traversal. A type statement whose object is a node outside the
// subgraph is skipped so no ERE is added.
func (s *Subgraph) attachTypes() {
	for id, hop := range s.EREHop {
		stmts, err := s.g.Incident(id)
		if err != nil {
			continue
		}
		for _, st := range stmts {
			if !st.IsTypeStatement() || st.Subject != id {
				continue
			}
			if _, seen := s.StatementHop[st.ID]; seen {
				continue
			}
			if st.HasEREObject() && !s.HasERE(st.Object) {
				continue
			}
			s.StatementHop[st.ID] = hop + 1
		}
	}
}

func endpoints(s types.Statement) []string {
	if s.Object == "" || s.Object == s.Subject {
		return []string{s.Subject}
	}
	return []string{s.Subject, s.Object}
}
