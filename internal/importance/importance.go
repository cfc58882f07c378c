// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package importance turns a ranked hypothesis set into importance weights
// for the hypothesis, its statements, and the event and relation nodes it
// touches, and renders them as SPARQL update files for a triple store.
package importance

import (
	"fmt"
	"math"
	"sort"

	"github.com/pdiddy/hypothesis-engine/internal/graph"
	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

// DefaultHopDecay is the hop distance over which statement importance
// falls by a factor of e.
const DefaultHopDecay = 2.0

// Options tunes the weights.
type Options struct {
	// HopDecay scales statement decay with expansion hop (0 = default).
	HopDecay float64

	// Prototypes maps coreferent ERE ids to their cluster prototype. Set it
	// when the graph was not compressed; see Prototypes.
	Prototypes map[string]string
}

func (o Options) hopDecay() float64 {
	if o.HopDecay <= 0 {
		return DefaultHopDecay
	}
	return o.HopDecay
}

// StatementWeight is the importance of one non-type statement.
type StatementWeight struct {
	Statement  types.Statement
	Importance float64
}

// NodeWeight is the importance of one event or relation node.
type NodeWeight struct {
	ID         string
	Importance float64
}

// Weights holds the importance values for one hypothesis.
type Weights struct {
	Hypothesis float64
	Statements []StatementWeight
	Nodes      []NodeWeight
}

// HypothesisImportance returns exp((score-best)/2). best is the top score
// of the set, so the leading hypothesis weighs 1.
func HypothesisImportance(score, best float64) float64 {
	return math.Exp((score - best) / 2)
}

// StatementImportance returns exp(-hop/decay) scaled by confidence, where
// an unspecified confidence counts as 1.
func StatementImportance(hop int, confidence, decay float64) float64 {
	if confidence <= 0 {
		confidence = 1
	}
	return math.Exp(-float64(hop)/decay) * confidence
}

// Compute weighs h against the graph it was generated from. Node weights
// are the maximum statement weight over statements whose subject is an
// event or relation, keyed by the subject's prototype from opts.Prototypes
// or by the subject id itself.
func Compute(g *graph.Graph, h types.Hypothesis, best float64, opts Options) (Weights, error) {
	w := Weights{Hypothesis: HypothesisImportance(h.Score, best)}
	decay := opts.hopDecay()
	nodes := make(map[string]float64)

	for i, id := range h.Statements {
		s, err := g.Statement(id)
		if err != nil {
			return Weights{}, fmt.Errorf("hypothesis %d: %w", h.Rank, err)
		}
		hop := 0
		if i < len(h.StatementHops) {
			hop = h.StatementHops[i]
		}
		imp := StatementImportance(hop, s.Confidence, decay)
		if !s.IsTypeStatement() {
			w.Statements = append(w.Statements, StatementWeight{Statement: s, Importance: imp})
		}

		subj, err := g.ERE(s.Subject)
		if err != nil {
			return Weights{}, fmt.Errorf("hypothesis %d statement %s: %w", h.Rank, id, err)
		}
		if subj.Category != types.CategoryEvent && subj.Category != types.CategoryRelation {
			continue
		}
		proto := subj.ID
		if p, ok := opts.Prototypes[proto]; ok {
			proto = p
		}
		if cur, seen := nodes[proto]; !seen || imp > cur {
			nodes[proto] = imp
		}
	}

	for id, imp := range nodes {
		w.Nodes = append(w.Nodes, NodeWeight{ID: id, Importance: imp})
	}
	sort.Slice(w.Nodes, func(i, j int) bool { return w.Nodes[i].ID < w.Nodes[j].ID })
	return w, nil
}

// Prototypes maps every member of a cluster present in g to the cluster's
// lowest member id, the same ERE coreference compression keeps. Members
// missing from g are ignored and clusters with one live member map nothing.
func Prototypes(g *graph.Graph, clusters []types.Cluster) map[string]string {
	out := make(map[string]string)
	for _, c := range clusters {
		var live []string
		for _, m := range c.Members {
			if id, ok := g.Resolve(m); ok {
				live = append(live, id)
			}
		}
		if len(live) < 2 {
			continue
		}
		sort.Strings(live)
		for _, id := range live[1:] {
			out[id] = live[0]
		}
	}
	return out
}

// BestScore returns the top score in set, or 0 for an empty set.
func BestScore(set types.HypothesisSet) float64 {
	if set.Len() == 0 {
		return 0
	}
	best := set.Hypotheses[0].Score
	for _, h := range set.Hypotheses[1:] {
		best = math.Max(best, h.Score)
	}
	return best
}
