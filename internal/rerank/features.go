// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package rerank

import (
	"fmt"

	"github.com/pdiddy/hypothesis-engine/internal/graph"
	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

// FeatureNames lists the features in Vector order.
var FeatureNames = []string{
	"seed_size",
	"one_step",
	"two_step",
	"roles",
	"type_statements",
	"mean_confidence",
}

// Features summarizes the neighborhood of one seed set. Scorers see only
// these values, never the graph.
type Features struct {
	// SeedSize is the number of seed EREs.
	SeedSize int `json:"seed_size" yaml:"seed_size"`

	// OneStep counts EREs one statement away from the seed.
	OneStep int `json:"one_step" yaml:"one_step"`

	// TwoStep counts EREs exactly two statements away from the seed.
	TwoStep int `json:"two_step" yaml:"two_step"`

	// Roles counts distinct argument predicates with a seed ERE as subject.
	Roles int `json:"roles" yaml:"roles"`

	// TypeStatements counts type statements on seed EREs.
	TypeStatements int `json:"type_statements" yaml:"type_statements"`

	// MeanConfidence averages the confidence of the seed's argument
	// statements; unspecified confidence counts as 1.
	MeanConfidence float64 `json:"mean_confidence" yaml:"mean_confidence"`
}

// Vector returns the features in FeatureNames order.
func (f Features) Vector() []float64 {
	return []float64{
		float64(f.SeedSize),
		float64(f.OneStep),
		float64(f.TwoStep),
		float64(f.Roles),
		float64(f.TypeStatements),
		f.MeanConfidence,
	}
}

// Extract computes the features of a seed set.
func Extract(g *graph.Graph, s types.SeedSet) (Features, error) {
	f := Features{SeedSize: len(s.EREs)}

	seed := make(map[string]bool, len(s.EREs))
	for _, id := range s.EREs {
		seed[id] = true
	}

	roles := make(map[string]bool)
	counted := make(map[string]bool)
	oneStep := make(map[string]bool)
	var conf float64
	var args int

	for _, id := range s.EREs {
		stmts, err := g.Incident(id)
		if err != nil {
			return Features{}, fmt.Errorf("seed %d: %w", s.Order, err)
		}
		for _, st := range stmts {
			if st.IsTypeStatement() {
				if st.Subject == id {
					f.TypeStatements++
				}
				continue
			}
			if st.Subject == id {
				roles[st.Predicate] = true
			}
			if !counted[st.ID] {
				counted[st.ID] = true
				args++
				if st.Confidence > 0 {
					conf += st.Confidence
				} else {
					conf++
				}
			}
			if other := otherEnd(st, id); other != "" && !seed[other] {
				oneStep[other] = true
			}
		}
	}

	twoStep := make(map[string]bool)
	for id := range oneStep {
		stmts, err := g.Incident(id)
		if err != nil {
			return Features{}, fmt.Errorf("seed %d: %w", s.Order, err)
		}
		for _, st := range stmts {
			if st.IsTypeStatement() {
				continue
			}
			if other := otherEnd(st, id); other != "" && !seed[other] && !oneStep[other] {
				twoStep[other] = true
			}
		}
	}

	f.OneStep = len(oneStep)
	f.TwoStep = len(twoStep)
	f.Roles = len(roles)
	if args > 0 {
		f.MeanConfidence = conf / float64(args)
	}
	return f, nil
}

func otherEnd(s types.Statement, id string) string {
	switch {
	case !s.HasEREObject():
		return ""
	case s.Subject == id:
		return s.Object
	case s.Object == id:
		return s.Subject
	}
	return ""
}
