// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"sort"
	"strings"
)

// Hypothesis is a connected, constraint-consistent set of statements
// proposed as one answer to a SIN query.
type Hypothesis struct {
	// Statements are ordered by discovery hop, then statement id.
	Statements []string `json:"statements" yaml:"statements"`

	// StatementHops holds the expansion hop of each statement, parallel to
	// Statements.
	StatementHops []int `json:"statement_hops" yaml:"statement_hops"`

	// EREs are the node ids touched by Statements, ascending.
	EREs []string `json:"eres" yaml:"eres"`

	// Score is the structural score.
	Score float64 `json:"score" yaml:"score"`

	// Roles is the number of distinct argument roles covered.
	Roles int `json:"roles" yaml:"roles"`

	// FrameID, Seed and SeedOrder trace the hypothesis back to its seed set.
	FrameID   string   `json:"frame_id" yaml:"frame_id"`
	Seed      []string `json:"seed" yaml:"seed"`
	SeedOrder int      `json:"seed_order" yaml:"seed_order"`

	// Discovery is the acceptance index within its seed's search.
	Discovery int `json:"discovery" yaml:"discovery"`

	// Rank is the 1-based position within the final hypothesis set.
	Rank int `json:"rank" yaml:"rank"`
}

// Key returns a canonical form of the statement-id set. Two hypotheses with
// the same key are the same hypothesis regardless of discovery order.
func (h Hypothesis) Key() string {
	ids := make([]string, len(h.Statements))
	copy(ids, h.Statements)
	sort.Strings(ids)
	return strings.Join(ids, "\x00")
}

// HypothesisSet is the ranked output for one SIN query.
type HypothesisSet struct {
	QueryID    string       `json:"query_id" yaml:"query_id"`
	Hypotheses []Hypothesis `json:"hypotheses" yaml:"hypotheses"`
}

// Len returns the number of hypotheses in the set.
func (s HypothesisSet) Len() int {
	return len(s.Hypotheses)
}

// RankHypotheses sorts hs in place: score descending, then fewer
// statements, then seed discovery order, then acceptance order. Rank
// fields are renumbered from 1.
func RankHypotheses(hs []Hypothesis) {
	sort.SliceStable(hs, func(i, j int) bool {
		a, b := hs[i], hs[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if len(a.Statements) != len(b.Statements) {
			return len(a.Statements) < len(b.Statements)
		}
		if a.SeedOrder != b.SeedOrder {
			return a.SeedOrder < b.SeedOrder
		}
		return a.Discovery < b.Discovery
	})
	for i := range hs {
		hs[i].Rank = i + 1
	}
}
