// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package seed turns a SIN query into candidate seed sets: groups of ERE ids
// that satisfy one frame constraint and anchor the subgraph expansion.
package seed

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pdiddy/hypothesis-engine/internal/graph"
	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

// Options tunes seed resolution.
type Options struct {
	// MaxSeedsPerFrame caps the candidates kept per frame (0 = no cap).
	MaxSeedsPerFrame int
}

// Resolve returns the seed sets for q in discovery order: frames in query
// order, candidates in ascending ERE id within a frame. A seed set holds the
// candidate plus any anchors that fill one of its argument slots. Seed sets
// already produced by an earlier frame are not repeated.
//
// An anchor that names no ERE, before or after compression, fails the whole
// query with a *graph.NotFoundError. A query that matches nothing returns an
// empty list and a nil error.
func Resolve(g *graph.Graph, q types.SINQuery, opts Options) ([]types.SeedSet, error) {
	var (
		out  []types.SeedSet
		seen = make(map[string]bool)
	)
	for _, f := range q.Frames {
		anchors, err := resolveAnchors(g, f.EntryPoints)
		if err != nil {
			return nil, fmt.Errorf("query %s frame %s: %w", q.ID, f.ID, err)
		}

		kept := 0
		for _, id := range g.EREIDs() {
			if opts.MaxSeedsPerFrame > 0 && kept >= opts.MaxSeedsPerFrame {
				break
			}
			ok, err := matchesFrame(g, id, f)
			if err != nil {
				return nil, fmt.Errorf("query %s frame %s: %w", q.ID, f.ID, err)
			}
			if !ok {
				continue
			}
			eres, ok, err := anchorSeed(g, id, anchors)
			if err != nil {
				return nil, fmt.Errorf("query %s frame %s: %w", q.ID, f.ID, err)
			}
			if !ok {
				continue
			}
			key := strings.Join(eres, "\x00")
			if seen[key] {
				continue
			}
			seen[key] = true
			kept++
			out = append(out, types.SeedSet{
				QueryID: q.ID,
				FrameID: f.ID,
				EREs:    eres,
				Order:   len(out),
				Score:   1,
			})
		}
	}
	return out, nil
}

// resolveAnchors maps entry point ids to live EREs. Ids absorbed by
// coreference compression resolve to the ERE that absorbed them.
func resolveAnchors(g *graph.Graph, ids []string) (map[string]bool, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	anchors := make(map[string]bool, len(ids))
	for _, id := range ids {
		live, ok := g.Resolve(id)
		if !ok {
			return nil, &graph.NotFoundError{Kind: "ere", ID: id}
		}
		anchors[live] = true
	}
	return anchors, nil
}

// matchesFrame checks category, type patterns, and required roles.
func matchesFrame(g *graph.Graph, id string, f types.FrameConstraint) (bool, error) {
	e, err := g.ERE(id)
	if err != nil {
		return false, err
	}
	if f.Category != "" && e.Category != f.Category {
		return false, nil
	}

	if len(f.Types) > 0 {
		typs, err := g.TypesOf(id)
		if err != nil {
			return false, err
		}
		if !anyTypeMatches(f.Types, typs) {
			return false, nil
		}
	}

	if len(f.Roles) > 0 {
		stmts, err := g.Incident(id)
		if err != nil {
			return false, err
		}
		for _, role := range f.Roles {
			if !hasRole(id, stmts, role) {
				return false, nil
			}
		}
	}
	return true, nil
}

// anchorSeed returns the seed set for a matching candidate. Without anchors
// the candidate alone is the seed. With anchors the candidate must be one,
// or have one as the direct object of an argument statement.
func anchorSeed(g *graph.Graph, id string, anchors map[string]bool) ([]string, bool, error) {
	if anchors == nil {
		return []string{id}, true, nil
	}

	set := make(map[string]bool)
	if anchors[id] {
		set[id] = true
	}
	stmts, err := g.Incident(id)
	if err != nil {
		return nil, false, err
	}
	for _, s := range stmts {
		if s.Subject != id || s.IsTypeStatement() || !s.HasEREObject() {
			continue
		}
		if anchors[s.Object] {
			set[s.Object] = true
		}
	}
	if len(set) == 0 {
		return nil, false, nil
	}
	set[id] = true

	eres := make([]string, 0, len(set))
	for e := range set {
		eres = append(eres, e)
	}
	sort.Strings(eres)
	return eres, true, nil
}

func anyTypeMatches(patterns, typs []string) bool {
	for _, p := range patterns {
		for _, t := range typs {
			if graph.TypeMatches(p, t) {
				return true
			}
		}
	}
	return false
}

func hasRole(id string, stmts []types.Statement, role string) bool {
	for _, s := range stmts {
		if s.Subject == id && !s.IsTypeStatement() && graph.RoleMatches(role, s.Predicate) {
			return true
		}
	}
	return false
}
