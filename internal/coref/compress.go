// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package coref merges EREs that the knowledge base marks as coreferent.
// Compression is a pure transformation: it reads one graph and builds a new
// one, so the uncompressed graph stays available for attribution.
package coref

import (
	"fmt"
	"math"
	"sort"

	"github.com/pdiddy/hypothesis-engine/internal/graph"
	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

// Summary holds counts from one compression pass.
type Summary struct {
	// Clusters is the number of clusters that merged at least two EREs.
	Clusters int

	// MergedEREs is the number of non-canonical EREs folded away.
	MergedEREs int

	// MergedStatements is the number of statements folded into a duplicate.
	MergedStatements int
}

// Compress returns a new graph in which every cluster is collapsed onto its
// canonical (lowest id) member. See CompressWithSummary.
func Compress(g *graph.Graph, clusters []types.Cluster) (*graph.Graph, error) {
	out, _, err := CompressWithSummary(g, clusters)
	return out, err
}

// CompressWithSummary collapses each cluster onto its lowest live member id,
// rewrites statement endpoints to the canonical id, and merges statements
// that become duplicates (same predicate and rewritten endpoints) into the
// lowest statement id, unioning provenance.
//
// Cluster members that are not live in g are resolved through g.Resolve and
// skipped when unknown, so compressing an already-compressed graph with the
// same clusters changes nothing. Clusters that overlap or mix categories are
// rejected with a *graph.MalformedGraphError.
func CompressWithSummary(g *graph.Graph, clusters []types.Cluster) (*graph.Graph, Summary, error) {
	var summary Summary

	canon, groups, err := canonicalize(g, clusters)
	if err != nil {
		return nil, summary, err
	}
	summary.Clusters = len(groups)
	summary.MergedEREs = len(canon)

	// Nothing to merge; a Graph is immutable, so the input is a valid result.
	if len(canon) == 0 {
		return g, summary, nil
	}

	raw := g.Records()
	eres := make([]types.ERE, 0, len(raw.EREs)-len(canon))
	byID := make(map[string]types.ERE, len(raw.EREs))
	for _, e := range raw.EREs {
		byID[e.ID] = e
	}
	for _, e := range raw.EREs {
		if _, folded := canon[e.ID]; folded {
			continue
		}
		if members, ok := groups[e.ID]; ok {
			e = mergeEREs(byID, members)
		}
		eres = append(eres, e)
	}

	stmts, merged := rewriteStatements(raw.Statements, canon)
	summary.MergedStatements = merged

	out, err := graph.Load(types.RawGraph{EREs: eres, Statements: stmts})
	if err != nil {
		return nil, summary, fmt.Errorf("rebuilding compressed graph: %w", err)
	}
	return out, summary, nil
}

// canonicalize maps every non-canonical live member to its canonical id and
// returns, per canonical id, the sorted live members of its cluster.
func canonicalize(g *graph.Graph, clusters []types.Cluster) (map[string]string, map[string][]string, error) {
	canon := make(map[string]string)
	groups := make(map[string][]string)
	owner := make(map[string]string)

	for _, c := range clusters {
		var live []string
		for _, m := range c.Members {
			id, ok := g.Resolve(m)
			if !ok {
				continue
			}
			if prev, taken := owner[id]; taken {
				if prev != c.ID {
					return nil, nil, &graph.MalformedGraphError{
						ID:     c.ID,
						Reason: fmt.Sprintf("ERE %s also belongs to cluster %s", id, prev),
					}
				}
				continue
			}
			owner[id] = c.ID
			live = append(live, id)
		}
		if len(live) < 2 {
			continue
		}
		sort.Strings(live)

		first, err := g.ERE(live[0])
		if err != nil {
			return nil, nil, err
		}
		for _, id := range live[1:] {
			e, err := g.ERE(id)
			if err != nil {
				return nil, nil, err
			}
			if e.Category != first.Category {
				return nil, nil, &graph.MalformedGraphError{
					ID:     c.ID,
					Reason: fmt.Sprintf("mixes %s %s with %s %s", first.Category, first.ID, e.Category, e.ID),
				}
			}
			canon[id] = live[0]
		}
		groups[live[0]] = live
	}
	return canon, groups, nil
}

// mergeEREs folds the members (canonical first) into one ERE carrying the
// union of their attributes.
func mergeEREs(byID map[string]types.ERE, members []string) types.ERE {
	out := byID[members[0]]
	names := newStringSet()
	typs := newStringSet()
	prov := newStringSet()
	ids := newStringSet()
	for _, id := range members {
		e := byID[id]
		names.add(e.Names...)
		typs.add(e.Types...)
		prov.add(e.Provenance...)
		ids.add(e.ID)
		ids.add(e.Members...)
	}
	out.Names = names.sorted()
	out.Types = typs.sorted()
	out.Provenance = prov.sorted()
	out.Members = ids.sorted()
	return out
}

// rewriteStatements rewrites endpoints and merges duplicate groups that
// contain at least one rewritten statement. stmts must be sorted by id so
// the lowest id survives a merge.
func rewriteStatements(stmts []types.Statement, canon map[string]string) ([]types.Statement, int) {
	type group struct {
		members   []int
		rewritten bool
	}
	rewrite := func(id string) (string, bool) {
		if c, ok := canon[id]; ok {
			return c, true
		}
		return id, false
	}

	groups := make(map[string]*group)
	var order []string
	for i := range stmts {
		s := &stmts[i]
		var subjChanged, objChanged bool
		s.Subject, subjChanged = rewrite(s.Subject)
		if s.Object != "" {
			s.Object, objChanged = rewrite(s.Object)
		}
		key := dedupeKey(*s)
		grp, ok := groups[key]
		if !ok {
			grp = &group{}
			groups[key] = grp
			order = append(order, key)
		}
		grp.members = append(grp.members, i)
		grp.rewritten = grp.rewritten || subjChanged || objChanged
	}

	var (
		out    = make([]types.Statement, 0, len(stmts))
		merged int
	)
	for _, key := range order {
		grp := groups[key]
		if len(grp.members) == 1 || !grp.rewritten {
			for _, i := range grp.members {
				out = append(out, stmts[i])
			}
			continue
		}
		keep := stmts[grp.members[0]]
		prov := newStringSet()
		conf := keep.Confidence
		for _, i := range grp.members {
			prov.add(stmts[i].Provenance...)
			conf = math.Max(conf, stmts[i].Confidence)
		}
		keep.Provenance = prov.sorted()
		keep.Confidence = conf
		out = append(out, keep)
		merged += len(grp.members) - 1
	}
	return out, merged
}

func dedupeKey(s types.Statement) string {
	if s.Object != "" {
		return s.Predicate + "\x00" + s.Subject + "\x00o:" + s.Object
	}
	return s.Predicate + "\x00" + s.Subject + "\x00l:" + s.Literal
}

type stringSet map[string]struct{}

func newStringSet() stringSet { return make(stringSet) }

func (s stringSet) add(vals ...string) {
	for _, v := range vals {
		if v != "" {
			s[v] = struct{}{}
		}
	}
}

func (s stringSet) sorted() []string {
	if len(s) == 0 {
		return nil
	}
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
