// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package graph holds the immutable in-memory ERE/statement store and its
// adjacency index. Nodes and statements live in id-indexed arenas; the
// adjacency index refers to statements by arena position, so there are no
// pointers between EREs and statements.
package graph

import (
	"sort"
	"strings"

	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

// Graph is a read-only ERE/statement multigraph. All methods are safe for
// concurrent use because nothing mutates a Graph after Load returns.
// Values returned by accessors share slices with the graph and must not be
// modified.
type Graph struct {
	eres    []types.ERE
	stmts   []types.Statement
	ereIdx  map[string]int
	stmtIdx map[string]int

	// adj[i] lists the statements incident to eres[i], ascending by id.
	adj [][]int

	// alias maps ids folded away by compression to the surviving ERE.
	alias map[string]string
}

// Load validates raw records and builds a Graph. It fails with a
// *MalformedGraphError when an ERE has an unsupported category, an id is
// empty or duplicated, or a statement references an unknown ERE.
func Load(raw types.RawGraph) (*Graph, error) {
	g := &Graph{
		eres:    make([]types.ERE, 0, len(raw.EREs)),
		stmts:   make([]types.Statement, 0, len(raw.Statements)),
		ereIdx:  make(map[string]int, len(raw.EREs)),
		stmtIdx: make(map[string]int, len(raw.Statements)),
		alias:   make(map[string]string),
	}

	for _, e := range raw.EREs {
		if e.ID == "" {
			return nil, malformed("", "ERE with empty id")
		}
		if !e.Category.Valid() {
			return nil, malformed(e.ID, "unsupported category %q", e.Category)
		}
		if _, dup := g.ereIdx[e.ID]; dup {
			return nil, malformed(e.ID, "duplicate ERE id")
		}
		g.ereIdx[e.ID] = len(g.eres)
		g.eres = append(g.eres, cloneERE(e))
	}

	for _, e := range g.eres {
		for _, m := range e.Members {
			if m == e.ID {
				continue
			}
			if _, isERE := g.ereIdx[m]; isERE {
				return nil, malformed(e.ID, "member %s is also a live ERE", m)
			}
			if prev, ok := g.alias[m]; ok && prev != e.ID {
				return nil, malformed(m, "member of both %s and %s", prev, e.ID)
			}
			g.alias[m] = e.ID
		}
	}

	g.adj = make([][]int, len(g.eres))
	for _, s := range raw.Statements {
		if s.ID == "" {
			return nil, malformed("", "statement with empty id")
		}
		if _, dup := g.stmtIdx[s.ID]; dup {
			return nil, malformed(s.ID, "duplicate statement id")
		}
		if s.Predicate == "" {
			return nil, malformed(s.ID, "statement without predicate")
		}
		subj, ok := g.ereIdx[s.Subject]
		if !ok {
			return nil, malformed(s.ID, "unknown subject %q", s.Subject)
		}
		obj := -1
		if s.Object != "" {
			if obj, ok = g.ereIdx[s.Object]; !ok {
				return nil, malformed(s.ID, "unknown object %q", s.Object)
			}
		} else if s.Literal == "" {
			return nil, malformed(s.ID, "statement has neither object nor literal")
		}

		h := len(g.stmts)
		g.stmtIdx[s.ID] = h
		g.stmts = append(g.stmts, cloneStatement(s))
		g.adj[subj] = append(g.adj[subj], h)
		if obj >= 0 && obj != subj {
			g.adj[obj] = append(g.adj[obj], h)
		}
	}

	for i := range g.adj {
		list := g.adj[i]
		sort.Slice(list, func(a, b int) bool {
			return g.stmts[list[a]].ID < g.stmts[list[b]].ID
		})
	}

	return g, nil
}

// NumEREs returns the number of EREs.
func (g *Graph) NumEREs() int { return len(g.eres) }

// NumStatements returns the number of statements.
func (g *Graph) NumStatements() int { return len(g.stmts) }

// ERE returns the node with the given id.
func (g *Graph) ERE(id string) (types.ERE, error) {
	i, ok := g.ereIdx[id]
	if !ok {
		return types.ERE{}, ereNotFound(id)
	}
	return g.eres[i], nil
}

// HasERE reports whether id names a live ERE.
func (g *Graph) HasERE(id string) bool {
	_, ok := g.ereIdx[id]
	return ok
}

// Statement returns the statement with the given id.
func (g *Graph) Statement(id string) (types.Statement, error) {
	i, ok := g.stmtIdx[id]
	if !ok {
		return types.Statement{}, statementNotFound(id)
	}
	return g.stmts[i], nil
}

// Neighbors returns the ids of statements incident to the ERE, ascending.
func (g *Graph) Neighbors(id string) ([]string, error) {
	i, ok := g.ereIdx[id]
	if !ok {
		return nil, ereNotFound(id)
	}
	ids := make([]string, len(g.adj[i]))
	for k, h := range g.adj[i] {
		ids[k] = g.stmts[h].ID
	}
	return ids, nil
}

// Incident returns the statements incident to the ERE, ascending by id.
func (g *Graph) Incident(id string) ([]types.Statement, error) {
	i, ok := g.ereIdx[id]
	if !ok {
		return nil, ereNotFound(id)
	}
	out := make([]types.Statement, len(g.adj[i]))
	for k, h := range g.adj[i] {
		out[k] = g.stmts[h]
	}
	return out, nil
}

// Kind classifies a statement of this graph. Statements whose subject is
// unknown are reported as relation statements.
func (g *Graph) Kind(s types.Statement) types.StatementKind {
	if s.IsTypeStatement() {
		return types.KindType
	}
	if i, ok := g.ereIdx[s.Subject]; ok && g.eres[i].Category == types.CategoryEvent {
		return types.KindEventArgument
	}
	return types.KindRelation
}

// TypesOf returns the type labels of an ERE: its declared types plus the
// literals of its type statements, deduplicated and sorted.
func (g *Graph) TypesOf(id string) ([]string, error) {
	i, ok := g.ereIdx[id]
	if !ok {
		return nil, ereNotFound(id)
	}
	seen := make(map[string]struct{})
	for _, t := range g.eres[i].Types {
		seen[t] = struct{}{}
	}
	for _, h := range g.adj[i] {
		s := g.stmts[h]
		if s.IsTypeStatement() && s.Subject == id {
			seen[TypeLabel(s)] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}

// Resolve maps an id to the live ERE that carries it: the ERE itself, or
// the ERE that absorbed it during coreference compression.
func (g *Graph) Resolve(id string) (string, bool) {
	if _, ok := g.ereIdx[id]; ok {
		return id, true
	}
	target, ok := g.alias[id]
	return target, ok
}

// EREIDs returns all ERE ids, ascending.
func (g *Graph) EREIDs() []string {
	ids := make([]string, len(g.eres))
	for i, e := range g.eres {
		ids[i] = e.ID
	}
	sort.Strings(ids)
	return ids
}

// StatementIDs returns all statement ids, ascending.
func (g *Graph) StatementIDs() []string {
	ids := make([]string, len(g.stmts))
	for i, s := range g.stmts {
		ids[i] = s.ID
	}
	sort.Strings(ids)
	return ids
}

// Records returns the graph as raw records sorted by id. The result is a
// deep copy and may be modified freely.
func (g *Graph) Records() types.RawGraph {
	raw := types.RawGraph{
		EREs:       make([]types.ERE, 0, len(g.eres)),
		Statements: make([]types.Statement, 0, len(g.stmts)),
	}
	for _, id := range g.EREIDs() {
		raw.EREs = append(raw.EREs, cloneERE(g.eres[g.ereIdx[id]]))
	}
	for _, id := range g.StatementIDs() {
		raw.Statements = append(raw.Statements, cloneStatement(g.stmts[g.stmtIdx[id]]))
	}
	return raw
}

// TypeLabel returns the type asserted by a type statement. The object may
// be a literal or, in some KB dumps, a node id naming the type.
func TypeLabel(s types.Statement) string {
	if s.Literal != "" {
		return s.Literal
	}
	return s.Object
}

// TypeMatches reports whether typ equals pattern or descends from it in the
// dotted type hierarchy.
func TypeMatches(pattern, typ string) bool {
	return typ == pattern || strings.HasPrefix(typ, pattern+".")
}

// TypesCompatible reports whether two type labels can describe the same
// node, i.e. one is equal to or an ancestor of the other.
func TypesCompatible(a, b string) bool {
	return TypeMatches(a, b) || TypeMatches(b, a)
}

// RoleMatches reports whether predicate fills role: the predicate equals the
// role or ends in "_<role>" (as in "Conflict.Attack_Attacker").
func RoleMatches(role, predicate string) bool {
	return predicate == role || strings.HasSuffix(predicate, "_"+role)
}

func cloneERE(e types.ERE) types.ERE {
	e.Names = cloneStrings(e.Names)
	e.Types = cloneStrings(e.Types)
	e.Provenance = cloneStrings(e.Provenance)
	e.Members = cloneStrings(e.Members)
	return e
}

func cloneStatement(s types.Statement) types.Statement {
	s.Provenance = cloneStrings(s.Provenance)
	return s
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
