// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package hypothesis enumerates consistent, connected statement sets from an
// expanded subgraph and scores them.
//
// Generation is a bounded best-first search. Every search node holds a set
// of forced statements; its completion greedily adds every connected,
// consistent statement of the subgraph in hop-then-id order. Popping a node
// accepts its completion and branches on each statement the completion left
// out only because it conflicted, so every alternative filler of a
// single-filler slot is eventually tried.
package hypothesis

import (
	"container/heap"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pdiddy/hypothesis-engine/internal/expand"
	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

// DefaultMaxNodes bounds the search when Config.MaxNodes is zero.
const DefaultMaxNodes = 2000

// Config tunes generation.
type Config struct {
	Scoring types.ScoringConfig

	// MaxSize caps the statements per hypothesis (0 = no cap).
	MaxSize int

	// MaxNodes caps the search nodes completed per subgraph.
	MaxNodes int

	// MultiFillerRoles lists roles exempt from the single-filler rule.
	MultiFillerRoles []string
}

// ConfigFrom converts the engine's generation settings.
func ConfigFrom(cfg types.GenerationConfig) Config {
	return Config{
		Scoring:          cfg.Scoring,
		MaxSize:          cfg.MaxSize,
		MaxNodes:         cfg.MaxNodes,
		MultiFillerRoles: cfg.MultiFillerRoles,
	}
}

// Stats describes one search.
type Stats struct {
	// Nodes is the number of search nodes completed.
	Nodes int

	// Duplicates counts popped completions identical to an accepted one.
	Duplicates int

	// Disconnected counts popped completions discarded as disconnected.
	Disconnected int

	// Exhausted is set when fewer than the requested hypotheses were found.
	Exhausted bool

	// BudgetHit is set when MaxNodes stopped the search from branching.
	// Nodes already queued are still drained.
	BudgetHit bool
}

// Generate returns up to numHyps distinct hypotheses for sub, in acceptance
// order with Discovery set. Each hypothesis is connected, consistent, and
// carries sub's seed. An empty subgraph or numHyps <= 0 yields no
// hypotheses and no error; finding fewer than numHyps is reported through
// Stats.Exhausted.
func Generate(sub *expand.Subgraph, numHyps int, cfg Config) ([]types.Hypothesis, Stats, error) {
	var stats Stats
	if numHyps <= 0 || sub == nil || sub.Empty() {
		stats.Exhausted = numHyps > 0
		return nil, stats, nil
	}

	cands, err := candidates(sub)
	if err != nil {
		return nil, stats, err
	}

	budget := cfg.MaxNodes
	if budget <= 0 {
		budget = DefaultMaxNodes
	}

	s := &search{sub: sub, cands: cands, cfg: cfg, visited: make(map[string]bool)}
	for _, r := range s.roots() {
		if stats.Nodes >= budget {
			stats.BudgetHit = true
			break
		}
		s.push([]int{r})
		stats.Nodes++
	}

	var (
		out      []types.Hypothesis
		accepted = make(map[string]bool)
	)
	for s.queue.Len() > 0 && len(out) < numHyps {
		n := heap.Pop(&s.queue).(*node)

		switch key := idxKey(n.completion); {
		case !connected(cands, n.completion):
			stats.Disconnected++
		case accepted[key]:
			stats.Duplicates++
		default:
			accepted[key] = true
			out = append(out, s.hypothesis(n, len(out)))
		}

		for _, c := range n.branches {
			if stats.Nodes >= budget {
				stats.BudgetHit = true
				break
			}
			forced := append(append([]int(nil), n.forced...), c)
			if s.push(forced) {
				stats.Nodes++
			}
		}
	}

	stats.Exhausted = len(out) < numHyps
	return out, stats, nil
}

// candidates loads the subgraph's statements in hop-then-id order.
func candidates(sub *expand.Subgraph) ([]types.Statement, error) {
	g := sub.Graph()
	out := make([]types.Statement, 0, len(sub.Statements))
	for _, id := range sub.Statements {
		s, err := g.Statement(id)
		if err != nil {
			return nil, fmt.Errorf("loading subgraph statement: %w", err)
		}
		out = append(out, s)
	}
	return out, nil
}

type search struct {
	sub     *expand.Subgraph
	cands   []types.Statement
	cfg     Config
	queue   nodeQueue
	visited map[string]bool
	seq     int
}

type node struct {
	forced     []int
	completion []int
	branches   []int
	score      float64
	roles      int
	seq        int
}

// roots returns the statements each root node forces: core statements
// (arguments of an event or relation) touching the seed; failing that every
// core statement; failing that every non-type statement.
func (s *search) roots() []int {
	g := s.sub.Graph()
	seed := make(map[string]bool, len(s.sub.Seed))
	for _, id := range s.sub.Seed {
		seed[id] = true
	}

	var touching, core, nonType []int
	for i, st := range s.cands {
		if st.IsTypeStatement() {
			continue
		}
		nonType = append(nonType, i)
		subj, err := g.ERE(st.Subject)
		if err != nil || subj.Category == types.CategoryEntity {
			continue
		}
		core = append(core, i)
		if seed[st.Subject] || (st.HasEREObject() && seed[st.Object]) {
			touching = append(touching, i)
		}
	}
	switch {
	case len(touching) > 0:
		return touching
	case len(core) > 0:
		return core
	}
	return nonType
}

// push completes a forced set and queues it. It returns false when the set
// was already visited, is inconsistent, or exceeds MaxSize.
func (s *search) push(forced []int) bool {
	sort.Ints(forced)
	key := idxKey(forced)
	if s.visited[key] {
		return false
	}
	s.visited[key] = true
	if s.cfg.MaxSize > 0 && len(forced) > s.cfg.MaxSize {
		return false
	}

	st := newState(s.cands, s.cfg.MultiFillerRoles)
	for _, i := range forced {
		if st.conflicts(i) {
			return false
		}
		st.add(i)
	}
	s.complete(st)

	completion := append([]int(nil), st.order...)
	sort.Ints(completion)

	var branches []int
	for i := range s.cands {
		if !st.in[i] && st.touches(i) && st.conflicts(i) {
			branches = append(branches, i)
		}
	}

	stmts := make([]types.Statement, len(completion))
	for k, i := range completion {
		stmts[k] = s.cands[i]
	}
	score, roles := Score(s.cfg.Scoring, stmts)

	heap.Push(&s.queue, &node{
		forced:     forced,
		completion: completion,
		branches:   branches,
		score:      score,
		roles:      roles,
		seq:        s.seq,
	})
	s.seq++
	return true
}

// complete adds connected, consistent candidates in order, repeating passes
// until nothing more can be added or MaxSize is reached.
func (s *search) complete(st *state) {
	for {
		added := false
		for i := range s.cands {
			if s.cfg.MaxSize > 0 && len(st.order) >= s.cfg.MaxSize {
				return
			}
			if st.in[i] || !st.touches(i) || st.conflicts(i) {
				continue
			}
			st.add(i)
			added = true
		}
		if !added {
			return
		}
	}
}

func (s *search) hypothesis(n *node, discovery int) types.Hypothesis {
	h := types.Hypothesis{
		Statements:    make([]string, len(n.completion)),
		StatementHops: make([]int, len(n.completion)),
		Score:         n.score,
		Roles:         n.roles,
		Seed:          append([]string(nil), s.sub.Seed...),
		Discovery:     discovery,
	}
	eres := make(map[string]bool)
	for k, i := range n.completion {
		st := s.cands[i]
		h.Statements[k] = st.ID
		h.StatementHops[k] = s.sub.StatementHop[st.ID]
		eres[st.Subject] = true
		if st.HasEREObject() {
			eres[st.Object] = true
		}
	}
	for id := range eres {
		h.EREs = append(h.EREs, id)
	}
	sort.Strings(h.EREs)
	return h
}

func idxKey(idx []int) string {
	var b strings.Builder
	for k, i := range idx {
		if k > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(i))
	}
	return b.String()
}

// nodeQueue orders nodes by score descending, then fewer statements, then
// creation order.
type nodeQueue []*node

func (q nodeQueue) Len() int { return len(q) }

func (q nodeQueue) Less(i, j int) bool {
	a, b := q[i], q[j]
	if a.score != b.score {
		return a.score > b.score
	}
	if len(a.completion) != len(b.completion) {
		return len(a.completion) < len(b.completion)
	}
	return a.seq < b.seq
}

func (q nodeQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *nodeQueue) Push(x any) { *q = append(*q, x.(*node)) }

func (q *nodeQueue) Pop() any {
	old := *q
	n := old[len(old)-1]
	old[len(old)-1] = nil
	*q = old[:len(old)-1]
	return n
}
