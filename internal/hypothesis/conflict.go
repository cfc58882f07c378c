// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package hypothesis

import (
	"github.com/pdiddy/hypothesis-engine/internal/graph"
	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

// state tracks the slots and type assertions taken by a growing hypothesis
// so that consistency checks are constant time per statement.
type state struct {
	cands []types.Statement
	multi []string

	in    map[int]bool
	eres  map[string]bool
	slots map[string]bool
	typs  map[string][]string
	order []int
}

func newState(cands []types.Statement, multi []string) *state {
	return &state{
		cands: cands,
		multi: multi,
		in:    make(map[int]bool),
		eres:  make(map[string]bool),
		slots: make(map[string]bool),
		typs:  make(map[string][]string),
	}
}

// add includes candidate i. The caller checks consistency first.
func (st *state) add(i int) {
	s := st.cands[i]
	st.in[i] = true
	st.order = append(st.order, i)
	st.eres[s.Subject] = true
	if s.HasEREObject() {
		st.eres[s.Object] = true
	}
	if s.IsTypeStatement() {
		st.typs[s.Subject] = append(st.typs[s.Subject], graph.TypeLabel(s))
		return
	}
	if !st.multiFiller(s.Predicate) {
		st.slots[slotKey(s)] = true
	}
}

// conflicts reports whether candidate i contradicts the current set: it
// fills an occupied single-filler slot, or asserts a type incompatible with
// one already asserted for the same ERE.
func (st *state) conflicts(i int) bool {
	s := st.cands[i]
	if s.IsTypeStatement() {
		label := graph.TypeLabel(s)
		for _, t := range st.typs[s.Subject] {
			if !graph.TypesCompatible(t, label) {
				return true
			}
		}
		return false
	}
	if st.multiFiller(s.Predicate) {
		return false
	}
	return st.slots[slotKey(s)]
}

// touches reports whether candidate i shares an ERE with the current set.
func (st *state) touches(i int) bool {
	s := st.cands[i]
	if st.eres[s.Subject] {
		return true
	}
	return s.HasEREObject() && st.eres[s.Object]
}

func (st *state) multiFiller(predicate string) bool {
	for _, role := range st.multi {
		if graph.RoleMatches(role, predicate) {
			return true
		}
	}
	return false
}

func slotKey(s types.Statement) string {
	return s.Subject + "\x00" + s.Predicate
}

// Consistent reports whether stmts satisfy the hypothesis invariant: no
// single-filler slot is filled twice and no ERE carries incompatible types.
func Consistent(stmts []types.Statement, multiFillerRoles []string) bool {
	st := newState(stmts, multiFillerRoles)
	for i := range stmts {
		if st.conflicts(i) {
			return false
		}
		st.add(i)
	}
	return true
}

// connected reports whether the statements at idx form one component when
// statements sharing an ERE are adjacent.
func connected(cands []types.Statement, idx []int) bool {
	if len(idx) <= 1 {
		return true
	}
	byERE := make(map[string][]int)
	for _, i := range idx {
		s := cands[i]
		byERE[s.Subject] = append(byERE[s.Subject], i)
		if s.HasEREObject() && s.Object != s.Subject {
			byERE[s.Object] = append(byERE[s.Object], i)
		}
	}

	seen := map[int]bool{idx[0]: true}
	queue := []int{idx[0]}
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		s := cands[i]
		ends := []string{s.Subject}
		if s.HasEREObject() {
			ends = append(ends, s.Object)
		}
		for _, e := range ends {
			for _, j := range byERE[e] {
				if !seen[j] {
					seen[j] = true
					queue = append(queue, j)
				}
			}
		}
	}
	return len(seen) == len(idx)
}
