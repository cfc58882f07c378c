// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package hypothesis

import (
	"math"

	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

// Score computes the structural score of a statement set and the number of
// distinct argument roles it covers:
//
//	RoleWeight*roles + CoverageWeight*min(n, TargetSize)
//	  - SizePenalty*max(0, n-TargetSize) + ConfidenceWeight*meanConfidence
//
// Type statements count toward n but not toward roles. A statement without
// a confidence counts as fully confident.
func Score(cfg types.ScoringConfig, stmts []types.Statement) (float64, int) {
	n := len(stmts)
	if n == 0 {
		return 0, 0
	}

	roles := make(map[string]struct{})
	var conf float64
	for _, s := range stmts {
		if !s.IsTypeStatement() {
			roles[s.Predicate] = struct{}{}
		}
		if s.Confidence > 0 {
			conf += s.Confidence
		} else {
			conf++
		}
	}

	covered := n
	if cfg.TargetSize > 0 && covered > cfg.TargetSize {
		covered = cfg.TargetSize
	}
	excess := 0
	if cfg.TargetSize > 0 {
		excess = max(0, n-cfg.TargetSize)
	}

	score := cfg.RoleWeight*float64(len(roles)) +
		cfg.CoverageWeight*float64(covered) -
		cfg.SizePenalty*float64(excess) +
		cfg.ConfidenceWeight*(conf/float64(n))
	if math.IsNaN(score) {
		return 0, len(roles)
	}
	return score, len(roles)
}
