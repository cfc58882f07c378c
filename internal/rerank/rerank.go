// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package rerank orders seed sets by a learned plausibility score before
// expansion. Scoring backends implement Scorer per the Strategy pattern; the
// Reranker around them isolates failures so that a bad item, a failed
// batch, or a timeout only costs the affected items their learned score.
package rerank

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"github.com/pdiddy/hypothesis-engine/internal/graph"
	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

// FallbackScore is the uniform score given to unscored seed sets.
const FallbackScore = 1.0

// Scorer scores a batch of seed features, one score per item in order. A
// NaN entry marks a failure of that item only; an error fails the batch.
type Scorer interface {
	ScoreBatch(ctx context.Context, batch []Features) ([]float64, error)
}

// Uniform scores every item FallbackScore.
type Uniform struct{}

// ScoreBatch implements Scorer.
func (Uniform) ScoreBatch(_ context.Context, batch []Features) ([]float64, error) {
	out := make([]float64, len(batch))
	for i := range out {
		out[i] = FallbackScore
	}
	return out, nil
}

// Outcome reports how one Rerank call went.
type Outcome struct {
	// Scored is the number of items that received a learned score.
	Scored int

	// Failures is the number of items that fell back to FallbackScore.
	Failures int

	// BatchFailed is set when the batched call failed as a whole.
	BatchFailed bool
}

// Reranker applies a Scorer to the seed sets of one query.
type Reranker struct {
	scorer  Scorer
	timeout time.Duration
	keep    int
	logger  *log.Logger
}

// New wraps scorer. A nil scorer disables reranking. A nil logger uses the
// default charmbracelet logger.
func New(scorer Scorer, cfg types.RerankConfig, logger *log.Logger) *Reranker {
	if logger == nil {
		logger = log.Default()
	}
	return &Reranker{
		scorer:  scorer,
		timeout: cfg.Timeout,
		keep:    cfg.Keep,
		logger:  logger,
	}
}

// Disabled returns a Reranker that leaves seed sets untouched.
func Disabled() *Reranker {
	return New(nil, types.RerankConfig{}, nil)
}

// Enabled reports whether a scorer is configured.
func (r *Reranker) Enabled() bool {
	return r != nil && r.scorer != nil
}

// FromConfig builds the Reranker selected by cfg: the local linear model
// for the cpu device (built-in weights unless ModelPath is set) or the
// remote service for the http device. A disabled config yields Disabled().
func FromConfig(cfg types.RerankConfig, logger *log.Logger) (*Reranker, error) {
	if !cfg.Enabled {
		return Disabled(), nil
	}
	var scorer Scorer
	switch cfg.Device {
	case types.DeviceCPU, "":
		m := DefaultLinearModel()
		if cfg.ModelPath != "" {
			loaded, err := LoadLinearModel(cfg.ModelPath)
			if err != nil {
				return nil, err
			}
			m = loaded
		}
		scorer = m
	case types.DeviceHTTP:
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("rerank_endpoint is required for the http rerank device")
		}
		scorer = &Remote{
			Endpoint:   cfg.Endpoint,
			APIKey:     cfg.APIKey,
			MaxRetries: cfg.MaxRetries,
			Client:     &http.Client{},
		}
	default:
		return nil, fmt.Errorf("unsupported rerank_device %q", cfg.Device)
	}
	return New(scorer, cfg, logger), nil
}

// Rerank scores seeds with one batched call, sorts them by score descending
// (ties keep resolver order) and keeps the top Keep when Keep > 0. When
// disabled it returns the seeds unchanged with FallbackScore.
//
// Item failures and batch failures are counted in Outcome; they are not
// errors. Failed items sort after every scored item in resolver order and
// take the lowest learned score, or FallbackScore when nothing was scored. Rerank only returns an error when ctx is
// cancelled or the seed features cannot be read from g.
func (r *Reranker) Rerank(ctx context.Context, g *graph.Graph, seeds []types.SeedSet) ([]types.SeedSet, Outcome, error) {
	var outcome Outcome
	out := make([]types.SeedSet, len(seeds))
	copy(out, seeds)
	for i := range out {
		out[i].Score = FallbackScore
	}
	if !r.Enabled() || len(out) == 0 {
		return out, outcome, nil
	}

	batch := make([]Features, len(out))
	for i, s := range out {
		f, err := Extract(g, s)
		if err != nil {
			return nil, outcome, fmt.Errorf("extracting rerank features: %w", err)
		}
		batch[i] = f
	}

	scores, err := r.score(ctx, batch)
	if err != nil {
		if ctx.Err() != nil {
			return nil, outcome, ctx.Err()
		}
		outcome.BatchFailed = true
		r.logger.Warn("rerank batch failed", "items", len(batch), "err", err)
		if errors.Is(err, context.DeadlineExceeded) {
			scores = nanScores(len(batch))
		} else {
			scores = r.scoreEach(ctx, batch)
		}
	}

	failed := make([]bool, len(out))
	floor := math.Inf(1)
	for i := range out {
		s := scores[i]
		if math.IsNaN(s) || math.IsInf(s, 0) {
			failed[i] = true
			outcome.Failures++
			continue
		}
		out[i].Score = s
		floor = math.Min(floor, s)
		outcome.Scored++
	}
	if outcome.Failures > 0 {
		r.logger.Warn("rerank items failed, ranking them last", "failures", outcome.Failures, "items", len(out))
	}
	if err := ctx.Err(); err != nil {
		return nil, outcome, err
	}

	// Failed items rank below every learned score and keep resolver order.
	idx := make([]int, len(out))
	for i := range idx {
		idx[i] = i
		if failed[i] && outcome.Scored > 0 {
			out[i].Score = floor
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		i, j := idx[a], idx[b]
		if failed[i] != failed[j] {
			return failed[j]
		}
		return out[i].Score > out[j].Score
	})
	ranked := make([]types.SeedSet, len(out))
	for k, i := range idx {
		ranked[k] = out[i]
	}
	out = ranked
	if r.keep > 0 && len(out) > r.keep {
		out = out[:r.keep]
	}
	return out, outcome, nil
}

// score runs one scorer call under the configured timeout and checks the
// result length.
func (r *Reranker) score(ctx context.Context, batch []Features) ([]float64, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	scores, err := r.scorer.ScoreBatch(ctx, batch)
	if err != nil {
		return nil, err
	}
	if len(scores) != len(batch) {
		return nil, fmt.Errorf("scorer returned %d scores for %d items", len(scores), len(batch))
	}
	return scores, nil
}

// scoreEach retries a failed batch one item at a time so a single bad item
// cannot take the others down with it.
func (r *Reranker) scoreEach(ctx context.Context, batch []Features) []float64 {
	out := nanScores(len(batch))
	for i := range batch {
		if ctx.Err() != nil {
			break
		}
		s, err := r.score(ctx, batch[i:i+1])
		if err != nil {
			r.logger.Debug("rerank item failed", "item", i, "err", err)
			continue
		}
		out[i] = s[0]
	}
	return out
}

func nanScores(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
