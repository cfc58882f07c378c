// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs the hypothesis engine over a batch of SIN queries:
// seed resolution and reranking per query, then expansion and generation
// per (query, seed set) task on a bounded worker pool, then a per-query
// merge into a ranked hypothesis set.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/hypothesis-engine/internal/coref"
	"github.com/pdiddy/hypothesis-engine/internal/expand"
	"github.com/pdiddy/hypothesis-engine/internal/graph"
	"github.com/pdiddy/hypothesis-engine/internal/hypothesis"
	"github.com/pdiddy/hypothesis-engine/internal/rerank"
	"github.com/pdiddy/hypothesis-engine/internal/seed"
	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

// Engine holds the shared read-only graph and the settings for a batch.
// It is safe to call Run concurrently.
type Engine struct {
	original *graph.Graph
	g        *graph.Graph
	cfg      types.EngineConfig

	clusters   []types.Cluster
	compressed *graph.Graph
	summary    coref.Summary

	reranker *rerank.Reranker
	logger   *log.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClusters supplies the coreference clusters used when CorefCompress
// is set.
func WithClusters(clusters []types.Cluster) Option {
	return func(e *Engine) { e.clusters = clusters }
}

// WithCompressed supplies an already-compressed graph, for example one
// restored from the snapshot cache. It is used instead of compressing
// again when CorefCompress is set.
func WithCompressed(g *graph.Graph) Option {
	return func(e *Engine) { e.compressed = g }
}

// WithReranker sets the seed reranker. The default is rerank.Disabled().
func WithReranker(r *rerank.Reranker) Option {
	return func(e *Engine) { e.reranker = r }
}

// WithLogger sets the logger. The default is the charmbracelet default
// logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New validates cfg and prepares the working graph: g itself, or its
// coreference-compressed derivative when cfg.CorefCompress is set. The
// uncompressed graph stays available through Original.
func New(g *graph.Graph, cfg types.EngineConfig, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	e := &Engine{original: g, g: g, cfg: cfg}
	for _, opt := range opts {
		opt(e)
	}
	if e.reranker == nil {
		e.reranker = rerank.Disabled()
	}
	if e.logger == nil {
		e.logger = log.Default()
	}

	if cfg.CorefCompress {
		switch {
		case e.compressed != nil:
			e.g = e.compressed
		default:
			out, summary, err := coref.CompressWithSummary(g, e.clusters)
			if err != nil {
				return nil, fmt.Errorf("compressing graph: %w", err)
			}
			e.g, e.summary = out, summary
			e.logger.Info("compressed graph",
				"clusters", summary.Clusters,
				"merged_eres", summary.MergedEREs,
				"merged_statements", summary.MergedStatements)
		}
	}
	return e, nil
}

// Graph returns the working graph.
func (e *Engine) Graph() *graph.Graph { return e.g }

// Original returns the graph as loaded, before compression.
func (e *Engine) Original() *graph.Graph { return e.original }

// Compression returns the summary of the compression done by New.
func (e *Engine) Compression() coref.Summary { return e.summary }

// Stats summarizes the work done for one query.
type Stats struct {
	Seeds int

	// Nodes is the total search nodes completed across seed sets.
	Nodes int

	// Exhausted is set when fewer than num_hyps hypotheses were produced.
	Exhausted bool

	// BudgetHit counts seed sets whose search hit the node budget.
	BudgetHit int

	Rerank rerank.Outcome
}

// Result is the outcome of one query. Err is set when a structural error
// (unknown anchor, malformed subgraph) failed the query; Set is then empty.
type Result struct {
	Query   types.SINQuery
	Set     types.HypothesisSet
	Seeds   []types.SeedSet
	Stats   Stats
	Err     error
	Elapsed time.Duration
}

type seedOutput struct {
	hyps  []types.Hypothesis
	stats hypothesis.Stats
	err   error
}

type queryState struct {
	seeds     []types.SeedSet
	outcome   rerank.Outcome
	err       error
	cancelled bool
	outputs   []seedOutput
	start     time.Time
}

// Run processes queries and returns one Result per completed query, in
// input order. A query with no seeds or no hypotheses yields an empty set,
// not an error. When ctx is cancelled, queries that did not finish are
// dropped and Run returns the finished results together with ctx.Err().
func (e *Engine) Run(ctx context.Context, queries []types.SINQuery) ([]Result, error) {
	workers := e.cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	states := make([]*queryState, len(queries))
	for i := range states {
		states[i] = &queryState{start: time.Now()}
	}

	// Phase 1: seeds and one batched rerank per query.
	var eg errgroup.Group
	eg.SetLimit(workers)
	for i, q := range queries {
		st := states[i]
		eg.Go(func() error {
			if ctx.Err() != nil {
				st.cancelled = true
				return nil
			}
			seeds, err := seed.Resolve(e.g, q, seed.Options{MaxSeedsPerFrame: e.cfg.MaxSeedsPerFrame})
			if err != nil {
				st.err = err
				return nil
			}
			seeds, outcome, err := e.reranker.Rerank(ctx, e.g, seeds)
			if err != nil {
				if ctx.Err() != nil {
					st.cancelled = true
				} else {
					st.err = err
				}
				return nil
			}
			st.seeds, st.outcome = seeds, outcome
			st.outputs = make([]seedOutput, len(seeds))
			return nil
		})
	}
	eg.Wait()

	// Phase 2: one task per (query, seed set).
	expandOpts := expand.OptionsFrom(e.cfg.Expansion)
	genCfg := hypothesis.ConfigFrom(e.cfg.Generation)
	numHyps := e.cfg.Generation.NumHyps

	eg = errgroup.Group{}
	eg.SetLimit(workers)
	for i := range queries {
		st := states[i]
		if st.err != nil || st.cancelled {
			continue
		}
		for k := range st.seeds {
			out := &st.outputs[k]
			s := st.seeds[k]
			position := k
			eg.Go(func() error {
				if ctx.Err() != nil {
					out.err = ctx.Err()
					return nil
				}
				out.hyps, out.stats, out.err = e.runSeed(s, position, expandOpts, genCfg, numHyps)
				return nil
			})
		}
	}
	eg.Wait()

	// Phase 3: merge per query.
	results := make([]Result, 0, len(queries))
	for i, q := range queries {
		st := states[i]
		if ctx.Err() != nil && !st.finished() {
			continue
		}
		res := e.merge(q, st, numHyps)
		e.logResult(res)
		results = append(results, res)
	}
	return results, ctx.Err()
}

// runSeed expands one seed set and generates its hypotheses. position is
// the seed's rank after reranking and orders ties across seeds.
func (e *Engine) runSeed(s types.SeedSet, position int, opts expand.Options, cfg hypothesis.Config, numHyps int) ([]types.Hypothesis, hypothesis.Stats, error) {
	sub, err := expand.Expand(e.g, s.EREs, opts)
	if err != nil {
		return nil, hypothesis.Stats{}, fmt.Errorf("seed %v: %w", s.EREs, err)
	}
	hyps, stats, err := hypothesis.Generate(sub, numHyps, cfg)
	if err != nil {
		return nil, stats, fmt.Errorf("seed %v: %w", s.EREs, err)
	}
	for i := range hyps {
		hyps[i].FrameID = s.FrameID
		hyps[i].SeedOrder = position
	}
	e.logger.Debug("seed done",
		"query", s.QueryID,
		"frame", s.FrameID,
		"seed", s.EREs,
		"hops", sub.Hops,
		"stop", sub.Stop,
		"eres", sub.NumEREs(),
		"statements", sub.NumStatements(),
		"hypotheses", len(hyps))
	return hyps, stats, nil
}

// finished reports whether every task of the query ran to completion.
func (st *queryState) finished() bool {
	if st.cancelled {
		return false
	}
	if st.err != nil {
		return true
	}
	for _, o := range st.outputs {
		if errors.Is(o.err, context.Canceled) || errors.Is(o.err, context.DeadlineExceeded) {
			return false
		}
	}
	return true
}

func (e *Engine) merge(q types.SINQuery, st *queryState, numHyps int) Result {
	res := Result{
		Query:   q,
		Set:     types.HypothesisSet{QueryID: q.ID, Hypotheses: []types.Hypothesis{}},
		Seeds:   st.seeds,
		Elapsed: time.Since(st.start),
		Stats:   Stats{Seeds: len(st.seeds), Rerank: st.outcome},
	}
	if st.err != nil {
		res.Err = st.err
		return res
	}

	var all []types.Hypothesis
	for _, o := range st.outputs {
		if o.err != nil {
			res.Err = o.err
			return res
		}
		all = append(all, o.hyps...)
		res.Stats.Nodes += o.stats.Nodes
		if o.stats.BudgetHit {
			res.Stats.BudgetHit++
		}
	}

	types.RankHypotheses(all)
	seen := make(map[string]bool, len(all))
	for _, h := range all {
		if len(res.Set.Hypotheses) == numHyps {
			break
		}
		key := h.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		h.Rank = len(res.Set.Hypotheses) + 1
		res.Set.Hypotheses = append(res.Set.Hypotheses, h)
	}
	res.Stats.Exhausted = len(res.Set.Hypotheses) < numHyps
	return res
}

func (e *Engine) logResult(res Result) {
	if res.Err != nil {
		e.logger.Error("query failed", "query", res.Query.ID, "err", res.Err)
		return
	}
	e.logger.Info("query done",
		"query", res.Query.ID,
		"seeds", res.Stats.Seeds,
		"hypotheses", res.Set.Len(),
		"rerank_failures", res.Stats.Rerank.Failures,
		"elapsed", res.Elapsed.Round(time.Millisecond))
}
