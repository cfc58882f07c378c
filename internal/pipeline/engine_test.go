// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/hypothesis-engine/internal/graph"
	"github.com/pdiddy/hypothesis-engine/internal/logging"
	"github.com/pdiddy/hypothesis-engine/internal/rerank"
	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

// twoAttacks has two attack events sharing a target, and a duplicate
// attacker mention that coreference resolves.
func twoAttacks(t *testing.T) *graph.Graph {
	t.Helper()
	g, err := graph.Load(types.RawGraph{
		EREs: []types.ERE{
			{ID: "EV1", Category: types.CategoryEvent, Types: []string{"Conflict.Attack"}},
			{ID: "EV2", Category: types.CategoryEvent, Types: []string{"Conflict.Attack"}},
			{ID: "P1", Category: types.CategoryEntity},
			{ID: "P1b", Category: types.CategoryEntity},
			{ID: "P2", Category: types.CategoryEntity},
			{ID: "P3", Category: types.CategoryEntity},
		},
		Statements: []types.Statement{
			{ID: "S1", Predicate: "Conflict.Attack_Attacker", Subject: "EV1", Object: "P1"},
			{ID: "S2", Predicate: "Conflict.Attack_Target", Subject: "EV1", Object: "P2"},
			{ID: "S3", Predicate: "Conflict.Attack_Attacker", Subject: "EV1", Object: "P3"},
			{ID: "S4", Predicate: "Conflict.Attack_Attacker", Subject: "EV2", Object: "P1b"},
			{ID: "S5", Predicate: "Conflict.Attack_Target", Subject: "EV2", Object: "P2"},
			{ID: "T1", Predicate: types.TypePredicate, Subject: "P1", Literal: "PER"},
		},
	})
	require.NoError(t, err)
	return g
}

func testConfig() types.EngineConfig {
	cfg := types.DefaultEngineConfig()
	cfg.Expansion = types.ExpansionConfig{MaxHops: 2, MinEREs: 100, MinStmts: 100, AttachTypes: true}
	cfg.Generation.NumHyps = 3
	cfg.Workers = 4
	return cfg
}

func attackQuery(id string, anchors ...string) types.SINQuery {
	return types.SINQuery{ID: id, Frames: []types.FrameConstraint{
		{ID: "f1", Category: types.CategoryEvent, Types: []string{"Conflict"}, EntryPoints: anchors},
	}}
}

func newEngine(t *testing.T, g *graph.Graph, cfg types.EngineConfig, opts ...Option) *Engine {
	t.Helper()
	opts = append(opts, WithLogger(logging.Discard()))
	e, err := New(g, cfg, opts...)
	require.NoError(t, err)
	return e
}

func TestRun(t *testing.T) {
	e := newEngine(t, twoAttacks(t), testConfig())

	results, err := e.Run(context.Background(), []types.SINQuery{
		attackQuery("Q1"),
		{ID: "Q2", Frames: []types.FrameConstraint{{ID: "f1", Types: []string{"Justice"}}}},
		attackQuery("Q3", "ghost"),
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	q1 := results[0]
	require.NoError(t, q1.Err)
	assert.Equal(t, "Q1", q1.Set.QueryID)
	assert.Equal(t, 2, q1.Stats.Seeds)
	require.NotEmpty(t, q1.Set.Hypotheses)
	assert.LessOrEqual(t, q1.Set.Len(), 3)

	keys := make(map[string]bool)
	for i, h := range q1.Set.Hypotheses {
		assert.Equal(t, i+1, h.Rank)
		assert.Equal(t, "f1", h.FrameID)
		assert.False(t, keys[h.Key()], "duplicate across seeds: %v", h.Statements)
		keys[h.Key()] = true
		if i > 0 {
			assert.GreaterOrEqual(t, q1.Set.Hypotheses[i-1].Score, h.Score)
		}
	}

	q2 := results[1]
	require.NoError(t, q2.Err)
	assert.Equal(t, 0, q2.Set.Len())
	assert.NotNil(t, q2.Set.Hypotheses)
	assert.True(t, q2.Stats.Exhausted)

	q3 := results[2]
	assert.ErrorIs(t, q3.Err, graph.ErrNotFound)
	assert.Equal(t, 0, q3.Set.Len())
}

func TestRunDeterministicAcrossWorkers(t *testing.T) {
	g := twoAttacks(t)
	queries := []types.SINQuery{attackQuery("Q1"), attackQuery("Q2", "P2")}

	var want []types.HypothesisSet
	for _, workers := range []int{1, 2, 8} {
		cfg := testConfig()
		cfg.Workers = workers
		results, err := newEngine(t, g, cfg).Run(context.Background(), queries)
		require.NoError(t, err)

		var sets []types.HypothesisSet
		for _, r := range results {
			sets = append(sets, r.Set)
		}
		if want == nil {
			want = sets
			continue
		}
		assert.Equal(t, want, sets, "workers=%d", workers)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := newEngine(t, twoAttacks(t), testConfig()).Run(ctx, []types.SINQuery{attackQuery("Q1")})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}

func TestRunWithCompression(t *testing.T) {
	g := twoAttacks(t)
	cfg := testConfig()
	cfg.CorefCompress = true
	clusters := []types.Cluster{{ID: "c1", Members: []string{"P1", "P1b"}}}

	e := newEngine(t, g, cfg, WithClusters(clusters))
	assert.Same(t, g, e.Original())
	assert.NotSame(t, g, e.Graph())
	assert.Equal(t, 1, e.Compression().MergedEREs)
	assert.True(t, e.Original().HasERE("P1b"))
	assert.False(t, e.Graph().HasERE("P1b"))

	results, err := e.Run(context.Background(), []types.SINQuery{attackQuery("Q1", "P1b")})
	require.NoError(t, err)
	require.NoError(t, results[0].Err)
	assert.Equal(t, 2, results[0].Stats.Seeds, "P1b resolves to P1, which attacks in both events")
}

func TestRunWithPrecompressed(t *testing.T) {
	g := twoAttacks(t)
	cfg := testConfig()
	cfg.CorefCompress = true

	e := newEngine(t, g, cfg, WithCompressed(g))
	assert.Same(t, g, e.Graph())
	assert.Zero(t, e.Compression().MergedEREs)
}

type constScorer struct{ scores []float64 }

func (c constScorer) ScoreBatch(_ context.Context, batch []rerank.Features) ([]float64, error) {
	return c.scores[:len(batch)], nil
}

func TestRunWithReranker(t *testing.T) {
	cfg := testConfig()
	cfg.Rerank = types.RerankConfig{Enabled: true, Keep: 1}
	rr := rerank.New(constScorer{scores: []float64{0.1, 0.9}}, cfg.Rerank, logging.Discard())

	results, err := newEngine(t, twoAttacks(t), cfg, WithReranker(rr)).Run(context.Background(), []types.SINQuery{attackQuery("Q1")})
	require.NoError(t, err)
	require.Len(t, results[0].Seeds, 1)
	assert.Equal(t, []string{"EV2"}, results[0].Seeds[0].EREs)
	assert.Equal(t, 2, results[0].Stats.Rerank.Scored)
	for _, h := range results[0].Set.Hypotheses {
		assert.Equal(t, []string{"EV2"}, h.Seed)
	}
}

func TestNewInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Generation.NumHyps = 0
	_, err := New(twoAttacks(t), cfg)
	assert.ErrorContains(t, err, "num_hyps")
}
