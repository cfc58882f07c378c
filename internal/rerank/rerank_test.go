// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package rerank

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/hypothesis-engine/internal/graph"
	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

func testGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g, err := graph.Load(types.RawGraph{
		EREs: []types.ERE{
			{ID: "E1", Category: types.CategoryEvent},
			{ID: "E2", Category: types.CategoryEvent},
			{ID: "P1", Category: types.CategoryEntity},
			{ID: "P2", Category: types.CategoryEntity},
			{ID: "P3", Category: types.CategoryEntity},
		},
		Statements: []types.Statement{
			{ID: "s1", Predicate: "Attack_Attacker", Subject: "E1", Object: "P1", Confidence: 0.5},
			{ID: "s2", Predicate: "Attack_Target", Subject: "E1", Object: "P2"},
			{ID: "s3", Predicate: "Meet_Participant", Subject: "E2", Object: "P2"},
			{ID: "s4", Predicate: "Meet_Participant", Subject: "E2", Object: "P3"},
			{ID: "t1", Predicate: types.TypePredicate, Subject: "E1", Literal: "Conflict.Attack"},
		},
	})
	require.NoError(t, err)
	return g
}

func seeds(ids ...string) []types.SeedSet {
	out := make([]types.SeedSet, len(ids))
	for i, id := range ids {
		out[i] = types.SeedSet{QueryID: "Q", FrameID: "f", EREs: []string{id}, Order: i, Score: 1}
	}
	return out
}

func orders(ss []types.SeedSet) []int {
	out := make([]int, len(ss))
	for i, s := range ss {
		out[i] = s.Order
	}
	return out
}

// fakeScorer scores items by their OneStep feature and can be told to fail.
type fakeScorer struct {
	calls     int32
	failBatch bool
	badItem   int
	nanItem   int
	delay     time.Duration
}

func (f *fakeScorer) ScoreBatch(ctx context.Context, batch []Features) ([]float64, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.failBatch && len(batch) > 1 {
		return nil, errors.New("device busy")
	}
	out := make([]float64, len(batch))
	for i, ft := range batch {
		switch {
		case f.badItem > 0 && ft.OneStep == f.badItem:
			return nil, errors.New("bad item")
		case f.nanItem > 0 && ft.OneStep == f.nanItem:
			out[i] = math.NaN()
		default:
			out[i] = float64(ft.OneStep) + float64(ft.TwoStep)/10
		}
	}
	return out, nil
}

func TestExtract(t *testing.T) {
	g := testGraph(t)

	f, err := Extract(g, types.SeedSet{EREs: []string{"E1"}})
	require.NoError(t, err)
	assert.Equal(t, Features{
		SeedSize:       1,
		OneStep:        2,
		TwoStep:        1,
		Roles:          2,
		TypeStatements: 1,
		MeanConfidence: 0.75,
	}, f)

	_, err = Extract(g, types.SeedSet{EREs: []string{"ghost"}})
	assert.ErrorIs(t, err, graph.ErrNotFound)
}

func TestRerankDisabled(t *testing.T) {
	in := seeds("E2", "E1")
	in[0].Score = 0.3

	out, outcome, err := Disabled().Rerank(context.Background(), testGraph(t), in)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, orders(out))
	assert.Equal(t, 1.0, out[0].Score)
	assert.Zero(t, outcome.Scored)
	assert.Equal(t, 0.3, in[0].Score, "input must not be modified")
}

func TestRerankSortsAndKeeps(t *testing.T) {
	g := testGraph(t)
	scorer := &fakeScorer{}

	out, outcome, err := New(scorer, types.RerankConfig{}, nil).Rerank(context.Background(), g, seeds("P3", "E1", "E2"))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 0}, orders(out))
	assert.Equal(t, 3, outcome.Scored)
	assert.Equal(t, int32(1), scorer.calls, "one batched call per query")

	out, _, err = New(scorer, types.RerankConfig{Keep: 1}, nil).Rerank(context.Background(), g, seeds("P3", "E1", "E2"))
	require.NoError(t, err)
	assert.Equal(t, []int{1}, orders(out))
}

func TestRerankFailureIsolation(t *testing.T) {
	tests := []struct {
		name         string
		scorer       *fakeScorer
		wantFailures int
		wantBatch    bool
		wantFirst    int
	}{
		{
			name:         "nan item",
			scorer:       &fakeScorer{nanItem: 1},
			wantFailures: 1,
			wantFirst:    1,
		},
		{
			name:         "batch fails, items succeed",
			scorer:       &fakeScorer{failBatch: true},
			wantFailures: 0,
			wantBatch:    true,
			wantFirst:    1,
		},
		{
			name:         "batch fails, one item fails",
			scorer:       &fakeScorer{failBatch: true, badItem: 1},
			wantFailures: 1,
			wantBatch:    true,
			wantFirst:    1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, outcome, err := New(tt.scorer, types.RerankConfig{}, nil).
				Rerank(context.Background(), testGraph(t), seeds("P3", "E1", "E2"))
			require.NoError(t, err)
			require.Len(t, out, 3)
			assert.Equal(t, tt.wantFailures, outcome.Failures)
			assert.Equal(t, tt.wantBatch, outcome.BatchFailed)
			assert.Equal(t, tt.wantFirst, out[0].Order)
			assert.Equal(t, 0, out[2].Order, "failed or weakest item ranks last")
		})
	}
}

// fixedScorer returns the same scores for every batch.
type fixedScorer []float64

func (f fixedScorer) ScoreBatch(_ context.Context, batch []Features) ([]float64, error) {
	return append([]float64(nil), f[:len(batch)]...), nil
}

func TestRerankFailedItemsRankLast(t *testing.T) {
	g := testGraph(t)
	scorer := fixedScorer{0.2, math.NaN(), 0.9, math.Inf(1)}

	out, outcome, err := New(scorer, types.RerankConfig{}, nil).Rerank(context.Background(), g, seeds("E2", "E1", "P1", "P2"))
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.Failures)
	assert.Equal(t, []int{2, 0, 1, 3}, orders(out))
	for _, s := range out[2:] {
		assert.Equal(t, 0.2, s.Score, "failed items take the lowest learned score")
	}

	out, _, err = New(scorer, types.RerankConfig{Keep: 1}, nil).Rerank(context.Background(), g, seeds("E2", "E1", "P1", "P2"))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, []string{"P1"}, out[0].EREs)
	assert.Equal(t, 0.9, out[0].Score)
}

func TestRerankAllItemsFailed(t *testing.T) {
	scorer := fixedScorer{math.NaN(), math.NaN()}

	out, outcome, err := New(scorer, types.RerankConfig{}, nil).Rerank(context.Background(), testGraph(t), seeds("P3", "E1"))
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.Failures)
	assert.Equal(t, []int{0, 1}, orders(out))
	for _, s := range out {
		assert.Equal(t, FallbackScore, s.Score)
	}
}

func TestRerankTimeoutFallsBack(t *testing.T) {
	scorer := &fakeScorer{delay: time.Second}
	r := New(scorer, types.RerankConfig{Timeout: 20 * time.Millisecond}, nil)

	out, outcome, err := r.Rerank(context.Background(), testGraph(t), seeds("P3", "E1"))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, orders(out))
	assert.Equal(t, 2, outcome.Failures)
	assert.Equal(t, int32(1), scorer.calls)
	for _, s := range out {
		assert.Equal(t, FallbackScore, s.Score)
	}
}

func TestRerankCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := New(&fakeScorer{}, types.RerankConfig{}, nil).Rerank(ctx, testGraph(t), seeds("E1"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLinearModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bias: 0\nweights:\n  one_step: 1\n"), 0o644))

	m, err := LoadLinearModel(path)
	require.NoError(t, err)

	scores, err := m.ScoreBatch(context.Background(), []Features{{}, {OneStep: 2}, {MeanConfidence: math.Inf(1)}})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, scores[0], 1e-9)
	assert.InDelta(t, 1/(1+math.Exp(-2)), scores[1], 1e-9)
	assert.InDelta(t, 0.5, scores[2], 1e-9, "zero weight ignores the infinite feature")

	require.NoError(t, os.WriteFile(path, []byte("weights:\n  one_stp: 1\n"), 0o644))
	_, err = LoadLinearModel(path)
	assert.ErrorContains(t, err, "unknown feature")
}

func TestRemote(t *testing.T) {
	var gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var req remoteRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, FeatureNames, req.Features)

		scores := make([]*float64, len(req.Items))
		for i, f := range req.Items {
			if f.SeedSize == 0 {
				continue
			}
			v := float64(f.OneStep)
			scores[i] = &v
		}
		json.NewEncoder(w).Encode(remoteResponse{Scores: scores})
	}))
	defer ts.Close()

	remote := &Remote{Endpoint: ts.URL, APIKey: "secret", MaxRetries: 1, Client: ts.Client()}
	scores, err := remote.ScoreBatch(context.Background(), []Features{{SeedSize: 1, OneStep: 3}, {}})
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, 3.0, scores[0])
	assert.True(t, math.IsNaN(scores[1]))
}

func TestRemoteThroughReranker(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req remoteRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if len(req.Items) > 1 {
			http.Error(w, "batch too large", http.StatusRequestEntityTooLarge)
			return
		}
		v := float64(req.Items[0].OneStep)
		json.NewEncoder(w).Encode(remoteResponse{Scores: []*float64{&v}})
	}))
	defer ts.Close()

	r, err := FromConfig(types.RerankConfig{Enabled: true, Device: types.DeviceHTTP, Endpoint: ts.URL, MaxRetries: 1}, nil)
	require.NoError(t, err)

	out, outcome, err := r.Rerank(context.Background(), testGraph(t), seeds("P3", "E1"))
	require.NoError(t, err)
	assert.True(t, outcome.BatchFailed)
	assert.Zero(t, outcome.Failures)
	assert.Equal(t, []int{1, 0}, orders(out))
}

func TestFromConfig(t *testing.T) {
	r, err := FromConfig(types.RerankConfig{}, nil)
	require.NoError(t, err)
	assert.False(t, r.Enabled())

	r, err = FromConfig(types.RerankConfig{Enabled: true, Device: types.DeviceCPU}, nil)
	require.NoError(t, err)
	assert.True(t, r.Enabled())

	_, err = FromConfig(types.RerankConfig{Enabled: true, Device: "tpu"}, nil)
	assert.Error(t, err)

	_, err = FromConfig(types.RerankConfig{Enabled: true, Device: types.DeviceCPU, ModelPath: "/nonexistent/model.yaml"}, nil)
	assert.Error(t, err)
}
