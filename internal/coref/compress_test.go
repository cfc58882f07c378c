// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package coref

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/hypothesis-engine/internal/graph"
	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

// twoDocGraph models two documents reporting the same attack: events EV1
// and EV2 corefer, as do attackers A1 and A2.
func twoDocGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g, err := graph.Load(types.RawGraph{
		EREs: []types.ERE{
			{ID: "EV1", Category: types.CategoryEvent, Names: []string{"attack"}, Provenance: []string{"doc1:10-16"}},
			{ID: "EV2", Category: types.CategoryEvent, Names: []string{"strike"}, Provenance: []string{"doc2:4-10"}},
			{ID: "A1", Category: types.CategoryEntity, Names: []string{"Alpha"}},
			{ID: "A2", Category: types.CategoryEntity, Names: []string{"Alpha Group"}},
			{ID: "T1", Category: types.CategoryEntity, Names: []string{"Bridge"}},
		},
		Statements: []types.Statement{
			{ID: "s1", Predicate: "Attack_Attacker", Subject: "EV1", Object: "A1", Provenance: []string{"doc1"}, Confidence: 0.6},
			{ID: "s2", Predicate: "Attack_Attacker", Subject: "EV2", Object: "A2", Provenance: []string{"doc2"}, Confidence: 0.9},
			{ID: "s3", Predicate: "Attack_Target", Subject: "EV2", Object: "T1"},
			{ID: "t1", Predicate: types.TypePredicate, Subject: "EV1", Literal: "Conflict.Attack"},
			{ID: "t2", Predicate: types.TypePredicate, Subject: "EV2", Literal: "Conflict.Attack"},
		},
	})
	require.NoError(t, err)
	return g
}

func sampleClusters() []types.Cluster {
	return []types.Cluster{
		{ID: "c-event", Members: []string{"EV2", "EV1"}},
		{ID: "c-alpha", Members: []string{"A2", "A1"}},
	}
}

func TestCompress(t *testing.T) {
	g := twoDocGraph(t)

	out, summary, err := CompressWithSummary(g, sampleClusters())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Clusters)
	assert.Equal(t, 2, summary.MergedEREs)
	assert.Equal(t, 2, summary.MergedStatements)

	assert.Equal(t, []string{"A1", "EV1", "T1"}, out.EREIDs())
	assert.Equal(t, []string{"s1", "s3", "t1"}, out.StatementIDs())

	s1, err := out.Statement("s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"doc1", "doc2"}, s1.Provenance)
	assert.Equal(t, 0.9, s1.Confidence)

	s3, err := out.Statement("s3")
	require.NoError(t, err)
	assert.Equal(t, "EV1", s3.Subject)

	ev, err := out.ERE("EV1")
	require.NoError(t, err)
	assert.Equal(t, []string{"attack", "strike"}, ev.Names)
	assert.Equal(t, []string{"EV1", "EV2"}, ev.Members)
	assert.Equal(t, []string{"doc1:10-16", "doc2:4-10"}, ev.Provenance)

	id, ok := out.Resolve("A2")
	assert.True(t, ok)
	assert.Equal(t, "A1", id)
}

func TestCompressLeavesOriginalIntact(t *testing.T) {
	g := twoDocGraph(t)

	_, err := Compress(g, sampleClusters())
	require.NoError(t, err)

	assert.Equal(t, 5, g.NumEREs())
	assert.Equal(t, 5, g.NumStatements())
	s2, err := g.Statement("s2")
	require.NoError(t, err)
	assert.Equal(t, "EV2", s2.Subject)
}

func TestCompressNoDanglingEndpoints(t *testing.T) {
	out, err := Compress(twoDocGraph(t), sampleClusters())
	require.NoError(t, err)

	for _, id := range out.StatementIDs() {
		s, err := out.Statement(id)
		require.NoError(t, err)
		assert.True(t, out.HasERE(s.Subject), "statement %s subject %s", id, s.Subject)
		if s.Object != "" {
			assert.True(t, out.HasERE(s.Object), "statement %s object %s", id, s.Object)
		}
	}
}

func TestCompressIdempotent(t *testing.T) {
	first, err := Compress(twoDocGraph(t), sampleClusters())
	require.NoError(t, err)

	second, summary, err := CompressWithSummary(first, sampleClusters())
	require.NoError(t, err)

	assert.Equal(t, first.EREIDs(), second.EREIDs())
	assert.Equal(t, first.StatementIDs(), second.StatementIDs())
	assert.Equal(t, first.Records(), second.Records())
	assert.Zero(t, summary.MergedEREs)
	assert.Zero(t, summary.MergedStatements)
}

func TestCompressKeepsUnrelatedDuplicates(t *testing.T) {
	g, err := graph.Load(types.RawGraph{
		EREs: []types.ERE{
			{ID: "E1", Category: types.CategoryEvent},
			{ID: "P1", Category: types.CategoryEntity},
			{ID: "P2", Category: types.CategoryEntity},
			{ID: "P3", Category: types.CategoryEntity},
		},
		Statements: []types.Statement{
			{ID: "a", Predicate: "Meet_Participant", Subject: "E1", Object: "P1"},
			{ID: "b", Predicate: "Meet_Participant", Subject: "E1", Object: "P1"},
		},
	})
	require.NoError(t, err)

	out, err := Compress(g, []types.Cluster{{ID: "c", Members: []string{"P2", "P3"}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, out.StatementIDs())
	assert.Equal(t, []string{"E1", "P1", "P2"}, out.EREIDs())
}

func TestCompressInvalidClusters(t *testing.T) {
	tests := []struct {
		name     string
		clusters []types.Cluster
	}{
		{
			name: "overlapping clusters",
			clusters: []types.Cluster{
				{ID: "c1", Members: []string{"A1", "A2"}},
				{ID: "c2", Members: []string{"A2", "T1"}},
			},
		},
		{
			name:     "mixed categories",
			clusters: []types.Cluster{{ID: "c1", Members: []string{"EV1", "A1"}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compress(twoDocGraph(t), tt.clusters)
			assert.ErrorIs(t, err, graph.ErrMalformedGraph)
		})
	}
}

func TestCompressSkipsUnknownMembers(t *testing.T) {
	g := twoDocGraph(t)
	out, summary, err := CompressWithSummary(g, []types.Cluster{{ID: "c", Members: []string{"ghost", "A1"}}})
	require.NoError(t, err)
	assert.Zero(t, summary.Clusters)
	assert.Equal(t, g.EREIDs(), out.EREIDs())
}
