// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/hypothesis-engine/internal/kbio"
	"github.com/pdiddy/hypothesis-engine/internal/store"
	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

const testKB = `eres:
  - {id: EV1, category: Event, types: [Conflict.Attack]}
  - {id: P1, category: Entity}
  - {id: P1b, category: Entity}
  - {id: P2, category: Entity}
statements:
  - {id: S1, predicate: Conflict.Attack_Attacker, subject: EV1, object: P1}
  - {id: S2, predicate: Conflict.Attack_Target, subject: EV1, object: P2}
  - {id: S3, predicate: Conflict.Attack_Attacker, subject: EV1, object: P1b}
  - {id: T1, predicate: type, subject: P1, literal: PER}
clusters:
  - {id: c1, members: [P1, P1b]}
`

const testQuery = `frames:
  - id: attack
    category: Event
    types: [Conflict]
`

type fixture struct {
	dir     string
	kb      string
	queries string
	out     string
}

func setup(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		dir:     dir,
		kb:      filepath.Join(dir, "kb.yaml"),
		queries: filepath.Join(dir, "queries"),
		out:     filepath.Join(dir, "output"),
	}
	require.NoError(t, os.WriteFile(f.kb, []byte(testKB), 0o644))
	require.NoError(t, os.MkdirAll(f.queries, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.queries, "Q1.yaml"), []byte(testQuery), 0o644))
	return f
}

func testEngineConfig() types.EngineConfig {
	cfg := types.DefaultEngineConfig()
	cfg.Expansion = types.ExpansionConfig{MaxHops: 2, MinEREs: 100, MinStmts: 100, AttachTypes: true}
	cfg.Generation.NumHyps = 3
	cfg.Workers = 2
	return cfg
}

func TestGenerate(t *testing.T) {
	f := setup(t)
	var buf bytes.Buffer
	opts := generateOptions{KBPath: f.kb, QueriesDir: f.queries, Format: "json"}

	err := generate(context.Background(), &buf, opts, testEngineConfig(), types.StoreConfig{OutputDir: f.out})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "loaded "+f.kb+" (4 EREs, 4 statements, 1 clusters)")
	assert.Contains(t, buf.String(), "done    Q1")

	var set types.HypothesisSet
	data, err := os.ReadFile(filepath.Join(f.out, "hypotheses", "Q1.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &set))
	assert.Equal(t, "Q1", set.QueryID)
	require.NotEmpty(t, set.Hypotheses)

	st, err := store.NewStore(types.StoreConfig{OutputDir: f.out})
	require.NoError(t, err)
	defer st.Close()
	stored, err := st.Retrieve(context.Background(), store.QueryOptions{QueryID: "Q1"})
	require.NoError(t, err)
	assert.Len(t, stored, set.Len())
}

func TestGenerateUsesSnapshotCache(t *testing.T) {
	f := setup(t)
	cfg := testEngineConfig()
	cfg.CorefCompress = true
	opts := generateOptions{KBPath: f.kb, QueriesDir: f.queries, CacheDir: filepath.Join(f.dir, "cache")}
	sc := types.StoreConfig{OutputDir: f.out}

	var first, second bytes.Buffer
	require.NoError(t, generate(context.Background(), &first, opts, cfg, sc))
	assert.NotContains(t, first.String(), "using cached")
	assert.Contains(t, first.String(), "compressed graph: 3 EREs")

	require.NoError(t, generate(context.Background(), &second, opts, cfg, sc))
	assert.Contains(t, second.String(), "using cached compressed graph")
	assert.Contains(t, second.String(), "compressed graph: 3 EREs")
}

func TestGenerateReportsFailedQuery(t *testing.T) {
	f := setup(t)
	bad := "frames:\n  - id: f1\n    entry_points: [ghost]\n"
	require.NoError(t, os.WriteFile(filepath.Join(f.queries, "Q2.yaml"), []byte(bad), 0o644))

	var buf bytes.Buffer
	err := generate(context.Background(), &buf, generateOptions{KBPath: f.kb, QueriesDir: f.queries},
		testEngineConfig(), types.StoreConfig{OutputDir: f.out})
	assert.ErrorContains(t, err, "1 query(ies) failed")
	assert.Contains(t, buf.String(), "failed  Q2")
	assert.FileExists(t, filepath.Join(f.out, "hypotheses", "Q1.yaml"))
}

func TestGenerateBadFormat(t *testing.T) {
	f := setup(t)
	err := generate(context.Background(), &bytes.Buffer{}, generateOptions{KBPath: f.kb, QueriesDir: f.queries, Format: "xml"},
		testEngineConfig(), types.StoreConfig{OutputDir: f.out})
	assert.ErrorContains(t, err, "unsupported format")
}

func TestWriteImportance(t *testing.T) {
	f := setup(t)
	sc := types.StoreConfig{OutputDir: f.out}
	require.NoError(t, generate(context.Background(), &bytes.Buffer{},
		generateOptions{KBPath: f.kb, QueriesDir: f.queries}, testEngineConfig(), sc))

	st, err := store.NewStore(sc)
	require.NoError(t, err)
	defer st.Close()

	var buf bytes.Buffer
	outDir := filepath.Join(f.dir, "updates")
	err = writeImportance(context.Background(), &buf, st, importanceOptions{RunID: "latest", QueryID: "Q1", OutDir: outDir, Top: 1})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "query Q1")
	assert.FileExists(t, filepath.Join(outDir, "hypothesis-001-update-0000.rq"))

	err = writeImportance(context.Background(), &buf, st, importanceOptions{RunID: "nope", QueryID: "Q1", OutDir: outDir})
	assert.ErrorContains(t, err, "not found")
}

func TestWriteImportanceUsesRunClusters(t *testing.T) {
	f := setup(t)
	clusters := filepath.Join(f.dir, "clusters.yaml")
	require.NoError(t, os.WriteFile(clusters, []byte("clusters: []\n"), 0o644))

	cfg := testEngineConfig()
	cfg.CorefCompress = true
	sc := types.StoreConfig{OutputDir: f.out}
	require.NoError(t, generate(context.Background(), &bytes.Buffer{},
		generateOptions{KBPath: f.kb, ClustersPath: clusters, QueriesDir: f.queries}, cfg, sc))

	st, err := store.NewStore(sc)
	require.NoError(t, err)
	defer st.Close()

	run, err := st.LatestRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, clusters, run.ClustersPath)

	set, err := st.HypothesisSet(context.Background(), run.ID, "Q1")
	require.NoError(t, err)
	var stmts []string
	for _, h := range set.Hypotheses {
		stmts = append(stmts, h.Statements...)
	}
	require.Contains(t, stmts, "S3", "uncompressed P1b filler must survive")

	var buf bytes.Buffer
	err = writeImportance(context.Background(), &buf, st, importanceOptions{QueryID: "Q1", OutDir: filepath.Join(f.dir, "updates")})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "query Q1")
}

func TestCompress(t *testing.T) {
	f := setup(t)
	out := filepath.Join(f.dir, "compressed.yaml")

	var buf bytes.Buffer
	require.NoError(t, compress(&buf, f.kb, "", out))
	assert.Contains(t, buf.String(), "merged EREs: 1")

	kb, err := kbio.ReadKB(out)
	require.NoError(t, err)
	assert.Len(t, kb.EREs, 3)
	assert.Empty(t, kb.Clusters)
}

func TestFormatRetrieveOutput(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, formatRetrieveOutput(&buf, nil, false))
	assert.Equal(t, "No results found.\n", buf.String())

	buf.Reset()
	results := []store.QueryResult{{
		RunID:      "0123456789abcdef",
		QueryID:    "Q1",
		Hypothesis: types.Hypothesis{Statements: []string{"S1", "S2"}, Score: 2, Roles: 2, Rank: 1, FrameID: "f1"},
	}}
	require.NoError(t, formatRetrieveOutput(&buf, results, false))
	assert.Contains(t, buf.String(), "01234567")
	assert.Contains(t, buf.String(), "S1,S2")
	assert.Contains(t, buf.String(), "1 results")
}
