// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pdiddy/hypothesis-engine/internal/graph"
	"github.com/pdiddy/hypothesis-engine/internal/kbio"
	"github.com/pdiddy/hypothesis-engine/internal/pipeline"
	"github.com/pdiddy/hypothesis-engine/internal/rerank"
	"github.com/pdiddy/hypothesis-engine/internal/snapshot"
	"github.com/pdiddy/hypothesis-engine/internal/store"
	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate ranked hypotheses for a directory of SIN queries",
	Long: `Generate loads a knowledge base, optionally compresses coreferent
EREs, and runs every SIN query in --queries through seed resolution,
subgraph expansion, and hypothesis search.

Each query's ranked hypotheses are written to <output-dir>/hypotheses/
and the whole run is saved to <output-dir>/index/hypotheses.db. Failed
queries are reported and recorded; the others still complete.`,
	RunE: runGenerate,
}

type generateOptions struct {
	KBPath       string
	ClustersPath string
	QueriesDir   string
	Format       string
	CacheDir     string
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := engineConfig()
	if err != nil {
		return err
	}
	opts := generateOptions{}
	opts.KBPath, _ = cmd.Flags().GetString("kb")
	opts.ClustersPath, _ = cmd.Flags().GetString("clusters")
	opts.QueriesDir, _ = cmd.Flags().GetString("queries")
	opts.Format, _ = cmd.Flags().GetString("format")
	opts.CacheDir, _ = cmd.Flags().GetString("cache-dir")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return generate(ctx, os.Stdout, opts, cfg, storeConfig())
}

// generate runs one batch and reports progress lines to w.
func generate(ctx context.Context, w io.Writer, opts generateOptions, cfg types.EngineConfig, sc types.StoreConfig) error {
	ext, err := outputExt(opts.Format)
	if err != nil {
		return err
	}

	kb, err := kbio.ReadKB(opts.KBPath)
	if err != nil {
		return err
	}
	clusters := kb.Clusters
	if opts.ClustersPath != "" {
		if clusters, err = kbio.ReadClusters(opts.ClustersPath); err != nil {
			return err
		}
	}
	queries, err := kbio.ReadQueries(opts.QueriesDir)
	if err != nil {
		return err
	}

	raw := kb.Raw()
	g, err := graph.Load(raw)
	if err != nil {
		return fmt.Errorf("loading KB %s: %w", opts.KBPath, err)
	}
	fmt.Fprintf(w, "loaded %s (%d EREs, %d statements, %d clusters)\n",
		opts.KBPath, g.NumEREs(), g.NumStatements(), len(clusters))

	reranker, err := rerank.FromConfig(cfg.Rerank, logger)
	if err != nil {
		return err
	}
	engineOpts := []pipeline.Option{
		pipeline.WithClusters(clusters),
		pipeline.WithReranker(reranker),
		pipeline.WithLogger(logger),
	}

	var (
		cache    *snapshot.Cache
		cacheKey string
		cacheHit bool
	)
	if cfg.CorefCompress && opts.CacheDir != "" {
		cache, err = snapshot.Open(opts.CacheDir)
		if err != nil {
			return err
		}
		defer cache.Close()
		if cacheKey, err = snapshot.Key(raw, clusters); err != nil {
			return err
		}
		cached, ok, err := cache.Get(cacheKey)
		if err != nil {
			return err
		}
		if ok {
			compressed, err := graph.Load(cached)
			if err != nil {
				return fmt.Errorf("loading cached snapshot %s: %w", cacheKey, err)
			}
			engineOpts = append(engineOpts, pipeline.WithCompressed(compressed))
			cacheHit = true
			fmt.Fprintf(w, "using cached compressed graph %s\n", cacheKey[:12])
		}
	}

	engine, err := pipeline.New(g, cfg, engineOpts...)
	if err != nil {
		return err
	}
	if cache != nil && !cacheHit {
		if err := cache.Put(cacheKey, engine.Graph().Records()); err != nil {
			logger.Warn("snapshot cache write failed", "err", err)
		}
	}
	if cfg.CorefCompress {
		fmt.Fprintf(w, "compressed graph: %d EREs, %d statements\n",
			engine.Graph().NumEREs(), engine.Graph().NumStatements())
	}

	results, runErr := engine.Run(ctx, queries)

	outDir := filepath.Join(sc.OutputDir, "hypotheses")
	records := make([]store.QueryRecord, 0, len(results))
	for _, res := range results {
		records = append(records, store.QueryRecord{Set: res.Set, Seeds: res.Stats.Seeds, Err: res.Err})
		if res.Err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", res.Query.ID, res.Err)
			continue
		}
		path, err := kbio.WriteHypotheses(outDir, ext, res.Set)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "done    %s (%d hypotheses from %d seeds) -> %s\n",
			res.Query.ID, res.Set.Len(), res.Stats.Seeds, path)
	}

	st, err := store.NewStore(sc)
	if err != nil {
		return err
	}
	defer st.Close()

	run := store.NewRun(opts.KBPath, cfg)
	run.ClustersPath = opts.ClustersPath
	summary, err := st.SaveRun(context.WithoutCancel(ctx), run, records)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\nrun %s: %d queries, %d hypotheses, %d failed (dropped: %d)\n",
		run.ID, summary.Queries, summary.Hypotheses, summary.Failed, len(queries)-len(results))

	if runErr != nil {
		return fmt.Errorf("generation interrupted: %w", runErr)
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d query(ies) failed", summary.Failed)
	}
	return nil
}

func outputExt(format string) (string, error) {
	switch format {
	case "yaml", "":
		return ".yaml", nil
	case "json":
		return ".json", nil
	default:
		return "", fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
}

func init() {
	generateCmd.Flags().String("kb", "", "knowledge base file (YAML or JSON)")
	generateCmd.Flags().String("clusters", "", "coreference clusters file (default: clusters in the KB file)")
	generateCmd.Flags().String("queries", "", "directory of SIN query files")
	generateCmd.Flags().String("format", "yaml", "hypothesis file format: yaml or json")
	generateCmd.Flags().String("cache-dir", filepath.Join("output", "cache"), "compressed graph cache (empty disables)")
	generateCmd.MarkFlagRequired("kb")
	generateCmd.MarkFlagRequired("queries")
	engineFlags(generateCmd.Flags())

	rootCmd.AddCommand(generateCmd)
}
