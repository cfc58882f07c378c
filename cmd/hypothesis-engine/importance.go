// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pdiddy/hypothesis-engine/internal/coref"
	"github.com/pdiddy/hypothesis-engine/internal/graph"
	"github.com/pdiddy/hypothesis-engine/internal/importance"
	"github.com/pdiddy/hypothesis-engine/internal/kbio"
	"github.com/pdiddy/hypothesis-engine/internal/store"
	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

var importanceCmd = &cobra.Command{
	Use:   "importance",
	Short: "Write SPARQL importance updates for a stored query",
	Long: `Importance weighs the top hypotheses stored for one query and writes
SPARQL update files (hypothesis-NNN-update-NNNN.rq) that attach the
hypothesis, statement, and event or relation node weights to a triple
store.

The KB, clusters file, and compression setting default to those recorded
with the run.`,
	RunE: runImportance,
}

type importanceOptions struct {
	RunID    string
	QueryID  string
	FrameID  string
	KBPath   string
	Clusters string
	OutDir   string
	Top      int
	HopDecay float64
}

func runImportance(cmd *cobra.Command, args []string) error {
	var opts importanceOptions
	opts.RunID, _ = cmd.Flags().GetString("run")
	opts.QueryID, _ = cmd.Flags().GetString("query")
	opts.FrameID, _ = cmd.Flags().GetString("frame")
	opts.KBPath, _ = cmd.Flags().GetString("kb")
	opts.Clusters, _ = cmd.Flags().GetString("clusters")
	opts.OutDir, _ = cmd.Flags().GetString("out")
	opts.Top, _ = cmd.Flags().GetInt("top")
	opts.HopDecay, _ = cmd.Flags().GetFloat64("hop-decay")

	st, err := store.NewStore(storeConfig())
	if err != nil {
		return err
	}
	defer st.Close()
	return writeImportance(context.Background(), os.Stdout, st, opts)
}

func writeImportance(ctx context.Context, w io.Writer, st *store.Store, opts importanceOptions) error {
	var run store.Run
	runs, err := st.Runs(ctx)
	if err != nil {
		return err
	}
	for _, r := range runs {
		if opts.RunID == "" || opts.RunID == "latest" || r.ID == opts.RunID {
			run = r
			break
		}
	}
	if run.ID == "" {
		return fmt.Errorf("run %q not found", opts.RunID)
	}

	set, err := st.HypothesisSet(ctx, run.ID, opts.QueryID)
	if err != nil {
		return err
	}

	kbPath, clustersPath := opts.KBPath, opts.Clusters
	if kbPath == "" {
		kbPath = run.KBPath
	}
	if clustersPath == "" {
		clustersPath = run.ClustersPath
	}
	g, protos, err := workingGraph(kbPath, clustersPath, run.Config)
	if err != nil {
		return err
	}

	frameID := opts.FrameID
	if frameID == "" {
		frameID = opts.QueryID
		if set.Len() > 0 && set.Hypotheses[0].FrameID != "" {
			frameID = set.Hypotheses[0].FrameID
		}
	}
	outDir := opts.OutDir
	if outDir == "" {
		outDir = filepath.Join(storeConfig().OutputDir, "updates", opts.QueryID)
	}

	paths, err := importance.WriteUpdates(outDir, g, frameID, set, opts.Top, importance.Options{HopDecay: opts.HopDecay, Prototypes: protos})
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "run %s query %s: wrote %d update files to %s\n", run.ID, opts.QueryID, len(paths), outDir)
	return nil
}

// workingGraph rebuilds the graph a run generated against. Without
// compression it also returns the member-to-prototype map so node weights
// land on cluster prototypes either way.
func workingGraph(kbPath, clustersPath string, cfg types.EngineConfig) (*graph.Graph, map[string]string, error) {
	kb, err := kbio.ReadKB(kbPath)
	if err != nil {
		return nil, nil, err
	}
	clusters := kb.Clusters
	if clustersPath != "" {
		if clusters, err = kbio.ReadClusters(clustersPath); err != nil {
			return nil, nil, err
		}
	}
	g, err := graph.Load(kb.Raw())
	if err != nil {
		return nil, nil, fmt.Errorf("loading KB %s: %w", kbPath, err)
	}
	if !cfg.CorefCompress {
		return g, importance.Prototypes(g, clusters), nil
	}
	g, err = coref.Compress(g, clusters)
	if err != nil {
		return nil, nil, err
	}
	return g, nil, nil
}

func init() {
	importanceCmd.Flags().String("run", "latest", "run id (latest = most recent run)")
	importanceCmd.Flags().String("query", "", "SIN query id")
	importanceCmd.Flags().String("frame", "", "frame id used in hypothesis names (default: the hypotheses' frame)")
	importanceCmd.Flags().String("kb", "", "knowledge base file (default: the run's KB)")
	importanceCmd.Flags().String("clusters", "", "coreference clusters file (default: the run's clusters)")
	importanceCmd.Flags().String("out", "", "output directory (default: <output-dir>/updates/<query>)")
	importanceCmd.Flags().Int("top", 50, "number of top hypotheses to write (0 = all)")
	importanceCmd.Flags().Float64("hop-decay", importance.DefaultHopDecay, "hop distance over which statement importance falls by e")
	importanceCmd.MarkFlagRequired("query")

	rootCmd.AddCommand(importanceCmd)
}
