// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/hypothesis-engine/internal/coref"
	"github.com/pdiddy/hypothesis-engine/internal/graph"
	"github.com/pdiddy/hypothesis-engine/internal/kbio"
)

var compressCmd = &cobra.Command{
	Use:   "compress",
	Short: "Merge coreferent EREs and write the compressed KB",
	Long: `Compress collapses every coreference cluster onto its canonical ERE,
rewrites statement endpoints, and merges statements that become
duplicates. The result is written as a KB file whose merged EREs list the
ids they absorbed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		kbPath, _ := cmd.Flags().GetString("kb")
		clustersPath, _ := cmd.Flags().GetString("clusters")
		out, _ := cmd.Flags().GetString("out")
		return compress(os.Stdout, kbPath, clustersPath, out)
	},
}

func compress(w io.Writer, kbPath, clustersPath, out string) error {
	kb, err := kbio.ReadKB(kbPath)
	if err != nil {
		return err
	}
	clusters := kb.Clusters
	if clustersPath != "" {
		if clusters, err = kbio.ReadClusters(clustersPath); err != nil {
			return err
		}
	}

	g, err := graph.Load(kb.Raw())
	if err != nil {
		return fmt.Errorf("loading KB %s: %w", kbPath, err)
	}
	compressed, summary, err := coref.CompressWithSummary(g, clusters)
	if err != nil {
		return err
	}

	raw := compressed.Records()
	if err := kbio.WriteKB(out, kbio.KBFile{EREs: raw.EREs, Statements: raw.Statements}); err != nil {
		return err
	}
	fmt.Fprintf(w, "compressed %s -> %s\n", kbPath, out)
	fmt.Fprintf(w, "clusters: %d, merged EREs: %d, merged statements: %d (EREs %d -> %d, statements %d -> %d)\n",
		summary.Clusters, summary.MergedEREs, summary.MergedStatements,
		g.NumEREs(), compressed.NumEREs(), g.NumStatements(), compressed.NumStatements())
	return nil
}

func init() {
	compressCmd.Flags().String("kb", "", "knowledge base file (YAML or JSON)")
	compressCmd.Flags().String("clusters", "", "coreference clusters file (default: clusters in the KB file)")
	compressCmd.Flags().String("out", "compressed.yaml", "output KB file (.json writes JSON)")
	compressCmd.MarkFlagRequired("kb")

	rootCmd.AddCommand(compressCmd)
}
