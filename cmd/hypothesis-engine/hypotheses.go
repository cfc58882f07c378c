// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/hypothesis-engine/internal/store"
)

var hypothesesCmd = &cobra.Command{
	Use:   "hypotheses",
	Short: "Query stored hypotheses (retrieve, export)",
	Long: `Hypotheses reads the SQLite store written by generate. Use
subcommands to list matching hypotheses or export them.`,
}

// --- retrieve subcommand ---

var hypothesesRetrieveCmd = &cobra.Command{
	Use:   "retrieve",
	Short: "List stored hypotheses matching filters",
	Long: `Retrieve lists stored hypotheses, newest run first, filtered by run,
query, contained statement, or minimum score.`,
	RunE: runHypothesesRetrieve,
}

func runHypothesesRetrieve(cmd *cobra.Command, args []string) error {
	st, err := store.NewStore(storeConfig())
	if err != nil {
		return err
	}
	defer st.Close()

	opts, err := queryOptsFromFlags(cmd, st)
	if err != nil {
		return err
	}
	results, err := st.Retrieve(context.Background(), opts)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatRetrieveOutput(os.Stdout, results, jsonOutput)
}

func formatRetrieveOutput(w io.Writer, results []store.QueryResult, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Fprintln(w, "No results found.")
		return nil
	}

	fmt.Fprintf(w, "%-8s  %-12s  %-4s  %-8s  %-5s  %-10s  %s\n",
		"Run", "Query", "Rank", "Score", "Roles", "Frame", "Statements")
	fmt.Fprintln(w, strings.Repeat("-", 90))

	for _, r := range results {
		query := r.QueryID
		if len(query) > 12 {
			query = query[:9] + "..."
		}
		frame := r.FrameID
		if len(frame) > 10 {
			frame = frame[:7] + "..."
		}
		stmts := strings.Join(r.Statements, ",")
		if len(stmts) > 40 {
			stmts = stmts[:37] + "..."
		}
		fmt.Fprintf(w, "%-8s  %-12s  %-4d  %-8.3f  %-5d  %-10s  %s\n",
			r.RunID[:min(8, len(r.RunID))], query, r.Rank, r.Score, r.Roles, frame, stmts)
	}

	fmt.Fprintf(w, "\n%d results\n", len(results))
	return nil
}

// --- export subcommand ---

var hypothesesExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored hypotheses to YAML or JSON",
	Long: `Export writes stored hypotheses (all, or a filtered subset) to
<output-dir>/index/export.yaml or export.json. Supports the same filter
flags as retrieve.`,
	RunE: runHypothesesExport,
}

func runHypothesesExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	st, err := store.NewStore(storeConfig())
	if err != nil {
		return err
	}
	defer st.Close()

	opts, err := queryOptsFromFlags(cmd, st)
	if err != nil {
		return err
	}

	var path string
	switch format {
	case "yaml", "":
		path, err = st.ExportYAML(context.Background(), opts)
	case "json":
		path, err = st.ExportJSON(context.Background(), opts)
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
	if err != nil {
		return err
	}
	fmt.Println("Exported to", path)
	return nil
}

// --- shared helpers ---

// queryOptsFromFlags reads the filter flags. --run latest names the most
// recent run.
func queryOptsFromFlags(cmd *cobra.Command, st *store.Store) (store.QueryOptions, error) {
	runID, _ := cmd.Flags().GetString("run")
	queryID, _ := cmd.Flags().GetString("query")
	stmtID, _ := cmd.Flags().GetString("statement")
	minScore, _ := cmd.Flags().GetFloat64("min-score")
	limit, _ := cmd.Flags().GetInt("limit")

	if runID == "latest" {
		run, err := st.LatestRun(context.Background())
		if err != nil {
			return store.QueryOptions{}, err
		}
		runID = run.ID
	}
	return store.QueryOptions{
		RunID:       runID,
		QueryID:     queryID,
		StatementID: stmtID,
		MinScore:    minScore,
		MaxResults:  limit,
	}, nil
}

func filterFlags(cmd *cobra.Command) {
	cmd.Flags().String("run", "", "filter by run id (latest = most recent run)")
	cmd.Flags().String("query", "", "filter by SIN query id")
	cmd.Flags().String("statement", "", "keep hypotheses containing this statement id")
	cmd.Flags().Float64("min-score", 0, "drop hypotheses scoring below this")
}

func init() {
	hypothesesCmd.PersistentFlags().Int("max-results", 50, "maximum number of query results")
	viper.BindPFlag("max_results", hypothesesCmd.PersistentFlags().Lookup("max-results"))

	filterFlags(hypothesesRetrieveCmd)
	hypothesesRetrieveCmd.Flags().Int("limit", 0, "maximum results (0 = use default)")
	hypothesesRetrieveCmd.Flags().Bool("json", false, "output results as JSON")

	filterFlags(hypothesesExportCmd)
	hypothesesExportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	hypothesesExportCmd.Flags().Int("limit", 0, "maximum hypotheses to export (0 = all)")

	hypothesesCmd.AddCommand(hypothesesRetrieveCmd)
	hypothesesCmd.AddCommand(hypothesesExportCmd)

	rootCmd.AddCommand(hypothesesCmd)
}
