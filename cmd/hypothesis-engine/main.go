// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the hypothesis-engine CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/hypothesis-engine/internal/logging"
)

// version is set at build time via ldflags.
var version = "dev"

// logger is configured in PersistentPreRunE from --debug.
var logger = log.Default()

// rootCmd is the base command for the hypothesis-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "hypothesis-engine",
	Short: "Generate ranked hypotheses from a knowledge graph",
	Long: `hypothesis-engine reads a knowledge graph of entities, relations, and
events, resolves each SIN query to seed nodes, expands a subgraph around
every seed, and searches it for connected, consistent hypotheses.

Results go to per-query YAML or JSON files and to a SQLite store that the
hypotheses and importance subcommands read back.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = logging.New(os.Stderr, viper.GetBool("debug"))
		if f := viper.ConfigFileUsed(); f != "" {
			logger.Debug("using config file", "path", f)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./hypothesis-engine.yaml or ~/.config/hypothesis-engine/config.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().String("output-dir", "output", "base directory for results (contains index/)")
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("output_dir", rootCmd.PersistentFlags().Lookup("output-dir"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("hypothesis-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "hypothesis-engine"))
		}
	}

	viper.SetEnvPrefix("HYPOTHESIS_ENGINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil && cfgFile != "" {
		fmt.Fprintln(os.Stderr, "Reading config file:", err)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
