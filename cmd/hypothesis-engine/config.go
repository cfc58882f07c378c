// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pdiddy/hypothesis-engine/internal/secrets"
	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

const secretsDir = ".secrets/"

// engineFlags registers the engine settings on fs with defaults from
// types.DefaultEngineConfig and binds each to its config key.
func engineFlags(fs *pflag.FlagSet) {
	d := types.DefaultEngineConfig()

	fs.Int("num-hyps", d.Generation.NumHyps, "hypotheses per query")
	fs.Int("max-num-hops", d.Expansion.MaxHops, "maximum expansion hops")
	fs.Int("min-num-eres", d.Expansion.MinEREs, "stop expanding once this many EREs and min-num-stmts statements are reached")
	fs.Int("min-num-stmts", d.Expansion.MinStmts, "stop expanding once this many statements and min-num-eres EREs are reached")
	fs.Bool("attach-types", d.Expansion.AttachTypes, "add type statements of included EREs after expansion")
	fs.Bool("coref-compress", d.CorefCompress, "merge coreferent EREs before generation")
	fs.Int("max-seeds-per-frame", d.MaxSeedsPerFrame, "cap on candidate seeds per frame (0 = no cap)")
	fs.Int("max-hypothesis-size", d.Generation.MaxSize, "cap on statements per hypothesis (0 = no cap)")
	fs.Int("max-search-nodes", d.Generation.MaxNodes, "search budget per seed set")
	fs.StringSlice("multi-filler-roles", nil, "argument roles that may take several fillers")
	fs.Int("workers", d.Workers, "worker pool size (0 = number of CPUs)")

	fs.Float64("role-weight", d.Generation.Scoring.RoleWeight, "score per distinct argument role")
	fs.Float64("coverage-weight", d.Generation.Scoring.CoverageWeight, "score per statement up to target-size")
	fs.Float64("size-penalty", d.Generation.Scoring.SizePenalty, "penalty per statement beyond target-size")
	fs.Int("target-size", d.Generation.Scoring.TargetSize, "statement count where the size penalty starts")
	fs.Float64("confidence-weight", d.Generation.Scoring.ConfidenceWeight, "weight of mean statement confidence")

	fs.Bool("plaus-rerank", d.Rerank.Enabled, "rerank seed sets by plausibility before expansion")
	fs.String("rerank-device", string(d.Rerank.Device), "rerank backend: cpu or http")
	fs.String("rerank-model", d.Rerank.ModelPath, "YAML weights file for the cpu rerank backend")
	fs.String("rerank-endpoint", d.Rerank.Endpoint, "scoring service URL for the http rerank backend")
	fs.Duration("rerank-timeout", d.Rerank.Timeout, "timeout for one batched rerank call")
	fs.Int("rerank-keep", d.Rerank.Keep, "keep only the top seed sets after reranking (0 = all)")
	fs.Int("max-retries", d.Rerank.MaxRetries, "retries for the http rerank backend")

	for _, key := range engineKeys {
		viper.BindPFlag(key.config, fs.Lookup(key.flag))
	}
}

var engineKeys = []struct{ config, flag string }{
	{"num_hyps", "num-hyps"},
	{"max_num_hops", "max-num-hops"},
	{"min_num_eres", "min-num-eres"},
	{"min_num_stmts", "min-num-stmts"},
	{"attach_types", "attach-types"},
	{"coref_compress", "coref-compress"},
	{"max_seeds_per_frame", "max-seeds-per-frame"},
	{"max_hypothesis_size", "max-hypothesis-size"},
	{"max_search_nodes", "max-search-nodes"},
	{"multi_filler_roles", "multi-filler-roles"},
	{"workers", "workers"},
	{"scoring.role_weight", "role-weight"},
	{"scoring.coverage_weight", "coverage-weight"},
	{"scoring.size_penalty", "size-penalty"},
	{"scoring.target_size", "target-size"},
	{"scoring.confidence_weight", "confidence-weight"},
	{"plaus_rerank", "plaus-rerank"},
	{"rerank_device", "rerank-device"},
	{"rerank_model", "rerank-model"},
	{"rerank_endpoint", "rerank-endpoint"},
	{"rerank_timeout", "rerank-timeout"},
	{"rerank_keep", "rerank-keep"},
	{"max_retries", "max-retries"},
}

// engineConfig assembles and validates the engine settings from flags,
// environment, and config file. The rerank API key comes from
// HYPOTHESIS_ENGINE_RERANK_API_KEY or .secrets/rerank-api-key.
func engineConfig() (types.EngineConfig, error) {
	cfg := types.EngineConfig{
		Expansion: types.ExpansionConfig{
			MaxHops:     viper.GetInt("max_num_hops"),
			MinEREs:     viper.GetInt("min_num_eres"),
			MinStmts:    viper.GetInt("min_num_stmts"),
			AttachTypes: viper.GetBool("attach_types"),
		},
		Generation: types.GenerationConfig{
			Scoring: types.ScoringConfig{
				RoleWeight:       viper.GetFloat64("scoring.role_weight"),
				CoverageWeight:   viper.GetFloat64("scoring.coverage_weight"),
				SizePenalty:      viper.GetFloat64("scoring.size_penalty"),
				TargetSize:       viper.GetInt("scoring.target_size"),
				ConfidenceWeight: viper.GetFloat64("scoring.confidence_weight"),
			},
			NumHyps:          viper.GetInt("num_hyps"),
			MaxSize:          viper.GetInt("max_hypothesis_size"),
			MaxNodes:         viper.GetInt("max_search_nodes"),
			MultiFillerRoles: viper.GetStringSlice("multi_filler_roles"),
		},
		Rerank: types.RerankConfig{
			Enabled:    viper.GetBool("plaus_rerank"),
			Device:     types.RerankDevice(viper.GetString("rerank_device")),
			ModelPath:  viper.GetString("rerank_model"),
			Endpoint:   viper.GetString("rerank_endpoint"),
			Timeout:    viper.GetDuration("rerank_timeout"),
			Keep:       viper.GetInt("rerank_keep"),
			MaxRetries: viper.GetInt("max_retries"),
		},
		CorefCompress:    viper.GetBool("coref_compress"),
		MaxSeedsPerFrame: viper.GetInt("max_seeds_per_frame"),
		Workers:          viper.GetInt("workers"),
	}

	if cfg.Rerank.Enabled && cfg.Rerank.Device == types.DeviceHTTP {
		key, err := secrets.Lookup(secretsDir, secrets.RerankAPIKey, "HYPOTHESIS_ENGINE_RERANK_API_KEY")
		if err != nil {
			return cfg, err
		}
		cfg.Rerank.APIKey = key
	}
	return cfg, cfg.Validate()
}

// storeConfig returns the results store settings.
func storeConfig() types.StoreConfig {
	return types.StoreConfig{
		OutputDir:  viper.GetString("output_dir"),
		MaxResults: viper.GetInt("max_results"),
	}
}
