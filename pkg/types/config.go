// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"time"
)

// ExpansionConfig holds the subgraph expansion stop thresholds.
type ExpansionConfig struct {
	// MaxHops bounds the number of breadth-first hops (must be positive).
	MaxHops int `json:"max_num_hops" yaml:"max_num_hops"`

	// MinEREs and MinStmts allow an early stop once both are reached.
	MinEREs  int `json:"min_num_eres" yaml:"min_num_eres"`
	MinStmts int `json:"min_num_stmts" yaml:"min_num_stmts"`

	// AttachTypes adds the type statements of every included ERE after
	// expansion stops.
	AttachTypes bool `json:"attach_types" yaml:"attach_types"`
}

// ScoringConfig holds the structural score weights.
type ScoringConfig struct {
	// RoleWeight rewards each distinct argument role covered.
	RoleWeight float64 `json:"role_weight" yaml:"role_weight"`

	// CoverageWeight rewards each statement up to TargetSize.
	CoverageWeight float64 `json:"coverage_weight" yaml:"coverage_weight"`

	// SizePenalty is subtracted for each statement beyond TargetSize.
	SizePenalty float64 `json:"size_penalty" yaml:"size_penalty"`

	// TargetSize is the statement count beyond which SizePenalty applies.
	TargetSize int `json:"target_size" yaml:"target_size"`

	// ConfidenceWeight scales the mean statement confidence.
	ConfidenceWeight float64 `json:"confidence_weight" yaml:"confidence_weight"`
}

// DefaultScoring returns the default structural score weights.
func DefaultScoring() ScoringConfig {
	return ScoringConfig{
		RoleWeight:       1.0,
		CoverageWeight:   0.1,
		SizePenalty:      0.25,
		TargetSize:       30,
		ConfidenceWeight: 0,
	}
}

// GenerationConfig holds settings for the hypothesis generator.
type GenerationConfig struct {
	Scoring ScoringConfig `json:"scoring" yaml:"scoring"`

	// NumHyps is the number of hypotheses requested per query.
	NumHyps int `json:"num_hyps" yaml:"num_hyps"`

	// MaxSize caps the statements in one hypothesis (0 = no cap).
	MaxSize int `json:"max_hypothesis_size" yaml:"max_hypothesis_size"`

	// MaxNodes bounds the best-first search per seed set (0 = default).
	MaxNodes int `json:"max_search_nodes" yaml:"max_search_nodes"`

	// MultiFillerRoles lists argument roles that may have several fillers
	// in one hypothesis. Every other role is single-filler.
	MultiFillerRoles []string `json:"multi_filler_roles,omitempty" yaml:"multi_filler_roles,omitempty"`
}

// RerankDevice selects the plausibility scoring backend.
type RerankDevice string

const (
	DeviceCPU  RerankDevice = "cpu"
	DeviceHTTP RerankDevice = "http"
)

// RerankConfig holds settings for the plausibility reranker.
type RerankConfig struct {
	// Enabled turns reranking on. When false seeds keep resolver order.
	Enabled bool `json:"plaus_rerank" yaml:"plaus_rerank"`

	// Device selects the scoring backend: cpu (local model) or http.
	Device RerankDevice `json:"rerank_device" yaml:"rerank_device"`

	// ModelPath is the YAML weights file for the cpu backend.
	ModelPath string `json:"rerank_model,omitempty" yaml:"rerank_model,omitempty"`

	// Endpoint is the scoring service URL for the http backend.
	Endpoint string `json:"rerank_endpoint,omitempty" yaml:"rerank_endpoint,omitempty"`

	// APIKey authenticates against Endpoint.
	APIKey string `json:"-" yaml:"-"`

	// Timeout bounds one batched scoring call.
	Timeout time.Duration `json:"rerank_timeout" yaml:"rerank_timeout"`

	// Keep retains only the top-K seed sets after reranking (0 = all).
	Keep int `json:"rerank_keep" yaml:"rerank_keep"`

	// MaxRetries is passed to the HTTP retry helper.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// EngineConfig groups all settings consumed by the generation pipeline.
type EngineConfig struct {
	Expansion  ExpansionConfig  `json:"expansion" yaml:"expansion"`
	Generation GenerationConfig `json:"generation" yaml:"generation"`
	Rerank     RerankConfig     `json:"rerank" yaml:"rerank"`

	// CorefCompress merges coreferent EREs before generation.
	CorefCompress bool `json:"coref_compress" yaml:"coref_compress"`

	// MaxSeedsPerFrame caps candidate seeds per frame (0 = no cap).
	MaxSeedsPerFrame int `json:"max_seeds_per_frame" yaml:"max_seeds_per_frame"`

	// Workers sizes the worker pool (0 = number of CPUs).
	Workers int `json:"workers" yaml:"workers"`
}

// DefaultEngineConfig returns the configuration used when no flags or
// config file override it.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Expansion: ExpansionConfig{
			MaxHops:     5,
			MinEREs:     100,
			MinStmts:    200,
			AttachTypes: true,
		},
		Generation: GenerationConfig{
			Scoring:  DefaultScoring(),
			NumHyps:  10,
			MaxSize:  50,
			MaxNodes: 2000,
		},
		Rerank: RerankConfig{
			Device:     DeviceCPU,
			Timeout:    30 * time.Second,
			MaxRetries: 3,
		},
	}
}

// Validate reports the first out-of-range setting.
func (c EngineConfig) Validate() error {
	switch {
	case c.Generation.NumHyps <= 0:
		return fmt.Errorf("num_hyps must be positive, got %d", c.Generation.NumHyps)
	case c.Expansion.MaxHops <= 0:
		return fmt.Errorf("max_num_hops must be positive, got %d", c.Expansion.MaxHops)
	case c.Expansion.MinEREs < 0:
		return fmt.Errorf("min_num_eres must not be negative, got %d", c.Expansion.MinEREs)
	case c.Expansion.MinStmts < 0:
		return fmt.Errorf("min_num_stmts must not be negative, got %d", c.Expansion.MinStmts)
	case c.Generation.MaxSize < 0:
		return fmt.Errorf("max_hypothesis_size must not be negative, got %d", c.Generation.MaxSize)
	case c.Generation.Scoring.TargetSize < 0:
		return fmt.Errorf("target_size must not be negative, got %d", c.Generation.Scoring.TargetSize)
	case c.Workers < 0:
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if c.Rerank.Enabled {
		switch c.Rerank.Device {
		case DeviceCPU, "":
		case DeviceHTTP:
			if c.Rerank.Endpoint == "" {
				return fmt.Errorf("rerank_endpoint is required for the http rerank device")
			}
		default:
			return fmt.Errorf("unsupported rerank_device %q: use cpu or http", c.Rerank.Device)
		}
	}
	return nil
}

// StoreConfig holds settings for the results store.
type StoreConfig struct {
	// OutputDir is the base directory for results (contains index/).
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// MaxResults is the default maximum number of query results (default 50).
	MaxResults int `json:"max_results" yaml:"max_results"`
}
