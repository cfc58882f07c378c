// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package rerank

import (
	"context"
	"fmt"
	"math"
	"os"

	"go.yaml.in/yaml/v3"
)

// LinearModel is a logistic model over Features. Weights are keyed by
// feature name; missing names weigh zero.
type LinearModel struct {
	Bias    float64            `yaml:"bias"`
	Weights map[string]float64 `yaml:"weights"`
}

// DefaultLinearModel returns the built-in weights used when no model file
// is configured. They favor well-connected seeds with several roles.
func DefaultLinearModel() *LinearModel {
	return &LinearModel{
		Bias: -2,
		Weights: map[string]float64{
			"seed_size":       0.2,
			"one_step":        0.15,
			"two_step":        0.05,
			"roles":           0.5,
			"type_statements": 0.1,
			"mean_confidence": 1,
		},
	}
}

// LoadLinearModel reads a YAML weights file. Unknown feature names are
// rejected so a typo cannot silently zero a weight.
func LoadLinearModel(path string) (*LinearModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rerank model %s: %w", path, err)
	}
	var m LinearModel
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing rerank model %s: %w", path, err)
	}
	known := make(map[string]bool, len(FeatureNames))
	for _, n := range FeatureNames {
		known[n] = true
	}
	for name, w := range m.Weights {
		if !known[name] {
			return nil, fmt.Errorf("rerank model %s: unknown feature %q", path, name)
		}
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("rerank model %s: weight %q is not finite", path, name)
		}
	}
	return &m, nil
}

// ScoreBatch returns sigmoid(bias + w·x) per item, or NaN for an item whose
// features are not finite.
func (m *LinearModel) ScoreBatch(ctx context.Context, batch []Features) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]float64, len(batch))
	for i, f := range batch {
		z := m.Bias
		for k, v := range f.Vector() {
			if w := m.Weights[FeatureNames[k]]; w != 0 {
				z += w * v
			}
		}
		if math.IsNaN(z) || math.IsInf(z, 0) {
			out[i] = math.NaN()
			continue
		}
		out[i] = 1 / (1 + math.Exp(-z))
	}
	return out, nil
}
