// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package rerank

import (
	"context"
	"fmt"
	"math"
	"net/http"

	"github.com/pdiddy/hypothesis-engine/internal/httputil"
)

// Remote scores batches on an HTTP scoring service. The request body is
// {"features": [...names], "items": [Features...]} and the response is
// {"scores": [...]}, one entry per item; a null entry marks a failed item.
type Remote struct {
	Endpoint   string
	APIKey     string
	MaxRetries int
	Client     *http.Client
}

type remoteRequest struct {
	Features []string   `json:"features"`
	Items    []Features `json:"items"`
}

type remoteResponse struct {
	Scores []*float64 `json:"scores"`
}

// ScoreBatch posts one batch and maps null scores to NaN. A response with
// the wrong number of scores fails the whole batch.
func (r *Remote) ScoreBatch(ctx context.Context, batch []Features) ([]float64, error) {
	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}

	var resp remoteResponse
	req := remoteRequest{Features: FeatureNames, Items: batch}
	if err := httputil.PostJSON(ctx, client, r.Endpoint, r.APIKey, req, &resp, r.MaxRetries); err != nil {
		return nil, fmt.Errorf("remote rerank: %w", err)
	}
	if len(resp.Scores) != len(batch) {
		return nil, fmt.Errorf("remote rerank: got %d scores for %d items", len(resp.Scores), len(batch))
	}

	out := make([]float64, len(batch))
	for i, s := range resp.Scores {
		if s == nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = *s
	}
	return out, nil
}
