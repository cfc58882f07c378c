// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// FrameConstraint names a role pattern a seed ERE must satisfy.
type FrameConstraint struct {
	// ID identifies the frame within its query.
	ID string `json:"id" yaml:"id"`

	// Category restricts candidates to Event or Relation nodes. Empty
	// accepts any category.
	Category Category `json:"category,omitempty" yaml:"category,omitempty"`

	// Types are type patterns. A pattern matches a type equal to it or any
	// descendant ("Conflict" matches "Conflict.Attack"). Empty accepts any type.
	Types []string `json:"types,omitempty" yaml:"types,omitempty"`

	// Roles are argument roles the candidate must have as subject. A role
	// matches a predicate equal to it or ending in "_<role>".
	Roles []string `json:"roles,omitempty" yaml:"roles,omitempty"`

	// EntryPoints are anchor ERE ids. When present, candidates must be an
	// anchor or have an anchor as a direct argument.
	EntryPoints []string `json:"entry_points,omitempty" yaml:"entry_points,omitempty"`
}

// SINQuery is a parsed Statement of Information Need.
type SINQuery struct {
	// ID is the stable query identifier used for output naming.
	ID string `json:"id" yaml:"id"`

	Frames []FrameConstraint `json:"frames" yaml:"frames"`
}

// SeedSet is a non-empty set of ERE ids satisfying one frame constraint,
// used as the expansion starting point.
type SeedSet struct {
	QueryID string `json:"query_id" yaml:"query_id"`
	FrameID string `json:"frame_id" yaml:"frame_id"`

	// EREs holds the seed node ids in ascending order.
	EREs []string `json:"eres" yaml:"eres"`

	// Order is the discovery index assigned by the resolver. It breaks
	// ranking ties and survives reranking.
	Order int `json:"order" yaml:"order"`

	// Score is the plausibility score; 1 when reranking is disabled.
	Score float64 `json:"score" yaml:"score"`
}
