// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Category tags an ERE as an entity, relation, or event node.
type Category string

const (
	CategoryEntity   Category = "Entity"
	CategoryRelation Category = "Relation"
	CategoryEvent    Category = "Event"
)

// Valid reports whether c is one of the supported categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryEntity, CategoryRelation, CategoryEvent:
		return true
	}
	return false
}

// TypePredicate is the predicate label of statements that assert an ERE's type.
const TypePredicate = "type"

// StatementKind classifies a statement by what it connects.
type StatementKind string

const (
	KindType          StatementKind = "type"
	KindRelation      StatementKind = "relation"
	KindEventArgument StatementKind = "event_argument"
)

// ERE is an entity, relation, or event node as supplied by the KB parser.
type ERE struct {
	// ID is the opaque, stable node identifier.
	ID string `json:"id" yaml:"id"`

	// Category is Entity, Relation, or Event.
	Category Category `json:"category" yaml:"category"`

	// Names are the surface names attached to the node.
	Names []string `json:"names,omitempty" yaml:"names,omitempty"`

	// Types are ontology type labels (e.g. "Conflict.Attack").
	Types []string `json:"types,omitempty" yaml:"types,omitempty"`

	// Provenance lists justification handles (document spans).
	Provenance []string `json:"provenance,omitempty" yaml:"provenance,omitempty"`

	// Members lists the original ids folded into this node by coreference
	// compression. Empty for nodes that were never merged.
	Members []string `json:"members,omitempty" yaml:"members,omitempty"`
}

// Statement is a typed edge. Object holds an ERE id; Literal holds a value
// for statements whose object is not a node (type statements).
type Statement struct {
	ID         string   `json:"id" yaml:"id"`
	Predicate  string   `json:"predicate" yaml:"predicate"`
	Subject    string   `json:"subject" yaml:"subject"`
	Object     string   `json:"object,omitempty" yaml:"object,omitempty"`
	Literal    string   `json:"literal,omitempty" yaml:"literal,omitempty"`
	Provenance []string `json:"provenance,omitempty" yaml:"provenance,omitempty"`

	// Confidence is an optional weight in (0, 1]. Zero means unspecified.
	Confidence float64 `json:"confidence,omitempty" yaml:"confidence,omitempty"`
}

// IsTypeStatement reports whether the statement asserts its subject's type.
func (s Statement) IsTypeStatement() bool {
	return s.Predicate == TypePredicate
}

// HasEREObject reports whether the statement's object is a node.
func (s Statement) HasEREObject() bool {
	return s.Object != ""
}

// RawGraph is the flat record form of a knowledge graph, as produced by the
// KB parser and consumed by graph.Load.
type RawGraph struct {
	EREs       []ERE       `json:"eres" yaml:"eres"`
	Statements []Statement `json:"statements" yaml:"statements"`
}

// Cluster is a set of ERE ids asserted to denote the same referent.
type Cluster struct {
	ID      string   `json:"id" yaml:"id"`
	Members []string `json:"members" yaml:"members"`
}
