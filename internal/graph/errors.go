// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package graph

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is checks.
var (
	ErrMalformedGraph = errors.New("malformed graph")
	ErrNotFound       = errors.New("not found")
)

// MalformedGraphError reports input that cannot form a valid graph: an
// unresolvable statement endpoint, an unsupported category, a duplicate id,
// or an invalid coreference cluster.
type MalformedGraphError struct {
	// ID is the offending ERE, statement, or cluster id.
	ID     string
	Reason string
}

func (e *MalformedGraphError) Error() string {
	return fmt.Sprintf("malformed graph: %s: %s", e.ID, e.Reason)
}

func (e *MalformedGraphError) Is(target error) bool {
	return target == ErrMalformedGraph
}

// NotFoundError reports a lookup of an unknown ERE or statement id.
type NotFoundError struct {
	// Kind is "ere" or "statement".
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func malformed(id, format string, args ...any) error {
	return &MalformedGraphError{ID: id, Reason: fmt.Sprintf(format, args...)}
}

func ereNotFound(id string) error {
	return &NotFoundError{Kind: "ere", ID: id}
}

func statementNotFound(id string) error {
	return &NotFoundError{Kind: "statement", ID: id}
}
