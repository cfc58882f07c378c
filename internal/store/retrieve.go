// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

// QueryOptions filters stored hypotheses.
type QueryOptions struct {
	// RunID restricts results to one run. Empty means every run.
	RunID string

	// QueryID restricts results to one SIN query.
	QueryID string

	// StatementID keeps hypotheses that contain this statement.
	StatementID string

	// MinScore drops hypotheses scoring below it.
	MinScore float64

	// MaxResults limits result count. Zero uses the store default.
	MaxResults int
}

// QueryResult is a stored hypothesis with the run and query it belongs to.
type QueryResult struct {
	RunID   string `json:"run_id" yaml:"run_id"`
	QueryID string `json:"query_id" yaml:"query_id"`
	types.Hypothesis `yaml:",inline"`
}

// Retrieve returns stored hypotheses matching opts, newest run first, then
// query id and rank.
func (s *Store) Retrieve(ctx context.Context, opts QueryOptions) ([]QueryResult, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = s.maxResults
	}
	return s.retrieve(ctx, opts, maxResults)
}

func (s *Store) retrieve(ctx context.Context, opts QueryOptions, limit int) ([]QueryResult, error) {
	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(
		`SELECT h.rowid, h.run_id, h.query_id, h.rank, h.score, h.roles,
			h.frame_id, h.seed, h.seed_order, h.discovery, h.eres
		FROM hypotheses h
		JOIN runs r ON r.id = h.run_id
		WHERE h.score >= ?`)
	args = append(args, opts.MinScore)

	if opts.RunID != "" {
		qb.WriteString(` AND h.run_id = ?`)
		args = append(args, opts.RunID)
	}
	if opts.QueryID != "" {
		qb.WriteString(` AND h.query_id = ?`)
		args = append(args, opts.QueryID)
	}
	if opts.StatementID != "" {
		qb.WriteString(` AND EXISTS (SELECT 1 FROM hypothesis_statements hs
			WHERE hs.hypothesis_rowid = h.rowid AND hs.statement_id = ?)`)
		args = append(args, opts.StatementID)
	}

	qb.WriteString(` ORDER BY r.created_at DESC, h.run_id, h.query_id, h.rank LIMIT ?`)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying hypotheses: %w", err)
	}

	var (
		results []QueryResult
		rowids  []int64
	)
	for rows.Next() {
		var (
			qr      QueryResult
			rowid   int64
			frameID sql.NullString
			seed    sql.NullString
			eres    sql.NullString
		)
		if err := rows.Scan(&rowid, &qr.RunID, &qr.QueryID, &qr.Rank, &qr.Score, &qr.Roles,
			&frameID, &seed, &qr.SeedOrder, &qr.Discovery, &eres); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning hypothesis: %w", err)
		}
		qr.FrameID = frameID.String
		qr.Seed = unmarshalIDs(seed)
		qr.EREs = unmarshalIDs(eres)
		results = append(results, qr)
		rowids = append(rowids, rowid)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("reading hypotheses: %w", err)
	}

	for i, rowid := range rowids {
		if err := s.loadStatements(ctx, rowid, &results[i].Hypothesis); err != nil {
			return nil, err
		}
	}
	return results, nil
}

func (s *Store) loadStatements(ctx context.Context, rowid int64, h *types.Hypothesis) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT statement_id, hop FROM hypothesis_statements
		WHERE hypothesis_rowid = ? ORDER BY position`, rowid)
	if err != nil {
		return fmt.Errorf("querying statements: %w", err)
	}
	defer rows.Close()

	h.Statements = []string{}
	h.StatementHops = []int{}
	for rows.Next() {
		var (
			id  string
			hop int
		)
		if err := rows.Scan(&id, &hop); err != nil {
			return fmt.Errorf("scanning statement: %w", err)
		}
		h.Statements = append(h.Statements, id)
		h.StatementHops = append(h.StatementHops, hop)
	}
	return rows.Err()
}

// HypothesisSet rebuilds the ranked set stored for one query of a run.
func (s *Store) HypothesisSet(ctx context.Context, runID, queryID string) (types.HypothesisSet, error) {
	set := types.HypothesisSet{QueryID: queryID, Hypotheses: []types.Hypothesis{}}

	var errText sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT error FROM queries WHERE run_id = ? AND query_id = ?`, runID, queryID,
	).Scan(&errText)
	if err == sql.ErrNoRows {
		return set, fmt.Errorf("query %s not found in run %s", queryID, runID)
	}
	if err != nil {
		return set, fmt.Errorf("looking up query %s: %w", queryID, err)
	}
	if errText.Valid {
		return set, fmt.Errorf("query %s failed in run %s: %s", queryID, runID, errText.String)
	}

	results, err := s.retrieve(ctx, QueryOptions{RunID: runID, QueryID: queryID}, exportLimit)
	if err != nil {
		return set, err
	}
	for _, r := range results {
		set.Hypotheses = append(set.Hypotheses, r.Hypothesis)
	}
	return set, nil
}
