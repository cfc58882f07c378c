// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists generation runs and their ranked hypotheses in a
// SQLite database so results can be queried and exported after the batch
// that produced them has exited.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

const (
	indexDir          = "index"
	dbFile            = "hypotheses.db"
	defaultMaxResults = 50

	// timeFormat has fixed width so created_at sorts lexically.
	timeFormat = "2006-01-02T15:04:05.000000000Z07:00"
)

// Store manages the results SQLite database.
type Store struct {
	db         *sql.DB
	outputDir  string
	maxResults int
}

// Run describes one invocation of the generate command.
type Run struct {
	ID        string             `json:"id" yaml:"id"`
	CreatedAt time.Time          `json:"created_at" yaml:"created_at"`
	KBPath    string             `json:"kb_path" yaml:"kb_path"`
	Config    types.EngineConfig `json:"config" yaml:"config"`

	// ClustersPath is the clusters file the run was given; empty means the
	// clusters embedded in the KB file.
	ClustersPath string `json:"clusters_path,omitempty" yaml:"clusters_path,omitempty"`
}

// NewRun returns a Run with a fresh id stamped now.
func NewRun(kbPath string, cfg types.EngineConfig) Run {
	return Run{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		KBPath:    kbPath,
		Config:    cfg,
	}
}

// QueryRecord is the outcome of one query within a run. Err is recorded
// as text; a failed query keeps its row with no hypotheses.
type QueryRecord struct {
	Set   types.HypothesisSet
	Seeds int
	Err   error
}

// SaveSummary reports what SaveRun wrote.
type SaveSummary struct {
	Queries    int
	Failed     int
	Hypotheses int
	Statements int
}

// NewStore opens or creates the results database at
// OutputDir/index/hypotheses.db and creates the schema if needed.
func NewStore(cfg types.StoreConfig) (*Store, error) {
	dbDir := filepath.Join(cfg.OutputDir, indexDir)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	dbPath := filepath.Join(dbDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	s := &Store{db: db, outputDir: cfg.OutputDir, maxResults: maxResults}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			kb_path TEXT,
			clusters_path TEXT,
			config TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS queries (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			query_id TEXT NOT NULL,
			seeds INTEGER NOT NULL,
			error TEXT,
			PRIMARY KEY (run_id, query_id)
		)`,
		`CREATE TABLE IF NOT EXISTS hypotheses (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			query_id TEXT NOT NULL,
			rank INTEGER NOT NULL,
			score REAL NOT NULL,
			roles INTEGER NOT NULL,
			frame_id TEXT,
			seed TEXT,
			seed_order INTEGER,
			discovery INTEGER,
			eres TEXT,
			UNIQUE (run_id, query_id, rank)
		)`,
		`CREATE TABLE IF NOT EXISTS hypothesis_statements (
			hypothesis_rowid INTEGER NOT NULL REFERENCES hypotheses(rowid) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			statement_id TEXT NOT NULL,
			hop INTEGER NOT NULL,
			PRIMARY KEY (hypothesis_rowid, position)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_hypotheses_query ON hypotheses(query_id)`,
		`CREATE INDEX IF NOT EXISTS idx_statements_id ON hypothesis_statements(statement_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// SaveRun writes run and every record in one transaction. Either the whole
// run is stored or none of it.
func (s *Store) SaveRun(ctx context.Context, run Run, records []QueryRecord) (SaveSummary, error) {
	var summary SaveSummary
	if run.ID == "" {
		return summary, fmt.Errorf("run id is required")
	}

	cfgJSON, err := json.Marshal(run.Config)
	if err != nil {
		return summary, fmt.Errorf("marshaling run config: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return summary, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, kb_path, clusters_path, config) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.UTC().Format(timeFormat), run.KBPath, run.ClustersPath, string(cfgJSON),
	); err != nil {
		return summary, fmt.Errorf("inserting run %s: %w", run.ID, err)
	}

	queryStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO queries (run_id, query_id, seeds, error) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return summary, fmt.Errorf("preparing query insert: %w", err)
	}
	defer queryStmt.Close()

	hypStmt, err := tx.PrepareContext(ctx, `INSERT INTO hypotheses
		(run_id, query_id, rank, score, roles, frame_id, seed, seed_order, discovery, eres)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return summary, fmt.Errorf("preparing hypothesis insert: %w", err)
	}
	defer hypStmt.Close()

	stmtStmt, err := tx.PrepareContext(ctx, `INSERT INTO hypothesis_statements
		(hypothesis_rowid, position, statement_id, hop) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return summary, fmt.Errorf("preparing statement insert: %w", err)
	}
	defer stmtStmt.Close()

	for _, rec := range records {
		queryID := rec.Set.QueryID
		var errText sql.NullString
		if rec.Err != nil {
			errText = sql.NullString{String: rec.Err.Error(), Valid: true}
			summary.Failed++
		}
		if _, err := queryStmt.ExecContext(ctx, run.ID, queryID, rec.Seeds, errText); err != nil {
			return summary, fmt.Errorf("inserting query %s: %w", queryID, err)
		}
		summary.Queries++

		for _, h := range rec.Set.Hypotheses {
			res, err := hypStmt.ExecContext(ctx,
				run.ID, queryID, h.Rank, h.Score, h.Roles, h.FrameID,
				marshalIDs(h.Seed), h.SeedOrder, h.Discovery, marshalIDs(h.EREs))
			if err != nil {
				return summary, fmt.Errorf("inserting hypothesis %s/%d: %w", queryID, h.Rank, err)
			}
			rowid, err := res.LastInsertId()
			if err != nil {
				return summary, fmt.Errorf("reading hypothesis rowid: %w", err)
			}
			for i, id := range h.Statements {
				hop := 0
				if i < len(h.StatementHops) {
					hop = h.StatementHops[i]
				}
				if _, err := stmtStmt.ExecContext(ctx, rowid, i, id, hop); err != nil {
					return summary, fmt.Errorf("inserting statement %s of %s/%d: %w", id, queryID, h.Rank, err)
				}
				summary.Statements++
			}
			summary.Hypotheses++
		}
	}

	if err := tx.Commit(); err != nil {
		return summary, fmt.Errorf("committing run %s: %w", run.ID, err)
	}
	return summary, nil
}

// Runs lists stored runs, newest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, kb_path, clusters_path, config FROM runs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r        Run
			created  string
			kbPath   sql.NullString
			clusters sql.NullString
			cfg      sql.NullString
		)
		if err := rows.Scan(&r.ID, &created, &kbPath, &clusters, &cfg); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.CreatedAt, _ = time.Parse(timeFormat, created)
		r.KBPath = kbPath.String
		r.ClustersPath = clusters.String
		if cfg.Valid && cfg.String != "" {
			if err := json.Unmarshal([]byte(cfg.String), &r.Config); err != nil {
				return nil, fmt.Errorf("decoding config of run %s: %w", r.ID, err)
			}
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LatestRun returns the most recent run, or an error if the store is empty.
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	runs, err := s.Runs(ctx)
	if err != nil {
		return Run{}, err
	}
	if len(runs) == 0 {
		return Run{}, fmt.Errorf("no runs stored in %s", filepath.Join(s.outputDir, indexDir, dbFile))
	}
	return runs[0], nil
}

func marshalIDs(ids []string) string {
	if len(ids) == 0 {
		return "[]"
	}
	data, _ := json.Marshal(ids)
	return string(data)
}

func unmarshalIDs(s sql.NullString) []string {
	if !s.Valid || s.String == "" {
		return nil
	}
	var ids []string
	json.Unmarshal([]byte(s.String), &ids)
	return ids
}
