// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package kbio reads and writes the flat record files exchanged with the
// KB parser, SIN parser, and downstream writers. Files are YAML; JSON input
// is accepted because it parses as YAML. Output format follows the file
// extension (.json writes JSON, anything else YAML).
package kbio

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

// KBFile is the on-disk form of a knowledge base: the graph records plus
// optional coreference clusters.
type KBFile struct {
	EREs       []types.ERE       `json:"eres" yaml:"eres"`
	Statements []types.Statement `json:"statements" yaml:"statements"`
	Clusters   []types.Cluster   `json:"clusters,omitempty" yaml:"clusters,omitempty"`
}

// Raw returns the graph records of the file.
func (f KBFile) Raw() types.RawGraph {
	return types.RawGraph{EREs: f.EREs, Statements: f.Statements}
}

// ReadKB loads a knowledge base file.
func ReadKB(path string) (KBFile, error) {
	var f KBFile
	if err := readFile(path, &f); err != nil {
		return KBFile{}, fmt.Errorf("reading KB %s: %w", path, err)
	}
	return f, nil
}

// WriteKB saves a knowledge base file.
func WriteKB(path string, f KBFile) error {
	if err := writeFile(path, f); err != nil {
		return fmt.Errorf("writing KB %s: %w", path, err)
	}
	return nil
}

type clusterFile struct {
	Clusters []types.Cluster `json:"clusters" yaml:"clusters"`
}

// ReadClusters loads a standalone clusters file with a top-level
// "clusters" list.
func ReadClusters(path string) ([]types.Cluster, error) {
	var f clusterFile
	if err := readFile(path, &f); err != nil {
		return nil, fmt.Errorf("reading clusters %s: %w", path, err)
	}
	return f.Clusters, nil
}

// ReadQuery loads one SIN query. A query without an id takes the file
// name without its extension.
func ReadQuery(path string) (types.SINQuery, error) {
	var q types.SINQuery
	if err := readFile(path, &q); err != nil {
		return types.SINQuery{}, fmt.Errorf("reading query %s: %w", path, err)
	}
	if q.ID == "" {
		q.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	for i := range q.Frames {
		if q.Frames[i].ID == "" {
			q.Frames[i].ID = fmt.Sprintf("frame-%d", i+1)
		}
	}
	return q, nil
}

// ReadQueries loads every .yaml, .yml, and .json file in dir, sorted by
// file name. Duplicate query ids are rejected.
func ReadQueries(dir string) ([]types.SINQuery, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading query directory %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml", ".json":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	seen := make(map[string]string)
	out := make([]types.SINQuery, 0, len(names))
	for _, name := range names {
		q, err := ReadQuery(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[q.ID]; dup {
			return nil, fmt.Errorf("query id %q appears in both %s and %s", q.ID, prev, name)
		}
		seen[q.ID] = name
		out = append(out, q)
	}
	return out, nil
}

// WriteHypotheses saves one query's hypothesis set as <dir>/<query id><ext>,
// where ext is ".json" or ".yaml". It returns the written path.
func WriteHypotheses(dir, ext string, set types.HypothesisSet) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, set.QueryID+ext)
	if err := writeFile(path, set); err != nil {
		return "", fmt.Errorf("writing hypotheses %s: %w", path, err)
	}
	return path, nil
}

func readFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing: %w", err)
	}
	return nil
}

func writeFile(path string, v any) error {
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = yaml.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("encoding: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
