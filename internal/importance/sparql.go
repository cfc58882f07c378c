// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package importance

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/pdiddy/hypothesis-engine/internal/graph"
	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

// updatePrefix declares the namespaces shared by every update file.
const updatePrefix = `PREFIX ldcOnt: <https://tac.nist.gov/tracks/SM-KBP/2019/ontologies/LDCOntology#>
PREFIX rdf: <http://www.w3.org/1999/02/22-rdf-syntax-ns#>
PREFIX xsd: <http://www.w3.org/2001/XMLSchema#>
PREFIX aida: <https://tac.nist.gov/tracks/SM-KBP/2019/ontologies/InterchangeOntology#>
PREFIX hyp: <https://hypothesis-engine.example/ns#>

`

var funcs = template.FuncMap{"imp": func(v float64) string { return fmt.Sprintf("%.4f", v) }}

var hypothesisTmpl = template.Must(template.New("hypothesis").Funcs(funcs).Parse(updatePrefix + `INSERT DATA
{
  {{.Name}} a aida:Hypothesis .
  {{.Name}} aida:importance "{{imp .Weights.Hypothesis}}"^^xsd:double .
  {{.Name}} aida:hypothesisContent {{.Subgraph}} .
  {{.Subgraph}} a aida:Subgraph .
{{- range .Weights.Nodes}}
  <{{.ID}}> aida:importance "{{imp .Importance}}"^^xsd:double .
{{- end}}
}
`))

var subgraphTmpl = template.Must(template.New("subgraph").Parse(updatePrefix + `INSERT DATA
{
{{- range .EREs}}
  {{$.Subgraph}} aida:subgraphContains <{{.}}> .
{{- end}}
}
`))

var statementTmpl = template.Must(template.New("statement").Funcs(funcs).Parse(updatePrefix + `INSERT { ?x aida:importance "{{imp .Importance}}"^^xsd:double . }
WHERE
{
?x a rdf:Statement .
?x rdf:subject <{{.Statement.Subject}}> .
?x rdf:predicate ldcOnt:{{.Statement.Predicate}} .
?x rdf:object <{{.Statement.Object}}> .
}
`))

type hypothesisView struct {
	Name     string
	Subgraph string
	Weights  Weights
	EREs     []string
}

type update struct {
	tmpl *template.Template
	data any
}

// WriteUpdates writes SPARQL update files for the top hypotheses of set
// into dir, named hypothesis-NNN-update-NNNN.rq. Per hypothesis the first
// file declares the hypothesis and its node weights, the second lists its
// subgraph, and one file follows per non-type statement. top <= 0 writes
// every hypothesis. It returns the written paths in order.
func WriteUpdates(dir string, g *graph.Graph, frameID string, set types.HypothesisSet, top int, opts Options) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating update directory: %w", err)
	}
	best := BestScore(set)

	var paths []string
	for i, h := range set.Hypotheses {
		if top > 0 && i >= top {
			break
		}
		w, err := Compute(g, h, best, opts)
		if err != nil {
			return paths, err
		}
		name := fmt.Sprintf("hyp:%s_hypothesis_%03d", frameID, i+1)
		view := hypothesisView{Name: name, Subgraph: name + "_subgraph", Weights: w, EREs: h.EREs}

		updates := []update{{hypothesisTmpl, view}, {subgraphTmpl, view}}
		for _, sw := range w.Statements {
			if !sw.Statement.HasEREObject() {
				continue
			}
			updates = append(updates, update{statementTmpl, sw})
		}

		for n, u := range updates {
			var buf bytes.Buffer
			if err := u.tmpl.Execute(&buf, u.data); err != nil {
				return paths, fmt.Errorf("rendering %s update: %w", u.tmpl.Name(), err)
			}
			path := filepath.Join(dir, fmt.Sprintf("hypothesis-%03d-update-%04d.rq", i+1, n))
			if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
				return paths, fmt.Errorf("writing %s: %w", path, err)
			}
			paths = append(paths, path)
		}
	}
	return paths, nil
}
