package gqlrequest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/graphql-go/graphql/language/printer"
	"github.com/graphql-go/graphql/language/source"
)

// AnonymousOperation names operations declared without a name.
const AnonymousOperation = "<anonymous>"

// Analysis is the parsed view of one GraphQL request.
type Analysis struct {
	Envelope Envelope

	Operation     *ast.OperationDefinition
	OperationName string
	OperationType string
	// RootFields lists the top-level fields selected by the operation.
	RootFields []string

	FieldCount int
	Depth      int
	Hash       string

	// Err records why the request could not be analyzed. The GraphQL handler
	// reports the same problem to the caller, so middleware only logs it.
	Err error
}

// Parsed reports whether an operation was selected.
func (a *Analysis) Parsed() bool {
	return a != nil && a.Operation != nil
}

// IsMutation reports whether the selected operation is a mutation.
func (a *Analysis) IsMutation() bool {
	return a.Parsed() && a.OperationType == ast.OperationTypeMutation
}

// AnalyzeRequest decodes and analyzes r.
func AnalyzeRequest(r *http.Request) *Analysis {
	env, err := DecodeEnvelope(r)
	if err != nil {
		return &Analysis{Envelope: env, Err: fmt.Errorf("decode request: %w", err)}
	}
	return Analyze(env)
}

// Analyze parses env.Query and selects the requested operation.
func Analyze(env Envelope) *Analysis {
	a := &Analysis{Envelope: env}
	if strings.TrimSpace(env.Query) == "" {
		return a
	}

	doc, err := parser.Parse(parser.ParseParams{
		Source: source.NewSource(&source.Source{Body: []byte(env.Query), Name: "GraphQL request"}),
	})
	if err != nil {
		a.Err = err
		return a
	}

	fragments := map[string]*ast.FragmentDefinition{}
	var operations []*ast.OperationDefinition
	for _, def := range doc.Definitions {
		switch d := def.(type) {
		case *ast.FragmentDefinition:
			if d.Name != nil {
				fragments[d.Name.Value] = d
			}
		case *ast.OperationDefinition:
			operations = append(operations, d)
		}
	}

	op, err := selectOperation(operations, env.OperationName)
	if err != nil {
		a.Err = err
		return a
	}

	a.Operation = op
	a.OperationType = op.Operation
	a.OperationName = AnonymousOperation
	if op.Name != nil && op.Name.Value != "" {
		a.OperationName = op.Name.Value
	}
	a.RootFields = rootFields(op.SelectionSet, fragments)

	w := &walker{fragments: fragments, expanding: map[string]bool{}}
	a.FieldCount, a.Depth = w.walk(op.SelectionSet, 1)
	a.Hash = operationHash(op, a.OperationName)
	return a
}

func selectOperation(ops []*ast.OperationDefinition, name string) (*ast.OperationDefinition, error) {
	if name != "" {
		for _, op := range ops {
			if op.Name != nil && op.Name.Value == name {
				return op, nil
			}
		}
		return nil, fmt.Errorf("unknown operation named %q", name)
	}
	switch len(ops) {
	case 0:
		return nil, errors.New("request does not include an operation")
	case 1:
		return ops[0], nil
	default:
		return nil, errors.New("operationName is required when request has multiple operations")
	}
}

func rootFields(set *ast.SelectionSet, fragments map[string]*ast.FragmentDefinition) []string {
	var names []string
	seen := map[string]bool{}
	var collect func(*ast.SelectionSet)
	collect = func(set *ast.SelectionSet) {
		if set == nil {
			return
		}
		for _, sel := range set.Selections {
			switch s := sel.(type) {
			case *ast.Field:
				if s.Name != nil && !seen[s.Name.Value] {
					seen[s.Name.Value] = true
					names = append(names, s.Name.Value)
				}
			case *ast.InlineFragment:
				collect(s.SelectionSet)
			case *ast.FragmentSpread:
				if s.Name != nil && !seen["..."+s.Name.Value] {
					seen["..."+s.Name.Value] = true
					if frag, ok := fragments[s.Name.Value]; ok {
						collect(frag.SelectionSet)
					}
				}
			}
		}
	}
	collect(set)
	return names
}

// walker counts fields and nesting depth, expanding fragment spreads in place.
type walker struct {
	fragments map[string]*ast.FragmentDefinition
	expanding map[string]bool
}

func (w *walker) walk(set *ast.SelectionSet, depth int) (fields, maxDepth int) {
	if set == nil {
		return 0, depth - 1
	}
	maxDepth = depth
	for _, sel := range set.Selections {
		var n, d int
		switch s := sel.(type) {
		case *ast.Field:
			n, d = w.walk(s.SelectionSet, depth+1)
			n++
		case *ast.InlineFragment:
			n, d = w.walk(s.SelectionSet, depth)
		case *ast.FragmentSpread:
			if s.Name == nil || w.expanding[s.Name.Value] {
				continue
			}
			frag, ok := w.fragments[s.Name.Value]
			if !ok {
				continue
			}
			w.expanding[s.Name.Value] = true
			n, d = w.walk(frag.SelectionSet, depth)
			delete(w.expanding, s.Name.Value)
		}
		fields += n
		if d > maxDepth {
			maxDepth = d
		}
	}
	return fields, maxDepth
}

// operationHash fingerprints the printed operation so equivalent documents
// with different whitespace share a hash.
func operationHash(op *ast.OperationDefinition, name string) string {
	printed, _ := printer.Print(op).(string)
	sum := sha256.Sum256([]byte(name + "\x00" + printed))
	return hex.EncodeToString(sum[:])
}
