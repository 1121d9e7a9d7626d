// Package flowquery provides the declarative node lookup used to resolve
// business keys (flow IDs) to graph nodes.
//
// It supports the single pattern the spatial layer needs:
//
//	MATCH (n:`<label>` {<property>: $param}) RETURN n
//
// Parameters are substituted from the params map; the label may contain
// any character when backtick-quoted, which the flowdb dataset labels
// (e.g. `flowdb/dataset/roads/geometry/line/instance`) require.
package flowquery

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/norngeo/norngeo/pkg/storage"
)

// Errors returned by the executor.
var (
	ErrBadQuery = errors.New("unsupported query")
	ErrNoMatch  = errors.New("no matching node")
)

// matchPattern captures: variable, backtick-quoted or bare label,
// property key, and parameter name.
var matchPattern = regexp.MustCompile(
	"^MATCH\\s*\\(\\s*(\\w+)\\s*:\\s*(?:`([^`]+)`|(\\w+))\\s*\\{\\s*(\\w+)\\s*:\\s*\\$(\\w+)\\s*\\}\\s*\\)\\s*RETURN\\s+(\\w+)\\s*$")

// Executor runs declarative lookups against a storage engine.
type Executor struct {
	storage storage.Engine
}

// NewExecutor creates an executor over the given storage engine.
func NewExecutor(store storage.Engine) *Executor {
	return &Executor{storage: store}
}

// FindNode executes a MATCH query and returns the first matching node.
// Returns ErrNoMatch when no node carries the label with the property value.
func (e *Executor) FindNode(query string, params map[string]any) (*storage.Node, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", ErrBadQuery)
	}

	m := matchPattern.FindStringSubmatch(query)
	if m == nil {
		return nil, fmt.Errorf("%w: %q", ErrBadQuery, query)
	}

	variable, quotedLabel, bareLabel, propKey, paramName, returned := m[1], m[2], m[3], m[4], m[5], m[6]
	if returned != variable {
		return nil, fmt.Errorf("%w: RETURN %s does not match pattern variable %s", ErrBadQuery, returned, variable)
	}

	label := quotedLabel
	if label == "" {
		label = bareLabel
	}

	want, ok := params[paramName]
	if !ok {
		return nil, fmt.Errorf("%w: missing parameter $%s", ErrBadQuery, paramName)
	}

	it, err := e.storage.ScanLabel(label)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	for {
		node, ok := it.Next()
		if !ok {
			break
		}
		if propertyEquals(node.Property(propKey), want) {
			return node, nil
		}
	}
	if err := it.Err(); err != nil {
		return nil, err
	}

	return nil, fmt.Errorf("%w: (:%s {%s: %v})", ErrNoMatch, label, propKey, want)
}

// propertyEquals compares a stored property against a parameter value,
// tolerating the string/number drift introduced by JSON round-trips.
func propertyEquals(stored, want any) bool {
	if stored == want {
		return true
	}
	return fmt.Sprint(stored) == fmt.Sprint(want)
}
