// Package predicate evaluates structured conditions against JSON-like
// documents. Shared by the policy engine (proposal payloads) and the
// playbook run engine (accumulated step outputs). Pure functions, no I/O.
package predicate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/example/warden/internal/models"
)

// Matches evaluates a single condition against doc. It returns an error for
// malformed conditions (unknown operator, non-comparable values); callers
// must treat an error as "no match", never as a match.
func Matches(c models.Condition, doc map[string]any) (bool, error) {
	if !models.ValidOp(c.Op) {
		return false, fmt.Errorf("unknown operator %q on field %q", c.Op, c.Field)
	}

	value, found := lookup(doc, c.Field)

	switch c.Op {
	case models.OpExists:
		return found, nil
	case models.OpEq:
		return found && equal(value, c.Value), nil
	case models.OpNe:
		return found && !equal(value, c.Value), nil
	case models.OpGt, models.OpGte, models.OpLt, models.OpLte:
		if !found {
			return false, nil
		}
		cmp, err := compare(value, c.Value)
		if err != nil {
			return false, fmt.Errorf("field %q: %w", c.Field, err)
		}
		switch c.Op {
		case models.OpGt:
			return cmp > 0, nil
		case models.OpGte:
			return cmp >= 0, nil
		case models.OpLt:
			return cmp < 0, nil
		default:
			return cmp <= 0, nil
		}
	case models.OpIn:
		if !found {
			return false, nil
		}
		options, ok := c.Value.([]any)
		if !ok {
			return false, fmt.Errorf("field %q: IN requires a list value", c.Field)
		}
		for _, opt := range options {
			if equal(value, opt) {
				return true, nil
			}
		}
		return false, nil
	case models.OpContains:
		if !found {
			return false, nil
		}
		switch v := value.(type) {
		case string:
			want, ok := c.Value.(string)
			if !ok {
				return false, fmt.Errorf("field %q: CONTAINS on string requires a string value", c.Field)
			}
			return strings.Contains(v, want), nil
		case []any:
			for _, item := range v {
				if equal(item, c.Value) {
					return true, nil
				}
			}
			return false, nil
		default:
			return false, fmt.Errorf("field %q: CONTAINS requires a string or list field", c.Field)
		}
	}

	return false, fmt.Errorf("unhandled operator %q", c.Op)
}

// All reports whether every condition matches. An empty slice matches
// everything. The first malformed condition aborts with its error.
func All(conds []models.Condition, doc map[string]any) (bool, error) {
	for _, c := range conds {
		ok, err := Matches(c, doc)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// lookup resolves a dotted path ("a.status") into nested maps.
func lookup(doc map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	parts := strings.Split(path, ".")
	var current any = doc
	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// equal compares two JSON values, treating all numeric types as float64
// (the representation encoding/json produces).
func equal(a, b any) bool {
	if af, aok := asFloat(a); aok {
		bf, bok := asFloat(b)
		return bok && af == bf
	}
	return a == b
}

// compare orders two values. Numbers compare numerically, strings
// lexically; anything else is an error.
func compare(a, b any) (int, error) {
	if af, ok := asFloat(a); ok {
		bf, bok := asFloat(b)
		if !bok {
			return 0, fmt.Errorf("cannot compare number with %T", b)
		}
		switch {
		case af < bf:
			return -1, nil
		case af > bf:
			return 1, nil
		default:
			return 0, nil
		}
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.Compare(as, bs), nil
	}
	return 0, fmt.Errorf("cannot compare %T with %T", a, b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
