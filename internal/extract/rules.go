// Package extract evaluates prioritized lookup rules against decoded JSON
// documents whose shape varies between upstream versions.
package extract

import (
	"math"
	"strings"

	"github.com/spf13/cast"
)

// Rule is a named dotted path into a document. The empty path selects the
// document itself.
type Rule struct {
	Name string
	Path []string
}

// Path builds a rule from a dotted path such as "result.id"
func Path(p string) Rule {
	if p == "" {
		return Rule{Name: "$"}
	}
	return Rule{Name: p, Path: strings.Split(p, ".")}
}

// Rules are evaluated in order; the first rule yielding a usable value wins
type Rules []Rule

// Paths builds a rule list from dotted paths
func Paths(paths ...string) Rules {
	rs := make(Rules, len(paths))
	for i, p := range paths {
		rs[i] = Path(p)
	}
	return rs
}

// Lookup resolves a single rule against doc
func (r Rule) Lookup(doc any) (any, bool) {
	cur := doc
	for _, key := range r.Path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	if cur == nil {
		return nil, false
	}
	return cur, true
}

// First returns the value and rule name of the first rule that resolves and
// satisfies accept. A nil accept takes any non-nil value.
func (rs Rules) First(doc any, accept func(any) bool) (any, string, bool) {
	for _, r := range rs {
		v, ok := r.Lookup(doc)
		if !ok {
			continue
		}
		if accept != nil && !accept(v) {
			continue
		}
		return v, r.Name, true
	}
	return nil, "", false
}

// ID returns the first id-like value as a string. Numbers and non-blank
// strings qualify; booleans, objects and fractional numbers do not.
func (rs Rules) ID(doc any) (string, bool) {
	v, _, ok := rs.First(doc, isID)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(cast.ToString(v)), true
}

// String returns the first non-blank string value
func (rs Rules) String(doc any) (string, bool) {
	v, _, ok := rs.First(doc, func(v any) bool {
		s, ok := v.(string)
		return ok && strings.TrimSpace(s) != ""
	})
	if !ok {
		return "", false
	}
	return v.(string), true
}

// Int returns the first value coercible to an integer
func (rs Rules) Int(doc any) (int, bool) {
	v, _, ok := rs.First(doc, func(v any) bool {
		_, err := cast.ToIntE(v)
		return err == nil && !isBool(v)
	})
	if !ok {
		return 0, false
	}
	return cast.ToInt(v), true
}

// Array returns the first array value
func (rs Rules) Array(doc any) ([]any, bool) {
	v, _, ok := rs.First(doc, func(v any) bool {
		_, ok := v.([]any)
		return ok
	})
	if !ok {
		return nil, false
	}
	return v.([]any), true
}

// Object returns the first object value
func (rs Rules) Object(doc any) (map[string]any, bool) {
	v, _, ok := rs.First(doc, func(v any) bool {
		_, ok := v.(map[string]any)
		return ok
	})
	if !ok {
		return nil, false
	}
	return v.(map[string]any), true
}

func isID(v any) bool {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t) != ""
	case float64:
		return !math.IsNaN(t) && !math.IsInf(t, 0) && t == math.Trunc(t)
	case int, int32, int64, uint, uint32, uint64:
		return true
	default:
		return false
	}
}

func isBool(v any) bool {
	_, ok := v.(bool)
	return ok
}
