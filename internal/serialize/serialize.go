// Package serialize renders entity graphs into plain maps.
//
// Each model declares the fields it exposes and a fixed list of exclusion rules
// ("-reviews.customer"). Rules are relative to the model that declares them. When the
// walker descends into field f, every inherited rule starting with "f." is carried into
// the nested model with the prefix removed, and merged with that model's own rules.
// A rule with a single path segment ("-customer") drops the field entirely.
//
// Nothing here detects cycles: a cyclic graph serializes to a finite map only because
// the models' rules cut every back-reference.
package serialize

import (
	"errors"
	"fmt"
	"strings"
)

var ErrBadRule = errors.New("serialize: bad rule")

// Model is an entity that can be rendered by ToMap.
type Model interface {
	SerializeFields() []Field
	SerializeRules() []string
}

// Field is one named attribute. Value is a scalar, a Model, a []Model, or nil.
type Field struct {
	Name  string
	Value any
}

// ToMap renders m using its own rules plus any extra exclusion rules from the caller.
func ToMap(m Model, extra ...string) (map[string]any, error) {
	rs, err := parseRules(extra)
	if err != nil {
		return nil, err
	}
	return walk(m, rs), nil
}

// MustMap is ToMap for callers that pass no extra rules, or only constant ones.
func MustMap(m Model, extra ...string) map[string]any {
	out, err := ToMap(m, extra...)
	if err != nil {
		panic(err)
	}
	return out
}

// ruleSet holds exclusion paths with the leading '-' removed.
type ruleSet map[string]struct{}

func parseRules(rules []string) (ruleSet, error) {
	rs := make(ruleSet, len(rules))
	for _, r := range rules {
		r = strings.TrimSpace(r)
		if !strings.HasPrefix(r, "-") || len(r) < 2 {
			return nil, fmt.Errorf("%w: %q must look like -field[.field...]", ErrBadRule, r)
		}
		rs[r[1:]] = struct{}{}
	}
	return rs, nil
}

func (rs ruleSet) excludes(name string) bool {
	_, ok := rs[name]
	return ok
}

// under returns the rules that apply inside field name, with the prefix stripped.
func (rs ruleSet) under(name string) ruleSet {
	prefix := name + "."
	out := ruleSet{}
	for p := range rs {
		if rest, ok := strings.CutPrefix(p, prefix); ok {
			out[rest] = struct{}{}
		}
	}
	return out
}

func walk(m Model, inherited ruleSet) map[string]any {
	rules := make(ruleSet, len(inherited))
	for p := range inherited {
		rules[p] = struct{}{}
	}
	own, err := parseRules(m.SerializeRules())
	if err != nil {
		// model rules are compile-time constants
		panic(err)
	}
	for p := range own {
		rules[p] = struct{}{}
	}

	out := make(map[string]any)
	for _, f := range m.SerializeFields() {
		if rules.excludes(f.Name) {
			continue
		}
		switch v := f.Value.(type) {
		case Model:
			out[f.Name] = walk(v, rules.under(f.Name))
		case []Model:
			child := rules.under(f.Name)
			list := make([]any, 0, len(v))
			for _, elem := range v {
				list = append(list, walk(elem, child))
			}
			out[f.Name] = list
		default:
			out[f.Name] = v
		}
	}
	return out
}
