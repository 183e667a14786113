package query

import (
	"encoding/json"
	"reflect"
	"sort"
	"strings"
)

// Apply evaluates q against items held in memory. Each item is viewed as
// its JSON document, so field paths use JSON names. It returns the page of
// matching items and the total number of matches.
func Apply[T any](items []T, q Query) ([]T, int, error) {
	filter, err := normalizeConds(q.Filter)
	if err != nil {
		return nil, 0, err
	}
	needle := strings.ToLower(q.Text)

	type row struct {
		item T
		doc  map[string]any
	}
	matched := make([]row, 0, len(items))
	for _, item := range items {
		doc, err := toDocument(item)
		if err != nil {
			return nil, 0, err
		}
		if !matchesFilter(doc, filter) {
			continue
		}
		if needle != "" && !matchesText(doc, q.Match, needle) {
			continue
		}
		matched = append(matched, row{item: item, doc: doc})
	}

	if len(q.Sort) > 0 {
		sort.SliceStable(matched, func(i, j int) bool {
			for _, key := range q.Sort {
				c := compareValues(first(lookup(matched[i].doc, key.Field)), first(lookup(matched[j].doc, key.Field)))
				if c == 0 {
					continue
				}
				if key.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}

	total := len(matched)
	start, end := 0, total
	if q.Limit > 0 {
		start = min(max(q.Skip, 0), total)
		end = start + min(q.Limit, total-start)
	}
	out := make([]T, 0, end-start)
	for _, r := range matched[start:end] {
		out = append(out, r.item)
	}
	return out, total, nil
}

func toDocument(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// normalizeConds runs condition values through JSON so they compare with
// document values of the same shape.
func normalizeConds(conds []Cond) ([]Cond, error) {
	out := make([]Cond, len(conds))
	for i, c := range conds {
		raw, err := json.Marshal(c.Value)
		if err != nil {
			return nil, err
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		c.Value = v
		out[i] = c
	}
	return out, nil
}

func matchesFilter(doc map[string]any, conds []Cond) bool {
	for _, c := range conds {
		values := lookup(doc, c.Field)
		ok := false
		for _, v := range values {
			if c.Op == OpIn {
				options, _ := c.Value.([]any)
				for _, o := range options {
					if reflect.DeepEqual(v, o) {
						ok = true
						break
					}
				}
			} else if reflect.DeepEqual(v, c.Value) {
				ok = true
			}
			if ok {
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

func matchesText(doc map[string]any, fields []string, needle string) bool {
	for _, field := range fields {
		for _, v := range lookup(doc, field) {
			s, ok := v.(string)
			if ok && strings.Contains(strings.ToLower(s), needle) {
				return true
			}
		}
	}
	return false
}

// lookup resolves a dotted path. Arrays fan out so "actors.name" yields the
// name of every embedded actor. Missing and null values yield nothing.
func lookup(doc any, path string) []any {
	current := []any{doc}
	for _, part := range strings.Split(path, ".") {
		var next []any
		for _, node := range current {
			next = append(next, step(node, part)...)
		}
		if len(next) == 0 {
			return nil
		}
		current = next
	}
	var out []any
	for _, v := range current {
		switch tv := v.(type) {
		case nil:
		case []any:
			for _, e := range tv {
				if e != nil {
					out = append(out, e)
				}
			}
		default:
			out = append(out, v)
		}
	}
	return out
}

func step(node any, key string) []any {
	switch n := node.(type) {
	case map[string]any:
		v, ok := n[key]
		if !ok || v == nil {
			return nil
		}
		return []any{v}
	case []any:
		var out []any
		for _, e := range n {
			out = append(out, step(e, key)...)
		}
		return out
	}
	return nil
}

func first(values []any) any {
	if len(values) == 0 {
		return nil
	}
	return values[0]
}

// compareValues orders missing < numbers < strings < other < booleans.
func compareValues(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra - rb
	}
	switch av := a.(type) {
	case float64:
		bv := b.(float64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
	case string:
		return strings.Compare(av, b.(string))
	case bool:
		bv := b.(bool)
		switch {
		case !av && bv:
			return -1
		case av && !bv:
			return 1
		}
	}
	return 0
}

func rank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case float64:
		return 1
	case string:
		return 2
	case bool:
		return 4
	default:
		return 3
	}
}
