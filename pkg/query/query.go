// Package query turns list request parameters (free text, page, limit and
// sort) into a Query value that stores evaluate against their backing data.
package query

import (
	"errors"
	"math"
	"net/url"
	"strconv"
	"strings"
)

// Op is a filter comparison.
type Op int

const (
	OpEq Op = iota
	OpIn
)

// Cond restricts a dotted document field to a value (OpEq) or to any of a
// list of values (OpIn).
type Cond struct {
	Field string
	Op    Op
	Value any
}

// Eq is shorthand for an equality condition.
func Eq(field string, value any) Cond {
	return Cond{Field: field, Op: OpEq, Value: value}
}

// In matches documents whose field equals one of values.
func In(field string, values []string) Cond {
	return Cond{Field: field, Op: OpIn, Value: values}
}

// SortKey orders by one field.
type SortKey struct {
	Field string
	Desc  bool
}

// Params is the raw shape shared by every list endpoint.
type Params struct {
	Q     string
	Page  int
	Limit int
	Sort  string
}

// Query is a built filter plus paging and ordering options.
// Limit zero means unbounded.
type Query struct {
	Filter []Cond
	Text   string
	Match  []string
	Skip   int
	Limit  int
	Sort   []SortKey
}

var (
	ErrInvalidPage  = errors.New("page must be a positive integer")
	ErrInvalidLimit = errors.New("limit must be a positive integer")
)

// Build combines request params with the caller's base filter and the
// fields searched by q. Text search only applies when matchFields is
// non-empty; paging only applies when both page and limit are set.
func Build(p Params, base []Cond, matchFields ...string) Query {
	q := Query{
		Filter: append([]Cond(nil), base...),
		Sort:   ParseSort(p.Sort),
	}
	if text := strings.TrimSpace(p.Q); text != "" && len(matchFields) > 0 {
		q.Text = text
		q.Match = append([]string(nil), matchFields...)
	}
	if p.Page > 0 && p.Limit > 0 {
		q.Skip = math.MaxInt
		if !pageOverflows(p.Page, p.Limit) {
			q.Skip = (p.Page - 1) * p.Limit
		}
		q.Limit = p.Limit
	}
	return q
}

// pageOverflows reports whether the offset of page does not fit in an int.
func pageOverflows(page, limit int) bool {
	return limit > 0 && page-1 > math.MaxInt/limit
}

// ParseSort parses "field dir, field dir" into ordered sort keys.
// A missing direction means ascending.
func ParseSort(raw string) []SortKey {
	var keys []SortKey
	for _, token := range strings.Split(raw, ",") {
		parts := strings.Fields(token)
		if len(parts) == 0 {
			continue
		}
		key := SortKey{Field: parts[0]}
		if len(parts) > 1 {
			switch strings.ToLower(parts[1]) {
			case "desc", "descending", "-1":
				key.Desc = true
			}
		}
		keys = append(keys, key)
	}
	return keys
}

// ParseParams reads q, page, limit and sort from URL query values.
func ParseParams(values url.Values) (Params, error) {
	p := Params{
		Q:    values.Get("q"),
		Sort: values.Get("sort"),
	}
	var err error
	if p.Page, err = parseCount(values.Get("page")); err != nil {
		return Params{}, ErrInvalidPage
	}
	if p.Limit, err = parseCount(values.Get("limit")); err != nil {
		return Params{}, ErrInvalidLimit
	}
	if pageOverflows(p.Page, p.Limit) {
		return Params{}, ErrInvalidPage
	}
	return p, nil
}

func parseCount(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, strconv.ErrSyntax
	}
	return n, nil
}
