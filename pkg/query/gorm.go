package query

import (
	"strings"

	"gorm.io/gorm"
)

// Columns maps document field paths onto SQL expressions of one table.
// Only mapped fields ever reach SQL.
type Columns map[string]string

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Where returns a scope applying the filter and text search of q.
// A condition on an unmapped field matches nothing.
func (q Query) Where(cols Columns) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		for _, c := range q.Filter {
			expr, ok := cols[c.Field]
			if !ok {
				return db.Where("1 = 0")
			}
			if c.Op == OpIn {
				db = db.Where(expr+" IN ?", c.Value)
				continue
			}
			db = db.Where(expr+" = ?", c.Value)
		}
		if q.Text == "" || len(q.Match) == 0 {
			return db
		}
		pattern := "%" + likeEscaper.Replace(q.Text) + "%"
		parts := make([]string, 0, len(q.Match))
		args := make([]any, 0, len(q.Match))
		for _, field := range q.Match {
			expr, ok := cols[field]
			if !ok {
				continue
			}
			parts = append(parts, expr+` ILIKE ? ESCAPE '\'`)
			args = append(args, pattern)
		}
		if len(parts) == 0 {
			return db.Where("1 = 0")
		}
		return db.Where("("+strings.Join(parts, " OR ")+")", args...)
	}
}

// Page returns a scope applying sort order, offset and limit. Unmapped
// sort fields are skipped. Nulls sort first ascending, like the in-memory
// executor.
func (q Query) Page(cols Columns) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		for _, key := range q.Sort {
			expr, ok := cols[key.Field]
			if !ok {
				continue
			}
			if key.Desc {
				db = db.Order(expr + " DESC NULLS LAST")
			} else {
				db = db.Order(expr + " ASC NULLS FIRST")
			}
		}
		if q.Limit > 0 {
			db = db.Offset(max(q.Skip, 0)).Limit(q.Limit)
		}
		return db
	}
}
