package query

import (
	"math"
	"reflect"
	"strings"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type movieRow struct {
	ID     string
	Title  string
	Rating float64
}

func (movieRow) TableName() string { return "movies" }

var movieCols = Columns{"id": "id", "title": "title", "rating": "rating", "user.fullname": "user_info->>'fullname'"}

func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{DSN: "host=localhost user=catalog dbname=catalog sslmode=disable"}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
	})
	if err != nil {
		t.Fatalf("open dry-run db: %v", err)
	}
	return db
}

// renderSQL builds the SELECT a list query would run, without a database.
func renderSQL(t *testing.T, q Query) (string, []any) {
	t.Helper()
	var rows []movieRow
	tx := dryRunDB(t).Scopes(q.Where(movieCols), q.Page(movieCols)).Find(&rows)
	if tx.Error != nil {
		t.Fatalf("render: %v", tx.Error)
	}
	return tx.Statement.SQL.String(), tx.Statement.Vars
}

func TestGormTextSearch(t *testing.T) {
	sql, vars := renderSQL(t, Build(Params{Q: "dark"}, nil, "title"))
	want := `SELECT * FROM "movies" WHERE (title ILIKE $1 ESCAPE '\')`
	if sql != want {
		t.Fatalf("sql = %s, want %s", sql, want)
	}
	if !reflect.DeepEqual(vars, []any{"%dark%"}) {
		t.Fatalf("vars = %#v", vars)
	}
}

func TestGormTextSearchEscapesWildcards(t *testing.T) {
	_, vars := renderSQL(t, Build(Params{Q: `50%_off\`}, nil, "title", "user.fullname"))
	want := `%50\%\_off\\%`
	if !reflect.DeepEqual(vars, []any{want, want}) {
		t.Fatalf("vars = %#v", vars)
	}
}

func TestGormTextSearchOnUnmappedFieldsMatchesNothing(t *testing.T) {
	sql, vars := renderSQL(t, Build(Params{Q: "dark"}, nil, "plot"))
	if !strings.Contains(sql, "WHERE 1 = 0") || len(vars) != 0 {
		t.Fatalf("sql = %s vars = %#v", sql, vars)
	}
}

func TestGormUnmappedFilterMatchesNothing(t *testing.T) {
	sql, _ := renderSQL(t, Build(Params{}, []Cond{Eq("secret", "x")}))
	if !strings.Contains(sql, "1 = 0") || strings.Contains(sql, "secret") {
		t.Fatalf("sql = %s", sql)
	}
}

func TestGormEmptyInFilter(t *testing.T) {
	sql, _ := renderSQL(t, Build(Params{}, []Cond{In("id", []string{})}))
	if !strings.Contains(sql, "id IN (NULL)") {
		t.Fatalf("sql = %s", sql)
	}
}

func TestGormPagination(t *testing.T) {
	sql, vars := renderSQL(t, Build(Params{Page: 2, Limit: 1}, nil))
	if !strings.HasSuffix(sql, "LIMIT $1 OFFSET $2") {
		t.Fatalf("sql = %s", sql)
	}
	if !reflect.DeepEqual(vars, []any{1, 1}) {
		t.Fatalf("vars = %#v", vars)
	}
}

func TestGormHugePageKeepsOffset(t *testing.T) {
	sql, vars := renderSQL(t, Build(Params{Page: math.MaxInt, Limit: 2}, nil))
	if !strings.Contains(sql, "OFFSET $2") {
		t.Fatalf("sql = %s", sql)
	}
	if !reflect.DeepEqual(vars, []any{2, math.MaxInt}) {
		t.Fatalf("vars = %#v", vars)
	}
}

func TestGormSortOrder(t *testing.T) {
	sql, _ := renderSQL(t, Build(Params{Sort: "title desc, rating, plot desc"}, nil))
	want := `SELECT * FROM "movies" ORDER BY title DESC NULLS LAST,rating ASC NULLS FIRST`
	if sql != want {
		t.Fatalf("sql = %s, want %s", sql, want)
	}
}
