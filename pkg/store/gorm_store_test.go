package store

import (
	"context"
	"slices"
	"strings"
	"sync"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"moviecatalog/pkg/query"
)

// capturedStore returns a GormStore that renders SQL without a database and
// the statements it rendered.
func capturedStore(t *testing.T) (*GormStore, func() []string) {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{DSN: "host=localhost user=catalog dbname=catalog sslmode=disable"}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
	})
	if err != nil {
		t.Fatalf("open dry-run db: %v", err)
	}
	var (
		mu   sync.Mutex
		seen []string
	)
	err = db.Callback().Query().After("gorm:query").Register("catalog:capture", func(tx *gorm.DB) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, tx.Statement.SQL.String())
	})
	if err != nil {
		t.Fatalf("register capture: %v", err)
	}
	return &GormStore{db: db}, func() []string {
		mu.Lock()
		defer mu.Unlock()
		out := slices.Clone(seen)
		slices.Sort(out)
		return out
	}
}

func TestGormListMoviesSQL(t *testing.T) {
	s, statements := capturedStore(t)
	q := query.Build(query.Params{Q: "dark", Page: 2, Limit: 1, Sort: "title desc"}, nil, "title")
	if _, _, err := s.ListMovies(context.Background(), q); err != nil {
		t.Fatalf("list movies: %v", err)
	}

	got := statements()
	want := []string{
		`SELECT * FROM "movies" WHERE (title ILIKE $1 ESCAPE '\') ORDER BY title DESC NULLS LAST,created_at ASC, id ASC LIMIT $2 OFFSET $3`,
		`SELECT count(*) FROM "movies" WHERE (title ILIKE $1 ESCAPE '\')`,
	}
	if !slices.Equal(got, want) {
		t.Fatalf("statements:\n%s\nwant:\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
}

func TestGormListReviewsUsesSnapshotColumns(t *testing.T) {
	s, statements := capturedStore(t)
	q := query.Build(query.Params{Q: "noir"}, []query.Cond{query.Eq("movie.movieId", "m1")}, "content", "user.fullname")
	if _, _, err := s.ListReviews(context.Background(), q); err != nil {
		t.Fatalf("list reviews: %v", err)
	}
	for _, sql := range statements() {
		if !strings.Contains(sql, `FROM "reviews"`) || !strings.Contains(sql, "movie_info->>'movieId' = $1") {
			t.Fatalf("unexpected statement %s", sql)
		}
		if !strings.Contains(sql, "(content ILIKE $2 ESCAPE '\\' OR user_info->>'fullname' ILIKE $3 ESCAPE '\\')") {
			t.Fatalf("text search missing from %s", sql)
		}
	}
}

func TestGormFavoritesOfEmptyList(t *testing.T) {
	s, statements := capturedStore(t)
	q := query.Build(query.Params{}, []query.Cond{query.In("id", []string{})}, "title")
	if _, _, err := s.ListMovies(context.Background(), q); err != nil {
		t.Fatalf("list movies: %v", err)
	}
	for _, sql := range statements() {
		if !strings.Contains(sql, "WHERE id IN (NULL)") {
			t.Fatalf("empty favorites must match nothing: %s", sql)
		}
	}
}

func TestModelTableNames(t *testing.T) {
	names := []string{
		UserModel{}.TableName(), CredentialModel{}.TableName(), ActorModel{}.TableName(),
		GenreModel{}.TableName(), MovieModel{}.TableName(), ReviewModel{}.TableName(),
	}
	want := []string{"users", "user_credentials", "actors", "genres", "movies", "reviews"}
	if !slices.Equal(names, want) {
		t.Fatalf("table names = %v", names)
	}
}
