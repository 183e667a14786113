package store

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"moviecatalog/pkg/domain"
	"moviecatalog/pkg/query"
)

// table keeps rows by id and remembers insertion order.
type table[T any] struct {
	rows  map[string]T
	order []string
}

func newTable[T any]() *table[T] {
	return &table[T]{rows: make(map[string]T)}
}

func (t *table[T]) put(id string, v T) {
	if _, exists := t.rows[id]; !exists {
		t.order = append(t.order, id)
	}
	t.rows[id] = v
}

func (t *table[T]) get(id string) (T, bool) {
	v, ok := t.rows[id]
	return v, ok
}

func (t *table[T]) remove(id string) {
	if _, ok := t.rows[id]; !ok {
		return
	}
	delete(t.rows, id)
	t.order = slices.DeleteFunc(t.order, func(v string) bool { return v == id })
}

// all returns rows in insertion order.
func (t *table[T]) all() []T {
	out := make([]T, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.rows[id])
	}
	return out
}

// MemoryStore keeps the catalog in-process. It backs tests and local runs
// without a database.
type MemoryStore struct {
	mu          sync.RWMutex
	users       *table[domain.User]
	credentials map[string]domain.Credential
	actors      *table[domain.Actor]
	genres      *table[domain.Genre]
	movies      *table[domain.Movie]
	reviews     *table[domain.Review]
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       newTable[domain.User](),
		credentials: make(map[string]domain.Credential),
		actors:      newTable[domain.Actor](),
		genres:      newTable[domain.Genre](),
		movies:      newTable[domain.Movie](),
		reviews:     newTable[domain.Review](),
	}
}

func cloneUser(u domain.User) domain.User {
	u.Favorites = slices.Clone(u.Favorites)
	return u
}

func cloneMovie(m domain.Movie) domain.Movie {
	m.Genres = slices.Clone(m.Genres)
	m.Actors = slices.Clone(m.Actors)
	return m
}

func cloneReview(r domain.Review) domain.Review {
	if r.Movie != nil {
		movie := *r.Movie
		r.Movie = &movie
	}
	return r
}

func cloneAll[T any](items []T, fn func(T) T) []T {
	out := make([]T, 0, len(items))
	for _, v := range items {
		out = append(out, fn(v))
	}
	return out
}

func (m *MemoryStore) CreateUser(_ context.Context, u domain.User, c domain.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users.rows {
		if existing.ID == u.ID || strings.EqualFold(existing.Email, u.Email) {
			return ErrDuplicateEmail
		}
	}
	c.UserID = u.ID
	m.users.put(u.ID, cloneUser(u))
	m.credentials[u.ID] = c
	return nil
}

func (m *MemoryStore) SaveUser(_ context.Context, u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users.rows {
		if existing.ID != u.ID && strings.EqualFold(existing.Email, u.Email) {
			return ErrDuplicateEmail
		}
	}
	m.users.put(u.ID, cloneUser(u))
	return nil
}

func (m *MemoryStore) GetUserByID(_ context.Context, id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users.get(id)
	return cloneUser(u), ok, nil
}

func (m *MemoryStore) GetUserByEmail(_ context.Context, email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users.all() {
		if strings.EqualFold(u.Email, email) {
			return cloneUser(u), true, nil
		}
	}
	return domain.User{}, false, nil
}

func (m *MemoryStore) HasUserEmail(_ context.Context, email, exceptID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users.rows {
		if u.ID != exceptID && strings.EqualFold(u.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) ListUsers(_ context.Context, q query.Query) ([]domain.User, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return query.Apply(cloneAll(m.users.all(), cloneUser), q)
}

func (m *MemoryStore) UserCount(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users.rows), nil
}

func (m *MemoryStore) FirstUser(_ context.Context) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	users := m.users.all()
	if len(users) == 0 {
		return domain.User{}, false, nil
	}
	return cloneUser(users[0]), true, nil
}

func (m *MemoryStore) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users.remove(id)
	delete(m.credentials, id)
	return nil
}

func (m *MemoryStore) SaveCredential(_ context.Context, c domain.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credentials[c.UserID] = c
	return nil
}

func (m *MemoryStore) GetCredential(_ context.Context, userID string) (domain.Credential, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.credentials[userID]
	return c, ok, nil
}

func (m *MemoryStore) RemoveFavorite(_ context.Context, movieID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	changed := 0
	for _, u := range m.users.all() {
		if !u.HasFavorite(movieID) {
			continue
		}
		u = cloneUser(u)
		u.Favorites = slices.DeleteFunc(u.Favorites, func(id string) bool { return id == movieID })
		u.UpdatedAt = time.Now().UTC()
		m.users.put(u.ID, u)
		changed++
	}
	return changed, nil
}

func (m *MemoryStore) SaveActor(_ context.Context, a domain.Actor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actors.put(a.ID, a)
	return nil
}

func (m *MemoryStore) GetActor(_ context.Context, id string) (domain.Actor, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.actors.get(id)
	return a, ok, nil
}

func (m *MemoryStore) ListActors(_ context.Context, q query.Query) ([]domain.Actor, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return query.Apply(m.actors.all(), q)
}

func (m *MemoryStore) DeleteActor(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actors.remove(id)
	return nil
}

func (m *MemoryStore) SaveGenre(_ context.Context, g domain.Genre) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.genres.put(g.ID, g)
	return nil
}

func (m *MemoryStore) GetGenre(_ context.Context, id string) (domain.Genre, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.genres.get(id)
	return g, ok, nil
}

func (m *MemoryStore) ListGenres(_ context.Context, q query.Query) ([]domain.Genre, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return query.Apply(m.genres.all(), q)
}

func (m *MemoryStore) DeleteGenre(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.genres.remove(id)
	return nil
}

func (m *MemoryStore) SaveMovie(_ context.Context, mv domain.Movie) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.movies.put(mv.ID, cloneMovie(mv))
	return nil
}

func (m *MemoryStore) GetMovie(_ context.Context, id string) (domain.Movie, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mv, ok := m.movies.get(id)
	return cloneMovie(mv), ok, nil
}

func (m *MemoryStore) ListMovies(_ context.Context, q query.Query) ([]domain.Movie, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return query.Apply(cloneAll(m.movies.all(), cloneMovie), q)
}

func (m *MemoryStore) DeleteMovie(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.movies.remove(id)
	return nil
}

func (m *MemoryStore) moviesWhere(match func(domain.Movie) bool) []domain.Movie {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Movie
	for _, mv := range m.movies.all() {
		if match(mv) {
			out = append(out, cloneMovie(mv))
		}
	}
	return out
}

func (m *MemoryStore) MoviesWithActor(_ context.Context, actorID string) ([]domain.Movie, error) {
	return m.moviesWhere(func(mv domain.Movie) bool { return mv.HasActor(actorID) }), nil
}

func (m *MemoryStore) MoviesWithGenre(_ context.Context, genreID string) ([]domain.Movie, error) {
	return m.moviesWhere(func(mv domain.Movie) bool { return mv.HasGenre(genreID) }), nil
}

func (m *MemoryStore) CountMoviesWithActor(ctx context.Context, actorID string) (int, error) {
	movies, err := m.MoviesWithActor(ctx, actorID)
	return len(movies), err
}

func (m *MemoryStore) CountMoviesWithGenre(ctx context.Context, genreID string) (int, error) {
	movies, err := m.MoviesWithGenre(ctx, genreID)
	return len(movies), err
}

func (m *MemoryStore) updateMovie(id string, fn func(*domain.Movie)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mv, ok := m.movies.get(id)
	if !ok {
		return nil
	}
	mv = cloneMovie(mv)
	fn(&mv)
	mv.UpdatedAt = time.Now().UTC()
	m.movies.put(id, mv)
	return nil
}

func (m *MemoryStore) SetMovieActors(_ context.Context, movieID string, actors []domain.ActorSnapshot) error {
	return m.updateMovie(movieID, func(mv *domain.Movie) { mv.Actors = slices.Clone(actors) })
}

func (m *MemoryStore) SetMovieGenres(_ context.Context, movieID string, genres []domain.GenreSnapshot) error {
	return m.updateMovie(movieID, func(mv *domain.Movie) { mv.Genres = slices.Clone(genres) })
}

func (m *MemoryStore) SetMovieRating(_ context.Context, movieID string, rating float64) error {
	return m.updateMovie(movieID, func(mv *domain.Movie) { mv.Rating = rating })
}

func (m *MemoryStore) SaveReview(_ context.Context, r domain.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reviews.put(r.ID, cloneReview(r))
	return nil
}

func (m *MemoryStore) GetReview(_ context.Context, id string) (domain.Review, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reviews.get(id)
	return cloneReview(r), ok, nil
}

func (m *MemoryStore) ListReviews(_ context.Context, q query.Query) ([]domain.Review, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return query.Apply(cloneAll(m.reviews.all(), cloneReview), q)
}

func (m *MemoryStore) DeleteReview(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reviews.remove(id)
	return nil
}

func (m *MemoryStore) reviewsWhere(match func(domain.Review) bool) []domain.Review {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Review
	for _, r := range m.reviews.all() {
		if match(r) {
			out = append(out, cloneReview(r))
		}
	}
	return out
}

func reviewOf(movieID string) func(domain.Review) bool {
	return func(r domain.Review) bool { return r.Movie != nil && r.Movie.MovieID == movieID }
}

func (m *MemoryStore) ReviewsByUser(_ context.Context, userID string) ([]domain.Review, error) {
	return m.reviewsWhere(func(r domain.Review) bool { return r.User.UserID == userID }), nil
}

func (m *MemoryStore) ReviewsByMovie(_ context.Context, movieID string) ([]domain.Review, error) {
	return m.reviewsWhere(reviewOf(movieID)), nil
}

func (m *MemoryStore) updateReview(id string, fn func(*domain.Review)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reviews.get(id)
	if !ok {
		return nil
	}
	r = cloneReview(r)
	fn(&r)
	m.reviews.put(id, r)
	return nil
}

func (m *MemoryStore) SetReviewUser(_ context.Context, reviewID string, user domain.UserSnapshot) error {
	return m.updateReview(reviewID, func(r *domain.Review) { r.User = user })
}

func (m *MemoryStore) SetReviewMovie(_ context.Context, reviewID string, movie domain.MovieSnapshot) error {
	return m.updateReview(reviewID, func(r *domain.Review) { r.Movie = &movie })
}

func (m *MemoryStore) SetReviewApproval(_ context.Context, reviewID string, approved bool) error {
	return m.updateReview(reviewID, func(r *domain.Review) { r.Approved = approved })
}

func (m *MemoryStore) DeleteReviewsByMovie(_ context.Context, movieID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	match := reviewOf(movieID)
	removed := 0
	for _, r := range m.reviews.all() {
		if match(r) {
			m.reviews.remove(r.ID)
			removed++
		}
	}
	return removed, nil
}

func (m *MemoryStore) ApprovedRating(_ context.Context, movieID string) (float64, int, error) {
	reviews := m.reviewsWhere(reviewOf(movieID))
	sum, n := 0, 0
	for _, r := range reviews {
		if r.Approved {
			sum += r.Rating
			n++
		}
	}
	if n == 0 {
		return 0, 0, nil
	}
	return float64(sum) / float64(n), n, nil
}

var _ Store = (*MemoryStore)(nil)
var _ Store = (*GormStore)(nil)
