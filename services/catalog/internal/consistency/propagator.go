// Package consistency keeps the snapshots embedded in movies and reviews in
// line with their canonical actors, genres, users and movies. Every method is
// a post-write hook: the caller commits the canonical change first, then
// calls the matching method here.
package consistency

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"moviecatalog/internal/util"
	"moviecatalog/pkg/domain"
)

var (
	// ErrActorReferenced blocks deleting an actor that a movie still casts.
	ErrActorReferenced = errors.New("actor is referenced by a movie")
	// ErrGenreReferenced blocks deleting a genre that a movie still lists.
	ErrGenreReferenced = errors.New("genre is referenced by a movie")
)

// Store is the slice of persistence the propagator reads and rewrites.
type Store interface {
	UserCount(ctx context.Context) (int, error)
	FirstUser(ctx context.Context) (domain.User, bool, error)
	SaveUser(ctx context.Context, u domain.User) error
	RemoveFavorite(ctx context.Context, movieID string) (int, error)

	MoviesWithActor(ctx context.Context, actorID string) ([]domain.Movie, error)
	MoviesWithGenre(ctx context.Context, genreID string) ([]domain.Movie, error)
	CountMoviesWithActor(ctx context.Context, actorID string) (int, error)
	CountMoviesWithGenre(ctx context.Context, genreID string) (int, error)
	SetMovieActors(ctx context.Context, movieID string, actors []domain.ActorSnapshot) error
	SetMovieGenres(ctx context.Context, movieID string, genres []domain.GenreSnapshot) error
	SetMovieRating(ctx context.Context, movieID string, rating float64) error

	ReviewsByUser(ctx context.Context, userID string) ([]domain.Review, error)
	ReviewsByMovie(ctx context.Context, movieID string) ([]domain.Review, error)
	SetReviewUser(ctx context.Context, reviewID string, user domain.UserSnapshot) error
	SetReviewMovie(ctx context.Context, reviewID string, movie domain.MovieSnapshot) error
	DeleteReviewsByMovie(ctx context.Context, movieID string) (int, error)
	ApprovedRating(ctx context.Context, movieID string) (float64, int, error)
}

// Propagator rewrites snapshots one document at a time. It holds no locks;
// concurrent propagations to the same document are last-writer-wins.
type Propagator struct {
	store Store
}

func New(store Store) *Propagator {
	return &Propagator{store: store}
}

// ActorUpdated refreshes the actor's snapshot in every movie that casts it
// and returns how many movies were rewritten. Movies already carrying the
// current snapshot are left alone.
func (p *Propagator) ActorUpdated(ctx context.Context, actor domain.Actor) (int, error) {
	movies, err := p.store.MoviesWithActor(ctx, actor.ID)
	if err != nil {
		return 0, fmt.Errorf("find movies with actor: %w", err)
	}
	snap := actor.Snapshot()
	written := 0
	for _, movie := range movies {
		actors, changed := replaceWhere(movie.Actors, snap, func(a domain.ActorSnapshot) bool {
			return a.ActorID == actor.ID
		})
		if !changed {
			continue
		}
		if err := p.store.SetMovieActors(ctx, movie.ID, actors); err != nil {
			return written, fmt.Errorf("rewrite actors of movie %s: %w", movie.ID, err)
		}
		written++
	}
	util.LoggerFromContext(ctx).Debug("actor snapshots propagated", "actor_id", actor.ID, "movies", len(movies), "rewritten", written)
	return written, nil
}

// GenreUpdated refreshes the genre's snapshot in every movie that lists it.
func (p *Propagator) GenreUpdated(ctx context.Context, genre domain.Genre) (int, error) {
	movies, err := p.store.MoviesWithGenre(ctx, genre.ID)
	if err != nil {
		return 0, fmt.Errorf("find movies with genre: %w", err)
	}
	snap := genre.Snapshot()
	written := 0
	for _, movie := range movies {
		genres, changed := replaceWhere(movie.Genres, snap, func(g domain.GenreSnapshot) bool {
			return g.ID == genre.ID
		})
		if !changed {
			continue
		}
		if err := p.store.SetMovieGenres(ctx, movie.ID, genres); err != nil {
			return written, fmt.Errorf("rewrite genres of movie %s: %w", movie.ID, err)
		}
		written++
	}
	util.LoggerFromContext(ctx).Debug("genre snapshots propagated", "genre_id", genre.ID, "movies", len(movies), "rewritten", written)
	return written, nil
}

// UserUpdated refreshes the reviewer snapshot on the user's reviews. It does
// nothing when neither the name nor the photo changed.
func (p *Propagator) UserUpdated(ctx context.Context, before, after domain.User) (int, error) {
	if before.Snapshot() == after.Snapshot() {
		return 0, nil
	}
	reviews, err := p.store.ReviewsByUser(ctx, after.ID)
	if err != nil {
		return 0, fmt.Errorf("find reviews by user: %w", err)
	}
	snap := after.Snapshot()
	written := 0
	for _, review := range reviews {
		if review.User == snap {
			continue
		}
		if err := p.store.SetReviewUser(ctx, review.ID, snap); err != nil {
			return written, fmt.Errorf("rewrite user of review %s: %w", review.ID, err)
		}
		written++
	}
	util.LoggerFromContext(ctx).Debug("user snapshots propagated", "user_id", after.ID, "reviews", len(reviews), "rewritten", written)
	return written, nil
}

// MovieUpdated refreshes the movie snapshot on the movie's reviews when the
// title or poster changed.
func (p *Propagator) MovieUpdated(ctx context.Context, before, after domain.Movie) (int, error) {
	if before.Snapshot() == after.Snapshot() {
		return 0, nil
	}
	reviews, err := p.store.ReviewsByMovie(ctx, after.ID)
	if err != nil {
		return 0, fmt.Errorf("find reviews by movie: %w", err)
	}
	snap := after.Snapshot()
	written := 0
	for _, review := range reviews {
		if review.Movie != nil && *review.Movie == snap {
			continue
		}
		if err := p.store.SetReviewMovie(ctx, review.ID, snap); err != nil {
			return written, fmt.Errorf("rewrite movie of review %s: %w", review.ID, err)
		}
		written++
	}
	util.LoggerFromContext(ctx).Debug("movie snapshots propagated", "movie_id", after.ID, "reviews", len(reviews), "rewritten", written)
	return written, nil
}

// MovieDeleted removes the reviews of a deleted movie and drops it from
// every user's favorites.
func (p *Propagator) MovieDeleted(ctx context.Context, movieID string) error {
	reviews, err := p.store.DeleteReviewsByMovie(ctx, movieID)
	if err != nil {
		return fmt.Errorf("delete reviews of movie: %w", err)
	}
	users, err := p.store.RemoveFavorite(ctx, movieID)
	if err != nil {
		return fmt.Errorf("remove favorite: %w", err)
	}
	util.LoggerFromContext(ctx).Debug("movie references removed", "movie_id", movieID, "reviews", reviews, "users", users)
	return nil
}

// RatingChanged recomputes the movie rating from the approved reviews as
// they are now stored. A movie without approved reviews is rated 0.
func (p *Propagator) RatingChanged(ctx context.Context, movieID string) (float64, error) {
	avg, count, err := p.store.ApprovedRating(ctx, movieID)
	if err != nil {
		return 0, fmt.Errorf("average approved ratings: %w", err)
	}
	if count == 0 {
		avg = 0
	}
	if err := p.store.SetMovieRating(ctx, movieID, avg); err != nil {
		return 0, fmt.Errorf("set movie rating: %w", err)
	}
	util.LoggerFromContext(ctx).Debug("movie rating recomputed", "movie_id", movieID, "approved", count, "rating", avg)
	return avg, nil
}

// CheckActorDeletable fails with ErrActorReferenced while any movie casts the actor.
func (p *Propagator) CheckActorDeletable(ctx context.Context, actorID string) error {
	n, err := p.store.CountMoviesWithActor(ctx, actorID)
	if err != nil {
		return fmt.Errorf("count movies with actor: %w", err)
	}
	if n > 0 {
		return ErrActorReferenced
	}
	return nil
}

// CheckGenreDeletable fails with ErrGenreReferenced while any movie lists the genre.
func (p *Propagator) CheckGenreDeletable(ctx context.Context, genreID string) error {
	n, err := p.store.CountMoviesWithGenre(ctx, genreID)
	if err != nil {
		return fmt.Errorf("count movies with genre: %w", err)
	}
	if n > 0 {
		return ErrGenreReferenced
	}
	return nil
}

// UserDeleted promotes the sole remaining user to an active admin. It reports
// the promoted user, if any. Deleting the last admin while other users
// remain is not prevented.
func (p *Propagator) UserDeleted(ctx context.Context) (domain.User, bool, error) {
	n, err := p.store.UserCount(ctx)
	if err != nil {
		return domain.User{}, false, fmt.Errorf("count users: %w", err)
	}
	if n != 1 {
		return domain.User{}, false, nil
	}
	user, ok, err := p.store.FirstUser(ctx)
	if err != nil {
		return domain.User{}, false, fmt.Errorf("load remaining user: %w", err)
	}
	if !ok {
		return domain.User{}, false, nil
	}
	if user.Role == domain.RoleAdmin && user.Enabled && user.Approved {
		return user, false, nil
	}
	user.Role = domain.RoleAdmin
	user.Enabled = true
	user.Approved = true
	user.UpdatedAt = time.Now().UTC()
	if err := p.store.SaveUser(ctx, user); err != nil {
		return domain.User{}, false, fmt.Errorf("promote remaining user: %w", err)
	}
	util.LoggerFromContext(ctx).Info("sole remaining user promoted to admin", "user_id", user.ID)
	return user, true, nil
}

// replaceWhere swaps every element matching match for snap, keeping order
// and length. changed is false when every match already equals snap.
func replaceWhere[T comparable](items []T, snap T, match func(T) bool) ([]T, bool) {
	out := slices.Clone(items)
	changed := false
	for i, item := range out {
		if match(item) && item != snap {
			out[i] = snap
			changed = true
		}
	}
	return out, changed
}
