package store

import (
	"context"
	"errors"
	"time"

	"moviecatalog/pkg/domain"
	"moviecatalog/pkg/query"
)

// ErrDuplicateEmail is returned when a user write collides on email.
var ErrDuplicateEmail = errors.New("email already registered")

// Store defines persistence for the catalog. Every write touches a single
// record; lookups report absence through the bool result.
type Store interface {
	UserStore
	ActorStore
	GenreStore
	MovieStore
	ReviewStore
}

type UserStore interface {
	// CreateUser inserts a new user together with its credential. Either
	// both rows are written or neither is.
	CreateUser(ctx context.Context, u domain.User, c domain.Credential) error
	SaveUser(ctx context.Context, u domain.User) error
	GetUserByID(ctx context.Context, id string) (domain.User, bool, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, bool, error)
	// HasUserEmail ignores the user with exceptID so a user can keep its own email.
	HasUserEmail(ctx context.Context, email, exceptID string) (bool, error)
	ListUsers(ctx context.Context, q query.Query) ([]domain.User, int, error)
	UserCount(ctx context.Context) (int, error)
	// FirstUser returns the oldest user.
	FirstUser(ctx context.Context) (domain.User, bool, error)
	// DeleteUser removes the user and its credential.
	DeleteUser(ctx context.Context, id string) error
	SaveCredential(ctx context.Context, c domain.Credential) error
	GetCredential(ctx context.Context, userID string) (domain.Credential, bool, error)
	// RemoveFavorite drops movieID from every user's favorites.
	RemoveFavorite(ctx context.Context, movieID string) (int, error)
}

type ActorStore interface {
	SaveActor(ctx context.Context, a domain.Actor) error
	GetActor(ctx context.Context, id string) (domain.Actor, bool, error)
	ListActors(ctx context.Context, q query.Query) ([]domain.Actor, int, error)
	DeleteActor(ctx context.Context, id string) error
}

type GenreStore interface {
	SaveGenre(ctx context.Context, g domain.Genre) error
	GetGenre(ctx context.Context, id string) (domain.Genre, bool, error)
	ListGenres(ctx context.Context, q query.Query) ([]domain.Genre, int, error)
	DeleteGenre(ctx context.Context, id string) error
}

type MovieStore interface {
	SaveMovie(ctx context.Context, m domain.Movie) error
	GetMovie(ctx context.Context, id string) (domain.Movie, bool, error)
	ListMovies(ctx context.Context, q query.Query) ([]domain.Movie, int, error)
	DeleteMovie(ctx context.Context, id string) error
	MoviesWithActor(ctx context.Context, actorID string) ([]domain.Movie, error)
	MoviesWithGenre(ctx context.Context, genreID string) ([]domain.Movie, error)
	CountMoviesWithActor(ctx context.Context, actorID string) (int, error)
	CountMoviesWithGenre(ctx context.Context, genreID string) (int, error)
	SetMovieActors(ctx context.Context, movieID string, actors []domain.ActorSnapshot) error
	SetMovieGenres(ctx context.Context, movieID string, genres []domain.GenreSnapshot) error
	SetMovieRating(ctx context.Context, movieID string, rating float64) error
}

type ReviewStore interface {
	SaveReview(ctx context.Context, r domain.Review) error
	GetReview(ctx context.Context, id string) (domain.Review, bool, error)
	ListReviews(ctx context.Context, q query.Query) ([]domain.Review, int, error)
	DeleteReview(ctx context.Context, id string) error
	ReviewsByUser(ctx context.Context, userID string) ([]domain.Review, error)
	ReviewsByMovie(ctx context.Context, movieID string) ([]domain.Review, error)
	SetReviewUser(ctx context.Context, reviewID string, user domain.UserSnapshot) error
	SetReviewMovie(ctx context.Context, reviewID string, movie domain.MovieSnapshot) error
	SetReviewApproval(ctx context.Context, reviewID string, approved bool) error
	DeleteReviewsByMovie(ctx context.Context, movieID string) (int, error)
	// ApprovedRating returns the mean rating and count of approved reviews of a movie.
	ApprovedRating(ctx context.Context, movieID string) (float64, int, error)
}

// SessionStore issues and validates bearer tokens.
type SessionStore interface {
	NewSession(userID string) (string, error)
	GetUserIDByToken(token string) (string, bool, error)
	RevokeSession(token string) error
	RevokeUserSessions(userID string, since time.Time) error
}
