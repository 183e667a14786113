package app

import (
	"context"
	"fmt"
	"mime/multipart"
	"strings"

	"moviecatalog/internal/util"
	"moviecatalog/pkg/domain"
	"moviecatalog/pkg/query"
	"moviecatalog/pkg/textutil"
)

// MovieInput names genres and actors by id; their snapshots are built from
// the stored entities.
type MovieInput struct {
	Title       string   `json:"title" validate:"required,max=200"`
	Cost        float64  `json:"cost" validate:"gte=0"`
	ReleaseYear int      `json:"release_year" validate:"omitempty,gte=1888,lte=2100"`
	Runtime     int      `json:"runtime" validate:"gte=0,lte=1000"`
	Plot        string   `json:"plot" validate:"max=5000"`
	Genres      []string `json:"genres"`
	Actors      []string `json:"actors"`
}

type MoviePatch struct {
	Title       *string   `json:"title"`
	Cost        *float64  `json:"cost"`
	ReleaseYear *int      `json:"release_year"`
	Runtime     *int      `json:"runtime"`
	Plot        *string   `json:"plot"`
	Genres      *[]string `json:"genres"`
	Actors      *[]string `json:"actors"`
}

// MovieImages are the optional poster and backdrop uploads of a movie write.
type MovieImages struct {
	Poster   *multipart.FileHeader
	Backdrop *multipart.FileHeader
}

func (a *App) ListMovies(ctx context.Context, p query.Params) (Page[domain.Movie], error) {
	movies, total, err := a.store.ListMovies(ctx, query.Build(p, nil, "title"))
	if err != nil {
		return Page[domain.Movie]{}, fmt.Errorf("list movies: %w", err)
	}
	return newPage(movies, total), nil
}

func (a *App) GetMovie(ctx context.Context, id string) (domain.Movie, error) {
	movie, ok, err := a.store.GetMovie(ctx, id)
	if err != nil {
		return domain.Movie{}, fmt.Errorf("load movie: %w", err)
	}
	if !ok {
		return domain.Movie{}, ErrMovieNotFound
	}
	return movie, nil
}

func cleanMovieInput(in MovieInput) MovieInput {
	in.Title = strings.TrimSpace(in.Title)
	in.Plot = textutil.StripTags(in.Plot)
	return in
}

// CreateMovie stores a movie; both poster and backdrop are required.
func (a *App) CreateMovie(ctx context.Context, in MovieInput, images MovieImages) (domain.Movie, error) {
	in = cleanMovieInput(in)
	if err := checkStruct(in); err != nil {
		return domain.Movie{}, err
	}
	if images.Poster == nil || images.Backdrop == nil {
		return domain.Movie{}, ErrMovieImagesRequired
	}
	genres, err := a.genreSnapshots(ctx, in.Genres)
	if err != nil {
		return domain.Movie{}, err
	}
	actors, err := a.actorSnapshots(ctx, in.Actors)
	if err != nil {
		return domain.Movie{}, err
	}
	poster, backdrop, err := a.saveMovieImages(ctx, images)
	if err != nil {
		return domain.Movie{}, err
	}

	now := a.now()
	movie := domain.Movie{
		ID:          util.NewID(),
		Title:       in.Title,
		Poster:      poster,
		Backdrop:    backdrop,
		Cost:        in.Cost,
		ReleaseYear: in.ReleaseYear,
		Runtime:     in.Runtime,
		Plot:        in.Plot,
		Genres:      genres,
		Actors:      actors,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := a.store.SaveMovie(ctx, movie); err != nil {
		a.discardImage(ctx, poster, "movie create failed")
		a.discardImage(ctx, backdrop, "movie create failed")
		return domain.Movie{}, fmt.Errorf("save movie: %w", err)
	}
	return movie, nil
}

// UpdateMovie applies a partial update. A changed title or poster is
// propagated to the movie's reviews.
func (a *App) UpdateMovie(ctx context.Context, id string, in MoviePatch, images MovieImages) (domain.Movie, error) {
	before, err := a.GetMovie(ctx, id)
	if err != nil {
		return domain.Movie{}, err
	}
	merged := MovieInput{
		Title:       before.Title,
		Cost:        before.Cost,
		ReleaseYear: before.ReleaseYear,
		Runtime:     before.Runtime,
		Plot:        before.Plot,
	}
	setIf(&merged.Title, in.Title)
	setIf(&merged.Plot, in.Plot)
	if in.Cost != nil {
		merged.Cost = *in.Cost
	}
	if in.ReleaseYear != nil {
		merged.ReleaseYear = *in.ReleaseYear
	}
	if in.Runtime != nil {
		merged.Runtime = *in.Runtime
	}
	merged = cleanMovieInput(merged)
	if err := checkStruct(merged); err != nil {
		return domain.Movie{}, err
	}

	after := before
	after.Title = merged.Title
	after.Cost = merged.Cost
	after.ReleaseYear = merged.ReleaseYear
	after.Runtime = merged.Runtime
	after.Plot = merged.Plot
	if in.Genres != nil {
		if after.Genres, err = a.genreSnapshots(ctx, *in.Genres); err != nil {
			return domain.Movie{}, err
		}
	}
	if in.Actors != nil {
		if after.Actors, err = a.actorSnapshots(ctx, *in.Actors); err != nil {
			return domain.Movie{}, err
		}
	}
	poster, backdrop, err := a.saveMovieImages(ctx, images)
	if err != nil {
		return domain.Movie{}, err
	}
	if poster != "" {
		after.Poster = poster
	}
	if backdrop != "" {
		after.Backdrop = backdrop
	}
	after.UpdatedAt = a.now()

	if err := a.store.SaveMovie(ctx, after); err != nil {
		a.discardImage(ctx, poster, "movie update failed")
		a.discardImage(ctx, backdrop, "movie update failed")
		return domain.Movie{}, fmt.Errorf("save movie: %w", err)
	}
	if poster != "" {
		a.discardImage(ctx, before.Poster, "movie poster replaced")
	}
	if backdrop != "" {
		a.discardImage(ctx, before.Backdrop, "movie backdrop replaced")
	}
	if _, err := a.propagate.MovieUpdated(ctx, before, after); err != nil {
		return domain.Movie{}, err
	}
	return after, nil
}

// DeleteMovie removes a movie with its reviews and favorite entries.
func (a *App) DeleteMovie(ctx context.Context, id string) error {
	movie, err := a.GetMovie(ctx, id)
	if err != nil {
		return err
	}
	if err := a.store.DeleteMovie(ctx, id); err != nil {
		return fmt.Errorf("delete movie: %w", err)
	}
	a.discardImage(ctx, movie.Poster, "movie deleted")
	a.discardImage(ctx, movie.Backdrop, "movie deleted")
	return a.propagate.MovieDeleted(ctx, id)
}

// MovieReviews lists the approved reviews of a movie without their movie
// snapshot.
func (a *App) MovieReviews(ctx context.Context, movieID string, p query.Params) (Page[domain.Review], error) {
	if _, err := a.GetMovie(ctx, movieID); err != nil {
		return Page[domain.Review]{}, err
	}
	base := []query.Cond{query.Eq("movie.movieId", movieID), query.Eq("approved", true)}
	reviews, total, err := a.store.ListReviews(ctx, query.Build(p, base, "content"))
	if err != nil {
		return Page[domain.Review]{}, fmt.Errorf("list movie reviews: %w", err)
	}
	for i := range reviews {
		reviews[i].Movie = nil
	}
	return newPage(reviews, total), nil
}

func (a *App) saveMovieImages(ctx context.Context, images MovieImages) (string, string, error) {
	poster, err := a.saveImage(ctx, "poster", images.Poster)
	if err != nil {
		return "", "", err
	}
	backdrop, err := a.saveImage(ctx, "backdrop", images.Backdrop)
	if err != nil {
		a.discardImage(ctx, poster, "movie backdrop rejected")
		return "", "", err
	}
	return poster, backdrop, nil
}

func (a *App) genreSnapshots(ctx context.Context, ids []string) ([]domain.GenreSnapshot, error) {
	out := make([]domain.GenreSnapshot, 0, len(ids))
	for _, id := range uniqueIDs(ids) {
		genre, ok, err := a.store.GetGenre(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load genre: %w", err)
		}
		if !ok {
			return nil, ErrGenreNotFound
		}
		out = append(out, genre.Snapshot())
	}
	return out, nil
}

func (a *App) actorSnapshots(ctx context.Context, ids []string) ([]domain.ActorSnapshot, error) {
	out := make([]domain.ActorSnapshot, 0, len(ids))
	for _, id := range uniqueIDs(ids) {
		actor, ok, err := a.store.GetActor(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load actor: %w", err)
		}
		if !ok {
			return nil, ErrActorNotFound
		}
		out = append(out, actor.Snapshot())
	}
	return out, nil
}

// uniqueIDs trims ids and drops blanks and repeats, keeping first-seen order.
func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
