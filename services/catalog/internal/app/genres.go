package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"moviecatalog/internal/util"
	"moviecatalog/pkg/domain"
	"moviecatalog/pkg/query"
	"moviecatalog/services/catalog/internal/consistency"
)

type GenreInput struct {
	Title    string `json:"title" validate:"required,max=100"`
	Gradient string `json:"gradient" validate:"omitempty,max=200"`
}

type GenrePatch struct {
	Title    *string `json:"title"`
	Gradient *string `json:"gradient"`
}

// GenreDetail is a genre with, on request, the movies listing it.
type GenreDetail struct {
	domain.Genre
	Movies []domain.Movie `json:"movies,omitempty"`
}

func (a *App) ListGenres(ctx context.Context, p query.Params) (Page[domain.Genre], error) {
	genres, total, err := a.store.ListGenres(ctx, query.Build(p, nil, "title"))
	if err != nil {
		return Page[domain.Genre]{}, fmt.Errorf("list genres: %w", err)
	}
	return newPage(genres, total), nil
}

func (a *App) GetGenre(ctx context.Context, id string, includeMovies bool) (GenreDetail, error) {
	genre, ok, err := a.store.GetGenre(ctx, id)
	if err != nil {
		return GenreDetail{}, fmt.Errorf("load genre: %w", err)
	}
	if !ok {
		return GenreDetail{}, ErrGenreNotFound
	}
	detail := GenreDetail{Genre: genre}
	if includeMovies {
		movies, err := a.store.MoviesWithGenre(ctx, id)
		if err != nil {
			return GenreDetail{}, fmt.Errorf("load genre movies: %w", err)
		}
		detail.Movies = withoutCast(movies)
	}
	return detail, nil
}

func (a *App) CreateGenre(ctx context.Context, in GenreInput) (domain.Genre, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Gradient = strings.TrimSpace(in.Gradient)
	if err := checkStruct(in); err != nil {
		return domain.Genre{}, err
	}
	now := a.now()
	genre := domain.Genre{
		ID:        util.NewID(),
		Title:     in.Title,
		Gradient:  in.Gradient,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.SaveGenre(ctx, genre); err != nil {
		return domain.Genre{}, fmt.Errorf("save genre: %w", err)
	}
	return genre, nil
}

// UpdateGenre applies a partial update and refreshes the genre's snapshot in
// every movie listing it.
func (a *App) UpdateGenre(ctx context.Context, id string, in GenrePatch) (domain.Genre, error) {
	detail, err := a.GetGenre(ctx, id, false)
	if err != nil {
		return domain.Genre{}, err
	}
	genre := detail.Genre
	merged := GenreInput{Title: genre.Title, Gradient: genre.Gradient}
	setIf(&merged.Title, in.Title)
	setIf(&merged.Gradient, in.Gradient)
	merged.Title = strings.TrimSpace(merged.Title)
	merged.Gradient = strings.TrimSpace(merged.Gradient)
	if err := checkStruct(merged); err != nil {
		return domain.Genre{}, err
	}
	genre.Title = merged.Title
	genre.Gradient = merged.Gradient
	genre.UpdatedAt = a.now()
	if err := a.store.SaveGenre(ctx, genre); err != nil {
		return domain.Genre{}, fmt.Errorf("save genre: %w", err)
	}
	if _, err := a.propagate.GenreUpdated(ctx, genre); err != nil {
		return domain.Genre{}, err
	}
	return genre, nil
}

// DeleteGenre removes a genre no movie lists.
func (a *App) DeleteGenre(ctx context.Context, id string) error {
	if _, err := a.GetGenre(ctx, id, false); err != nil {
		return err
	}
	if err := a.propagate.CheckGenreDeletable(ctx, id); err != nil {
		if errors.Is(err, consistency.ErrGenreReferenced) {
			return ErrGenreInUse
		}
		return err
	}
	if err := a.store.DeleteGenre(ctx, id); err != nil {
		return fmt.Errorf("delete genre: %w", err)
	}
	return nil
}
