package app

import (
	"context"
	"fmt"

	"moviecatalog/internal/util"
	"moviecatalog/pkg/domain"
	"moviecatalog/pkg/query"
	"moviecatalog/pkg/textutil"
)

type ReviewInput struct {
	MovieID string `json:"movieId" validate:"required"`
	Content string `json:"content" validate:"max=5000"`
	Rating  int    `json:"rating" validate:"required,gte=1,lte=5"`
}

// CreateReview records a pending review by caller. It does not count toward
// the movie rating until approved.
func (a *App) CreateReview(ctx context.Context, caller domain.User, in ReviewInput) (domain.Review, error) {
	in.Content = textutil.StripTags(in.Content)
	if err := checkStruct(in); err != nil {
		return domain.Review{}, err
	}
	if in.Content == "" {
		return domain.Review{}, ErrReviewContentMissing
	}
	movie, err := a.GetMovie(ctx, in.MovieID)
	if err != nil {
		return domain.Review{}, err
	}
	snap := movie.Snapshot()
	review := domain.Review{
		ID:       util.NewID(),
		Content:  in.Content,
		Rating:   in.Rating,
		User:     caller.Snapshot(),
		Movie:    &snap,
		PostedAt: a.now(),
	}
	if err := a.store.SaveReview(ctx, review); err != nil {
		return domain.Review{}, fmt.Errorf("save review: %w", err)
	}
	return review, nil
}

func (a *App) ListReviews(ctx context.Context, p query.Params) (Page[domain.Review], error) {
	reviews, total, err := a.store.ListReviews(ctx, query.Build(p, nil, "content", "user.fullname", "movie.title"))
	if err != nil {
		return Page[domain.Review]{}, fmt.Errorf("list reviews: %w", err)
	}
	return newPage(reviews, total), nil
}

func (a *App) getReview(ctx context.Context, id string) (domain.Review, error) {
	review, ok, err := a.store.GetReview(ctx, id)
	if err != nil {
		return domain.Review{}, fmt.Errorf("load review: %w", err)
	}
	if !ok {
		return domain.Review{}, ErrReviewNotFound
	}
	return review, nil
}

// SetReviewApproval writes the approval flag, then recomputes the movie
// rating from a fresh read of the approved reviews.
func (a *App) SetReviewApproval(ctx context.Context, id string, approved bool) (domain.Review, error) {
	review, err := a.getReview(ctx, id)
	if err != nil {
		return domain.Review{}, err
	}
	if err := a.store.SetReviewApproval(ctx, id, approved); err != nil {
		return domain.Review{}, fmt.Errorf("set review approval: %w", err)
	}
	review.Approved = approved
	if review.Movie != nil {
		if _, err := a.propagate.RatingChanged(ctx, review.Movie.MovieID); err != nil {
			return domain.Review{}, err
		}
	}
	return review, nil
}

// DeleteReview removes a review; deleting an approved one updates the rating.
func (a *App) DeleteReview(ctx context.Context, id string) error {
	review, err := a.getReview(ctx, id)
	if err != nil {
		return err
	}
	if err := a.store.DeleteReview(ctx, id); err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	if review.Approved && review.Movie != nil {
		if _, err := a.propagate.RatingChanged(ctx, review.Movie.MovieID); err != nil {
			return err
		}
	}
	return nil
}
