package app

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"

	"moviecatalog/internal/util"
	"moviecatalog/pkg/domain"
	"moviecatalog/pkg/query"
	"moviecatalog/pkg/textutil"
	"moviecatalog/services/catalog/internal/consistency"
)

type ActorInput struct {
	Firstname string `json:"firstname" validate:"required,max=100"`
	Lastname  string `json:"lastname" validate:"required,max=100"`
	Gender    string `json:"gender" validate:"omitempty,max=20"`
	Birthdate string `json:"birthdate" validate:"omitempty,datetime=2006-01-02"`
	Bio       string `json:"bio" validate:"max=5000"`
}

type ActorPatch struct {
	Firstname *string `json:"firstname"`
	Lastname  *string `json:"lastname"`
	Gender    *string `json:"gender"`
	Birthdate *string `json:"birthdate"`
	Bio       *string `json:"bio"`
}

// ActorDetail is an actor with, on request, the movies that cast it.
type ActorDetail struct {
	domain.Actor
	Movies []domain.Movie `json:"movies,omitempty"`
}

func (a *App) ListActors(ctx context.Context, p query.Params) (Page[domain.Actor], error) {
	actors, total, err := a.store.ListActors(ctx, query.Build(p, nil, "firstname", "lastname"))
	if err != nil {
		return Page[domain.Actor]{}, fmt.Errorf("list actors: %w", err)
	}
	return newPage(actors, total), nil
}

func (a *App) GetActor(ctx context.Context, id string, includeMovies bool) (ActorDetail, error) {
	actor, ok, err := a.store.GetActor(ctx, id)
	if err != nil {
		return ActorDetail{}, fmt.Errorf("load actor: %w", err)
	}
	if !ok {
		return ActorDetail{}, ErrActorNotFound
	}
	detail := ActorDetail{Actor: actor}
	if includeMovies {
		movies, err := a.store.MoviesWithActor(ctx, id)
		if err != nil {
			return ActorDetail{}, fmt.Errorf("load actor movies: %w", err)
		}
		detail.Movies = withoutCast(movies)
	}
	return detail, nil
}

// withoutCast drops the actor lists of movies listed under an actor or genre.
func withoutCast(movies []domain.Movie) []domain.Movie {
	out := make([]domain.Movie, 0, len(movies))
	for _, m := range movies {
		m.Actors = nil
		out = append(out, m)
	}
	return out
}

func (a *App) CreateActor(ctx context.Context, in ActorInput, photo *multipart.FileHeader) (domain.Actor, error) {
	in = cleanActorInput(in)
	if err := checkStruct(in); err != nil {
		return domain.Actor{}, err
	}
	if photo == nil {
		return domain.Actor{}, ErrPhotoRequired
	}
	photoURL, err := a.saveImage(ctx, "photo", photo)
	if err != nil {
		return domain.Actor{}, err
	}
	now := a.now()
	actor := domain.Actor{
		ID:        util.NewID(),
		Firstname: in.Firstname,
		Lastname:  in.Lastname,
		Gender:    in.Gender,
		Birthdate: in.Birthdate,
		Photo:     photoURL,
		Bio:       in.Bio,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.SaveActor(ctx, actor); err != nil {
		a.discardImage(ctx, photoURL, "actor create failed")
		return domain.Actor{}, fmt.Errorf("save actor: %w", err)
	}
	return actor, nil
}

func cleanActorInput(in ActorInput) ActorInput {
	in.Firstname = strings.TrimSpace(in.Firstname)
	in.Lastname = strings.TrimSpace(in.Lastname)
	in.Gender = strings.TrimSpace(in.Gender)
	in.Birthdate = strings.TrimSpace(in.Birthdate)
	in.Bio = textutil.StripTags(in.Bio)
	return in
}

// UpdateActor applies a partial update and refreshes the actor's snapshot in
// every movie that casts it.
func (a *App) UpdateActor(ctx context.Context, id string, in ActorPatch, photo *multipart.FileHeader) (domain.Actor, error) {
	detail, err := a.GetActor(ctx, id, false)
	if err != nil {
		return domain.Actor{}, err
	}
	before := detail.Actor
	merged := ActorInput{
		Firstname: before.Firstname,
		Lastname:  before.Lastname,
		Gender:    before.Gender,
		Birthdate: before.Birthdate,
		Bio:       before.Bio,
	}
	setIf(&merged.Firstname, in.Firstname)
	setIf(&merged.Lastname, in.Lastname)
	setIf(&merged.Gender, in.Gender)
	setIf(&merged.Birthdate, in.Birthdate)
	setIf(&merged.Bio, in.Bio)
	merged = cleanActorInput(merged)
	if err := checkStruct(merged); err != nil {
		return domain.Actor{}, err
	}
	photoURL, err := a.saveImage(ctx, "photo", photo)
	if err != nil {
		return domain.Actor{}, err
	}

	after := before
	after.Firstname = merged.Firstname
	after.Lastname = merged.Lastname
	after.Gender = merged.Gender
	after.Birthdate = merged.Birthdate
	after.Bio = merged.Bio
	if photoURL != "" {
		after.Photo = photoURL
	}
	after.UpdatedAt = a.now()
	if err := a.store.SaveActor(ctx, after); err != nil {
		a.discardImage(ctx, photoURL, "actor update failed")
		return domain.Actor{}, fmt.Errorf("save actor: %w", err)
	}
	if photoURL != "" {
		a.discardImage(ctx, before.Photo, "actor photo replaced")
	}
	if _, err := a.propagate.ActorUpdated(ctx, after); err != nil {
		return domain.Actor{}, err
	}
	return after, nil
}

// DeleteActor removes an actor no movie casts.
func (a *App) DeleteActor(ctx context.Context, id string) error {
	detail, err := a.GetActor(ctx, id, false)
	if err != nil {
		return err
	}
	if err := a.propagate.CheckActorDeletable(ctx, id); err != nil {
		if errors.Is(err, consistency.ErrActorReferenced) {
			return ErrActorInUse
		}
		return err
	}
	if err := a.store.DeleteActor(ctx, id); err != nil {
		return fmt.Errorf("delete actor: %w", err)
	}
	a.discardImage(ctx, detail.Photo, "actor deleted")
	return nil
}

func setIf(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
