package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"moviecatalog/pkg/domain"
	"moviecatalog/pkg/query"
)

const migrateLockID int64 = 61830417

// Field paths accepted by list queries, per table.
var (
	userColumns = query.Columns{
		"id": "id", "fullname": "fullname", "email": "email", "role": "role",
		"enabled": "enabled", "approved": "approved",
		"createdAt": "created_at", "updatedAt": "updated_at",
	}
	actorColumns = query.Columns{
		"id": "id", "firstname": "firstname", "lastname": "lastname",
		"gender": "gender", "birthdate": "birthdate", "bio": "bio",
		"createdAt": "created_at", "updatedAt": "updated_at",
	}
	genreColumns = query.Columns{
		"id": "id", "title": "title", "gradient": "gradient",
		"createdAt": "created_at", "updatedAt": "updated_at",
	}
	movieColumns = query.Columns{
		"id": "id", "title": "title", "plot": "plot", "cost": "cost",
		"release_year": "release_year", "runtime": "runtime", "rating": "rating",
		"createdAt": "created_at", "updatedAt": "updated_at",
	}
	reviewColumns = query.Columns{
		"id": "id", "content": "content", "rating": "rating", "approved": "approved",
		"postedAt":      "posted_at",
		"user.userId":   "user_info->>'userId'",
		"user.fullname": "user_info->>'fullname'",
		"movie.movieId": "movie_info->>'movieId'",
		"movie.title":   "movie_info->>'title'",
	}
)

// snapshotIndexes back the propagation lookups on embedded jsonb snapshots.
var snapshotIndexes = []string{
	`CREATE INDEX IF NOT EXISTS reviews_movie_id_idx ON reviews ((movie_info->>'movieId'))`,
	`CREATE INDEX IF NOT EXISTS reviews_user_id_idx ON reviews ((user_info->>'userId'))`,
	`CREATE INDEX IF NOT EXISTS movies_actors_idx ON movies USING gin (actors jsonb_path_ops)`,
	`CREATE INDEX IF NOT EXISTS movies_genres_idx ON movies USING gin (genres jsonb_path_ops)`,
}

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog, TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&UserModel{}, &CredentialModel{}, &ActorModel{}, &GenreModel{}, &MovieModel{}, &ReviewModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		for _, stmt := range snapshotIndexes {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("ensure snapshot indexes: %w", err)
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// first loads one row by id, reporting absence through the bool.
func first[M any](ctx context.Context, db *gorm.DB, id string) (M, bool, error) {
	var model M
	if err := db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model, false, nil
		}
		return model, false, err
	}
	return model, true, nil
}

// list runs the count and the page query of q concurrently. tiebreak orders
// rows the requested sort leaves equal.
func list[M any](ctx context.Context, db *gorm.DB, q query.Query, cols query.Columns, tiebreak string) ([]M, int, error) {
	var (
		total  int64
		models []M
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return db.WithContext(gctx).Model(new(M)).Scopes(q.Where(cols)).Count(&total).Error
	})
	g.Go(func() error {
		// Scopes run at execution, so the tiebreak must be a scope too to
		// follow the requested sort keys.
		thenBy := func(tx *gorm.DB) *gorm.DB { return tx.Order(tiebreak) }
		return db.WithContext(gctx).Scopes(q.Where(cols), q.Page(cols), thenBy).Find(&models).Error
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return models, int(total), nil
}

func mapModels[M, T any](models []M, fn func(M) T) []T {
	out := make([]T, 0, len(models))
	for _, m := range models {
		out = append(out, fn(m))
	}
	return out
}

// nonNil keeps jsonb array columns from being written as null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// containsJSON encodes a one-element array used with the jsonb @> operator.
func containsJSON(key, id string) string {
	raw, _ := json.Marshal([]map[string]string{{key: id}})
	return string(raw)
}

// CreateUser inserts the user and its credential in one transaction.
func (s *GormStore) CreateUser(ctx context.Context, u domain.User, c domain.Credential) error {
	user := userToModel(u)
	cred := CredentialModel{UserID: u.ID, PasswordHash: c.PasswordHash, UpdatedAt: c.UpdatedAt}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		return tx.Create(&cred).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateEmail
	}
	return err
}

// SaveUser registers or updates a user.
func (s *GormStore) SaveUser(ctx context.Context, u domain.User) error {
	model := userToModel(u)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"fullname", "email", "role", "photo", "enabled", "approved", "favorites", "updated_at"}),
	}).Create(&model).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateEmail
	}
	return err
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(ctx context.Context, id string) (domain.User, bool, error) {
	model, ok, err := first[UserModel](ctx, s.db, id)
	if !ok || err != nil {
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(ctx context.Context, email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// HasUserEmail checks if email exists on a user other than exceptID.
func (s *GormStore) HasUserEmail(ctx context.Context, email, exceptID string) (bool, error) {
	var count int64
	tx := s.db.WithContext(ctx).Model(&UserModel{}).Where("email = ?", email)
	if exceptID != "" {
		tx = tx.Where("id <> ?", exceptID)
	}
	if err := tx.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *GormStore) ListUsers(ctx context.Context, q query.Query) ([]domain.User, int, error) {
	models, total, err := list[UserModel](ctx, s.db, q, userColumns, "created_at ASC, id ASC")
	if err != nil {
		return nil, 0, err
	}
	return mapModels(models, userFromModel), total, nil
}

// UserCount returns number of users.
func (s *GormStore) UserCount(ctx context.Context) (int, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&UserModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

func (s *GormStore) FirstUser(ctx context.Context) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).Order("created_at ASC, id ASC").First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// DeleteUser removes the user row together with its credential.
func (s *GormStore) DeleteUser(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&CredentialModel{}, "user_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&UserModel{}, "id = ?", id).Error
	})
}

func (s *GormStore) SaveCredential(ctx context.Context, c domain.Credential) error {
	model := CredentialModel{UserID: c.UserID, PasswordHash: c.PasswordHash, UpdatedAt: c.UpdatedAt}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"password_hash", "updated_at"}),
	}).Create(&model).Error
}

func (s *GormStore) GetCredential(ctx context.Context, userID string) (domain.Credential, bool, error) {
	var model CredentialModel
	if err := s.db.WithContext(ctx).First(&model, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Credential{}, false, nil
		}
		return domain.Credential{}, false, err
	}
	return domain.Credential{UserID: model.UserID, PasswordHash: model.PasswordHash, UpdatedAt: model.UpdatedAt}, true, nil
}

// RemoveFavorite strips movieID from the favorites of every user holding it.
func (s *GormStore) RemoveFavorite(ctx context.Context, movieID string) (int, error) {
	res := s.db.WithContext(ctx).Model(&UserModel{}).
		Where("jsonb_exists(favorites, ?)", movieID).
		Updates(map[string]any{
			"favorites":  gorm.Expr("favorites - ?::text", movieID),
			"updated_at": time.Now().UTC(),
		})
	return int(res.RowsAffected), res.Error
}

func (s *GormStore) SaveActor(ctx context.Context, a domain.Actor) error {
	model := actorToModel(a)
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"firstname", "lastname", "gender", "birthdate", "photo", "bio", "updated_at"}),
	}).Create(&model).Error
}

func (s *GormStore) GetActor(ctx context.Context, id string) (domain.Actor, bool, error) {
	model, ok, err := first[ActorModel](ctx, s.db, id)
	if !ok || err != nil {
		return domain.Actor{}, false, err
	}
	return actorFromModel(model), true, nil
}

func (s *GormStore) ListActors(ctx context.Context, q query.Query) ([]domain.Actor, int, error) {
	models, total, err := list[ActorModel](ctx, s.db, q, actorColumns, "created_at ASC, id ASC")
	if err != nil {
		return nil, 0, err
	}
	return mapModels(models, actorFromModel), total, nil
}

func (s *GormStore) DeleteActor(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&ActorModel{}, "id = ?", id).Error
}

func (s *GormStore) SaveGenre(ctx context.Context, g domain.Genre) error {
	model := genreToModel(g)
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "gradient", "updated_at"}),
	}).Create(&model).Error
}

func (s *GormStore) GetGenre(ctx context.Context, id string) (domain.Genre, bool, error) {
	model, ok, err := first[GenreModel](ctx, s.db, id)
	if !ok || err != nil {
		return domain.Genre{}, false, err
	}
	return genreFromModel(model), true, nil
}

func (s *GormStore) ListGenres(ctx context.Context, q query.Query) ([]domain.Genre, int, error) {
	models, total, err := list[GenreModel](ctx, s.db, q, genreColumns, "created_at ASC, id ASC")
	if err != nil {
		return nil, 0, err
	}
	return mapModels(models, genreFromModel), total, nil
}

func (s *GormStore) DeleteGenre(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&GenreModel{}, "id = ?", id).Error
}

func (s *GormStore) SaveMovie(ctx context.Context, m domain.Movie) error {
	model := movieToModel(m)
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "poster", "backdrop", "cost", "release_year", "runtime",
			"rating", "plot", "genres", "actors", "updated_at",
		}),
	}).Create(&model).Error
}

func (s *GormStore) GetMovie(ctx context.Context, id string) (domain.Movie, bool, error) {
	model, ok, err := first[MovieModel](ctx, s.db, id)
	if !ok || err != nil {
		return domain.Movie{}, false, err
	}
	return movieFromModel(model), true, nil
}

func (s *GormStore) ListMovies(ctx context.Context, q query.Query) ([]domain.Movie, int, error) {
	models, total, err := list[MovieModel](ctx, s.db, q, movieColumns, "created_at ASC, id ASC")
	if err != nil {
		return nil, 0, err
	}
	return mapModels(models, movieFromModel), total, nil
}

func (s *GormStore) DeleteMovie(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&MovieModel{}, "id = ?", id).Error
}

func (s *GormStore) MoviesWithActor(ctx context.Context, actorID string) ([]domain.Movie, error) {
	return s.moviesContaining(ctx, "actors", containsJSON("actorId", actorID))
}

func (s *GormStore) MoviesWithGenre(ctx context.Context, genreID string) ([]domain.Movie, error) {
	return s.moviesContaining(ctx, "genres", containsJSON("id", genreID))
}

func (s *GormStore) moviesContaining(ctx context.Context, column, needle string) ([]domain.Movie, error) {
	var models []MovieModel
	if err := s.db.WithContext(ctx).Where(column+" @> ?::jsonb", needle).Order("created_at ASC, id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	return mapModels(models, movieFromModel), nil
}

func (s *GormStore) CountMoviesWithActor(ctx context.Context, actorID string) (int, error) {
	return s.countMoviesContaining(ctx, "actors", containsJSON("actorId", actorID))
}

func (s *GormStore) CountMoviesWithGenre(ctx context.Context, genreID string) (int, error) {
	return s.countMoviesContaining(ctx, "genres", containsJSON("id", genreID))
}

func (s *GormStore) countMoviesContaining(ctx context.Context, column, needle string) (int, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&MovieModel{}).Where(column+" @> ?::jsonb", needle).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

func (s *GormStore) SetMovieActors(ctx context.Context, movieID string, actors []domain.ActorSnapshot) error {
	return s.updateMovie(ctx, movieID, map[string]any{"actors": datatypes.NewJSONSlice(actors)})
}

func (s *GormStore) SetMovieGenres(ctx context.Context, movieID string, genres []domain.GenreSnapshot) error {
	return s.updateMovie(ctx, movieID, map[string]any{"genres": datatypes.NewJSONSlice(genres)})
}

func (s *GormStore) SetMovieRating(ctx context.Context, movieID string, rating float64) error {
	return s.updateMovie(ctx, movieID, map[string]any{"rating": rating})
}

func (s *GormStore) updateMovie(ctx context.Context, movieID string, fields map[string]any) error {
	fields["updated_at"] = time.Now().UTC()
	return s.db.WithContext(ctx).Model(&MovieModel{}).Where("id = ?", movieID).Updates(fields).Error
}

func (s *GormStore) SaveReview(ctx context.Context, r domain.Review) error {
	model := reviewToModel(r)
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"content", "rating", "approved", "user_info", "movie_info"}),
	}).Create(&model).Error
}

func (s *GormStore) GetReview(ctx context.Context, id string) (domain.Review, bool, error) {
	model, ok, err := first[ReviewModel](ctx, s.db, id)
	if !ok || err != nil {
		return domain.Review{}, false, err
	}
	return reviewFromModel(model), true, nil
}

func (s *GormStore) ListReviews(ctx context.Context, q query.Query) ([]domain.Review, int, error) {
	models, total, err := list[ReviewModel](ctx, s.db, q, reviewColumns, "posted_at ASC, id ASC")
	if err != nil {
		return nil, 0, err
	}
	return mapModels(models, reviewFromModel), total, nil
}

func (s *GormStore) DeleteReview(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&ReviewModel{}, "id = ?", id).Error
}

func (s *GormStore) ReviewsByUser(ctx context.Context, userID string) ([]domain.Review, error) {
	var models []ReviewModel
	if err := s.db.WithContext(ctx).Where(datatypes.JSONQuery("user_info").Equals(userID, "userId")).
		Order("posted_at ASC, id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	return mapModels(models, reviewFromModel), nil
}

func (s *GormStore) ReviewsByMovie(ctx context.Context, movieID string) ([]domain.Review, error) {
	var models []ReviewModel
	if err := s.db.WithContext(ctx).Where(datatypes.JSONQuery("movie_info").Equals(movieID, "movieId")).
		Order("posted_at ASC, id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	return mapModels(models, reviewFromModel), nil
}

func (s *GormStore) SetReviewUser(ctx context.Context, reviewID string, user domain.UserSnapshot) error {
	return s.db.WithContext(ctx).Model(&ReviewModel{}).Where("id = ?", reviewID).
		Update("user_info", datatypes.NewJSONType(user)).Error
}

func (s *GormStore) SetReviewMovie(ctx context.Context, reviewID string, movie domain.MovieSnapshot) error {
	return s.db.WithContext(ctx).Model(&ReviewModel{}).Where("id = ?", reviewID).
		Update("movie_info", datatypes.NewJSONType(movie)).Error
}

func (s *GormStore) SetReviewApproval(ctx context.Context, reviewID string, approved bool) error {
	return s.db.WithContext(ctx).Model(&ReviewModel{}).Where("id = ?", reviewID).
		Update("approved", approved).Error
}

func (s *GormStore) DeleteReviewsByMovie(ctx context.Context, movieID string) (int, error) {
	res := s.db.WithContext(ctx).Where(datatypes.JSONQuery("movie_info").Equals(movieID, "movieId")).
		Delete(&ReviewModel{})
	return int(res.RowsAffected), res.Error
}

// ApprovedRating aggregates approved reviews of a movie in one statement.
func (s *GormStore) ApprovedRating(ctx context.Context, movieID string) (float64, int, error) {
	var row struct {
		Average float64
		Total   int64
	}
	err := s.db.WithContext(ctx).Model(&ReviewModel{}).
		Select("COALESCE(AVG(rating), 0) AS average, COUNT(*) AS total").
		Where(datatypes.JSONQuery("movie_info").Equals(movieID, "movieId")).
		Where("approved = ?", true).
		Scan(&row).Error
	if err != nil {
		return 0, 0, err
	}
	return row.Average, int(row.Total), nil
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:        u.ID,
		Fullname:  u.Fullname,
		Email:     u.Email,
		Role:      string(u.Role),
		Photo:     u.Photo,
		Enabled:   u.Enabled,
		Approved:  u.Approved,
		Favorites: datatypes.NewJSONSlice(nonNil(u.Favorites)),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:        m.ID,
		Fullname:  m.Fullname,
		Email:     m.Email,
		Role:      domain.UserRole(m.Role),
		Photo:     m.Photo,
		Enabled:   m.Enabled,
		Approved:  m.Approved,
		Favorites: []string(m.Favorites),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func actorToModel(a domain.Actor) ActorModel {
	return ActorModel{
		ID:        a.ID,
		Firstname: a.Firstname,
		Lastname:  a.Lastname,
		Gender:    a.Gender,
		Birthdate: a.Birthdate,
		Photo:     a.Photo,
		Bio:       a.Bio,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func actorFromModel(m ActorModel) domain.Actor {
	return domain.Actor{
		ID:        m.ID,
		Firstname: m.Firstname,
		Lastname:  m.Lastname,
		Gender:    m.Gender,
		Birthdate: m.Birthdate,
		Photo:     m.Photo,
		Bio:       m.Bio,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func genreToModel(g domain.Genre) GenreModel {
	return GenreModel{ID: g.ID, Title: g.Title, Gradient: g.Gradient, CreatedAt: g.CreatedAt, UpdatedAt: g.UpdatedAt}
}

func genreFromModel(m GenreModel) domain.Genre {
	return domain.Genre{ID: m.ID, Title: m.Title, Gradient: m.Gradient, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}
}

func movieToModel(m domain.Movie) MovieModel {
	return MovieModel{
		ID:          m.ID,
		Title:       m.Title,
		Poster:      m.Poster,
		Backdrop:    m.Backdrop,
		Cost:        m.Cost,
		ReleaseYear: m.ReleaseYear,
		Runtime:     m.Runtime,
		Rating:      m.Rating,
		Plot:        m.Plot,
		Genres:      datatypes.NewJSONSlice(nonNil(m.Genres)),
		Actors:      datatypes.NewJSONSlice(nonNil(m.Actors)),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func movieFromModel(m MovieModel) domain.Movie {
	return domain.Movie{
		ID:          m.ID,
		Title:       m.Title,
		Poster:      m.Poster,
		Backdrop:    m.Backdrop,
		Cost:        m.Cost,
		ReleaseYear: m.ReleaseYear,
		Runtime:     m.Runtime,
		Rating:      m.Rating,
		Plot:        m.Plot,
		Genres:      []domain.GenreSnapshot(m.Genres),
		Actors:      []domain.ActorSnapshot(m.Actors),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func reviewToModel(r domain.Review) ReviewModel {
	var movie domain.MovieSnapshot
	if r.Movie != nil {
		movie = *r.Movie
	}
	return ReviewModel{
		ID:        r.ID,
		Content:   r.Content,
		Rating:    r.Rating,
		Approved:  r.Approved,
		UserInfo:  datatypes.NewJSONType(r.User),
		MovieInfo: datatypes.NewJSONType(movie),
		PostedAt:  r.PostedAt,
	}
}

func reviewFromModel(m ReviewModel) domain.Review {
	movie := m.MovieInfo.Data()
	return domain.Review{
		ID:       m.ID,
		Content:  m.Content,
		Rating:   m.Rating,
		Approved: m.Approved,
		User:     m.UserInfo.Data(),
		Movie:    &movie,
		PostedAt: m.PostedAt,
	}
}
