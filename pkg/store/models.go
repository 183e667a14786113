package store

import (
	"time"

	"gorm.io/datatypes"

	"moviecatalog/pkg/domain"
)

// GORM models used for persistence. Snapshots live in jsonb columns.
type UserModel struct {
	ID        string `gorm:"primaryKey"`
	Fullname  string `gorm:"not null"`
	Email     string `gorm:"uniqueIndex;not null"`
	Role      string `gorm:"not null"`
	Photo     string
	Enabled   bool                        `gorm:"not null;default:false"`
	Approved  bool                        `gorm:"not null;default:false"`
	Favorites datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	CreatedAt time.Time                   `gorm:"not null;index"`
	UpdatedAt time.Time
}

type CredentialModel struct {
	UserID       string `gorm:"primaryKey"`
	PasswordHash string `gorm:"not null"`
	UpdatedAt    time.Time
}

type ActorModel struct {
	ID        string `gorm:"primaryKey"`
	Firstname string `gorm:"not null"`
	Lastname  string `gorm:"not null"`
	Gender    string
	Birthdate string
	Photo     string
	Bio       string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"not null;index"`
	UpdatedAt time.Time
}

type GenreModel struct {
	ID        string `gorm:"primaryKey"`
	Title     string `gorm:"not null"`
	Gradient  string
	CreatedAt time.Time `gorm:"not null;index"`
	UpdatedAt time.Time
}

type MovieModel struct {
	ID          string `gorm:"primaryKey"`
	Title       string `gorm:"not null"`
	Poster      string
	Backdrop    string
	Cost        float64
	ReleaseYear int
	Runtime     int
	Rating      float64 `gorm:"not null;default:0"`
	Plot        string  `gorm:"type:text"`
	Genres      datatypes.JSONSlice[domain.GenreSnapshot] `gorm:"type:jsonb"`
	Actors      datatypes.JSONSlice[domain.ActorSnapshot] `gorm:"type:jsonb"`
	CreatedAt   time.Time                                 `gorm:"not null;index"`
	UpdatedAt   time.Time
}

type ReviewModel struct {
	ID        string `gorm:"primaryKey"`
	Content   string `gorm:"type:text;not null"`
	Rating    int    `gorm:"not null"`
	Approved  bool   `gorm:"not null;default:false;index"`
	UserInfo  datatypes.JSONType[domain.UserSnapshot]  `gorm:"type:jsonb"`
	MovieInfo datatypes.JSONType[domain.MovieSnapshot] `gorm:"type:jsonb"`
	PostedAt  time.Time                                `gorm:"not null;index"`
}

// Table names used by the schema and the raw index statements.
func (UserModel) TableName() string { return "users" }
func (CredentialModel) TableName() string { return "user_credentials" }
func (ActorModel) TableName() string { return "actors" }
func (GenreModel) TableName() string { return "genres" }
func (MovieModel) TableName() string { return "movies" }
func (ReviewModel) TableName() string { return "reviews" }
