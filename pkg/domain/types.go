package domain

import (
	"strings"
	"time"
)

type UserRole string

const (
	RoleAdmin UserRole = "ADMIN"
	RoleUser  UserRole = "USER"
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

type User struct {
	ID        string    `json:"id"`
	Fullname  string    `json:"fullname"`
	Email     string    `json:"email"`
	Role      UserRole  `json:"role"`
	Photo     string    `json:"photo"`
	Enabled   bool      `json:"enabled"`
	Approved  bool      `json:"approved"`
	Favorites []string  `json:"favorites"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Snapshot returns the copy of u embedded in reviews.
func (u User) Snapshot() UserSnapshot {
	return UserSnapshot{UserID: u.ID, Fullname: u.Fullname, Photo: u.Photo}
}

// HasFavorite reports whether movieID is in the user's favorites.
func (u User) HasFavorite(movieID string) bool {
	for _, id := range u.Favorites {
		if id == movieID {
			return true
		}
	}
	return false
}

// Credential holds the password hash owned by a user.
type Credential struct {
	UserID       string    `json:"userId"`
	PasswordHash string    `json:"-"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Actor struct {
	ID        string    `json:"id"`
	Firstname string    `json:"firstname"`
	Lastname  string    `json:"lastname"`
	Gender    string    `json:"gender"`
	Birthdate string    `json:"birthdate"`
	Photo     string    `json:"photo"`
	Bio       string    `json:"bio"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Name is the display name used in actor snapshots.
func (a Actor) Name() string {
	return strings.TrimSpace(a.Firstname + " " + a.Lastname)
}

func (a Actor) Snapshot() ActorSnapshot {
	return ActorSnapshot{ActorID: a.ID, Name: a.Name(), Photo: a.Photo}
}

type Genre struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Gradient  string    `json:"gradient"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (g Genre) Snapshot() GenreSnapshot {
	return GenreSnapshot{ID: g.ID, Title: g.Title, Gradient: g.Gradient}
}

type Movie struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Poster      string          `json:"poster"`
	Backdrop    string          `json:"backdrop"`
	Cost        float64         `json:"cost"`
	ReleaseYear int             `json:"release_year"`
	Runtime     int             `json:"runtime"`
	Rating      float64         `json:"rating"`
	Plot        string          `json:"plot"`
	Genres      []GenreSnapshot `json:"genres"`
	Actors      []ActorSnapshot `json:"actors,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func (m Movie) Snapshot() MovieSnapshot {
	return MovieSnapshot{MovieID: m.ID, Title: m.Title, Poster: m.Poster}
}

// HasActor reports whether the movie embeds actorID.
func (m Movie) HasActor(actorID string) bool {
	for _, a := range m.Actors {
		if a.ActorID == actorID {
			return true
		}
	}
	return false
}

// HasGenre reports whether the movie embeds genreID.
func (m Movie) HasGenre(genreID string) bool {
	for _, g := range m.Genres {
		if g.ID == genreID {
			return true
		}
	}
	return false
}

type Review struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Rating   int            `json:"rating"`
	Approved bool           `json:"approved"`
	User     UserSnapshot   `json:"user"`
	Movie    *MovieSnapshot `json:"movie,omitempty"`
	PostedAt time.Time      `json:"postedAt"`
}

// Snapshots are denormalized display copies of canonical entities.

type ActorSnapshot struct {
	ActorID string `json:"actorId"`
	Name    string `json:"name"`
	Photo   string `json:"photo"`
}

type GenreSnapshot struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Gradient string `json:"gradient"`
}

type UserSnapshot struct {
	UserID   string `json:"userId"`
	Fullname string `json:"fullname"`
	Photo    string `json:"photo"`
}

type MovieSnapshot struct {
	MovieID string `json:"movieId"`
	Title   string `json:"title"`
	Poster  string `json:"poster"`
}
