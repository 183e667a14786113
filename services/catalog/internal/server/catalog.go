package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"moviecatalog/pkg/domain"
	"moviecatalog/services/catalog/internal/app"
)

type approvalRequest struct {
	Approved *bool `json:"approved"`
}

func includeMovies(r *http.Request) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get("includeMovies"))
	return v
}

// actors

func (s *Server) handleListActors(w http.ResponseWriter, r *http.Request) {
	params, err := listParams(r)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	page, err := s.app.ListActors(r.Context(), params)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Actors retrieved successfully!", page)
}

func (s *Server) handleGetActor(w http.ResponseWriter, r *http.Request) {
	actor, err := s.app.GetActor(r.Context(), r.PathValue("id"), includeMovies(r))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Actor retrieved successfully!", actor)
}

func (s *Server) handleCreateActor(w http.ResponseWriter, r *http.Request, _ domain.User) {
	var req app.ActorInput
	files, err := s.decodeBody(w, r, &req)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	actor, err := s.app.CreateActor(r.Context(), req, files["photo"])
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "Actor created successfully!", actor)
}

func (s *Server) handleUpdateActor(w http.ResponseWriter, r *http.Request, _ domain.User) {
	var req app.ActorPatch
	files, err := s.decodeBody(w, r, &req)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	actor, err := s.app.UpdateActor(r.Context(), r.PathValue("id"), req, files["photo"])
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Actor updated successfully!", actor)
}

func (s *Server) handleDeleteActor(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if err := s.app.DeleteActor(r.Context(), r.PathValue("id")); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Actor deleted successfully!", nil)
}

// genres

func (s *Server) handleListGenres(w http.ResponseWriter, r *http.Request) {
	params, err := listParams(r)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	page, err := s.app.ListGenres(r.Context(), params)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Genres retrieved successfully!", page)
}

func (s *Server) handleGetGenre(w http.ResponseWriter, r *http.Request) {
	genre, err := s.app.GetGenre(r.Context(), r.PathValue("id"), includeMovies(r))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Genre retrieved successfully!", genre)
}

func (s *Server) handleCreateGenre(w http.ResponseWriter, r *http.Request, _ domain.User) {
	var req app.GenreInput
	if _, err := s.decodeBody(w, r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	genre, err := s.app.CreateGenre(r.Context(), req)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "Genre Created", genre)
}

func (s *Server) handleUpdateGenre(w http.ResponseWriter, r *http.Request, _ domain.User) {
	var req app.GenrePatch
	if _, err := s.decodeBody(w, r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	genre, err := s.app.UpdateGenre(r.Context(), r.PathValue("id"), req)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Genre Updated", genre)
}

func (s *Server) handleDeleteGenre(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if err := s.app.DeleteGenre(r.Context(), r.PathValue("id")); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Genre deleted successfully!", nil)
}

// movies

func (s *Server) handleListMovies(w http.ResponseWriter, r *http.Request) {
	params, err := listParams(r)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	page, err := s.app.ListMovies(r.Context(), params)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Movies retrieved successfully!", page)
}

func (s *Server) handleGetMovie(w http.ResponseWriter, r *http.Request) {
	movie, err := s.app.GetMovie(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Movie retrieved successfully!", movie)
}

func (s *Server) handleMovieReviews(w http.ResponseWriter, r *http.Request) {
	params, err := listParams(r)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	page, err := s.app.MovieReviews(r.Context(), r.PathValue("id"), params)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Reviews retrieved successfully!", page)
}

func (s *Server) handleCreateMovie(w http.ResponseWriter, r *http.Request, _ domain.User) {
	var req app.MovieInput
	files, err := s.decodeBody(w, r, &req)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	movie, err := s.app.CreateMovie(r.Context(), req, app.MovieImages{Poster: files["poster"], Backdrop: files["backdrop"]})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "Movie Created", movie)
}

func (s *Server) handleUpdateMovie(w http.ResponseWriter, r *http.Request, _ domain.User) {
	var req app.MoviePatch
	files, err := s.decodeBody(w, r, &req)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	movie, err := s.app.UpdateMovie(r.Context(), r.PathValue("id"), req, app.MovieImages{Poster: files["poster"], Backdrop: files["backdrop"]})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Movie Updated", movie)
}

func (s *Server) handleDeleteMovie(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if err := s.app.DeleteMovie(r.Context(), r.PathValue("id")); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Movie deleted successfully!", nil)
}

// reviews

func (s *Server) handleCreateReview(w http.ResponseWriter, r *http.Request, caller domain.User) {
	var req app.ReviewInput
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	review, err := s.app.CreateReview(r.Context(), caller, req)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "Review Submitted", review)
}

func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request, _ domain.User) {
	params, err := listParams(r)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	page, err := s.app.ListReviews(r.Context(), params)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Reviews retrieved successfully!", page)
}

func (s *Server) handleReviewApproval(w http.ResponseWriter, r *http.Request, _ domain.User) {
	var req approvalRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Approved == nil {
		writeError(w, http.StatusBadRequest, "approved is required")
		return
	}
	review, err := s.app.SetReviewApproval(r.Context(), r.PathValue("id"), *req.Approved)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Review approval updated.", review)
}

func (s *Server) handleDeleteReview(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if err := s.app.DeleteReview(r.Context(), r.PathValue("id")); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Review deleted successfully!", nil)
}
