package server

import (
	"encoding/json"
	"io"
	"net/http"

	"moviecatalog/pkg/domain"
	"moviecatalog/services/catalog/internal/app"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type validateEmailRequest struct {
	Email string `json:"email"`
	ID    string `json:"id"`
}

type favoriteRequest struct {
	MovieID  string `json:"movieId"`
	Favorite *bool  `json:"favorite"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if !s.allowRate(w, r, s.registerLimiter) {
		return
	}
	var req app.RegisterInput
	files, err := s.decodeBody(w, r, &req)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	user, err := s.app.Register(r.Context(), req, files["photo"])
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "Registration successful!", user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.allowRate(w, r, s.loginLimiter) {
		return
	}
	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	res, err := s.app.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Successfully logged in", res)
}

func (s *Server) handleValidateEmail(w http.ResponseWriter, r *http.Request) {
	var req validateEmailRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	valid, err := s.app.ValidateEmail(r.Context(), req.Email, req.ID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Email Validated", map[string]bool{"valid": valid})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, _ domain.User) {
	token, _ := bearerToken(r)
	if err := s.app.Logout(r.Context(), token); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Successfully logged out", nil)
}

func (s *Server) handleMe(w http.ResponseWriter, _ *http.Request, user domain.User) {
	writeOK(w, http.StatusOK, "Current user data retrieved.", user)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request, _ domain.User) {
	var req app.CreateUserInput
	files, err := s.decodeBody(w, r, &req)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	user, err := s.app.CreateUser(r.Context(), req, files["photo"])
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "User created successfully!", user)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request, _ domain.User) {
	params, err := listParams(r)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	page, err := s.app.ListUsers(r.Context(), params)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Users retrieved successfully!", page)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request, _ domain.User) {
	user, err := s.app.GetUser(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "User retrieved successfully!", user)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request, caller domain.User) {
	id := r.PathValue("id")
	if !selfOrAdmin(caller, id) {
		writeError(w, http.StatusForbidden, app.ErrForbidden.Message)
		return
	}
	var req app.UpdateUserInput
	files, err := s.decodeBody(w, r, &req)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	user, err := s.app.UpdateUser(r.Context(), caller, id, req, files["photo"])
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "User updated successfully!", user)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if err := s.app.DeleteUser(r.Context(), r.PathValue("id")); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "User deleted successfully!", nil)
}

func (s *Server) handleListFavorites(w http.ResponseWriter, r *http.Request, caller domain.User) {
	id := r.PathValue("id")
	if !selfOrAdmin(caller, id) {
		writeError(w, http.StatusForbidden, app.ErrForbidden.Message)
		return
	}
	params, err := listParams(r)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	page, err := s.app.Favorites(r.Context(), id, params)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Favorites retrieved successfully!", page)
}

func (s *Server) handleSetFavorite(w http.ResponseWriter, r *http.Request, caller domain.User) {
	id := r.PathValue("id")
	if !selfOrAdmin(caller, id) {
		writeError(w, http.StatusForbidden, app.ErrForbidden.Message)
		return
	}
	var req favoriteRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Favorite == nil {
		writeError(w, http.StatusBadRequest, "favorite is required")
		return
	}
	user, err := s.app.SetFavorite(r.Context(), id, req.MovieID, *req.Favorite)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Favorites updated.", map[string][]string{"favorites": user.Favorites})
}
