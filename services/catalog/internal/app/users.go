package app

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"slices"
	"strings"

	"moviecatalog/internal/util"
	"moviecatalog/internal/validate"
	"moviecatalog/pkg/auth"
	"moviecatalog/pkg/domain"
	"moviecatalog/pkg/query"
	"moviecatalog/pkg/store"
)

// RegisterInput is a self-service sign-up.
type RegisterInput struct {
	Fullname string `json:"fullname" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required"`
}

// CreateUserInput is an admin-created account. Enabled and Approved default
// to true when omitted.
type CreateUserInput struct {
	Fullname string          `json:"fullname" validate:"required,max=100"`
	Email    string          `json:"email" validate:"required,email,max=254"`
	Password string          `json:"password" validate:"required"`
	Role     domain.UserRole `json:"role" validate:"omitempty,oneof=ADMIN USER"`
	Enabled  *bool           `json:"enabled"`
	Approved *bool           `json:"approved"`
}

// UpdateUserInput changes only the fields that are set.
type UpdateUserInput struct {
	Fullname *string          `json:"fullname"`
	Email    *string          `json:"email"`
	Password *string          `json:"password"`
	Role     *domain.UserRole `json:"role"`
	Enabled  *bool            `json:"enabled"`
	Approved *bool            `json:"approved"`
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func checkStruct(s any) error {
	if err := validate.Struct(s); err != nil {
		return validationError(err.Error())
	}
	return nil
}

// Register creates an account. The first account ever created is an active
// admin; later ones are users awaiting approval.
func (a *App) Register(ctx context.Context, in RegisterInput, photo *multipart.FileHeader) (domain.User, error) {
	n, err := a.store.UserCount(ctx)
	if err != nil {
		return domain.User{}, fmt.Errorf("count users: %w", err)
	}
	role := domain.RoleUser
	if n == 0 {
		role = domain.RoleAdmin
	}
	active := role == domain.RoleAdmin
	return a.createUser(ctx, in.Fullname, in.Email, in.Password, role, active, active, photo)
}

// CreateUser creates an account on behalf of an admin.
func (a *App) CreateUser(ctx context.Context, in CreateUserInput, photo *multipart.FileHeader) (domain.User, error) {
	if err := checkStruct(in); err != nil {
		return domain.User{}, err
	}
	role := in.Role
	if role == "" {
		role = domain.RoleUser
	}
	enabled, approved := true, true
	if in.Enabled != nil {
		enabled = *in.Enabled
	}
	if in.Approved != nil {
		approved = *in.Approved
	}
	return a.createUser(ctx, in.Fullname, in.Email, in.Password, role, enabled, approved, photo)
}

func (a *App) createUser(ctx context.Context, fullname, email, password string, role domain.UserRole, enabled, approved bool, photo *multipart.FileHeader) (domain.User, error) {
	in := RegisterInput{Fullname: strings.TrimSpace(fullname), Email: normalizeEmail(email), Password: password}
	if err := checkStruct(in); err != nil {
		return domain.User{}, err
	}
	if err := auth.ValidatePassword(in.Password); err != nil {
		return domain.User{}, validationError(err.Error())
	}
	taken, err := a.store.HasUserEmail(ctx, in.Email, "")
	if err != nil {
		return domain.User{}, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return domain.User{}, ErrEmailTaken
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	photoURL, err := a.saveImage(ctx, "photo", photo)
	if err != nil {
		return domain.User{}, err
	}

	now := a.now()
	user := domain.User{
		ID:        util.NewID(),
		Fullname:  in.Fullname,
		Email:     in.Email,
		Role:      role,
		Photo:     photoURL,
		Enabled:   enabled,
		Approved:  approved,
		Favorites: []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.CreateUser(ctx, user, domain.Credential{UserID: user.ID, PasswordHash: hash, UpdatedAt: now}); err != nil {
		a.discardImage(ctx, photoURL, "user create failed")
		if errors.Is(err, store.ErrDuplicateEmail) {
			return domain.User{}, ErrEmailTaken
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	util.LoggerFromContext(ctx).Info("user created", "user_id", user.ID, "role", user.Role)
	return user, nil
}

// Login checks credentials and issues a bearer token for an active account.
func (a *App) Login(ctx context.Context, email, password string) (LoginResult, error) {
	user, ok, err := a.store.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return LoginResult{}, fmt.Errorf("load user: %w", err)
	}
	if !ok {
		return LoginResult{}, ErrInvalidCredentials
	}
	cred, ok, err := a.store.GetCredential(ctx, user.ID)
	if err != nil {
		return LoginResult{}, fmt.Errorf("load credential: %w", err)
	}
	if !ok || !auth.CheckPassword(password, cred.PasswordHash) {
		return LoginResult{}, ErrInvalidCredentials
	}
	if err := checkActive(user); err != nil {
		return LoginResult{}, err
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue token: %w", err)
	}
	return LoginResult{Token: token, User: user}, nil
}

// Logout revokes token until it would have expired.
func (a *App) Logout(ctx context.Context, token string) error {
	if err := a.sessions.RevokeSession(token); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	util.LoggerFromContext(ctx).Debug("session revoked")
	return nil
}

func checkActive(u domain.User) error {
	if !u.Approved {
		return ErrActivationPending
	}
	if !u.Enabled {
		return ErrUserDisabled
	}
	return nil
}

// UserFromToken resolves the caller of a bearer token. The user is read from
// the store on every call so role and activation changes apply at once.
func (a *App) UserFromToken(ctx context.Context, token string) (domain.User, error) {
	userID, ok, err := a.sessions.GetUserIDByToken(token)
	if err != nil || !ok {
		return domain.User{}, ErrUnauthorized
	}
	user, ok, err := a.store.GetUserByID(ctx, userID)
	if err != nil {
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrUnauthorized
	}
	if err := checkActive(user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// ValidateEmail reports whether email is free, ignoring the user exceptID.
func (a *App) ValidateEmail(ctx context.Context, email, exceptID string) (bool, error) {
	email = normalizeEmail(email)
	if err := checkStruct(struct {
		Email string `json:"email" validate:"required,email"`
	}{email}); err != nil {
		return false, err
	}
	taken, err := a.store.HasUserEmail(ctx, email, exceptID)
	if err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return !taken, nil
}

func (a *App) ListUsers(ctx context.Context, p query.Params) (Page[domain.User], error) {
	users, total, err := a.store.ListUsers(ctx, query.Build(p, nil, "fullname", "email"))
	if err != nil {
		return Page[domain.User]{}, fmt.Errorf("list users: %w", err)
	}
	return newPage(users, total), nil
}

func (a *App) GetUser(ctx context.Context, id string) (domain.User, error) {
	user, ok, err := a.store.GetUserByID(ctx, id)
	if err != nil {
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrUserNotFound
	}
	return user, nil
}

// UpdateUser applies a partial update by caller. Non-admins may only update
// themselves and cannot change their role or activation. A changed name or
// photo is propagated to the user's reviews.
func (a *App) UpdateUser(ctx context.Context, caller domain.User, id string, in UpdateUserInput, photo *multipart.FileHeader) (domain.User, error) {
	isAdmin := caller.Role == domain.RoleAdmin
	if !isAdmin && caller.ID != id {
		return domain.User{}, ErrForbidden
	}
	if !isAdmin && (in.Role != nil || in.Enabled != nil || in.Approved != nil) {
		return domain.User{}, forbiddenError("You cannot change your role or activation status.")
	}
	before, err := a.GetUser(ctx, id)
	if err != nil {
		return domain.User{}, err
	}
	after := before

	if in.Fullname != nil {
		after.Fullname = strings.TrimSpace(*in.Fullname)
		if after.Fullname == "" {
			return domain.User{}, validationError("fullname is required")
		}
		if len(after.Fullname) > 100 {
			return domain.User{}, validationError("fullname must be at most 100 characters")
		}
	}
	if in.Email != nil {
		after.Email = normalizeEmail(*in.Email)
		valid, err := a.ValidateEmail(ctx, after.Email, id)
		if err != nil {
			return domain.User{}, err
		}
		if !valid {
			return domain.User{}, ErrEmailTaken
		}
	}
	if in.Role != nil {
		if !in.Role.Valid() {
			return domain.User{}, validationError("role must be one of ADMIN USER")
		}
		after.Role = *in.Role
	}
	if in.Enabled != nil {
		after.Enabled = *in.Enabled
	}
	if in.Approved != nil {
		after.Approved = *in.Approved
	}
	var hash string
	if in.Password != nil {
		if err := auth.ValidatePassword(*in.Password); err != nil {
			return domain.User{}, validationError(err.Error())
		}
		if hash, err = auth.HashPassword(*in.Password); err != nil {
			return domain.User{}, fmt.Errorf("hash password: %w", err)
		}
	}
	photoURL, err := a.saveImage(ctx, "photo", photo)
	if err != nil {
		return domain.User{}, err
	}
	if photoURL != "" {
		after.Photo = photoURL
	}
	after.UpdatedAt = a.now()

	if err := a.store.SaveUser(ctx, after); err != nil {
		a.discardImage(ctx, photoURL, "user update failed")
		if errors.Is(err, store.ErrDuplicateEmail) {
			return domain.User{}, ErrEmailTaken
		}
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	if hash != "" {
		if err := a.store.SaveCredential(ctx, domain.Credential{UserID: id, PasswordHash: hash, UpdatedAt: after.UpdatedAt}); err != nil {
			return domain.User{}, fmt.Errorf("save credential: %w", err)
		}
		if err := a.sessions.RevokeUserSessions(id, after.UpdatedAt); err != nil {
			return domain.User{}, fmt.Errorf("revoke sessions: %w", err)
		}
	}
	if photoURL != "" && before.Photo != "" {
		a.discardImage(ctx, before.Photo, "user photo replaced")
	}
	if _, err := a.propagate.UserUpdated(ctx, before, after); err != nil {
		return domain.User{}, err
	}
	return after, nil
}

// DeleteUser removes an account. The user's reviews stay. When exactly one
// user remains it is promoted to admin.
func (a *App) DeleteUser(ctx context.Context, id string) error {
	user, err := a.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if err := a.store.DeleteUser(ctx, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	a.discardImage(ctx, user.Photo, "user deleted")
	if _, _, err := a.propagate.UserDeleted(ctx); err != nil {
		return err
	}
	return nil
}

// Favorites lists the user's favorite movies.
func (a *App) Favorites(ctx context.Context, userID string, p query.Params) (Page[domain.Movie], error) {
	user, err := a.GetUser(ctx, userID)
	if err != nil {
		return Page[domain.Movie]{}, err
	}
	ids := user.Favorites
	if ids == nil {
		ids = []string{}
	}
	movies, total, err := a.store.ListMovies(ctx, query.Build(p, []query.Cond{query.In("id", ids)}, "title"))
	if err != nil {
		return Page[domain.Movie]{}, fmt.Errorf("list favorites: %w", err)
	}
	return newPage(movies, total), nil
}

// SetFavorite adds or removes movieID from the user's favorites.
func (a *App) SetFavorite(ctx context.Context, userID, movieID string, favorite bool) (domain.User, error) {
	user, err := a.GetUser(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	movieID = strings.TrimSpace(movieID)
	if movieID == "" {
		return domain.User{}, validationError("movieId is required")
	}
	has := user.HasFavorite(movieID)
	switch {
	case favorite && !has:
		if _, err := a.GetMovie(ctx, movieID); err != nil {
			return domain.User{}, err
		}
		user.Favorites = append(user.Favorites, movieID)
	case !favorite && has:
		user.Favorites = slices.DeleteFunc(user.Favorites, func(id string) bool { return id == movieID })
	default:
		return user, nil
	}
	user.UpdatedAt = a.now()
	if err := a.store.SaveUser(ctx, user); err != nil {
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	return user, nil
}
