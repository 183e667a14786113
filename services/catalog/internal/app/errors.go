package app

import "errors"

// Kind classifies an app error for the transport layer.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindUnauthorized
	KindForbidden
)

// Error is a failure whose Message is safe to show to clients.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "internal error"
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err, KindUnknown for errors not raised by the app.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

func validationError(msg string) error {
	return &Error{Kind: KindValidation, Message: msg}
}

func forbiddenError(msg string) error {
	return &Error{Kind: KindForbidden, Message: msg}
}

var (
	ErrUserNotFound   = &Error{Kind: KindNotFound, Message: "User not found."}
	ErrActorNotFound  = &Error{Kind: KindNotFound, Message: "Actor not found!"}
	ErrGenreNotFound  = &Error{Kind: KindNotFound, Message: "Genre not found!"}
	ErrMovieNotFound  = &Error{Kind: KindNotFound, Message: "Movie not found!"}
	ErrReviewNotFound = &Error{Kind: KindNotFound, Message: "Review not found!"}

	ErrActorInUse = &Error{Kind: KindConflict, Message: "Actor is casted in a movie. Deletion not allowed!"}
	ErrGenreInUse = &Error{Kind: KindConflict, Message: "Some movies are associated. Deletion not allowed!"}
	ErrEmailTaken = &Error{Kind: KindConflict, Message: "Email is already registered."}

	// ErrInvalidCredentials covers unknown emails and wrong passwords alike.
	ErrInvalidCredentials = &Error{Kind: KindUnauthorized, Message: "Invalid email or password."}
	ErrUnauthorized       = &Error{Kind: KindUnauthorized, Message: "Unauthorized"}
	ErrActivationPending  = &Error{Kind: KindForbidden, Message: "User activation is still pending."}
	ErrUserDisabled       = &Error{Kind: KindForbidden, Message: "User account is disabled."}
	ErrForbidden          = &Error{Kind: KindForbidden, Message: "Forbidden"}

	ErrPhotoRequired        = &Error{Kind: KindValidation, Message: "Photo is required!"}
	ErrMovieImagesRequired  = &Error{Kind: KindValidation, Message: "No poster and/or backdrop image provided!"}
	ErrReviewContentMissing = &Error{Kind: KindValidation, Message: "Review content is required."}
)
