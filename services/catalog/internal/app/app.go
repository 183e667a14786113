package app

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"time"

	"moviecatalog/internal/util"
	"moviecatalog/pkg/queue"
	"moviecatalog/pkg/storage"
	"moviecatalog/pkg/store"
	"moviecatalog/services/catalog/internal/consistency"
)

// Purger schedules deletion of an image that is no longer referenced.
type Purger interface {
	Enqueue(ctx context.Context, objectKey, reason string) (queue.Job, error)
}

// Config holds runtime configuration for the catalog application.
type Config struct {
	DatabaseURL string
	Store       store.Store

	Objects          storage.ObjectStore
	MinioEndpoint    string
	MinioAccessKey   string
	MinioSecretKey   string
	MinioBucket      string
	MinioUseSSL      bool
	MediaPublicURL   string
	MaxUploadBytes   int64
	AllowedImageExts []string

	Sessions    store.SessionStore
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	JWTTTL      time.Duration
	JWTLeeway   time.Duration
	// Revoker backs logout. Defaults to an in-memory revoker.
	Revoker store.TokenRevoker

	// Purger is optional; without it replaced images stay in the bucket.
	Purger Purger
}

// App is the catalog service: canonical writes through the store followed
// by snapshot propagation.
type App struct {
	store     store.Store
	sessions  store.SessionStore
	images    *storage.Images
	purger    Purger
	propagate *consistency.Propagator
	now       func() time.Time
}

// Page is the body of every list response.
type Page[T any] struct {
	Total int `json:"total"`
	Items []T `json:"items"`
}

func newPage[T any](items []T, total int) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{Total: total, Items: items}
}

// New constructs the application. Store, Objects and Sessions may be injected;
// otherwise they are built from the connection settings.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}

	objects := cfg.Objects
	if objects == nil {
		minioStore, err := storage.NewMinioStore(context.Background(), storage.MinioConfig{
			Endpoint:   cfg.MinioEndpoint,
			AccessKey:  cfg.MinioAccessKey,
			SecretKey:  cfg.MinioSecretKey,
			Bucket:     cfg.MinioBucket,
			UseSSL:     cfg.MinioUseSSL,
			PublicRead: true,
		})
		if err != nil {
			return nil, fmt.Errorf("init object store: %w", err)
		}
		objects = minioStore
	}
	if cfg.MediaPublicURL == "" {
		return nil, fmt.Errorf("media public URL required")
	}

	sessions := cfg.Sessions
	if sessions == nil {
		jwtSessions, err := store.NewJWTSessionStore(cfg.JWTSecret, cfg.JWTTTL, store.JWTOptions{
			Issuer:   cfg.JWTIssuer,
			Audience: cfg.JWTAudience,
			Leeway:   cfg.JWTLeeway,
			Revoker:  cfg.Revoker,
		})
		if err != nil {
			return nil, fmt.Errorf("init sessions: %w", err)
		}
		sessions = jwtSessions
	}

	return &App{
		store:     dataStore,
		sessions:  sessions,
		images:    storage.NewImages(objects, cfg.MediaPublicURL, cfg.MaxUploadBytes, cfg.AllowedImageExts),
		purger:    cfg.Purger,
		propagate: consistency.New(dataStore),
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// MaxUploadBytes is the per-image upload limit.
func (a *App) MaxUploadBytes() int64 {
	return a.images.MaxBytes()
}

// saveImage stores an optional upload and returns its public URL, or "" when
// no file was sent.
func (a *App) saveImage(ctx context.Context, field string, fh *multipart.FileHeader) (string, error) {
	if fh == nil {
		return "", nil
	}
	up, err := a.images.Save(ctx, field, fh)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrEmptyImage),
			errors.Is(err, storage.ErrImageTooLarge),
			errors.Is(err, storage.ErrUnsupportedImage):
			return "", &Error{Kind: KindValidation, Message: field + ": " + err.Error(), Err: err}
		}
		return "", fmt.Errorf("store %s image: %w", field, err)
	}
	return up.URL, nil
}

// discardImage queues a stored image for deletion. URLs that do not point
// into the media bucket are ignored and enqueue failures are only logged.
func (a *App) discardImage(ctx context.Context, url, reason string) {
	if a.purger == nil || url == "" {
		return
	}
	key, ok := a.images.KeyFromURL(url)
	if !ok {
		return
	}
	if _, err := a.purger.Enqueue(ctx, key, reason); err != nil {
		util.LoggerFromContext(ctx).Warn("image purge enqueue failed", "key", key, "reason", reason, "err", err)
	}
}

// PurgeImage deletes the object named by a purge job.
func (a *App) PurgeImage(ctx context.Context, job queue.Job) error {
	if err := a.images.Delete(ctx, job.ObjectKey); err != nil {
		return fmt.Errorf("delete image %s: %w", job.ObjectKey, err)
	}
	util.LoggerFromContext(ctx).Info("image purged", "key", job.ObjectKey, "reason", job.Reason, "job_id", job.ID)
	return nil
}
