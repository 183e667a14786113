package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxImageBytes bounds a single uploaded image.
const DefaultMaxImageBytes int64 = 8 << 20

var DefaultImageExts = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

var (
	ErrEmptyImage       = errors.New("uploaded image is empty")
	ErrImageTooLarge    = errors.New("uploaded image is too large")
	ErrUnsupportedImage = errors.New("unsupported image type")
)

// Upload describes a stored image.
type Upload struct {
	Field       string `json:"field"`
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// Images stores multipart image parts and returns their public URLs.
type Images struct {
	objects   ObjectStore
	publicURL string
	maxBytes  int64
	exts      map[string]bool
	now       func() time.Time
}

// NewImages wraps objects. publicURL is the prefix that resolves stored keys,
// e.g. "http://localhost:9000/catalog-media".
func NewImages(objects ObjectStore, publicURL string, maxBytes int64, exts []string) *Images {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	if len(exts) == 0 {
		exts = DefaultImageExts
	}
	allowed := make(map[string]bool, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = true
	}
	return &Images{
		objects:   objects,
		publicURL: strings.TrimRight(strings.TrimSpace(publicURL), "/"),
		maxBytes:  maxBytes,
		exts:      allowed,
		now:       time.Now,
	}
}

// MaxBytes is the per-image size limit.
func (i *Images) MaxBytes() int64 {
	return i.maxBytes
}

// Save validates and stores one file part under a key derived from field and
// the client file name.
func (i *Images) Save(ctx context.Context, field string, fh *multipart.FileHeader) (Upload, error) {
	if fh == nil || fh.Size == 0 {
		return Upload{}, ErrEmptyImage
	}
	if fh.Size > i.maxBytes {
		return Upload{}, ErrImageTooLarge
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !i.exts[ext] {
		return Upload{}, ErrUnsupportedImage
	}
	f, err := fh.Open()
	if err != nil {
		return Upload{}, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return Upload{}, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	contentType := http.DetectContentType(head)
	if !strings.HasPrefix(contentType, "image/") {
		return Upload{}, ErrUnsupportedImage
	}

	key := ObjectName(field, fh.Filename, i.now(), uuid.NewString()[:8])
	body := io.MultiReader(bytes.NewReader(head), f)
	if err := i.objects.Put(ctx, key, body, fh.Size, contentType); err != nil {
		return Upload{}, err
	}
	return Upload{
		Field:       field,
		Key:         key,
		URL:         i.URL(key),
		ContentType: contentType,
		Size:        fh.Size,
	}, nil
}

// URL returns the public address of key.
func (i *Images) URL(key string) string {
	return i.publicURL + "/" + key
}

// KeyFromURL recovers the object key of an image this service stored.
func (i *Images) KeyFromURL(raw string) (string, bool) {
	prefix := i.publicURL + "/"
	if raw == "" || !strings.HasPrefix(raw, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(raw, prefix)
	return key, key != ""
}

// Delete removes a stored image.
func (i *Images) Delete(ctx context.Context, key string) error {
	return i.objects.Delete(ctx, key)
}

// ObjectName builds "<field>/<name>-<unix-ms>-<suffix><ext>" with a
// sanitized, lowercased base name.
func ObjectName(field, filename string, now time.Time, suffix string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(base) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	name := strings.TrimRight(b.String(), "-")
	if name == "" {
		name = "image"
	}
	field = strings.TrimSpace(field)
	if field == "" {
		field = "misc"
	}
	return fmt.Sprintf("%s/%s-%d-%s%s", field, name, now.UnixMilli(), suffix, ext)
}
