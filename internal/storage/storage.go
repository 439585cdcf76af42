// Package storage keeps product images in a public bucket and hands back the
// URL they are served from.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ordersite/internal/metrics"
)

const (
	MaxImageSize = 5 << 20
	imagePrefix  = "products/"
)

var (
	ErrEmptyFile       = errors.New("image file is empty")
	ErrTooLarge        = errors.New("image file too large (max 5MB)")
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrForeignURL      = errors.New("url does not point into this bucket")
)

// allowedTypes maps the sniffed MIME type to the stored extension.
var allowedTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/gif":  "gif",
}

// Backend stores objects by key.
type Backend interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	Name() string
}

type Store struct {
	backend    Backend
	publicBase string
	now        func() time.Time
	log        *logrus.Entry
}

// New wraps backend; publicBase is the URL prefix objects are served under.
func New(backend Backend, publicBase string) *Store {
	return &Store{
		backend:    backend,
		publicBase: strings.TrimRight(publicBase, "/"),
		now:        time.Now,
		log:        logrus.WithField("component", "storage"),
	}
}

// SaveImage sniffs r, stores it under a fresh name and returns its public URL.
// The declared content type of the upload is ignored.
func (s *Store) SaveImage(ctx context.Context, r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageSize+1))
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if len(data) == 0 {
		return "", ErrEmptyFile
	}
	if len(data) > MaxImageSize {
		return "", ErrTooLarge
	}

	mt := mimetype.Detect(data)
	ext, ok := allowedTypes[baseMIME(mt.String())]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, mt.String())
	}

	key := imagePrefix + s.objectName(ext)
	if err := s.backend.Put(ctx, key, bytes.NewReader(data), int64(len(data)), baseMIME(mt.String())); err != nil {
		return "", fmt.Errorf("store image: %w", err)
	}
	metrics.UploadsStored.WithLabelValues(s.backend.Name()).Inc()

	s.log.WithFields(logrus.Fields{
		"key":     key,
		"size":    len(data),
		"type":    mt.String(),
		"backend": s.backend.Name(),
	}).Info("image stored")
	return s.PublicURL(key), nil
}

// DeleteByURL removes the object behind a URL previously returned by SaveImage.
func (s *Store) DeleteByURL(ctx context.Context, rawURL string) error {
	key, ok := ObjectPathFromURL(s.publicBase, rawURL)
	if !ok {
		return ErrForeignURL
	}
	if err := s.backend.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete image: %w", err)
	}
	s.log.WithField("key", key).Info("image deleted")
	return nil
}

func (s *Store) PublicURL(key string) string {
	return s.publicBase + "/" + key
}

// objectName is {unixMillis}_{random}.{ext}.
func (s *Store) objectName(ext string) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%d_%s.%s", s.now().UnixMilli(), random, ext)
}

// ObjectPathFromURL returns the object key of rawURL relative to publicBase.
func ObjectPathFromURL(publicBase, rawURL string) (string, bool) {
	base, err := url.Parse(strings.TrimRight(publicBase, "/"))
	if err != nil {
		return "", false
	}
	target, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || target.Host != base.Host || target.Scheme != base.Scheme {
		return "", false
	}

	rest, ok := strings.CutPrefix(target.Path, base.Path+"/")
	if !ok || rest == "" {
		return "", false
	}
	clean := path.Clean("/" + rest)
	clean = strings.TrimPrefix(clean, "/")
	if clean != rest || strings.HasPrefix(clean, "..") {
		return "", false
	}
	return clean, true
}

func baseMIME(m string) string {
	if i := strings.IndexByte(m, ';'); i >= 0 {
		m = m[:i]
	}
	return strings.TrimSpace(m)
}
