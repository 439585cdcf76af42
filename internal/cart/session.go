package cart

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/sessions"
	"github.com/sirupsen/logrus"
)

const (
	SessionName = "ordersite_cart"
	sessionKey  = "cart"

	// MaxAge is how long an untouched cart survives, in the cookie and on disk.
	MaxAge = 30 * 24 * time.Hour

	// MaxCartBytes bounds the serialized cart; the encoded session on disk is
	// allowed some headroom over it.
	MaxCartBytes   = 512 << 10
	maxEncodedSize = 1 << 20

	sessionFilePrefix = "session_"
)

var ErrCartTooLarge = errors.New("cart is too large")

// SessionStore keeps the cart server-side; the browser only holds a signed
// session id cookie.
type SessionStore struct {
	store sessions.Store
	dir   string
}

// NewFilesystemStore keeps carts as files under dir and signs the id cookie
// with secret. secure should be true behind HTTPS.
func NewFilesystemStore(dir, secret string, secure bool) (*SessionStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create cart dir: %w", err)
	}
	store := sessions.NewFilesystemStore(dir, []byte(secret))
	store.MaxLength(maxEncodedSize)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(MaxAge / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &SessionStore{store: store, dir: dir}, nil
}

// Load returns the cart for the request, or an empty cart when none is
// stored or the session cannot be decoded.
func (s *SessionStore) Load(r *http.Request) *Cart {
	session, err := s.store.Get(r, SessionName)
	if err != nil {
		logrus.WithError(err).WithField("component", "cart").Debug("discarding unreadable cart session")
		return New()
	}

	raw, ok := session.Values[sessionKey].(string)
	if !ok || raw == "" {
		return New()
	}

	c := New()
	if err := json.Unmarshal([]byte(raw), c); err != nil {
		return New()
	}
	if c.Items == nil {
		c.Items = []Item{}
	}
	return c
}

func (s *SessionStore) Save(w http.ResponseWriter, r *http.Request, c *Cart) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	if len(data) > MaxCartBytes {
		return ErrCartTooLarge
	}

	session, _ := s.store.Get(r, SessionName)
	session.Values[sessionKey] = string(data)
	return session.Save(r, w)
}

func (s *SessionStore) Clear(w http.ResponseWriter, r *http.Request) error {
	return s.Save(w, r, New())
}

// Prune removes cart files not written for longer than maxAge and returns how
// many were deleted.
func (s *SessionStore) Prune(maxAge time.Duration, now time.Time) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), sessionFilePrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) <= maxAge {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
