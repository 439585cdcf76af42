package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"ordersite/internal/middleware"
	"ordersite/internal/models"
	"ordersite/internal/repository"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func testTokens() TokenConfig {
	return TokenConfig{Secret: testSecret, AccessTTL: 15 * time.Minute, RefreshTTL: 24 * time.Hour}
}

func bearer(t *testing.T, user *models.UserProfile) string {
	t.Helper()
	token, err := middleware.NewAccessToken(testSecret, user.ID, user.Email, user.Role, time.Hour, time.Now())
	require.NoError(t, err)
	return "Bearer " + token
}

func doJSON(t *testing.T, r http.Handler, method, path string, body interface{}, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dst), w.Body.String())
}

// fakeUsers implements the user methods the handlers call; anything else
// panics through the nil embedded interface.
type fakeUsers struct {
	repository.UserRepository
	mu    sync.Mutex
	byID  map[primitive.ObjectID]*models.UserProfile
	fails error
}

func newFakeUsers(users ...*models.UserProfile) *fakeUsers {
	f := &fakeUsers{byID: map[primitive.ObjectID]*models.UserProfile{}}
	for _, u := range users {
		if u.ID.IsZero() {
			u.ID = primitive.NewObjectID()
		}
		f.byID[u.ID] = u
	}
	return f
}

func (f *fakeUsers) Create(_ context.Context, u *models.UserProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.byID {
		if existing.Email == u.Email {
			return repository.ErrDuplicate
		}
	}
	u.ID = primitive.NewObjectID()
	f.byID[u.ID] = u
	return nil
}

func (f *fakeUsers) Get(_ context.Context, id primitive.ObjectID) (*models.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails != nil {
		return nil, f.fails
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*models.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUsers) GetMany(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[primitive.ObjectID]models.UserProfile{}
	for _, id := range ids {
		if u, ok := f.byID[id]; ok {
			out[id] = *u
		}
	}
	return out, nil
}

func (f *fakeUsers) UpdateRole(_ context.Context, id primitive.ObjectID, role string) (*models.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u.Role = role
	copied := *u
	return &copied, nil
}

type fakeTokens struct {
	repository.RefreshTokenRepository
	mu     sync.Mutex
	byHash map[string]*models.RefreshToken
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{byHash: map[string]*models.RefreshToken{}}
}

func (f *fakeTokens) Create(_ context.Context, t *models.RefreshToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t.ID = primitive.NewObjectID()
	t.CreatedAt = time.Now()
	f.byHash[t.TokenHash] = t
	return nil
}

func (f *fakeTokens) FindActive(_ context.Context, hash string) (*models.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.byHash[hash]
	if !ok || t.Revoked {
		return nil, repository.ErrNotFound
	}
	copied := *t
	return &copied, nil
}

func (f *fakeTokens) Revoke(_ context.Context, id primitive.ObjectID, replacedBy *primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.byHash {
		if t.ID == id {
			now := time.Now()
			t.Revoked, t.RevokedAt, t.ReplacedBy = true, &now, replacedBy
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakeTokens) RevokeByHash(_ context.Context, hash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.byHash[hash]
	if !ok || t.Revoked {
		return false, nil
	}
	t.Revoked = true
	return true, nil
}

type fakeProducts struct {
	repository.ProductRepository
	mu    sync.Mutex
	items map[primitive.ObjectID]*models.Product
}

func newFakeProducts(products ...*models.Product) *fakeProducts {
	f := &fakeProducts{items: map[primitive.ObjectID]*models.Product{}}
	for _, p := range products {
		if p.ID.IsZero() {
			p.ID = primitive.NewObjectID()
		}
		f.items[p.ID] = p
	}
	return f
}

func (f *fakeProducts) Get(_ context.Context, id primitive.ObjectID) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (f *fakeProducts) Create(_ context.Context, p *models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.ID = primitive.NewObjectID()
	f.items[p.ID] = p
	return nil
}

func (f *fakeProducts) Update(_ context.Context, id primitive.ObjectID, patch models.ProductPatch) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if patch.SKU != nil {
		p.SKU = *patch.SKU
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.CategoryID != nil {
		p.CategoryID = patch.CategoryID
	}
	if patch.ClearCategory {
		p.CategoryID = nil
	}
	if patch.ImageURL != nil {
		p.ImageURL = *patch.ImageURL
	}
	if patch.ClearImage {
		p.ImageURL = ""
	}
	if patch.MinOrderQty != nil {
		p.MinOrderQty = *patch.MinOrderQty
	}
	if patch.IsActive != nil {
		p.IsActive = *patch.IsActive
	}
	copied := *p
	return &copied, nil
}

func (f *fakeProducts) Delete(_ context.Context, id primitive.ObjectID) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(f.items, id)
	return p, nil
}

func (f *fakeProducts) SKUExists(_ context.Context, sku string, exclude *primitive.ObjectID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, p := range f.items {
		if exclude != nil && id == *exclude {
			continue
		}
		if strings.EqualFold(p.SKU, sku) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeProducts) CountByCategory(_ context.Context) (map[primitive.ObjectID]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[primitive.ObjectID]int64{}
	for _, p := range f.items {
		if p.CategoryID != nil {
			out[*p.CategoryID]++
		}
	}
	return out, nil
}

func (f *fakeProducts) DetachCategory(_ context.Context, categoryID primitive.ObjectID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, p := range f.items {
		if p.CategoryID != nil && *p.CategoryID == categoryID {
			p.CategoryID = nil
			n++
		}
	}
	return n, nil
}

type fakeCategories struct {
	repository.CategoryRepository
	items map[primitive.ObjectID]*models.Category
}

func newFakeCategories(categories ...*models.Category) *fakeCategories {
	f := &fakeCategories{items: map[primitive.ObjectID]*models.Category{}}
	for _, c := range categories {
		if c.ID.IsZero() {
			c.ID = primitive.NewObjectID()
		}
		f.items[c.ID] = c
	}
	return f
}

func (f *fakeCategories) List(_ context.Context, activeOnly bool) ([]models.Category, error) {
	out := []models.Category{}
	for _, c := range f.items {
		if !activeOnly || c.IsActive {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeCategories) Get(_ context.Context, id primitive.ObjectID) (*models.Category, error) {
	c, ok := f.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (f *fakeCategories) Delete(_ context.Context, id primitive.ObjectID) error {
	if _, ok := f.items[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

// fakeImages records what was stored and deleted.
type fakeImages struct {
	mu      sync.Mutex
	saved   []string
	deleted []string
	err     error
}

func (f *fakeImages) SaveImage(_ context.Context, r io.Reader) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	url := "http://cdn.test/uploads/" + primitive.NewObjectID().Hex() + ".png"
	f.saved = append(f.saved, url)
	return url, nil
}

func (f *fakeImages) DeleteByURL(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, url)
	return nil
}

type fakeSettings struct {
	current models.SiteSettings
	saved   *models.SiteSettings
}

func (f *fakeSettings) Get(context.Context) (*models.SiteSettings, error) {
	copied := f.current
	return &copied, nil
}

func (f *fakeSettings) Save(_ context.Context, s *models.SiteSettings) error {
	copied := *s
	f.saved = &copied
	f.current = copied
	return nil
}
