package cart

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"ordersite/internal/models"
)

func product(sku string, moq int) models.Product {
	return models.Product{ID: primitive.NewObjectID(), SKU: sku, Name: "品名 " + sku, MinOrderQty: moq}
}

func TestAddMergesQuantityForSameProduct(t *testing.T) {
	c := New()
	bolt := product("B-100", 10)

	_, err := c.Add(bolt, 10)
	require.NoError(t, err)
	item, err := c.Add(bolt, 5)
	require.NoError(t, err)

	require.Len(t, c.Items, 1)
	assert.Equal(t, 15, item.Quantity)
	assert.Equal(t, 15, c.TotalQuantity())
}

func TestAddDefaultsToMOQ(t *testing.T) {
	c := New()
	c.Add(product("N-1", 0), 0)
	c.Add(product("N-2", 25), 0)

	assert.Equal(t, 1, c.Items[0].Quantity)
	assert.Equal(t, 25, c.Items[1].Quantity)
}

func TestUpdateQuantityRemovesOnZero(t *testing.T) {
	c := New()
	p := product("W-1", 1)
	c.Add(p, 3)

	require.NoError(t, c.UpdateQuantity(p.ID, 7))
	assert.Equal(t, 7, c.Items[0].Quantity)

	require.NoError(t, c.UpdateQuantity(p.ID, 0))
	assert.True(t, c.IsEmpty())

	assert.ErrorIs(t, c.UpdateQuantity(p.ID, 1), ErrItemNotFound)
}

func TestNoteRemoveClear(t *testing.T) {
	c := New()
	a, b := product("A", 1), product("B", 1)
	c.Add(a, 1)
	c.Add(b, 2)

	require.NoError(t, c.UpdateNote(a.ID, "  至急  "))
	assert.Equal(t, "至急", c.Items[0].Note)

	require.NoError(t, c.Remove(a.ID))
	require.Len(t, c.Items, 1)
	assert.Equal(t, b.ID, c.Items[0].ProductID)

	c.Clear()
	assert.True(t, c.IsEmpty())
}

func TestValidateReportsMOQShortfalls(t *testing.T) {
	c := New()
	ok := product("OK", 5)
	short := product("SHORT", 100)
	c.Add(ok, 5)
	c.Add(short, 20)

	shortfalls := c.Validate()
	require.Len(t, shortfalls, 1)
	assert.Equal(t, "SHORT", shortfalls[0].SKU)
	assert.Equal(t, 100, shortfalls[0].MOQ)
	assert.Equal(t, 20, shortfalls[0].Quantity)
}

func TestAddStopsAtMaxItems(t *testing.T) {
	c := New()
	for i := 0; i < MaxItems; i++ {
		_, err := c.Add(product(fmt.Sprintf("P-%03d", i), 1), 1)
		require.NoError(t, err)
	}

	_, err := c.Add(product("ONE-MORE", 1), 1)
	assert.ErrorIs(t, err, ErrCartFull)

	item, err := c.Add(models.Product{ID: c.Items[0].ProductID, MinOrderQty: 1}, 2)
	require.NoError(t, err, "existing lines still merge")
	assert.Equal(t, 3, item.Quantity)
}

func TestUpdateNoteIsBounded(t *testing.T) {
	c := New()
	p := product("N-1", 1)
	c.Add(p, 1)

	require.NoError(t, c.UpdateNote(p.ID, strings.Repeat("長", MaxNoteLength+50)))
	assert.Equal(t, MaxNoteLength, utf8.RuneCountInString(c.Items[0].Note))
}

func newTestStore(t *testing.T) *SessionStore {
	t.Helper()
	store, err := NewFilesystemStore(t.TempDir(), "0123456789abcdef0123456789abcdef", false)
	require.NoError(t, err)
	return store
}

func reload(store *SessionStore, rec *httptest.ResponseRecorder) *Cart {
	next := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	for _, ck := range rec.Result().Cookies() {
		next.AddCookie(ck)
	}
	return store.Load(next)
}

func TestSessionStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)
	p := product("S-1", 2)

	c := New()
	c.Add(p, 4)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/cart/items", nil)
	require.NoError(t, store.Save(rec, req, c))
	require.NotEmpty(t, rec.Result().Cookies())

	loaded := reload(store, rec)
	require.Len(t, loaded.Items, 1)
	assert.Equal(t, p.ID, loaded.Items[0].ProductID)
	assert.Equal(t, 4, loaded.Items[0].Quantity)
}

func TestSessionStoreKeepsLargeCarts(t *testing.T) {
	store := newTestStore(t)
	c := New()
	for i := 0; i < 40; i++ {
		p := models.Product{
			ID:          primitive.NewObjectID(),
			SKU:         fmt.Sprintf("HX-BOLT-M%02d-SUS304", i),
			Name:        fmt.Sprintf("六角ボルト ステンレス M%d 全ネジ", i),
			Specs:       "材質: SUS304 / 表面処理: なし / 強度区分: A2-70 / 入数: 100本",
			ImageURL:    fmt.Sprintf("https://cdn.example.com/product-images/1735689600000_%s.jpg", primitive.NewObjectID().Hex()),
			MinOrderQty: 10,
		}
		_, err := c.Add(p, 20)
		require.NoError(t, err)
		require.NoError(t, c.UpdateNote(p.ID, "梱包は10本ずつ小分けでお願いします"))
	}

	rec := httptest.NewRecorder()
	require.NoError(t, store.Save(rec, httptest.NewRequest(http.MethodPost, "/api/cart/items", nil), c))

	for _, ck := range rec.Result().Cookies() {
		assert.Less(t, len(ck.Value), 1024, "cookie carries only the session id")
	}
	loaded := reload(store, rec)
	require.Len(t, loaded.Items, 40)
	assert.Equal(t, c.Items[39].ImageURL, loaded.Items[39].ImageURL)
	assert.Equal(t, "梱包は10本ずつ小分けでお願いします", loaded.Items[0].Note)
}

func TestSessionStoreRejectsOversizedCart(t *testing.T) {
	store := newTestStore(t)
	c := New()
	big := product("BIG", 1)
	big.Specs = strings.Repeat("x", MaxCartBytes)
	c.Add(big, 1)

	err := store.Save(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/cart/items", nil), c)
	assert.ErrorIs(t, err, ErrCartTooLarge)
}

func TestSessionStoreLoadWithoutCookie(t *testing.T) {
	store := newTestStore(t)
	loaded := store.Load(httptest.NewRequest(http.MethodGet, "/api/cart", nil))
	assert.True(t, loaded.IsEmpty())
}

func TestPruneRemovesStaleCarts(t *testing.T) {
	store := newTestStore(t)
	c := New()
	c.Add(product("P-1", 1), 1)

	fresh := httptest.NewRecorder()
	require.NoError(t, store.Save(fresh, httptest.NewRequest(http.MethodPost, "/", nil), c))
	stale := httptest.NewRecorder()
	require.NoError(t, store.Save(stale, httptest.NewRequest(http.MethodPost, "/", nil), c))

	entries, err := os.ReadDir(store.dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	old := time.Now().Add(-MaxAge - time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(store.dir, entries[0].Name()), old, old))

	removed, err := store.Prune(MaxAge, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	entries, err = os.ReadDir(store.dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
