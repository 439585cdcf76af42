package handlers

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"ordersite/internal/middleware"
	"ordersite/internal/models"
	"ordersite/internal/ordering"
	"ordersite/internal/reports"
	"ordersite/internal/storage"
)

func adminHeader(t *testing.T) (*models.UserProfile, http.Header) {
	admin := &models.UserProfile{ID: primitive.NewObjectID(), Email: "admin@example.com", Role: models.RoleAdmin, IsActive: true}
	return admin, http.Header{"Authorization": {bearer(t, admin)}}
}

func multipartRequest(t *testing.T, method, path string, fields map[string]string, image []byte, header http.Header) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if image != nil {
		part, err := writer.CreateFormFile("image", "photo.png")
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	for k, v := range header {
		req.Header[k] = v
	}
	return req
}

func TestAdminProductLifecycleWithImage(t *testing.T) {
	_, auth := adminHeader(t)
	category := &models.Category{Name: "締結部品", IsActive: true}
	products := newFakeProducts()
	catalog := CatalogStores{Products: products, Categories: newFakeCategories(category)}
	images := &fakeImages{}

	r := gin.New()
	admin := r.Group("/admin/api", middleware.AdminAuth(testSecret))
	admin.POST("/products", CreateProduct(catalog, images))
	admin.PUT("/products/:id", UpdateProduct(catalog, images))
	admin.GET("/products/:id", GetAdminProduct(products))
	admin.DELETE("/products/:id", DeleteProduct(products, images))

	req := multipartRequest(t, http.MethodPost, "/admin/api/products", map[string]string{
		"sku":        "B-8",
		"name":       "六角ボルト M8",
		"categoryId": category.ID.Hex(),
		"moq":        "50",
	}, []byte("\x89PNG"), auth)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created models.Product
	decode(t, w, &created)
	assert.Equal(t, 50, created.MinOrderQty)
	assert.True(t, created.IsActive)
	require.Len(t, images.saved, 1)
	assert.Equal(t, images.saved[0], created.ImageURL)
	firstImage := created.ImageURL

	w = doJSON(t, r, http.MethodPost, "/admin/api/products", gin.H{"sku": "b-8", "name": "dup"}, auth)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, r, http.MethodPost, "/admin/api/products", gin.H{"sku": "X-1", "name": "x", "categoryId": primitive.NewObjectID().Hex()}, auth)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req = multipartRequest(t, http.MethodPut, "/admin/api/products/"+created.ID.Hex(), map[string]string{"categoryId": ""}, []byte("\x89PNG"), auth)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated models.Product
	decode(t, w, &updated)
	assert.Nil(t, updated.CategoryID)
	require.Len(t, images.saved, 2)
	assert.Equal(t, images.saved[1], updated.ImageURL)
	assert.Equal(t, []string{firstImage}, images.deleted, "replaced image is removed")

	w = doJSON(t, r, http.MethodDelete, "/admin/api/products/"+created.ID.Hex(), nil, auth)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{firstImage, updated.ImageURL}, images.deleted)

	w = doJSON(t, r, http.MethodGet, "/admin/api/products/"+created.ID.Hex(), nil, auth)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateProductRejectsBadImage(t *testing.T) {
	_, auth := adminHeader(t)
	catalog := CatalogStores{Products: newFakeProducts(), Categories: newFakeCategories()}
	images := &fakeImages{err: storage.ErrUnsupportedType}

	r := gin.New()
	r.POST("/admin/api/products", middleware.AdminAuth(testSecret), CreateProduct(catalog, images))

	req := multipartRequest(t, http.MethodPost, "/admin/api/products", map[string]string{"sku": "B-8", "name": "bolt"}, []byte("%PDF"), auth)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminRoutesRejectCustomers(t *testing.T) {
	user := &models.UserProfile{ID: primitive.NewObjectID(), Role: models.RoleUser}
	r := gin.New()
	r.GET("/admin/api/products", middleware.AdminAuth(testSecret), GetAllProducts(newFakeProducts()))

	w := doJSON(t, r, http.MethodGet, "/admin/api/products", nil, http.Header{"Authorization": {bearer(t, user)}})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestDeleteCategoryDetachesProducts(t *testing.T) {
	_, auth := adminHeader(t)
	category := &models.Category{Name: "工具", IsActive: true}
	hammer := &models.Product{SKU: "H-1", Name: "ハンマー", CategoryID: &category.ID, IsActive: true}
	products := newFakeProducts(hammer)
	catalog := CatalogStores{Products: products, Categories: newFakeCategories(category)}

	r := gin.New()
	admin := r.Group("/admin/api", middleware.AdminAuth(testSecret))
	admin.GET("/categories", GetAllCategories(catalog))
	admin.DELETE("/categories/:id", DeleteCategory(catalog))

	w := doJSON(t, r, http.MethodGet, "/admin/api/categories", nil, auth)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Data []CategoryWithCount `json:"data"`
	}
	decode(t, w, &list)
	require.Len(t, list.Data, 1)
	assert.Equal(t, int64(1), list.Data[0].ProductCount)

	w = doJSON(t, r, http.MethodDelete, "/admin/api/categories/"+category.ID.Hex(), nil, auth)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Nil(t, products.items[hammer.ID].CategoryID)

	w = doJSON(t, r, http.MethodDelete, "/admin/api/categories/"+category.ID.Hex(), nil, auth)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminOrdersResolveProfilesAndTransitions(t *testing.T) {
	admin, auth := adminHeader(t)
	customer := &models.UserProfile{Email: "buyer@example.com", FullName: "佐藤", Company: "佐藤建設", Role: models.RoleUser}
	users := newFakeUsers(customer, admin)
	now := time.Now()
	open := &models.Order{CustomerID: customer.ID, OrderNumber: "ORD-20260105-001", Status: models.StatusPending}
	cancelled := &models.Order{CustomerID: customer.ID, OrderNumber: "ORD-20260105-002", Status: models.StatusCancelled, CancelledBy: &admin.ID, CancelledAt: &now}
	orders := newFakeOrders(open, cancelled)
	lifecycle := &fakeLifecycle{}

	r := gin.New()
	group := r.Group("/admin/api", middleware.AdminAuth(testSecret))
	stores := OrderStores{Orders: orders, Users: users}
	group.GET("/orders", GetAllOrders(stores))
	group.GET("/orders/:id", GetAdminOrder(stores))
	group.PUT("/orders/:id/status", UpdateOrderStatus(lifecycle))
	group.POST("/orders/:id/restore", RestoreOrder(lifecycle))
	group.DELETE("/orders/:id", DeleteOrder(orders))

	w := doJSON(t, r, http.MethodGet, "/admin/api/orders?cancelled=true", nil, auth)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var list struct {
		Data []AdminOrder `json:"data"`
	}
	decode(t, w, &list)
	require.Len(t, list.Data, 1)
	assert.Equal(t, "ORD-20260105-002", list.Data[0].OrderNumber)
	require.NotNil(t, list.Data[0].Customer)
	assert.Equal(t, "佐藤建設", list.Data[0].Customer.Company)
	require.NotNil(t, list.Data[0].CancelledByUser)
	assert.Equal(t, "admin@example.com", list.Data[0].CancelledByUser.Email)

	w = doJSON(t, r, http.MethodPut, "/admin/api/orders/"+open.ID.Hex()+"/status", gin.H{"status": "shipped"}, auth)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusShipped, lifecycle.status)
	assert.Equal(t, ordering.Actor{UserID: admin.ID, Admin: true}, lifecycle.actor)

	w = doJSON(t, r, http.MethodPut, "/admin/api/orders/"+open.ID.Hex()+"/status", gin.H{"status": "lost"}, auth)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	lifecycle.err = ordering.ErrNotCancelled
	w = doJSON(t, r, http.MethodPost, "/admin/api/orders/"+open.ID.Hex()+"/restore", nil, auth)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, r, http.MethodDelete, "/admin/api/orders/"+open.ID.Hex(), nil, auth)
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, r, http.MethodGet, "/admin/api/orders/"+open.ID.Hex(), nil, auth)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateUserRole(t *testing.T) {
	admin, auth := adminHeader(t)
	customer := &models.UserProfile{Email: "buyer@example.com", Role: models.RoleUser}
	users := newFakeUsers(customer, admin)

	r := gin.New()
	r.PUT("/admin/api/users/:id/role", middleware.AdminAuth(testSecret), UpdateUserRole(users))

	w := doJSON(t, r, http.MethodPut, "/admin/api/users/"+customer.ID.Hex()+"/role", gin.H{"role": "admin"}, auth)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.RoleAdmin, users.byID[customer.ID].Role)

	w = doJSON(t, r, http.MethodPut, "/admin/api/users/"+customer.ID.Hex()+"/role", gin.H{"role": "owner"}, auth)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPut, "/admin/api/users/"+admin.ID.Hex()+"/role", gin.H{"role": "user"}, auth)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSettingsMaskSecrets(t *testing.T) {
	_, auth := adminHeader(t)
	store := &fakeSettings{current: models.DefaultSiteSettings()}
	store.current.SendGridAPIKey = "SG.abcdefghijklmnop"

	r := gin.New()
	group := r.Group("/admin/api", middleware.AdminAuth(testSecret))
	group.GET("/settings", GetSettings(store))
	group.PUT("/settings", UpdateSettings(store))

	w := doJSON(t, r, http.MethodGet, "/admin/api/settings", nil, auth)
	require.Equal(t, http.StatusOK, w.Code)
	var got models.SiteSettings
	decode(t, w, &got)
	assert.Equal(t, "********mnop", got.SendGridAPIKey)
	assert.NotContains(t, w.Body.String(), "abcdefgh")

	got.SiteName = "資材オーダー"
	got.MaintenanceMode = true
	w = doJSON(t, r, http.MethodPut, "/admin/api/settings", got, auth)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotNil(t, store.saved)
	assert.Equal(t, "SG.abcdefghijklmnop", store.saved.SendGridAPIKey, "echoed mask keeps the stored key")
	assert.Equal(t, "資材オーダー", store.saved.SiteName)
	assert.True(t, store.saved.MaintenanceMode)
	assert.Equal(t, models.SiteSettingsID, store.saved.ID)

	got.SendGridAPIKey = "SG.replacement-key"
	w = doJSON(t, r, http.MethodPut, "/admin/api/settings", got, auth)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "SG.replacement-key", store.saved.SendGridAPIKey)

	got.FromEmail = "not-an-address"
	w = doJSON(t, r, http.MethodPut, "/admin/api/settings", got, auth)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type fakeReports struct {
	days int
}

func (f *fakeReports) Build(_ context.Context, days int) (*reports.Report, error) {
	if !reports.ValidWindow(days) {
		return nil, reports.ErrInvalidWindow
	}
	f.days = days
	return &reports.Report{
		Days:        days,
		GeneratedAt: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC),
		TotalOrders: 3,
	}, nil
}

func TestReportsWindowAndExport(t *testing.T) {
	_, auth := adminHeader(t)
	builder := &fakeReports{}
	r := gin.New()
	group := r.Group("/admin/api", middleware.AdminAuth(testSecret))
	group.GET("/reports", GetReport(builder))
	group.GET("/reports/export", ExportReport(builder))

	w := doJSON(t, r, http.MethodGet, "/admin/api/reports", nil, auth)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 30, builder.days)

	w = doJSON(t, r, http.MethodGet, "/admin/api/reports?days=45", nil, auth)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodGet, "/admin/api/reports/export?days=90", nil, auth)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 90, builder.days)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/csv"))
	assert.Equal(t, `attachment; filename="report-90d-20260105.csv"`, w.Header().Get("Content-Disposition"))
	assert.Contains(t, w.Body.String(), "注文数,3")
}
