package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"ordersite/internal/middleware"
	"ordersite/internal/models"
)

func hashed(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func authRouter(users *fakeUsers, tokens *fakeTokens) *gin.Engine {
	stores := AuthStores{Users: users, Tokens: tokens}
	r := gin.New()
	r.POST("/auth/register", Register(stores, testTokens()))
	r.POST("/auth/login", Login(stores, testTokens()))
	r.POST("/auth/refresh", Refresh(stores, testTokens()))
	r.POST("/auth/logout", Logout(tokens))
	r.GET("/auth/me", middleware.UserAuth(testSecret), Me(users))
	r.POST("/admin/login", AdminLogin(stores, testTokens()))
	return r
}

func TestRegisterIssuesTokensAndRejectsDuplicates(t *testing.T) {
	users, tokens := newFakeUsers(), newFakeTokens()
	r := authRouter(users, tokens)

	body := gin.H{"email": " Buyer@Example.com ", "password": "longenough", "fullName": "山田 太郎", "company": "山田工業"}
	w := doJSON(t, r, http.MethodPost, "/auth/register", body, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var out AuthTokens
	decode(t, w, &out)
	assert.NotEmpty(t, out.AccessToken)
	assert.NotEmpty(t, out.RefreshToken)
	assert.Equal(t, "buyer@example.com", out.User.Email)
	assert.Equal(t, models.RoleUser, out.User.Role)
	assert.Len(t, tokens.byHash, 1)

	w = doJSON(t, r, http.MethodPost, "/auth/register", body, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRegisterValidatesBody(t *testing.T) {
	r := authRouter(newFakeUsers(), newFakeTokens())

	w := doJSON(t, r, http.MethodPost, "/auth/register", gin.H{"email": "not-an-email", "password": "short", "fullName": "x"}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var out struct {
		Error   string   `json:"error"`
		Details []string `json:"details"`
	}
	decode(t, w, &out)
	assert.Equal(t, "validation failed", out.Error)
	assert.Contains(t, out.Details, "email must be a valid email")
	assert.Contains(t, out.Details, "password must be at least 8")
}

func TestLoginOutcomes(t *testing.T) {
	active := &models.UserProfile{Email: "a@example.com", PasswordHash: hashed(t, "password1"), Role: models.RoleUser, IsActive: true}
	inactive := &models.UserProfile{Email: "b@example.com", PasswordHash: hashed(t, "password1"), Role: models.RoleUser}
	r := authRouter(newFakeUsers(active, inactive), newFakeTokens())

	cases := []struct {
		name   string
		body   gin.H
		status int
	}{
		{"ok", gin.H{"email": "A@example.com", "password": "password1"}, http.StatusOK},
		{"wrong password", gin.H{"email": "a@example.com", "password": "nope"}, http.StatusUnauthorized},
		{"unknown email", gin.H{"email": "c@example.com", "password": "password1"}, http.StatusUnauthorized},
		{"inactive", gin.H{"email": "b@example.com", "password": "password1"}, http.StatusForbidden},
		{"missing fields", gin.H{"email": "a@example.com"}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, r, http.MethodPost, "/auth/login", tc.body, nil)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
		})
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	user := &models.UserProfile{Email: "a@example.com", PasswordHash: hashed(t, "password1"), Role: models.RoleUser, IsActive: true}
	tokens := newFakeTokens()
	r := authRouter(newFakeUsers(user), tokens)

	w := doJSON(t, r, http.MethodPost, "/auth/login", gin.H{"email": "a@example.com", "password": "password1"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var first AuthTokens
	decode(t, w, &first)

	w = doJSON(t, r, http.MethodPost, "/auth/refresh", gin.H{"refreshToken": first.RefreshToken}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var second AuthTokens
	decode(t, w, &second)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	old := tokens.byHash[hashToken(first.RefreshToken)]
	require.NotNil(t, old)
	assert.True(t, old.Revoked)
	require.NotNil(t, old.ReplacedBy)
	assert.Equal(t, tokens.byHash[hashToken(second.RefreshToken)].ID, *old.ReplacedBy)

	w = doJSON(t, r, http.MethodPost, "/auth/refresh", gin.H{"refreshToken": first.RefreshToken}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, r, http.MethodPost, "/auth/logout", gin.H{"refreshToken": second.RefreshToken}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, r, http.MethodPost, "/auth/logout", gin.H{"refreshToken": second.RefreshToken}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMeUsesTokenSubject(t *testing.T) {
	user := &models.UserProfile{Email: "a@example.com", FullName: "A", Role: models.RoleUser, IsActive: true}
	r := authRouter(newFakeUsers(user), newFakeTokens())

	w := doJSON(t, r, http.MethodGet, "/auth/me", nil, http.Header{"Authorization": {bearer(t, user)}})
	require.Equal(t, http.StatusOK, w.Code)
	var out models.UserProfile
	decode(t, w, &out)
	assert.Equal(t, user.ID, out.ID)
	assert.NotContains(t, w.Body.String(), "passwordHash")

	w = doJSON(t, r, http.MethodGet, "/auth/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminLoginRequiresAdminRole(t *testing.T) {
	admin := &models.UserProfile{Email: "admin@example.com", PasswordHash: hashed(t, "password1"), Role: models.RoleAdmin, IsActive: true}
	user := &models.UserProfile{Email: "user@example.com", PasswordHash: hashed(t, "password1"), Role: models.RoleUser, IsActive: true}
	r := authRouter(newFakeUsers(admin, user), newFakeTokens())

	w := doJSON(t, r, http.MethodPost, "/admin/login", gin.H{"email": "user@example.com", "password": "password1"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, r, http.MethodPost, "/admin/login", gin.H{"email": "admin@example.com", "password": "password1"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var out struct {
		Token     string `json:"token"`
		ExpiresIn int64  `json:"expiresIn"`
	}
	decode(t, w, &out)
	assert.NotEmpty(t, out.Token)
	assert.Equal(t, int64(900), out.ExpiresIn)
}
