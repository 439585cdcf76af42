package handlers

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"ordersite/internal/middleware"
	"ordersite/internal/models"
	"ordersite/internal/repository"
)

// TokenConfig holds what the auth handlers need to mint tokens.
type TokenConfig struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type AuthStores struct {
	Users  repository.UserRepository
	Tokens repository.RefreshTokenRepository
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	FullName string `json:"fullName" binding:"required"`
	Company  string `json:"company"`
	Phone    string `json:"phone"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type AuthTokens struct {
	AccessToken  string              `json:"accessToken"`
	RefreshToken string              `json:"refreshToken"`
	ExpiresIn    int64               `json:"expiresIn"`
	User         *models.UserProfile `json:"user"`
}

/*
POST /auth/register
- new accounts are always role=user
- returns a token pair so the client is signed in straight away
*/
func Register(stores AuthStores, cfg TokenConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/register"
		defer handlePanic(c, route)

		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		email := strings.ToLower(strings.TrimSpace(req.Email))
		fullName := strings.TrimSpace(req.FullName)
		if fullName == "" {
			respondWithError(c, http.StatusBadRequest, route, "fullName is required")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		if _, err := stores.Users.GetByEmail(ctx, email); err == nil {
			respondWithError(c, http.StatusConflict, route, "email already registered")
			return
		} else if !errors.Is(err, repository.ErrNotFound) {
			respondStoreError(c, route, err, "user not found")
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			routeLog(route).WithError(err).Error("password hash failed")
			respondWithError(c, http.StatusInternalServerError, route, "password hash failed")
			return
		}

		user := &models.UserProfile{
			Email:        email,
			PasswordHash: string(hash),
			FullName:     fullName,
			Company:      strings.TrimSpace(req.Company),
			Phone:        strings.TrimSpace(req.Phone),
			Role:         models.RoleUser,
			IsActive:     true,
		}
		if err := stores.Users.Create(ctx, user); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				respondWithError(c, http.StatusConflict, route, "email already registered")
				return
			}
			respondStoreError(c, route, err, "user not found")
			return
		}

		tokens, err := issueTokens(ctx, stores.Tokens, user, cfg, c.Request.UserAgent())
		if err != nil {
			routeLog(route).WithError(err).Error("token generation failed")
			respondWithError(c, http.StatusInternalServerError, route, "token generation failed")
			return
		}

		routeLog(route).WithField("userId", user.ID.Hex()).Info("user registered")
		c.JSON(http.StatusCreated, tokens)
	}
}

/*
POST /auth/login
- inactive accounts are refused with 403
*/
func Login(stores AuthStores, cfg TokenConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/login"
		defer handlePanic(c, route)

		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "email and password are required")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		user, ok := authenticate(ctx, c, route, stores.Users, req)
		if !ok {
			return
		}

		tokens, err := issueTokens(ctx, stores.Tokens, user, cfg, c.Request.UserAgent())
		if err != nil {
			routeLog(route).WithError(err).Error("token generation failed")
			respondWithError(c, http.StatusInternalServerError, route, "token generation failed")
			return
		}

		routeLog(route).WithField("userId", user.ID.Hex()).Info("login succeeded")
		c.JSON(http.StatusOK, tokens)
	}
}

// authenticate checks the credentials and writes the error response itself.
func authenticate(ctx context.Context, c *gin.Context, route string, users repository.UserRepository, req LoginRequest) (*models.UserProfile, bool) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || strings.TrimSpace(req.Password) == "" {
		respondWithError(c, http.StatusBadRequest, route, "email and password are required")
		return nil, false
	}

	user, err := users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondWithError(c, http.StatusUnauthorized, route, "invalid credentials")
			return nil, false
		}
		respondStoreError(c, route, err, "user not found")
		return nil, false
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		routeLog(route).WithField("userId", user.ID.Hex()).Warn("invalid credentials")
		respondWithError(c, http.StatusUnauthorized, route, "invalid credentials")
		return nil, false
	}

	if !user.IsActive {
		respondWithError(c, http.StatusForbidden, route, "user is inactive")
		return nil, false
	}
	return user, true
}

/*
POST /auth/refresh
- rotates: the presented token is revoked and points at its replacement
*/
func Refresh(stores AuthStores, cfg TokenConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/refresh"
		defer handlePanic(c, route)

		var req RefreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "refreshToken is required")
			return
		}

		plain := strings.TrimSpace(req.RefreshToken)
		if plain == "" {
			respondWithError(c, http.StatusBadRequest, route, "refreshToken is required")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		token, err := stores.Tokens.FindActive(ctx, hashToken(plain))
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				respondWithError(c, http.StatusUnauthorized, route, "invalid refresh token")
				return
			}
			respondStoreError(c, route, err, "invalid refresh token")
			return
		}

		if token.Expired(time.Now()) {
			if err := stores.Tokens.Revoke(ctx, token.ID, nil); err != nil {
				routeLog(route).WithError(err).Warn("expired token not revoked")
			}
			respondWithError(c, http.StatusUnauthorized, route, "refresh token expired")
			return
		}

		user, err := stores.Users.Get(ctx, token.UserID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				respondWithError(c, http.StatusUnauthorized, route, "user not found")
				return
			}
			respondStoreError(c, route, err, "user not found")
			return
		}
		if !user.IsActive {
			respondWithError(c, http.StatusForbidden, route, "user is inactive")
			return
		}

		tokens, err := issueTokensWithID(ctx, stores.Tokens, user, cfg, c.Request.UserAgent())
		if err != nil {
			routeLog(route).WithError(err).Error("token generation failed")
			respondWithError(c, http.StatusInternalServerError, route, "token generation failed")
			return
		}

		if err := stores.Tokens.Revoke(ctx, token.ID, &tokens.refreshID); err != nil {
			routeLog(route).WithError(err).Error("rotated token not revoked")
		}

		c.JSON(http.StatusOK, tokens.AuthTokens)
	}
}

/*
POST /auth/logout
- revokes the refresh token; the access token simply expires
*/
func Logout(tokens repository.RefreshTokenRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/logout"
		defer handlePanic(c, route)

		var req RefreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "refreshToken is required")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		revoked, err := tokens.RevokeByHash(ctx, hashToken(strings.TrimSpace(req.RefreshToken)))
		if err != nil {
			respondStoreError(c, route, err, "invalid refresh token")
			return
		}
		if !revoked {
			respondWithError(c, http.StatusUnauthorized, route, "invalid refresh token")
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "logged out"})
	}
}

// GET /auth/me
func Me(users repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /auth/me"
		defer handlePanic(c, route)

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		user, err := users.Get(ctx, userID)
		if err != nil {
			respondStoreError(c, route, err, "user not found")
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

type issuedTokens struct {
	AuthTokens
	refreshID primitive.ObjectID
}

func issueTokens(ctx context.Context, store repository.RefreshTokenRepository, user *models.UserProfile, cfg TokenConfig, userAgent string) (*AuthTokens, error) {
	issued, err := issueTokensWithID(ctx, store, user, cfg, userAgent)
	if err != nil {
		return nil, err
	}
	return &issued.AuthTokens, nil
}

func issueTokensWithID(ctx context.Context, store repository.RefreshTokenRepository, user *models.UserProfile, cfg TokenConfig, userAgent string) (*issuedTokens, error) {
	now := time.Now()
	accessToken, err := middleware.NewAccessToken(cfg.Secret, user.ID, user.Email, user.Role, cfg.AccessTTL, now)
	if err != nil {
		return nil, err
	}

	plainRefresh, err := generateRefreshString()
	if err != nil {
		return nil, err
	}

	record := &models.RefreshToken{
		UserID:    user.ID,
		TokenHash: hashToken(plainRefresh),
		UserAgent: userAgent,
		ExpiresAt: now.Add(cfg.RefreshTTL),
	}
	if err := store.Create(ctx, record); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{"component": "auth", "userId": user.ID.Hex()}).Debug("token pair issued")
	return &issuedTokens{
		AuthTokens: AuthTokens{
			AccessToken:  accessToken,
			RefreshToken: plainRefresh,
			ExpiresIn:    int64(cfg.AccessTTL.Seconds()),
			User:         user,
		},
		refreshID: record.ID,
	}, nil
}

func generateRefreshString() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func hashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
