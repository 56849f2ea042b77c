package middleware

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	apperrors "busticket/internal/errors"
	"busticket/internal/logger"
	"busticket/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// UserLookup - источник пользователей для аутентификации
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// AuthCache кеширует пары email/хеш пароля для Basic Auth
type AuthCache interface {
	GetUserIDByAuth(ctx context.Context, email, passwordHash string) (int64, error)
	SetUserAuth(ctx context.Context, email, passwordHash string, userID int64) error
}

type AuthConfig struct {
	JWTSecret  string
	CookieName string
}

// Authenticator определяет пользователя по Bearer JWT, cookie с токеном или Basic Auth
type Authenticator struct {
	users      UserLookup
	cache      AuthCache
	secret     []byte
	cookieName string
}

// NewAuthenticator; cache может быть nil.
func NewAuthenticator(users UserLookup, cache AuthCache, cfg AuthConfig) *Authenticator {
	return &Authenticator{
		users:      users,
		cache:      cache,
		secret:     []byte(cfg.JWTSecret),
		cookieName: cfg.CookieName,
	}
}

var errNoCredentials = errors.New("no credentials")

// OptionalAuth пропускает анонимные запросы, но отклоняет неверные учетные данные
func (a *Authenticator) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := a.identify(c)
		switch {
		case errors.Is(err, errNoCredentials):
			c.Next()
		case err != nil:
			a.reject(c, err)
		default:
			setUser(c, userID)
			c.Next()
		}
	}
}

// RequireAuth требует аутентифицированного пользователя
func (a *Authenticator) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := a.identify(c)
		if err != nil {
			a.reject(c, err)
			return
		}
		setUser(c, userID)
		c.Next()
	}
}

func (a *Authenticator) reject(c *gin.Context, err error) {
	logger.WithContext(c.Request.Context()).Warn("Authentication failed", "path", c.Request.URL.Path, "error", err)

	if _, _, basic := c.Request.BasicAuth(); basic {
		c.Header("WWW-Authenticate", "Basic realm=\"Restricted\"")
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":      "Unauthorized",
		"code":       "unauthorized",
		"request_id": logger.RequestIDFromContext(c.Request.Context()),
	})
}

func (a *Authenticator) identify(c *gin.Context) (int64, error) {
	if token := a.bearerToken(c); token != "" {
		return a.fromToken(c.Request.Context(), token)
	}
	if username, password, ok := c.Request.BasicAuth(); ok {
		return a.fromBasic(c.Request.Context(), username, password)
	}
	return 0, errNoCredentials
}

func (a *Authenticator) bearerToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if a.cookieName != "" {
		if cookie, err := c.Cookie(a.cookieName); err == nil {
			return cookie
		}
	}
	return ""
}

func (a *Authenticator) fromToken(ctx context.Context, raw string) (int64, error) {
	if len(a.secret) == 0 {
		return 0, fmt.Errorf("%w: bearer tokens are disabled", apperrors.ErrUnauthorized)
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return 0, fmt.Errorf("%w: invalid access token", apperrors.ErrUnauthorized)
	}

	userID, err := userIDClaim(claims)
	if err != nil {
		return 0, err
	}

	user, err := a.users.GetByID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to load user %d: %w", userID, err)
	}
	if user == nil || !user.IsActive {
		return 0, fmt.Errorf("%w: user %d not found", apperrors.ErrUnauthorized, userID)
	}
	return user.UserID, nil
}

// userIDClaim читает id из claim "id", затем "sub"; число или строка.
func userIDClaim(claims jwt.MapClaims) (int64, error) {
	for _, key := range []string{"id", "sub"} {
		switch v := claims[key].(type) {
		case float64:
			if v > 0 {
				return int64(v), nil
			}
		case string:
			if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
				return id, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: token carries no user id", apperrors.ErrUnauthorized)
}

func (a *Authenticator) fromBasic(ctx context.Context, username, password string) (int64, error) {
	hash := sha256.Sum256([]byte(password))
	passwordHash := fmt.Sprintf("%x", hash)

	// Сначала пытаемся найти пользователя в кеше Valkey
	if a.cache != nil {
		if userID, err := a.cache.GetUserIDByAuth(ctx, username, passwordHash); err == nil {
			return userID, nil
		}
	}

	// Fallback: поиск в базе данных
	user, err := a.users.GetByEmail(ctx, username)
	if err != nil {
		return 0, fmt.Errorf("failed to load user %q: %w", username, err)
	}
	if user == nil || !user.IsActive || !passwordMatches(user.PasswordHash, password, passwordHash) {
		return 0, fmt.Errorf("%w: invalid credentials", apperrors.ErrUnauthorized)
	}

	if a.cache != nil {
		if err := a.cache.SetUserAuth(ctx, username, passwordHash, user.UserID); err != nil {
			logger.WithContext(ctx).Warn("Failed to cache user credentials", "error", err)
		}
	}
	return user.UserID, nil
}

// passwordMatches принимает bcrypt-хеши ("$2a$", "$2b$") и старые sha256 hex.
func passwordMatches(stored, password, sha256Hex string) bool {
	if stored == "" {
		return false
	}
	if strings.HasPrefix(stored, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
	}
	return stored == sha256Hex
}
