package middleware

import (
	"strings"

	"github.com/suteetoe/scouting-service/internal/access"
	"github.com/suteetoe/scouting-service/internal/model"
	"github.com/suteetoe/scouting-service/internal/response"
	"github.com/suteetoe/scouting-service/pkg/database"
	"github.com/suteetoe/scouting-service/pkg/jwtutil"
	"github.com/suteetoe/scouting-service/pkg/logger"
	"github.com/suteetoe/scouting-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Context keys set by AuthMiddleware.
const (
	UserIDKey = "user_id"
	EmailKey  = "email"
	UserKey   = "user"
)

// SessionCookie carries the access token for browser clients.
const SessionCookie = "sb-access-token"

// AuthMiddleware validates the session token from the Authorization header
// or the session cookie and makes sure the user row exists.
func AuthMiddleware(j *jwtutil.JWTUtil) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromContext(c)

			tokenString, source := sessionToken(c)
			if tokenString == "" {
				log.Debug("Missing session token")
				prometheus.RecordAuthError("missing_token")
				return response.Error(c, access.ErrNotAuthenticated)
			}

			claims, err := j.ValidateToken(tokenString)
			if err != nil {
				log.Warn("Invalid session token", zap.String("source", source), zap.Error(err))
				prometheus.RecordAuthError("invalid_token")
				return response.Error(c, access.ErrNotAuthenticated)
			}

			user := model.User{
				ID:        claims.UserID(),
				Email:     strings.ToLower(claims.Email),
				FirstName: claims.UserMetadata.FirstName,
				LastName:  claims.UserMetadata.LastName,
			}
			if claims.UserMetadata.AvatarURL != "" {
				user.AvatarURL = &claims.UserMetadata.AvatarURL
			}
			// first authentication creates the user
			if err := database.GetDB().WithContext(c.Request().Context()).
				Where(model.User{ID: user.ID}).
				Attrs(user).
				FirstOrCreate(&user).Error; err != nil {
				log.Error("Failed to upsert user", zap.String("user_id", user.ID), zap.Error(err))
				return response.Internal(c)
			}

			c.Set(UserIDKey, user.ID)
			c.Set(EmailKey, user.Email)
			c.Set(UserKey, &user)
			c.Set(logger.EchoKey, log.With(zap.String("user_id", user.ID)))

			return next(c)
		}
	}
}

// UserIDFrom returns the authenticated user id, or "".
func UserIDFrom(c echo.Context) string {
	id, _ := c.Get(UserIDKey).(string)
	return id
}

// UserFrom returns the authenticated user, or nil.
func UserFrom(c echo.Context) *model.User {
	u, _ := c.Get(UserKey).(*model.User)
	return u
}

// IsBearer reports whether the request authenticates with an Authorization
// header rather than the session cookie.
func IsBearer(c echo.Context) bool {
	_, source := sessionToken(c)
	return source == "header"
}

func sessionToken(c echo.Context) (token, source string) {
	if authHeader := c.Request().Header.Get(echo.HeaderAuthorization); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1]), "header"
		}
		return "", "header"
	}
	if cookie, err := c.Cookie(SessionCookie); err == nil && cookie.Value != "" {
		return cookie.Value, "cookie"
	}
	return "", ""
}
