package app

import (
	"equipment_lending/db"
	"equipment_lending/models"
	"equipment_lending/session"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// gin context keys set by AuthRequired
const (
	CtxUserID = "userID"
	CtxUser   = "user"
	CtxToken  = "token"
)

// 无需令牌的路径前缀
var publicPrefixes = []string{
	"/api/users/login",
	"/api/users/register",
	"/api/public",
	"/healthz",
}

func isPublicPath(path string) bool {
	for _, p := range publicPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// TokenFromHeader accepts both a bare token and "Bearer <token>".
func TokenFromHeader(v string) string {
	v = strings.TrimSpace(v)
	if len(v) > 7 && strings.EqualFold(v[:7], "Bearer ") {
		return strings.TrimSpace(v[7:])
	}
	return v
}

func unauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "Unauthorized or invalid token"})
}

// AuthRequired is installed on the whole engine: it lets preflight and public
// routes through and resolves every other request's token to a live user.
func AuthRequired(sessions session.Store, repo *db.Repo, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions || isPublicPath(c.Request.URL.Path) {
			c.Next()
			return
		}
		reqLog := log.WithFields(logrus.Fields{"method": c.Request.Method, "path": c.Request.URL.Path})

		token := TokenFromHeader(c.GetHeader("Authorization"))
		if token == "" {
			reqLog.Warn("unauthorized request: missing token")
			unauthorized(c)
			return
		}
		uid, err := sessions.Get(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, session.ErrNotFound) {
				reqLog.WithError(err).Error("session lookup failed")
			}
			reqLog.Warn("unauthorized request: invalid token")
			unauthorized(c)
			return
		}

		// 确认用户仍存在
		u, err := repo.FindUserByID(c.Request.Context(), uid)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				_ = sessions.Remove(c.Request.Context(), token)
			} else {
				reqLog.WithError(err).Error("user lookup failed")
			}
			unauthorized(c)
			return
		}

		c.Set(CtxUserID, u.ID)
		c.Set(CtxUser, u)
		c.Set(CtxToken, token)
		reqLog.WithField("userID", u.ID).Debug("authorized")
		c.Next()
	}
}

func CurrentUserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(CtxUserID)
	if !ok {
		return 0, false
	}
	uid, ok := v.(uint)
	return uid, ok
}

func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(CtxUser)
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok
}

func IsAdmin(u *models.User, cfg Config) bool {
	if u.IsAdmin() {
		return true
	}
	for _, admin := range cfg.AdminEmails {
		if u.Email == admin {
			return true
		}
	}
	return false
}

// AdminOnly only enforces when ENFORCE_ADMIN is on.
func AdminOnly(cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.EnforceAdmin {
			c.Next()
			return
		}
		u, ok := CurrentUser(c)
		if !ok {
			unauthorized(c)
			return
		}
		if !IsAdmin(u, cfg) {
			c.AbortWithStatusJSON(http.StatusForbidden, H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
