// controllers/srv.go
package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"equipment_lending/app"
	"equipment_lending/db"
	"equipment_lending/session"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Srv struct {
	Repo     *db.Repo
	Sessions session.Store
	Cfg      app.Config
	Log      *logrus.Logger
}

func GetSrv(a *app.App) *Srv {
	return &Srv{
		Repo:     a.Repo,
		Sessions: a.Sessions(),
		Cfg:      a.Config,
		Log:      a.Log,
	}
}

// --- helpers ---

func statusFor(err error) int {
	switch {
	case errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, db.ErrConflict), errors.Is(err, db.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, db.ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// 统一错误响应 {"error": "..."}，内部错误不外泄细节
func (s *Srv) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.Log.WithError(err).WithField("path", c.Request.URL.Path).Error("internal error")
		c.JSON(status, app.H{"error": "internal server error"})
		return
	}
	c.JSON(status, app.H{"error": err.Error()})
}

func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, app.H{"error": "invalid " + name})
		return 0, false
	}
	return uint(id), true
}
