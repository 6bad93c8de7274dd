package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"equipment_lending/app"
	"equipment_lending/db"
	"equipment_lending/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type UserController struct{ *Srv }

func NewUserController(s *Srv) *UserController { return &UserController{Srv: s} }

type registerReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// POST /api/users/register
func (uc *UserController) Register(c *gin.Context) {
	var in registerReq
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": "invalid request body"})
		return
	}
	u := &models.User{Name: strings.TrimSpace(in.Name), Email: in.Email, Password: in.Password, Role: in.Role}
	if uc.Cfg.EnforceAdmin {
		// 开启权限校验后，自助注册只能是学生；管理员来自 bootstrap 或 ADMIN_EMAILS
		u.Role = models.RoleStudent
	}
	if err := uc.Repo.CreateUser(c.Request.Context(), u); err != nil {
		uc.Log.WithError(err).Warn("user registration failed")
		uc.writeError(c, err)
		return
	}
	uc.Log.WithFields(logrus.Fields{"id": u.ID, "role": u.Role}).Info("registered new user")
	c.JSON(http.StatusCreated, u)
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// POST /api/users/login
func (uc *UserController) Login(c *gin.Context) {
	var in loginReq
	_ = c.ShouldBindJSON(&in)
	if strings.TrimSpace(in.Email) == "" || in.Password == "" {
		c.JSON(http.StatusBadRequest, app.H{"error": db.ErrMissingFields.Error()})
		return
	}

	u, err := uc.Repo.Authenticate(c.Request.Context(), in.Email, in.Password)
	if err != nil {
		if statusFor(err) == http.StatusUnauthorized {
			uc.Log.WithField("email", db.NormalizeEmail(in.Email)).Warn("login failed")
		}
		uc.writeError(c, err)
		return
	}

	token := uuid.NewString()
	if err := uc.Sessions.Put(c.Request.Context(), token, u.ID); err != nil {
		uc.writeError(c, err)
		return
	}
	if err := uc.Repo.TouchUserLogin(c.Request.Context(), u.ID, c.ClientIP(), c.Request.UserAgent()); err != nil {
		// 不阻塞登录
		uc.Log.WithError(err).Warn("record login failed")
	}
	uc.Log.WithField("userID", u.ID).Info("login successful")

	c.JSON(http.StatusOK, app.H{
		"message": "Login successful",
		"token":   token,
		"user":    u,
	})
}

// POST /api/users/logout[?all=true]
func (uc *UserController) Logout(c *gin.Context) {
	token := c.GetString(app.CtxToken)
	uid, ok := app.CurrentUserID(c)
	if token == "" || !ok {
		c.JSON(http.StatusUnauthorized, app.H{"error": "Invalid or missing token"})
		return
	}

	var err error
	if all, _ := strconv.ParseBool(c.Query("all")); all {
		err = uc.Sessions.RemoveAllForUser(c.Request.Context(), uid)
	} else {
		err = uc.Sessions.Remove(c.Request.Context(), token)
	}
	if err != nil {
		uc.writeError(c, err)
		return
	}
	uc.Log.WithField("userID", uid).Info("user logged out")
	c.JSON(http.StatusOK, app.H{"message": "Logout successful"})
}

// GET /api/users?q=alice&page=1&size=20 (不带 size 时返回全部)
func (uc *UserController) ListUsers(c *gin.Context) {
	q := c.Query("q")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.Query("size"))

	res, err := uc.Repo.ListUsers(c.Request.Context(), q, page, size)
	if err != nil {
		uc.writeError(c, err)
		return
	}
	c.Header("X-Total-Count", strconv.FormatInt(res.Total, 10))
	c.JSON(http.StatusOK, res.Users)
}

// GET /api/users/:id
func (uc *UserController) GetUser(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	user, err := uc.Repo.FindUserByID(c.Request.Context(), id)
	if err != nil {
		uc.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// GET /api/users/me
func (uc *UserController) Me(c *gin.Context) {
	u, ok := app.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, app.H{"error": "Unauthorized or invalid token"})
		return
	}
	c.JSON(http.StatusOK, u)
}
