// controllers/borrow_request_controller.go
package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"equipment_lending/app"
	"equipment_lending/db"
	"equipment_lending/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type BorrowRequestController struct{ *Srv }

func NewBorrowRequestController(s *Srv) *BorrowRequestController {
	return &BorrowRequestController{Srv: s}
}

type idRef struct {
	ID uint `json:"id"`
}

// 兼容两种写法：{"equipment":{"id":1},"user":{"id":2}} 或 {"equipmentId":1,"userId":2}
type createBorrowReq struct {
	Equipment   *idRef `json:"equipment"`
	User        *idRef `json:"user"`
	EquipmentID uint   `json:"equipmentId"`
	UserID      uint   `json:"userId"`
}

func (in createBorrowReq) ids() (equipmentID, userID uint) {
	equipmentID, userID = in.EquipmentID, in.UserID
	if in.Equipment != nil && in.Equipment.ID != 0 {
		equipmentID = in.Equipment.ID
	}
	if in.User != nil && in.User.ID != 0 {
		userID = in.User.ID
	}
	return equipmentID, userID
}

type remarksReq struct {
	Remarks string `json:"remarks"`
}

// POST /api/requests
func (bc *BorrowRequestController) CreateRequest(c *gin.Context) {
	var in createBorrowReq
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": "invalid request body"})
		return
	}
	equipmentID, userID := in.ids()
	if equipmentID == 0 {
		c.JSON(http.StatusBadRequest, app.H{"error": "equipment id is required"})
		return
	}
	if userID == 0 {
		userID, _ = app.CurrentUserID(c) // 未指定则记在当前登录用户名下
	}

	req, err := bc.Repo.CreateBorrowRequest(c.Request.Context(), equipmentID, userID)
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			bc.writeError(c, err)
			return
		}
		bc.Log.WithError(err).WithFields(logrus.Fields{"equipmentID": equipmentID, "userID": userID}).
			Warn("failed to create borrow request")
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	bc.Log.WithFields(logrus.Fields{"requestID": req.ID, "equipmentID": equipmentID, "userID": userID}).
		Info("borrow request created")
	c.JSON(http.StatusOK, req)
}

// GET /api/requests?status=&userId=&equipmentId=
func (bc *BorrowRequestController) ListRequests(c *gin.Context) {
	var q db.BorrowRequestQuery
	if s := strings.ToUpper(strings.TrimSpace(c.Query("status"))); s != "" {
		q.Status = models.RequestStatus(s)
		if !q.Status.Valid() {
			c.JSON(http.StatusBadRequest, app.H{"error": "invalid status"})
			return
		}
	}
	if v := c.Query("userId"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, app.H{"error": "invalid userId"})
			return
		}
		q.UserID = uint(id)
	}
	if v := c.Query("equipmentId"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, app.H{"error": "invalid equipmentId"})
			return
		}
		q.EquipmentID = uint(id)
	}

	reqs, err := bc.Repo.ListBorrowRequests(c.Request.Context(), q)
	if err != nil {
		bc.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, reqs)
}

// GET /api/requests/user/:userId
func (bc *BorrowRequestController) ListUserRequests(c *gin.Context) {
	userID, ok := parseID(c, "userId")
	if !ok {
		return
	}
	reqs, err := bc.Repo.ListBorrowRequests(c.Request.Context(), db.BorrowRequestQuery{UserID: userID})
	if err != nil {
		bc.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, reqs)
}

// PUT /api/requests/:id/approve
func (bc *BorrowRequestController) Approve(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var in remarksReq
	_ = c.ShouldBindJSON(&in) // body 可为空

	bc.Log.WithFields(logrus.Fields{"requestID": id, "remarks": in.Remarks}).Info("approving request")
	req, err := bc.Repo.ApproveBorrowRequest(c.Request.Context(), id, in.Remarks)
	if err != nil {
		bc.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// PUT /api/requests/:id/reject
func (bc *BorrowRequestController) Reject(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var in remarksReq
	_ = c.ShouldBindJSON(&in)

	bc.Log.WithFields(logrus.Fields{"requestID": id, "remarks": in.Remarks}).Info("rejecting request")
	req, err := bc.Repo.RejectBorrowRequest(c.Request.Context(), id, in.Remarks)
	if err != nil {
		bc.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// PUT /api/requests/:id/return
// 开启权限校验时只有申请人本人或管理员可以归还
func (bc *BorrowRequestController) Return(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if bc.Cfg.EnforceAdmin {
		existing, err := bc.Repo.FindBorrowRequestByID(c.Request.Context(), id)
		if err != nil {
			bc.writeError(c, err)
			return
		}
		u, _ := app.CurrentUser(c)
		if u == nil || (u.ID != existing.UserID && !app.IsAdmin(u, bc.Cfg)) {
			c.JSON(http.StatusForbidden, app.H{"error": "forbidden"})
			return
		}
	}

	bc.Log.WithField("requestID", id).Info("marking request as returned")
	req, err := bc.Repo.MarkReturned(c.Request.Context(), id)
	if err != nil {
		bc.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}
