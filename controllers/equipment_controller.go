package controllers

import (
	"net/http"

	"equipment_lending/app"
	"equipment_lending/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type EquipmentController struct{ *Srv }

func NewEquipmentController(s *Srv) *EquipmentController { return &EquipmentController{Srv: s} }

type createEquipmentReq struct {
	Name              string `json:"name" binding:"required"`
	Category          string `json:"category"`
	ConditionStatus   string `json:"conditionStatus"`
	Quantity          int    `json:"quantity"`
	AvailableQuantity *int   `json:"availableQuantity"` // 缺省 = quantity
}

// 更新为全量覆盖，两个数量都必须给出
type updateEquipmentReq struct {
	Name              string `json:"name" binding:"required"`
	Category          string `json:"category"`
	ConditionStatus   string `json:"conditionStatus"`
	Quantity          *int   `json:"quantity" binding:"required"`
	AvailableQuantity *int   `json:"availableQuantity" binding:"required"`
}

// POST /api/equipment
func (ec *EquipmentController) CreateEquipment(c *gin.Context) {
	var in createEquipmentReq
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	eq := &models.Equipment{
		Name:              in.Name,
		Category:          in.Category,
		ConditionStatus:   in.ConditionStatus,
		Quantity:          in.Quantity,
		AvailableQuantity: in.Quantity,
	}
	if in.AvailableQuantity != nil {
		eq.AvailableQuantity = *in.AvailableQuantity
	}
	if err := ec.Repo.CreateEquipment(c.Request.Context(), eq); err != nil {
		ec.writeError(c, err)
		return
	}
	ec.Log.WithFields(logrus.Fields{"id": eq.ID, "name": eq.Name}).Info("equipment added")
	c.JSON(http.StatusOK, eq)
}

// GET /api/equipment
func (ec *EquipmentController) ListEquipment(c *gin.Context) {
	items, err := ec.Repo.ListEquipment(c.Request.Context())
	if err != nil {
		ec.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// GET /api/equipment/available, /api/public/equipment
func (ec *EquipmentController) ListAvailable(c *gin.Context) {
	items, err := ec.Repo.ListAvailableEquipment(c.Request.Context())
	if err != nil {
		ec.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// GET /api/equipment/:id
func (ec *EquipmentController) GetEquipment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	eq, err := ec.Repo.FindEquipmentByID(c.Request.Context(), id)
	if err != nil {
		ec.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, eq)
}

// PUT /api/equipment/:id
func (ec *EquipmentController) UpdateEquipment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var in updateEquipmentReq
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	eq, err := ec.Repo.UpdateEquipment(c.Request.Context(), id, models.Equipment{
		Name:              in.Name,
		Category:          in.Category,
		ConditionStatus:   in.ConditionStatus,
		Quantity:          *in.Quantity,
		AvailableQuantity: *in.AvailableQuantity,
	})
	if err != nil {
		ec.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, eq)
}

// DELETE /api/equipment/:id
func (ec *EquipmentController) DeleteEquipment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := ec.Repo.DeleteEquipment(c.Request.Context(), id); err != nil {
		ec.writeError(c, err)
		return
	}
	ec.Log.WithField("id", id).Info("equipment deleted")
	c.Status(http.StatusNoContent)
}
