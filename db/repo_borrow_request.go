package db

import (
	"context"
	"errors"
	"time"

	"equipment_lending/models"

	"gorm.io/gorm"
)

// 归还/驳回时库存 +1，但不超过总数
var refundExpr = gorm.Expr("CASE WHEN available_quantity < quantity THEN available_quantity + 1 ELSE quantity END")

// CreateBorrowRequest 原子操作 = 校验 → 条件扣减 available_quantity → 新建 PENDING 申请
func (r *Repo) CreateBorrowRequest(ctx context.Context, equipmentID, userID uint) (*models.BorrowRequest, error) {
	var req models.BorrowRequest
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var eq models.Equipment
		if err := tx.First(&eq, "id = ?", equipmentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEquipmentNotFound
			}
			return err
		}
		var u models.User
		if err := tx.Select("id").First(&u, "id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		if eq.AvailableQuantity <= 0 {
			return ErrEquipmentUnavailable
		}

		var n int64
		if err := tx.Model(&models.BorrowRequest{}).
			Where("equipment_id = ? AND user_id = ? AND status IN ?", equipmentID, userID, models.ActiveStatuses).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrDuplicateActiveRequest
		}

		// 防并发超借：只有 available_quantity > 0 时才扣减
		res := tx.Model(&models.Equipment{}).
			Where("id = ? AND available_quantity > 0", equipmentID).
			Update("available_quantity", gorm.Expr("available_quantity - 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrEquipmentUnavailable
		}

		req = models.BorrowRequest{
			EquipmentID: equipmentID,
			UserID:      userID,
			RequestDate: time.Now().UTC(),
			Status:      models.StatusPending,
		}
		if err := tx.Create(&req).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateActiveRequest
			}
			return err
		}
		return withRelations(tx).First(&req, req.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *Repo) ApproveBorrowRequest(ctx context.Context, id uint, remarks string) (*models.BorrowRequest, error) {
	return r.transition(ctx, id, models.StatusApproved, remarks, false, models.StatusPending)
}

func (r *Repo) RejectBorrowRequest(ctx context.Context, id uint, remarks string) (*models.BorrowRequest, error) {
	return r.transition(ctx, id, models.StatusRejected, remarks, true, models.ActiveStatuses...)
}

// MarkReturned keeps the existing remarks.
func (r *Repo) MarkReturned(ctx context.Context, id uint) (*models.BorrowRequest, error) {
	return r.transition(ctx, id, models.StatusReturned, "", true, models.ActiveStatuses...)
}

// transition moves a request to `to` only from one of `from`, in a single
// conditional UPDATE, and optionally gives the held unit back to the equipment.
func (r *Repo) transition(ctx context.Context, id uint, to models.RequestStatus, remarks string, refund bool, from ...models.RequestStatus) (*models.BorrowRequest, error) {
	var req models.BorrowRequest
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&req, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRequestNotFound
			}
			return err
		}

		updates := map[string]any{"status": to, "updated_at": time.Now().UTC()}
		if to != models.StatusReturned {
			updates["admin_remarks"] = remarks
		}
		res := tx.Model(&models.BorrowRequest{}).
			Where("id = ? AND status IN ?", id, from).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidTransition
		}

		if refund {
			if err := tx.Model(&models.Equipment{}).
				Where("id = ?", req.EquipmentID).
				Update("available_quantity", refundExpr).Error; err != nil {
				return err
			}
		}
		return withRelations(tx).First(&req, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *Repo) FindBorrowRequestByID(ctx context.Context, id uint) (*models.BorrowRequest, error) {
	var req models.BorrowRequest
	if err := withRelations(r.DB.WithContext(ctx)).First(&req, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	return &req, nil
}

type BorrowRequestQuery struct {
	UserID      uint
	EquipmentID uint
	Status      models.RequestStatus
}

// ListBorrowRequests 按申请时间倒序
func (r *Repo) ListBorrowRequests(ctx context.Context, q BorrowRequestQuery) ([]models.BorrowRequest, error) {
	tx := withRelations(r.DB.WithContext(ctx)).Order("request_date DESC, id DESC")
	if q.UserID != 0 {
		tx = tx.Where("user_id = ?", q.UserID)
	}
	if q.EquipmentID != 0 {
		tx = tx.Where("equipment_id = ?", q.EquipmentID)
	}
	if q.Status != "" {
		tx = tx.Where("status = ?", q.Status)
	}
	reqs := []models.BorrowRequest{}
	if err := tx.Find(&reqs).Error; err != nil {
		return nil, err
	}
	return reqs, nil
}

func withRelations(tx *gorm.DB) *gorm.DB {
	return tx.Preload("Equipment").Preload("User")
}
