package db

import (
	"context"
	"errors"

	"equipment_lending/models"

	"gorm.io/gorm"
)

func validQuantities(quantity, available int) bool {
	return quantity >= 0 && available >= 0 && available <= quantity
}

// Equipment
func (r *Repo) CreateEquipment(ctx context.Context, eq *models.Equipment) error {
	if !validQuantities(eq.Quantity, eq.AvailableQuantity) {
		return ErrInvalidQuantity
	}
	return r.DB.WithContext(ctx).Create(eq).Error
}

func (r *Repo) FindEquipmentByID(ctx context.Context, id uint) (*models.Equipment, error) {
	var eq models.Equipment
	if err := r.DB.WithContext(ctx).First(&eq, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEquipmentNotFound
		}
		return nil, err
	}
	return &eq, nil
}

func (r *Repo) ListEquipment(ctx context.Context) ([]models.Equipment, error) {
	items := []models.Equipment{}
	err := r.DB.WithContext(ctx).Order("id ASC").Find(&items).Error
	return items, err
}

func (r *Repo) ListAvailableEquipment(ctx context.Context) ([]models.Equipment, error) {
	items := []models.Equipment{}
	err := r.DB.WithContext(ctx).
		Where("available_quantity > 0").
		Order("id ASC").
		Find(&items).Error
	return items, err
}

// UpdateEquipment 全量覆盖可编辑字段
func (r *Repo) UpdateEquipment(ctx context.Context, id uint, in models.Equipment) (*models.Equipment, error) {
	if !validQuantities(in.Quantity, in.AvailableQuantity) {
		return nil, ErrInvalidQuantity
	}
	var eq models.Equipment
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&eq, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEquipmentNotFound
			}
			return err
		}
		eq.Name = in.Name
		eq.Category = in.Category
		eq.ConditionStatus = in.ConditionStatus
		eq.Quantity = in.Quantity
		eq.AvailableQuantity = in.AvailableQuantity
		return tx.Save(&eq).Error
	})
	if err != nil {
		return nil, err
	}
	return &eq, nil
}

// DeleteEquipment refuses while any borrow request, of any status, references the item.
func (r *Repo) DeleteEquipment(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var eq models.Equipment
		if err := tx.First(&eq, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEquipmentNotFound
			}
			return err
		}
		var n int64
		if err := tx.Model(&models.BorrowRequest{}).
			Where("equipment_id = ?", id).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrEquipmentInUse
		}
		return tx.Delete(&models.Equipment{}, id).Error
	})
}
