package models

import "time"

const EquipmentTable = "equipment"

type Equipment struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	Name              string    `gorm:"size:200;not null" json:"name"`
	Category          string    `gorm:"size:120" json:"category"`
	ConditionStatus   string    `gorm:"column:condition_status;size:60" json:"conditionStatus"`
	Quantity          int       `gorm:"not null;default:0" json:"quantity"`                // 总数
	AvailableQuantity int       `gorm:"not null;default:0;index" json:"availableQuantity"` // 当前可借
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

func (Equipment) TableName() string { return EquipmentTable }
