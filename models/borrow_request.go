// models/borrow_request.go
package models

import "time"

const BorrowRequestTable = "borrow_requests"

type RequestStatus string

const (
	StatusPending  RequestStatus = "PENDING"
	StatusApproved RequestStatus = "APPROVED"
	StatusRejected RequestStatus = "REJECTED"
	StatusReturned RequestStatus = "RETURNED"
)

// ActiveStatuses 占用库存的状态
var ActiveStatuses = []RequestStatus{StatusPending, StatusApproved}

func (s RequestStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusReturned:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed.
func (s RequestStatus) Terminal() bool {
	return s == StatusRejected || s == StatusReturned
}

type BorrowRequest struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	EquipmentID uint       `gorm:"index;not null" json:"equipmentId"`
	Equipment   *Equipment `gorm:"constraint:OnDelete:RESTRICT" json:"equipment,omitempty"`
	UserID      uint       `gorm:"index;not null" json:"userId"`
	User        *User      `gorm:"constraint:OnDelete:RESTRICT" json:"user,omitempty"`

	RequestDate  time.Time     `gorm:"index;not null" json:"requestDate"`
	Status       RequestStatus `gorm:"size:20;not null;default:'PENDING';index" json:"status"`
	AdminRemarks string        `gorm:"size:500" json:"adminRemarks"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

func (BorrowRequest) TableName() string { return BorrowRequestTable }
