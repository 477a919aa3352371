package models

import "time"

const RequestTable = "lb_borrow_requests"

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestRejected RequestStatus = "rejected"
)

// Terminal reports whether no further transition is allowed.
func (s RequestStatus) Terminal() bool { return s == RequestAccepted || s == RequestRejected }

type BorrowRequest struct {
	ID               string        `gorm:"type:uuid;primaryKey" json:"id"`
	ItemID           string        `gorm:"type:uuid;index;not null" json:"itemId"`
	RequesterUserID  string        `gorm:"type:uuid;index;not null" json:"requesterUserId"`
	OwnerUserID      string        `gorm:"type:uuid;index;not null" json:"ownerUserId"`
	RequestedDueDate *time.Time    `json:"requestedDueDate,omitempty"`
	Message          *string       `gorm:"type:text" json:"message,omitempty"`
	Status           RequestStatus `gorm:"size:20;not null;default:'pending'" json:"status"`
	RespondedAt      *time.Time    `json:"respondedAt,omitempty"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

func (BorrowRequest) TableName() string { return RequestTable }
