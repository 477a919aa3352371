package models

import (
	"time"

	"gorm.io/datatypes"
)

const NotificationTable = "lb_notifications"

type NotificationType string

const (
	NotifyBorrowRequest   NotificationType = "borrow_request"
	NotifyRequestAccepted NotificationType = "request_accepted"
	NotifyRequestRejected NotificationType = "request_rejected"
	NotifyItemLent        NotificationType = "item_lent"
	NotifyItemReturned    NotificationType = "item_returned"
)

type NotificationStatus string

const (
	NotificationUnread NotificationStatus = "unread"
	NotificationRead   NotificationStatus = "read"
)

type Notification struct {
	ID               string             `gorm:"type:uuid;primaryKey" json:"id"`
	RecipientUserID  string             `gorm:"type:uuid;index;not null" json:"recipientUserId"`
	SenderUserID     *string            `gorm:"type:uuid" json:"senderUserId,omitempty"`
	Type             NotificationType   `gorm:"size:50;not null" json:"type"`
	Title            string             `gorm:"size:255;not null" json:"title"`
	Message          *string            `gorm:"type:text" json:"message,omitempty"`
	Status           NotificationStatus `gorm:"size:20;not null;default:'unread'" json:"status"`
	RelatedItemID    *string            `gorm:"type:uuid" json:"relatedItemId,omitempty"`
	RelatedRequestID *string            `gorm:"type:uuid" json:"relatedRequestId,omitempty"`
	RelatedRecordID  *string            `gorm:"type:uuid" json:"relatedRecordId,omitempty"`
	ActionURL        *string            `gorm:"size:255" json:"actionUrl,omitempty"`
	Metadata         datatypes.JSONMap  `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt        time.Time          `json:"createdAt"`
}

func (Notification) TableName() string { return NotificationTable }
