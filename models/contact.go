package models

import "time"

const ContactTable = "lb_contacts"

// Contact is an owner-scoped directory entry for a lending counterpart. When
// LinkedUserID is set the counterpart is a registered account and borrow
// requests can flow through it.
type Contact struct {
	ID           string    `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerUserID  string    `gorm:"type:uuid;index;not null" json:"ownerUserId"`
	Name         string    `gorm:"size:200;not null" json:"name"`
	Email        *string   `gorm:"size:255" json:"email,omitempty"`
	Phone        *string   `gorm:"size:50" json:"phone,omitempty"`
	LinkedUserID *string   `gorm:"type:uuid" json:"linkedUserId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (Contact) TableName() string { return ContactTable }

func (c *Contact) IsLinked() bool { return c.LinkedUserID != nil && *c.LinkedUserID != "" }
