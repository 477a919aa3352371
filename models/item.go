package models

import "time"

const (
	ItemTable    = "lb_items"
	LendingTable = "lb_lending_records"
)

type Availability string

const (
	Available   Availability = "available"
	Unavailable Availability = "unavailable"
)

type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
)

func (v Visibility) Valid() bool { return v == VisibilityPrivate || v == VisibilityPublic }

type Item struct {
	ID           string       `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerUserID  string       `gorm:"type:uuid;index;not null" json:"ownerUserId"`
	GroupID      *string      `gorm:"type:uuid;index" json:"groupId,omitempty"`
	Name         string       `gorm:"size:200;not null" json:"name"`
	Description  string       `gorm:"type:text" json:"description"`
	Category     string       `gorm:"size:100" json:"category"`
	Visibility   Visibility   `gorm:"size:20;not null;default:'private'" json:"visibility"`
	Availability Availability `gorm:"size:20;not null;default:'available'" json:"availability"` // redundant with the open lending record
	PriceUSD     *float64     `gorm:"column:price_usd" json:"priceUsd,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

func (Item) TableName() string { return ItemTable }

func (it *Item) IsAvailable() bool { return it.Availability == Available }

type LendingStatus string

const (
	StatusBorrowed LendingStatus = "borrowed"
	StatusReturned LendingStatus = "returned"
)

// LendingRecord is one loan of one item to one contact. It is closed exactly
// once and never deleted.
type LendingRecord struct {
	ID             string        `gorm:"type:uuid;primaryKey" json:"id"`
	ItemID         string        `gorm:"type:uuid;index;not null" json:"itemId"`
	ContactID      string        `gorm:"type:uuid;index;not null" json:"contactId"`
	LenderUserID   string        `gorm:"type:uuid;index;not null" json:"lenderUserId"`
	BorrowerUserID *string       `gorm:"type:uuid;index" json:"borrowerUserId,omitempty"`
	RequestID      *string       `gorm:"type:uuid" json:"requestId,omitempty"`
	StartDate      time.Time     `gorm:"not null" json:"startDate"`
	DueDate        *time.Time    `json:"dueDate,omitempty"`
	ReturnedAt     *time.Time    `json:"returnedAt,omitempty"`
	Status         LendingStatus `gorm:"size:20;not null;default:'borrowed'" json:"status"`
	CreatedAt      time.Time     `json:"createdAt"`
}

func (LendingRecord) TableName() string { return LendingTable }

func (r *LendingRecord) IsOpen() bool { return r.Status == StatusBorrowed }

// Overdue reports whether an open record is past its due date at now.
func (r *LendingRecord) Overdue(now time.Time) bool {
	return r.IsOpen() && r.DueDate != nil && r.DueDate.Before(now)
}
