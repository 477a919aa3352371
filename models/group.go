package models

import "time"

type Role string

const (
	RoleOwner  Role = "owner"
	RoleMember Role = "member"
)

type Group struct {
	ID          string    `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string    `gorm:"size:200;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	InviteCode  string    `gorm:"size:64;uniqueIndex;not null" json:"inviteCode"`
	CreatedBy   string    `gorm:"type:uuid;not null" json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (Group) TableName() string { return "lb_groups" }

type GroupMembership struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	GroupID   string    `gorm:"type:uuid;not null" json:"groupId"`
	UserID    string    `gorm:"type:uuid;index;not null" json:"userId"`
	Role      Role      `gorm:"size:20;not null;default:'member'" json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

func (GroupMembership) TableName() string { return "lb_group_memberships" }

type Follow struct {
	ID          string    `gorm:"type:uuid;primaryKey" json:"id"`
	FollowerID  string    `gorm:"type:uuid;not null" json:"followerId"`
	FollowingID string    `gorm:"type:uuid;index;not null" json:"followingId"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (Follow) TableName() string { return "lb_user_follows" }
