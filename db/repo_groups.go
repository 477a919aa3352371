package db

import (
	"context"

	"lendbook/models"
)

// Groups replace the old invite-token flow: the invite code lives on the
// group row and joining is idempotent.

func (r *Repo) CreateGroup(ctx context.Context, g *models.Group) error {
	return translate(r.DB.WithContext(ctx).Create(g).Error)
}

func (r *Repo) GetGroup(ctx context.Context, id string) (*models.Group, error) {
	var g models.Group
	if err := r.DB.WithContext(ctx).First(&g, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &g, nil
}

func (r *Repo) GetGroupByInviteCode(ctx context.Context, code string) (*models.Group, error) {
	var g models.Group
	if err := r.DB.WithContext(ctx).Where("invite_code = ?", code).First(&g).Error; err != nil {
		return nil, translate(err)
	}
	return &g, nil
}

func (r *Repo) AddMembership(ctx context.Context, m *models.GroupMembership) error {
	return translate(r.DB.WithContext(ctx).Create(m).Error)
}

func (r *Repo) GetMembership(ctx context.Context, groupID, userID string) (*models.GroupMembership, error) {
	var m models.GroupMembership
	err := r.DB.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		First(&m).Error
	if err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (r *Repo) CountMembers(ctx context.Context, groupID string) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.GroupMembership{}).
		Where("group_id = ?", groupID).
		Count(&n).Error
	return n, err
}

func (r *Repo) ListGroupsForUser(ctx context.Context, userID string) ([]models.MemberGroup, error) {
	var out []models.MemberGroup
	err := r.DB.WithContext(ctx).
		Table(models.Group{}.TableName()+" g").
		Select("g.*, m.role AS role").
		Joins("JOIN "+models.GroupMembership{}.TableName()+" m ON m.group_id = g.id").
		Where("m.user_id = ?", userID).
		Order("g.created_at DESC, g.id ASC").
		Scan(&out).Error
	return out, err
}
