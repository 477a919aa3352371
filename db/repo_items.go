package db

import (
	"context"

	"lendbook/models"
	"lendbook/storage"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (r *Repo) CreateItem(ctx context.Context, it *models.Item) error {
	return translate(r.DB.WithContext(ctx).Create(it).Error)
}

func (r *Repo) GetItem(ctx context.Context, id string) (*models.Item, error) {
	var it models.Item
	if err := r.DB.WithContext(ctx).First(&it, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &it, nil
}

func (r *Repo) GetItemForUpdate(ctx context.Context, id string) (*models.Item, error) {
	var it models.Item
	err := r.DB.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&it, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &it, nil
}

// UpdateItemFields patches the given columns. Availability is not writable
// here; it only moves through SetItemAvailability.
func (r *Repo) UpdateItemFields(ctx context.Context, id string, fields map[string]any) error {
	patch := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		if k == "availability" || k == "id" || k == "owner_user_id" {
			continue
		}
		patch[k] = v
	}
	patch["updated_at"] = gorm.Expr("NOW()")
	res := r.DB.WithContext(ctx).Model(&models.Item{}).Where("id = ?", id).Updates(patch)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *Repo) DeleteItem(ctx context.Context, id string) error {
	res := r.DB.WithContext(ctx).Delete(&models.Item{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *Repo) ListItemsByOwner(ctx context.Context, ownerID string) ([]models.Item, error) {
	var items []models.Item
	err := r.DB.WithContext(ctx).
		Where("owner_user_id = ?", ownerID).
		Order("created_at DESC, id ASC").
		Find(&items).Error
	return items, err
}

func (r *Repo) ListItemsByGroup(ctx context.Context, groupID string) ([]models.Item, error) {
	var items []models.Item
	err := r.DB.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("created_at DESC, id ASC").
		Find(&items).Error
	return items, err
}

// ListPublicItems returns public items of the given owners, newest first.
func (r *Repo) ListPublicItems(ctx context.Context, ownerIDs []string) ([]models.Item, error) {
	if len(ownerIDs) == 0 {
		return nil, nil
	}
	var items []models.Item
	err := r.DB.WithContext(ctx).
		Where("owner_user_id IN ? AND visibility = ?", ownerIDs, models.VisibilityPublic).
		Order("created_at DESC, id ASC").
		Find(&items).Error
	return items, err
}

func (r *Repo) SetItemAvailability(ctx context.Context, id string, from, to models.Availability) error {
	res := r.DB.WithContext(ctx).Model(&models.Item{}).
		Where("id = ? AND availability = ?", id, from).
		Updates(map[string]any{"availability": to, "updated_at": gorm.Expr("NOW()")})
	return affected(res)
}
