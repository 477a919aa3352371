package db

import (
	"context"
	"errors"
	"strings"

	"lendbook/models"
	"lendbook/storage"

	"gorm.io/gorm"
)

// CreateContact runs in its own (sub)transaction so a unique violation
// rolls back to a savepoint instead of aborting the caller's transaction.
func (r *Repo) CreateContact(ctx context.Context, c *models.Contact) error {
	return translate(r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(c).Error
	}))
}

func (r *Repo) GetContact(ctx context.Context, id string) (*models.Contact, error) {
	var c models.Contact
	if err := r.DB.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (r *Repo) FindContactByLinkedUser(ctx context.Context, ownerID, linkedUserID string) (*models.Contact, error) {
	var c models.Contact
	err := r.DB.WithContext(ctx).
		Where("owner_user_id = ? AND linked_user_id = ?", ownerID, linkedUserID).
		First(&c).Error
	if err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (r *Repo) FindUnlinkedContactByEmail(ctx context.Context, ownerID, email string) (*models.Contact, error) {
	var c models.Contact
	err := r.DB.WithContext(ctx).
		Where("owner_user_id = ? AND linked_user_id IS NULL AND LOWER(email) = ?",
			ownerID, strings.ToLower(strings.TrimSpace(email))).
		Order("created_at ASC").
		First(&c).Error
	if err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

// UpdateContact writes every mutable column, nils included. Like
// CreateContact it is savepoint-protected.
func (r *Repo) UpdateContact(ctx context.Context, c *models.Contact) error {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Contact{}).
			Where("id = ?", c.ID).
			Updates(map[string]any{
				"name":           c.Name,
				"email":          c.Email,
				"phone":          c.Phone,
				"linked_user_id": c.LinkedUserID,
				"updated_at":     gorm.Expr("NOW()"),
			})
		return affected(res)
	})
	if errors.Is(err, storage.ErrStale) {
		return storage.ErrNotFound
	}
	return translate(err)
}

func (r *Repo) DeleteContact(ctx context.Context, id string) error {
	res := r.DB.WithContext(ctx).Delete(&models.Contact{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *Repo) ListContacts(ctx context.Context, ownerID string) ([]models.Contact, error) {
	var cs []models.Contact
	err := r.DB.WithContext(ctx).
		Where("owner_user_id = ?", ownerID).
		Order("name ASC, id ASC").
		Find(&cs).Error
	return cs, err
}

func (r *Repo) SearchContacts(ctx context.Context, ownerID, q string) ([]models.Contact, error) {
	like := likePattern(strings.TrimSpace(q))
	var cs []models.Contact
	err := r.DB.WithContext(ctx).
		Where("owner_user_id = ?", ownerID).
		Where("(LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR phone LIKE ?)", like, like, like).
		Order("name ASC, id ASC").
		Find(&cs).Error
	return cs, err
}
