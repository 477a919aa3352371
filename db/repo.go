package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"lendbook/models"
	"lendbook/storage"

	"gorm.io/gorm"
)

// Repo is the Postgres implementation of storage.Store.
type Repo struct {
	DB   *gorm.DB
	inTx bool
}

var _ storage.Store = (*Repo)(nil)

func NewRepo(db *gorm.DB) *Repo { return &Repo{DB: db} }

// InTx runs fn inside one database transaction. Nested calls join the
// enclosing transaction.
func (r *Repo) InTx(ctx context.Context, fn func(tx storage.Store) error) (err error) {
	if r.inTx {
		return fn(r)
	}
	tx := r.DB.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(&Repo{DB: tx, inTx: true}); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("%w: %v", storage.ErrCommitUnknown, err)
	}
	return nil
}

func (r *Repo) Close() error {
	sqlDB, err := r.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Users

func (r *Repo) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := r.DB.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r *Repo) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := r.DB.WithContext(ctx).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&u).Error
	if err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r *Repo) FindOrCreateUser(ctx context.Context, email, name, newID string) (*models.User, error) {
	u, err := r.FindUserByEmail(ctx, email)
	if !errors.Is(err, storage.ErrNotFound) {
		return u, err
	}
	u = &models.User{ID: newID, Email: strings.ToLower(strings.TrimSpace(email)), Name: name}
	if err := r.DB.WithContext(ctx).Create(u).Error; err != nil {
		err = translate(err)
		if errors.Is(err, storage.ErrDuplicate) {
			// registered concurrently
			return r.FindUserByEmail(ctx, email)
		}
		return nil, err
	}
	return u, nil
}

// SearchUsers matches name or email, skipping excludeID.
func (r *Repo) SearchUsers(ctx context.Context, q, excludeID string, limit int) ([]models.User, error) {
	tx := r.DB.WithContext(ctx).Model(&models.User{})
	if q = strings.TrimSpace(q); q != "" {
		like := likePattern(q)
		tx = tx.Where("(LOWER(name) LIKE ? OR LOWER(email) LIKE ?)", like, like)
	}
	if excludeID != "" {
		tx = tx.Where("id <> ?", excludeID)
	}
	var users []models.User
	if err := tx.Order("name ASC, id ASC").Limit(limit).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *Repo) TouchUserLogin(ctx context.Context, userID, ip, ua string) error {
	// database clock, and increment in place so concurrent logins both count
	return r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"last_login_at": gorm.Expr("NOW()"),
			"last_seen_at":  gorm.Expr("NOW()"),
			"login_count":   gorm.Expr("COALESCE(login_count, 0) + 1"),
			"last_login_ip": ip,
			"last_login_ua": ua,
		}).Error
}

func (r *Repo) TouchUserSeen(ctx context.Context, userID string) error {
	return r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("last_seen_at", gorm.Expr("NOW()")).Error
}

// Credentials

func (r *Repo) AddCredential(ctx context.Context, c *models.Credential) error {
	return translate(r.DB.WithContext(ctx).Create(c).Error)
}

func (r *Repo) LoadUserCredentials(ctx context.Context, userID string) ([]models.Credential, error) {
	var cs []models.Credential
	if err := r.DB.WithContext(ctx).Where("user_id = ?", userID).Find(&cs).Error; err != nil {
		return nil, err
	}
	return cs, nil
}

func (r *Repo) FindUserByCredentialID(ctx context.Context, credID []byte) (*models.User, *models.Credential, error) {
	var c models.Credential
	if err := r.DB.WithContext(ctx).Where("credential_id = ?", credID).First(&c).Error; err != nil {
		return nil, nil, translate(err)
	}
	u, err := r.GetUser(ctx, c.UserID)
	if err != nil {
		return nil, nil, err
	}
	return u, &c, nil
}

func (r *Repo) UpdateCredentialCounter(ctx context.Context, credID []byte, newCount uint32, cloneWarn bool) error {
	return r.DB.WithContext(ctx).Model(&models.Credential{}).
		Where("credential_id = ?", credID).
		Updates(map[string]any{
			"sign_count":    newCount,
			"clone_warning": cloneWarn,
			"last_used_at":  gorm.Expr("NOW()"),
		}).Error
}
