package db

import (
	"context"
	"time"

	"lendbook/models"
)

func (r *Repo) CreateFollow(ctx context.Context, f *models.Follow) error {
	return translate(r.DB.WithContext(ctx).Create(f).Error)
}

func (r *Repo) DeleteFollow(ctx context.Context, followerID, followingID string) (int64, error) {
	res := r.DB.WithContext(ctx).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Delete(&models.Follow{})
	return res.RowsAffected, res.Error
}

func (r *Repo) IsFollowing(ctx context.Context, followerID, followingID string) (bool, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Count(&n).Error
	return n > 0, err
}

type followRow struct {
	ID        string
	UserID    string
	UserName  *string
	UserEmail *string
	CreatedAt time.Time
}

func (r *Repo) listFollows(ctx context.Context, matchCol, otherCol, userID string) ([]models.FollowView, error) {
	var rows []followRow
	err := r.DB.WithContext(ctx).
		Table(models.Follow{}.TableName()+" f").
		Select("f.id, f."+otherCol+" AS user_id, u.name AS user_name, u.email AS user_email, f.created_at").
		Joins("LEFT JOIN "+models.UserTable+" u ON u.id = f."+otherCol).
		Where("f."+matchCol+" = ?", userID).
		Order("f.created_at DESC, f.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]models.FollowView, 0, len(rows))
	for _, row := range rows {
		v := models.FollowView{
			ID:        row.ID,
			User:      models.ResolveRef(row.UserID, row.UserName, models.UnknownUser),
			CreatedAt: row.CreatedAt,
		}
		if row.UserEmail != nil {
			v.Email = *row.UserEmail
		}
		out = append(out, v)
	}
	return out, nil
}

func (r *Repo) ListFollowers(ctx context.Context, userID string) ([]models.FollowView, error) {
	return r.listFollows(ctx, "following_id", "follower_id", userID)
}

func (r *Repo) ListFollowing(ctx context.Context, userID string) ([]models.FollowView, error) {
	return r.listFollows(ctx, "follower_id", "following_id", userID)
}

func (r *Repo) CountFollows(ctx context.Context, userID string) (models.FollowCounts, error) {
	var c models.FollowCounts
	err := r.DB.WithContext(ctx).
		Raw(`SELECT
			(SELECT COUNT(*) FROM `+models.Follow{}.TableName()+` WHERE following_id = ?) AS followers,
			(SELECT COUNT(*) FROM `+models.Follow{}.TableName()+` WHERE follower_id = ?) AS following`,
			userID, userID).
		Scan(&c).Error
	return c, err
}
