package db

import (
	"context"
	"time"

	"lendbook/models"
	"lendbook/storage"
)

func (r *Repo) InsertRequest(ctx context.Context, req *models.BorrowRequest) error {
	return translate(r.DB.WithContext(ctx).Create(req).Error)
}

func (r *Repo) GetRequest(ctx context.Context, id string) (*models.BorrowRequest, error) {
	var req models.BorrowRequest
	if err := r.DB.WithContext(ctx).First(&req, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

func (r *Repo) FindPendingRequest(ctx context.Context, itemID, requesterID string) (*models.BorrowRequest, error) {
	var req models.BorrowRequest
	err := r.DB.WithContext(ctx).
		Where("item_id = ? AND requester_user_id = ? AND status = ?", itemID, requesterID, models.RequestPending).
		First(&req).Error
	if err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

func (r *Repo) TransitionRequest(ctx context.Context, id string, from, to models.RequestStatus, at time.Time) error {
	res := r.DB.WithContext(ctx).Model(&models.BorrowRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to, "responded_at": at, "updated_at": at})
	return affected(res)
}

type requestRow struct {
	models.BorrowRequest
	ItemName         *string
	ItemAvailability *models.Availability
	RequesterName    *string
	OwnerName        *string
}

func (r *Repo) ListRequestViews(ctx context.Context, f storage.RequestFilter) ([]models.BorrowRequestView, error) {
	if malformed(f.ID, f.OwnerID, f.RequesterID) {
		return []models.BorrowRequestView{}, nil
	}
	if len(f.ItemIDs) > 0 {
		if f.ItemIDs = wellFormed(f.ItemIDs); len(f.ItemIDs) == 0 {
			return []models.BorrowRequestView{}, nil
		}
	}
	q := r.DB.WithContext(ctx).
		Table(models.RequestTable + " br").
		Select(`
			br.*,
			i.name         AS item_name,
			i.availability AS item_availability,
			ru.name        AS requester_name,
			ou.name        AS owner_name
		`).
		Joins("LEFT JOIN " + models.ItemTable + " i ON i.id = br.item_id").
		Joins("LEFT JOIN " + models.UserTable + " ru ON ru.id = br.requester_user_id").
		Joins("LEFT JOIN " + models.UserTable + " ou ON ou.id = br.owner_user_id")
	if f.ID != "" {
		q = q.Where("br.id = ?", f.ID)
	}
	if f.OwnerID != "" {
		q = q.Where("br.owner_user_id = ?", f.OwnerID)
	}
	if f.RequesterID != "" {
		q = q.Where("br.requester_user_id = ?", f.RequesterID)
	}
	if f.Status != "" {
		q = q.Where("br.status = ?", f.Status)
	}
	if len(f.ItemIDs) > 0 {
		q = q.Where("br.item_id IN ?", f.ItemIDs)
	}

	var rows []requestRow
	if err := q.Order("br.created_at DESC, br.id ASC").Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.BorrowRequestView, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.BorrowRequestView{
			BorrowRequest: row.BorrowRequest,
			Item:          models.ResolveRef(row.ItemID, row.ItemName, models.UnknownItem),
			Requester:     models.ResolveRef(row.RequesterUserID, row.RequesterName, models.UnknownUser),
			Owner:         models.ResolveRef(row.OwnerUserID, row.OwnerName, models.UnknownUser),
			ItemState:     row.ItemAvailability,
		})
	}
	return out, nil
}
