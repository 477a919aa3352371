package db

import (
	"context"
	"time"

	"lendbook/models"
	"lendbook/storage"

	"gorm.io/gorm"
)

func (r *Repo) InsertLendingRecord(ctx context.Context, rec *models.LendingRecord) error {
	return translate(r.DB.WithContext(ctx).Create(rec).Error)
}

func (r *Repo) GetLendingRecord(ctx context.Context, id string) (*models.LendingRecord, error) {
	var rec models.LendingRecord
	if err := r.DB.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &rec, nil
}

func (r *Repo) OpenRecordForItem(ctx context.Context, itemID string) (*models.LendingRecord, error) {
	var rec models.LendingRecord
	err := r.DB.WithContext(ctx).
		Where("item_id = ? AND status = ?", itemID, models.StatusBorrowed).
		First(&rec).Error
	if err != nil {
		return nil, translate(err)
	}
	return &rec, nil
}

func (r *Repo) CloseLendingRecord(ctx context.Context, id string, returnedAt time.Time) error {
	res := r.DB.WithContext(ctx).Model(&models.LendingRecord{}).
		Where("id = ? AND status = ?", id, models.StatusBorrowed).
		Updates(map[string]any{"status": models.StatusReturned, "returned_at": returnedAt})
	return affected(res)
}

type lendingRow struct {
	models.LendingRecord
	ItemName     *string
	ContactName  *string
	LenderName   *string
	BorrowerName *string
}

func (row *lendingRow) view() models.LendingRecordView {
	return models.LendingRecordView{
		LendingRecord: row.LendingRecord,
		Item:          models.ResolveRef(row.ItemID, row.ItemName, models.UnknownItem),
		Contact:       models.ResolveRef(row.ContactID, row.ContactName, models.UnknownContact),
		Lender:        models.ResolveRef(row.LenderUserID, row.LenderName, models.UnknownUser),
		Borrower:      models.ResolveOptionalRef(row.BorrowerUserID, row.BorrowerName, models.UnknownUser),
	}
}

// ListLendingViews joins records to their item, contact and parties. Joins
// are LEFT so records of deleted rows still come back.
func (r *Repo) ListLendingViews(ctx context.Context, f storage.LendingFilter) ([]models.LendingRecordView, error) {
	if malformed(f.LenderID, f.BorrowerID, f.ContactID, f.ItemID) {
		return []models.LendingRecordView{}, nil
	}
	q := r.lendingQuery(ctx)
	if f.LenderID != "" {
		q = q.Where("l.lender_user_id = ?", f.LenderID)
	}
	if f.BorrowerID != "" {
		q = q.Where("l.borrower_user_id = ?", f.BorrowerID)
	}
	if f.ContactID != "" {
		q = q.Where("l.contact_id = ?", f.ContactID)
	}
	if f.ItemID != "" {
		q = q.Where("l.item_id = ?", f.ItemID)
	}
	if f.Status != "" {
		q = q.Where("l.status = ?", f.Status)
	}

	var rows []lendingRow
	if err := q.Order("l.start_date DESC, l.id ASC").Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.LendingRecordView, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].view())
	}
	return out, nil
}

func (r *Repo) lendingQuery(ctx context.Context) *gorm.DB {
	return r.DB.WithContext(ctx).
		Table(models.LendingTable + " l").
		Select(`
			l.*,
			i.name  AS item_name,
			c.name  AS contact_name,
			lu.name AS lender_name,
			bu.name AS borrower_name
		`).
		Joins("LEFT JOIN " + models.ItemTable + " i ON i.id = l.item_id").
		Joins("LEFT JOIN " + models.ContactTable + " c ON c.id = l.contact_id").
		Joins("LEFT JOIN " + models.UserTable + " lu ON lu.id = l.lender_user_id").
		Joins("LEFT JOIN " + models.UserTable + " bu ON bu.id = l.borrower_user_id")
}
