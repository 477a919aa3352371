// Package ledger is the lending state machine. Per item it cycles
// available -> borrowed -> available, and at most one record per item is
// ever open.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"lendbook/apperr"
	"lendbook/models"
	"lendbook/service/catalog"
	"lendbook/service/notify"
	"lendbook/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Service struct {
	store  storage.Store
	notify *notify.Dispatcher
	log    *zap.Logger
	now    func() time.Time
}

func New(store storage.Store, n *notify.Dispatcher, log *zap.Logger) *Service {
	return &Service{store: store, notify: n, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the clock used for start and return dates.
func (s *Service) WithClock(now func() time.Time) *Service {
	cp := *s
	cp.now = now
	return &cp
}

type LendInput struct {
	ItemIDs   []string   `json:"itemIds"`
	ContactID string     `json:"contactId"`
	DueDate   *time.Time `json:"dueDate"`
}

// Loan is a single lend on an already resolved contact, as done when a
// borrow request is accepted.
type Loan struct {
	ItemID    string
	Contact   *models.Contact
	DueDate   *time.Time
	RequestID string
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (s *Service) checkDueDate(due *time.Time) error {
	if due == nil {
		return nil
	}
	today := s.now().Truncate(24 * time.Hour)
	if due.Before(today) {
		return apperr.Validation("due date must not be in the past")
	}
	return nil
}

// Lend lends every listed item to one contact, or none of them. All items are
// checked before anything is written and every failing item is reported.
func (s *Service) Lend(ctx context.Context, lender string, in LendInput) ([]models.LendingRecord, error) {
	ids := dedupe(in.ItemIDs)
	if len(ids) == 0 {
		return nil, apperr.Validation("select at least one item to lend")
	}
	if err := s.checkDueDate(in.DueDate); err != nil {
		return nil, err
	}

	contact, err := s.store.GetContact(ctx, in.ContactID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("contact not found")
	}
	if err != nil {
		return nil, err
	}
	if contact.OwnerUserID != lender {
		return nil, apperr.Authorization("contact belongs to another user")
	}

	names := make(map[string]string, len(ids))
	var problems []string
	for _, id := range ids {
		it, err := s.store.GetItem(ctx, id)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			problems = append(problems, fmt.Sprintf("item %s not found", id))
			continue
		case err != nil:
			return nil, err
		}
		names[id] = it.Name
		switch {
		case it.OwnerUserID != lender:
			problems = append(problems, fmt.Sprintf("%q is not yours", it.Name))
		case !it.IsAvailable():
			problems = append(problems, fmt.Sprintf("%q is already lent out", it.Name))
		}
	}
	if len(problems) > 0 {
		return nil, apperr.Validation("cannot lend: %s", strings.Join(problems, "; "))
	}

	var records []models.LendingRecord
	err = s.store.InTx(ctx, func(tx storage.Store) error {
		var err error
		records, err = s.writeLoans(ctx, tx, lender, contact, ids, in.DueDate, "")
		return err
	})
	if errors.Is(err, storage.ErrCommitUnknown) {
		s.log.Error("lend commit outcome unknown, reconcile items",
			zap.String("lender", lender),
			zap.String("contact_id", contact.ID),
			zap.Strings("item_ids", ids),
			zap.Error(err))
		return nil, apperr.PartialFailure(err, "lend of %d item(s)", len(ids))
	}
	if err != nil {
		return nil, err
	}

	for i := range records {
		if records[i].BorrowerUserID != nil {
			s.notify.Send(ctx, notify.ItemLent(&records[i], names[records[i].ItemID]))
		}
	}
	return records, nil
}

// LendOne lends a single item on the caller's transaction. It does not
// notify; the caller owns the outcome.
func (s *Service) LendOne(ctx context.Context, tx storage.Store, lender string, loan Loan) (*models.LendingRecord, error) {
	recs, err := s.writeLoans(ctx, tx, lender, loan.Contact, []string{loan.ItemID}, loan.DueDate, loan.RequestID)
	if err != nil {
		return nil, err
	}
	return &recs[0], nil
}

// writeLoans locks and rechecks the items, inserts one open record per item,
// then marks every item unavailable. Anything that changed since the caller's
// checks is a conflict.
func (s *Service) writeLoans(ctx context.Context, tx storage.Store, lender string, contact *models.Contact, itemIDs []string, due *time.Time, requestID string) ([]models.LendingRecord, error) {
	// lock in id order so overlapping batches cannot deadlock
	locking := append([]string(nil), itemIDs...)
	sort.Strings(locking)
	for _, id := range locking {
		it, err := tx.GetItemForUpdate(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.Conflict("item %s no longer exists", id)
		}
		if err != nil {
			return nil, err
		}
		if it.OwnerUserID != lender {
			return nil, apperr.Authorization("item belongs to another user")
		}
		if !it.IsAvailable() {
			return nil, apperr.Conflict("%q is no longer available", it.Name)
		}
	}

	now := s.now()
	records := make([]models.LendingRecord, 0, len(itemIDs))
	for _, id := range itemIDs {
		rec := models.LendingRecord{
			ID:             uuid.NewString(),
			ItemID:         id,
			ContactID:      contact.ID,
			LenderUserID:   lender,
			BorrowerUserID: contact.LinkedUserID,
			StartDate:      now,
			DueDate:        due,
			Status:         models.StatusBorrowed,
			CreatedAt:      now,
		}
		if requestID != "" {
			rec.RequestID = &requestID
		}
		err := tx.InsertLendingRecord(ctx, &rec)
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, apperr.Conflict("item %s is already lent out", id)
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	for _, id := range itemIDs {
		if err := catalog.FlipAvailability(ctx, tx, id, models.Available, models.Unavailable); err != nil {
			return nil, err
		}
	}
	return records, nil
}

// Return closes an open record and makes its item available again. Only the
// lender may record a return, and only once.
func (s *Service) Return(ctx context.Context, caller, recordID string) (*models.LendingRecord, error) {
	rec, err := s.store.GetLendingRecord(ctx, recordID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("lending record not found")
	}
	if err != nil {
		return nil, err
	}
	if rec.LenderUserID != caller {
		return nil, apperr.Authorization("only the lender can record a return")
	}
	if !rec.IsOpen() {
		return nil, apperr.InvalidState("item has already been returned")
	}

	returnedAt := s.now()
	itemName := models.UnknownItem
	err = s.store.InTx(ctx, func(tx storage.Store) error {
		err := tx.CloseLendingRecord(ctx, rec.ID, returnedAt)
		if errors.Is(err, storage.ErrStale) {
			return apperr.InvalidState("item has already been returned")
		}
		if err != nil {
			return err
		}

		it, err := tx.GetItemForUpdate(ctx, rec.ItemID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			// item deleted while lent; nothing to flip
			return nil
		case err != nil:
			return err
		}
		itemName = it.Name
		if it.IsAvailable() {
			s.log.Warn("returned item was already marked available",
				zap.String("item_id", it.ID), zap.String("record_id", rec.ID))
			return nil
		}
		return catalog.FlipAvailability(ctx, tx, it.ID, models.Unavailable, models.Available)
	})
	if errors.Is(err, storage.ErrCommitUnknown) {
		s.log.Error("return commit outcome unknown, reconcile record",
			zap.String("record_id", rec.ID),
			zap.String("item_id", rec.ItemID),
			zap.Error(err))
		return nil, apperr.PartialFailure(err, "return of record %s", rec.ID)
	}
	if err != nil {
		return nil, err
	}

	rec.Status = models.StatusReturned
	rec.ReturnedAt = &returnedAt
	if rec.BorrowerUserID != nil {
		s.notify.Send(ctx, notify.ItemReturned(rec, itemName))
	}
	return rec, nil
}

func (s *Service) ActiveForLender(ctx context.Context, lender string) ([]models.LendingRecordView, error) {
	return s.store.ListLendingViews(ctx, storage.LendingFilter{LenderID: lender, Status: models.StatusBorrowed})
}

func (s *Service) ActiveForBorrower(ctx context.Context, borrower string) ([]models.LendingRecordView, error) {
	return s.store.ListLendingViews(ctx, storage.LendingFilter{BorrowerID: borrower, Status: models.StatusBorrowed})
}

// HistoryForContact lists everything caller lent to the contact, open and
// returned. A deleted contact still has history.
func (s *Service) HistoryForContact(ctx context.Context, caller, contactID string) ([]models.LendingRecordView, error) {
	c, err := s.store.GetContact(ctx, contactID)
	switch {
	case err == nil && c.OwnerUserID != caller:
		return nil, apperr.Authorization("contact belongs to another user")
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		return nil, err
	}
	return s.store.ListLendingViews(ctx, storage.LendingFilter{LenderID: caller, ContactID: contactID})
}

// HistoryForItem lists the item's records for its owner. Once the item is
// deleted, callers see the records they lent themselves.
func (s *Service) HistoryForItem(ctx context.Context, caller, itemID string) ([]models.LendingRecordView, error) {
	it, err := s.store.GetItem(ctx, itemID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return s.store.ListLendingViews(ctx, storage.LendingFilter{ItemID: itemID, LenderID: caller})
	case err != nil:
		return nil, err
	case it.OwnerUserID != caller:
		return nil, apperr.Authorization("item belongs to another user")
	}
	return s.store.ListLendingViews(ctx, storage.LendingFilter{ItemID: itemID})
}

// ActiveGroupedByContact groups the lender's open records by contact, ordered
// by contact name.
func (s *Service) ActiveGroupedByContact(ctx context.Context, lender string) ([]models.ContactLoans, error) {
	views, err := s.ActiveForLender(ctx, lender)
	if err != nil {
		return nil, err
	}
	index := map[string]int{}
	var out []models.ContactLoans
	for _, v := range views {
		i, ok := index[v.ContactID]
		if !ok {
			i = len(out)
			index[v.ContactID] = i
			out = append(out, models.ContactLoans{Contact: v.Contact})
		}
		out[i].Records = append(out[i].Records, v)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Contact.Name != out[j].Contact.Name {
			return out[i].Contact.Name < out[j].Contact.Name
		}
		return out[i].Contact.ID < out[j].Contact.ID
	})
	return out, nil
}

// Reconcile audits owner's items. It reports availability flags that disagree
// with the open records and accepted requests that never produced a record.
// It changes nothing.
func (s *Service) Reconcile(ctx context.Context, owner string) (*models.ReconcileReport, error) {
	items, err := s.store.ListItemsByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	all, err := s.store.ListLendingViews(ctx, storage.LendingFilter{LenderID: owner})
	if err != nil {
		return nil, err
	}
	open := map[string]int{}
	fromRequest := map[string]bool{}
	for _, r := range all {
		if r.IsOpen() {
			open[r.ItemID]++
		}
		if r.RequestID != nil {
			fromRequest[*r.RequestID] = true
		}
	}

	report := &models.ReconcileReport{Items: []models.ItemDrift{}, AcceptedOrphans: []string{}, CheckedAt: s.now()}
	for _, it := range items {
		n := open[it.ID]
		if n > 1 || (n == 1) != (it.Availability == models.Unavailable) {
			report.Items = append(report.Items, models.ItemDrift{
				ItemID: it.ID, ItemName: it.Name, Availability: it.Availability, OpenRecords: n,
			})
		}
	}

	accepted, err := s.store.ListRequestViews(ctx, storage.RequestFilter{OwnerID: owner, Status: models.RequestAccepted})
	if err != nil {
		return nil, err
	}
	for _, q := range accepted {
		if !fromRequest[q.ID] {
			report.AcceptedOrphans = append(report.AcceptedOrphans, q.ID)
		}
	}
	if !report.Clean() {
		s.log.Warn("lending drift detected",
			zap.String("owner", owner),
			zap.Int("items", len(report.Items)),
			zap.Int("accepted_orphans", len(report.AcceptedOrphans)))
	}
	return report, nil
}
