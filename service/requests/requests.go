// Package requests runs borrow requests between linked accounts:
// pending -> accepted | rejected, both terminal.
package requests

import (
	"context"
	"errors"
	"strings"
	"time"

	"lendbook/apperr"
	"lendbook/models"
	"lendbook/service/contacts"
	"lendbook/service/ledger"
	"lendbook/service/notify"
	"lendbook/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxMessageLen = 1000

type Service struct {
	store    storage.Store
	contacts *contacts.Service
	ledger   *ledger.Service
	notify   *notify.Dispatcher
	log      *zap.Logger
	now      func() time.Time
}

func New(store storage.Store, c *contacts.Service, l *ledger.Service, n *notify.Dispatcher, log *zap.Logger) *Service {
	return &Service{
		store:    store,
		contacts: c,
		ledger:   l,
		notify:   n,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	cp := *s
	cp.now = now
	return &cp
}

// CreateInput names the item and the requester's own contact entry for its
// owner.
type CreateInput struct {
	ContactID string     `json:"contactId"`
	ItemID    string     `json:"itemId"`
	DueDate   *time.Time `json:"dueDate"`
	Message   *string    `json:"message"`
}

// AcceptResult is everything an accepted request produced.
type AcceptResult struct {
	Request *models.BorrowRequest `json:"request"`
	Record  *models.LendingRecord `json:"record"`
	Contact *models.Contact       `json:"contact"`
}

func (s *Service) Create(ctx context.Context, requester string, in CreateInput) (*models.BorrowRequest, error) {
	c, err := s.store.GetContact(ctx, in.ContactID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil, apperr.Validation("contact not found")
	case err != nil:
		return nil, err
	case c.OwnerUserID != requester:
		return nil, apperr.Validation("contact is not in your directory")
	case !c.IsLinked():
		return nil, apperr.Validation("%s is not a registered user", c.Name)
	}

	it, err := s.store.GetItem(ctx, in.ItemID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil, apperr.NotFound("item not found")
	case err != nil:
		return nil, err
	case it.OwnerUserID == requester:
		return nil, apperr.Validation("you cannot borrow your own item")
	case it.OwnerUserID != *c.LinkedUserID:
		return nil, apperr.Validation("%q does not belong to %s", it.Name, c.Name)
	case !it.IsAvailable():
		return nil, apperr.Validation("%q is currently lent out", it.Name)
	}

	if in.DueDate != nil && in.DueDate.Before(s.now().Truncate(24*time.Hour)) {
		return nil, apperr.Validation("due date must not be in the past")
	}
	var msg *string
	if in.Message != nil {
		if m := strings.TrimSpace(*in.Message); m != "" {
			if len(m) > maxMessageLen {
				return nil, apperr.Validation("message is too long")
			}
			msg = &m
		}
	}

	_, err = s.store.FindPendingRequest(ctx, it.ID, requester)
	switch {
	case err == nil:
		return nil, apperr.Conflict("you already have a pending request for %q", it.Name)
	case !errors.Is(err, storage.ErrNotFound):
		return nil, err
	}

	now := s.now()
	req := &models.BorrowRequest{
		ID:               uuid.NewString(),
		ItemID:           it.ID,
		RequesterUserID:  requester,
		OwnerUserID:      it.OwnerUserID,
		RequestedDueDate: in.DueDate,
		Message:          msg,
		Status:           models.RequestPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.InsertRequest(ctx, req); err != nil {
		return nil, err
	}

	requesterName := models.UnknownUser
	if u, err := s.store.GetUser(ctx, requester); err == nil {
		requesterName = u.Name
	}
	s.notify.Send(ctx, notify.BorrowRequested(req, it.Name, requesterName))
	return req, nil
}

// answerable loads a request the owner may still answer.
func (s *Service) answerable(ctx context.Context, owner, id string) (*models.BorrowRequest, error) {
	req, err := s.store.GetRequest(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("borrow request not found")
	}
	if err != nil {
		return nil, err
	}
	if req.OwnerUserID != owner {
		return nil, apperr.Authorization("only the item owner can answer this request")
	}
	if req.Status != models.RequestPending {
		return nil, apperr.InvalidState("request has already been %s", req.Status)
	}
	return req, nil
}

func alreadyAnswered(err error) error {
	if errors.Is(err, storage.ErrStale) {
		return apperr.InvalidState("request has already been answered")
	}
	return err
}

// Accept approves a pending request and lends the item to the requester. The
// status change, the contact lookup and the lending record commit together:
// if the item was lent elsewhere in the meantime the request stays pending.
func (s *Service) Accept(ctx context.Context, owner, id string) (*AcceptResult, error) {
	req, err := s.answerable(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	it, err := s.store.GetItem(ctx, req.ItemID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil, apperr.Conflict("the requested item no longer exists")
	case err != nil:
		return nil, err
	case !it.IsAvailable():
		return nil, apperr.Conflict("%q is no longer available", it.Name)
	}

	requester, err := s.store.GetUser(ctx, req.RequesterUserID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("requester account not found")
	}
	if err != nil {
		return nil, err
	}

	at := s.now()
	res := &AcceptResult{}
	err = s.store.InTx(ctx, func(tx storage.Store) error {
		if err := tx.TransitionRequest(ctx, req.ID, models.RequestPending, models.RequestAccepted, at); err != nil {
			return alreadyAnswered(err)
		}
		c, err := s.contacts.FindOrCreateLinked(ctx, tx, owner, requester)
		if err != nil {
			return err
		}
		rec, err := s.ledger.LendOne(ctx, tx, owner, ledger.Loan{
			ItemID:    req.ItemID,
			Contact:   c,
			DueDate:   req.RequestedDueDate,
			RequestID: req.ID,
		})
		if err != nil {
			return err
		}
		res.Contact, res.Record = c, rec
		return nil
	})
	if errors.Is(err, storage.ErrCommitUnknown) {
		s.log.Error("accept commit outcome unknown, reconcile request",
			zap.String("request_id", req.ID),
			zap.String("item_id", req.ItemID),
			zap.Error(err))
		return nil, apperr.PartialFailure(err, "accept of request %s", req.ID)
	}
	if err != nil {
		return nil, err
	}

	req.Status = models.RequestAccepted
	req.RespondedAt = &at
	req.UpdatedAt = at
	res.Request = req
	s.notify.Send(ctx, notify.RequestAccepted(req, res.Record, it.Name))
	return res, nil
}

// Reject declines a pending request. message, if any, is passed on to the
// requester. The item is not touched.
func (s *Service) Reject(ctx context.Context, owner, id, message string) (*models.BorrowRequest, error) {
	req, err := s.answerable(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	message = strings.TrimSpace(message)
	if len(message) > maxMessageLen {
		return nil, apperr.Validation("message is too long")
	}

	at := s.now()
	if err := s.store.TransitionRequest(ctx, req.ID, models.RequestPending, models.RequestRejected, at); err != nil {
		return nil, alreadyAnswered(err)
	}
	req.Status = models.RequestRejected
	req.RespondedAt = &at
	req.UpdatedAt = at

	itemName := models.UnknownItem
	if it, err := s.store.GetItem(ctx, req.ItemID); err == nil {
		itemName = it.Name
	}
	s.notify.Send(ctx, notify.RequestRejected(req, itemName, message))
	return req, nil
}

// Get returns a request to either party.
func (s *Service) Get(ctx context.Context, caller, id string) (*models.BorrowRequestView, error) {
	views, err := s.store.ListRequestViews(ctx, storage.RequestFilter{ID: id})
	if err != nil {
		return nil, err
	}
	if len(views) == 0 {
		return nil, apperr.NotFound("borrow request not found")
	}
	v := views[0]
	if v.OwnerUserID != caller && v.RequesterUserID != caller {
		return nil, apperr.Authorization("request belongs to other users")
	}
	return &v, nil
}

// PendingForOwner lists requests waiting on owner, newest first.
func (s *Service) PendingForOwner(ctx context.Context, owner string) ([]models.BorrowRequestView, error) {
	return s.store.ListRequestViews(ctx, storage.RequestFilter{OwnerID: owner, Status: models.RequestPending})
}

// PendingForItems lists requester's pending requests among itemIDs.
func (s *Service) PendingForItems(ctx context.Context, requester string, itemIDs []string) ([]models.BorrowRequestView, error) {
	if len(itemIDs) == 0 {
		return []models.BorrowRequestView{}, nil
	}
	return s.store.ListRequestViews(ctx, storage.RequestFilter{
		RequesterID: requester,
		Status:      models.RequestPending,
		ItemIDs:     itemIDs,
	})
}

// Outgoing lists every request requester has made.
func (s *Service) Outgoing(ctx context.Context, requester string) ([]models.BorrowRequestView, error) {
	return s.store.ListRequestViews(ctx, storage.RequestFilter{RequesterID: requester})
}
