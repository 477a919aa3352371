// Package contacts is the owner-scoped contact directory and its link to
// registered accounts.
package contacts

import (
	"context"
	"errors"
	"strings"
	"time"

	"lendbook/apperr"
	"lendbook/models"
	"lendbook/storage"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	minSearchLen      = 2
	accountSearchSize = 10
)

type Service struct {
	store    storage.Store
	log      *zap.Logger
	validate *validator.Validate
	now      func() time.Time
}

func New(store storage.Store, log *zap.Logger) *Service {
	return &Service{
		store:    store,
		log:      log,
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Input is the editable part of a contact.
type Input struct {
	Name  string  `json:"name"`
	Email *string `json:"email"`
	Phone *string `json:"phone"`
}

// clean trims the input, turns blank optionals into nil and validates.
func (s *Service) clean(in Input) (Input, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return in, apperr.Validation("contact name is required")
	}
	in.Email = blankToNil(in.Email)
	in.Phone = blankToNil(in.Phone)
	if in.Email != nil {
		if err := s.validate.Var(*in.Email, "email"); err != nil {
			return in, apperr.Validation("invalid email address %q", *in.Email)
		}
	}
	return in, nil
}

func blankToNil(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}

func (s *Service) Create(ctx context.Context, owner string, in Input) (*models.Contact, error) {
	in, err := s.clean(in)
	if err != nil {
		return nil, err
	}
	c := &models.Contact{
		ID:          uuid.NewString(),
		OwnerUserID: owner,
		Name:        in.Name,
		Email:       in.Email,
		Phone:       in.Phone,
		CreatedAt:   s.now(),
	}
	if err := s.store.CreateContact(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns one of owner's contacts.
func (s *Service) Get(ctx context.Context, owner, id string) (*models.Contact, error) {
	return s.owned(ctx, s.store, owner, id)
}

func (s *Service) owned(ctx context.Context, st storage.ContactStore, owner, id string) (*models.Contact, error) {
	c, err := st.GetContact(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("contact not found")
	}
	if err != nil {
		return nil, err
	}
	if c.OwnerUserID != owner {
		return nil, apperr.Authorization("contact belongs to another user")
	}
	return c, nil
}

func (s *Service) List(ctx context.Context, owner string) ([]models.Contact, error) {
	return s.store.ListContacts(ctx, owner)
}

func (s *Service) Search(ctx context.Context, owner, q string) ([]models.Contact, error) {
	q = strings.TrimSpace(q)
	if len([]rune(q)) < minSearchLen {
		return []models.Contact{}, nil
	}
	return s.store.SearchContacts(ctx, owner, q)
}

func (s *Service) Update(ctx context.Context, owner, id string, in Input) (*models.Contact, error) {
	in, err := s.clean(in)
	if err != nil {
		return nil, err
	}
	c, err := s.owned(ctx, s.store, owner, id)
	if err != nil {
		return nil, err
	}
	c.Name, c.Email, c.Phone = in.Name, in.Email, in.Phone
	if err := s.store.UpdateContact(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Delete removes the contact. Lending records and requests keep its id and
// render it as an unknown contact.
func (s *Service) Delete(ctx context.Context, owner, id string) error {
	if _, err := s.owned(ctx, s.store, owner, id); err != nil {
		return err
	}
	err := s.store.DeleteContact(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.NotFound("contact not found")
	}
	return err
}

// LinkToAccount attaches a registered account to an existing contact.
func (s *Service) LinkToAccount(ctx context.Context, owner, contactID, accountID string) (*models.Contact, error) {
	if accountID == owner {
		return nil, apperr.Validation("cannot link a contact to yourself")
	}
	c, err := s.owned(ctx, s.store, owner, contactID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetUser(ctx, accountID); errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("account not found")
	} else if err != nil {
		return nil, err
	}
	if c.LinkedUserID != nil && *c.LinkedUserID == accountID {
		return c, nil
	}
	c.LinkedUserID = &accountID
	err = s.store.UpdateContact(ctx, c)
	if errors.Is(err, storage.ErrDuplicate) {
		return nil, apperr.Conflict("another contact is already linked to this account")
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// SearchAccounts finds registered accounts to invite, excluding the caller.
func (s *Service) SearchAccounts(ctx context.Context, caller, q string) ([]models.User, error) {
	q = strings.TrimSpace(q)
	if len([]rune(q)) < minSearchLen {
		return []models.User{}, nil
	}
	return s.store.SearchUsers(ctx, q, caller, accountSearchSize)
}

// FindOrCreateLinked returns owner's contact for account, creating or linking
// one when needed. It works on st so callers can run it inside their own
// transaction.
//
// Matching order: a contact already linked to the account, then an unlinked
// contact with the same email (case-insensitive), which gets linked; otherwise
// a new contact named after the account.
func (s *Service) FindOrCreateLinked(ctx context.Context, st storage.Store, owner string, account *models.User) (*models.Contact, error) {
	c, err := st.FindContactByLinkedUser(ctx, owner, account.ID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	if account.Email != "" {
		c, err = st.FindUnlinkedContactByEmail(ctx, owner, account.Email)
		switch {
		case err == nil:
			c.LinkedUserID = &account.ID
			err = st.UpdateContact(ctx, c)
			if err == nil {
				return c, nil
			}
			if errors.Is(err, storage.ErrDuplicate) {
				return st.FindContactByLinkedUser(ctx, owner, account.ID)
			}
			return nil, err
		case !errors.Is(err, storage.ErrNotFound):
			return nil, err
		}
	}

	email := account.Email
	c = &models.Contact{
		ID:           uuid.NewString(),
		OwnerUserID:  owner,
		Name:         account.Name,
		LinkedUserID: &account.ID,
		CreatedAt:    s.now(),
	}
	if email != "" {
		c.Email = &email
	}
	if c.Name == "" {
		c.Name = models.UnknownUser
	}
	err = st.CreateContact(ctx, c)
	if errors.Is(err, storage.ErrDuplicate) {
		s.log.Debug("linked contact created concurrently",
			zap.String("owner", owner), zap.String("account", account.ID))
		return st.FindContactByLinkedUser(ctx, owner, account.ID)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}
