// Package storage defines the persistence contracts of the lending engine.
// db.Repo implements them on Postgres; memstore implements them in memory for
// development and tests.
package storage

import (
	"context"
	"errors"
	"time"

	"lendbook/models"
)

var (
	// ErrNotFound is returned by point lookups that match no row.
	ErrNotFound = errors.New("storage: not found")
	// ErrDuplicate is returned when an insert or update violates a unique
	// constraint (open record per item, linked contact per owner, ...).
	ErrDuplicate = errors.New("storage: duplicate key")
	// ErrStale is returned by compare-and-swap updates whose expected state
	// no longer holds.
	ErrStale = errors.New("storage: stale state")
	// ErrCommitUnknown is returned by InTx when the commit itself failed and
	// the outcome of the transaction cannot be known.
	ErrCommitUnknown = errors.New("storage: commit outcome unknown")
)

// AccountStore covers registered accounts and their passkeys.
type AccountStore interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindOrCreateUser(ctx context.Context, email, name, newID string) (*models.User, error)
	SearchUsers(ctx context.Context, q, excludeID string, limit int) ([]models.User, error)
	TouchUserLogin(ctx context.Context, userID, ip, ua string) error
	TouchUserSeen(ctx context.Context, userID string) error

	AddCredential(ctx context.Context, c *models.Credential) error
	LoadUserCredentials(ctx context.Context, userID string) ([]models.Credential, error)
	FindUserByCredentialID(ctx context.Context, credID []byte) (*models.User, *models.Credential, error)
	UpdateCredentialCounter(ctx context.Context, credID []byte, newCount uint32, cloneWarn bool) error
}

type ContactStore interface {
	CreateContact(ctx context.Context, c *models.Contact) error
	GetContact(ctx context.Context, id string) (*models.Contact, error)
	FindContactByLinkedUser(ctx context.Context, ownerID, linkedUserID string) (*models.Contact, error)
	// FindUnlinkedContactByEmail matches email case-insensitively among the
	// owner's contacts that have no linked account.
	FindUnlinkedContactByEmail(ctx context.Context, ownerID, email string) (*models.Contact, error)
	UpdateContact(ctx context.Context, c *models.Contact) error
	DeleteContact(ctx context.Context, id string) error
	ListContacts(ctx context.Context, ownerID string) ([]models.Contact, error)
	SearchContacts(ctx context.Context, ownerID, q string) ([]models.Contact, error)
}

type ItemStore interface {
	CreateItem(ctx context.Context, it *models.Item) error
	GetItem(ctx context.Context, id string) (*models.Item, error)
	// GetItemForUpdate is GetItem holding a row lock until the enclosing
	// transaction ends.
	GetItemForUpdate(ctx context.Context, id string) (*models.Item, error)
	UpdateItemFields(ctx context.Context, id string, fields map[string]any) error
	DeleteItem(ctx context.Context, id string) error
	ListItemsByOwner(ctx context.Context, ownerID string) ([]models.Item, error)
	ListItemsByGroup(ctx context.Context, groupID string) ([]models.Item, error)
	ListPublicItems(ctx context.Context, ownerIDs []string) ([]models.Item, error)
	// SetItemAvailability moves an item from one availability to another and
	// returns ErrStale if the item is not currently in from.
	SetItemAvailability(ctx context.Context, id string, from, to models.Availability) error
}

// LendingFilter selects lending records; zero fields are ignored.
type LendingFilter struct {
	LenderID   string
	BorrowerID string
	ContactID  string
	ItemID     string
	Status     models.LendingStatus
}

type LedgerStore interface {
	// InsertLendingRecord returns ErrDuplicate when the item already has an
	// open record.
	InsertLendingRecord(ctx context.Context, r *models.LendingRecord) error
	GetLendingRecord(ctx context.Context, id string) (*models.LendingRecord, error)
	OpenRecordForItem(ctx context.Context, itemID string) (*models.LendingRecord, error)
	// CloseLendingRecord marks an open record returned, ErrStale otherwise.
	CloseLendingRecord(ctx context.Context, id string, returnedAt time.Time) error
	ListLendingViews(ctx context.Context, f LendingFilter) ([]models.LendingRecordView, error)
}

// RequestFilter selects borrow requests; zero fields are ignored.
type RequestFilter struct {
	ID          string
	OwnerID     string
	RequesterID string
	Status      models.RequestStatus
	ItemIDs     []string
}

type RequestStore interface {
	InsertRequest(ctx context.Context, r *models.BorrowRequest) error
	GetRequest(ctx context.Context, id string) (*models.BorrowRequest, error)
	FindPendingRequest(ctx context.Context, itemID, requesterID string) (*models.BorrowRequest, error)
	// TransitionRequest moves a request from one status to another,
	// ErrStale if it is no longer in from.
	TransitionRequest(ctx context.Context, id string, from, to models.RequestStatus, at time.Time) error
	ListRequestViews(ctx context.Context, f RequestFilter) ([]models.BorrowRequestView, error)
}

type NotificationStore interface {
	InsertNotification(ctx context.Context, n *models.Notification) error
	GetNotification(ctx context.Context, id string) (*models.Notification, error)
	ListNotificationViews(ctx context.Context, recipientID string, limit int) ([]models.NotificationView, error)
	CountUnread(ctx context.Context, recipientID string) (int64, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context, recipientID string) (int64, error)
	DeleteNotification(ctx context.Context, id string) error
	DeleteAllNotifications(ctx context.Context, recipientID string) (int64, error)
}

type GroupStore interface {
	CreateGroup(ctx context.Context, g *models.Group) error
	GetGroup(ctx context.Context, id string) (*models.Group, error)
	GetGroupByInviteCode(ctx context.Context, code string) (*models.Group, error)
	AddMembership(ctx context.Context, m *models.GroupMembership) error
	GetMembership(ctx context.Context, groupID, userID string) (*models.GroupMembership, error)
	CountMembers(ctx context.Context, groupID string) (int64, error)
	ListGroupsForUser(ctx context.Context, userID string) ([]models.MemberGroup, error)
}

type FollowStore interface {
	CreateFollow(ctx context.Context, f *models.Follow) error
	DeleteFollow(ctx context.Context, followerID, followingID string) (int64, error)
	IsFollowing(ctx context.Context, followerID, followingID string) (bool, error)
	ListFollowers(ctx context.Context, userID string) ([]models.FollowView, error)
	ListFollowing(ctx context.Context, userID string) ([]models.FollowView, error)
	CountFollows(ctx context.Context, userID string) (models.FollowCounts, error)
}

// Store is the full persistence surface.
type Store interface {
	AccountStore
	ContactStore
	ItemStore
	LedgerStore
	RequestStore
	NotificationStore
	GroupStore
	FollowStore

	// InTx runs fn against a transactional view of the store. fn's error
	// rolls everything back; a failed commit yields ErrCommitUnknown.
	InTx(ctx context.Context, fn func(tx Store) error) error
	Close() error
}
