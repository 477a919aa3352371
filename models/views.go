package models

import "time"

// Placeholders shown for references whose target row has been deleted.
const (
	UnknownItem    = "Unknown Item"
	UnknownContact = "Unknown Contact"
	UnknownUser    = "Unknown"
)

// Ref points at a related row from inside a read model. Missing is set when
// the row no longer exists; Name then holds a placeholder.
type Ref struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Missing bool   `json:"missing,omitempty"`
}

// ResolveRef is the single place dangling references are turned into
// placeholders. name is the joined column, nil when the join found nothing.
func ResolveRef(id string, name *string, placeholder string) Ref {
	if name == nil {
		return Ref{ID: id, Name: placeholder, Missing: true}
	}
	return Ref{ID: id, Name: *name}
}

// ResolveOptionalRef is ResolveRef for nullable foreign keys: no id, no ref.
func ResolveOptionalRef(id *string, name *string, placeholder string) *Ref {
	if id == nil || *id == "" {
		return nil
	}
	r := ResolveRef(*id, name, placeholder)
	return &r
}

// LendingRecordView is a lending record with its item, contact and parties.
type LendingRecordView struct {
	LendingRecord
	Item     Ref  `json:"item"`
	Contact  Ref  `json:"contact"`
	Lender   Ref  `json:"lender"`
	Borrower *Ref `json:"borrower,omitempty"`
}

// ContactLoans groups a lender's open records by contact.
type ContactLoans struct {
	Contact Ref                 `json:"contact"`
	Records []LendingRecordView `json:"records"`
}

type BorrowRequestView struct {
	BorrowRequest
	Item      Ref           `json:"item"`
	Requester Ref           `json:"requester"`
	Owner     Ref           `json:"owner"`
	ItemState *Availability `json:"itemAvailability,omitempty"`
}

type NotificationView struct {
	Notification
	Sender *Ref `json:"sender,omitempty"`
	Item   *Ref `json:"item,omitempty"`
}

// ItemDetail is the item page: the item, its owner and, for the owner, the
// current open borrow.
type ItemDetail struct {
	Item         Item           `json:"item"`
	Owner        Ref            `json:"owner"`
	Group        *Ref           `json:"group,omitempty"`
	ActiveBorrow *LendingRecord `json:"activeBorrow,omitempty"`
	Contact      *Ref           `json:"contact,omitempty"`
	IsOwner      bool           `json:"isOwner"`
}

type MemberGroup struct {
	Group
	Role Role `json:"role"`
}

// GroupPreview is what an invite link shows before joining.
type GroupPreview struct {
	Group       Group `json:"group"`
	MemberCount int64 `json:"memberCount"`
	IsMember    bool  `json:"isMember"`
}

type FollowView struct {
	ID        string    `json:"id"`
	User      Ref       `json:"user"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type FollowCounts struct {
	Followers int64 `json:"followers"`
	Following int64 `json:"following"`
}

// ItemDrift is an item whose availability flag disagrees with its open
// lending records.
type ItemDrift struct {
	ItemID       string       `json:"itemId"`
	ItemName     string       `json:"itemName"`
	Availability Availability `json:"availability"`
	OpenRecords  int          `json:"openRecords"`
}

type ReconcileReport struct {
	Items           []ItemDrift `json:"items"`
	AcceptedOrphans []string    `json:"acceptedRequestsWithoutRecord"`
	CheckedAt       time.Time   `json:"checkedAt"`
}

func (r *ReconcileReport) Clean() bool { return len(r.Items) == 0 && len(r.AcceptedOrphans) == 0 }
