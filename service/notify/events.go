package notify

import (
	"fmt"

	"lendbook/models"
)

// Event builders for the lending workflows. Names are the ones known when the
// event fires; readers resolve current names through the list views.

func BorrowRequested(req *models.BorrowRequest, itemName, requesterName string) Event {
	ev := Event{
		Recipient: req.OwnerUserID,
		Sender:    req.RequesterUserID,
		Type:      models.NotifyBorrowRequest,
		Title:     "New borrow request",
		Message:   fmt.Sprintf("%s would like to borrow %s", requesterName, itemName),
		ItemID:    req.ItemID,
		RequestID: req.ID,
		ActionURL: "/requests/" + req.ID,
	}
	if req.RequestedDueDate != nil {
		ev.Metadata = map[string]any{"requestedDueDate": req.RequestedDueDate.Format("2006-01-02")}
	}
	return ev
}

func RequestAccepted(req *models.BorrowRequest, rec *models.LendingRecord, itemName string) Event {
	return Event{
		Recipient: req.RequesterUserID,
		Sender:    req.OwnerUserID,
		Type:      models.NotifyRequestAccepted,
		Title:     "Borrow request accepted",
		Message:   fmt.Sprintf("Your request to borrow %s was accepted", itemName),
		ItemID:    req.ItemID,
		RequestID: req.ID,
		RecordID:  rec.ID,
		ActionURL: "/items/" + req.ItemID,
	}
}

// RequestRejected carries the owner's optional message as the body.
func RequestRejected(req *models.BorrowRequest, itemName, message string) Event {
	if message == "" {
		message = fmt.Sprintf("Your request to borrow %s was declined", itemName)
	}
	return Event{
		Recipient: req.RequesterUserID,
		Sender:    req.OwnerUserID,
		Type:      models.NotifyRequestRejected,
		Title:     "Borrow request declined",
		Message:   message,
		ItemID:    req.ItemID,
		RequestID: req.ID,
	}
}

func ItemLent(rec *models.LendingRecord, itemName string) Event {
	ev := Event{
		Sender:   rec.LenderUserID,
		Type:     models.NotifyItemLent,
		Title:    "Item lent to you",
		Message:  fmt.Sprintf("You are now borrowing %s", itemName),
		ItemID:   rec.ItemID,
		RecordID: rec.ID,
	}
	if rec.BorrowerUserID != nil {
		ev.Recipient = *rec.BorrowerUserID
	}
	if rec.DueDate != nil {
		ev.Metadata = map[string]any{"dueDate": rec.DueDate.Format("2006-01-02")}
	}
	return ev
}

func ItemReturned(rec *models.LendingRecord, itemName string) Event {
	ev := Event{
		Sender:   rec.LenderUserID,
		Type:     models.NotifyItemReturned,
		Title:    "Return recorded",
		Message:  fmt.Sprintf("%s has been marked as returned", itemName),
		ItemID:   rec.ItemID,
		RecordID: rec.ID,
	}
	if rec.BorrowerUserID != nil {
		ev.Recipient = *rec.BorrowerUserID
	}
	return ev
}
