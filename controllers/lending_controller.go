package controllers

import (
	"net/http"

	"lendbook/app"
	"lendbook/service/ledger"

	"github.com/gin-gonic/gin"
)

type lendReq struct {
	ItemIDs   []string `json:"itemIds" binding:"required"`
	ContactID string   `json:"contactId" binding:"required"`
	DueDate   *Date    `json:"dueDate"`
}

// Lend records one loan per item to the same contact. Either every item is
// lent or none is.
func (s *Srv) Lend(c *gin.Context) {
	var in lendReq
	if !bind(c, &in) {
		return
	}
	recs, err := s.Engine.Ledger.Lend(c.Request.Context(), app.UserID(c), ledger.LendInput{
		ItemIDs:   in.ItemIDs,
		ContactID: in.ContactID,
		DueDate:   in.DueDate.Ptr(),
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, recs)
}

// POST /api/lending/:id/return
func (s *Srv) Return(c *gin.Context) {
	rec, err := s.Engine.Ledger.Return(c.Request.Context(), app.UserID(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, rec)
}

// LentOut lists the caller's open loans as lender.
func (s *Srv) LentOut(c *gin.Context) {
	out, err := s.Engine.Ledger.ActiveForLender(c.Request.Context(), app.UserID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, list(out))
}

// Borrowed lists what the caller currently has borrowed.
func (s *Srv) Borrowed(c *gin.Context) {
	out, err := s.Engine.Ledger.ActiveForBorrower(c.Request.Context(), app.UserID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, list(out))
}

func (s *Srv) LentByContact(c *gin.Context) {
	out, err := s.Engine.Ledger.ActiveGroupedByContact(c.Request.Context(), app.UserID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, list(out))
}

// Reconcile reports items whose availability disagrees with the ledger. It
// changes nothing.
func (s *Srv) Reconcile(c *gin.Context) {
	rep, err := s.Engine.Ledger.Reconcile(c.Request.Context(), app.UserID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, rep)
}
