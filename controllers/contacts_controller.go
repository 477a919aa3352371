package controllers

import (
	"net/http"

	"lendbook/app"
	"lendbook/service/contacts"

	"github.com/gin-gonic/gin"
)

func (s *Srv) ListContacts(c *gin.Context) {
	out, err := s.Engine.Contacts.List(c.Request.Context(), app.UserID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, list(out))
}

// GET /api/contacts/search?q=
func (s *Srv) SearchContacts(c *gin.Context) {
	out, err := s.Engine.Contacts.Search(c.Request.Context(), app.UserID(c), c.Query("q"))
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, list(out))
}

func (s *Srv) CreateContact(c *gin.Context) {
	var in contacts.Input
	if !bind(c, &in) {
		return
	}
	ct, err := s.Engine.Contacts.Create(c.Request.Context(), app.UserID(c), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, ct)
}

func (s *Srv) GetContact(c *gin.Context) {
	ct, err := s.Engine.Contacts.Get(c.Request.Context(), app.UserID(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, ct)
}

func (s *Srv) UpdateContact(c *gin.Context) {
	var in contacts.Input
	if !bind(c, &in) {
		return
	}
	ct, err := s.Engine.Contacts.Update(c.Request.Context(), app.UserID(c), c.Param("id"), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, ct)
}

func (s *Srv) DeleteContact(c *gin.Context) {
	if err := s.Engine.Contacts.Delete(c.Request.Context(), app.UserID(c), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, app.H{"ok": true})
}

// POST /api/contacts/:id/link {"userId": ...}
func (s *Srv) LinkContact(c *gin.Context) {
	var in struct {
		UserID string `json:"userId" binding:"required"`
	}
	if !bind(c, &in) {
		return
	}
	ct, err := s.Engine.Contacts.LinkToAccount(c.Request.Context(), app.UserID(c), c.Param("id"), in.UserID)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, ct)
}

// ContactHistory lists every loan to the contact, open and returned.
func (s *Srv) ContactHistory(c *gin.Context) {
	out, err := s.Engine.Ledger.HistoryForContact(c.Request.Context(), app.UserID(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, list(out))
}
