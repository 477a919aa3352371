package controllers

import (
	"net/http"
	"strings"

	"lendbook/app"
	"lendbook/service/requests"

	"github.com/gin-gonic/gin"
)

type borrowReq struct {
	ContactID string  `json:"contactId" binding:"required"`
	ItemID    string  `json:"itemId" binding:"required"`
	DueDate   *Date   `json:"dueDate"`
	Message   *string `json:"message"`
}

func (s *Srv) CreateRequest(c *gin.Context) {
	var in borrowReq
	if !bind(c, &in) {
		return
	}
	req, err := s.Engine.Requests.Create(c.Request.Context(), app.UserID(c), requests.CreateInput{
		ContactID: in.ContactID,
		ItemID:    in.ItemID,
		DueDate:   in.DueDate.Ptr(),
		Message:   in.Message,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, req)
}

// Incoming lists pending requests for the caller's items.
func (s *Srv) Incoming(c *gin.Context) {
	out, err := s.Engine.Requests.PendingForOwner(c.Request.Context(), app.UserID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, list(out))
}

func (s *Srv) Outgoing(c *gin.Context) {
	out, err := s.Engine.Requests.Outgoing(c.Request.Context(), app.UserID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, list(out))
}

// GET /api/requests/pending?itemIds=a,b (or repeated itemIds)
func (s *Srv) PendingForItems(c *gin.Context) {
	var ids []string
	for _, v := range c.QueryArray("itemIds") {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	out, err := s.Engine.Requests.PendingForItems(c.Request.Context(), app.UserID(c), ids)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, list(out))
}

func (s *Srv) GetRequest(c *gin.Context) {
	v, err := s.Engine.Requests.Get(c.Request.Context(), app.UserID(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, v)
}

func (s *Srv) AcceptRequest(c *gin.Context) {
	res, err := s.Engine.Requests.Accept(c.Request.Context(), app.UserID(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// POST /api/requests/:id/reject with an optional {"message": ...}
func (s *Srv) RejectRequest(c *gin.Context) {
	var in struct {
		Message string `json:"message"`
	}
	if c.Request.ContentLength != 0 && !bind(c, &in) {
		return
	}
	req, err := s.Engine.Requests.Reject(c.Request.Context(), app.UserID(c), c.Param("id"), in.Message)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, req)
}
