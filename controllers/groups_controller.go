package controllers

import (
	"net/http"

	"lendbook/app"

	"github.com/gin-gonic/gin"
)

func (s *Srv) ListGroups(c *gin.Context) {
	out, err := s.Engine.Groups.ListMine(c.Request.Context(), app.UserID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, list(out))
}

func (s *Srv) CreateGroup(c *gin.Context) {
	var in struct {
		Name        string `json:"name" binding:"required,max=200"`
		Description string `json:"description"`
	}
	if !bind(c, &in) {
		return
	}
	g, err := s.Engine.Groups.Create(c.Request.Context(), app.UserID(c), in.Name, in.Description)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, g)
}

func (s *Srv) GetGroup(c *gin.Context) {
	g, err := s.Engine.Groups.Get(c.Request.Context(), app.UserID(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, g)
}

func (s *Srv) GroupItems(c *gin.Context) {
	out, err := s.Engine.Catalog.ListGroupItems(c.Request.Context(), app.UserID(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, list(out))
}

// GET /api/groups/invite/:code
func (s *Srv) PreviewInvite(c *gin.Context) {
	p, err := s.Engine.Groups.Preview(c.Request.Context(), app.UserID(c), c.Param("code"))
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

func (s *Srv) JoinGroup(c *gin.Context) {
	g, err := s.Engine.Groups.Join(c.Request.Context(), app.UserID(c), c.Param("code"))
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, g)
}
