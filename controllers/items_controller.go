package controllers

import (
	"net/http"

	"lendbook/app"
	"lendbook/service/catalog"

	"github.com/gin-gonic/gin"
)

// ListItems lists the caller's own items with their availability.
func (s *Srv) ListItems(c *gin.Context) {
	out, err := s.Engine.Catalog.ListOwned(c.Request.Context(), app.UserID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, list(out))
}

func (s *Srv) CreateItem(c *gin.Context) {
	var in catalog.ItemInput
	if !bind(c, &in) {
		return
	}
	it, err := s.Engine.Catalog.Create(c.Request.Context(), app.UserID(c), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, it)
}

func (s *Srv) GetItem(c *gin.Context) {
	d, err := s.Engine.Catalog.Get(c.Request.Context(), app.UserID(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, d)
}

// PATCH /api/items/:id. Absent fields are left alone; availability cannot
// be set here.
func (s *Srv) UpdateItem(c *gin.Context) {
	var p catalog.ItemPatch
	if !bind(c, &p) {
		return
	}
	it, err := s.Engine.Catalog.Update(c.Request.Context(), app.UserID(c), c.Param("id"), p)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, it)
}

func (s *Srv) DeleteItem(c *gin.Context) {
	if err := s.Engine.Catalog.Delete(c.Request.Context(), app.UserID(c), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, app.H{"ok": true})
}

func (s *Srv) ItemHistory(c *gin.Context) {
	out, err := s.Engine.Ledger.HistoryForItem(c.Request.Context(), app.UserID(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, list(out))
}
