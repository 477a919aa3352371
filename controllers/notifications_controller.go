package controllers

import (
	"net/http"
	"strconv"

	"lendbook/app"

	"github.com/gin-gonic/gin"
)

// GET /api/notifications?limit=
func (s *Srv) ListNotifications(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			badRequest(c, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	out, err := s.Engine.Notifications.List(c.Request.Context(), app.UserID(c), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, list(out))
}

func (s *Srv) UnreadCount(c *gin.Context) {
	n, err := s.Engine.Notifications.UnreadCount(c.Request.Context(), app.UserID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, app.H{"count": n})
}

func (s *Srv) MarkRead(c *gin.Context) {
	if err := s.Engine.Notifications.MarkRead(c.Request.Context(), app.UserID(c), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, app.H{"ok": true})
}

func (s *Srv) MarkAllRead(c *gin.Context) {
	n, err := s.Engine.Notifications.MarkAllRead(c.Request.Context(), app.UserID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, app.H{"updated": n})
}

func (s *Srv) DismissNotification(c *gin.Context) {
	if err := s.Engine.Notifications.Dismiss(c.Request.Context(), app.UserID(c), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, app.H{"ok": true})
}

func (s *Srv) DismissAllNotifications(c *gin.Context) {
	n, err := s.Engine.Notifications.DismissAll(c.Request.Context(), app.UserID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, app.H{"deleted": n})
}
