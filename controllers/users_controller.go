package controllers

import (
	"net/http"

	"lendbook/app"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GET /api/users/search?q=
func (s *Srv) SearchUsers(c *gin.Context) {
	out, err := s.Engine.Contacts.SearchAccounts(c.Request.Context(), app.UserID(c), c.Query("q"))
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, list(out))
}

// userParam reads :id and rejects anything that is not a uuid.
func userParam(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		badRequest(c, "invalid user id")
		return "", false
	}
	return id, true
}

func (s *Srv) GetProfile(c *gin.Context) {
	id, valid := userParam(c)
	if !valid {
		return
	}
	p, err := s.Engine.Social.Profile(c.Request.Context(), app.UserID(c), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// UserItems lists another account's public items.
func (s *Srv) UserItems(c *gin.Context) {
	id, valid := userParam(c)
	if !valid {
		return
	}
	out, err := s.Engine.Catalog.ListPublicForUser(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, list(out))
}

func (s *Srv) Follow(c *gin.Context) {
	id, valid := userParam(c)
	if !valid {
		return
	}
	if err := s.Engine.Social.Follow(c.Request.Context(), app.UserID(c), id); err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, app.H{"following": true})
}

func (s *Srv) Unfollow(c *gin.Context) {
	id, valid := userParam(c)
	if !valid {
		return
	}
	if err := s.Engine.Social.Unfollow(c.Request.Context(), app.UserID(c), id); err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, app.H{"following": false})
}

func (s *Srv) IsFollowing(c *gin.Context) {
	id, valid := userParam(c)
	if !valid {
		return
	}
	f, err := s.Engine.Social.IsFollowing(c.Request.Context(), app.UserID(c), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, app.H{"following": f})
}

func (s *Srv) Followers(c *gin.Context) {
	id, valid := userParam(c)
	if !valid {
		return
	}
	out, err := s.Engine.Social.Followers(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, list(out))
}

func (s *Srv) Following(c *gin.Context) {
	id, valid := userParam(c)
	if !valid {
		return
	}
	out, err := s.Engine.Social.Following(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, list(out))
}

func (s *Srv) FollowCounts(c *gin.Context) {
	id, valid := userParam(c)
	if !valid {
		return
	}
	n, err := s.Engine.Social.Counts(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, n)
}

// Discover lists public items of the accounts the caller follows.
func (s *Srv) Discover(c *gin.Context) {
	out, err := s.Engine.Social.Discover(c.Request.Context(), app.UserID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, list(out))
}
