package app

import (
	"context"
	"errors"
	"net/http"

	"lendbook/session"
	"lendbook/storage"

	"github.com/gin-gonic/gin"
)

const AppSessionCookie = "lendbook_session"

const (
	ctxUserID   = "userID"
	ctxUserName = "userName"
)

// SessionLookup is the part of the login session store the middleware needs.
type SessionLookup interface {
	Get(ctx context.Context, id string) (*session.AppSession, error)
	Delete(ctx context.Context, id string) error
}

// AuthRequired resolves the session cookie to an account and puts its id in
// the gin context. Sessions of deleted accounts are dropped.
func AuthRequired(sessions SessionLookup, accounts storage.AccountStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		ck, err := c.Request.Cookie(AppSessionCookie)
		if err != nil || ck.Value == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
			return
		}
		as, err := sessions.Get(c.Request.Context(), ck.Value)
		if errors.Is(err, session.ErrNoSession) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "invalid session"})
			return
		}
		if err != nil {
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, H{"error": "internal error"})
			return
		}

		u, err := accounts.GetUser(c.Request.Context(), as.UserID)
		if errors.Is(err, storage.ErrNotFound) {
			_ = sessions.Delete(c.Request.Context(), ck.Value)
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
			return
		}
		if err != nil {
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, H{"error": "internal error"})
			return
		}
		SetUser(c, u.ID, u.Name)
		c.Next()
	}
}

// SetUser records the authenticated account on the request.
func SetUser(c *gin.Context, id, name string) {
	c.Set(ctxUserID, id)
	c.Set(ctxUserName, name)
}

// UserID is the authenticated account id, "" outside AuthRequired.
func UserID(c *gin.Context) string { return c.GetString(ctxUserID) }

func UserName(c *gin.Context) string { return c.GetString(ctxUserName) }
