package routes

import (
	"net/http"

	"lendbook/app"
	"lendbook/controllers"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, a *app.App) {
	s := controllers.GetSrv(a)

	authMW := app.AuthRequired(a.AppSessions(), a.Store)
	seenMW := app.TouchLastSeen(a.Store, a.RDB, a.Config.SeenThrottle, a.Log.Named("seen"))

	r.GET("/healthz", func(c *app.Ctx) {
		if err := a.RDB.Ping(c.Request.Context()).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, app.H{"ok": false})
			return
		}
		c.JSON(http.StatusOK, app.H{"ok": true})
	})

	// passkey sign-up and sign-in
	wa := r.Group("/webauthn")
	{
		wa.POST("/register/begin", s.BeginRegistration)
		wa.POST("/register/finish", s.FinishRegistration)
		wa.POST("/login/begin", s.BeginLogin)
		wa.POST("/login/finish", s.FinishLogin)
	}
	waAuth := wa.Group("", authMW, seenMW)
	{
		waAuth.GET("/whoami", s.WhoAmI)
		waAuth.POST("/logout", s.Logout)
		waAuth.POST("/logout-all", s.LogoutEverywhere)
	}

	creds := r.Group("/api/credentials", authMW, seenMW)
	{
		creds.POST("/add/begin", s.BeginAddCredential)
		creds.POST("/add/finish", s.FinishAddCredential)
	}

	RegisterAPI(r.Group("/api", authMW, seenMW), s)
}

// RegisterAPI mounts the lending API on g. g must run an authentication
// middleware that sets the caller (see app.SetUser).
func RegisterAPI(g *gin.RouterGroup, s *controllers.Srv) {
	contacts := g.Group("/contacts")
	{
		contacts.GET("", s.ListContacts)
		contacts.POST("", s.CreateContact)
		contacts.GET("/search", s.SearchContacts)
		contacts.GET("/:id", s.GetContact)
		contacts.PUT("/:id", s.UpdateContact)
		contacts.DELETE("/:id", s.DeleteContact)
		contacts.POST("/:id/link", s.LinkContact)
		contacts.GET("/:id/history", s.ContactHistory)
	}

	users := g.Group("/users")
	{
		users.GET("/search", s.SearchUsers)
		users.GET("/:id", s.GetProfile)
		users.GET("/:id/items", s.UserItems)
		users.GET("/:id/follow", s.IsFollowing)
		users.POST("/:id/follow", s.Follow)
		users.DELETE("/:id/follow", s.Unfollow)
		users.GET("/:id/followers", s.Followers)
		users.GET("/:id/following", s.Following)
		users.GET("/:id/counts", s.FollowCounts)
	}

	items := g.Group("/items")
	{
		items.GET("", s.ListItems)
		items.POST("", s.CreateItem)
		items.GET("/:id", s.GetItem)
		items.PATCH("/:id", s.UpdateItem)
		items.DELETE("/:id", s.DeleteItem)
		items.GET("/:id/history", s.ItemHistory)
	}
	g.GET("/discover", s.Discover)

	lending := g.Group("/lending")
	{
		lending.POST("", s.Lend)
		lending.POST("/:id/return", s.Return)
		lending.GET("/lent", s.LentOut)
		lending.GET("/borrowed", s.Borrowed)
		lending.GET("/by-contact", s.LentByContact)
		lending.GET("/reconcile", s.Reconcile)
	}

	reqs := g.Group("/requests")
	{
		reqs.POST("", s.CreateRequest)
		reqs.GET("/incoming", s.Incoming)
		reqs.GET("/outgoing", s.Outgoing)
		reqs.GET("/pending", s.PendingForItems)
		reqs.GET("/:id", s.GetRequest)
		reqs.POST("/:id/accept", s.AcceptRequest)
		reqs.POST("/:id/reject", s.RejectRequest)
	}

	notes := g.Group("/notifications")
	{
		notes.GET("", s.ListNotifications)
		notes.GET("/unread-count", s.UnreadCount)
		notes.POST("/read-all", s.MarkAllRead)
		notes.POST("/:id/read", s.MarkRead)
		notes.DELETE("", s.DismissAllNotifications)
		notes.DELETE("/:id", s.DismissNotification)
	}

	groups := g.Group("/groups")
	{
		groups.GET("", s.ListGroups)
		groups.POST("", s.CreateGroup)
		groups.GET("/invite/:code", s.PreviewInvite)
		groups.POST("/invite/:code/join", s.JoinGroup)
		groups.GET("/:id", s.GetGroup)
		groups.GET("/:id/items", s.GroupItems)
	}
}
