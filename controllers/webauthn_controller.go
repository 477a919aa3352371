package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"lendbook/app"
	"lendbook/storage"

	"github.com/gin-gonic/gin"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const ceremonyTimeout = 3 * time.Second

func registrationOptions() []webauthn.RegistrationOption {
	return []webauthn.RegistrationOption{
		webauthn.WithResidentKeyRequirement(protocol.ResidentKeyRequirementRequired),
		webauthn.WithAuthenticatorSelection(protocol.AuthenticatorSelection{
			UserVerification: protocol.VerificationRequired,
		}),
	}
}

func (s *Srv) WhoAmI(c *gin.Context) {
	ctx := c.Request.Context()
	u, err := s.Store.GetUser(ctx, app.UserID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	creds, err := s.Store.LoadUserCredentials(ctx, u.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, app.H{"user": u, "credentialCount": len(creds)})
}

// ===== sign-up =====

type signupReq struct {
	Email string `json:"email" binding:"required,email"`
	Name  string `json:"name" binding:"required,max=255"`
}

// BeginRegistration starts a passkey sign-up for a new account. The account
// row is written only when the ceremony finishes.
func (s *Srv) BeginRegistration(c *gin.Context) {
	var in signupReq
	if !bind(c, &in) {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), ceremonyTimeout)
	defer cancel()

	email := strings.ToLower(strings.TrimSpace(in.Email))
	_, err := s.Store.FindUserByEmail(ctx, email)
	switch {
	case err == nil:
		c.JSON(http.StatusConflict, app.H{"error": "an account with this email already exists, sign in instead"})
		return
	case !errors.Is(err, storage.ErrNotFound):
		s.fail(c, err)
		return
	}

	wUser := &waUser{}
	wUser.user.ID = uuid.NewString()
	wUser.user.Email = email
	wUser.user.Name = strings.TrimSpace(in.Name)
	opts, sd, err := s.WA.BeginRegistration(wUser, registrationOptions()...)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.Sess.SaveSignup(ctx, email, sd); err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, app.H{"opts": opts})
}

// FinishRegistration takes email and name as query parameters and the
// attestation as the body. It creates the account and logs it in.
func (s *Srv) FinishRegistration(c *gin.Context) {
	email := strings.ToLower(strings.TrimSpace(c.Query("email")))
	name := strings.TrimSpace(c.Query("name"))
	if email == "" || name == "" {
		badRequest(c, "missing email or name")
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), ceremonyTimeout)
	defer cancel()

	sd, err := s.Sess.TakeSignup(ctx, email)
	if err != nil {
		badRequest(c, "session expired or invalid")
		return
	}
	handle, err := uuid.FromBytes(sd.UserID)
	if err != nil {
		badRequest(c, "session expired or invalid")
		return
	}

	wUser := &waUser{}
	wUser.user.ID = handle.String()
	wUser.user.Email = email
	wUser.user.Name = name
	cred, err := s.WA.FinishRegistration(wUser, *sd, c.Request)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	u, err := s.Store.FindOrCreateUser(ctx, email, name, wUser.user.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	if u.ID != wUser.user.ID {
		c.JSON(http.StatusConflict, app.H{"error": "an account with this email already exists, sign in instead"})
		return
	}
	if err := s.Store.AddCredential(ctx, fromWaCred(u.ID, cred)); err != nil {
		s.fail(c, err)
		return
	}
	s.Log.Info("account registered", zap.String("user_id", u.ID))

	if err := s.issueSession(ctx, c.Writer, u.ID, c.ClientIP(), c.Request.UserAgent()); err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, app.H{"user": u})
}

// ===== extra passkeys for a signed-in account =====

func (s *Srv) BeginAddCredential(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), ceremonyTimeout)
	defer cancel()

	wUser, err := s.loadWAUserByID(ctx, app.UserID(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, app.H{"error": "unauthorized"})
		return
	}
	opts, sd, err := s.WA.BeginRegistration(wUser, registrationOptions()...)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.Sess.SaveAdd(ctx, wUser.user.ID, sd); err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, app.H{"opts": opts})
}

func (s *Srv) FinishAddCredential(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), ceremonyTimeout)
	defer cancel()

	wUser, err := s.loadWAUserByID(ctx, app.UserID(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, app.H{"error": "unauthorized"})
		return
	}
	sd, err := s.Sess.TakeAdd(ctx, wUser.user.ID)
	if err != nil {
		badRequest(c, "session expired or invalid")
		return
	}
	cred, err := s.WA.FinishRegistration(wUser, *sd, c.Request)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := s.Store.AddCredential(ctx, fromWaCred(wUser.user.ID, cred)); err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, app.H{"ok": true})
}

// ===== sign-in =====

type loginBeginReq struct {
	Email        string `json:"email"`
	Discoverable bool   `json:"discoverable"`
}

type loginBeginResp struct {
	Options   *protocol.CredentialAssertion `json:"options"`
	SessionID string                        `json:"sessionId"`
}

func (s *Srv) BeginLogin(c *gin.Context) {
	var req loginBeginReq
	if !bind(c, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), ceremonyTimeout)
	defer cancel()

	var (
		opts *protocol.CredentialAssertion
		sd   *webauthn.SessionData
		err  error
	)
	if req.Discoverable || req.Email == "" {
		opts, sd, err = s.WA.BeginDiscoverableLogin(webauthn.WithUserVerification(protocol.VerificationRequired))
	} else {
		wUser, lookupErr := s.loadWAUserByEmail(ctx, req.Email)
		if errors.Is(lookupErr, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, app.H{"error": "user not found"})
			return
		}
		if lookupErr != nil {
			s.fail(c, lookupErr)
			return
		}
		opts, sd, err = s.WA.BeginLogin(wUser, webauthn.WithUserVerification(protocol.VerificationRequired))
	}
	if err != nil {
		s.fail(c, err)
		return
	}

	sid := uuid.NewString()
	if err := s.Sess.SaveAuth(ctx, sid, sd); err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, loginBeginResp{Options: opts, SessionID: sid})
}

func (s *Srv) FinishLogin(c *gin.Context) {
	sid := c.Query("sessionId")
	if sid == "" {
		badRequest(c, "missing sessionId")
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), ceremonyTimeout)
	defer cancel()

	sd, err := s.Sess.TakeAuth(ctx, sid)
	if err != nil {
		badRequest(c, "session expired or invalid")
		return
	}

	var (
		userID string
		cred   *webauthn.Credential
	)
	if email := c.Query("email"); email != "" {
		wUser, err := s.loadWAUserByEmail(ctx, email)
		if err != nil {
			c.JSON(http.StatusNotFound, app.H{"error": "user not found"})
			return
		}
		if cred, err = s.WA.FinishLogin(wUser, *sd, c.Request); err != nil {
			c.JSON(http.StatusUnauthorized, app.H{"error": err.Error()})
			return
		}
		userID = wUser.user.ID
	} else {
		handler := func(rawID, _ []byte) (webauthn.User, error) {
			u, _, err := s.Store.FindUserByCredentialID(ctx, rawID)
			if err != nil {
				return nil, protocol.ErrBadRequest.WithDetails("credential not found")
			}
			w, err := s.loadWAUserByID(ctx, u.ID)
			if err != nil {
				return nil, err
			}
			return w, nil
		}
		user, found, err := s.WA.FinishPasskeyLogin(handler, *sd, c.Request)
		if err != nil {
			c.JSON(http.StatusUnauthorized, app.H{"error": err.Error()})
			return
		}
		userID, cred = user.(*waUser).user.ID, found
	}

	if err := s.Store.UpdateCredentialCounter(ctx, cred.ID, cred.Authenticator.SignCount, cred.Authenticator.CloneWarning); err != nil {
		s.Log.Warn("update credential counter", zap.String("user_id", userID), zap.Error(err))
	}
	if cred.Authenticator.CloneWarning {
		s.Log.Warn("authenticator clone warning", zap.String("user_id", userID))
	}
	if err := s.issueSession(ctx, c.Writer, userID, c.ClientIP(), c.Request.UserAgent()); err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, app.H{"redirect": "/dashboard"})
}

func (s *Srv) Logout(c *gin.Context) {
	if ck, err := c.Request.Cookie(app.AppSessionCookie); err == nil && ck.Value != "" {
		if err := s.AppSess.Delete(c.Request.Context(), ck.Value); err != nil {
			s.Log.Warn("delete session", zap.Error(err))
		}
	}
	s.clearAppCookie(c.Writer)
	ok(c, http.StatusOK, app.H{"ok": true})
}

// LogoutEverywhere ends every session of the caller, this one included.
func (s *Srv) LogoutEverywhere(c *gin.Context) {
	if err := s.AppSess.RevokeAllForUser(c.Request.Context(), app.UserID(c)); err != nil {
		s.fail(c, err)
		return
	}
	s.clearAppCookie(c.Writer)
	ok(c, http.StatusOK, app.H{"ok": true})
}
