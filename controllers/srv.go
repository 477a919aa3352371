package controllers

import (
	"context"
	"net/http"
	"time"

	"lendbook/app"
	"lendbook/config"
	"lendbook/models"
	"lendbook/service"
	"lendbook/session"
	"lendbook/storage"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Srv carries what the handlers need. Engine operations get the caller's
// account id from app.UserID.
type Srv struct {
	WA      *webauthn.WebAuthn
	Store   storage.Store
	Engine  *service.Engine
	Sess    *session.Store
	AppSess *session.AppSessionStore
	Cfg     *config.Config
	Log     *zap.Logger
}

func GetSrv(a *app.App) *Srv {
	return &Srv{
		WA:      a.WA,
		Store:   a.Store,
		Engine:  a.Engine,
		Sess:    a.Ceremonies(),
		AppSess: a.AppSessions(),
		Cfg:     a.Config,
		Log:     a.Log.Named("api"),
	}
}

func (s *Srv) setAppCookie(w http.ResponseWriter, sessionID string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     app.AppSessionCookie,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.Cfg.SecureCookies(),
		MaxAge:   int(maxAge / time.Second),
	})
}

func (s *Srv) clearAppCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     app.AppSessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.Cfg.SecureCookies(),
	})
}

// issueSession starts a login session and records the login on the account.
func (s *Srv) issueSession(ctx context.Context, w http.ResponseWriter, userID, ip, ua string) error {
	if err := s.Store.TouchUserLogin(ctx, userID, ip, ua); err != nil {
		s.Log.Warn("record login", zap.String("user_id", userID), zap.Error(err))
	}
	id := uuid.NewString()
	if err := s.AppSess.Create(ctx, id, userID); err != nil {
		return err
	}
	s.setAppCookie(w, id, s.AppSess.TTL())
	return nil
}

// waUser adapts an account to webauthn.User. The user handle is the raw
// uuid bytes of the account id.
type waUser struct {
	user  models.User
	creds []webauthn.Credential
}

func (u *waUser) WebAuthnID() []byte                         { id, _ := uuid.Parse(u.user.ID); return id[:] }
func (u *waUser) WebAuthnName() string                       { return u.user.Email }
func (u *waUser) WebAuthnDisplayName() string                { return u.user.Name }
func (u *waUser) WebAuthnIcon() string                       { return "" }
func (u *waUser) WebAuthnCredentials() []webauthn.Credential { return u.creds }

func toWaCred(c models.Credential) webauthn.Credential {
	return webauthn.Credential{
		ID:              c.CredentialID,
		PublicKey:       c.PublicKey,
		AttestationType: c.AttestationType,
		Authenticator: webauthn.Authenticator{
			AAGUID:       c.AAGUID,
			SignCount:    c.SignCount,
			CloneWarning: c.CloneWarning,
		},
		Flags: webauthn.CredentialFlags{
			BackupEligible: c.BackupEligible,
			BackupState:    c.BackupState,
		},
	}
}

func fromWaCred(userID string, cred *webauthn.Credential) *models.Credential {
	return &models.Credential{
		UserID:          userID,
		CredentialID:    cred.ID,
		PublicKey:       cred.PublicKey,
		AttestationType: cred.AttestationType,
		AAGUID:          cred.Authenticator.AAGUID,
		SignCount:       cred.Authenticator.SignCount,
		CloneWarning:    cred.Authenticator.CloneWarning,
		BackupEligible:  cred.Flags.BackupEligible,
		BackupState:     cred.Flags.BackupState,
	}
}

func (s *Srv) withCredentials(ctx context.Context, u *models.User) (*waUser, error) {
	cs, err := s.Store.LoadUserCredentials(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	ws := make([]webauthn.Credential, 0, len(cs))
	for _, c := range cs {
		ws = append(ws, toWaCred(c))
	}
	return &waUser{user: *u, creds: ws}, nil
}

func (s *Srv) loadWAUserByID(ctx context.Context, id string) (*waUser, error) {
	u, err := s.Store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.withCredentials(ctx, u)
}

func (s *Srv) loadWAUserByEmail(ctx context.Context, email string) (*waUser, error) {
	u, err := s.Store.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return s.withCredentials(ctx, u)
}
