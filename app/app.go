package app

import (
	"context"
	"fmt"
	"time"

	"lendbook/config"
	"lendbook/db"
	"lendbook/service"
	"lendbook/session"
	"lendbook/storage"
	"lendbook/storage/memstore"

	"github.com/gin-gonic/gin"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Short aliases for handlers.
type Ctx = gin.Context
type H = gin.H

// App holds the process-wide dependencies.
type App struct {
	Router *gin.Engine
	Store  storage.Store
	RDB    *redis.Client
	WA     *webauthn.WebAuthn
	Engine *service.Engine
	Config *config.Config
	Log    *zap.Logger

	sess    *session.Store
	appSess *session.AppSessionStore
}

func (a *App) Ceremonies() *session.Store             { return a.sess }
func (a *App) AppSessions() *session.AppSessionStore { return a.appSess }

// New connects the store, Redis and the WebAuthn relying party and builds the
// gin engine with the common middleware. Routes are registered separately.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPwd, DB: 0})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}

	wa, err := webauthn.New(&webauthn.Config{
		RPDisplayName: "Lendbook",
		RPID:          cfg.RPID,
		RPOrigins:     cfg.RPOrigins,
	})
	if err != nil {
		_ = store.Close()
		_ = rdb.Close()
		return nil, fmt.Errorf("webauthn: %w", err)
	}

	if cfg.LogFormat == "json" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(RequestLogger(log.Named("http")), gin.Recovery())
	useCORS(r, cfg.WebOrigin)

	return &App{
		Router:  r,
		Store:   store,
		RDB:     rdb,
		WA:      wa,
		Engine:  service.New(store, log),
		Config:  cfg,
		Log:     log,
		sess:    session.NewStore(rdb, cfg.SessionTTL),
		appSess: session.NewAppSessionStore(rdb, cfg.AppSessionTTL),
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (storage.Store, error) {
	if cfg.Store == config.StoreMemory {
		log.Warn("using in-memory store, data is lost on restart")
		return memstore.New(), nil
	}
	gdb, err := db.Connect(ctx, cfg.DatabaseURL, log.Named("db"))
	if err != nil {
		return nil, err
	}
	if cfg.MigrateOnStart {
		if err := db.Migrate(gdb); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		log.Info("database migrated")
	}
	return db.NewRepo(gdb), nil
}

func (a *App) Close() {
	_ = a.RDB.Close()
	if err := a.Store.Close(); err != nil {
		a.Log.Warn("closing store", zap.Error(err))
	}
}
