package telegram

import (
	"context"
	"fmt"

	"github.com/blockedby/tgdown/internal/config"
	"github.com/celestix/gotgproto"
	"github.com/celestix/gotgproto/sessionMaker"
	"github.com/glebarez/sqlite"
	"github.com/gotd/td/telegram"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// OpenSessionStore opens the database holding the MTProto session and peer
// cache. SESSION_DATABASE_URL selects postgres; otherwise a local sqlite
// file is used.
func OpenSessionStore(cfg *config.Config) (*gorm.DB, error) {
	dialector := sqlite.Open(cfg.TGSessionFile)
	if cfg.SessionDatabaseURL != "" {
		dialector = postgres.Open(cfg.SessionDatabaseURL)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	return db, nil
}

// NewPersistentClient creates a gotgproto client. A TG_SESSION_STRING takes
// precedence and is kept in memory; otherwise the session lives in db and
// auth key refreshes are written back to it.
//
// When no session exists yet and TG_PHONE is set, gotgproto runs the
// interactive phone login on the terminal.
func NewPersistentClient(_ context.Context, cfg *config.Config, db *gorm.DB) (*gotgproto.Client, error) {
	opts := &gotgproto.ClientOpts{
		DisableCopyright: true,
		Device: &telegram.DeviceConfig{
			DeviceModel:   cfg.DeviceModel,
			SystemVersion: cfg.SystemVersion,
			AppVersion:    cfg.AppVersion,
		},
	}

	switch {
	case cfg.TGSessionStr != "":
		opts.Session = sessionMaker.StringSession(cfg.TGSessionStr)
		opts.InMemory = true
	case db != nil:
		opts.Session = sessionMaker.SqlSession(db.Dialector)
	default:
		return nil, fmt.Errorf("no session storage configured")
	}

	client, err := gotgproto.NewClient(
		cfg.TGApiID,
		cfg.TGApiHash,
		gotgproto.ClientTypePhone(cfg.TGPhone),
		opts,
	)
	if err != nil {
		return nil, fmt.Errorf("create telegram client: %w", err)
	}

	return client, nil
}
