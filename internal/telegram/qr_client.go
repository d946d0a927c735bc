package telegram

import (
	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"

	"github.com/blockedby/tgdown/internal/config"
)

// QRClientBundle holds a raw gotd client wired for QR login together with
// the in-memory storage that captures the resulting session.
type QRClientBundle struct {
	Client     *telegram.Client
	Dispatcher tg.UpdateDispatcher
	Storage    *session.StorageMemory
}

// NewQRClient creates a raw td/telegram client for QR authentication.
// gotgproto is not used here because it insists on finishing its own
// login flow during construction.
func NewQRClient(cfg *config.Config) (*QRClientBundle, error) {
	memStorage := &session.StorageMemory{}
	dispatcher := tg.NewUpdateDispatcher()

	client := telegram.NewClient(cfg.TGApiID, cfg.TGApiHash, telegram.Options{
		SessionStorage: memStorage,
		UpdateHandler:  &dispatcher,
		Device: telegram.DeviceConfig{
			DeviceModel:   cfg.DeviceModel,
			SystemVersion: cfg.SystemVersion,
			AppVersion:    cfg.AppVersion,
		},
	})

	return &QRClientBundle{
		Client:     client,
		Dispatcher: dispatcher,
		Storage:    memStorage,
	}, nil
}
