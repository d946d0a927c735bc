package telegram

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blockedby/tgdown/internal/config"
	"github.com/blockedby/tgdown/internal/logger"
	"github.com/celestix/gotgproto"
	"github.com/celestix/gotgproto/storage"
	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram/auth/qrlogin"
	"gorm.io/gorm"
)

// errors
var (
	ErrNotAuthorized = errors.New("telegram client not authorized")
	ErrAuthFailed    = errors.New("telegram authentication failed")
)

// Status represents the Telegram client status.
type Status string

// Status constants define the possible states of the Telegram client.
const (
	StatusInitializing Status = "INITIALIZING"
	StatusReady        Status = "READY"
	StatusUnauthorized Status = "UNAUTHORIZED"
	StatusError        Status = "ERROR"
	StatusStopped      Status = "STOPPED"
)

// ClientFactory is a function that creates a telegram client.
type ClientFactory func(ctx context.Context, cfg *config.Config, db *gorm.DB) (*gotgproto.Client, error)

// QRClientFactory is a function that creates a raw telegram client for QR auth.
type QRClientFactory func(cfg *config.Config) (*QRClientBundle, error)

// Manager owns the session: it connects, reports status and disconnects.
type Manager struct {
	client *gotgproto.Client
	db     *gorm.DB
	cfg    *config.Config
	log    *logger.Logger

	status Status
	mu     sync.RWMutex

	clientFactory   ClientFactory
	qrClientFactory QRClientFactory

	qrInProgress atomic.Bool
}

// NewManager creates a new Telegram Manager. db may be nil when a string
// session is configured.
func NewManager(cfg *config.Config, db *gorm.DB) *Manager {
	return &Manager{
		db:              db,
		cfg:             cfg,
		log:             logger.Get(),
		status:          StatusInitializing,
		clientFactory:   NewPersistentClient,
		qrClientFactory: NewQRClient,
	}
}

// SetClientFactory allows overriding the client creation logic (e.g. for testing).
func (m *Manager) SetClientFactory(f ClientFactory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clientFactory = f
}

// SetQRClientFactory allows overriding the QR client creation logic (e.g. for testing).
func (m *Manager) SetQRClientFactory(f QRClientFactory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.qrClientFactory = f
}

// GetStatus returns the current Telegram client status.
func (m *Manager) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// GetClient returns the underlying Telegram client, nil until connected.
func (m *Manager) GetClient() *gotgproto.Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
}

// HasSession reports whether a stored or configured session exists.
func (m *Manager) HasSession() bool {
	if m.cfg.TGSessionStr != "" {
		return true
	}
	if m.db == nil {
		return false
	}

	var count int64
	if err := m.db.Table("sessions").Count(&count).Error; err != nil {
		m.log.Debug().Err(err).Msg("telegram: sessions table not readable")
		return false
	}
	return count > 0
}

// Init connects and authenticates. Without a stored session it only
// proceeds when a phone number is configured for interactive login.
func (m *Manager) Init(ctx context.Context) error {
	m.setStatus(StatusInitializing)

	if !m.HasSession() && m.cfg.TGPhone == "" {
		m.log.Warn().Msg("telegram: no session found, run tg-auth or set TG_PHONE")
		m.setStatus(StatusUnauthorized)
		return ErrNotAuthorized
	}

	m.mu.RLock()
	factory := m.clientFactory
	m.mu.RUnlock()

	client, err := factory(ctx, m.cfg, m.db)
	if err != nil {
		m.log.Error().Err(err).Msg("telegram: failed to initialize client")
		m.setStatus(StatusUnauthorized)
		return fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}

	m.mu.Lock()
	m.client = client
	m.status = StatusReady
	m.mu.Unlock()

	m.log.Info().Msg("telegram: client is ready")
	return nil
}

// IsQRInProgress returns true if a QR login flow is currently in progress.
func (m *Manager) IsQRInProgress() bool {
	return m.qrInProgress.Load()
}

// StartQR runs the QR login flow and stores the resulting session in the
// session database. It blocks until login succeeds or ctx is canceled.
func (m *Manager) StartQR(ctx context.Context, onQRCode func(url string)) error {
	if m.GetStatus() == StatusReady {
		return fmt.Errorf("already logged in")
	}
	if m.db == nil {
		return fmt.Errorf("QR login needs a session database")
	}
	if !m.qrInProgress.CompareAndSwap(false, true) {
		return fmt.Errorf("QR login already in progress")
	}
	defer m.qrInProgress.Store(false)

	m.log.Info().Time("now", time.Now()).Msg("telegram: starting QR flow")

	m.mu.RLock()
	factory := m.qrClientFactory
	m.mu.RUnlock()

	bundle, err := factory(m.cfg)
	if err != nil {
		return fmt.Errorf("create QR client: %w", err)
	}

	var (
		authErr     error
		sessionData *session.Data
	)

	err = bundle.Client.Run(ctx, func(ctx context.Context) error {
		loggedIn := qrlogin.OnLoginToken(&bundle.Dispatcher)

		_, authErr = bundle.Client.QR().Auth(ctx, loggedIn, func(_ context.Context, token qrlogin.Token) error {
			m.log.Info().Msg("telegram: QR token generated")
			onQRCode(token.URL())
			return nil
		})
		if authErr != nil {
			return authErr
		}

		loader := session.Loader{Storage: bundle.Storage}
		sessionData, authErr = loader.Load(ctx)
		return authErr
	})

	if err != nil || authErr != nil {
		if errors.Is(err, context.Canceled) || errors.Is(authErr, context.Canceled) {
			return context.Canceled
		}
		return fmt.Errorf("QR auth flow failed: %w", errors.Join(err, authErr))
	}

	if sessionData == nil {
		return fmt.Errorf("session data is nil after successful auth")
	}

	m.log.Info().Msg("telegram: QR auth success, saving session")
	return m.saveSessionToDB(sessionData)
}

func (m *Manager) saveSessionToDB(data *session.Data) error {
	sess, err := ConvertToGotgprotoSession(data)
	if err != nil {
		return err
	}

	if err := m.db.AutoMigrate(&storage.Session{}); err != nil {
		return fmt.Errorf("migrate sessions table: %w", err)
	}

	// Version is the primary key, so Save upserts the single row.
	return m.db.Save(sess).Error
}

// Stop disconnects the Telegram client.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil {
		m.client.Stop()
		m.client = nil
	}
	m.status = StatusStopped
}
