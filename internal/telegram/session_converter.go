package telegram

import (
	"encoding/json"
	"fmt"

	"github.com/celestix/gotgproto/storage"
	"github.com/gotd/td/session"
)

// sessionEnvelope is the versioned wrapper gotd's session.Loader expects.
type sessionEnvelope struct {
	Version int
	Data    session.Data
}

// ConvertToGotgprotoSession converts gotd session.Data into the row gotgproto
// keeps in its sessions table.
func ConvertToGotgprotoSession(data *session.Data) (*storage.Session, error) {
	if data == nil {
		return nil, fmt.Errorf("session data is nil")
	}

	payload, err := json.Marshal(sessionEnvelope{Version: 1, Data: *data})
	if err != nil {
		return nil, fmt.Errorf("marshal session data: %w", err)
	}

	return &storage.Session{
		Version: storage.LatestVersion,
		Data:    payload,
	}, nil
}
