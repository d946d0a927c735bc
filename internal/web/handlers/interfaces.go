package handlers

import (
	"github.com/blockedby/tgdown/internal/collector"
	"github.com/blockedby/tgdown/internal/telegram"
)

// PipelineStatus reports pipeline state and counters.
type PipelineStatus interface {
	Status() collector.Status
}

// SessionStatus reports the telegram session state.
type SessionStatus interface {
	GetStatus() telegram.Status
}
