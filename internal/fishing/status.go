package fishing

import (
	"go.uber.org/zap"

	"gpo-autofish/internal/state"
)

// StatusSink displays what the bot is doing. Implementations must not block.
type StatusSink interface {
	UpdateStatus(name, style string)
}

// LogStatus writes status updates to the log.
type LogStatus struct {
	Log *zap.Logger
}

func (l LogStatus) UpdateStatus(name, style string) {
	l.Log.Debug("Status.", zap.String("status", name), zap.String("style", style))
}

// MultiStatus forwards every update to all sinks.
type MultiStatus []StatusSink

func (m MultiStatus) UpdateStatus(name, style string) {
	for _, s := range m {
		s.UpdateStatus(name, style)
	}
}

// StyleFor maps an operational state to a display style.
func StyleFor(k state.Kind) string {
	switch k {
	case state.Fishing:
		return "active"
	case state.Casting:
		return "info"
	case state.Purchasing, state.MenuOpening, state.Typing, state.Clicking:
		return "warning"
	}
	return "default"
}
