// ABOUTME: Observability hook for the settings store
// ABOUTME: Persistence failures never reach callers; they are reported here instead

package settings

import "log/slog"

// Operation names passed to Observer.PersistFailed.
const (
	OpLoad   = "load"
	OpSave   = "save"
	OpDecode = "decode"
)

// Change reasons passed to Observer.SettingsChanged.
const (
	ReasonInit    = "init"
	ReasonUpdate  = "update"
	ReasonReplace = "replace"
	ReasonPatch   = "patch"
	ReasonReset   = "reset"
)

// Observer receives store lifecycle signals. Implementations must not block.
type Observer interface {
	SettingsChanged(reason string)
	PersistFailed(op string, err error)
}

// LogObserver reports through slog.
type LogObserver struct {
	logger *slog.Logger
}

// NewLogObserver creates a LogObserver. Pass nil logger for default.
func NewLogObserver(logger *slog.Logger) *LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogObserver{logger: logger}
}

func (o *LogObserver) SettingsChanged(reason string) {
	o.logger.Debug("settings changed", "reason", reason)
}

func (o *LogObserver) PersistFailed(op string, err error) {
	o.logger.Warn("settings persistence failed", "op", op, "error", err)
}

// Observers fans out to several observers in order.
func Observers(obs ...Observer) Observer {
	return multiObserver(obs)
}

type multiObserver []Observer

func (m multiObserver) SettingsChanged(reason string) {
	for _, o := range m {
		o.SettingsChanged(reason)
	}
}

func (m multiObserver) PersistFailed(op string, err error) {
	for _, o := range m {
		o.PersistFailed(op, err)
	}
}

type nopObserver struct{}

func (nopObserver) SettingsChanged(string)      {}
func (nopObserver) PersistFailed(string, error) {}
