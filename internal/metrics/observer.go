// ABOUTME: Settings store observer backed by Prometheus counters
// ABOUTME: Plugs into settings.WithObserver alongside the slog observer

package metrics

// SettingsObserver counts store lifecycle signals.
type SettingsObserver struct {
	m *Metrics
}

// NewSettingsObserver returns an observer writing into m.
func NewSettingsObserver(m *Metrics) *SettingsObserver {
	return &SettingsObserver{m: m}
}

func (o *SettingsObserver) SettingsChanged(reason string) {
	o.m.SettingsChanges.WithLabelValues(reason).Inc()
}

func (o *SettingsObserver) PersistFailed(op string, _ error) {
	o.m.PersistFailures.WithLabelValues(op).Inc()
}
