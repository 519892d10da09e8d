package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics tracks custody, rental and signature command outcomes along with
// the drift found by reconciliation.
type LedgerMetrics struct {
	commands       *prometheus.CounterVec
	notifications  *prometheus.CounterVec
	drift          *prometheus.GaugeVec
	holderMismatch prometheus.Counter
}

// NewLedgerMetrics registers the ledger metrics on the provided registerer.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	commands := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_commands_total",
		Help: "Ledger write commands by command and outcome code.",
	}, []string{"command", "outcome"})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_notifications_total",
		Help: "Post-commit notifications by event and delivery status.",
	}, []string{"event", "status"})
	drift := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ledger_drift_items",
		Help: "Inconsistencies found by the last reconciliation run.",
	}, []string{"kind"})
	holderMismatch := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "custody_return_holder_mismatch_total",
		Help: "Returns recorded by an employee other than the ledger holder.",
	})
	reg.MustRegister(commands, notifications, drift, holderMismatch)
	return &LedgerMetrics{
		commands:       commands,
		notifications:  notifications,
		drift:          drift,
		holderMismatch: holderMismatch,
	}
}

// IncCommand counts one command execution. outcome is "ok" or an error code.
func (m *LedgerMetrics) IncCommand(command, outcome string) {
	if m == nil || m.commands == nil {
		return
	}
	m.commands.WithLabelValues(normalizeLabel(command), normalizeLabel(outcome)).Inc()
}

// IncNotification counts one notification attempt.
func (m *LedgerMetrics) IncNotification(event, status string) {
	if m == nil || m.notifications == nil {
		return
	}
	m.notifications.WithLabelValues(normalizeLabel(event), normalizeLabel(status)).Inc()
}

// SetDrift publishes the count of inconsistencies of the given kind.
func (m *LedgerMetrics) SetDrift(kind string, count int) {
	if m == nil || m.drift == nil {
		return
	}
	m.drift.WithLabelValues(normalizeLabel(kind)).Set(float64(count))
}

// IncHolderMismatch counts a return made by someone other than the holder.
func (m *LedgerMetrics) IncHolderMismatch() {
	if m == nil || m.holderMismatch == nil {
		return
	}
	m.holderMismatch.Inc()
}
