package tracker

import (
	"github.com/desertthunder/binder/internal/bridge"
	"github.com/desertthunder/binder/internal/progress"
)

// UpdateKind says what changed.
type UpdateKind int

const (
	ProgressChanged UpdateKind = iota
	ConfirmationRequested
	ConfirmationResolved
	SnapshotReceived
	StatusChanged
	MigrationApplied
)

func (k UpdateKind) String() string {
	switch k {
	case ProgressChanged:
		return "progress-changed"
	case ConfirmationRequested:
		return "confirmation-requested"
	case ConfirmationResolved:
		return "confirmation-resolved"
	case SnapshotReceived:
		return "snapshot-received"
	case StatusChanged:
		return "status-changed"
	case MigrationApplied:
		return "migration-applied"
	default:
		return "unknown"
	}
}

// Update notifies renderers that they should re-read the store.
type Update struct {
	Kind    UpdateKind
	Scope   string
	Card    string
	Variant string
	// Value is the flag's current value for toggle updates.
	Value        bool
	Confirmation *progress.Confirmation
	Resolution   progress.Resolution
	Status       bridge.Status
	// Empty marks a snapshot for a collection with no data yet.
	Empty bool
}
