package orchestrator

import (
	"time"

	"github.com/lytodo/lytodo/internal/merge"
)

// EventType identifies what a sync event reports.
type EventType string

const (
	// EventPullComplete indicates a pull finished.
	EventPullComplete EventType = "pull_complete"

	// EventPushComplete indicates a push finished.
	EventPushComplete EventType = "push_complete"

	// EventMergeStats carries merge statistics after a pull-merge.
	EventMergeStats EventType = "merge_stats"

	// EventStatus carries a status indicator change.
	EventStatus EventType = "status"
)

// Event is a sync outcome delivered to the configured Notifier. Indicator
// delivery itself (toast, tray, dashboard) is the receiver's concern; the
// orchestrator only exposes outcomes.
type Event struct {
	Type      EventType   `json:"type"`
	Message   string      `json:"message"`
	OK        bool        `json:"ok"`
	Stats     merge.Stats `json:"stats,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Notifier receives sync events. Implementations must not block.
type Notifier interface {
	Notify(Event)
}

func (o *Orchestrator) notify(e Event) {
	if o.config.Notifier == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	o.config.Notifier.Notify(e)
}
