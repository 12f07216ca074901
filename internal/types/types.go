package types

import (
	"time"
)

// JournalEntry is one recorded persist or restore outcome.
type JournalEntry struct {
	ID       string        `json:"id"`
	Time     time.Time     `json:"time"`
	Op       string        `json:"op"`
	Status   string        `json:"status"`
	Format   Format        `json:"format,omitempty"`
	Items    int           `json:"items,omitempty"`
	Volume   string        `json:"volume,omitempty"`
	Error    string        `json:"error,omitempty"`
	Cleanup  int           `json:"cleanup_failures,omitempty"`
	Duration time.Duration `json:"duration"`
}

// DaemonStatus is the runtime state reported over IPC.
type DaemonStatus struct {
	Running       bool          `json:"running"`
	PID           int           `json:"pid"`
	StartedAt     time.Time     `json:"started_at"`
	EngineState   string        `json:"engine_state"`
	VolumeLabel   string        `json:"volume_label"`
	VolumeRoot    string        `json:"volume_root,omitempty"`
	Notifier      string        `json:"notifier"`
	DeviceWatch   bool          `json:"device_watch"`
	LastOutcome   *JournalEntry `json:"last_outcome,omitempty"`
	PendingEvents int           `json:"pending_events"`
}
