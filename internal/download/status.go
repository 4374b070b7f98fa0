package download

import "slices"

// Status is a queue entry's lifecycle state. Pausing and resolving are
// flags on the entry, not states.
type Status string

const (
	StatusQueued      Status = "queued"
	StatusDownloading Status = "downloading"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

// next lists the states each state may move to. Cancellation ends in
// StatusFailed from either live state.
var next = map[Status][]Status{
	StatusQueued:      {StatusDownloading, StatusFailed},
	StatusDownloading: {StatusCompleted, StatusFailed},
}

// CanTransitionTo reports whether an entry in s may move to target.
func (s Status) CanTransitionTo(target Status) bool {
	return slices.Contains(next[s], target)
}

// IsTerminal reports whether s ends the entry. Terminal entries leave the
// live registries; retrying is a new request.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}
