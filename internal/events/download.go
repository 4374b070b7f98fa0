package events

// Entity types
const (
	EntityDownload = "download"
	EntityAsset    = "asset"
	EntityLibrary  = "library"
	EntityStorage  = "storage"
)

// Event type constants
const (
	EventDownloadQueued        = "download.queued"
	EventDownloadStatusChanged = "download.status.changed"
	EventDownloadProgressed    = "download.progressed"
	EventDownloadCompleted     = "download.completed"
	EventDownloadFailed        = "download.failed"
)

// Failure kinds carried by DownloadFailed.
const (
	FailureConnectivity = "connectivity"
	FailureDNS          = "dns"
	FailureForbidden    = "forbidden"
	FailureResolution   = "resolution"
	FailureTransfer     = "transfer"
	FailureOther        = "other"
)

// DownloadQueued is emitted when a request is admitted to the FIFO.
type DownloadQueued struct {
	BaseEvent
	Title    string `json:"title"`
	URL      string `json:"url"`
	ModuleID string `json:"module_id"`
	Position int    `json:"position"`
}

// DownloadStatusChanged is emitted on every queue entry status transition.
type DownloadStatusChanged struct {
	BaseEvent
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason,omitempty"` // "cancelled", "paused", ...
}

// DownloadProgressed is emitted when coalesced progress moves forward.
type DownloadProgressed struct {
	BaseEvent
	Progress float64 `json:"progress"` // 0.0 - 1.0
}

// DownloadCompleted is emitted after the asset has been recorded in the library.
type DownloadCompleted struct {
	BaseEvent
	AssetID     string            `json:"asset_id"`
	Title       string            `json:"title"`
	LocalPath   string            `json:"local_path"`
	SubtitleURL string            `json:"subtitle_url,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
}

// DownloadFailed is emitted when resolution or transfer gives up.
type DownloadFailed struct {
	BaseEvent
	Title  string `json:"title"`
	Reason string `json:"reason"`
	Kind   string `json:"kind"`
}
