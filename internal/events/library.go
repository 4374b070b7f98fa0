package events

// Library and storage event types.
const (
	EventLibraryChanged   = "library.changed"
	EventAssetDeleted     = "asset.deleted"
	EventSubtitleAttached = "asset.subtitle.attached"
	EventStorageWarning   = "storage.warning"
	EventStorageCleanup   = "storage.cleanup"
)

// LibraryChanged is emitted after the asset collection has been persisted.
type LibraryChanged struct {
	BaseEvent
	Assets int    `json:"assets"`
	Cause  string `json:"cause"` // "reconcile", "complete", "delete", "subtitle"
}

// AssetDeleted is emitted when an asset leaves the library.
type AssetDeleted struct {
	BaseEvent
	Title     string `json:"title"`
	LocalPath string `json:"local_path"`
	Size      int64  `json:"size_bytes"`
	Evicted   bool   `json:"evicted"`
}

// SubtitleAttached is emitted when a subtitle file is linked to an asset.
type SubtitleAttached struct {
	BaseEvent
	SubtitlePath string `json:"subtitle_path"`
}

// StorageWarning is emitted when usage crosses the warning threshold.
type StorageWarning struct {
	BaseEvent
	UsedBytes  int64   `json:"used_bytes"`
	LimitBytes int64   `json:"limit_bytes"`
	Ratio      float64 `json:"ratio"`
}

// StorageCleanup is emitted after an eviction pass.
type StorageCleanup struct {
	BaseEvent
	BytesFreed int64    `json:"bytes_freed"`
	Deleted    []string `json:"deleted"`
}
