package metadata

// --- SQLite Keys ---
// These keys are used for the 'key' column in the 'metadata' SQLite table.
const (
	// LastExposureSnapshotAtKey stores the RFC3339 timestamp of the last
	// successful item-exposure snapshot written back to SQLite.
	LastExposureSnapshotAtKey = "last_exposure_snapshot_at"

	// SnapshotServedRoundsKey stores the total number of rounds served as of
	// the last successful snapshot.
	SnapshotServedRoundsKey = "snapshot_served_rounds"
)

// --- Redis Keys ---
// These keys are used for storing live metadata in Redis.
const (
	// RedisServedRoundsKey is a Redis String holding the live counter of
	// rounds served since the current cache generation was primed.
	RedisServedRoundsKey = "meta:served_rounds"
)
