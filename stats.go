package digestive

// Stats summarizes an engine instance's current state. Unlike the
// mandated on-disk layouts, this type is not a wire format — fields
// may be added without breaking anything (the DataFileChecksum
// diagnostic below is one such addition).
type Stats struct {
	EntryCount        uint64
	ChunkedEntryCount uint64
	TotalOriginalSize uint64
	TotalEncodedSize  uint64
	EntriesPerTier    [5]uint64
	TotalAccesses     uint64
	OpsSinceReorg     uint64
	LastReorgUnix     int64

	// DataFileChecksum is a BLAKE3 digest of the rewritten data.db
	// computed at the most recent flush, useful as a cheap tamper/
	// corruption diagnostic across backups. Not part of any on-disk
	// record layout.
	DataFileChecksum string
}
