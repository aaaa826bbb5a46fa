package digestive

import "time"

// TierConfig describes the codec slot assigned to a tier. Encode and
// Decode, when non-nil, override the registry's built-in codec for
// this tier (the "capability extension" described in the design
// notes) while Algorithm still records which built-in slot the tier
// is nominally configured for, keeping the on-disk algorithm byte
// stable even when a caller supplies custom compression.
type TierConfig struct {
	Algorithm  Algorithm
	AllowLossy bool // reserved for future lossy codecs; unused today

	Encode func(data []byte) ([]byte, error)
	Decode func(data []byte, originalSize int) ([]byte, error)
}

// Config is the full set of recognized engine options (§6).
type Config struct {
	AllowDeletion      bool
	MaxSizeBytes       uint64
	CompressionEnabled bool

	// Tiers holds exactly 5 entries, indexed by Tier (T0..T4).
	Tiers [5]TierConfig

	ReorgStrategy      ReorgStrategy
	ReorgThresholdOps   uint64
	ReorgThresholdSecs  int64
	ReorgThresholdRatio float64

	LazyPersistence bool
	WriteBufferSize uint64

	EnableChunking    bool
	ChunkingThreshold uint64
	ChunkSize         uint64

	EnableHeatDecay    bool
	HeatDecayStrategy  HeatDecayStrategy
	HeatDecayFactor    float64
	HeatDecayAmount    float64
	HeatDecayInterval  time.Duration
}

// defaultTiers returns the stock algorithm assignment for T0..T4:
// hottest uncompressed, coldest maximally compressed.
func defaultTiers() [5]TierConfig {
	return [5]TierConfig{
		{Algorithm: AlgorithmNone},
		{Algorithm: AlgorithmLZ4Fast},
		{Algorithm: AlgorithmLZ4High},
		{Algorithm: AlgorithmZstdFast},
		{Algorithm: AlgorithmZstdMax},
	}
}

// DefaultConfig is the stock configuration: frequency-mode tiering,
// EVERY_N_OPS reorganization, no chunking, no heat decay. Matches the
// original source's default_config().
func DefaultConfig() Config {
	return Config{
		AllowDeletion:      true,
		MaxSizeBytes:       0, // unlimited
		CompressionEnabled: true,
		Tiers:              defaultTiers(),
		ReorgStrategy:      ReorgEveryNOps,
		ReorgThresholdOps:  100,
		LazyPersistence:    false,
		WriteBufferSize:    4 * 1024 * 1024,
		EnableChunking:     false,
		ChunkingThreshold:  8 * 1024 * 1024,
		ChunkSize:          1 * 1024 * 1024,
		EnableHeatDecay:    false,
	}
}

// EmbeddedConfig favors a small footprint: tight size cap, aggressive
// eviction, small write buffer, chunking disabled (embedded workloads
// are assumed to store small values). Matches config_for_embedded().
func EmbeddedConfig() Config {
	c := DefaultConfig()
	c.MaxSizeBytes = 64 * 1024 * 1024
	c.WriteBufferSize = 256 * 1024
	c.ReorgThresholdOps = 50
	return c
}

// CCTVConfig favors large chunked payloads and heat-decay tiering
// over frequency counting, since surveillance workloads are dominated
// by recency rather than overall frequency. Matches config_for_cctv().
func CCTVConfig() Config {
	c := DefaultConfig()
	c.EnableChunking = true
	c.ChunkingThreshold = 4 * 1024 * 1024
	c.ChunkSize = 2 * 1024 * 1024
	c.EnableHeatDecay = true
	c.HeatDecayStrategy = DecayTimeBased
	c.HeatDecayFactor = 0.85
	c.HeatDecayInterval = 10 * time.Minute
	c.ReorgStrategy = ReorgPeriodic
	c.ReorgThresholdSecs = int64((30 * time.Minute).Seconds())
	c.MaxSizeBytes = 200 * 1024 * 1024 * 1024
	return c
}

// ImagesConfig enables chunking at a threshold sized for typical
// high-resolution images, favoring ZSTD tiers since images with
// metadata/uncompressed regions still benefit from generic
// compression at rest. Matches config_for_images().
func ImagesConfig() Config {
	c := DefaultConfig()
	c.EnableChunking = true
	c.ChunkingThreshold = 2 * 1024 * 1024
	c.ChunkSize = 512 * 1024
	c.Tiers[TierT1].Algorithm = AlgorithmZstdFast
	c.Tiers[TierT2].Algorithm = AlgorithmZstdFast
	return c
}

// VideosConfig enables chunking at a threshold and chunk size sized
// for video segments, and leans on frequency mode since watched
// segments cluster. Matches config_for_videos().
func VideosConfig() Config {
	c := DefaultConfig()
	c.EnableChunking = true
	c.ChunkingThreshold = 8 * 1024 * 1024
	c.ChunkSize = 4 * 1024 * 1024
	c.MaxSizeBytes = 500 * 1024 * 1024 * 1024
	return c
}

// TextConfig favors the strongest lossless tiers earlier, since text
// (logs, JSON, SQL, configs) keeps compressing well even under
// moderate CPU budgets, and disables chunking (text entries are
// assumed small). Matches config_for_text().
func TextConfig() Config {
	c := DefaultConfig()
	c.Tiers[TierT1].Algorithm = AlgorithmZstdFast
	c.Tiers[TierT2].Algorithm = AlgorithmZstdMedium
	c.Tiers[TierT3].Algorithm = AlgorithmZstdMedium
	c.Tiers[TierT4].Algorithm = AlgorithmZstdMax
	c.EnableChunking = false
	return c
}
