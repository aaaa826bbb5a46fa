package digestive

import "fmt"

// Tier is a discrete bucket T0 (hottest, uncompressed) through T4
// (coldest, maximally compressed). The byte values are stable on
// disk; do not reorder.
type Tier uint8

const (
	TierT0 Tier = 0
	TierT1 Tier = 1
	TierT2 Tier = 2
	TierT3 Tier = 3
	TierT4 Tier = 4
)

func (t Tier) String() string {
	switch t {
	case TierT0:
		return "T0"
	case TierT1:
		return "T1"
	case TierT2:
		return "T2"
	case TierT3:
		return "T3"
	case TierT4:
		return "T4"
	default:
		return fmt.Sprintf("T?(%d)", uint8(t))
	}
}

// Valid reports whether t is one of the five recognized tiers.
func (t Tier) Valid() bool { return t <= TierT4 }

// Algorithm identifies a compression algorithm recorded against an
// entry's descriptor. Byte values are stable on disk; do not reorder.
type Algorithm uint8

const (
	AlgorithmNone       Algorithm = 0
	AlgorithmLZ4Fast    Algorithm = 1
	AlgorithmLZ4High    Algorithm = 2
	AlgorithmZstdFast   Algorithm = 3
	AlgorithmZstdMedium Algorithm = 4
	AlgorithmZstdMax    Algorithm = 5
)

func (a Algorithm) String() string {
	switch a {
	case AlgorithmNone:
		return "NONE"
	case AlgorithmLZ4Fast:
		return "LZ4_FAST"
	case AlgorithmLZ4High:
		return "LZ4_HIGH"
	case AlgorithmZstdFast:
		return "ZSTD_FAST"
	case AlgorithmZstdMedium:
		return "ZSTD_MEDIUM"
	case AlgorithmZstdMax:
		return "ZSTD_MAX"
	default:
		return fmt.Sprintf("ALGO?(%d)", uint8(a))
	}
}

// Valid reports whether a is one of the six recognized algorithms.
func (a Algorithm) Valid() bool { return a <= AlgorithmZstdMax }

// ReorgStrategy selects when an automatic reorganization pass fires.
type ReorgStrategy uint8

const (
	ReorgManual      ReorgStrategy = 0
	ReorgEveryNOps   ReorgStrategy = 1
	ReorgPeriodic    ReorgStrategy = 2
	ReorgAdaptive    ReorgStrategy = 3
)

func (s ReorgStrategy) String() string {
	switch s {
	case ReorgManual:
		return "MANUAL"
	case ReorgEveryNOps:
		return "EVERY_N_OPS"
	case ReorgPeriodic:
		return "PERIODIC"
	case ReorgAdaptive:
		return "ADAPTIVE"
	default:
		return fmt.Sprintf("REORG?(%d)", uint8(s))
	}
}

// HeatDecayStrategy selects how heat values decay over time.
type HeatDecayStrategy uint8

const (
	DecayNone        HeatDecayStrategy = 0
	DecayExponential HeatDecayStrategy = 1
	DecayLinear      HeatDecayStrategy = 2
	DecayTimeBased   HeatDecayStrategy = 3
)

func (s HeatDecayStrategy) String() string {
	switch s {
	case DecayNone:
		return "NONE"
	case DecayExponential:
		return "EXPONENTIAL"
	case DecayLinear:
		return "LINEAR"
	case DecayTimeBased:
		return "TIME_BASED"
	default:
		return fmt.Sprintf("DECAY?(%d)", uint8(s))
	}
}

// Descriptor is the per-key entry descriptor stored in the metadata
// store: everything the engine needs to know about a non-chunked
// value without touching its bytes.
type Descriptor struct {
	AccessCount   uint64
	LastAccess    int64 // epoch seconds
	Tier          Tier
	Algorithm     Algorithm
	OriginalSize  uint64
	EncodedSize   uint64
	Heat          float64 // meaningful only when heat decay is enabled
	HeatTracked   bool    // whether Heat is present/maintained for this entry
}
