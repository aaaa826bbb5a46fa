// Package tierctrl implements the tier/heat controller (§4.4): given
// an entry's access counter or heat value, decides which tier it
// belongs to, and decides whether a reorganization or heat-decay pass
// should fire now.
package tierctrl

import (
	"math"

	"github.com/Barthelemy-Drabczuk/digestive-database"
)

// heatStepRead is the heat increment applied on every read of a
// non-chunked entry or a whole chunk.
const heatStepRead = 0.1

// heatStepIndexTouch is the smaller heat increment applied to a chunk
// merely touched during a secondary-index range walk, without being
// fully read.
const heatStepIndexTouch = 0.05

// ClassifyFrequency maps an access_count/total_accesses ratio onto a
// tier, per the frequency-mode thresholds in §4.4. If totalAccesses
// is zero, returns T4 (cold-by-default on first insert).
func ClassifyFrequency(accessCount, totalAccesses uint64) digestive.Tier {
	if totalAccesses == 0 {
		return digestive.TierT4
	}
	f := float64(accessCount) / float64(totalAccesses)
	switch {
	case f > 0.30:
		return digestive.TierT0
	case f > 0.15:
		return digestive.TierT1
	case f > 0.05:
		return digestive.TierT2
	case f > 0.01:
		return digestive.TierT3
	default:
		return digestive.TierT4
	}
}

// ClassifyHeat maps a heat value in [0,1] onto a tier, per the
// heat-mode thresholds in §4.4.
func ClassifyHeat(heat float64) digestive.Tier {
	switch {
	case heat > 0.7:
		return digestive.TierT0
	case heat > 0.4:
		return digestive.TierT1
	case heat > 0.2:
		return digestive.TierT2
	case heat > 0.1:
		return digestive.TierT3
	default:
		return digestive.TierT4
	}
}

// Classify picks frequency mode or heat mode depending on whether
// heat decay is enabled, matching §4.4's "two equivalent input modes".
func Classify(cfg digestive.Config, accessCount, totalAccesses uint64, heat float64) digestive.Tier {
	if cfg.EnableHeatDecay {
		return ClassifyHeat(heat)
	}
	return ClassifyFrequency(accessCount, totalAccesses)
}

// HeatOnRead returns the updated heat after a full read (whole entry
// or whole chunk): h <- min(1, h + 0.1).
func HeatOnRead(current float64) float64 {
	return math.Min(1, current+heatStepRead)
}

// HeatOnIndexTouch returns the updated heat after a chunk is merely
// touched during a secondary-index range walk: h <- min(1, h + 0.05).
func HeatOnIndexTouch(current float64) float64 {
	return math.Min(1, current+heatStepIndexTouch)
}

// Decay applies one step of the configured decay strategy to a heat
// value. elapsedSinceAccess and interval are only consulted by
// TIME_BASED decay.
func Decay(strategy digestive.HeatDecayStrategy, current float64, factor, amount float64, elapsedSinceAccess, interval float64) float64 {
	switch strategy {
	case digestive.DecayNone:
		return current
	case digestive.DecayExponential:
		return current * factor
	case digestive.DecayLinear:
		return math.Max(0, current-amount)
	case digestive.DecayTimeBased:
		if interval <= 0 {
			return current
		}
		return current * math.Pow(factor, elapsedSinceAccess/interval)
	default:
		return current
	}
}

// ShouldReorganize evaluates the configured reorganization trigger
// (§4.4). now is the current logical epoch-seconds clock.
func ShouldReorganize(cfg digestive.Config, opsSinceReorg uint64, lastReorgTS, now int64, entryCount uint64) bool {
	switch cfg.ReorgStrategy {
	case digestive.ReorgManual:
		return false
	case digestive.ReorgEveryNOps:
		return opsSinceReorg >= cfg.ReorgThresholdOps
	case digestive.ReorgPeriodic:
		return now-lastReorgTS >= cfg.ReorgThresholdSecs
	case digestive.ReorgAdaptive:
		denom := entryCount
		if denom == 0 {
			denom = 1
		}
		ratio := float64(opsSinceReorg) / float64(denom)
		return ratio >= cfg.ReorgThresholdRatio
	default:
		return false
	}
}

// ShouldApplyHeatDecay reports whether enough logical time has passed
// since the last decay pass to run another one. interval <= 0 means
// decay only ever fires on an explicit call.
func ShouldApplyHeatDecay(enabled bool, lastDecayTS, now int64, intervalSeconds int64) bool {
	if !enabled {
		return false
	}
	if intervalSeconds <= 0 {
		return false
	}
	return now-lastDecayTS >= intervalSeconds
}
