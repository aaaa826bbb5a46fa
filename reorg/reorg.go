// Package reorg implements the reorganizer (§4.5): walks all
// non-chunked entries, computes each entry's target tier, and
// re-encodes entries whose tier/algorithm changed.
package reorg

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Barthelemy-Drabczuk/digestive-database"
	"github.com/Barthelemy-Drabczuk/digestive-database/blobstore"
	"github.com/Barthelemy-Drabczuk/digestive-database/codec"
	"github.com/Barthelemy-Drabczuk/digestive-database/metastore"
	"github.com/Barthelemy-Drabczuk/digestive-database/tierctrl"
)

// Result summarizes one reorganization pass.
type Result struct {
	Scanned   int
	Recoded   int
	Skipped   int
	DecodeErr int
}

// Reorganizer owns no state of its own beyond its dependencies; every
// run is a fresh, order-independent walk over the stores it is given
// (§4.5: "the pass is order-independent").
type Reorganizer struct {
	meta    *metastore.Store
	blobs   *blobstore.Store
	codecs  *codec.Registry
	logger  *slog.Logger
	metrics *Metrics
}

// New builds a Reorganizer over the given stores. logger and metrics
// may be nil.
func New(meta *metastore.Store, blobs *blobstore.Store, codecs *codec.Registry, logger *slog.Logger, metrics *Metrics) *Reorganizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reorganizer{meta: meta, blobs: blobs, codecs: codecs, logger: logger, metrics: metrics}
}

// Run performs one full reorganization pass against cfg's tier
// configuration. It returns no error: a per-entry recode failure
// leaves that entry untouched, logs a warning, is counted in
// Result.DecodeErr, and the pass continues (§4.5).
func (r *Reorganizer) Run(ctx context.Context, cfg digestive.Config, totalAccesses uint64) Result {
	result := Result{}
	snapshot := r.meta.Snapshot()

	for key, descriptor := range snapshot {
		select {
		case <-ctx.Done():
			return result
		default:
		}
		result.Scanned++

		newTier := tierctrl.Classify(cfg, descriptor.AccessCount, totalAccesses, descriptor.Heat)
		tierCfg := cfg.Tiers[newTier]
		wantAlgo, _ := compressionAlgo(cfg, tierCfg)

		if newTier == descriptor.Tier && wantAlgo == descriptor.Algorithm {
			result.Skipped++
			continue
		}

		if err := r.recode(key, descriptor, newTier, tierCfg, cfg); err != nil {
			result.DecodeErr++
			r.logger.Warn("reorganize: leaving entry untouched after decode failure",
				"key", key, "error", err)
			continue
		}
		result.Recoded++
	}

	if r.metrics != nil {
		r.metrics.recordRun(result)
	}
	r.logger.Info("reorganize: pass complete",
		"scanned", result.Scanned, "recoded", result.Recoded,
		"skipped", result.Skipped, "decode_errors", result.DecodeErr)

	return result
}

// compressionAlgo returns the algorithm/override pair to encode with
// for tierCfg, forcing NONE when compression is disabled for this
// store (§6 "compression_enabled").
func compressionAlgo(cfg digestive.Config, tierCfg digestive.TierConfig) (digestive.Algorithm, func([]byte) ([]byte, error)) {
	if !cfg.CompressionEnabled {
		return digestive.AlgorithmNone, nil
	}
	return tierCfg.Algorithm, tierCfg.Encode
}

func (r *Reorganizer) recode(key string, descriptor digestive.Descriptor, newTier digestive.Tier, tierCfg digestive.TierConfig, cfg digestive.Config) error {
	stored, ok := r.blobs.Get(key)
	if !ok {
		return fmt.Errorf("blob store missing bytes for tracked key %q", key)
	}

	oldTierCfg := cfg.Tiers[descriptor.Tier]
	decoded, err := r.codecs.Decode(descriptor.Algorithm, oldTierCfg.Decode, stored, int(descriptor.OriginalSize))
	if err != nil {
		return fmt.Errorf("decode under %s: %w", descriptor.Algorithm, err)
	}

	algo, encodeOverride := compressionAlgo(cfg, tierCfg)
	encoded, usedAlgo, err := r.codecs.Encode(algo, encodeOverride, decoded)
	if err != nil {
		return fmt.Errorf("encode under %s: %w", algo, err)
	}

	r.blobs.Put(key, encoded)
	r.meta.Mutate(key, func(d *digestive.Descriptor) {
		d.Tier = newTier
		d.Algorithm = usedAlgo
		d.EncodedSize = uint64(len(encoded))
	})
	return nil
}
