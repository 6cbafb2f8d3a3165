package swing

import "math"

const (
	// DefaultTargetSizeMB is the upload size the planner aims for.
	DefaultTargetSizeMB = 10.0

	// HardLimitMB is the payload ceiling of the AI ingestion API.
	HardLimitMB = 15.0

	// SafetyMarginMB keeps estimates clear of HardLimitMB.
	SafetyMarginMB = 0.5

	// MinEstimateMB is the smallest size EstimateCompressedSize reports.
	MinEstimateMB = 0.5
)

// SafeCeilingMB is the largest size a plan may project to.
const SafeCeilingMB = HardLimitMB - SafetyMarginMB

// compressionTier maps a size/target ratio band to a plan.
// quality = factor * target / size.
type compressionTier struct {
	maxRatio   float64
	factor     float64
	resolution Resolution
	aggressive bool
}

var compressionTiers = []compressionTier{
	{maxRatio: 1.5, factor: 0.9, resolution: ResolutionOriginal},
	{maxRatio: 2.5, factor: 0.8, resolution: ResolutionOriginal},
	{maxRatio: 8, factor: 0.7, resolution: Resolution720p, aggressive: true},
	{maxRatio: math.Inf(1), factor: 0.6, resolution: Resolution720p, aggressive: true},
}

// EffectiveTargetMB clamps a requested target to (0, SafeCeilingMB].
// Non-positive targets fall back to DefaultTargetSizeMB.
func EffectiveTargetMB(targetMB float64) float64 {
	if targetMB <= 0 || math.IsNaN(targetMB) {
		targetMB = DefaultTargetSizeMB
	}
	return math.Min(targetMB, SafeCeilingMB)
}

// PlanCompression chooses a compression level for meta so that
// meta.SizeMB * quality never exceeds SafeCeilingMB.
func PlanCompression(meta VideoMetadata, targetMB float64) CompressionLevel {
	target := EffectiveTargetMB(targetMB)
	size := meta.SizeMB

	if size <= target {
		return CompressionLevel{Quality: 1.0, Resolution: ResolutionOriginal}
	}

	ratio := size / target
	for _, tier := range compressionTiers {
		if ratio <= tier.maxRatio {
			return CompressionLevel{
				Quality:    tier.factor * target / size,
				Resolution: tier.resolution,
				Aggressive: tier.aggressive,
			}
		}
	}

	// Unreachable: the last tier is unbounded.
	last := compressionTiers[len(compressionTiers)-1]
	return CompressionLevel{Quality: last.factor * target / size, Resolution: last.resolution, Aggressive: true}
}

// resolutionFactor approximates the size reduction of a downscale alone.
func resolutionFactor(r Resolution) float64 {
	switch r {
	case Resolution720p:
		return 0.75
	case Resolution480p:
		return 0.5
	default:
		return 1.0
	}
}

// EstimateCompressedSize predicts the output size of compressing a video of
// originalMB at level, for previews before any encoding runs. The estimate
// is clamped to [MinEstimateMB, 0.95*originalMB]; the upper bound wins when
// the original is smaller than the floor.
func EstimateCompressedSize(originalMB float64, level CompressionLevel) float64 {
	quality := level.Quality
	if quality <= 0 || quality > 1 {
		quality = 1
	}
	estimate := originalMB * quality * resolutionFactor(level.Resolution)

	upper := originalMB * 0.95
	if estimate < MinEstimateMB {
		estimate = MinEstimateMB
	}
	if estimate > upper {
		estimate = upper
	}
	return estimate
}
