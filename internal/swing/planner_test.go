package swing_test

import (
	"math"
	"testing"

	"myswing/internal/swing"
)

func meta(sizeMB float64) swing.VideoMetadata {
	return swing.VideoMetadata{SizeMB: sizeMB, Source: swing.SourceGallerySelected}
}

func TestPlanCompression_Tiers(t *testing.T) {
	tests := []struct {
		name       string
		sizeMB     float64
		wantNoop   bool
		wantRes    swing.Resolution
		wantAggr   bool
		wantFactor float64
	}{
		{name: "under target", sizeMB: 8, wantNoop: true, wantRes: swing.ResolutionOriginal},
		{name: "exactly target", sizeMB: 10, wantNoop: true, wantRes: swing.ResolutionOriginal},
		{name: "light", sizeMB: 14, wantRes: swing.ResolutionOriginal, wantFactor: 0.9},
		{name: "moderate", sizeMB: 22, wantRes: swing.ResolutionOriginal, wantFactor: 0.8},
		{name: "heavy", sizeMB: 26.9, wantRes: swing.Resolution720p, wantAggr: true, wantFactor: 0.7},
		{name: "extreme", sizeMB: 120, wantRes: swing.Resolution720p, wantAggr: true, wantFactor: 0.6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := swing.PlanCompression(meta(tt.sizeMB), 10)
			if got.IsNoop() != tt.wantNoop {
				t.Fatalf("IsNoop() = %v, want %v (%+v)", got.IsNoop(), tt.wantNoop, got)
			}
			if got.Resolution != tt.wantRes || got.Aggressive != tt.wantAggr {
				t.Errorf("PlanCompression() = %+v", got)
			}
			if !tt.wantNoop {
				want := tt.wantFactor * 10 / tt.sizeMB
				if math.Abs(got.Quality-want) > 1e-9 {
					t.Errorf("Quality = %v, want %v", got.Quality, want)
				}
			}
		})
	}
}

func TestPlanCompression_NeverProjectsPastCeiling(t *testing.T) {
	for _, target := range []float64{0, 5, 10, 14.5, 20, 100} {
		for size := 0.5; size <= 600; size += 0.7 {
			level := swing.PlanCompression(meta(size), target)
			if level.Quality <= 0 || level.Quality > 1 {
				t.Fatalf("size %.1f target %.1f: quality %v out of (0, 1]", size, target, level.Quality)
			}
			if size > swing.SafeCeilingMB && size*level.Quality > swing.SafeCeilingMB+1e-9 {
				t.Fatalf("size %.1f target %.1f: projected %.2fMB exceeds ceiling", size, target, size*level.Quality)
			}
		}
	}
}

func TestPlanCompression_LargeVideosAreAggressive(t *testing.T) {
	for _, size := range []float64{80, 95, 150, 400} {
		level := swing.PlanCompression(meta(size), 0)
		if !level.Aggressive || level.Resolution != swing.Resolution720p {
			t.Errorf("size %.0f: plan = %+v, want aggressive 720p", size, level)
		}
	}
}

func TestEffectiveTargetMB(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{in: 0, want: 10},
		{in: -1, want: 10},
		{in: math.NaN(), want: 10},
		{in: 8, want: 8},
		{in: 14.5, want: 14.5},
		{in: 20, want: 14.5},
	}
	for _, tt := range tests {
		if got := swing.EffectiveTargetMB(tt.in); got != tt.want {
			t.Errorf("EffectiveTargetMB(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestEstimateCompressedSize(t *testing.T) {
	tests := []struct {
		name     string
		original float64
		level    swing.CompressionLevel
		want     float64
	}{
		{name: "quality only", original: 20, level: swing.CompressionLevel{Quality: 0.5}, want: 10},
		{name: "with 720p", original: 40, level: swing.CompressionLevel{Quality: 0.5, Resolution: swing.Resolution720p}, want: 15},
		{name: "with 480p", original: 40, level: swing.CompressionLevel{Quality: 0.5, Resolution: swing.Resolution480p}, want: 10},
		{name: "floor", original: 2, level: swing.CompressionLevel{Quality: 0.1}, want: 0.5},
		{name: "upper bound", original: 10, level: swing.CompressionLevel{Quality: 1}, want: 9.5},
		{name: "tiny original", original: 0.4, level: swing.CompressionLevel{Quality: 0.5}, want: 0.38},
		{name: "invalid quality", original: 10, level: swing.CompressionLevel{Quality: 3}, want: 9.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := swing.EstimateCompressedSize(tt.original, tt.level); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("EstimateCompressedSize() = %v, want %v", got, tt.want)
			}
		})
	}
}
