// Package similarity computes a bounded signal-level similarity between two
// voice feature vectors. Scores are symmetric, reflexive, and always in [0,1].
package similarity

import (
	"fmt"
	"math"
	"time"

	"github.com/voicekey/voicekey/internal/feature"
)

// Sub-score weights. MFCC shape carries most of the speaker identity signal;
// spectral and prosodic descriptors refine it.
const (
	mfccWeight     = 0.5
	spectralWeight = 0.25
	prosodicWeight = 0.25
)

// Scorer compares feature vectors. The zero value is not usable; construct
// with NewScorer so the validation minimum is set.
type Scorer struct {
	minDuration time.Duration
}

func NewScorer(minDuration time.Duration) *Scorer {
	return &Scorer{minDuration: minDuration}
}

// Score returns a similarity in [0,1] between two vectors. It is symmetric
// and returns ~1.0 for identical inputs. Fails with feature.ErrInvalidVector
// when either vector is malformed.
func (s *Scorer) Score(a, b feature.Vector) (float64, error) {
	if err := a.Validate(s.minDuration); err != nil {
		return 0, fmt.Errorf("first vector: %w", err)
	}
	if err := b.Validate(s.minDuration); err != nil {
		return 0, fmt.Errorf("second vector: %w", err)
	}

	mfcc := clamp01(cosineSimilarity(a.MFCC, b.MFCC))
	spectral := clamp01(blockSimilarity(spectralValues(a), spectralValues(b)))
	prosodic := clamp01(blockSimilarity(prosodicValues(a), prosodicValues(b)))

	return mfcc*mfccWeight + spectral*spectralWeight + prosodic*prosodicWeight, nil
}

// BestOf scores the probe against every enrolled vector and returns the
// maximum. This is the single multi-sample policy used everywhere: a probe
// matches a profile as well as it matches the profile's closest sample.
// Returns 0 with no error for an empty sample set.
func (s *Scorer) BestOf(probe feature.Vector, enrolled []feature.Vector) (float64, error) {
	best := 0.0
	for _, v := range enrolled {
		score, err := s.Score(probe, v)
		if err != nil {
			return 0, err
		}
		if score > best {
			best = score
		}
	}
	return best, nil
}

// MeanPairwise returns the average similarity across all pairs in a sample
// set, used to judge enrollment consistency. One or fewer samples yields 0.
func (s *Scorer) MeanPairwise(vectors []feature.Vector) (float64, error) {
	var sum float64
	var n int
	for i := 0; i < len(vectors); i++ {
		for j := i + 1; j < len(vectors); j++ {
			score, err := s.Score(vectors[i], vectors[j])
			if err != nil {
				return 0, err
			}
			sum += score
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return sum / float64(n), nil
}

func cosineSimilarity(a, b []float64) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// blockSimilarity averages per-dimension inverse normalized differences:
// 1 - |x-y| / max(|x|, |y|, eps). Each dimension contributes at most 1, so a
// single outlier descriptor cannot push the block outside [0,1].
func blockSimilarity(a, b []float64) float64 {
	const eps = 1e-6
	var sum float64
	for i := range a {
		denom := math.Max(math.Max(math.Abs(a[i]), math.Abs(b[i])), eps)
		sum += clamp01(1 - math.Abs(a[i]-b[i])/denom)
	}
	return sum / float64(len(a))
}

func spectralValues(v feature.Vector) []float64 {
	s := v.Spectral
	return []float64{
		s.CentroidMean, s.CentroidStd,
		s.RolloffMean, s.RolloffStd,
		s.BandwidthMean, s.BandwidthStd,
		s.ZeroCrossMean, s.ZeroCrossStd,
	}
}

func prosodicValues(v feature.Vector) []float64 {
	p := v.Prosodic
	return []float64{
		p.PitchMean, p.PitchStd, p.PitchMin, p.PitchMax, p.PitchRange,
		p.Energy, p.SpeakingRate,
	}
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
