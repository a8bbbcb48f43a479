package feature

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidVector indicates a malformed feature vector: wrong MFCC arity,
// non-finite values, or a sample shorter than the configured minimum.
var ErrInvalidVector = errors.New("invalid feature vector")

// NumMFCC is the number of mel-frequency cepstral coefficients extracted
// per sample. Each coefficient is summarized as mean, std, min, max.
const NumMFCC = 13

// MFCCDim is the length of the MFCC block of a vector.
const MFCCDim = NumMFCC * 4

// Spectral holds frame-aggregated spectral descriptors.
type Spectral struct {
	CentroidMean  float64 `json:"centroid_mean"`
	CentroidStd   float64 `json:"centroid_std"`
	RolloffMean   float64 `json:"rolloff_mean"`
	RolloffStd    float64 `json:"rolloff_std"`
	BandwidthMean float64 `json:"bandwidth_mean"`
	BandwidthStd  float64 `json:"bandwidth_std"`
	ZeroCrossMean float64 `json:"zero_cross_mean"`
	ZeroCrossStd  float64 `json:"zero_cross_std"`
}

// Prosodic holds pitch, energy, and rate descriptors.
type Prosodic struct {
	PitchMean    float64 `json:"pitch_mean"`
	PitchStd     float64 `json:"pitch_std"`
	PitchMin     float64 `json:"pitch_min"`
	PitchMax     float64 `json:"pitch_max"`
	PitchRange   float64 `json:"pitch_range"`
	Energy       float64 `json:"energy"`
	SpeakingRate float64 `json:"speaking_rate"`
}

// Vector is the immutable numeric summary of one voice sample. It is
// produced by an external feature extractor and consumed read-only by the
// similarity scorer and the decision engine. MFCC carries MFCCDim values:
// mean, std, min, max per coefficient, in coefficient order.
type Vector struct {
	MFCC      []float64 `json:"mfcc"`
	Spectral  Spectral  `json:"spectral"`
	Prosodic  Prosodic  `json:"prosodic"`
	Duration  float64   `json:"duration"`   // seconds
	RMSEnergy float64   `json:"rms_energy"` // root-mean-square amplitude
}

// Validate checks arity, finiteness, and the minimum sample duration.
// Vectors that fail validation must never enter the profile store.
func (v Vector) Validate(minDuration time.Duration) error {
	if len(v.MFCC) != MFCCDim {
		return fmt.Errorf("%w: expected %d MFCC values, got %d", ErrInvalidVector, MFCCDim, len(v.MFCC))
	}
	for i, x := range v.MFCC {
		if !isFinite(x) {
			return fmt.Errorf("%w: non-finite MFCC value at index %d", ErrInvalidVector, i)
		}
	}
	for name, x := range v.scalarFields() {
		if !isFinite(x) {
			return fmt.Errorf("%w: non-finite %s", ErrInvalidVector, name)
		}
	}
	if v.Duration < minDuration.Seconds() {
		return fmt.Errorf("%w: duration %.2fs below minimum %.2fs", ErrInvalidVector, v.Duration, minDuration.Seconds())
	}
	return nil
}

// Clone returns a deep copy. Store and engine code hands out clones so a
// caller can never mutate a persisted vector through a shared slice.
func (v Vector) Clone() Vector {
	c := v
	c.MFCC = make([]float64, len(v.MFCC))
	copy(c.MFCC, v.MFCC)
	return c
}

// MFCC32 returns the MFCC block as float32, the element type pgvector
// columns are stored with.
func (v Vector) MFCC32() []float32 {
	out := make([]float32, len(v.MFCC))
	for i, x := range v.MFCC {
		out[i] = float32(x)
	}
	return out
}

func (v Vector) scalarFields() map[string]float64 {
	s, p := v.Spectral, v.Prosodic
	return map[string]float64{
		"spectral centroid mean":  s.CentroidMean,
		"spectral centroid std":   s.CentroidStd,
		"spectral rolloff mean":   s.RolloffMean,
		"spectral rolloff std":    s.RolloffStd,
		"spectral bandwidth mean": s.BandwidthMean,
		"spectral bandwidth std":  s.BandwidthStd,
		"zero crossing mean":      s.ZeroCrossMean,
		"zero crossing std":       s.ZeroCrossStd,
		"pitch mean":              p.PitchMean,
		"pitch std":               p.PitchStd,
		"pitch min":               p.PitchMin,
		"pitch max":               p.PitchMax,
		"pitch range":             p.PitchRange,
		"energy":                  p.Energy,
		"speaking rate":           p.SpeakingRate,
		"duration":                v.Duration,
		"rms energy":              v.RMSEnergy,
	}
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// QualityScore estimates how usable a sample is for matching, in [0,1].
// Longer, louder recordings with detected pitch score higher.
func (v Vector) QualityScore() float64 {
	score := 0.5
	if v.RMSEnergy > 0.01 {
		score += 0.1
	}
	if v.RMSEnergy > 0.05 {
		score += 0.1
	}
	if v.Duration >= 3.0 {
		score += 0.1
	}
	if v.Duration >= 5.0 {
		score += 0.1
	}
	if v.Prosodic.PitchMean > 0 {
		score += 0.1
	}
	return math.Min(1.0, score)
}
