// Package engine fuses signal similarity with AI voice-comparison confidence
// into a single authentication verdict. One request moves through four
// stages: candidates are collected, each candidate is scored (signal + AI,
// concurrently), scores are fused and ranked, and a verdict is decided. The
// engine writes exactly one audit record per completed request, whatever the
// verdict.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voicekey/voicekey/internal/analysis"
	"github.com/voicekey/voicekey/internal/config"
	"github.com/voicekey/voicekey/internal/feature"
	"github.com/voicekey/voicekey/internal/models"
	"github.com/voicekey/voicekey/internal/similarity"
	"github.com/voicekey/voicekey/internal/store"
)

// Store is the slice of the profile store the engine depends on.
type Store interface {
	GetProfileByUsername(ctx context.Context, username string) (*models.Profile, error)
	ListActiveCandidates(ctx context.Context) ([]models.Profile, error)
	NearestProfiles(ctx context.Context, probeMFCC []float32, limit int) ([]uuid.UUID, error)
	RecordAttempt(ctx context.Context, a *models.AuthenticationAttempt) error
}

// maxExactCandidates caps how many profiles get full similarity scoring in
// identification mode. Larger populations are prefiltered by MFCC cosine
// distance in the store.
const maxExactCandidates = 64

// Request is one captured sample to authenticate. A non-empty ClaimedUser
// selects verification mode (single hinted candidate); otherwise the engine
// runs identification against every active profile.
type Request struct {
	Vector      feature.Vector
	ClaimedUser string
	// Audio optionally carries the raw recording for transcription. The
	// transcript improves AI comparison and is kept in the audit record.
	Audio       []byte
	AudioFormat string
}

// CandidateScore is the scored outcome for one candidate profile.
type CandidateScore struct {
	ProfileID    uuid.UUID `json:"profile_id"`
	Username     string    `json:"username"`
	Similarity   float64   `json:"similarity"`
	AIConfidence float64   `json:"ai_confidence"`
	Fused        float64   `json:"fused"`
	AISkipped    bool      `json:"ai_skipped"`
	Commentary   string    `json:"commentary,omitempty"`

	enrolledAt time.Time
}

// Result is the decided outcome. Attempt is the audit record as persisted.
type Result struct {
	Verdict    models.Verdict                `json:"verdict"`
	Matched    *models.Profile               `json:"matched,omitempty"`
	Transcript string                        `json:"transcript,omitempty"`
	Candidates []CandidateScore              `json:"candidates,omitempty"`
	Attempt    *models.AuthenticationAttempt `json:"attempt"`
}

type Engine struct {
	store    Store
	scorer   *similarity.Scorer
	analyzer analysis.Analyzer
	cfg      config.MatchingConfig
}

func New(st Store, scorer *similarity.Scorer, analyzer analysis.Analyzer, cfg config.MatchingConfig) *Engine {
	return &Engine{store: st, scorer: scorer, analyzer: analyzer, cfg: cfg}
}

// Authenticate runs the full decision pipeline for one sample. Malformed
// vectors fail before scoring with feature.ErrInvalidVector and write no
// audit record; every other path writes exactly one.
func (e *Engine) Authenticate(ctx context.Context, req Request) (*Result, error) {
	if err := req.Vector.Validate(e.cfg.MinSampleDuration); err != nil {
		return nil, err
	}

	transcript := e.transcribe(ctx, req)

	// Collected: fix the candidate set.
	verification := req.ClaimedUser != ""
	candidates, hintMissing, err := e.collectCandidates(ctx, req.ClaimedUser)
	if err != nil {
		return nil, err
	}
	if !verification && len(candidates) > maxExactCandidates {
		candidates = e.prefilterCandidates(ctx, req.Vector, candidates)
	}

	// Scored + Fused: score candidates concurrently, then rank.
	scored := e.scoreCandidates(ctx, req.Vector, transcript, candidates)
	rankCandidates(scored)

	// Decided.
	result := e.decide(req, verification, hintMissing, candidates, scored, transcript)

	if err := e.store.RecordAttempt(ctx, result.Attempt); err != nil {
		return nil, fmt.Errorf("record authentication attempt: %w", err)
	}

	slog.Info("authentication decided",
		"verdict", result.Verdict,
		"mode", mode(verification),
		"candidates", len(scored),
		"attempt_id", result.Attempt.ID,
	)
	return result, nil
}

func (e *Engine) transcribe(ctx context.Context, req Request) string {
	if len(req.Audio) == 0 {
		return ""
	}
	t, err := e.analyzer.Transcribe(ctx, req.Audio, req.AudioFormat)
	if err != nil {
		// Degraded, not fatal: comparison proceeds without a transcript.
		slog.Warn("transcription unavailable", "error", err)
		return ""
	}
	return t.Text
}

// collectCandidates returns the candidate profiles for the request mode.
// hintMissing is true in verification mode when the claimed user does not
// exist or is inactive; the request still completes with a reject verdict.
func (e *Engine) collectCandidates(ctx context.Context, claimedUser string) ([]models.Profile, bool, error) {
	if claimedUser == "" {
		candidates, err := e.store.ListActiveCandidates(ctx)
		if err != nil {
			return nil, false, fmt.Errorf("list candidates: %w", err)
		}
		return candidates, false, nil
	}

	p, err := e.store.GetProfileByUsername(ctx, claimedUser)
	if err != nil {
		if errors.Is(err, store.ErrProfileNotFound) {
			return nil, true, nil
		}
		return nil, false, fmt.Errorf("lookup claimed user: %w", err)
	}
	if !p.IsActive {
		return nil, true, nil
	}
	return []models.Profile{*p}, false, nil
}

// prefilterCandidates narrows a large identification candidate set to the
// profiles nearest the probe's MFCC block. Falls back to the full set when
// the prefilter cannot answer.
func (e *Engine) prefilterCandidates(ctx context.Context, probe feature.Vector, candidates []models.Profile) []models.Profile {
	ids, err := e.store.NearestProfiles(ctx, probe.MFCC32(), maxExactCandidates)
	if err != nil || len(ids) == 0 {
		if err != nil {
			slog.Warn("candidate prefilter unavailable, scoring full set", "error", err)
		}
		return candidates
	}

	keep := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		keep[id] = struct{}{}
	}

	filtered := candidates[:0]
	for i := range candidates {
		if _, ok := keep[candidates[i].ID]; ok {
			filtered = append(filtered, candidates[i])
		}
	}
	return filtered
}

// scoreCandidates fans scoring out across the candidate set and joins the
// results. Aggregation is commutative: results are written by index, so the
// completion order of goroutines never changes the final ranking.
func (e *Engine) scoreCandidates(ctx context.Context, probe feature.Vector, transcript string, candidates []models.Profile) []CandidateScore {
	scored := make([]CandidateScore, 0, len(candidates))
	idx := make([]int, 0, len(candidates))
	for i := range candidates {
		// A profile with no enrolled vectors cannot be matched; skip it
		// without failing the request.
		if len(candidates[i].Samples) == 0 {
			continue
		}
		scored = append(scored, CandidateScore{})
		idx = append(idx, i)
	}

	var wg sync.WaitGroup
	for j := range scored {
		wg.Add(1)
		go func(out *CandidateScore, cand *models.Profile) {
			defer wg.Done()
			*out = e.scoreOne(ctx, probe, transcript, cand)
		}(&scored[j], &candidates[idx[j]])
	}
	wg.Wait()

	return scored
}

func (e *Engine) scoreOne(ctx context.Context, probe feature.Vector, transcript string, cand *models.Profile) CandidateScore {
	cs := CandidateScore{
		ProfileID:  cand.ID,
		Username:   cand.Username,
		enrolledAt: cand.Samples[0].CreatedAt,
	}

	vectors := make([]feature.Vector, len(cand.Samples))
	bestIdx := 0
	for i, s := range cand.Samples {
		vectors[i] = s.Vector
	}

	best := 0.0
	for i, v := range vectors {
		score, err := e.scorer.Score(probe, v)
		if err != nil {
			// An unscorable stored vector contributes nothing; the sample
			// was validated at enrollment so this indicates corruption.
			slog.Error("stored vector unscorable", "profile_id", cand.ID, "sample_index", i, "error", err)
			continue
		}
		if score >= best {
			best = score
			bestIdx = i
		}
	}
	cs.Similarity = best

	comparison, err := e.analyzer.CompareVoices(ctx, analysis.CompareRequest{
		Probe:              probe,
		ProbeTranscript:    transcript,
		Enrolled:           vectors[bestIdx],
		EnrolledTranscript: cand.Samples[bestIdx].Transcript,
	})
	if err != nil {
		// AnalysisUnavailable: redistribute the AI weight onto the signal
		// score and flag the degradation for the audit record.
		cs.AISkipped = true
		cs.Fused = cs.Similarity
		cs.Commentary = "AI analysis skipped: " + err.Error()
		return cs
	}

	cs.AIConfidence = comparison.Confidence
	cs.Commentary = comparison.Commentary
	cs.Fused = e.cfg.SimilarityWeight*cs.Similarity + e.cfg.AIWeight*cs.AIConfidence
	return cs
}

// rankCandidates orders by fused score descending, ties broken by higher
// similarity, then by earliest enrollment. Deterministic and reproducible.
func rankCandidates(scored []CandidateScore) {
	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Fused != b.Fused {
			return a.Fused > b.Fused
		}
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		return a.enrolledAt.Before(b.enrolledAt)
	})
}

func (e *Engine) decide(req Request, verification, hintMissing bool, candidates []models.Profile, scored []CandidateScore, transcript string) *Result {
	attempt := &models.AuthenticationAttempt{
		ID:          uuid.New(),
		ClaimedUser: req.ClaimedUser,
		Transcript:  transcript,
	}
	result := &Result{Transcript: transcript, Candidates: scored, Attempt: attempt}

	if hintMissing {
		attempt.Verdict = models.VerdictReject
		attempt.Commentary = fmt.Sprintf("claimed user %q not enrolled or inactive", req.ClaimedUser)
		result.Verdict = attempt.Verdict
		return result
	}

	if len(scored) == 0 {
		// No scorable candidates at all.
		if verification {
			attempt.Verdict = models.VerdictReject
			attempt.Commentary = fmt.Sprintf("claimed user %q has no enrolled voice samples", req.ClaimedUser)
		} else {
			attempt.Verdict = models.VerdictUnknown
			attempt.Commentary = "no enrolled profiles to match against"
		}
		result.Verdict = attempt.Verdict
		return result
	}

	top := scored[0]
	attempt.Similarity = top.Similarity
	attempt.AIConfidence = top.AIConfidence
	attempt.FusedScore = top.Fused
	attempt.AISkipped = top.AISkipped
	attempt.Commentary = top.Commentary

	// Both gates must pass: raw signal similarity and fused confidence.
	accepted := top.Similarity >= e.cfg.SimilarityThreshold && top.Fused >= e.cfg.MinConfidenceScore

	switch {
	case accepted:
		attempt.Verdict = models.VerdictAccept
		attempt.ProfileID = &top.ProfileID
		for i := range candidates {
			if candidates[i].ID == top.ProfileID {
				matched := candidates[i]
				result.Matched = &matched
				break
			}
		}
	case verification:
		attempt.Verdict = models.VerdictReject
		// Failed verifications stay linked to the claimed profile so its
		// history shows them.
		attempt.ProfileID = &top.ProfileID
	default:
		attempt.Verdict = models.VerdictUnknown
	}

	result.Verdict = attempt.Verdict
	return result
}

func mode(verification bool) string {
	if verification {
		return "verification"
	}
	return "identification"
}
