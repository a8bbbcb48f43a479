package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicekey/voicekey/internal/analysis"
	"github.com/voicekey/voicekey/internal/config"
	"github.com/voicekey/voicekey/internal/feature"
	"github.com/voicekey/voicekey/internal/models"
	"github.com/voicekey/voicekey/internal/similarity"
	"github.com/voicekey/voicekey/internal/store"
)

// fakeStore implements Store in memory.
type fakeStore struct {
	mu         sync.Mutex
	byUsername map[string]*models.Profile
	candidates []models.Profile
	attempts   []models.AuthenticationAttempt
}

func newFakeStore(profiles ...models.Profile) *fakeStore {
	fs := &fakeStore{byUsername: make(map[string]*models.Profile)}
	for i := range profiles {
		fs.byUsername[profiles[i].Username] = &profiles[i]
		if profiles[i].IsActive {
			fs.candidates = append(fs.candidates, profiles[i])
		}
	}
	return fs
}

func (fs *fakeStore) GetProfileByUsername(_ context.Context, username string) (*models.Profile, error) {
	if p, ok := fs.byUsername[username]; ok {
		return p, nil
	}
	return nil, store.ErrProfileNotFound
}

func (fs *fakeStore) ListActiveCandidates(_ context.Context) ([]models.Profile, error) {
	return fs.candidates, nil
}

func (fs *fakeStore) NearestProfiles(context.Context, []float32, int) ([]uuid.UUID, error) {
	return nil, nil
}

func (fs *fakeStore) RecordAttempt(_ context.Context, a *models.AuthenticationAttempt) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.attempts = append(fs.attempts, *a)
	return nil
}

// stubAnalyzer returns canned responses.
type stubAnalyzer struct {
	transcript    string
	transcribeErr error
	confidence    float64
	compareErr    error
}

func (s *stubAnalyzer) Transcribe(context.Context, []byte, string) (*analysis.Transcription, error) {
	if s.transcribeErr != nil {
		return nil, s.transcribeErr
	}
	return &analysis.Transcription{Text: s.transcript}, nil
}

func (s *stubAnalyzer) CompareVoices(context.Context, analysis.CompareRequest) (*analysis.Comparison, error) {
	if s.compareErr != nil {
		return nil, s.compareErr
	}
	return &analysis.Comparison{Confidence: s.confidence, Commentary: "stub comparison"}, nil
}

func (s *stubAnalyzer) DescribeVoice(context.Context, analysis.ProfileRequest) (string, error) {
	return "stub profile", nil
}

func makeVector(scale float64) feature.Vector {
	mfcc := make([]float64, feature.MFCCDim)
	for i := range mfcc {
		mfcc[i] = scale * (0.5 + float64(i)*0.1)
	}
	return feature.Vector{
		MFCC: mfcc,
		Spectral: feature.Spectral{
			CentroidMean: scale * 1800, CentroidStd: scale * 300,
			RolloffMean: scale * 3500, RolloffStd: scale * 600,
			BandwidthMean: scale * 1500, BandwidthStd: scale * 250,
			ZeroCrossMean: scale * 0.08, ZeroCrossStd: scale * 0.02,
		},
		Prosodic: feature.Prosodic{
			PitchMean: scale * 140, PitchStd: scale * 25,
			PitchMin: scale * 90, PitchMax: scale * 220,
			PitchRange: scale * 130, Energy: scale * 0.04, SpeakingRate: scale * 3.2,
		},
		Duration:  4.5,
		RMSEnergy: 0.06,
	}
}

func makeProfile(username string, enrolledAt time.Time, sampleScales ...float64) models.Profile {
	p := models.Profile{
		ID:       uuid.New(),
		Username: username,
		IsActive: true,
	}
	for i, scale := range sampleScales {
		p.Samples = append(p.Samples, models.VoiceSample{
			ID:          uuid.New(),
			ProfileID:   p.ID,
			SampleIndex: i,
			Vector:      makeVector(scale),
			CreatedAt:   enrolledAt.Add(time.Duration(i) * time.Minute),
		})
	}
	return p
}

func testConfig() config.MatchingConfig {
	return config.MatchingConfig{
		SimilarityThreshold: 0.8,
		MinConfidenceScore:  0.7,
		MinSampleCount:      3,
		SimilarityWeight:    0.6,
		AIWeight:            0.4,
		MinSampleDuration:   3 * time.Second,
	}
}

func newTestEngine(st Store, an analysis.Analyzer) *Engine {
	return New(st, similarity.NewScorer(3*time.Second), an, testConfig())
}

func TestAuthenticateInvalidVectorWritesNoAttempt(t *testing.T) {
	fs := newFakeStore(makeProfile("alice", time.Now(), 1, 1, 1))
	eng := newTestEngine(fs, &stubAnalyzer{confidence: 0.9})

	bad := makeVector(1)
	bad.MFCC = bad.MFCC[:5]

	_, err := eng.Authenticate(context.Background(), Request{Vector: bad})
	assert.ErrorIs(t, err, feature.ErrInvalidVector)
	assert.Empty(t, fs.attempts, "rejected input must not reach the audit log")
}

func TestAuthenticateIdentificationAccept(t *testing.T) {
	alice := makeProfile("alice", time.Now(), 1, 1.1)
	bob := makeProfile("bob", time.Now(), -1)
	fs := newFakeStore(alice, bob)
	eng := newTestEngine(fs, &stubAnalyzer{confidence: 0.9})

	res, err := eng.Authenticate(context.Background(), Request{Vector: makeVector(1)})
	require.NoError(t, err)

	assert.Equal(t, models.VerdictAccept, res.Verdict)
	require.NotNil(t, res.Matched)
	assert.Equal(t, "alice", res.Matched.Username)

	require.Len(t, fs.attempts, 1)
	attempt := fs.attempts[0]
	require.NotNil(t, attempt.ProfileID)
	assert.Equal(t, alice.ID, *attempt.ProfileID)
	assert.InDelta(t, 1.0, attempt.Similarity, 1e-9)
	assert.InDelta(t, 0.6*1.0+0.4*0.9, attempt.FusedScore, 1e-9)
	assert.False(t, attempt.AISkipped)
}

func TestAuthenticateDegradesWhenAnalysisDown(t *testing.T) {
	alice := makeProfile("alice", time.Now(), 1)
	fs := newFakeStore(alice)
	eng := newTestEngine(fs, &stubAnalyzer{
		compareErr: analysis.ErrAnalysisUnavailable,
	})

	res, err := eng.Authenticate(context.Background(), Request{Vector: makeVector(1), ClaimedUser: "alice"})
	require.NoError(t, err)

	// Signal similarity alone clears both gates when the probe matches.
	assert.Equal(t, models.VerdictAccept, res.Verdict)
	require.Len(t, fs.attempts, 1)
	attempt := fs.attempts[0]
	assert.True(t, attempt.AISkipped)
	assert.InDelta(t, attempt.Similarity, attempt.FusedScore, 1e-12, "fused score falls back to raw similarity")
	assert.Zero(t, attempt.AIConfidence)
	assert.Contains(t, attempt.Commentary, "AI analysis skipped")
}

func TestAuthenticateIdentifiesCorrectProfileWithAnalysisDown(t *testing.T) {
	a := makeProfile("consistent", time.Now(), 1, 1.02, 0.98)
	b := makeProfile("distinct", time.Now(), -1, -1.1, -0.9)
	fs := newFakeStore(a, b)
	eng := newTestEngine(fs, &stubAnalyzer{compareErr: analysis.ErrAnalysisUnavailable})

	res, err := eng.Authenticate(context.Background(), Request{Vector: makeVector(1)})
	require.NoError(t, err)

	assert.Equal(t, models.VerdictAccept, res.Verdict)
	require.NotNil(t, res.Matched)
	assert.Equal(t, "consistent", res.Matched.Username)
	require.Len(t, fs.attempts, 1)
	assert.True(t, fs.attempts[0].AISkipped)
	assert.GreaterOrEqual(t, fs.attempts[0].Similarity, 0.8)
	assert.GreaterOrEqual(t, fs.attempts[0].FusedScore, 0.7)
}

func TestAuthenticateVerificationUnknownUser(t *testing.T) {
	fs := newFakeStore(makeProfile("alice", time.Now(), 1))
	eng := newTestEngine(fs, &stubAnalyzer{confidence: 0.9})

	res, err := eng.Authenticate(context.Background(), Request{Vector: makeVector(1), ClaimedUser: "mallory"})
	require.NoError(t, err)

	assert.Equal(t, models.VerdictReject, res.Verdict)
	require.Len(t, fs.attempts, 1)
	attempt := fs.attempts[0]
	assert.Nil(t, attempt.ProfileID)
	assert.Equal(t, "mallory", attempt.ClaimedUser)
	assert.Contains(t, attempt.Commentary, "not enrolled or inactive")
}

func TestAuthenticateVerificationInactiveUser(t *testing.T) {
	alice := makeProfile("alice", time.Now(), 1)
	alice.IsActive = false
	fs := newFakeStore(alice)
	eng := newTestEngine(fs, &stubAnalyzer{confidence: 0.9})

	res, err := eng.Authenticate(context.Background(), Request{Vector: makeVector(1), ClaimedUser: "alice"})
	require.NoError(t, err)

	assert.Equal(t, models.VerdictReject, res.Verdict)
	require.Len(t, fs.attempts, 1)
	assert.Nil(t, fs.attempts[0].ProfileID)
}

func TestAuthenticateVerificationLowSimilarityRejects(t *testing.T) {
	alice := makeProfile("alice", time.Now(), -1)
	fs := newFakeStore(alice)
	// AI is maximally confident but the signal gate still fails.
	eng := newTestEngine(fs, &stubAnalyzer{confidence: 1.0})

	res, err := eng.Authenticate(context.Background(), Request{Vector: makeVector(1), ClaimedUser: "alice"})
	require.NoError(t, err)

	assert.Equal(t, models.VerdictReject, res.Verdict)
	require.Len(t, fs.attempts, 1)
	attempt := fs.attempts[0]
	require.NotNil(t, attempt.ProfileID, "failed verification stays linked to the claimed profile")
	assert.Equal(t, alice.ID, *attempt.ProfileID)
	assert.Less(t, attempt.Similarity, 0.8)
}

func TestAuthenticateIdentificationNoProfiles(t *testing.T) {
	fs := newFakeStore()
	eng := newTestEngine(fs, &stubAnalyzer{confidence: 0.9})

	res, err := eng.Authenticate(context.Background(), Request{Vector: makeVector(1)})
	require.NoError(t, err)

	assert.Equal(t, models.VerdictUnknown, res.Verdict)
	require.Len(t, fs.attempts, 1)
	assert.Nil(t, fs.attempts[0].ProfileID)
}

func TestAuthenticateSkipsProfilesWithoutSamples(t *testing.T) {
	empty := makeProfile("empty", time.Now())
	alice := makeProfile("alice", time.Now(), 1)
	fs := newFakeStore(empty, alice)
	eng := newTestEngine(fs, &stubAnalyzer{confidence: 0.9})

	res, err := eng.Authenticate(context.Background(), Request{Vector: makeVector(1)})
	require.NoError(t, err)

	assert.Equal(t, models.VerdictAccept, res.Verdict)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "alice", res.Candidates[0].Username)
}

func TestAuthenticateVerificationNoSamplesRejects(t *testing.T) {
	fs := newFakeStore(makeProfile("alice", time.Now()))
	eng := newTestEngine(fs, &stubAnalyzer{confidence: 0.9})

	res, err := eng.Authenticate(context.Background(), Request{Vector: makeVector(1), ClaimedUser: "alice"})
	require.NoError(t, err)

	assert.Equal(t, models.VerdictReject, res.Verdict)
	require.Len(t, fs.attempts, 1)
	assert.Contains(t, fs.attempts[0].Commentary, "no enrolled voice samples")
}

func TestAuthenticateTranscriptionFailureDegrades(t *testing.T) {
	alice := makeProfile("alice", time.Now(), 1)
	fs := newFakeStore(alice)
	eng := newTestEngine(fs, &stubAnalyzer{
		transcribeErr: analysis.ErrTranscriptionUnavailable,
		confidence:    0.9,
	})

	res, err := eng.Authenticate(context.Background(), Request{
		Vector:      makeVector(1),
		ClaimedUser: "alice",
		Audio:       []byte{1, 2, 3},
		AudioFormat: "wav",
	})
	require.NoError(t, err)

	assert.Equal(t, models.VerdictAccept, res.Verdict)
	assert.Empty(t, res.Transcript)
}

func TestAuthenticateExactlyOneAttemptEachRequest(t *testing.T) {
	alice := makeProfile("alice", time.Now(), 1)
	fs := newFakeStore(alice)
	eng := newTestEngine(fs, &stubAnalyzer{confidence: 0.9})

	for i := 0; i < 5; i++ {
		_, err := eng.Authenticate(context.Background(), Request{Vector: makeVector(1)})
		require.NoError(t, err)
	}
	assert.Len(t, fs.attempts, 5)
}

func TestAuthenticateRecordAttemptFailureIsFatal(t *testing.T) {
	fs := newFakeStore(makeProfile("alice", time.Now(), 1))
	eng := newTestEngine(failingStore{fs}, &stubAnalyzer{confidence: 0.9})

	_, err := eng.Authenticate(context.Background(), Request{Vector: makeVector(1)})
	assert.Error(t, err)
}

type failingStore struct{ *fakeStore }

func (failingStore) RecordAttempt(context.Context, *models.AuthenticationAttempt) error {
	return errors.New("disk full")
}

func TestRankCandidates(t *testing.T) {
	early := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	late := early.Add(24 * time.Hour)

	scored := []CandidateScore{
		{Username: "c", Fused: 0.5, Similarity: 0.9, enrolledAt: early},
		{Username: "a", Fused: 0.9, Similarity: 0.7, enrolledAt: late},
		{Username: "b", Fused: 0.9, Similarity: 0.8, enrolledAt: late},
		{Username: "d", Fused: 0.9, Similarity: 0.8, enrolledAt: early},
	}
	rankCandidates(scored)

	var order []string
	for _, cs := range scored {
		order = append(order, cs.Username)
	}
	// Fused desc, similarity breaks the first tie, enrollment age the second.
	assert.Equal(t, []string{"d", "b", "a", "c"}, order)
}

func TestRankCandidatesDeterministic(t *testing.T) {
	base := time.Now()
	build := func() []CandidateScore {
		return []CandidateScore{
			{Username: "x", Fused: 0.8, Similarity: 0.8, enrolledAt: base},
			{Username: "y", Fused: 0.8, Similarity: 0.8, enrolledAt: base.Add(time.Hour)},
			{Username: "z", Fused: 0.8, Similarity: 0.8, enrolledAt: base.Add(2 * time.Hour)},
		}
	}

	first := build()
	rankCandidates(first)
	for i := 0; i < 10; i++ {
		again := build()
		rankCandidates(again)
		assert.Equal(t, first, again)
	}
}
