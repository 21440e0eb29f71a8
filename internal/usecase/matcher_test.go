package usecase

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/google/uuid"
	"github.com/psms-tech/go-backend/internal/domain"
	"github.com/psms-tech/go-backend/pkg/vecmath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(itemID uuid.UUID, vector []float32) domain.EmbeddingRecord {
	return *domain.NewEmbeddingRecord(itemID, "http://img/"+uuid.NewString(), "key", vecmath.Normalize(vector), "classifier/test.onnx")
}

func randomCorpus(r *rand.Rand, items, perItem, dim int) []domain.EmbeddingRecord {
	var corpus []domain.EmbeddingRecord
	for i := 0; i < items; i++ {
		id := uuid.New()
		for j := 0; j < perItem; j++ {
			v := make([]float32, dim)
			for k := range v {
				v[k] = float32(r.NormFloat64())
			}
			corpus = append(corpus, record(id, v))
		}
	}
	return corpus
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		name       string
		similarity float64
		threshold  float64
		want       float64
	}{
		{"at threshold", 0.60, 0.60, 0.0},
		{"perfect match capped", 1.0, 0.60, 99.9},
		{"midpoint classifier", 0.80, 0.60, 70.7},
		{"joint backend", 0.50, 0.25, 57.7},
		{"below threshold", 0.10, 0.25, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Confidence(tt.similarity, tt.threshold), 1e-9)
		})
	}
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultMatchLimit, ClampLimit(0))
	assert.Equal(t, DefaultMatchLimit, ClampLimit(-3))
	assert.Equal(t, 1, ClampLimit(1))
	assert.Equal(t, MaxMatchLimit, ClampLimit(500))
}

func TestRankCorpus_EmptyCorpus(t *testing.T) {
	out := RankCorpus([]float32{1, 0}, nil, 0.6, 5)
	assert.Empty(t, out.Matches)
	assert.Zero(t, out.Skipped)
}

func TestRankCorpus_DeduplicatesByItemKeepingBest(t *testing.T) {
	itemA, itemB := uuid.New(), uuid.New()
	query := []float32{1, 0, 0}

	weakA := record(itemA, []float32{0.8, 0.6, 0})
	strongA := record(itemA, []float32{0.99, 0.1, 0})
	b := record(itemB, []float32{0.9, 0.4, 0})

	out := RankCorpus(query, []domain.EmbeddingRecord{weakA, b, strongA}, 0.5, 10)
	require.Len(t, out.Matches, 2)

	assert.Equal(t, itemA, out.Matches[0].ItemID)
	assert.Equal(t, strongA.ID, out.Matches[0].EmbeddingID)
	assert.Equal(t, strongA.ImageURL, out.Matches[0].ReferenceImage)
	assert.Equal(t, itemB, out.Matches[1].ItemID)
	assert.Greater(t, out.Matches[0].Similarity, out.Matches[1].Similarity)
}

func TestRankCorpus_ThresholdMonotonic(t *testing.T) {
	r := rand.New(rand.NewPCG(11, 12))
	corpus := randomCorpus(r, 30, 3, 8)
	query := vecmath.Normalize(corpus[0].Vector)

	prev := len(RankCorpus(query, corpus, -1, MaxMatchLimit).Matches)
	for _, threshold := range []float64{-0.5, 0, 0.1, 0.25, 0.5, 0.6, 0.9, 0.99} {
		n := len(RankCorpus(query, corpus, threshold, MaxMatchLimit).Matches)
		assert.LessOrEqual(t, n, prev, "threshold %v", threshold)
		prev = n
	}
}

func TestRankCorpus_SortedAndLimited(t *testing.T) {
	r := rand.New(rand.NewPCG(13, 14))
	corpus := randomCorpus(r, 40, 2, 4)
	query := corpus[3].Vector

	out := RankCorpus(query, corpus, -1, 7)
	require.Len(t, out.Matches, 7)
	for i := 1; i < len(out.Matches); i++ {
		assert.GreaterOrEqual(t, out.Matches[i-1].Similarity, out.Matches[i].Similarity)
	}
	assert.Equal(t, corpus[3].ItemID, out.Matches[0].ItemID)
	assert.InDelta(t, 1.0, out.Matches[0].Similarity, 1e-5)
	assert.Equal(t, MaxConfidence, out.Matches[0].Confidence)
}

func TestRankCorpus_SkipsDimensionMismatch(t *testing.T) {
	item := uuid.New()
	corpus := []domain.EmbeddingRecord{
		record(item, []float32{1, 0}),
		record(uuid.New(), []float32{1, 0, 0}),
	}

	out := RankCorpus([]float32{1, 0}, corpus, 0.6, 5)
	require.Len(t, out.Matches, 1)
	assert.Equal(t, item, out.Matches[0].ItemID)
	assert.Equal(t, 1, out.Skipped)
}

func TestRankCorpus_NonNormalizedCorpus(t *testing.T) {
	item := uuid.New()
	rec := *domain.NewEmbeddingRecord(item, "u", "k", []float32{10, 0}, "b")

	out := RankCorpus([]float32{3, 0}, []domain.EmbeddingRecord{rec}, 0.6, 5)
	require.Len(t, out.Matches, 1)
	assert.InDelta(t, 1.0, out.Matches[0].Similarity, 1e-9)
}

func TestRankCorpus_SkipsNonFiniteRecords(t *testing.T) {
	item := uuid.New()
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))
	corpus := []domain.EmbeddingRecord{
		*domain.NewEmbeddingRecord(uuid.New(), "u1", "k1", []float32{nan, 0}, "b"),
		*domain.NewEmbeddingRecord(uuid.New(), "u2", "k2", []float32{inf, 0}, "b"),
		record(item, []float32{1, 0}),
	}

	var out MatchOutcome
	require.NotPanics(t, func() { out = RankCorpus([]float32{1, 0}, corpus, 0.6, 5) })
	require.Len(t, out.Matches, 1)
	assert.Equal(t, item, out.Matches[0].ItemID)
	assert.Equal(t, 2, out.Skipped)

	// при отрицательном пороге NaN тоже не должен пройти
	out = RankCorpus([]float32{1, 0}, corpus[:1], -1, 5)
	assert.Empty(t, out.Matches)
}

func TestRankCorpus_NonFiniteQuery(t *testing.T) {
	corpus := []domain.EmbeddingRecord{record(uuid.New(), []float32{1, 0})}

	out := RankCorpus([]float32{float32(math.NaN()), 1}, corpus, -1, 5)
	assert.Empty(t, out.Matches)
	assert.Equal(t, 1, out.Skipped)
}

func TestConfidence_NaN(t *testing.T) {
	require.NotPanics(t, func() {
		assert.Zero(t, Confidence(math.NaN(), 0.6))
	})
}
