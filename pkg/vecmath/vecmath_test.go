package vecmath

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tolerance = 1e-5

func randomVector(r *rand.Rand, n int) []float32 {
	v := make([]float32, n)
	for i := range v {
		v[i] = float32(r.NormFloat64())
	}
	return v
}

func TestNormalize_Idempotent(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 50; i++ {
		v := randomVector(r, 64)
		once := Normalize(v)
		twice := Normalize(once)

		assert.InDelta(t, 1.0, Norm(once), tolerance)
		require.Len(t, twice, len(once))
		for j := range once {
			assert.InDelta(t, once[j], twice[j], tolerance)
		}
	}
}

func TestNormalize_ZeroVectorUnchanged(t *testing.T) {
	v := []float32{0, 0, 0}
	assert.Equal(t, v, Normalize(v))
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	v := []float32{3, 4}
	out := Normalize(v)
	assert.Equal(t, []float32{3, 4}, v)
	assert.InDelta(t, 0.6, out[0], tolerance)
	assert.InDelta(t, 0.8, out[1], tolerance)
}

func TestCosine_Bounds(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))
	for i := 0; i < 200; i++ {
		a, b := randomVector(r, 16), randomVector(r, 16)
		s := Cosine(a, b)
		assert.GreaterOrEqual(t, s, -1.0)
		assert.LessOrEqual(t, s, 1.0)
	}

	a := []float32{1e-3, 1e-3}
	assert.LessOrEqual(t, Cosine(a, a), 1.0)
	assert.InDelta(t, -1.0, Cosine([]float32{1, 0}, []float32{-1, 0}), tolerance)
}

func TestCosine_SelfSimilarity(t *testing.T) {
	r := rand.New(rand.NewPCG(5, 6))
	v := Normalize(randomVector(r, 128))
	assert.InDelta(t, 1.0, Cosine(v, v), tolerance)
}

func TestCosine_Degenerate(t *testing.T) {
	assert.Zero(t, Cosine([]float32{1, 2}, []float32{1}))
	assert.Zero(t, Cosine([]float32{0, 0}, []float32{1, 2}))
	assert.Zero(t, Cosine(nil, nil))
}

func TestCosineBatch_MatchesPairwise(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 8))
	query := randomVector(r, 32)
	rows := make([][]float32, 20)
	for i := range rows {
		rows[i] = randomVector(r, 32)
	}
	rows[5] = make([]float32, 32)

	scores := CosineBatch(query, rows)
	require.Len(t, scores, len(rows))
	for i, row := range rows {
		assert.InDelta(t, Cosine(query, row), scores[i], tolerance)
	}
}

func TestCosineBatch_Empty(t *testing.T) {
	assert.Empty(t, CosineBatch([]float32{1, 2}, nil))
}

func TestCosine_NonFiniteStaysInRange(t *testing.T) {
	inf := float32(math.Inf(1))
	nan := float32(math.NaN())

	for _, pair := range [][2][]float32{
		{{inf, 0}, {1, 0}},
		{{nan, 1}, {1, 0}},
		{{inf, inf}, {inf, 0}},
	} {
		s := Cosine(pair[0], pair[1])
		assert.False(t, math.IsNaN(s))
		assert.GreaterOrEqual(t, s, -1.0)
		assert.LessOrEqual(t, s, 1.0)
	}

	assert.Zero(t, Clamp(math.NaN()))
	assert.Equal(t, 1.0, Clamp(math.Inf(1)))
}

func TestFinite(t *testing.T) {
	assert.True(t, Finite([]float32{1, -2, 0}))
	assert.True(t, Finite(nil))
	assert.False(t, Finite([]float32{1, float32(math.NaN())}))
	assert.False(t, Finite([]float32{float32(math.Inf(-1))}))
}
