// Package vecmath содержит операции над векторами эмбеддингов.
package vecmath

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Norm возвращает евклидову норму вектора.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Normalize возвращает копию вектора с единичной L2-нормой.
// Нулевой вектор возвращается без изменений.
func Normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)

	norm := Norm(v)
	if norm == 0 {
		return out
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / norm)
	}
	return out
}

// Finite сообщает, что в векторе нет NaN и бесконечностей.
func Finite(v []float32) bool {
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// Clamp ограничивает сходство отрезком [-1, 1]. NaN считается нулевым сходством.
func Clamp(s float64) float64 {
	if math.IsNaN(s) {
		return 0
	}
	return math.Max(-1, math.Min(1, s))
}

// Cosine возвращает косинусное сходство двух векторов одинаковой длины.
// Для векторов разной длины или нулевой нормы возвращает 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}

	na, nb := Norm(a), Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return Clamp(dot / (na * nb))
}

// CosineBatch считает косинусное сходство запроса со всеми строками за одно
// умножение матрицы на вектор. Все строки должны иметь длину len(query).
func CosineBatch(query []float32, rows [][]float32) []float64 {
	n, d := len(rows), len(query)
	scores := make([]float64, n)
	if n == 0 || d == 0 {
		return scores
	}

	data := make([]float64, n*d)
	norms := make([]float64, n)
	for i, row := range rows {
		dst := data[i*d : (i+1)*d]
		for j, x := range row {
			dst[j] = float64(x)
		}
		norms[i] = floats.Norm(dst, 2)
	}

	q := make([]float64, d)
	for j, x := range query {
		q[j] = float64(x)
	}
	qNorm := floats.Norm(q, 2)
	if qNorm == 0 {
		return scores
	}

	corpus := mat.NewDense(n, d, data)
	var dots mat.VecDense
	dots.MulVec(corpus, mat.NewVecDense(d, q))

	for i := range scores {
		if norms[i] == 0 {
			continue
		}
		scores[i] = Clamp(dots.AtVec(i) / (norms[i] * qNorm))
	}
	return scores
}
