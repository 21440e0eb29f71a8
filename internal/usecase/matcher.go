package usecase

import (
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/psms-tech/go-backend/internal/domain"
	"github.com/psms-tech/go-backend/pkg/vecmath"
	"github.com/shopspring/decimal"
)

const (
	DefaultMatchLimit = 5
	MaxMatchLimit     = 20
	MaxConfidence     = 99.9
)

// ScoredMatch: лучшая запись предмета, прошедшая порог.
type ScoredMatch struct {
	ItemID         uuid.UUID
	EmbeddingID    uuid.UUID
	Similarity     float64
	Confidence     float64
	ReferenceImage string
}

// MatchOutcome: результат сопоставления запроса с корпусом.
type MatchOutcome struct {
	Matches []ScoredMatch
	Skipped int // записи другой размерности или с NaN/Inf, не участвовавшие в сравнении
}

// ClampLimit приводит лимит к [1, MaxMatchLimit], ноль и отрицательные значения заменяются на значение по умолчанию.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultMatchLimit
	}
	return min(limit, MaxMatchLimit)
}

// Confidence переводит сходство в процент уверенности для интерфейса.
// Корень намеренно завышает уверенность у нижней границы прохода порога,
// результат не является вероятностью.
func Confidence(similarity, threshold float64) float64 {
	if math.IsNaN(similarity) || similarity < threshold {
		return 0
	}

	adjusted := 1.0
	if threshold < 1 {
		adjusted = (similarity - threshold) / (1 - threshold)
	}
	c := math.Min(MaxConfidence, math.Sqrt(adjusted)*100)
	return decimal.NewFromFloat(c).Round(1).InexactFloat64()
}

// RankCorpus сравнивает запрос со всеми записями корпуса за одно умножение матрицы на вектор,
// отсекает записи ниже порога, оставляет лучшую запись на предмет и обрезает список до limit.
// Сходство считается как полноценный косинус, нормированность записей не предполагается.
// Записи с NaN или бесконечностями в векторе пропускаются и попадают в Skipped.
func RankCorpus(query []float32, corpus []domain.EmbeddingRecord, threshold float64, limit int) MatchOutcome {
	limit = ClampLimit(limit)
	if !vecmath.Finite(query) {
		return MatchOutcome{Matches: []ScoredMatch{}, Skipped: len(corpus)}
	}

	rows := make([][]float32, 0, len(corpus))
	records := make([]*domain.EmbeddingRecord, 0, len(corpus))
	skipped := 0
	for i := range corpus {
		if len(corpus[i].Vector) != len(query) || !vecmath.Finite(corpus[i].Vector) {
			skipped++
			continue
		}
		rows = append(rows, corpus[i].Vector)
		records = append(records, &corpus[i])
	}

	scores := vecmath.CosineBatch(query, rows)

	candidates := make([]ScoredMatch, 0, len(records))
	for i, rec := range records {
		if math.IsNaN(scores[i]) || scores[i] < threshold {
			continue
		}
		candidates = append(candidates, ScoredMatch{
			ItemID:         rec.ItemID,
			EmbeddingID:    rec.ID,
			Similarity:     scores[i],
			Confidence:     Confidence(scores[i], threshold),
			ReferenceImage: rec.ImageURL,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Similarity > candidates[j].Similarity
	})

	seen := make(map[uuid.UUID]struct{}, len(candidates))
	matches := make([]ScoredMatch, 0, min(limit, len(candidates)))
	for _, c := range candidates {
		if _, ok := seen[c.ItemID]; ok {
			continue
		}
		seen[c.ItemID] = struct{}{}
		matches = append(matches, c)
		if len(matches) == limit {
			break
		}
	}

	return MatchOutcome{Matches: matches, Skipped: skipped}
}
