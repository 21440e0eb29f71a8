package domain

import "github.com/google/uuid"

// QdrantPoint описывает запись эталона в Qdrant
type QdrantPoint struct {
	ID       uuid.UUID
	Vectors  []float32
	Payloads Payload
}

func NewQdrantPoint(record *EmbeddingRecord) *QdrantPoint {
	return &QdrantPoint{
		ID:       record.ID,
		Vectors:  record.Vector,
		Payloads: record.Payload(),
	}
}
