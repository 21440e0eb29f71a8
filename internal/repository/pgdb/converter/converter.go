package converter

import (
	"github.com/psms-tech/go-backend/internal/domain"
)

// ItemConverter преобразует предметы между domain и моделью PostgreSQL.
type ItemConverter struct{}

func (ItemConverter) ToEntity(model *ItemModel) *domain.Item {
	if model == nil {
		return nil
	}

	tags := model.Tags
	if tags == nil {
		tags = []string{}
	}

	return &domain.Item{
		ID:           model.ID,
		Name:         model.Name,
		Description:  model.Description,
		Category:     model.Category,
		ImageURL:     model.ImageURL,
		LocationID:   model.LocationID,
		LocationName: model.LocationName,
		Tags:         tags,
		Attributes:   model.Attributes,
		UpdatedAt:    model.UpdatedAt,
	}
}

// EmbeddingConverter преобразует эталонные эмбеддинги между domain и моделью PostgreSQL.
type EmbeddingConverter struct{}

func (EmbeddingConverter) ToModel(entity *domain.EmbeddingRecord) *EmbeddingModel {
	if entity == nil {
		return nil
	}

	return &EmbeddingModel{
		ID:        entity.ID,
		ItemID:    entity.ItemID,
		ImageURL:  entity.ImageURL,
		ImageKey:  entity.ImageKey,
		Vector:    entity.Vector,
		Backend:   entity.Backend,
		Dimension: int32(len(entity.Vector)),
		CreatedAt: entity.CreatedAt,
	}
}

func (EmbeddingConverter) ToEntity(model *EmbeddingModel) domain.EmbeddingRecord {
	return domain.EmbeddingRecord{
		ID:        model.ID,
		ItemID:    model.ItemID,
		ImageURL:  model.ImageURL,
		ImageKey:  model.ImageKey,
		Vector:    model.Vector,
		Backend:   model.Backend,
		Dimension: int(model.Dimension),
		CreatedAt: model.CreatedAt,
	}
}

func (c EmbeddingConverter) ToArrEntity(models []*EmbeddingModel) []domain.EmbeddingRecord {
	out := make([]domain.EmbeddingRecord, 0, len(models))
	for _, m := range models {
		out = append(out, c.ToEntity(m))
	}
	return out
}

// OutboxEventConverter преобразует события outbox между domain и моделью PostgreSQL.
type OutboxEventConverter struct{}

func (OutboxEventConverter) ToModel(entity *domain.OutboxEvent) *OutboxEventModel {
	if entity == nil {
		return nil
	}

	return &OutboxEventModel{
		ID:          entity.ID,
		EventID:     entity.EventID,
		EventType:   string(entity.EventType),
		ItemID:      entity.ItemID,
		Payload:     entity.Payload,
		Status:      string(entity.Status),
		CreatedAt:   entity.CreatedAt,
		ProcessedAt: entity.ProcessedAt,
	}
}

func (OutboxEventConverter) ToEntity(model *OutboxEventModel) *domain.OutboxEvent {
	if model == nil {
		return nil
	}

	return &domain.OutboxEvent{
		ID:          model.ID,
		EventID:     model.EventID,
		EventType:   domain.OutboxEventType(model.EventType),
		ItemID:      model.ItemID,
		Payload:     model.Payload,
		Status:      domain.OutboxStatus(model.Status),
		CreatedAt:   model.CreatedAt,
		ProcessedAt: model.ProcessedAt,
	}
}

func (c OutboxEventConverter) ToArrEntity(models []*OutboxEventModel) []*domain.OutboxEvent {
	out := make([]*domain.OutboxEvent, 0, len(models))
	for _, m := range models {
		out = append(out, c.ToEntity(m))
	}
	return out
}
