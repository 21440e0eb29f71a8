package domain

import (
	"time"

	"github.com/google/uuid"
)

// OutboxStatus: состояние события в outbox.
type OutboxStatus string

const (
	Pending    OutboxStatus = "pending"
	Processing OutboxStatus = "processing"
	Processed  OutboxStatus = "processed"
)

// OutboxEventType: тип изменения набора эталонов предмета.
type OutboxEventType string

const (
	ItemEnrolled   OutboxEventType = "item_enrolled"
	ItemUnenrolled OutboxEventType = "item_unenrolled"
	ItemReindexed  OutboxEventType = "item_reindexed"
)

// OutboxEvent: событие, записанное в одной транзакции с изменением эмбеддингов.
type OutboxEvent struct {
	ID          int64
	EventID     uuid.UUID
	EventType   OutboxEventType
	ItemID      uuid.UUID
	Payload     []byte
	Status      OutboxStatus
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

func NewOutboxEvent(eventType OutboxEventType, itemID uuid.UUID, payload []byte) *OutboxEvent {
	return &OutboxEvent{
		EventID:   uuid.New(),
		EventType: eventType,
		ItemID:    itemID,
		Payload:   payload,
		Status:    Pending,
		CreatedAt: time.Now().UTC(),
	}
}
