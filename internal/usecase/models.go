package usecase

import (
	"time"

	"github.com/google/uuid"
	"github.com/psms-tech/go-backend/internal/domain"
)

// LENS USECASE

// StatusRes — состояние подсистемы распознавания.
type StatusRes struct {
	ModelReady           bool
	ActiveModel          string
	Backend              string
	EnrolledItems        int64
	TotalReferenceImages int64
	StaleEmbeddings      int64
}

// IdentifyImageReq — запрос на распознавание по фото.
type IdentifyImageReq struct {
	Data  []byte
	Limit int
}

// IdentifyTextReq — запрос на поиск по текстовому описанию.
type IdentifyTextReq struct {
	Query string
	Limit int
}

// IdentifyRes — ранжированный список совпадений.
type IdentifyRes struct {
	Matches []Match
	Message string
	Skipped int // записи с несовпадающей размерностью
}

// Match — совпадение с предметом каталога.
type Match struct {
	Confidence     float64
	Similarity     float64
	ReferenceImage string
	Item           ItemInfo
}

// EnrollReq — добавление эталонного фото предмета.
type EnrollReq struct {
	ItemID   uuid.UUID
	Data     []byte
	Filename string
	AutoTag  bool
}

type EnrollRes struct {
	EnrollmentID uuid.UUID
	ImageURL     string
	Backend      string
	Tags         []string
	Attributes   map[string]string
}

type UnenrollRes struct {
	Removed int
}

type ReindexRes struct {
	Reindexed int
	Failed    int
}

// ItemInfo — публичные сведения о предмете, которые отдаются вместе с совпадением.
type ItemInfo struct {
	ID           uuid.UUID
	Name         string
	Description  string
	Category     string
	ImageURL     string
	LocationID   *uuid.UUID
	LocationName string
	Tags         []string
}

// MODEL USECASE

type DownloadModelReq struct {
	URL      string
	Filename string
}

type UploadModelReq struct {
	Filename string
	Data     []byte
}

// INFRASTRUCTURE

// Features — результат конвейера извлечения признаков.
type Features struct {
	Vector  []float32
	Backend domain.BackendInfo
}

// UploadImageReq — запрос на сохранение эталонного изображения.
type UploadImageReq struct {
	Prefix      string
	Name        string
	Data        []byte
	ContentType string
}

// UploadImageRes — ключ объекта и публичная ссылка на него.
type UploadImageRes struct {
	Key string
	URL string
}

// TagReq — фото предмета и уже известные сведения для автотегирования.
type TagReq struct {
	Image       []byte
	ContentType string
	Item        *domain.Item
}

type TagRes struct {
	Tags       []string
	Attributes map[string]string
}

// EnrollmentEvent — изменение набора эталонов предмета.
type EnrollmentEvent struct {
	EventID      uuid.UUID
	Type         domain.OutboxEventType
	ItemID       uuid.UUID
	Backend      string
	EmbeddingIDs []uuid.UUID
	ImageURLs    []string
	OccurredAt   time.Time
}

type WriteRawMessageReq struct {
	ItemID  uuid.UUID
	Payload []byte
}

// MAPPERS

func NewWriteRawMessageReq(itemID uuid.UUID, payload []byte) *WriteRawMessageReq {
	return &WriteRawMessageReq{
		ItemID:  itemID,
		Payload: payload,
	}
}

func NewEnrollmentEvent(eventType domain.OutboxEventType, itemID uuid.UUID, backend string, records []domain.EmbeddingRecord) *EnrollmentEvent {
	ids := make([]uuid.UUID, 0, len(records))
	urls := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
		urls = append(urls, r.ImageURL)
	}

	return &EnrollmentEvent{
		EventID:      uuid.New(),
		Type:         eventType,
		ItemID:       itemID,
		Backend:      backend,
		EmbeddingIDs: ids,
		ImageURLs:    urls,
		OccurredAt:   time.Now().UTC(),
	}
}

func NewItemInfo(item *domain.Item) ItemInfo {
	return ItemInfo{
		ID:           item.ID,
		Name:         item.Name,
		Description:  item.Description,
		Category:     item.Category,
		ImageURL:     item.ImageURL,
		LocationID:   item.LocationID,
		LocationName: item.LocationName,
		Tags:         item.Tags,
	}
}
