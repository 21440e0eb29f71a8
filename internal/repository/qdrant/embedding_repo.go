package qdrant

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jimlawless/whereami"
	"github.com/psms-tech/go-backend/internal/domain"
	"github.com/psms-tech/go-backend/internal/usecase"
	"github.com/psms-tech/go-backend/pkg/clients"
	"github.com/psms-tech/go-backend/pkg/e"
	"github.com/qdrant/go-client/qdrant"
)

const scrollPageSize = 256

// EmbeddingRepo хранит эталоны в Qdrant, по коллекции на каждую размерность вектора.
// Qdrant не участвует в транзакциях PostgreSQL: при откате usecase удаляет записи через DeleteByIDs.
type EmbeddingRepo struct {
	client  *clients.QdrantClient
	ensured sync.Map // имя коллекции -> struct{}
}

func NewEmbeddingRepo(client *clients.QdrantClient) *EmbeddingRepo {
	return &EmbeddingRepo{client: client}
}

// Create сохраняет эталон в коллекцию его размерности.
func (q *EmbeddingRepo) Create(ctx context.Context, record *domain.EmbeddingRecord) error {
	if err := q.upsert(ctx, record); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	return nil
}

func (q *EmbeddingRepo) ListByBackend(ctx context.Context, backend string) ([]domain.EmbeddingRecord, error) {
	collections, err := q.collections(ctx)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	var out []domain.EmbeddingRecord
	for _, name := range collections {
		records, err := q.scroll(ctx, name, backendFilter(backend, true))
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		out = append(out, records...)
	}

	return out, nil
}

func (q *EmbeddingRepo) ListStale(ctx context.Context, backend string) ([]domain.EmbeddingRecord, error) {
	collections, err := q.collections(ctx)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	var out []domain.EmbeddingRecord
	for _, name := range collections {
		records, err := q.scroll(ctx, name, backendFilter(backend, false))
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		out = append(out, records...)
	}

	return out, nil
}

// UpdateVector заменяет вектор эталона. Если размерность изменилась, точка переезжает в другую коллекцию.
func (q *EmbeddingRepo) UpdateVector(ctx context.Context, id uuid.UUID, vector []float32, backend string) error {
	record, from, err := q.find(ctx, id)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	record.Vector = vector
	record.Backend = backend
	record.Dimension = len(vector)

	if err := q.upsert(ctx, record); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if to := q.client.CollectionName(record.Dimension); to != from {
		if err := q.deletePoints(ctx, from, qdrant.NewPointsSelector(qdrant.NewIDUUID(id.String()))); err != nil {
			return e.Wrap(whereami.WhereAmI(), err)
		}
	}

	return nil
}

func (q *EmbeddingRepo) DeleteByItem(ctx context.Context, itemID uuid.UUID) ([]domain.EmbeddingRecord, error) {
	collections, err := q.collections(ctx)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch("item_id", itemID.String())},
	}

	var removed []domain.EmbeddingRecord
	for _, name := range collections {
		records, err := q.scroll(ctx, name, filter)
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		if len(records) == 0 {
			continue
		}

		if err := q.deletePoints(ctx, name, qdrant.NewPointsSelectorFilter(filter)); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		removed = append(removed, records...)
	}

	return removed, nil
}

func (q *EmbeddingRepo) DeleteByIDs(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	collections, err := q.collections(ctx)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewIDUUID(id.String()))
	}

	for _, name := range collections {
		if err := q.deletePoints(ctx, name, qdrant.NewPointsSelector(pointIDs...)); err != nil {
			return e.Wrap(whereami.WhereAmI(), err)
		}
	}

	return nil
}

func (q *EmbeddingRepo) Stats(ctx context.Context, backend string) (*domain.EmbeddingStats, error) {
	collections, err := q.collections(ctx)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	stats := &domain.EmbeddingStats{}
	items := make(map[string]struct{})
	for _, name := range collections {
		stale, err := q.client.Client.Count(ctx, &qdrant.CountPoints{
			CollectionName: name,
			Filter:         backendFilter(backend, false),
			Exact:          qdrant.PtrOf(true),
		})
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		stats.StaleEmbeddings += int64(stale)

		// Число различных предметов Qdrant не считает, поэтому читаем только item_id
		err = q.eachPoint(ctx, name, backendFilter(backend, true), qdrant.NewWithPayloadInclude("item_id"), false,
			func(p *qdrant.RetrievedPoint) {
				stats.TotalEmbeddings++
				items[p.GetPayload()["item_id"].GetStringValue()] = struct{}{}
			})
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
	}
	stats.EnrolledItems = int64(len(items))

	return stats, nil
}

func (q *EmbeddingRepo) upsert(ctx context.Context, record *domain.EmbeddingRecord) error {
	name := q.client.CollectionName(len(record.Vector))
	if err := q.ensure(ctx, name, len(record.Vector)); err != nil {
		return err
	}

	point := domain.NewQdrantPoint(record)
	_, err := q.client.Client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: name,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(point.ID.String()),
			Vectors: qdrant.NewVectors(point.Vectors...),
			Payload: qdrant.NewValueMap(point.Payloads),
		}},
	})
	return err
}

func (q *EmbeddingRepo) ensure(ctx context.Context, name string, dimension int) error {
	if _, ok := q.ensured.Load(name); ok {
		return nil
	}
	if err := clients.EnsureCollection(ctx, q.client, name, uint64(dimension)); err != nil {
		return err
	}
	q.ensured.Store(name, struct{}{})
	return nil
}

// find ищет точку во всех коллекциях и возвращает запись и имя коллекции.
func (q *EmbeddingRepo) find(ctx context.Context, id uuid.UUID) (*domain.EmbeddingRecord, string, error) {
	collections, err := q.collections(ctx)
	if err != nil {
		return nil, "", err
	}

	for _, name := range collections {
		points, err := q.client.Client.Get(ctx, &qdrant.GetPoints{
			CollectionName: name,
			Ids:            []*qdrant.PointId{qdrant.NewIDUUID(id.String())},
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(true),
		})
		if err != nil {
			return nil, "", err
		}
		if len(points) > 0 {
			record, err := toRecord(points[0])
			if err != nil {
				return nil, "", err
			}
			return record, name, nil
		}
	}

	return nil, "", e.ErrNotFound
}

func (q *EmbeddingRepo) deletePoints(ctx context.Context, name string, selector *qdrant.PointsSelector) error {
	_, err := q.client.Client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: name,
		Wait:           qdrant.PtrOf(true),
		Points:         selector,
	})
	return err
}

// collections возвращает коллекции эмбеддингов всех размерностей.
func (q *EmbeddingRepo) collections(ctx context.Context) ([]string, error) {
	all, err := q.client.Client.ListCollections(ctx)
	if err != nil {
		return nil, err
	}

	prefix := q.client.Prefix() + "_"
	out := make([]string, 0, len(all))
	for _, name := range all {
		if strings.HasPrefix(name, prefix) {
			out = append(out, name)
		}
	}
	return out, nil
}

func (q *EmbeddingRepo) scroll(ctx context.Context, name string, filter *qdrant.Filter) ([]domain.EmbeddingRecord, error) {
	var out []domain.EmbeddingRecord
	var convErr error
	err := q.eachPoint(ctx, name, filter, qdrant.NewWithPayload(true), true, func(p *qdrant.RetrievedPoint) {
		record, err := toRecord(p)
		if err != nil {
			convErr = err
			return
		}
		out = append(out, *record)
	})
	if err != nil {
		return nil, err
	}
	if convErr != nil {
		return nil, convErr
	}
	return out, nil
}

// eachPoint постранично обходит точки коллекции. Смещение в Qdrant включительное,
// поэтому запрашивается на одну точку больше и последняя начинает следующую страницу.
func (q *EmbeddingRepo) eachPoint(
	ctx context.Context,
	name string,
	filter *qdrant.Filter,
	payload *qdrant.WithPayloadSelector,
	withVectors bool,
	fn func(p *qdrant.RetrievedPoint),
) error {
	var offset *qdrant.PointId
	for {
		points, err := q.client.Client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: name,
			Filter:         filter,
			Offset:         offset,
			Limit:          qdrant.PtrOf(uint32(scrollPageSize + 1)),
			WithPayload:    payload,
			WithVectors:    qdrant.NewWithVectors(withVectors),
		})
		if err != nil {
			return err
		}

		page := points
		if len(points) > scrollPageSize {
			page = points[:scrollPageSize]
		}
		for _, p := range page {
			fn(p)
		}

		if len(points) <= scrollPageSize {
			return nil
		}
		offset = points[scrollPageSize].GetId()
	}
}

func backendFilter(backend string, match bool) *qdrant.Filter {
	cond := []*qdrant.Condition{qdrant.NewMatch("backend", backend)}
	if match {
		return &qdrant.Filter{Must: cond}
	}
	return &qdrant.Filter{MustNot: cond}
}

func toRecord(p *qdrant.RetrievedPoint) (*domain.EmbeddingRecord, error) {
	id, err := uuid.Parse(p.GetId().GetUuid())
	if err != nil {
		return nil, err
	}

	payload := p.GetPayload()
	itemID, err := uuid.Parse(payload["item_id"].GetStringValue())
	if err != nil {
		return nil, err
	}

	var vector []float32
	if v := p.GetVectors().GetVector(); v != nil {
		vector = v.GetData()
	}

	return &domain.EmbeddingRecord{
		ID:        id,
		ItemID:    itemID,
		ImageURL:  payload["image_url"].GetStringValue(),
		ImageKey:  payload["image_key"].GetStringValue(),
		Vector:    vector,
		Backend:   payload["backend"].GetStringValue(),
		Dimension: int(payload["dimension"].GetIntegerValue()),
		CreatedAt: time.Unix(0, payload["created_at"].GetIntegerValue()).UTC(),
	}, nil
}

var _ usecase.EmbeddingRepository = (*EmbeddingRepo)(nil)
