package pgdb

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
	"github.com/psms-tech/go-backend/internal/domain"
	"github.com/psms-tech/go-backend/internal/repository/pgdb/converter"
	"github.com/psms-tech/go-backend/internal/usecase"
	"github.com/psms-tech/go-backend/pkg/e"
	"github.com/psms-tech/go-backend/pkg/tr"
)

// EmbeddingRepo хранит эталонные эмбеддинги в таблице item_embeddings (вектор как real[]).
type EmbeddingRepo struct {
	pool *pgxpool.Pool
	conv converter.EmbeddingConverter
}

func NewEmbeddingRepo(pool *pgxpool.Pool, conv converter.EmbeddingConverter) *EmbeddingRepo {
	return &EmbeddingRepo{
		pool: pool,
		conv: conv,
	}
}

const embeddingColumns = `id, item_id, image_url, image_key, vector, backend, dimension, created_at`

func (r *EmbeddingRepo) Create(ctx context.Context, record *domain.EmbeddingRecord) error {
	q := tr.QuerierFromCtx(ctx, r.pool)
	model := r.conv.ToModel(record)

	query := `
		INSERT INTO item_embeddings (` + embeddingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := q.Exec(ctx, query,
		model.ID,
		model.ItemID,
		model.ImageURL,
		model.ImageKey,
		model.Vector,
		model.Backend,
		model.Dimension,
		model.CreatedAt,
	)
	if err != nil {
		if postgresDuplicate(err) {
			return e.Wrap(whereami.WhereAmI(), e.ErrInvalidOperation)
		}
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// ListByBackend возвращает корпус эталонов, построенных указанным бэкендом.
func (r *EmbeddingRepo) ListByBackend(ctx context.Context, backend string) ([]domain.EmbeddingRecord, error) {
	query := `
		SELECT ` + embeddingColumns + `
		FROM item_embeddings
		WHERE backend = $1
		ORDER BY created_at, id
	`

	return r.list(ctx, query, backend)
}

// ListStale возвращает эталоны, построенные любым другим бэкендом.
func (r *EmbeddingRepo) ListStale(ctx context.Context, backend string) ([]domain.EmbeddingRecord, error) {
	query := `
		SELECT ` + embeddingColumns + `
		FROM item_embeddings
		WHERE backend <> $1
		ORDER BY created_at, id
	`

	return r.list(ctx, query, backend)
}

func (r *EmbeddingRepo) UpdateVector(ctx context.Context, id uuid.UUID, vector []float32, backend string) error {
	q := tr.QuerierFromCtx(ctx, r.pool)

	query := `
		UPDATE item_embeddings
		SET vector = $2, backend = $3, dimension = $4
		WHERE id = $1
	`

	tag, err := q.Exec(ctx, query, id, vector, backend, int32(len(vector)))
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if tag.RowsAffected() == 0 {
		return e.Wrap(whereami.WhereAmI(), e.ErrNotFound)
	}

	return nil
}

// DeleteByItem удаляет все эталоны предмета и возвращает удалённые записи.
func (r *EmbeddingRepo) DeleteByItem(ctx context.Context, itemID uuid.UUID) ([]domain.EmbeddingRecord, error) {
	q := tr.QuerierFromCtx(ctx, r.pool)

	query := `
		DELETE FROM item_embeddings
		WHERE item_id = $1
		RETURNING ` + embeddingColumns

	rows, err := q.Query(ctx, query, itemID)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	models, err := scanEmbeddings(rows)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return r.conv.ToArrEntity(models), nil
}

func (r *EmbeddingRepo) DeleteByIDs(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	q := tr.QuerierFromCtx(ctx, r.pool)
	if _, err := q.Exec(ctx, `DELETE FROM item_embeddings WHERE id = ANY($1)`, ids); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// Stats считает предметы и эталоны активного бэкенда и устаревшие записи остальных.
func (r *EmbeddingRepo) Stats(ctx context.Context, backend string) (*domain.EmbeddingStats, error) {
	query := `
		SELECT
			COUNT(DISTINCT item_id) FILTER (WHERE backend = $1),
			COUNT(*) FILTER (WHERE backend = $1),
			COUNT(*) FILTER (WHERE backend <> $1)
		FROM item_embeddings
	`

	var stats domain.EmbeddingStats
	if err := r.pool.QueryRow(ctx, query, backend).Scan(
		&stats.EnrolledItems,
		&stats.TotalEmbeddings,
		&stats.StaleEmbeddings,
	); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return &stats, nil
}

func (r *EmbeddingRepo) list(ctx context.Context, query string, args ...any) ([]domain.EmbeddingRecord, error) {
	rows, err := tr.QuerierFromCtx(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	models, err := scanEmbeddings(rows)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return r.conv.ToArrEntity(models), nil
}

func scanEmbeddings(rows pgx.Rows) ([]*converter.EmbeddingModel, error) {
	defer rows.Close()

	var models []*converter.EmbeddingModel
	for rows.Next() {
		var model converter.EmbeddingModel
		if err := rows.Scan(
			&model.ID,
			&model.ItemID,
			&model.ImageURL,
			&model.ImageKey,
			&model.Vector,
			&model.Backend,
			&model.Dimension,
			&model.CreatedAt,
		); err != nil {
			return nil, err
		}
		models = append(models, &model)
	}

	return models, rows.Err()
}

var _ usecase.EmbeddingRepository = (*EmbeddingRepo)(nil)
