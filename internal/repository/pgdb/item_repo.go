package pgdb

import (
	"context"
	"errors"

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

// ItemRepo реализует чтение предметов и обновление их изображения и тегов поверх PostgreSQL.
type ItemRepo struct {
	pool *pgxpool.Pool
	conv converter.ItemConverter
}

func NewItemRepo(pool *pgxpool.Pool, conv converter.ItemConverter) *ItemRepo {
	return &ItemRepo{
		pool: pool,
		conv: conv,
	}
}

const selectItem = `
	SELECT
		i.id, i.name, COALESCE(i.description, ''), COALESCE(i.category, ''),
		COALESCE(i.image_url, ''), i.location_id, COALESCE(l.name, ''),
		COALESCE(i.tags, '{}'), COALESCE(i.attributes, '{}'::jsonb), i.updated_at
	FROM items i
	LEFT JOIN locations l ON l.id = i.location_id
`

// Get возвращает предмет по идентификатору или ErrItemNotFound.
func (r *ItemRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Item, error) {
	q := tr.QuerierFromCtx(ctx, r.pool)

	model, err := scanItem(q.QueryRow(ctx, selectItem+` WHERE i.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, e.ErrItemNotFound
		}
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return r.conv.ToEntity(model), nil
}

// GetItemsInfo возвращает сведения о предметах по их идентификаторам. Отсутствующие пропускаются.
func (r *ItemRepo) GetItemsInfo(ctx context.Context, ids []uuid.UUID) ([]usecase.ItemInfo, error) {
	rows, err := r.pool.Query(ctx, selectItem+` WHERE i.id = ANY($1)`, ids)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	result := make([]usecase.ItemInfo, 0, len(ids))
	for rows.Next() {
		model, err := scanItem(rows)
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		result = append(result, usecase.NewItemInfo(r.conv.ToEntity(model)))
	}

	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return result, nil
}

// SetImageIfEmpty задаёт основное изображение, только если оно ещё не задано.
func (r *ItemRepo) SetImageIfEmpty(ctx context.Context, id uuid.UUID, imageURL string) (bool, error) {
	q := tr.QuerierFromCtx(ctx, r.pool)

	query := `
		UPDATE items
		SET image_url = $2, updated_at = NOW()
		WHERE id = $1 AND (image_url IS NULL OR image_url = '')
	`

	tag, err := q.Exec(ctx, query, id, imageURL)
	if err != nil {
		return false, e.Wrap(whereami.WhereAmI(), err)
	}

	return tag.RowsAffected() > 0, nil
}

// ClearImage сбрасывает основное изображение, если оно совпадает с одним из удалённых эталонов.
func (r *ItemRepo) ClearImage(ctx context.Context, id uuid.UUID, imageURLs []string) (bool, error) {
	if len(imageURLs) == 0 {
		return false, nil
	}

	q := tr.QuerierFromCtx(ctx, r.pool)

	query := `
		UPDATE items
		SET image_url = NULL, updated_at = NOW()
		WHERE id = $1 AND image_url = ANY($2)
	`

	tag, err := q.Exec(ctx, query, id, imageURLs)
	if err != nil {
		return false, e.Wrap(whereami.WhereAmI(), err)
	}

	return tag.RowsAffected() > 0, nil
}

// UpdateMetadata сохраняет теги и атрибуты предмета.
func (r *ItemRepo) UpdateMetadata(ctx context.Context, item *domain.Item) error {
	q := tr.QuerierFromCtx(ctx, r.pool)

	attrs := item.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}

	query := `
		UPDATE items
		SET tags = $2, attributes = $3, updated_at = NOW()
		WHERE id = $1
	`

	tag, err := q.Exec(ctx, query, item.ID, item.Tags, attrs)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if tag.RowsAffected() == 0 {
		return e.ErrItemNotFound
	}

	return nil
}

func scanItem(row pgx.Row) (*converter.ItemModel, error) {
	var model converter.ItemModel
	err := row.Scan(
		&model.ID,
		&model.Name,
		&model.Description,
		&model.Category,
		&model.ImageURL,
		&model.LocationID,
		&model.LocationName,
		&model.Tags,
		&model.Attributes,
		&model.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &model, nil
}

var _ usecase.ItemRepository = (*ItemRepo)(nil)
