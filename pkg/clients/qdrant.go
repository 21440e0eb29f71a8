package clients

import (
	"context"
	"fmt"

	"github.com/jimlawless/whereami"
	config "github.com/psms-tech/go-backend/internal/cfg"
	"github.com/psms-tech/go-backend/pkg/e"
	"github.com/qdrant/go-client/qdrant"
)

type QdrantClient struct {
	Client *qdrant.Client
	cfg    *config.QdrantCfg
}

func NewQdrantClient(cfg *config.QdrantCfg) (*QdrantClient, error) {
	qdrantClient, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.ApiKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return &QdrantClient{
		Client: qdrantClient,
		cfg:    cfg,
	}, nil
}

// CollectionName возвращает имя коллекции для векторов заданной размерности.
func (c *QdrantClient) CollectionName(dimension int) string {
	return fmt.Sprintf("%s_%d", c.cfg.CollectionPrefix, dimension)
}

// Prefix возвращает общий префикс коллекций эмбеддингов.
func (c *QdrantClient) Prefix() string {
	return c.cfg.CollectionPrefix
}

func (c *QdrantClient) Close() error {
	return c.Client.Close()
}

// EnsureCollection создаёт коллекцию с косинусной метрикой, если её ещё нет.
func EnsureCollection(ctx context.Context, client *QdrantClient, name string, size uint64) error {
	exists, err := client.Client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}

	if !exists {
		if err := client.Client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     size,
				Distance: qdrant.Distance_Cosine,
			}),
		}); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}

		if _, err := client.Client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: name,
			FieldName:      "backend",
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		}); err != nil {
			return fmt.Errorf("failed to index backend field: %w", err)
		}
	}

	return nil
}
