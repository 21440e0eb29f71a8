package minio

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/psms-tech/go-backend/internal/cfg"
	"github.com/psms-tech/go-backend/internal/domain"
	"github.com/psms-tech/go-backend/internal/usecase"
	"github.com/psms-tech/go-backend/pkg/e"
	"github.com/psms-tech/go-backend/pkg/jitter"
	"github.com/psms-tech/go-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	mu         sync.Mutex
	objects    map[string]*domain.Image
	deleteErrs int
	deletes    int
}

func newMemRepo() *memRepo {
	return &memRepo{objects: make(map[string]*domain.Image)}
}

func (r *memRepo) Upload(_ context.Context, image *domain.Image) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.objects[image.ObjectKey] = image
	return image.ObjectKey, nil
}

func (r *memRepo) Get(_ context.Context, key string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	img, ok := r.objects[key]
	if !ok {
		return nil, e.ErrNotFound
	}
	return img.Bytes, nil
}

func (r *memRepo) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletes++
	if r.deleteErrs > 0 {
		r.deleteErrs--
		return errors.New("minio unavailable")
	}
	delete(r.objects, key)
	return nil
}

func newInfra(repo usecase.ImageRepository) *MinioInfrastructure {
	m := NewMinioInfrastructure(repo, &cfg.MinIOCfg{
		BucketName:     "lens-references",
		PublicURL:      "http://localhost:9000/lens-references",
		CleanupTimeout: 5 * time.Second,
	}, logger.NewSlogLoggerWithWriter(io.Discard, slog.LevelError), context.Background())
	m.backoff = jitter.Backoff{Base: time.Millisecond, Attempts: 3}
	return m
}

func TestMinioInfrastructure_UploadAndFetch(t *testing.T) {
	repo := newMemRepo()
	m := newInfra(repo)
	ctx := context.Background()

	res, err := m.UploadImage(ctx, &usecase.UploadImageReq{
		Prefix: "item-1", Name: "mug.png", Data: []byte("png"), ContentType: "image/png",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.Key, "item-1/"))
	assert.True(t, strings.HasSuffix(res.Key, ".png"))
	assert.Equal(t, "http://localhost:9000/lens-references/"+res.Key, res.URL)
	assert.Equal(t, "mug.png", repo.objects[res.Key].Name)
	assert.Equal(t, int64(3), repo.objects[res.Key].Size)

	data, err := m.FetchImage(ctx, res.Key)
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), data)

	_, err = m.UploadImage(ctx, &usecase.UploadImageReq{Prefix: "item-1", Data: []byte("x"), ContentType: "application/pdf"})
	assert.ErrorIs(t, err, e.ErrUnsupportedMediaType)

	_, err = m.FetchImage(ctx, "")
	assert.ErrorIs(t, err, e.ErrNoImage)
}

func TestMinioInfrastructure_CleanupRetries(t *testing.T) {
	repo := newMemRepo()
	repo.deleteErrs = 2
	m := newInfra(repo)
	ctx := context.Background()

	res, err := m.UploadImage(ctx, &usecase.UploadImageReq{Prefix: "item-1", Data: []byte("png"), ContentType: "image/png"})
	require.NoError(t, err)

	m.CleanupImages([]string{res.Key})
	m.CleanupImages(nil)

	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, m.WaitForCleanup(waitCtx))

	assert.Empty(t, repo.objects)
	assert.Equal(t, 3, repo.deletes)
}
