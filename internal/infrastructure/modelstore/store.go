package modelstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jimlawless/whereami"
	"github.com/psms-tech/go-backend/internal/domain"
	"github.com/psms-tech/go-backend/pkg/e"
	"github.com/psms-tech/go-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

const bytesInMB = 1024 * 1024

// Store хранит файлы моделей в одном каталоге.
type Store struct {
	dir        string
	defaultURL string
	client     *http.Client
	logger     logger.Logger

	// mu сериализует запись файлов
	mu sync.Mutex
}

// New создаёт каталог моделей, если его нет.
func New(dir, defaultURL string, downloadTimeout time.Duration, logger logger.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if defaultURL == "" {
		defaultURL = DefaultModelURL
	}

	return &Store{
		dir:        dir,
		defaultURL: defaultURL,
		client:     &http.Client{Timeout: downloadTimeout},
		logger:     logger,
	}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// Path возвращает путь к файлу модели.
func (s *Store) Path(filename string) string {
	return filepath.Join(s.dir, filename)
}

// Exists сообщает, установлена ли модель.
func (s *Store) Exists(filename string) bool {
	info, err := os.Stat(s.Path(filename))
	return err == nil && info.Mode().IsRegular()
}

// List возвращает установленные модели, отсортированные по имени.
func (s *Store) List(active string) ([]domain.ModelArtifact, error) {
	const op = "Store.List"

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	models := make([]domain.ModelArtifact, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), domain.ModelExt) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		models = append(models, domain.ModelArtifact{
			Filename: entry.Name(),
			SizeMB:   sizeMB(info.Size()),
			Active:   entry.Name() == active,
		})
	}

	return models, nil
}

// Catalog возвращает курируемый каталог с отметками установки и активности.
func (s *Store) Catalog(active string) []domain.CatalogEntry {
	out := make([]domain.CatalogEntry, len(catalog))
	for i, entry := range catalog {
		entry.Installed = s.Exists(entry.Filename)
		entry.Active = entry.Filename == active
		out[i] = entry
	}
	return out
}

// Download скачивает модель. Уже установленная модель не перекачивается.
// Недокачанный файл удаляется, поэтому в каталоге не остаётся битых моделей.
func (s *Store) Download(ctx context.Context, url, filename string) (*domain.ModelArtifact, error) {
	const op = "Store.Download"

	if !domain.ValidModelFilename(filename) {
		return nil, e.Wrap(op, e.ErrInvalidModelFilename)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Exists(filename) {
		s.logger.Infof("model %s already exists, skipping download", filename)
		return s.artifact(filename)
	}

	s.logger.Infof("downloading model %s from %s", filename, url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, e.Wrap(op, e.ErrInvalidURL)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, e.Wrap(op, e.Unavailable(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, e.Wrap(op, e.Unavailable(fmt.Errorf("download %s: unexpected status %s", url, resp.Status)))
	}

	if err := s.writeAtomic(filename, resp.Body); err != nil {
		return nil, e.Wrap(op, e.Unavailable(err))
	}

	artifact, err := s.artifact(filename)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	s.logger.Infof("downloaded %s (%.1f MB)", filename, artifact.SizeMB)
	return artifact, nil
}

// Save сохраняет присланный файл модели, заменяя существующий.
func (s *Store) Save(filename string, data []byte) (*domain.ModelArtifact, error) {
	const op = "Store.Save"

	if !domain.ValidModelFilename(filename) {
		return nil, e.Wrap(op, e.ErrInvalidModelFilename)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeAtomic(filename, bytes.NewReader(data)); err != nil {
		return nil, e.Wrap(op, err)
	}

	return s.artifact(filename)
}

// Delete удаляет файл модели.
func (s *Store) Delete(filename string) error {
	const op = "Store.Delete"

	if !domain.ValidModelFilename(filename) {
		return e.Wrap(op, e.ErrInvalidModelFilename)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Exists(filename) {
		return e.Wrap(op, e.ErrModelNotFound)
	}

	if err := os.Remove(s.Path(filename)); err != nil {
		return e.Wrap(op, err)
	}

	s.logger.Infof("deleted model %s", filename)
	return nil
}

// Ensure возвращает путь к модели. Отсутствующая модель по умолчанию скачивается,
// любая другая отсутствующая модель считается недоступной.
func (s *Store) Ensure(ctx context.Context, filename string) (string, error) {
	const op = "Store.Ensure"

	if s.Exists(filename) {
		return s.Path(filename), nil
	}

	if filename != DefaultModel {
		return "", e.Wrap(op, e.Unavailable(fmt.Errorf("model file %q not found in %s", filename, s.dir)))
	}

	if _, err := s.Download(ctx, s.defaultURL, filename); err != nil {
		return "", e.Wrap(op, err)
	}

	return s.Path(filename), nil
}

// writeAtomic пишет во временный файл рядом с целевым и переименовывает его.
func (s *Store) writeAtomic(filename string, r io.Reader) error {
	tmp, err := os.CreateTemp(s.dir, "."+filename+".part-*")
	if err != nil {
		return err
	}

	tmpName := tmp.Name()
	ok := false
	defer func() {
		if !ok {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return err
	}

	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpName, s.Path(filename)); err != nil {
		return err
	}

	ok = true
	return nil
}

func (s *Store) artifact(filename string) (*domain.ModelArtifact, error) {
	info, err := os.Stat(s.Path(filename))
	if err != nil {
		return nil, err
	}
	return &domain.ModelArtifact{Filename: filename, SizeMB: sizeMB(info.Size())}, nil
}

func sizeMB(size int64) float64 {
	return decimal.NewFromInt(size).Div(decimal.NewFromInt(bytesInMB)).Round(1).InexactFloat64()
}
