package embedder

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/psms-tech/go-backend/internal/domain"
	"github.com/psms-tech/go-backend/pkg/e"
	"github.com/psms-tech/go-backend/pkg/logger"
	"golang.org/x/sync/singleflight"
)

// ModelFiles: каталог установленных файлов моделей.
type ModelFiles interface {
	List(active string) ([]domain.ModelArtifact, error)
	Catalog(active string) []domain.CatalogEntry
	Download(ctx context.Context, url, filename string) (*domain.ModelArtifact, error)
	Save(filename string, data []byte) (*domain.ModelArtifact, error)
	Delete(filename string) error
	Exists(filename string) bool
}

var errStaleLoad = errors.New("model switched during load")

// session: загруженный бэкенд и счётчик выполняющихся на нём запросов.
type session struct {
	emb  Embedder
	refs sync.WaitGroup
}

// Provider владеет активной моделью. Модель загружается лениво, один раз на смену модели;
// смена дожидается завершения запросов к прежней модели и только потом закрывает её.
type Provider struct {
	factory     Factory
	files       ModelFiles
	logger      logger.Logger
	warmTimeout time.Duration

	mu      sync.RWMutex
	active  string
	current *session
	gen     uint64
	retired sync.WaitGroup

	loads   singleflight.Group
	warming atomic.Bool
}

func NewProvider(factory Factory, files ModelFiles, active string, warmTimeout time.Duration, logger logger.Logger) *Provider {
	return &Provider{
		factory:     factory,
		files:       files,
		logger:      logger,
		warmTimeout: warmTimeout,
		active:      active,
	}
}

// Initialize загружает активную модель, если она ещё не загружена.
func (p *Provider) Initialize(ctx context.Context) error {
	const op = "Provider.Initialize"

	if _, err := p.load(ctx); err != nil {
		return e.Wrap(op, err)
	}
	return nil
}

// Ready сообщает, загружена ли активная модель.
func (p *Provider) Ready() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current != nil
}

// WarmUp запускает загрузку модели в фоне. Повторные вызовы во время загрузки ничего не делают.
func (p *Provider) WarmUp() {
	if !p.warming.CompareAndSwap(false, true) {
		return
	}

	go func() {
		defer p.warming.Store(false)

		ctx := context.Background()
		if p.warmTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.warmTimeout)
			defer cancel()
		}

		if err := p.Initialize(ctx); err != nil {
			p.logger.Errorf(err, "background model warm-up failed")
		}
	}()
}

// Backend возвращает сведения о загруженном бэкенде, а до загрузки ожидаемые.
func (p *Provider) Backend() domain.BackendInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.current != nil {
		return p.current.emb.Info()
	}
	return p.factory.Describe(p.active)
}

// Acquire возвращает загруженный бэкенд. release нужно вызвать после завершения инференса.
func (p *Provider) Acquire(ctx context.Context) (Embedder, func(), error) {
	const op = "Provider.Acquire"

	for {
		if _, err := p.load(ctx); err != nil {
			return nil, nil, e.Wrap(op, err)
		}

		p.mu.RLock()
		s := p.current
		if s != nil {
			s.refs.Add(1)
		}
		p.mu.RUnlock()

		if s != nil {
			var once sync.Once
			return s.emb, func() { once.Do(s.refs.Done) }, nil
		}
	}
}

// load возвращает текущую сессию, загружая её при необходимости.
// Параллельные вызовы разделяют одну загрузку; загрузка, устаревшая из-за смены модели, повторяется.
func (p *Provider) load(ctx context.Context) (*session, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p.mu.RLock()
		current, gen, active := p.current, p.gen, p.active
		p.mu.RUnlock()

		if current != nil {
			return current, nil
		}

		ch := p.loads.DoChan(strconv.FormatUint(gen, 10), func() (any, error) {
			return p.loadGeneration(context.WithoutCancel(ctx), gen, active)
		})

		select {
		case res := <-ch:
			if errors.Is(res.Err, errStaleLoad) {
				continue
			}
			if res.Err != nil {
				return nil, e.Unavailable(res.Err)
			}
			return res.Val.(*session), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (p *Provider) loadGeneration(ctx context.Context, gen uint64, active string) (*session, error) {
	started := time.Now()

	emb, err := p.factory.Load(ctx, active)
	if err != nil {
		p.logger.Errorf(err, "failed to load model %s", active)
		return nil, err
	}

	p.mu.Lock()
	if p.gen != gen {
		p.mu.Unlock()
		_ = emb.Close()
		return nil, errStaleLoad
	}
	s := &session{emb: emb}
	p.current = s
	p.mu.Unlock()

	info := emb.Info()
	p.logger.Infof("model loaded: backend=%s dimension=%d text=%t in %v",
		info.Key(), info.Dimension, info.Text, time.Since(started).Round(time.Millisecond))

	return s, nil
}

// retireLocked снимает текущую сессию и закрывает её после завершения запросов. Вызывается под p.mu.
func (p *Provider) retireLocked() {
	p.gen++
	old := p.current
	p.current = nil
	if old == nil {
		return
	}

	p.retired.Add(1)
	go func() {
		defer p.retired.Done()

		old.refs.Wait()
		if err := old.emb.Close(); err != nil {
			p.logger.Warnf("failed to close model %s: %v", old.emb.Info().Key(), err)
		}
	}()
}

func (p *Provider) List(ctx context.Context) ([]domain.ModelArtifact, error) {
	const op = "Provider.List"

	p.mu.RLock()
	active := p.active
	p.mu.RUnlock()

	models, err := p.files.List(active)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	return models, nil
}

func (p *Provider) Catalog(ctx context.Context) ([]domain.CatalogEntry, error) {
	p.mu.RLock()
	active := p.active
	p.mu.RUnlock()

	return p.files.Catalog(active), nil
}

func (p *Provider) Download(ctx context.Context, url, filename string) (*domain.ModelArtifact, error) {
	const op = "Provider.Download"

	artifact, err := p.files.Download(ctx, url, filename)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	return p.markActive(artifact), nil
}

// Upload сохраняет файл модели. Перезапись активной модели приводит к её перезагрузке.
func (p *Provider) Upload(ctx context.Context, filename string, data []byte) (*domain.ModelArtifact, error) {
	const op = "Provider.Upload"

	artifact, err := p.files.Save(filename, data)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if filename == p.active {
		p.retireLocked()
		artifact.Active = true
		p.logger.Infof("active model %s replaced, it will be reloaded on next use", filename)
	}
	return artifact, nil
}

// Activate переключает активную модель. Новая модель загружается при следующем обращении.
func (p *Provider) Activate(ctx context.Context, filename string) error {
	const op = "Provider.Activate"

	if !domain.ValidModelFilename(filename) {
		return e.Wrap(op, e.ErrInvalidModelFilename)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.files.Exists(filename) {
		return e.Wrap(op, e.ErrModelNotFound)
	}

	if filename == p.active {
		return nil
	}

	previous := p.active
	p.active = filename
	p.retireLocked()

	p.logger.Infof("active model switched from %s to %s", previous, filename)
	return nil
}

// Delete удаляет файл модели. Активную модель удалить нельзя.
func (p *Provider) Delete(ctx context.Context, filename string) error {
	const op = "Provider.Delete"

	p.mu.Lock()
	defer p.mu.Unlock()

	if filename == p.active {
		return e.Wrap(op, e.ErrActiveModelDelete)
	}

	if err := p.files.Delete(filename); err != nil {
		return e.Wrap(op, err)
	}
	return nil
}

// Close закрывает загруженную модель, дождавшись выполняющихся запросов.
func (p *Provider) Close(ctx context.Context) error {
	p.mu.Lock()
	p.retireLocked()
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.retired.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Provider) markActive(artifact *domain.ModelArtifact) *domain.ModelArtifact {
	p.mu.RLock()
	defer p.mu.RUnlock()

	artifact.Active = artifact.Filename == p.active
	return artifact
}
