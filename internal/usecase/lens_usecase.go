package usecase

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/psms-tech/go-backend/internal/domain"
	"github.com/psms-tech/go-backend/pkg/e"
	"github.com/psms-tech/go-backend/pkg/logger"
	"golang.org/x/sync/errgroup"
)

const emptyCorpusMessage = "No items are enrolled for Visual Lens yet."

// LensOptions: параметры распознавания.
type LensOptions struct {
	Threshold          *float64 // nil: порог по умолчанию для вида бэкенда
	StatusTimeout      time.Duration
	TagTimeout         time.Duration
	ReindexConcurrency int
	MaxUploadBytes     int64
}

// LensUseCase реализует распознавание, добавление и удаление эталонов предметов.
type LensUseCase struct {
	provider      ModelProvider
	extractor     FeatureExtractor
	embeddingRepo EmbeddingRepository
	itemRepo      ItemRepository
	cacheRepo     CacheRepository
	outboxRepo    OutboxRepository
	imagesInfra   ImagesInfra
	encoder       EventEncoder
	tagger        Tagger
	txManager     TxManager
	logger        logger.Logger
	opts          LensOptions
}

func NewLensUC(
	provider ModelProvider,
	extractor FeatureExtractor,
	embeddingRepo EmbeddingRepository,
	itemRepo ItemRepository,
	cacheRepo CacheRepository,
	outboxRepo OutboxRepository,
	imagesInfra ImagesInfra,
	encoder EventEncoder,
	tagger Tagger,
	txManager TxManager,
	logger logger.Logger,
	opts LensOptions,
) *LensUseCase {
	return &LensUseCase{
		provider:      provider,
		extractor:     extractor,
		embeddingRepo: embeddingRepo,
		itemRepo:      itemRepo,
		cacheRepo:     cacheRepo,
		outboxRepo:    outboxRepo,
		imagesInfra:   imagesInfra,
		encoder:       encoder,
		tagger:        tagger,
		txManager:     txManager,
		logger:        logger,
		opts:          opts,
	}
}

// Status возвращает готовность модели и статистику корпуса.
// Если модель не загружена, запускает её фоновую загрузку.
func (l *LensUseCase) Status(ctx context.Context) (*StatusRes, error) {
	const op = "LensUseCase.Status"

	ready := l.provider.Ready()
	if !ready {
		l.provider.WarmUp()
	}

	if l.opts.StatusTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.opts.StatusTimeout)
		defer cancel()
	}

	backend := l.provider.Backend()
	stats, err := l.embeddingRepo.Stats(ctx, backend.Key())
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return &StatusRes{
		ModelReady:           ready,
		ActiveModel:          backend.Artifact,
		Backend:              backend.Key(),
		EnrolledItems:        stats.EnrolledItems,
		TotalReferenceImages: stats.TotalEmbeddings,
		StaleEmbeddings:      stats.StaleEmbeddings,
	}, nil
}

// IdentifyImage ищет предметы, похожие на фото.
func (l *LensUseCase) IdentifyImage(ctx context.Context, req *IdentifyImageReq) (*IdentifyRes, error) {
	const op = "LensUseCase.IdentifyImage"

	if _, err := l.validateImage(req.Data); err != nil {
		return nil, e.Wrap(op, err)
	}

	features, err := l.extractor.ExtractImage(ctx, req.Data)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	res, err := l.identify(ctx, features, req.Limit)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return res, nil
}

// IdentifyText ищет предметы по текстовому описанию. Доступно только бэкендам с общим пространством.
func (l *LensUseCase) IdentifyText(ctx context.Context, req *IdentifyTextReq) (*IdentifyRes, error) {
	const op = "LensUseCase.IdentifyText"

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, e.Wrap(op, e.ErrEmptyQuery)
	}

	features, err := l.extractor.ExtractText(ctx, query)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	res, err := l.identify(ctx, features, req.Limit)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return res, nil
}

// identify сопоставляет признаки с эталонами того же бэкенда и подтягивает сведения о предметах.
func (l *LensUseCase) identify(ctx context.Context, features *Features, limit int) (*IdentifyRes, error) {
	corpus, err := l.embeddingRepo.ListByBackend(ctx, features.Backend.Key())
	if err != nil {
		return nil, err
	}

	if len(corpus) == 0 {
		return &IdentifyRes{Matches: []Match{}, Message: emptyCorpusMessage}, nil
	}

	outcome := RankCorpus(features.Vector, corpus, l.threshold(features.Backend), limit)
	if outcome.Skipped > 0 {
		l.logger.Warnf("skipped %d embeddings with foreign dimension or non-finite values (query dim %d, backend %s)",
			outcome.Skipped, len(features.Vector), features.Backend.Key())
	}

	ids := make([]uuid.UUID, 0, len(outcome.Matches))
	for _, m := range outcome.Matches {
		ids = append(ids, m.ItemID)
	}

	items, err := l.getItemsInfo(ctx, ids)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(outcome.Matches))
	for _, m := range outcome.Matches {
		item, ok := items[m.ItemID]
		if !ok {
			continue
		}
		matches = append(matches, Match{
			Confidence:     m.Confidence,
			Similarity:     m.Similarity,
			ReferenceImage: m.ReferenceImage,
			Item:           item,
		})
	}

	return &IdentifyRes{Matches: matches, Skipped: outcome.Skipped}, nil
}

// Enroll добавляет эталонное фото предмета.
// Признаки извлекаются до записи в хранилища, поэтому при ошибке извлечения ничего не сохраняется.
func (l *LensUseCase) Enroll(ctx context.Context, req *EnrollReq) (*EnrollRes, error) {
	const op = "LensUseCase.Enroll"

	item, err := l.itemRepo.Get(ctx, req.ItemID)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	contentType, err := l.validateImage(req.Data)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	features, err := l.extractor.ExtractImage(ctx, req.Data)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	// Сохранение изображения в MinIO
	upload, err := l.imagesInfra.UploadImage(ctx, &UploadImageReq{
		Prefix:      item.ID.String(),
		Name:        req.Filename,
		Data:        req.Data,
		ContentType: contentType,
	})
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	backend := features.Backend.Key()
	record := domain.NewEmbeddingRecord(item.ID, upload.URL, upload.Key, features.Vector, backend)

	err = l.txManager.Do(ctx, func(ctx context.Context) error {
		if err := l.embeddingRepo.Create(ctx, record); err != nil {
			return err
		}

		if _, err := l.itemRepo.SetImageIfEmpty(ctx, item.ID, upload.URL); err != nil {
			return err
		}

		return l.addOutboxEvent(ctx, NewEnrollmentEvent(domain.ItemEnrolled, item.ID, backend, []domain.EmbeddingRecord{*record}))
	})
	if err != nil {
		// Если произошла ошибка, удаляем загруженное изображение и запись из внешнего хранилища векторов
		l.logger.Warnf("Cleaning up reference image after enrollment failure. item_id: %s, error: %v", item.ID, e.Wrap(op, err))
		l.imagesInfra.CleanupImages([]string{upload.Key})
		l.compensateRecords([]uuid.UUID{record.ID})
		return nil, e.Wrap(op, err)
	}

	l.invalidateItems(ctx, item.ID)

	res := &EnrollRes{
		EnrollmentID: record.ID,
		ImageURL:     upload.URL,
		Backend:      backend,
	}

	if req.AutoTag {
		if !item.HasImage() {
			item.ImageURL = upload.URL
		}
		l.autoTag(ctx, item, req.Data, contentType, res)
	}

	return res, nil
}

// Unenroll удаляет все эталоны предмета и их изображения.
func (l *LensUseCase) Unenroll(ctx context.Context, itemID uuid.UUID) (*UnenrollRes, error) {
	const op = "LensUseCase.Unenroll"

	var removed []domain.EmbeddingRecord
	err := l.txManager.Do(ctx, func(ctx context.Context) error {
		var err error
		removed, err = l.embeddingRepo.DeleteByItem(ctx, itemID)
		if err != nil {
			return err
		}
		if len(removed) == 0 {
			return e.ErrNoEnrollments
		}

		urls := make([]string, 0, len(removed))
		for _, r := range removed {
			urls = append(urls, r.ImageURL)
		}

		if _, err := l.itemRepo.ClearImage(ctx, itemID, urls); err != nil {
			return err
		}

		return l.addOutboxEvent(ctx, NewEnrollmentEvent(domain.ItemUnenrolled, itemID, "", removed))
	})
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	keys := make([]string, 0, len(removed))
	for _, r := range removed {
		if r.ImageKey != "" {
			keys = append(keys, r.ImageKey)
		}
	}
	l.imagesInfra.CleanupImages(keys)
	l.invalidateItems(ctx, itemID)

	return &UnenrollRes{Removed: len(removed)}, nil
}

// Reindex пересчитывает эталоны, построенные другим бэкендом, по сохранённым изображениям.
// Ошибки отдельных записей не прерывают переиндексацию.
func (l *LensUseCase) Reindex(ctx context.Context) (*ReindexRes, error) {
	const op = "LensUseCase.Reindex"

	if err := l.provider.Initialize(ctx); err != nil {
		return nil, e.Wrap(op, err)
	}
	backend := l.provider.Backend().Key()

	stale, err := l.embeddingRepo.ListStale(ctx, backend)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	var reindexed, failed atomic.Int64
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(max(l.opts.ReindexConcurrency, 1))

	for _, rec := range stale {
		g.Go(func() error {
			if err := l.reindexRecord(gCtx, rec, backend); err != nil {
				failed.Add(1)
				l.logger.Warnf("reindex of embedding %s failed: %v", rec.ID, e.Wrap(op, err))
				return nil
			}
			reindexed.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	l.logger.Infof("reindex finished for backend %s: reindexed=%d failed=%d", backend, reindexed.Load(), failed.Load())
	return &ReindexRes{Reindexed: int(reindexed.Load()), Failed: int(failed.Load())}, nil
}

func (l *LensUseCase) reindexRecord(ctx context.Context, rec domain.EmbeddingRecord, backend string) error {
	data, err := l.imagesInfra.FetchImage(ctx, rec.ImageKey)
	if err != nil {
		return err
	}

	features, err := l.extractor.ExtractImage(ctx, data)
	if err != nil {
		return err
	}
	if key := features.Backend.Key(); key != backend {
		return e.Wrap("active model changed during reindex to "+key, e.ErrInvalidOperation)
	}

	rec.Vector = features.Vector
	rec.Backend = backend
	rec.Dimension = len(features.Vector)

	return l.txManager.Do(ctx, func(ctx context.Context) error {
		if err := l.embeddingRepo.UpdateVector(ctx, rec.ID, rec.Vector, backend); err != nil {
			return err
		}
		return l.addOutboxEvent(ctx, NewEnrollmentEvent(domain.ItemReindexed, rec.ItemID, backend, []domain.EmbeddingRecord{rec}))
	})
}

// autoTag дополняет теги и атрибуты предмета ответом LLM. Ошибки только логируются.
func (l *LensUseCase) autoTag(ctx context.Context, item *domain.Item, data []byte, contentType string, res *EnrollRes) {
	const op = "LensUseCase.autoTag"

	if l.tagger == nil {
		l.logger.Warnf("auto-tagging requested for item %s but no tagger is configured", item.ID)
		return
	}

	if l.opts.TagTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.opts.TagTimeout)
		defer cancel()
	}

	tags, err := l.tagger.Tag(ctx, &TagReq{Image: data, ContentType: contentType, Item: item})
	if err != nil {
		l.logger.Warnf("auto-tagging failed for item %s: %v", item.ID, e.Wrap(op, err))
		return
	}

	changedTags := item.MergeTags(tags.Tags)
	changedAttrs := item.MergeAttributes(tags.Attributes)
	res.Tags = tags.Tags
	res.Attributes = tags.Attributes
	if !changedTags && !changedAttrs {
		return
	}

	if err := l.itemRepo.UpdateMetadata(ctx, item); err != nil {
		l.logger.Warnf("failed to save auto-tags for item %s: %v", item.ID, e.Wrap(op, err))
		return
	}
	l.invalidateItems(ctx, item.ID)
}

// getItemsInfo ищет предметы сначала в кэше, промахи добирает из БД и кэширует в фоне.
func (l *LensUseCase) getItemsInfo(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]ItemInfo, error) {
	const op = "LensUseCase.getItemsInfo"

	result := make(map[uuid.UUID]ItemInfo, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	cached, err := l.cacheRepo.GetItems(ctx, ids)
	if err != nil {
		l.logger.Warnf("item cache lookup failed: %v", e.Wrap(op, err))
		cached = nil
	}

	var missing []uuid.UUID
	for _, id := range ids {
		if item, ok := cached[id]; ok {
			result[id] = item
		} else {
			missing = append(missing, id)
		}
	}

	if len(missing) == 0 {
		return result, nil
	}

	fromDB, err := l.itemRepo.GetItemsInfo(ctx, missing)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	for _, item := range fromDB {
		result[item.ID] = item
	}

	if len(fromDB) > 0 {
		// Фоновое добавление предметов в кэш
		go func() {
			bgCtx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
			defer cancel()

			if err := l.cacheRepo.SetItems(bgCtx, fromDB); err != nil {
				l.logger.Warnf("Failed to cache items in background: %v", e.Wrap(op, err))
			}
		}()
	}

	return result, nil
}

func (l *LensUseCase) addOutboxEvent(ctx context.Context, event *EnrollmentEvent) error {
	payload, err := l.encoder.EncodeEnrollmentEvent(event)
	if err != nil {
		return err
	}

	outboxEvent := domain.NewOutboxEvent(event.Type, event.ItemID, payload)
	outboxEvent.EventID = event.EventID

	_, err = l.outboxRepo.Create(ctx, outboxEvent)
	return err
}

// compensateRecords удаляет записи, которые могли попасть во внешнее векторное хранилище вне транзакции.
func (l *LensUseCase) compensateRecords(ids []uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := l.embeddingRepo.DeleteByIDs(ctx, ids); err != nil {
		l.logger.Warnf("failed to compensate embedding records %v: %v", ids, err)
	}
}

func (l *LensUseCase) invalidateItems(ctx context.Context, ids ...uuid.UUID) {
	if err := l.cacheRepo.DeleteItems(ctx, ids); err != nil {
		l.logger.Warnf("Failed to delete items from cache: %v", err)
	}
}

func (l *LensUseCase) threshold(backend domain.BackendInfo) float64 {
	if l.opts.Threshold != nil {
		return *l.opts.Threshold
	}
	return backend.Kind.Threshold()
}

// validateImage проверяет, что данные являются изображением допустимого размера, и возвращает его MIME-тип.
func (l *LensUseCase) validateImage(data []byte) (string, error) {
	if len(data) == 0 {
		return "", e.ErrNoImage
	}
	if l.opts.MaxUploadBytes > 0 && int64(len(data)) > l.opts.MaxUploadBytes {
		return "", e.ErrFileTooLarge
	}

	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "image/") {
		return "", e.Wrap(mime.String(), e.ErrUnsupportedMediaType)
	}

	return mime.String(), nil
}

var _ LensUC = (*LensUseCase)(nil)

