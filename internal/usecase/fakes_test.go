package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/psms-tech/go-backend/internal/domain"
	"github.com/psms-tech/go-backend/pkg/e"
	"github.com/psms-tech/go-backend/pkg/logger"
	"github.com/psms-tech/go-backend/pkg/vecmath"
	"github.com/stretchr/testify/require"
)

func discardLogger() logger.Logger {
	return logger.NewSlogLoggerWithWriter(io.Discard, slog.LevelError)
}

func solidPNG(t *testing.T, c color.Color, size int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// memStore: хранилище в памяти с откатом изменений при ошибке транзакции.
type memStore struct {
	mu         sync.Mutex
	records    map[uuid.UUID]domain.EmbeddingRecord
	items      map[uuid.UUID]domain.Item
	outbox     []*domain.OutboxEvent
	createErr  error
	deletedIDs []uuid.UUID
}

func newMemStore() *memStore {
	return &memStore{
		records: make(map[uuid.UUID]domain.EmbeddingRecord),
		items:   make(map[uuid.UUID]domain.Item),
	}
}

func (s *memStore) addItem(name string) domain.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := domain.Item{ID: uuid.New(), Name: name, LocationName: "Garage"}
	s.items[item.ID] = item
	return item
}

func (s *memStore) item(id uuid.UUID) domain.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[id]
}

func (s *memStore) recordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *memStore) outboxCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.outbox)
}

// Do выполняет fn и откатывает состояние при ошибке.
func (s *memStore) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	records := make(map[uuid.UUID]domain.EmbeddingRecord, len(s.records))
	for k, v := range s.records {
		records[k] = v
	}
	items := make(map[uuid.UUID]domain.Item, len(s.items))
	for k, v := range s.items {
		items[k] = v
	}
	outbox := append([]*domain.OutboxEvent(nil), s.outbox...)
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.records, s.items, s.outbox = records, items, outbox
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *memStore) Create(_ context.Context, record *domain.EmbeddingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.records[record.ID] = *record
	return nil
}

func (s *memStore) ListByBackend(_ context.Context, backend string) ([]domain.EmbeddingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.EmbeddingRecord
	for _, r := range s.records {
		if r.Backend == backend {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memStore) ListStale(_ context.Context, backend string) ([]domain.EmbeddingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.EmbeddingRecord
	for _, r := range s.records {
		if r.Backend != backend {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) UpdateVector(_ context.Context, id uuid.UUID, vector []float32, backend string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return e.ErrNotFound
	}
	r.Vector, r.Backend, r.Dimension = vector, backend, len(vector)
	s.records[id] = r
	return nil
}

func (s *memStore) DeleteByItem(_ context.Context, itemID uuid.UUID) ([]domain.EmbeddingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.EmbeddingRecord
	for id, r := range s.records {
		if r.ItemID == itemID {
			out = append(out, r)
			delete(s.records, id)
		}
	}
	return out, nil
}

func (s *memStore) DeleteByIDs(_ context.Context, ids []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.records, id)
	}
	s.deletedIDs = append(s.deletedIDs, ids...)
	return nil
}

func (s *memStore) Stats(_ context.Context, backend string) (*domain.EmbeddingStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := &domain.EmbeddingStats{}
	items := map[uuid.UUID]struct{}{}
	for _, r := range s.records {
		stats.TotalEmbeddings++
		items[r.ItemID] = struct{}{}
		if r.Backend != backend {
			stats.StaleEmbeddings++
		}
	}
	stats.EnrolledItems = int64(len(items))
	return stats, nil
}

func (s *memStore) Get(_ context.Context, id uuid.UUID) (*domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil, e.ErrItemNotFound
	}
	return &item, nil
}

func (s *memStore) GetItemsInfo(_ context.Context, ids []uuid.UUID) ([]ItemInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ItemInfo
	for _, id := range ids {
		if item, ok := s.items[id]; ok {
			out = append(out, NewItemInfo(&item))
		}
	}
	return out, nil
}

func (s *memStore) SetImageIfEmpty(_ context.Context, id uuid.UUID, imageURL string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return false, e.ErrItemNotFound
	}
	if item.ImageURL != "" {
		return false, nil
	}
	item.ImageURL = imageURL
	s.items[id] = item
	return true, nil
}

func (s *memStore) ClearImage(_ context.Context, id uuid.UUID, imageURLs []string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return false, nil
	}
	for _, u := range imageURLs {
		if item.ImageURL == u {
			item.ImageURL = ""
			s.items[id] = item
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) UpdateMetadata(_ context.Context, item *domain.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = *item
	return nil
}

// outboxRepo отделён от memStore, так как у репозиториев совпадают имена методов Create.
type outboxRepo struct{ store *memStore }

func (o outboxRepo) Create(_ context.Context, event *domain.OutboxEvent) (*domain.OutboxEvent, error) {
	o.store.mu.Lock()
	defer o.store.mu.Unlock()
	event.ID = int64(len(o.store.outbox) + 1)
	o.store.outbox = append(o.store.outbox, event)
	return event, nil
}

func (o outboxRepo) GetAndMarkAsProcessing(context.Context, int) ([]*domain.OutboxEvent, error) {
	return nil, nil
}

func (o outboxRepo) MarkAsProcessed(context.Context, int64) error { return nil }

func (o outboxRepo) MarkAsPending(context.Context, int64) error { return nil }

type memCache struct {
	mu    sync.Mutex
	items map[uuid.UUID]ItemInfo
}

func newMemCache() *memCache {
	return &memCache{items: make(map[uuid.UUID]ItemInfo)}
}

func (c *memCache) GetItems(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]ItemInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[uuid.UUID]ItemInfo)
	for _, id := range ids {
		if item, ok := c.items[id]; ok {
			out[id] = item
		}
	}
	return out, nil
}

func (c *memCache) SetItems(_ context.Context, items []ItemInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, item := range items {
		c.items[item.ID] = item
	}
	return nil
}

func (c *memCache) DeleteItems(_ context.Context, ids []uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.items, id)
	}
	return nil
}

type memImages struct {
	mu        sync.Mutex
	objects   map[string][]byte
	cleaned   []string
	uploadErr error
}

func newMemImages() *memImages {
	return &memImages{objects: make(map[string][]byte)}
}

func (m *memImages) UploadImage(_ context.Context, req *UploadImageReq) (*UploadImageRes, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploadErr != nil {
		return nil, m.uploadErr
	}
	key := req.Prefix + "/" + uuid.NewString() + ".png"
	m.objects[key] = req.Data
	return &UploadImageRes{Key: key, URL: "http://minio/lens/" + key}, nil
}

func (m *memImages) FetchImage(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, e.ErrNotFound
	}
	return data, nil
}

func (m *memImages) CleanupImages(keys []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.objects, k)
	}
	m.cleaned = append(m.cleaned, keys...)
}

func (m *memImages) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// colorExtractor строит вектор из среднего цвета изображения.
type colorExtractor struct {
	mu      sync.Mutex
	backend domain.BackendInfo
	err     error
	calls   int
}

func newColorExtractor() *colorExtractor {
	return &colorExtractor{backend: domain.BackendInfo{Kind: domain.BackendClassifier, Artifact: "mobilenetv2-12.onnx", Dimension: 4}}
}

func (c *colorExtractor) ExtractImage(_ context.Context, data []byte) (*Features, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return nil, c.err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, e.ErrCorruptImage
	}

	var r, g, b float64
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			cr, cg, cb, _ := img.At(x, y).RGBA()
			r, g, b = r+float64(cr), g+float64(cg), b+float64(cb)
		}
	}
	vec := vecmath.Normalize([]float32{float32(r), float32(g), float32(b), 1})
	return &Features{Vector: vec, Backend: c.backend}, nil
}

func (c *colorExtractor) ExtractText(context.Context, string) (*Features, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.backend.Text {
		return nil, e.ErrNoTextEncoder
	}
	return &Features{Vector: []float32{1, 0, 0, 0}, Backend: c.backend}, nil
}

func (c *colorExtractor) setBackend(info domain.BackendInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.backend = info
}

func (c *colorExtractor) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type fakeProvider struct {
	mu        sync.Mutex
	ready     bool
	warmUps   int
	extractor *colorExtractor
	active    string
	installed map[string]float64
	initErr   error
}

func newFakeProvider(extractor *colorExtractor) *fakeProvider {
	return &fakeProvider{
		ready:     true,
		extractor: extractor,
		active:    "mobilenetv2-12.onnx",
		installed: map[string]float64{"mobilenetv2-12.onnx": 13.3},
	}
}

func (p *fakeProvider) Initialize(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.initErr != nil {
		return p.initErr
	}
	p.ready = true
	return nil
}

func (p *fakeProvider) Ready() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ready
}

func (p *fakeProvider) WarmUp() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.warmUps++
}

func (p *fakeProvider) Backend() domain.BackendInfo {
	p.extractor.mu.Lock()
	defer p.extractor.mu.Unlock()
	return p.extractor.backend
}

func (p *fakeProvider) List(context.Context) ([]domain.ModelArtifact, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.ModelArtifact
	for name, size := range p.installed {
		out = append(out, domain.ModelArtifact{Filename: name, SizeMB: size, Active: name == p.active})
	}
	return out, nil
}

func (p *fakeProvider) Catalog(context.Context) ([]domain.CatalogEntry, error) {
	return []domain.CatalogEntry{{Filename: "mobilenetv2-12.onnx", Installed: true, Active: true}}, nil
}

func (p *fakeProvider) Download(_ context.Context, _ string, filename string) (*domain.ModelArtifact, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.installed[filename] = 1
	return &domain.ModelArtifact{Filename: filename, SizeMB: 1}, nil
}

func (p *fakeProvider) Upload(_ context.Context, filename string, data []byte) (*domain.ModelArtifact, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.installed[filename] = float64(len(data))
	return &domain.ModelArtifact{Filename: filename}, nil
}

func (p *fakeProvider) Activate(_ context.Context, filename string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.installed[filename]; !ok {
		return e.ErrModelNotFound
	}
	p.active = filename
	p.ready = false
	return nil
}

func (p *fakeProvider) Delete(_ context.Context, filename string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if filename == p.active {
		return e.ErrActiveModelDelete
	}
	if _, ok := p.installed[filename]; !ok {
		return e.ErrModelNotFound
	}
	delete(p.installed, filename)
	return nil
}

type jsonEncoder struct{}

func (jsonEncoder) EncodeEnrollmentEvent(event *EnrollmentEvent) ([]byte, error) {
	return json.Marshal(event)
}

type fakeTagger struct {
	res *TagRes
	err error
}

func (f fakeTagger) Tag(context.Context, *TagReq) (*TagRes, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.res, nil
}

var errBoom = errors.New("boom")
