package usecase

import (
	"context"
	"image/color"
	"testing"

	"github.com/google/uuid"
	"github.com/psms-tech/go-backend/internal/domain"
	"github.com/psms-tech/go-backend/pkg/e"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lensFixture struct {
	uc        *LensUseCase
	store     *memStore
	cache     *memCache
	images    *memImages
	extractor *colorExtractor
	provider  *fakeProvider
}

func newLensFixture(t *testing.T, tagger Tagger) *lensFixture {
	t.Helper()

	store := newMemStore()
	cache := newMemCache()
	images := newMemImages()
	extractor := newColorExtractor()
	provider := newFakeProvider(extractor)

	uc := NewLensUC(provider, extractor, store, store, cache, outboxRepo{store: store}, images,
		jsonEncoder{}, tagger, store, discardLogger(), LensOptions{ReindexConcurrency: 2, MaxUploadBytes: 10 << 20})

	return &lensFixture{uc: uc, store: store, cache: cache, images: images, extractor: extractor, provider: provider}
}

var red = color.RGBA{R: 255, A: 255}

func TestLensUseCase_EnrollThenIdentify(t *testing.T) {
	f := newLensFixture(t, nil)
	ctx := context.Background()
	item := f.store.addItem("Red mug")
	other := f.store.addItem("Blue mug")

	img := solidPNG(t, red, 224)
	res, err := f.uc.Enroll(ctx, &EnrollReq{ItemID: item.ID, Data: img, Filename: "red.png"})
	require.NoError(t, err)
	assert.Equal(t, "classifier/mobilenetv2-12.onnx", res.Backend)
	assert.NotEmpty(t, res.ImageURL)

	_, err = f.uc.Enroll(ctx, &EnrollReq{ItemID: other.ID, Data: solidPNG(t, color.RGBA{B: 255, A: 255}, 64), Filename: "blue.png"})
	require.NoError(t, err)

	// Первое фото становится основным изображением предмета
	assert.Equal(t, res.ImageURL, f.store.item(item.ID).ImageURL)
	assert.Equal(t, 2, f.store.outboxCount())

	found, err := f.uc.IdentifyImage(ctx, &IdentifyImageReq{Data: img, Limit: 5})
	require.NoError(t, err)
	require.NotEmpty(t, found.Matches)
	top := found.Matches[0]
	assert.Equal(t, item.ID, top.Item.ID)
	assert.Equal(t, "Garage", top.Item.LocationName)
	assert.InDelta(t, 1.0, top.Similarity, 1e-4)
	assert.Equal(t, MaxConfidence, top.Confidence)
	assert.Equal(t, res.ImageURL, top.ReferenceImage)
}

func TestLensUseCase_IdentifyEmptyCorpus(t *testing.T) {
	f := newLensFixture(t, nil)

	res, err := f.uc.IdentifyImage(context.Background(), &IdentifyImageReq{Data: solidPNG(t, red, 32)})
	require.NoError(t, err)
	assert.Empty(t, res.Matches)
	assert.NotNil(t, res.Matches)
	assert.Equal(t, emptyCorpusMessage, res.Message)
}

func TestLensUseCase_EnrollExtractionFailurePersistsNothing(t *testing.T) {
	f := newLensFixture(t, nil)
	item := f.store.addItem("Lamp")
	f.extractor.err = e.Extraction(errBoom)

	_, err := f.uc.Enroll(context.Background(), &EnrollReq{ItemID: item.ID, Data: solidPNG(t, red, 32)})
	require.Error(t, err)
	assert.ErrorIs(t, err, e.ErrExtractionFailed)

	assert.Zero(t, f.store.recordCount())
	assert.Zero(t, f.images.count())
	assert.Zero(t, f.store.outboxCount())
	assert.Empty(t, f.store.item(item.ID).ImageURL)
}

func TestLensUseCase_EnrollStoreFailureCleansUp(t *testing.T) {
	f := newLensFixture(t, nil)
	item := f.store.addItem("Lamp")
	f.store.createErr = errBoom

	_, err := f.uc.Enroll(context.Background(), &EnrollReq{ItemID: item.ID, Data: solidPNG(t, red, 32)})
	require.ErrorIs(t, err, errBoom)

	assert.Zero(t, f.images.count())
	assert.Len(t, f.images.cleaned, 1)
	assert.Len(t, f.store.deletedIDs, 1)
	assert.Empty(t, f.store.item(item.ID).ImageURL)
}

func TestLensUseCase_EnrollValidation(t *testing.T) {
	f := newLensFixture(t, nil)
	item := f.store.addItem("Lamp")
	ctx := context.Background()

	t.Run("unknown item", func(t *testing.T) {
		_, err := f.uc.Enroll(ctx, &EnrollReq{ItemID: uuid.New(), Data: solidPNG(t, red, 8)})
		assert.ErrorIs(t, err, e.ErrNotFound)
		assert.Zero(t, f.extractor.callCount())
	})

	t.Run("no image", func(t *testing.T) {
		_, err := f.uc.Enroll(ctx, &EnrollReq{ItemID: item.ID})
		assert.ErrorIs(t, err, e.ErrNoImage)
	})

	t.Run("not an image", func(t *testing.T) {
		_, err := f.uc.Enroll(ctx, &EnrollReq{ItemID: item.ID, Data: []byte("%PDF-1.4 hello")})
		assert.ErrorIs(t, err, e.ErrUnsupportedMediaType)
		assert.ErrorIs(t, err, e.ErrValidation)
	})

	t.Run("too large", func(t *testing.T) {
		_, err := f.uc.Enroll(ctx, &EnrollReq{ItemID: item.ID, Data: make([]byte, 10<<20+1)})
		assert.ErrorIs(t, err, e.ErrFileTooLarge)
	})

	assert.Zero(t, f.store.recordCount())
}

func TestLensUseCase_Unenroll(t *testing.T) {
	f := newLensFixture(t, nil)
	ctx := context.Background()
	item := f.store.addItem("Red mug")
	img := solidPNG(t, red, 32)

	for range 2 {
		_, err := f.uc.Enroll(ctx, &EnrollReq{ItemID: item.ID, Data: img})
		require.NoError(t, err)
	}

	res, err := f.uc.Unenroll(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Removed)
	assert.Zero(t, f.images.count())
	assert.Empty(t, f.store.item(item.ID).ImageURL)

	found, err := f.uc.IdentifyImage(ctx, &IdentifyImageReq{Data: img})
	require.NoError(t, err)
	assert.Empty(t, found.Matches)

	_, err = f.uc.Unenroll(ctx, item.ID)
	assert.ErrorIs(t, err, e.ErrNoEnrollments)
	assert.ErrorIs(t, err, e.ErrNotFound)
}

func TestLensUseCase_UnenrollKeepsForeignPrimaryImage(t *testing.T) {
	f := newLensFixture(t, nil)
	ctx := context.Background()
	item := f.store.addItem("Chair")
	item.ImageURL = "http://example.com/chair.jpg"
	require.NoError(t, f.store.UpdateMetadata(ctx, &item))

	_, err := f.uc.Enroll(ctx, &EnrollReq{ItemID: item.ID, Data: solidPNG(t, red, 16)})
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/chair.jpg", f.store.item(item.ID).ImageURL)

	_, err = f.uc.Unenroll(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/chair.jpg", f.store.item(item.ID).ImageURL)
}

func TestLensUseCase_IdentifyText(t *testing.T) {
	f := newLensFixture(t, nil)
	ctx := context.Background()

	_, err := f.uc.IdentifyText(ctx, &IdentifyTextReq{Query: "   "})
	assert.ErrorIs(t, err, e.ErrEmptyQuery)

	_, err = f.uc.IdentifyText(ctx, &IdentifyTextReq{Query: "red mug"})
	assert.ErrorIs(t, err, e.ErrUnsupportedOperation)

	f.extractor.setBackend(domain.BackendInfo{Kind: domain.BackendCLIP, Artifact: "clip-vit-b32.onnx", Dimension: 4, Text: true})
	item := f.store.addItem("Red mug")
	_, err = f.uc.Enroll(ctx, &EnrollReq{ItemID: item.ID, Data: solidPNG(t, red, 16)})
	require.NoError(t, err)

	res, err := f.uc.IdentifyText(ctx, &IdentifyTextReq{Query: "red mug", Limit: 1})
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, item.ID, res.Matches[0].Item.ID)
}

func TestLensUseCase_IdentifyIgnoresOtherBackends(t *testing.T) {
	f := newLensFixture(t, nil)
	ctx := context.Background()
	item := f.store.addItem("Red mug")
	img := solidPNG(t, red, 16)

	_, err := f.uc.Enroll(ctx, &EnrollReq{ItemID: item.ID, Data: img})
	require.NoError(t, err)

	f.extractor.setBackend(domain.BackendInfo{Kind: domain.BackendClassifier, Artifact: "resnet50-v2-7.onnx", Dimension: 4})

	res, err := f.uc.IdentifyImage(ctx, &IdentifyImageReq{Data: img})
	require.NoError(t, err)
	assert.Empty(t, res.Matches)

	status, err := f.uc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), status.StaleEmbeddings)
	assert.Equal(t, "resnet50-v2-7.onnx", status.ActiveModel)
}

func TestLensUseCase_Reindex(t *testing.T) {
	f := newLensFixture(t, nil)
	ctx := context.Background()
	img := solidPNG(t, red, 16)

	for _, name := range []string{"Mug", "Lamp", "Chair"} {
		item := f.store.addItem(name)
		_, err := f.uc.Enroll(ctx, &EnrollReq{ItemID: item.ID, Data: img})
		require.NoError(t, err)
	}

	f.extractor.setBackend(domain.BackendInfo{Kind: domain.BackendClassifier, Artifact: "squeezenet1.0-12.onnx", Dimension: 4})

	res, err := f.uc.Reindex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Reindexed)
	assert.Zero(t, res.Failed)

	status, err := f.uc.Status(ctx)
	require.NoError(t, err)
	assert.Zero(t, status.StaleEmbeddings)
	assert.Equal(t, int64(3), status.EnrolledItems)
}

func TestLensUseCase_ReindexCountsFailures(t *testing.T) {
	f := newLensFixture(t, nil)
	ctx := context.Background()
	item := f.store.addItem("Mug")
	_, err := f.uc.Enroll(ctx, &EnrollReq{ItemID: item.ID, Data: solidPNG(t, red, 16)})
	require.NoError(t, err)

	// Изображение пропало из хранилища
	for key := range f.images.objects {
		delete(f.images.objects, key)
	}

	f.extractor.setBackend(domain.BackendInfo{Kind: domain.BackendClassifier, Artifact: "squeezenet1.0-12.onnx", Dimension: 4})

	out, err := f.uc.Reindex(ctx)
	require.NoError(t, err)
	assert.Zero(t, out.Reindexed)
	assert.Equal(t, 1, out.Failed)
}

func TestLensUseCase_Status(t *testing.T) {
	f := newLensFixture(t, nil)
	f.provider.ready = false

	status, err := f.uc.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, status.ModelReady)
	assert.Equal(t, 1, f.provider.warmUps)
	assert.Equal(t, "classifier/mobilenetv2-12.onnx", status.Backend)
	assert.Zero(t, status.EnrolledItems)
}

func TestLensUseCase_AutoTag(t *testing.T) {
	ctx := context.Background()

	t.Run("merges tags", func(t *testing.T) {
		f := newLensFixture(t, fakeTagger{res: &TagRes{
			Tags:       []string{"kitchen", "ceramic"},
			Attributes: map[string]string{"color": "red"},
		}})
		item := f.store.addItem("Mug")

		res, err := f.uc.Enroll(ctx, &EnrollReq{ItemID: item.ID, Data: solidPNG(t, red, 16), AutoTag: true})
		require.NoError(t, err)
		assert.Equal(t, []string{"kitchen", "ceramic"}, res.Tags)

		stored := f.store.item(item.ID)
		assert.ElementsMatch(t, []string{"kitchen", "ceramic"}, stored.Tags)
		assert.Equal(t, "red", stored.Attributes["color"])
		assert.Equal(t, res.ImageURL, stored.ImageURL)
	})

	t.Run("failure is not fatal", func(t *testing.T) {
		f := newLensFixture(t, fakeTagger{err: errBoom})
		item := f.store.addItem("Mug")

		res, err := f.uc.Enroll(ctx, &EnrollReq{ItemID: item.ID, Data: solidPNG(t, red, 16), AutoTag: true})
		require.NoError(t, err)
		assert.Empty(t, res.Tags)
		assert.Equal(t, 1, f.store.recordCount())
	})

	t.Run("no tagger", func(t *testing.T) {
		f := newLensFixture(t, nil)
		item := f.store.addItem("Mug")

		_, err := f.uc.Enroll(ctx, &EnrollReq{ItemID: item.ID, Data: solidPNG(t, red, 16), AutoTag: true})
		require.NoError(t, err)
	})
}

func TestLensUseCase_ThresholdOverride(t *testing.T) {
	classifier := domain.BackendInfo{Kind: domain.BackendClassifier}
	clip := domain.BackendInfo{Kind: domain.BackendCLIP}

	uc := &LensUseCase{}
	assert.Equal(t, domain.ClassifierThreshold, uc.threshold(classifier))
	assert.Equal(t, domain.JointThreshold, uc.threshold(clip))

	zero := 0.0
	uc.opts.Threshold = &zero
	assert.Zero(t, uc.threshold(classifier))

	negative := -0.2
	uc.opts.Threshold = &negative
	assert.Equal(t, -0.2, uc.threshold(clip))
}
