package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jimlawless/whereami"
	config "github.com/psms-tech/go-backend/internal/cfg"
	v1Grpc "github.com/psms-tech/go-backend/internal/delivery/v1/grpc"
	v1Http "github.com/psms-tech/go-backend/internal/delivery/v1/http"
	"github.com/psms-tech/go-backend/internal/infrastructure/embedder"
	"github.com/psms-tech/go-backend/internal/infrastructure/extractor"
	"github.com/psms-tech/go-backend/internal/infrastructure/kafka"
	minioInfra "github.com/psms-tech/go-backend/internal/infrastructure/minio"
	"github.com/psms-tech/go-backend/internal/infrastructure/modelstore"
	"github.com/psms-tech/go-backend/internal/infrastructure/tagger"
	s3Repo "github.com/psms-tech/go-backend/internal/repository/minio"
	"github.com/psms-tech/go-backend/internal/repository/pgdb"
	pgdbConv "github.com/psms-tech/go-backend/internal/repository/pgdb/converter"
	qdrantRepo "github.com/psms-tech/go-backend/internal/repository/qdrant"
	"github.com/psms-tech/go-backend/internal/repository/redis"
	redisConv "github.com/psms-tech/go-backend/internal/repository/redis/converter"
	"github.com/psms-tech/go-backend/internal/usecase"
	"github.com/psms-tech/go-backend/pkg/clients"
	"github.com/psms-tech/go-backend/pkg/closer"
	"github.com/psms-tech/go-backend/pkg/e"
	"github.com/psms-tech/go-backend/pkg/logger"
	"github.com/psms-tech/go-backend/pkg/postgres"
	"github.com/psms-tech/go-backend/pkg/tr"
)

const (
	shutdownTimeout = 15 * time.Second
	startupTimeout  = 10 * time.Second
	topicTimeout    = 10 * time.Second
)

// App собирает зависимости сервиса и управляет его жизненным циклом.
type App struct {
	cfg    *config.Config
	logger logger.Logger
	closer *closer.Closer

	httpSrv *v1Http.Server
	grpcSrv *v1Grpc.GRPCServer
	worker  *kafka.OutboxWorker
	models  *embedder.Provider

	// отменяет фоновые задачи (outbox, очистка MinIO) при остановке
	cancel context.CancelFunc
	bgCtx  context.Context
}

func NewApp(cfg *config.Config, log logger.Logger) (*App, error) {
	bgCtx, cancel := context.WithCancel(context.Background())
	a := &App{
		cfg:    cfg,
		logger: log,
		closer: closer.NewCloser(0),
		bgCtx:  bgCtx,
		cancel: cancel,
	}

	if err := a.init(); err != nil {
		cancel()
		ctx, c := context.WithTimeout(context.Background(), shutdownTimeout)
		defer c()
		if cerr := a.closer.Close(ctx); cerr != nil {
			log.Warnf("cleanup after failed start: %v", cerr)
		}
		return nil, err
	}

	return a, nil
}

func (a *App) init() error {
	cfg, log := a.cfg, a.logger

	db, err := initPGDB(log, cfg)
	if err != nil {
		return err
	}
	a.closer.AddSimple("postgres", func() error {
		db.Close()
		return nil
	})

	txManager := tr.NewManager(db.Pool)
	itemRepo := pgdb.NewItemRepo(db.Pool, pgdbConv.ItemConverter{})
	outboxRepo := pgdb.NewOutboxEventRepo(db.Pool, pgdbConv.OutboxEventConverter{})

	embeddingRepo, err := a.initEmbeddingRepo(db)
	if err != nil {
		return err
	}

	minioClient, err := clients.NewMinIOClient(cfg.Minio)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	minioCtx, minioCancel := context.WithTimeout(context.Background(), startupTimeout)
	defer minioCancel()
	if err := clients.EnsureBucket(minioCtx, minioClient, cfg.Minio.BucketName); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	imageRepo := s3Repo.NewImageRepo(minioClient, cfg.Minio)
	imagesInfra := minioInfra.NewMinioInfrastructure(imageRepo, cfg.Minio, log, a.bgCtx)
	a.closer.Add("minio cleanup", imagesInfra.WaitForCleanup)

	redisClient := clients.NewRedisClient(cfg.Redis)
	a.closer.AddSimple("redis", redisClient.Close)
	redisCtx, redisCancel := context.WithTimeout(context.Background(), startupTimeout)
	defer redisCancel()
	if err := redisClient.Ping(redisCtx); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	cacheRepo := redis.NewCacheRepo(redisClient, redisConv.ItemInfoConverter{}, cfg.Redis, log)

	store, err := modelstore.New(cfg.Lens.ModelsDir, cfg.Lens.DefaultModelURL, cfg.Lens.DownloadTimeout, log)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	factory, err := embedder.NewFactory(cfg.Lens, store, log)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	a.models = embedder.NewProvider(factory, store, cfg.Lens.ActiveModel, cfg.Lens.DownloadTimeout, log)
	a.closer.AddSimple("onnxruntime", embedder.DestroyORT)
	a.closer.Add("model provider", a.models.Close)

	var remover extractor.BackgroundRemover
	if cfg.Lens.BgRemoverURL != "" {
		remover = extractor.NewRembgClient(cfg.Lens.BgRemoverURL, cfg.Lens.BgRemoverTimeout)
	}
	featureExtractor := extractor.New(a.models, remover, cfg.Lens.MaxConcurrent, cfg.Lens.InferenceTimeout, log)

	var itemTagger usecase.Tagger
	if cfg.LLM.Enabled() {
		itemTagger = tagger.NewOpenAITagger(cfg.LLM)
	}

	producer, err := kafka.NewProducer(log, cfg.Kafka)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	a.closer.AddSimple("kafka producer", producer.Close)
	if err := producer.EnsureTopic(topicTimeout); err != nil {
		log.Warnf("kafka topic is not ready, events stay in outbox: %v", err)
	}

	a.worker = kafka.NewOutboxWorker(outboxRepo, log, producer, cfg.Db.DSN())
	a.closer.AddSimple("outbox worker", func() error {
		a.worker.Stop()
		return nil
	})

	lensUC := usecase.NewLensUC(
		a.models,
		featureExtractor,
		embeddingRepo,
		itemRepo,
		cacheRepo,
		outboxRepo,
		imagesInfra,
		kafka.EventEncoder{},
		itemTagger,
		txManager,
		log,
		usecase.LensOptions{
			Threshold:          cfg.Lens.Threshold,
			StatusTimeout:      cfg.Lens.StatusTimeout,
			TagTimeout:         cfg.LLM.Timeout,
			ReindexConcurrency: cfg.Lens.ReindexConcurrency,
			MaxUploadBytes:     cfg.Lens.MaxUploadBytes,
		},
	)
	modelUC := usecase.NewModelUC(a.models, log)

	a.grpcSrv = v1Grpc.NewGRPCServer(cfg.Grpc, log)
	a.grpcSrv.RegisterServices(lensUC)
	a.closer.Add("grpc server", a.grpcSrv.Stop)

	r := chi.NewRouter()
	router := v1Http.NewRouter(r, log, cfg.Http)
	router.Init(lensUC, modelUC, cfg.Lens.MaxUploadBytes)

	a.httpSrv = v1Http.NewServer(r, cfg.Http)
	a.closer.Add("http server", a.httpSrv.Stop)

	return nil
}

// initEmbeddingRepo выбирает хранилище эталонов по EMBEDDING_STORE.
func (a *App) initEmbeddingRepo(db *postgres.PgDatabase) (usecase.EmbeddingRepository, error) {
	if a.cfg.Lens.EmbeddingStore != config.StoreQdrant {
		return pgdb.NewEmbeddingRepo(db.Pool, pgdbConv.EmbeddingConverter{}), nil
	}

	qdrantClient, err := clients.NewQdrantClient(a.cfg.Qdrant)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	a.closer.AddSimple("qdrant", qdrantClient.Close)

	a.logger.Infof("embedding store: qdrant, collection prefix %q", qdrantClient.Prefix())
	return qdrantRepo.NewEmbeddingRepo(qdrantClient), nil
}

// Run запускает серверы и фоновые задачи и блокируется до сигнала остановки или фатальной ошибки.
func (a *App) Run() error {
	log := a.logger

	a.worker.Start(a.bgCtx)
	a.models.WarmUp()

	grpcErrCh := make(chan error, 1)
	go func() {
		log.Infof("gRPC server starting on %s:%s", a.cfg.Grpc.NetworkMode, a.cfg.Grpc.Port)
		if err := a.grpcSrv.Start(); err != nil {
			grpcErrCh <- err
		}
	}()

	httpErrCh := make(chan error, 1)
	go func() {
		log.Infof("HTTP server listening on %s", a.httpSrv.Addr())
		if err := a.httpSrv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErrCh <- err
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	var appErr error
	select {
	case appErr = <-httpErrCh:
		log.Errorf(appErr, "HTTP server fatal error")
	case appErr = <-grpcErrCh:
		log.Errorf(appErr, "gRPC server fatal error")
	case sig := <-shutdown:
		log.Infof("received %s, stopping gracefully", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.closer.Close(ctx); err != nil {
		log.Warnf("shutdown finished with errors: %v", err)
	}
	a.cancel()

	log.Infof("application shutdown complete")
	return appErr
}

func initPGDB(logger logger.Logger, cfg *config.Config) (*postgres.PgDatabase, error) {
	db, err := postgres.Connect(cfg.Db)
	if err != nil {
		logger.Errorf(err, "failed to connect to database")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := db.RunMigrations(logger); err != nil {
		db.Close()
		logger.Errorf(err, "failed to run migrations")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		logger.Errorf(err, "failed to ping database")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return db, nil
}
