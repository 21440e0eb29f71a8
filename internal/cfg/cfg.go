package cfg

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jimlawless/whereami"
	"github.com/joho/godotenv"
	"github.com/psms-tech/go-backend/internal/domain"
	"github.com/psms-tech/go-backend/pkg/e"
	"github.com/psms-tech/go-backend/pkg/logger"
)

type Config struct {
	Minio  *MinIOCfg
	Http   *HTTPConfig
	Grpc   *GRPCConfig
	Db     *PGDBCfg
	Qdrant *QdrantCfg
	Redis  *RedisCfg
	Kafka  *KafkaCfg
	Lens   *LensCfg
	LLM    *LLMCfg
}

type KafkaCfg struct {
	Topic             string
	Brokers           []string
	NetworkMode       string
	Partitions        int
	ReplicationFactor int
}

type MinIOCfg struct {
	MinioEndpoint     string // Адрес конечной точки Minio
	BucketName        string // Название конкретного бакета в Minio
	MinioRootUser     string // Имя пользователя для доступа к Minio
	MinioRootPassword string // Пароль для доступа к Minio
	MinioUseSSL       bool
	PublicURL         string // Базовый адрес, по которому клиенты получают изображения
	CleanupTimeout    time.Duration
}

type HTTPConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	AllowedOrigins []string
	SwaggerURL     string
}

type GRPCConfig struct {
	Port        string
	NetworkMode string
}

type PGDBCfg struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string

	MaxConns       int32
	MigrationsPath string // каталог с файлами golang-migrate
}

// DSN возвращает строку подключения в формате key=value.
func (c *PGDBCfg) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

type QdrantCfg struct {
	Port             int
	Host             string
	ApiKey           string
	CollectionPrefix string // к префиксу добавляется размерность вектора
	UseTLS           bool
}

type RedisCfg struct {
	Addr        string
	Password    string
	User        string
	DB          int
	MaxRetries  int
	DialTimeout time.Duration
	Timeout     time.Duration
	ItemTTL     time.Duration
}

// LensCfg: настройки визуального распознавания предметов.
type LensCfg struct {
	Backend            domain.BackendKind
	ModelsDir          string
	ActiveModel        string // модель, активная при старте
	DefaultModel       string // модель, скачиваемая автоматически при отсутствии
	DefaultModelURL    string
	OrtLibPath         string
	ClipTextModelDir   string
	RemoteAddr         string
	RemoteModel        string // имя модели внешнего энкодера, ключ его пространства эмбеддингов
	RemoteMaxRetries   int
	Threshold          *float64 // nil: порог по умолчанию для вида бэкенда
	MaxConcurrent      int
	ReindexConcurrency int
	StatusTimeout      time.Duration
	DownloadTimeout    time.Duration
	InferenceTimeout   time.Duration
	BgRemoverURL       string
	BgRemoverTimeout   time.Duration
	MaxUploadBytes     int64
	EmbeddingStore     string // postgres | qdrant
}

// LLMCfg: настройки автотегирования через OpenAI-совместимый API.
type LLMCfg struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	RPS     float64
}

// Enabled сообщает, настроено ли автотегирование.
func (c *LLMCfg) Enabled() bool {
	return c.APIKey != ""
}

const (
	StorePostgres = "postgres"
	StoreQdrant   = "qdrant"
)

// Load безопасно загружает конфигурацию и возвращает ошибку в случае неудачи.
// Если рядом лежит .env, переменные из него подхватываются до чтения окружения.
func Load(log logger.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	db, err := loadPGDBCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	http, err := loadHTTPConfig(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	redis, err := loadRedisCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	minio, err := loadMinIOCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	qdrant, err := loadQdrantCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	kafka, err := loadKafkaCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	lens, err := loadLensCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	llm, err := loadLLMCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return &Config{
		Minio:  minio,
		Http:   http,
		Grpc:   loadGRPCConfig(),
		Db:     db,
		Qdrant: qdrant,
		Redis:  redis,
		Kafka:  kafka,
		Lens:   lens,
		LLM:    llm,
	}, nil
}

func loadKafkaCfg() (*KafkaCfg, error) {
	const (
		defaultPartitions        = 3
		defaultReplicationFactor = 1
		defaultNetworkMode       = "tcp"
	)

	brokerStr := os.Getenv("KAFKA_BROKERS")
	if brokerStr == "" {
		return nil, fmt.Errorf("KAFKA_BROKERS environment variable is required")
	}

	topic := getEnvOrDefault("KAFKA_TOPIC", "lens.enrollments")

	partitions, err := parseIntEnv("KAFKA_PARTITIONS", defaultPartitions)
	if err != nil {
		return nil, e.Wrap("KAFKA_PARTITIONS", err)
	}

	replicationFactor, err := parseIntEnv("REPLICATION_FACTOR", defaultReplicationFactor)
	if err != nil {
		return nil, e.Wrap("REPLICATION_FACTOR", err)
	}

	return &KafkaCfg{
		Brokers:           splitList(brokerStr),
		Topic:             topic,
		Partitions:        partitions,
		ReplicationFactor: replicationFactor,
		NetworkMode:       getEnvOrDefault("KAFKA_NETWORK_MODE", defaultNetworkMode),
	}, nil
}

func loadMinIOCfg(log logger.Logger) (*MinIOCfg, error) {
	const (
		defaultUseSSL         = false
		defaultEndpoint       = "minio:9000"
		defaultBucket         = "lens-references"
		defaultCleanupTimeout = 30 * time.Second
	)

	useSSL, err := strconv.ParseBool(getEnvOrDefault("MINIO_USE_SSL", strconv.FormatBool(defaultUseSSL)))
	if err != nil {
		log.Errorf(err, "invalid MINIO_USE_SSL")
		return nil, err
	}

	cleanupTimeout, err := parseDurationEnv("MINIO_CLEANUP_TIMEOUT", defaultCleanupTimeout)
	if err != nil {
		log.Errorf(err, "invalid MINIO_CLEANUP_TIMEOUT")
		return nil, err
	}

	endpoint := getEnvOrDefault("MINIO_ENDPOINT", defaultEndpoint)
	bucket := getEnvOrDefault("BUCKET_NAME", defaultBucket)

	scheme := "http"
	if useSSL {
		scheme = "https"
	}

	return &MinIOCfg{
		MinioEndpoint:     endpoint,
		BucketName:        bucket,
		MinioRootUser:     getEnv("MINIO_ROOT_USER"),
		MinioRootPassword: getEnv("MINIO_ROOT_PASSWORD"),
		MinioUseSSL:       useSSL,
		PublicURL:         strings.TrimRight(getEnvOrDefault("MINIO_PUBLIC_URL", scheme+"://"+endpoint+"/"+bucket), "/"),
		CleanupTimeout:    cleanupTimeout,
	}, nil
}

func loadHTTPConfig(log logger.Logger) (*HTTPConfig, error) {
	const (
		defaultPort         = "8080"
		defaultReadTimeout  = 15 * time.Second
		defaultWriteTimeout = 60 * time.Second
		defaultIdleTimeout  = 60 * time.Second
	)

	port := getEnvOrDefault("HTTP_PORT", defaultPort)

	readTimeout, err := parseDurationEnv("HTTP_READ_TIMEOUT", defaultReadTimeout)
	if err != nil {
		log.Errorf(err, "invalid HTTP_READ_TIMEOUT")
		return nil, err
	}

	writeTimeout, err := parseDurationEnv("HTTP_WRITE_TIMEOUT", defaultWriteTimeout)
	if err != nil {
		log.Errorf(err, "invalid HTTP_WRITE_TIMEOUT")
		return nil, err
	}

	idleTimeout, err := parseDurationEnv("KEEP_ALIVE", defaultIdleTimeout)
	if err != nil {
		log.Errorf(err, "invalid KEEP_ALIVE")
		return nil, err
	}

	return &HTTPConfig{
		Port:           port,
		ReadTimeout:    readTimeout,
		WriteTimeout:   writeTimeout,
		IdleTimeout:    idleTimeout,
		AllowedOrigins: splitList(getEnvOrDefault("HTTP_ALLOWED_ORIGINS", "*")),
		SwaggerURL:     getEnvOrDefault("SWAGGER_URL", "http://localhost:"+port+"/swagger/doc.json"),
	}, nil
}

func loadGRPCConfig() *GRPCConfig {
	const (
		defaultPort        = "8091"
		defaultNetworkMode = "tcp"
	)

	return &GRPCConfig{
		Port:        getEnvOrDefault("GRPC_PORT", defaultPort),
		NetworkMode: getEnvOrDefault("GRPC_NETWORK_MODE", defaultNetworkMode),
	}
}

func loadPGDBCfg(log logger.Logger) (*PGDBCfg, error) {
	const (
		defaultHost    = "localhost"
		defaultPort    = "5432"
		defaultSSLMode = "disable"

		defaultMaxConns       = 10
		defaultMigrationsPath = "db/migrations"
	)

	user := getEnv("POSTGRES_USER")
	if user == "" {
		err := fmt.Errorf("POSTGRES_USER is required")
		log.Errorf(err, "missing POSTGRES_USER")
		return nil, err
	}

	password := getEnv("POSTGRES_PASSWORD")
	if password == "" {
		err := fmt.Errorf("POSTGRES_PASSWORD is required")
		log.Errorf(err, "missing POSTGRES_PASSWORD")
		return nil, err
	}

	dbName := getEnv("POSTGRES_DB")
	if dbName == "" {
		err := fmt.Errorf("POSTGRES_DB is required")
		log.Errorf(err, "missing POSTGRES_DB")
		return nil, err
	}

	maxConns, err := parseIntEnv("POSTGRES_MAX_CONNS", defaultMaxConns)
	if err != nil || maxConns <= 0 {
		err = fmt.Errorf("%w: POSTGRES_MAX_CONNS must be a positive integer", e.ErrIncorrectEnvVariable)
		log.Errorf(err, "invalid POSTGRES_MAX_CONNS")
		return nil, err
	}

	return &PGDBCfg{
		Host:           getEnvOrDefault("POSTGRES_HOST", defaultHost),
		Port:           getEnvOrDefault("POSTGRES_PORT", defaultPort),
		User:           user,
		Password:       password,
		DBName:         dbName,
		SSLMode:        getEnvOrDefault("SSL_MODE", defaultSSLMode),
		MaxConns:       int32(maxConns),
		MigrationsPath: getEnvOrDefault("MIGRATIONS_PATH", defaultMigrationsPath),
	}, nil
}

func loadQdrantCfg(logger logger.Logger) (*QdrantCfg, error) {
	const (
		defaultQdrantGRPCPort = 6334
		defaultUseTLS         = false
		defaultPrefix         = "item_embeddings"
	)

	port, err := parseIntEnv("QDRANT_GRPC_PORT", defaultQdrantGRPCPort)
	if err != nil {
		logger.Errorf(err, "invalid QDRANT_GRPC_PORT")
		return nil, err
	}

	useTLS, err := strconv.ParseBool(getEnvOrDefault("QDRANT_USE_TLS", strconv.FormatBool(defaultUseTLS)))
	if err != nil {
		logger.Errorf(err, "invalid QDRANT_USE_TLS")
		return nil, err
	}

	return &QdrantCfg{
		Host:             getEnvOrDefault("QDRANT_HOST", "localhost"),
		Port:             port,
		ApiKey:           getEnv("QDRANT__SERVICE__API_KEY"),
		CollectionPrefix: getEnvOrDefault("COLLECTION_PREFIX", defaultPrefix),
		UseTLS:           useTLS,
	}, nil
}

func loadRedisCfg(log logger.Logger) (*RedisCfg, error) {
	const (
		defaultAddr         = "localhost:6379"
		defaultDB           = 0
		defaultMaxRetries   = 3
		defaultDialTimeout  = 5 * time.Second
		defaultReadTimeout  = 3 * time.Second
		defaultWriteTimeout = 3 * time.Second
		defaultItemTTL      = 3 * time.Minute
	)

	db, err := parseIntEnv("REDIS_DB_ID", defaultDB)
	if err != nil {
		log.Errorf(err, "invalid REDIS_DB_ID")
		return nil, err
	}

	maxRetries, err := parseIntEnv("MAX_RETRIES", defaultMaxRetries)
	if err != nil {
		log.Errorf(err, "invalid MAX_RETRIES")
		return nil, err
	}

	dialTimeout, err := parseDurationEnv("DIAL_TIMEOUT", defaultDialTimeout)
	if err != nil {
		log.Errorf(err, "invalid DIAL_TIMEOUT")
		return nil, err
	}

	readTimeout, err := parseDurationEnv("READ_TIMEOUT", defaultReadTimeout)
	if err != nil {
		log.Errorf(err, "invalid READ_TIMEOUT")
		return nil, err
	}

	writeTimeout, err := parseDurationEnv("WRITE_TIMEOUT", defaultWriteTimeout)
	if err != nil {
		log.Errorf(err, "invalid WRITE_TIMEOUT")
		return nil, err
	}

	itemTTL, err := parseDurationEnv("ITEM_TTL", defaultItemTTL)
	if err != nil {
		log.Errorf(err, "invalid ITEM_TTL")
		return nil, err
	}

	return &RedisCfg{
		Addr:        getEnvOrDefault("REDIS_ADDR", defaultAddr),
		Password:    getEnv("REDIS_PASSWORD"),
		User:        getEnv("REDIS_USER"),
		DB:          db,
		MaxRetries:  maxRetries,
		DialTimeout: dialTimeout,
		Timeout:     max(readTimeout, writeTimeout),
		ItemTTL:     itemTTL,
	}, nil
}

func loadLensCfg(log logger.Logger) (*LensCfg, error) {
	const (
		defaultModelsDir          = "data/models"
		defaultModel              = "mobilenetv2-12.onnx"
		defaultModelURL           = "https://github.com/onnx/models/raw/refs/heads/main/validated/vision/classification/mobilenet/model/mobilenetv2-12.onnx"
		defaultRemoteAddr         = "lens-encoder:50051"
		defaultRemoteMaxRetries   = 3
		defaultMaxConcurrent      = 4
		defaultReindexConcurrency = 4
		defaultStatusTimeout      = 5 * time.Second
		defaultDownloadTimeout    = 10 * time.Minute
		defaultInferenceTimeout   = 30 * time.Second
		defaultBgRemoverTimeout   = 5 * time.Second
		defaultMaxUploadBytes     = 10 << 20
	)

	backend := domain.BackendKind(strings.ToLower(getEnvOrDefault("LENS_BACKEND", string(domain.BackendClassifier))))
	switch backend {
	case domain.BackendClassifier, domain.BackendCLIP, domain.BackendRemote:
	default:
		err := fmt.Errorf("unknown LENS_BACKEND %q: %w", backend, e.ErrIncorrectEnvVariable)
		log.Errorf(err, "invalid LENS_BACKEND")
		return nil, err
	}

	activeModel := getEnvOrDefault("VISUAL_LENS_MODEL", defaultModel)
	if !domain.ValidModelFilename(activeModel) {
		err := fmt.Errorf("VISUAL_LENS_MODEL %q: %w", activeModel, e.ErrInvalidModelFilename)
		log.Errorf(err, "invalid VISUAL_LENS_MODEL")
		return nil, err
	}

	var threshold *float64
	if getEnv("LENS_MATCH_THRESHOLD") != "" {
		v, err := parseFloatEnv("LENS_MATCH_THRESHOLD", 0)
		if err != nil || v < -1 || v >= 1 {
			err = fmt.Errorf("LENS_MATCH_THRESHOLD must be in [-1, 1): %w", e.ErrIncorrectEnvVariable)
			log.Errorf(err, "invalid LENS_MATCH_THRESHOLD")
			return nil, err
		}
		threshold = &v
	}

	remoteMaxRetries, err := parseIntEnv("LENS_REMOTE_MAX_RETRIES", defaultRemoteMaxRetries)
	if err != nil {
		log.Errorf(err, "invalid LENS_REMOTE_MAX_RETRIES")
		return nil, err
	}

	maxConcurrent, err := parseIntEnv("LENS_MAX_CONCURRENT", defaultMaxConcurrent)
	if err != nil || maxConcurrent < 1 {
		err = fmt.Errorf("LENS_MAX_CONCURRENT must be positive: %w", e.ErrIncorrectEnvVariable)
		log.Errorf(err, "invalid LENS_MAX_CONCURRENT")
		return nil, err
	}

	reindexConcurrency, err := parseIntEnv("LENS_REINDEX_CONCURRENCY", defaultReindexConcurrency)
	if err != nil || reindexConcurrency < 1 {
		err = fmt.Errorf("LENS_REINDEX_CONCURRENCY must be positive: %w", e.ErrIncorrectEnvVariable)
		log.Errorf(err, "invalid LENS_REINDEX_CONCURRENCY")
		return nil, err
	}

	statusTimeout, err := parseDurationEnv("LENS_STATUS_TIMEOUT", defaultStatusTimeout)
	if err != nil {
		log.Errorf(err, "invalid LENS_STATUS_TIMEOUT")
		return nil, err
	}

	downloadTimeout, err := parseDurationEnv("LENS_DOWNLOAD_TIMEOUT", defaultDownloadTimeout)
	if err != nil {
		log.Errorf(err, "invalid LENS_DOWNLOAD_TIMEOUT")
		return nil, err
	}

	inferenceTimeout, err := parseDurationEnv("LENS_INFERENCE_TIMEOUT", defaultInferenceTimeout)
	if err != nil {
		log.Errorf(err, "invalid LENS_INFERENCE_TIMEOUT")
		return nil, err
	}

	bgRemoverTimeout, err := parseDurationEnv("LENS_BG_REMOVER_TIMEOUT", defaultBgRemoverTimeout)
	if err != nil {
		log.Errorf(err, "invalid LENS_BG_REMOVER_TIMEOUT")
		return nil, err
	}

	maxUpload, err := parseIntEnv("LENS_MAX_UPLOAD_BYTES", defaultMaxUploadBytes)
	if err != nil || maxUpload < 1 {
		err = fmt.Errorf("LENS_MAX_UPLOAD_BYTES must be positive: %w", e.ErrIncorrectEnvVariable)
		log.Errorf(err, "invalid LENS_MAX_UPLOAD_BYTES")
		return nil, err
	}

	store := strings.ToLower(getEnvOrDefault("EMBEDDING_STORE", StorePostgres))
	if store != StorePostgres && store != StoreQdrant {
		err := fmt.Errorf("unknown EMBEDDING_STORE %q: %w", store, e.ErrIncorrectEnvVariable)
		log.Errorf(err, "invalid EMBEDDING_STORE")
		return nil, err
	}

	return &LensCfg{
		Backend:            backend,
		ModelsDir:          getEnvOrDefault("LENS_MODELS_DIR", defaultModelsDir),
		ActiveModel:        activeModel,
		DefaultModel:       defaultModel,
		DefaultModelURL:    getEnvOrDefault("VISUAL_LENS_MODEL_URL", defaultModelURL),
		OrtLibPath:         getEnv("ORT_LIB_PATH"),
		ClipTextModelDir:   getEnv("LENS_CLIP_TEXT_MODEL_DIR"),
		RemoteAddr:         getEnvOrDefault("LENS_REMOTE_ADDR", defaultRemoteAddr),
		RemoteModel:        getEnvOrDefault("LENS_REMOTE_MODEL", "clip-vit-b32"),
		RemoteMaxRetries:   remoteMaxRetries,
		Threshold:          threshold,
		MaxConcurrent:      maxConcurrent,
		ReindexConcurrency: reindexConcurrency,
		StatusTimeout:      statusTimeout,
		DownloadTimeout:    downloadTimeout,
		InferenceTimeout:   inferenceTimeout,
		BgRemoverURL:       getEnv("LENS_BG_REMOVER_URL"),
		BgRemoverTimeout:   bgRemoverTimeout,
		MaxUploadBytes:     int64(maxUpload),
		EmbeddingStore:     store,
	}, nil
}

func loadLLMCfg(log logger.Logger) (*LLMCfg, error) {
	const (
		defaultModel   = "gpt-4o-mini"
		defaultTimeout = 30 * time.Second
		defaultRPS     = 1.0
	)

	timeout, err := parseDurationEnv("LLM_TIMEOUT", defaultTimeout)
	if err != nil {
		log.Errorf(err, "invalid LLM_TIMEOUT")
		return nil, err
	}

	rps, err := parseFloatEnv("LLM_RPS", defaultRPS)
	if err != nil || rps <= 0 {
		err = fmt.Errorf("LLM_RPS must be positive: %w", e.ErrIncorrectEnvVariable)
		log.Errorf(err, "invalid LLM_RPS")
		return nil, err
	}

	return &LLMCfg{
		APIKey:  getEnv("LLM_API_KEY"),
		BaseURL: getEnv("LLM_BASE_URL"),
		Model:   getEnvOrDefault("LLM_MODEL", defaultModel),
		Timeout: timeout,
		RPS:     rps,
	}, nil
}

// getEnv возвращает значение переменной окружения.
// Возвращает пустую строку, если переменная не задана.
func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

// parseDurationEnv считывает длительность или возвращает значение по умолчанию.
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	if v := os.Getenv(key); v != "" {
		return time.ParseDuration(v)
	}

	return defaultValue, nil
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}

	intValue, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue, e.ErrIncorrectEnvVariable
	}

	return intValue, nil
}

func parseFloatEnv(key string, defaultValue float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultValue, e.ErrIncorrectEnvVariable
	}

	return f, nil
}

// splitList разбивает список через запятую, отбрасывая пустые элементы.
func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
