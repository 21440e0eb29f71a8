package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	_ "github.com/psms-tech/go-backend/docs" // Импорт сгенерированных файлов
	"github.com/psms-tech/go-backend/internal/cfg"
	"github.com/psms-tech/go-backend/internal/usecase"
	"github.com/psms-tech/go-backend/pkg/logger"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

type Router struct {
	router *chi.Mux
	logger logger.Logger
	cfg    *cfg.HTTPConfig
}

func NewRouter(router *chi.Mux, logger logger.Logger, cfg *cfg.HTTPConfig) *Router {
	return &Router{router: router, logger: logger, cfg: cfg}
}

func (r *Router) Init(lensUC usecase.LensUC, modelUC usecase.ModelUC, maxUploadBytes int64) {
	r.router.Use(middleware.RequestID)
	r.router.Use(middleware.RealIP)
	r.router.Use(middleware.Recoverer)
	r.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: r.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL(r.cfg.SwaggerURL), // ссылка на JSON
	))

	r.router.Route("/api/v1", func(v1 chi.Router) {
		lensHandler := NewLensHandler(lensUC, r.logger, maxUploadBytes)
		modelHandler := NewModelHandler(modelUC, r.logger)
		registerIdentifyRoutes(v1, lensHandler, modelHandler)
	})
}

func registerIdentifyRoutes(router chi.Router, lensHandler *LensHandler, modelHandler *ModelHandler) {
	router.Route("/identify", func(id chi.Router) {
		id.Get("/status", lensHandler.status)
		id.Post("/", lensHandler.identify)
		id.Post("/enroll/{item_id}", lensHandler.enroll)
		id.Delete("/enroll/{item_id}", lensHandler.unenroll)
		id.Post("/reindex", lensHandler.reindex)

		id.Route("/models", func(m chi.Router) {
			m.Get("/", modelHandler.list)
			m.Get("/catalog", modelHandler.catalog)
			m.Post("/download", modelHandler.download)
			m.Post("/upload", modelHandler.upload)
			m.Post("/{filename}/activate", modelHandler.activate)
			m.Delete("/{filename}", modelHandler.delete)
		})
	})
}
