package main

import (
	"os"

	"github.com/psms-tech/go-backend/internal/app"
	config "github.com/psms-tech/go-backend/internal/cfg"
	"github.com/psms-tech/go-backend/pkg/logger"
)

//	@title			PSMS Visual Lens API
//	@version		1.0
//	@description	Распознавание предметов по фото и управление моделями эмбеддингов.
//	@BasePath		/api/v1
func main() {
	log := logger.NewSlogLogger()

	cfg, err := config.Load(log)
	if err != nil {
		log.Errorf(err, "failed to load config")
		os.Exit(1)
	}

	lens, err := app.NewApp(cfg, log)
	if err != nil {
		log.Errorf(err, "failed to start visual lens")
		os.Exit(1)
	}

	if err := lens.Run(); err != nil {
		log.Errorf(err, "visual lens stopped with error")
		os.Exit(1)
	}
}
