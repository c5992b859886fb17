package storage

import (
	"github.com/getevo/evo/v2"
	"github.com/getevo/evo/v2/lib/application"
	"github.com/getevo/evo/v2/lib/log"
)

type App struct{}

func (a App) Register() error {
	return nil
}

func (a App) Router() error {
	var controller Controller

	evo.Post("/api/agents/:id/media/presign", controller.PresignUpload)
	evo.Post("/api/agents/:id/media", controller.CreateMediaItem)
	evo.Get("/api/agents/:id/media", controller.ListMedia)
	evo.Delete("/api/media/:id", controller.DeleteMediaItem)
	evo.Get("/api/media/:id/url", controller.GetMediaURL)

	RegisterMediaProxy(evo.GetFiber())

	return nil
}

func (a App) WhenReady() error {
	if err := Initialize(); err != nil {
		log.Warning("Media storage unavailable: %v", err)
	}
	return nil
}

func (a App) Name() string {
	return "storage"
}

var _ application.Application = (*App)(nil)
