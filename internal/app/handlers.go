package app

import (
	"github.com/threadmill/storefront-backend/internal/handlers"
	"github.com/threadmill/storefront-backend/internal/logger"
)

type Handlers struct {
	Patch    *handlers.PatchHandler
	Release  *handlers.ReleaseHandler
	Baseline *handlers.BaselineHandler
}

func wireHandlers(log *logger.Logger, cfg Config, serviceset Services) Handlers {
	return Handlers{
		Patch:    handlers.NewPatchHandler(log, serviceset.Composer, serviceset.EditSession, cfg.MaxPatches),
		Release:  handlers.NewReleaseHandler(log, serviceset.Release),
		Baseline: handlers.NewBaselineHandler(log, serviceset.Baseline),
	}
}
