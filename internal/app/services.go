package app

import (
	"gorm.io/gorm"

	"github.com/threadmill/storefront-backend/internal/cache"
	"github.com/threadmill/storefront-backend/internal/diff"
	"github.com/threadmill/storefront-backend/internal/logger"
	"github.com/threadmill/storefront-backend/internal/services"
)

type Services struct {
	Selector    services.SelectorService
	Composer    services.ComposerService
	EditSession services.EditSessionService
	Release     services.ReleaseService
	Baseline    services.BaselineService
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, reposet Repos) (Services, error) {
	engine := diff.NewEngine(diff.NewMatchPatchProvider(), cfg.DiffTimeout, log)
	structural := diff.NewStructuralEngine(log)

	kinds := diff.NewRegistry()
	if cfg.FileKindConfig != "" {
		if err := kinds.LoadRegistryFile(cfg.FileKindConfig); err != nil {
			return Services{}, err
		}
	}

	var resultCache cache.Cache
	if cfg.RedisAddr != "" {
		redisCache, err := cache.NewRedisCache(cfg.RedisAddr, log)
		if err != nil {
			return Services{}, err
		}
		resultCache = redisCache
		log.Info("Using redis composition cache", "addr", cfg.RedisAddr)
	} else {
		resultCache = cache.NewMemoryCache()
		log.Info("Using in-memory composition cache")
	}

	selector := services.NewSelectorService(db, log, reposet.Patch, reposet.PatchExclusion)
	composer := services.NewComposerService(db, log, engine, structural, kinds, selector,
		reposet.Baseline, reposet.ApplicationLog, resultCache, cfg.CacheTTL)
	editSession := services.NewEditSessionService(db, log, engine, structural, kinds,
		reposet.Baseline, reposet.Patch)
	release := services.NewReleaseService(db, log, reposet.Release, reposet.Patch, resultCache)
	baseline := services.NewBaselineService(db, log, reposet.Baseline)

	return Services{
		Selector:    selector,
		Composer:    composer,
		EditSession: editSession,
		Release:     release,
		Baseline:    baseline,
	}, nil
}
