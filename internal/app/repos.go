package app

import (
	"gorm.io/gorm"

	"github.com/threadmill/storefront-backend/internal/logger"
	"github.com/threadmill/storefront-backend/internal/repos"
)

type Repos struct {
	Baseline       repos.BaselineRepo
	Patch          repos.PatchRepo
	Release        repos.ReleaseRepo
	PatchExclusion repos.PatchExclusionRepo
	ApplicationLog repos.ApplicationLogRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	return Repos{
		Baseline:       repos.NewBaselineRepo(db, log),
		Patch:          repos.NewPatchRepo(db, log),
		Release:        repos.NewReleaseRepo(db, log),
		PatchExclusion: repos.NewPatchExclusionRepo(db, log),
		ApplicationLog: repos.NewApplicationLogRepo(db, log),
	}
}
