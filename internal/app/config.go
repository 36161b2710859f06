package app

import (
	"strings"
	"time"

	"github.com/threadmill/storefront-backend/internal/logger"
	"github.com/threadmill/storefront-backend/internal/services"
	"github.com/threadmill/storefront-backend/internal/utils"
)

type Config struct {
	Port           string
	AllowOrigins   []string
	RedisAddr      string
	CacheTTL       time.Duration
	DiffTimeout    time.Duration
	FileKindConfig string
	MaxPatches     int
	AutoMigrate    bool
}

func LoadConfig(log *logger.Logger) Config {
	origins := utils.GetEnv("ALLOW_ORIGINS", "http://localhost:3000", log)

	return Config{
		Port:           utils.GetEnv("PORT", "8080", log),
		AllowOrigins:   strings.Split(origins, ","),
		RedisAddr:      utils.GetEnv("REDIS_ADDR", "", log),
		CacheTTL:       utils.GetEnvAsDuration("CACHE_TTL", 5*time.Minute, log),
		DiffTimeout:    utils.GetEnvAsDuration("DIFF_TIMEOUT", 5*time.Second, log),
		FileKindConfig: utils.GetEnv("FILE_KIND_CONFIG", "", log),
		MaxPatches:     utils.GetEnvAsInt("MAX_PATCHES", services.DefaultMaxPatches, log),
		AutoMigrate:    utils.GetEnvAsBool("AUTO_MIGRATE", true, log),
	}
}
