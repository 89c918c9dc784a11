package app

import (
	"context"
	"fmt"
	"time"

	"bitwise74/smart-librarian/config"

	cache "github.com/chenyahui/gin-cache"
	"github.com/chenyahui/gin-cache/persist"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

// NewCacheStore returns the response cache backend selected in config
func NewCacheStore(cfg config.CacheConfig) (persist.CacheStore, error) {
	switch cfg.Type {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis, %w", err)
		}

		return persist.NewRedisStore(client), nil
	case "memory":
		return persist.NewMemoryStore(time.Minute), nil
	}

	return nil, fmt.Errorf("unsupported cache type %q", cfg.Type)
}

func cacheFor(store persist.CacheStore, sec int) gin.HandlerFunc {
	return cache.CacheByRequestURI(store, time.Second*time.Duration(sec))
}

// cachePerUser caches a response separately for every signed in user
func cachePerUser(store persist.CacheStore, prefix string, sec int) gin.HandlerFunc {
	return cache.Cache(store, time.Second*time.Duration(sec),
		cache.WithCacheStrategyByRequest(func(c *gin.Context) (bool, cache.Strategy) {
			userID := c.GetString("userID")
			if userID == "" {
				return false, cache.Strategy{}
			}

			return true, cache.Strategy{CacheKey: prefix + ":" + userID + ":" + c.Request.RequestURI}
		}),
	)
}
