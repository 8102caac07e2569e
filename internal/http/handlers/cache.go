package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"wireviz-web/internal/domain"
	"wireviz-web/internal/infra/logging"
)

// computeRenderCacheKey hashes everything that influences the artifact:
// description, assets in order, output format.
func computeRenderCacheKey(req domain.RenderRequest) string {
	h := sha256.New()
	h.Write(req.YAML)
	for _, a := range req.Assets {
		h.Write([]byte(a.Name))
		h.Write(a.Data)
	}
	h.Write([]byte(req.Format))
	return "rendercache:" + hex.EncodeToString(h.Sum(nil))
}

// getCachedArtifact attempts to retrieve a cached artifact from Redis.
// A miss is (nil, nil).
func getCachedArtifact(c *fiber.Ctx, rdb *redis.Client, key string) ([]byte, error) {
	ctxRedis, cancel := context.WithTimeout(c.Context(), 1*time.Second)
	defer cancel()

	cached, err := rdb.Get(ctxRedis, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		logging.Warn("Redis read failed", "error", err.Error())
		return nil, err
	}
	return cached, nil
}

// setCachedArtifact stores an artifact in Redis under the configured TTL.
func setCachedArtifact(c *fiber.Ctx, rdb *redis.Client, key string, data []byte, ttl time.Duration) {
	ctxRedis, cancel := context.WithTimeout(c.Context(), 1*time.Second)
	defer cancel()

	if ttl <= 0 {
		ttl = 1 * time.Minute
	}

	if err := rdb.Set(ctxRedis, key, data, ttl).Err(); err != nil {
		logging.Warn("Redis write failed", "error", err.Error())
	}
}
