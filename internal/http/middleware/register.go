// Package middleware wires the global request pipeline: CORS, request IDs,
// health probes, optional API key auth and rate limiting.
package middleware

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/keyauth"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	memoryStorage "github.com/gofiber/storage/memory/v2"
	redisStorage "github.com/gofiber/storage/redis/v2"
	"github.com/rs/xid"

	"wireviz-web/internal/config"
	"wireviz-web/internal/domain"
	"wireviz-web/internal/infra/logging"
	"wireviz-web/internal/tokens"
)

// Register attaches the global middleware chain in request order: CORS,
// request IDs, health probes, optional key auth, rate limits, request
// logging.
func Register(app *fiber.App, cfg config.Config, tc *tokens.Cache) {
	app.Use(cors.New())

	app.Use(requestid.New(requestid.Config{
		Generator: func() string {
			return xid.New().String()
		},
	}))

	var hc healthcheck.Config
	if cfg.Auth.Enabled {
		// Not ready until the token store has loaded at least once.
		hc.ReadinessProbe = func(c *fiber.Ctx) bool {
			return tc.Ready()
		}
	}
	app.Use(healthcheck.New(hc))

	if cfg.Auth.Enabled {
		app.Use(KeyAuth(tc))
	}

	rl := RateLimitConfig{
		RateInterval:           cfg.RateLimiter.Interval.Std(),
		UserLimit:              cfg.RateLimiter.UserLimit,
		EnableUserLimiter:      cfg.RateLimiter.EnableUserLimiter,
		EnableTokenRateLimiter: cfg.RateLimiter.EnableTokenRateLimiter,
	}
	if rl.EnableTokenRateLimiter || (rl.EnableUserLimiter && rl.UserLimit > 0) {
		store := LimiterStore(cfg)
		app.Use(TokenRateLimit(rl, tc, store, NewLimiterCache()))
		app.Use(UserRateLimit(rl, store))
	}

	app.Use(func(c *fiber.Ctx) error {
		requestID := c.Get("X-Request-ID")
		if requestID == "" {
			requestID = c.GetRespHeader("X-Request-ID")
		}
		logging.Info("Incoming request", "method", c.Method(), "path", c.Path(), "request_id", requestID)
		return c.Next()
	})
}

// KeyAuth validates the X-API-Key header against the token cache. Requests
// without a key pass through anonymously; OPTIONS is always exempt.
func KeyAuth(tc *tokens.Cache) fiber.Handler {
	return keyauth.New(keyauth.Config{
		KeyLookup:  "header:X-API-Key",
		ContextKey: "api_key",
		Validator: func(c *fiber.Ctx, key string) (bool, error) {
			if !tc.Ready() {
				return false, domain.ErrTokenStoreNotReady
			}
			if !tc.Validate(key) {
				return false, domain.ErrInvalidAPIKey
			}
			return true, nil
		},
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || c.Get("X-API-Key") == ""
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Keyauth can call this with a nil error.
			status := fiber.StatusUnauthorized
			if err == nil {
				err = fiber.ErrUnauthorized
			}
			if errors.Is(err, domain.ErrTokenStoreNotReady) {
				status = fiber.StatusServiceUnavailable
			}
			return c.Status(status).JSON(fiber.Map{
				"error": fiber.Map{
					"code":    status,
					"message": err.Error(),
				},
			})
		},
	})
}

// LimiterStore picks the rate limit backend: Redis when configured and
// reachable at startup, in-process memory otherwise.
func LimiterStore(cfg config.Config) (store fiber.Storage) {
	store = memoryStorage.New()
	if cfg.Cache.RedisHost == "" {
		return store
	}
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Redis limiter store init panicked, falling back to memory", "panic", fmt.Sprint(r))
			store = memoryStorage.New()
		}
	}()
	store = redisStorage.New(redisStorage.Config{
		Addrs:    []string{cfg.Cache.RedisHost},
		Database: cfg.Cache.RateLimitDB,
	})
	logging.Info("Using Redis for rate limiting", "addr", cfg.Cache.RedisHost, "db", cfg.Cache.RateLimitDB)
	return store
}
