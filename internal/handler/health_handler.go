package handler

import (
	"context"
	"database/sql"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const readinessTimeout = 2 * time.Second

// BrokerStatus reports whether the message broker connection is up.
type BrokerStatus interface {
	Connected() bool
}

// RegisterHealthRoutes mounts /livez and /readyz. broker may be nil, in which
// case readiness ignores the broker.
func RegisterHealthRoutes(app fiber.Router, sqlDB *sql.DB, rdb *redis.Client, broker BrokerStatus) {
	app.Get("/livez", LivezHandler())
	app.Get("/readyz", ReadyzHandler(sqlDB, rdb, broker))
}

func LivezHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "ok",
		})
	}
}

func ReadyzHandler(sqlDB *sql.DB, rdb *redis.Client, broker BrokerStatus) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), readinessTimeout)
		defer cancel()

		checks := fiber.Map{}
		ready := true
		check := func(name string, ok bool) {
			if ok {
				checks[name] = "ok"
				return
			}
			checks[name] = "down"
			ready = false
		}

		check("postgres", sqlDB.PingContext(ctx) == nil)
		check("redis", rdb.Ping(ctx).Err() == nil)
		if broker != nil {
			check("rabbitmq", broker.Connected())
		}

		status := "ready"
		statusCode := fiber.StatusOK
		if !ready {
			status = "not_ready"
			statusCode = fiber.StatusServiceUnavailable
		}

		return c.Status(statusCode).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	}
}
