package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/storefront-chat/internal/observability"
	"github.com/spec-kit/storefront-chat/internal/persistence"
)

const readinessTimeout = 2 * time.Second

type dependencyCheck struct {
	name string
	ping func(ctx context.Context) error
}

// HealthHandler exposes liveness, readiness and counters.
type HealthHandler struct {
	serviceName string
	version     string
	checks      []dependencyCheck
	disabled    []string
	metrics     *observability.Metrics
	sessions    func() int
}

// NewHealthHandler returns a new handler instance. Nil postgres or redis are
// reported as disabled and never fail readiness.
func NewHealthHandler(serviceName, version string, postgres *persistence.Postgres, redis *persistence.Redis, metrics *observability.Metrics, sessions func() int) *HealthHandler {
	h := &HealthHandler{serviceName: serviceName, version: version, metrics: metrics, sessions: sessions}
	if postgres != nil {
		h.checks = append(h.checks, dependencyCheck{name: "postgres", ping: postgres.Ping})
	} else {
		h.disabled = append(h.disabled, "postgres")
	}
	if redis != nil {
		h.checks = append(h.checks, dependencyCheck{name: "redis", ping: redis.Ping})
	} else {
		h.disabled = append(h.disabled, "redis")
	}
	return h
}

func (h *HealthHandler) sessionCount() int {
	if h.sessions == nil {
		return 0
	}
	return h.sessions()
}

// Live reports service liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":   "alive",
		"service":  h.serviceName,
		"version":  h.version,
		"sessions": h.sessionCount(),
	})
}

// Ready pings the archive and the ticket cache when they are configured.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), readinessTimeout)
	defer cancel()

	deps := fiber.Map{}
	for _, name := range h.disabled {
		deps[name] = "disabled"
	}
	ready := true
	for _, check := range h.checks {
		if err := check.ping(ctx); err != nil {
			deps[check.name] = err.Error()
			ready = false
			continue
		}
		deps[check.name] = "ok"
	}

	if !ready {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    "DEPENDENCY_UNAVAILABLE",
				"message": "one or more dependencies unavailable",
				"details": deps,
			},
		})
	}
	return c.JSON(fiber.Map{"status": "ready", "dependencies": deps})
}

// Metrics reports in-memory counters and the mounted session count.
func (h *HealthHandler) Metrics(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"counters": h.metrics.Snapshot(),
		"sessions": h.sessionCount(),
	})
}
