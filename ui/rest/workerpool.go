package rest

import (
	"github.com/AzielCF/az-wap-ingest/pkg/msgworker"
	"github.com/AzielCF/az-wap-ingest/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type WorkerPool struct {
	Pool *msgworker.WebhookWorkerPool
}

// InitRestWorkerPool exposes the async worker pool counters. Pool is nil in
// synchronous mode.
func InitRestWorkerPool(app fiber.Router, pool *msgworker.WebhookWorkerPool) WorkerPool {
	handler := WorkerPool{Pool: pool}
	app.Get("/webhooks/pool/stats", handler.GetStats)
	return handler
}

// GetStats returns real-time webhook worker pool statistics
func (h *WorkerPool) GetStats(c *fiber.Ctx) error {
	if h.Pool == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(utils.ResponseData{
			Status:  fiber.StatusServiceUnavailable,
			Code:    "SERVICE_UNAVAILABLE",
			Message: "Webhook worker pool not initialized (synchronous mode)",
		})
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Worker pool stats retrieved",
		Results: h.Pool.GetStats(),
	})
}
