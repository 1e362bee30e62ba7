package middleware

import (
	"github.com/AzielCF/az-wap-ingest/pkg/tracectx"
	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel/propagation"
)

const (
	headerTraceparent = "traceparent"
	headerTracestate  = "tracestate"
)

// Trace continues the caller's W3C trace (or starts one), stores it in the
// request's user context and echoes it in the traceparent response header.
func Trace() fiber.Handler {
	return func(c *fiber.Ctx) error {
		incoming := propagation.MapCarrier{}
		for _, h := range []string{headerTraceparent, headerTracestate} {
			if v := c.Get(h); v != "" {
				incoming.Set(h, v)
			}
		}

		tc := tracectx.FromCarrier(incoming)
		ctx := tracectx.WithContext(c.UserContext(), tc)
		c.SetUserContext(ctx)

		outgoing := propagation.MapCarrier{}
		tc.Inject(outgoing)
		if tp := outgoing.Get(headerTraceparent); tp != "" {
			c.Set(headerTraceparent, tp)
		}
		return c.Next()
	}
}
