// Package tracectx carries request correlation IDs through the webhook
// pipeline. IDs follow the W3C trace context format so a traceparent sent by a
// provider or a load balancer is continued instead of replaced.
package tracectx

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Context identifies one unit of work inside a trace.
type Context struct {
	TraceID      string `json:"trace_id"`
	SpanID       string `json:"span_id"`
	ParentSpanID string `json:"parent_span_id,omitempty"`

	traceID trace.TraceID
	spanID  trace.SpanID
}

type ctxKey struct{}

var propagator = propagation.TraceContext{}

// New starts a fresh trace.
func New() *Context {
	return build(newTraceID(), newSpanID(), "")
}

// FromCarrier continues the trace found in carrier (traceparent/tracestate),
// or starts a new one when the carrier holds no valid trace.
func FromCarrier(carrier propagation.TextMapCarrier) *Context {
	remote := trace.SpanContextFromContext(propagator.Extract(context.Background(), carrier))
	if !remote.IsValid() {
		return New()
	}
	return build(remote.TraceID(), newSpanID(), remote.SpanID().String())
}

// Child returns a new span in the same trace with c as parent.
func (c *Context) Child() *Context {
	if c == nil {
		return New()
	}
	return build(c.traceID, newSpanID(), c.SpanID)
}

// Inject writes c as a traceparent header into carrier.
func (c *Context) Inject(carrier propagation.TextMapCarrier) {
	if c == nil {
		return
	}
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    c.traceID,
		SpanID:     c.spanID,
		TraceFlags: trace.FlagsSampled,
	})
	propagator.Inject(trace.ContextWithSpanContext(context.Background(), sc), carrier)
}

// Fields returns the IDs as logrus fields.
func (c *Context) Fields() logrus.Fields {
	if c == nil {
		return logrus.Fields{}
	}
	fields := logrus.Fields{
		"trace_id": c.TraceID,
		"span_id":  c.SpanID,
	}
	if c.ParentSpanID != "" {
		fields["parent_span_id"] = c.ParentSpanID
	}
	return fields
}

func WithContext(ctx context.Context, c *Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext returns the trace stored in ctx, or nil.
func FromContext(ctx context.Context) *Context {
	c, _ := ctx.Value(ctxKey{}).(*Context)
	return c
}

// Logger returns a logrus entry carrying the trace fields of ctx, if any.
func Logger(ctx context.Context) *logrus.Entry {
	return logrus.WithFields(FromContext(ctx).Fields())
}

func build(traceID trace.TraceID, spanID trace.SpanID, parent string) *Context {
	return &Context{
		TraceID:      traceID.String(),
		SpanID:       spanID.String(),
		ParentSpanID: parent,
		traceID:      traceID,
		spanID:       spanID,
	}
}

func newTraceID() trace.TraceID {
	return trace.TraceID(uuid.New())
}

func newSpanID() trace.SpanID {
	var id trace.SpanID
	u := uuid.New()
	copy(id[:], u[:8])
	return id
}
