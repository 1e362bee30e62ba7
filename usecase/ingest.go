package usecase

import (
	"context"
	"fmt"

	"github.com/AzielCF/az-wap-ingest/domains/webhook"
	"github.com/AzielCF/az-wap-ingest/infrastructure/providers"
	pkgError "github.com/AzielCF/az-wap-ingest/pkg/error"
	"github.com/AzielCF/az-wap-ingest/pkg/msgworker"
	"github.com/AzielCF/az-wap-ingest/pkg/tracectx"
	"github.com/AzielCF/az-wap-ingest/validations"
	"github.com/sirupsen/logrus"
)

type ingestService struct {
	registry  *providers.Registry
	processor webhook.IWebhookProcessor
	// pool is nil in synchronous mode.
	pool *msgworker.WebhookWorkerPool
}

// NewIngestService wires validation, normalization and processing. When pool
// is not nil events are processed in the background.
func NewIngestService(registry *providers.Registry, processor webhook.IWebhookProcessor, pool *msgworker.WebhookWorkerPool) webhook.IIngestUsecase {
	return &ingestService{
		registry:  registry,
		processor: processor,
		pool:      pool,
	}
}

func (s *ingestService) Ingest(ctx context.Context, provider webhook.ProviderName, body []byte, opts webhook.IngestOptions) (webhook.IngestResult, error) {
	tc := tracectx.FromContext(ctx)
	if tc == nil {
		tc = tracectx.New()
		ctx = tracectx.WithContext(ctx, tc)
	}
	result := webhook.IngestResult{Provider: provider, TraceID: tc.TraceID, Events: []webhook.ProcessResult{}}
	log := tracectx.Logger(ctx).WithField("provider", provider)

	adapter, ok := s.registry.Get(provider)
	if !ok {
		return result, pkgError.NotFoundError(fmt.Sprintf("unknown provider %q", provider))
	}

	validation := validations.ValidateWebhookPayload(provider, body)
	if !validation.Success {
		log.WithField("errors", validation.Errors).Warn("[WEBHOOK] Rejected invalid payload")
		return result, validation.Err()
	}

	events := providers.Normalize(adapter, validation.Data.Body)
	for i := range events {
		events[i].ConnectionID = opts.ConnectionID
	}
	log.WithFields(logrus.Fields{
		"event":  validation.Data.Event,
		"events": len(events),
	}).Debug("[WEBHOOK] Payload normalized")

	if s.pool != nil {
		return s.enqueue(ctx, result, provider, events, tc)
	}

	for i := range events {
		res, err := s.processor.ProcessWebhookEvent(ctx, &events[i], provider, tc.Child())
		result.Events = append(result.Events, res)
		if err != nil {
			return result, err
		}
	}
	return result, nil
}

// enqueue hands every event to the worker pool. A full queue is reported as
// 503 so the provider redelivers; events already queued are deduplicated by
// the message lock and the stored-message check.
func (s *ingestService) enqueue(ctx context.Context, result webhook.IngestResult, provider webhook.ProviderName, events []webhook.NormalizedWebhook, tc *tracectx.Context) (webhook.IngestResult, error) {
	for i := range events {
		w := events[i]
		span := tc.Child()
		job := msgworker.WebhookJob{
			ConnectionID: shardConnection(&w),
			ChatID:       shardChat(&w),
			Handler: func(workerCtx context.Context) error {
				jobCtx := tracectx.WithContext(workerCtx, span)
				_, err := s.processor.ProcessWebhookEvent(jobCtx, &w, provider, span)
				return err
			},
		}
		if !s.pool.TryDispatch(job) {
			tracectx.Logger(ctx).WithField("provider", provider).Warn("[WEBHOOK] Worker queue full, asking provider to retry")
			return result, pkgError.ServiceUnavailableError("webhook queue is full, retry later")
		}
		result.Events = append(result.Events, webhook.ProcessResult{Event: w.Event, Processed: false, Reason: "queued"})
	}
	result.Queued = true
	return result, nil
}

func shardConnection(w *webhook.NormalizedWebhook) string {
	if w.ConnectionID != "" {
		return w.ConnectionID
	}
	return w.InstanceID
}

// shardChat keeps events of one conversation on the same worker.
func shardChat(w *webhook.NormalizedWebhook) string {
	switch d := w.Data.(type) {
	case webhook.MessageData:
		if d.Message.IsFromMe && d.Message.To != "" {
			return d.Message.To
		}
		return d.Message.From
	case webhook.StatusData:
		return d.ChatID
	case webhook.PresenceData:
		return d.ChatID
	case webhook.GroupData:
		return d.GroupID
	case webhook.CallData:
		return d.From
	default:
		return ""
	}
}
