package webhook

import (
	"context"
	"fmt"
)

// EventHandler has one method per EventKind. Adding a kind means adding a
// method here, which breaks every handler until it decides what to do.
type EventHandler interface {
	OnMessageReceived(ctx context.Context, w *NormalizedWebhook, d MessageData) error
	OnMessageSent(ctx context.Context, w *NormalizedWebhook, d MessageData) error
	OnMessageUpdated(ctx context.Context, w *NormalizedWebhook, d StatusData) error
	OnInstanceConnected(ctx context.Context, w *NormalizedWebhook, d InstanceData) error
	OnInstanceDisconnected(ctx context.Context, w *NormalizedWebhook, d InstanceData) error
	OnInstanceQR(ctx context.Context, w *NormalizedWebhook, d InstanceData) error
	OnCallReceived(ctx context.Context, w *NormalizedWebhook, d CallData) error
	OnPresenceUpdate(ctx context.Context, w *NormalizedWebhook, d PresenceData) error
	OnGroupUpdate(ctx context.Context, w *NormalizedWebhook, d GroupData) error
	OnUnmapped(ctx context.Context, w *NormalizedWebhook, d UnmappedData) error
}

// DataMismatchError reports an event whose Data does not fit its kind.
type DataMismatchError struct {
	Event EventKind
	Data  EventData
}

func (e *DataMismatchError) Error() string {
	return fmt.Sprintf("event %s carries unexpected data %T", e.Event, e.Data)
}

// Dispatch routes w to the handler method for its kind. Kinds outside the
// enumeration are treated as unmapped.
func Dispatch(ctx context.Context, w *NormalizedWebhook, h EventHandler) error {
	switch w.Event {
	case EventMessageReceived:
		d, ok := w.Data.(MessageData)
		if !ok {
			return &DataMismatchError{Event: w.Event, Data: w.Data}
		}
		return h.OnMessageReceived(ctx, w, d)
	case EventMessageSent:
		d, ok := w.Data.(MessageData)
		if !ok {
			return &DataMismatchError{Event: w.Event, Data: w.Data}
		}
		return h.OnMessageSent(ctx, w, d)
	case EventMessageUpdated:
		d, ok := w.Data.(StatusData)
		if !ok {
			return &DataMismatchError{Event: w.Event, Data: w.Data}
		}
		return h.OnMessageUpdated(ctx, w, d)
	case EventInstanceConnected, EventInstanceDisconnected, EventInstanceQR:
		d, ok := w.Data.(InstanceData)
		if !ok {
			return &DataMismatchError{Event: w.Event, Data: w.Data}
		}
		switch w.Event {
		case EventInstanceConnected:
			return h.OnInstanceConnected(ctx, w, d)
		case EventInstanceDisconnected:
			return h.OnInstanceDisconnected(ctx, w, d)
		default:
			return h.OnInstanceQR(ctx, w, d)
		}
	case EventCallReceived:
		d, ok := w.Data.(CallData)
		if !ok {
			return &DataMismatchError{Event: w.Event, Data: w.Data}
		}
		return h.OnCallReceived(ctx, w, d)
	case EventPresenceUpdate:
		d, ok := w.Data.(PresenceData)
		if !ok {
			return &DataMismatchError{Event: w.Event, Data: w.Data}
		}
		return h.OnPresenceUpdate(ctx, w, d)
	case EventGroupUpdate:
		d, ok := w.Data.(GroupData)
		if !ok {
			return &DataMismatchError{Event: w.Event, Data: w.Data}
		}
		return h.OnGroupUpdate(ctx, w, d)
	default:
		d, _ := w.Data.(UnmappedData)
		if d.ProviderEvent == "" {
			d.ProviderEvent = string(w.Event)
		}
		return h.OnUnmapped(ctx, w, d)
	}
}
