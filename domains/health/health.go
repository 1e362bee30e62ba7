package health

import (
	"context"
	"time"
)

type Status string

const (
	StatusOk       Status = "OK"
	StatusError    Status = "ERROR"
	StatusDisabled Status = "DISABLED"
)

type ComponentStatus struct {
	Name      string `json:"name"`
	Status    Status `json:"status"`
	Message   string `json:"message,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
}

type Report struct {
	Status     Status            `json:"status"`
	ServerID   string            `json:"server_id"`
	CheckedAt  time.Time         `json:"checked_at"`
	Components []ComponentStatus `json:"components"`
	// Workers is set when webhooks are processed asynchronously.
	Workers any `json:"workers,omitempty"`
}

// Healthy reports whether no component failed.
func (r Report) Healthy() bool {
	return r.Status != StatusError
}

type IHealthUsecase interface {
	Check(ctx context.Context) Report
}
