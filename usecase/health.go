package usecase

import (
	"context"
	"time"

	"github.com/AzielCF/az-wap-ingest/domains/health"
	"github.com/AzielCF/az-wap-ingest/pkg/msgworker"
	"github.com/sirupsen/logrus"
)

const healthCheckTimeout = 2 * time.Second

// Pinger is anything that can report its own reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type healthService struct {
	serverID string
	checks   []namedCheck
	pool     *msgworker.WebhookWorkerPool
}

type namedCheck struct {
	name   string
	pinger Pinger
}

// NewHealthService checks the given dependencies in order. A nil Pinger is
// reported as disabled.
func NewHealthService(serverID string, database, valkey Pinger, pool *msgworker.WebhookWorkerPool) health.IHealthUsecase {
	return &healthService{
		serverID: serverID,
		checks: []namedCheck{
			{name: "database", pinger: database},
			{name: "valkey", pinger: valkey},
		},
		pool: pool,
	}
}

func (s *healthService) Check(ctx context.Context) health.Report {
	report := health.Report{
		Status:    health.StatusOk,
		ServerID:  s.serverID,
		CheckedAt: time.Now().UTC(),
	}

	for _, c := range s.checks {
		component := health.ComponentStatus{Name: c.name, Status: health.StatusDisabled}
		if c.pinger != nil {
			component = ping(ctx, c.name, c.pinger)
		}
		if component.Status == health.StatusError {
			report.Status = health.StatusError
		}
		report.Components = append(report.Components, component)
	}

	if s.pool != nil {
		report.Workers = s.pool.GetStats()
	}
	return report
}

func ping(ctx context.Context, name string, p Pinger) health.ComponentStatus {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	start := time.Now()
	err := p.Ping(ctx)
	status := health.ComponentStatus{
		Name:      name,
		Status:    health.StatusOk,
		LatencyMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		logrus.WithError(err).Warnf("[HEALTH] %s check failed", name)
		status.Status = health.StatusError
		status.Message = err.Error()
	}
	return status
}
