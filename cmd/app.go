package cmd

import (
	"context"
	"fmt"

	"github.com/AzielCF/az-wap-ingest/core/config"
	coreDB "github.com/AzielCF/az-wap-ingest/core/database"
	domainHealth "github.com/AzielCF/az-wap-ingest/domains/health"
	domainWebhook "github.com/AzielCF/az-wap-ingest/domains/webhook"
	"github.com/AzielCF/az-wap-ingest/infrastructure/eventbus"
	"github.com/AzielCF/az-wap-ingest/infrastructure/kvstore"
	"github.com/AzielCF/az-wap-ingest/infrastructure/lock"
	"github.com/AzielCF/az-wap-ingest/infrastructure/persistence"
	"github.com/AzielCF/az-wap-ingest/infrastructure/providers"
	"github.com/AzielCF/az-wap-ingest/infrastructure/valkey"
	"github.com/AzielCF/az-wap-ingest/pkg/msgworker"
	"github.com/AzielCF/az-wap-ingest/usecase"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	db           *gorm.DB
	valkeyClient *valkey.Client
	redlock      *lock.RedlockLocker
	publisher    eventbus.Publisher
	webhookPool  *msgworker.WebhookWorkerPool

	// Usecase
	ingestUsecase domainWebhook.IIngestUsecase
	healthUsecase domainHealth.IHealthUsecase
)

// initApp opens every backing service and wires the pipeline. It is only run
// by commands that serve traffic.
func initApp(ctx context.Context) error {
	var err error

	db, err = coreDB.NewDatabase(cfg.Database, cfg.App.Debug)
	if err != nil {
		return err
	}
	if err := persistence.Migrate(ctx, db); err != nil {
		return err
	}
	logrus.Infof("[APP] Database ready (%s)", cfg.Database.Driver)

	if cfg.Valkey.Enabled {
		valkeyClient, err = valkey.NewClient(valkey.Config{
			Address:   cfg.Valkey.Address,
			Password:  cfg.Valkey.Password,
			DB:        cfg.Valkey.DB,
			KeyPrefix: cfg.Valkey.KeyPrefix,
		})
		if err != nil {
			return err
		}
		logrus.Infof("[APP] Valkey connected at %s", cfg.Valkey.Address)
	}

	var store kvstore.Store
	if valkeyClient != nil {
		store = kvstore.NewValkeyStore(valkeyClient)
	} else {
		store = kvstore.NewMemoryStore()
		logrus.Warn("[APP] Valkey disabled, entity cache is local to this process")
	}

	locker, err := newLocker()
	if err != nil {
		return err
	}

	if cfg.EventBus.AMQPURL != "" {
		publisher, err = eventbus.NewAMQPPublisher(cfg.EventBus.AMQPURL, cfg.EventBus.Exchange)
		if err != nil {
			return err
		}
		logrus.Infof("[APP] Publishing normalized events to exchange %s", cfg.EventBus.Exchange)
	} else {
		publisher = eventbus.NewNoopPublisher()
	}

	contacts := persistence.NewContactGormRepository(db)
	connections := persistence.NewConnectionGormRepository(db)

	processor := usecase.NewWebhookProcessor(usecase.ProcessorDeps{
		Cache:        usecase.NewEntityCache(store, contacts, connections, cfg.Cache),
		Contacts:     contacts,
		Connections:  connections,
		Messages:     persistence.NewMessageGormRepository(db),
		Sessions:     persistence.NewSessionManager(db),
		Locks:        lock.NewManager(locker, cfg.Lock.MessageTTL),
		Publisher:    publisher,
		BotSignature: cfg.Webhook.BotSignature,
		Producer:     cfg.App.ServerID,
	})

	if cfg.Webhook.Async {
		webhookPool = msgworker.NewWebhookWorkerPool(cfg.Webhook.Workers, cfg.Webhook.QueueSize)
		webhookPool.Start(context.Background())
	}
	ingestUsecase = usecase.NewIngestService(providers.DefaultRegistry(), processor, webhookPool)

	var valkeyPinger usecase.Pinger
	if valkeyClient != nil {
		valkeyPinger = valkeyClient
	}
	healthUsecase = usecase.NewHealthService(cfg.App.ServerID, usecase.PingFunc(pingDatabase), valkeyPinger, webhookPool)

	return nil
}

func newLocker() (lock.Locker, error) {
	backend := cfg.Lock.Backend
	if valkeyClient == nil && backend != config.LockBackendMemory {
		logrus.Warnf("[LOCK] Backend %q needs Valkey, falling back to in-process locks", backend)
		backend = config.LockBackendMemory
	}

	switch backend {
	case config.LockBackendValkey:
		return lock.NewValkeyLocker(valkeyClient, cfg.App.ServerID), nil
	case config.LockBackendRedlock:
		inner, err := valkeyClient.NewRedlock(cfg.Lock.MessageTTL, cfg.Lock.KeyMajority)
		if err != nil {
			return nil, err
		}
		redlock = lock.NewRedlockLocker(inner)
		return redlock, nil
	case config.LockBackendMemory:
		logrus.Warn("[LOCK] In-process locks only deduplicate within this replica")
		return lock.NewMemoryLocker(), nil
	default:
		return nil, fmt.Errorf("unknown lock backend: %s", backend)
	}
}

func pingDatabase(ctx context.Context) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// StopApp performs a clean shutdown of the worker pool and every backing service.
func StopApp() {
	logrus.Info("[APP] Stopping application...")

	if webhookPool != nil {
		webhookPool.Stop()
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logrus.Errorf("[APP] Error closing event bus publisher: %v", err)
		}
	}
	if redlock != nil {
		redlock.Close()
	}
	if valkeyClient != nil {
		valkeyClient.Close()
	}
	if err := coreDB.Close(db); err != nil {
		logrus.Errorf("[APP] Error closing database: %v", err)
	}

	logrus.Info("[APP] Application stopped cleanly.")
}
