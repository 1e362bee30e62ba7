package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/AzielCF/az-wap-ingest/ui/rest"
	"github.com/AzielCF/az-wap-ingest/ui/rest/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var restCmd = &cobra.Command{
	Use:   "rest",
	Short: "Receive provider webhooks over http",
	Run:   restServer,
}

func init() {
	rootCmd.AddCommand(restCmd)
}

func restServer(cmd *cobra.Command, _ []string) {
	if err := initApp(cmd.Context()); err != nil {
		StopApp()
		logrus.Fatalf("[REST] Failed to initialize: %v", err)
	}

	fiberConfig := fiber.Config{
		EnableTrustedProxyCheck: true,
		BodyLimit:               int(cfg.Webhook.MaxBodyBytes),
		ErrorHandler:            rest.ErrorHandler(cfg.Webhook.MaxBodyBytes),
		Network:                 "tcp",
		AppName:                 "Az-Wap Webhook Ingest",
		ServerHeader:            "Hidden",
	}

	// Configure proxy settings if trusted proxies are specified
	if len(cfg.App.TrustedProxies) > 0 {
		fiberConfig.TrustedProxies = cfg.App.TrustedProxies
		fiberConfig.ProxyHeader = fiber.HeaderXForwardedFor
	}

	app := fiber.New(fiberConfig)

	app.Use(requestid.New())
	app.Use(middleware.Recovery())
	app.Use(middleware.Trace())
	app.Use(helmet.New(helmet.Config{
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		ReferrerPolicy:     "no-referrer",
	}))

	if cfg.App.Debug {
		app.Use(logger.New())
	}

	apiGroup := app.Group(cfg.App.BasePath + "/api")

	rest.InitRestWebhook(apiGroup, ingestUsecase, rest.WebhookOptions{
		CloudAPIVerifyToken: cfg.Webhook.CloudAPIVerifyToken,
		CloudAPIAppSecret:   cfg.Webhook.CloudAPIAppSecret,
	})
	rest.InitRestHealth(apiGroup, healthUsecase)
	rest.InitRestWorkerPool(apiGroup, webhookPool)

	// Graceful shutdown handler
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logrus.Info("[REST] Reception of termination signal, shutting down gracefully...")
		if err := app.Shutdown(); err != nil {
			logrus.Errorf("[REST] Error during Fiber shutdown: %v", err)
		}
	}()

	if cfg.Webhook.Async {
		logrus.Infof("[REST] Async mode: %d workers, queue size %d", cfg.Webhook.Workers, cfg.Webhook.QueueSize)
	}

	if err := app.Listen(":" + cfg.App.Port); err != nil {
		logrus.Errorf("[REST] Failed to start: %v", err)
	}

	// Listen returns once Shutdown has drained in-flight requests.
	StopApp()
}
