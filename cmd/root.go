package cmd

import (
	"os"
	"strings"
	"time"

	"github.com/AzielCF/az-wap-ingest/core/config"
	"github.com/AzielCF/az-wap-ingest/pkg/utils"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// cfg is populated by initConfig before any subcommand runs.
var cfg *config.Config

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "az-wap-ingest",
	Short: "WhatsApp webhook ingestion service",
	Long: `Receives webhooks from UAZapi, Evolution and the WhatsApp Cloud API,
normalizes them into one event shape and persists inbound conversations.`,
}

func init() {
	time.Local = time.UTC

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	initFlags()

	cobra.OnInitialize(initConfig, initLogging)
}

func initFlags() {
	flags := rootCmd.PersistentFlags()

	flags.StringP("port", "p", "", "change port number with --port <number> | example: --port=8080")
	flags.BoolP("debug", "d", false, "enable debug logging --debug <true/false> | example: --debug=true")
	flags.String("env", "", `runtime environment --env <string> | example: --env="production"`)
	flags.String("base-path", "", `base path for subpath deployment --base-path <string> | example: --base-path="/ingest"`)
	flags.String("trusted-proxies", "", `trusted proxy IP ranges --trusted-proxies <string> | example: --trusted-proxies="10.0.0.0/8,172.16.0.0/12"`)
	flags.String("server-id", "", `identifier of this replica in lock tokens and health reports --server-id <string>`)

	flags.String("db-driver", "", `database driver --db-driver <sqlite|postgres>`)
	flags.String("db-name", "", `database name or sqlite file --db-name <string> | example: --db-name="storages/ingest.db"`)

	flags.String("lock-backend", "", `message lock backend --lock-backend <valkey|redlock|memory>`)
	flags.Duration("lock-ttl", 0, `message lock TTL --lock-ttl <duration> | example: --lock-ttl=5s`)

	flags.Bool("async", false, `acknowledge webhooks before processing --async <true/false>`)
	flags.Int("webhook-workers", 0, `number of webhook workers in async mode --webhook-workers <number>`)
	flags.Int("webhook-queue-size", 0, `queue size per webhook worker --webhook-queue-size <number>`)

	bindings := map[string]string{
		"port":               "app_port",
		"debug":              "app_debug",
		"env":                "app_env",
		"base-path":          "app_base_path",
		"trusted-proxies":    "app_trusted_proxies",
		"server-id":          "server_id",
		"db-driver":          "db_driver",
		"db-name":            "db_name",
		"lock-backend":       "lock_backend",
		"lock-ttl":           "lock_message_ttl",
		"async":              "webhook_async",
		"webhook-workers":    "webhook_workers",
		"webhook-queue-size": "webhook_queue_size",
	}
	for flag, key := range bindings {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			logrus.Fatalf("[CONFIG] Failed to bind flag --%s: %v", flag, err)
		}
	}
}

// initConfig loads .env, environment variables and flags into cfg.
func initConfig() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.Warnf("[CONFIG] Failed to read .env: %v", err)
	}

	config.SetDefaults(viper.GetViper())
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	loaded, err := config.LoadConfig(viper.GetViper())
	if err != nil {
		logrus.Fatalf("[CONFIG] %v", err)
	}
	loaded.App.ServerID = utils.GetPersistentServerID(loaded.App.ServerID, loaded.App.StateDir)
	cfg = loaded
}

func initLogging() {
	if cfg.App.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	if cfg.IsProduction() {
		logrus.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
