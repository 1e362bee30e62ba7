package cmd

import (
	"fmt"

	"github.com/AzielCF/az-wap-ingest/core/config"
	coreDB "github.com/AzielCF/az-wap-ingest/core/database"
	"github.com/AzielCF/az-wap-ingest/domains/connection"
	"github.com/AzielCF/az-wap-ingest/domains/webhook"
	"github.com/AzielCF/az-wap-ingest/infrastructure/persistence"
	"github.com/AzielCF/az-wap-ingest/infrastructure/providers"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withDatabase(cmd, func(*gorm.DB) error {
			logrus.Info("[MIGRATION] Schema is up to date")
			return nil
		})
	},
}

var connectionCmd = &cobra.Command{
	Use:   "connection",
	Short: "Manage provider connections",
}

var connectionAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a provider connection",
	Example: `  az-wap-ingest connection add --provider uazapi --name sales --token <instance-token>
  az-wap-ingest connection add --provider cloudapi --name support --cloud-phone-id 1234567890`,
	RunE: addConnection,
}

func init() {
	f := connectionAddCmd.Flags()
	f.String("id", "", "connection id (generated when empty)")
	f.String("organization", "", "owning organization id")
	f.String("name", "", "display name")
	f.String("provider", "", "provider name: uazapi, evolution or cloudapi")
	f.String("token", "", "provider instance token")
	f.String("cloud-phone-id", "", "Cloud API phone number id")
	_ = connectionAddCmd.MarkFlagRequired("provider")

	connectionCmd.AddCommand(connectionAddCmd)
	rootCmd.AddCommand(migrateCmd, connectionCmd)
}

func addConnection(cmd *cobra.Command, _ []string) error {
	f := cmd.Flags()
	id, _ := f.GetString("id")
	org, _ := f.GetString("organization")
	name, _ := f.GetString("name")
	provider, _ := f.GetString("provider")
	token, _ := f.GetString("token")
	phoneID, _ := f.GetString("cloud-phone-id")

	providerName := webhook.ParseProviderName(provider)
	if _, ok := providers.DefaultRegistry().Get(providerName); !ok {
		return fmt.Errorf("unknown provider %q", provider)
	}
	provider = string(providerName)
	if providerName == webhook.ProviderCloudAPI && phoneID == "" {
		return fmt.Errorf("--cloud-phone-id is required for cloudapi connections")
	}
	if providerName != webhook.ProviderCloudAPI && token == "" {
		return fmt.Errorf("--token is required for %s connections", provider)
	}
	if id == "" {
		id = uuid.NewString()
	}

	conn := connection.Connection{
		ID:                    id,
		OrganizationID:        org,
		Name:                  name,
		Provider:              provider,
		ProviderToken:         token,
		Status:                connection.StatusDisconnected,
		CloudAPIPhoneNumberID: phoneID,
	}

	return withDatabase(cmd, func(db *gorm.DB) error {
		if err := persistence.NewConnectionGormRepository(db).Create(cmd.Context(), conn); err != nil {
			return fmt.Errorf("failed to create connection: %w", err)
		}
		logrus.Infof("[MIGRATION] Connection %s registered for provider %s", conn.ID, conn.Provider)
		fmt.Fprintln(cmd.OutOrStdout(), conn.ID)
		return nil
	})
}

// withDatabase opens the configured database, applies the schema and runs fn.
func withDatabase(cmd *cobra.Command, fn func(db *gorm.DB) error) error {
	conn, err := coreDB.NewDatabase(cfg.Database, cfg.App.Debug)
	if err != nil {
		return err
	}
	defer func() {
		if err := coreDB.Close(conn); err != nil {
			logrus.Errorf("[MIGRATION] Error closing database: %v", err)
		}
	}()

	logrus.Infof("[MIGRATION] Migrating %s database %s", cfg.Database.Driver, databaseLabel(cfg.Database))
	if err := persistence.Migrate(cmd.Context(), conn); err != nil {
		return err
	}
	return fn(conn)
}

func databaseLabel(c config.DatabaseConfig) string {
	if c.Driver == "postgres" {
		return fmt.Sprintf("%s@%s:%d", c.Name, c.Host, c.Port)
	}
	return c.Name
}
