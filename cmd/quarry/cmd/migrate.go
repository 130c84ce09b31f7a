package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solatis/quarry/internal/config"
	"github.com/solatis/quarry/store/sqlstore"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the document schema in a SQL store",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if storeURL != "" {
		cfg.StoreURL = storeURL
	}

	db, err := sqlstore.Open(cfg.StoreURL)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer db.Close()

	if err := sqlstore.Migrate(db); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s)\n", db.DriverName())
	return nil
}
