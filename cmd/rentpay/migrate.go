package main

import (
	"github.com/spf13/cobra"

	"github.com/ChinthakaSandaruwan/property-system-sub000/internal/database"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the ledger tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}

			db, err := database.ConnectPostgres(cfg, log)
			if err != nil {
				return err
			}
			if err := database.Migrate(db); err != nil {
				return err
			}
			log.Info("Migration complete")
			return nil
		},
	}
}
