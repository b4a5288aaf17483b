package main

import (
	"github.com/spf13/cobra"

	"github.com/ChinthakaSandaruwan/property-system-sub000/internal/database"
	"github.com/ChinthakaSandaruwan/property-system-sub000/internal/ledger"
	"github.com/ChinthakaSandaruwan/property-system-sub000/internal/worker"
)

func sweepCmd() *cobra.Command {
	var batch int

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Expire abandoned checkout sessions once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			if batch <= 0 {
				batch = cfg.SweepBatch
			}

			ctx := cmd.Context()
			db, err := database.ConnectPostgres(cfg, log)
			if err != nil {
				return err
			}
			rdb, err := database.ConnectRedis(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer rdb.Close()

			store := ledger.NewStore(db, cfg.LedgerTxRetries, log)
			n, err := worker.NewSweeper(store, rdb, cfg.SweepInterval, batch, log).RunOnce(ctx)
			if err != nil {
				return err
			}
			log.WithField("expired", n).Info("Sweep finished")
			return nil
		},
	}

	cmd.Flags().IntVarP(&batch, "batch", "n", 0, "maximum sessions to expire (defaults to SWEEP_BATCH)")
	return cmd
}
