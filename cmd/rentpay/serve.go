package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ChinthakaSandaruwan/property-system-sub000/internal/config"
	"github.com/ChinthakaSandaruwan/property-system-sub000/internal/database"
	"github.com/ChinthakaSandaruwan/property-system-sub000/internal/ledger"
	"github.com/ChinthakaSandaruwan/property-system-sub000/internal/notify"
	"github.com/ChinthakaSandaruwan/property-system-sub000/internal/obs"
	"github.com/ChinthakaSandaruwan/property-system-sub000/internal/payment"
	"github.com/ChinthakaSandaruwan/property-system-sub000/internal/reconcile"
	"github.com/ChinthakaSandaruwan/property-system-sub000/internal/utils"
	"github.com/ChinthakaSandaruwan/property-system-sub000/internal/web"
	"github.com/ChinthakaSandaruwan/property-system-sub000/internal/worker"
)

func serveCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the checkout API, gateway callbacks and session sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log, migrate)
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", true, "run database migrations on startup")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, log *logrus.Logger, migrate bool) error {
	shutdownTracer, err := obs.InitTracer(ctx, "rentpay", cfg.OTLPEndpoint, cfg.Environment)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.WithError(err).Warn("Failed to flush traces")
		}
	}()

	db, err := database.ConnectPostgres(cfg, log)
	if err != nil {
		return err
	}
	if migrate {
		if err := database.Migrate(db); err != nil {
			return err
		}
	}

	rdb, err := database.ConnectRedis(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer rdb.Close()

	dispatcher, closeDispatchers, err := buildDispatcher(cfg, log)
	if err != nil {
		return err
	}
	defer closeDispatchers()

	gatewayIPs, err := utils.ParseIPAllowList(cfg.AllowedGatewayCIDRs)
	if err != nil {
		return fmt.Errorf("GATEWAY_ALLOWED_CIDRS: %w", err)
	}
	if gatewayIPs.Empty() {
		log.Warn("GATEWAY_ALLOWED_CIDRS is empty, notify accepts any source address")
	}

	store := ledger.NewStore(db, cfg.LedgerTxRetries, log)
	signer := payment.NewSigner(cfg.MerchantID, cfg.MerchantSecret)
	builder := payment.NewBuilder(signer, store, payment.BuilderConfig{
		CheckoutURL: cfg.CheckoutURL,
		Currency:    cfg.Currency,
		ReturnURL:   cfg.ReturnURL(),
		NotifyURL:   cfg.NotifyURL(),
		CancelURL:   cfg.CancelURL(),
		SessionTTL:  cfg.CheckoutSessionTTL,
	}, log)
	coord := reconcile.NewCoordinator(payment.NewVerifier(signer), store, dispatcher, cfg.DispatchTimeout, log)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sweeper := worker.NewSweeper(store, rdb, cfg.SweepInterval, cfg.SweepBatch, log)
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		sweeper.Start(ctx)
	}()

	srv := web.NewServer(coord, builder, gatewayIPs, log)
	err = srv.ListenAndServe(ctx, cfg.HTTPAddr)
	cancel()

	<-sweepDone
	coord.Wait()
	log.Info("Service stopped")
	return err
}

// buildDispatcher always logs events and adds Telegram and RabbitMQ when
// they are configured.
func buildDispatcher(cfg *config.Config, log *logrus.Logger) (notify.Dispatcher, func(), error) {
	dispatchers := notify.Multi{notify.NewLogDispatcher(log)}
	closers := []func() error{}

	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != 0 {
		tg, err := notify.NewTelegramDispatcher(cfg.TelegramBotToken, cfg.TelegramChatID)
		if err != nil {
			return nil, nil, err
		}
		dispatchers = append(dispatchers, tg)
		log.Info("Telegram booking notifications enabled")
	}

	if cfg.RabbitURL != "" {
		mq, err := notify.NewRabbitDispatcher(cfg.RabbitURL, cfg.RabbitExchange)
		if err != nil {
			return nil, nil, err
		}
		dispatchers = append(dispatchers, mq)
		closers = append(closers, mq.Close)
		log.WithField("exchange", cfg.RabbitExchange).Info("RabbitMQ booking events enabled")
	}

	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				log.WithError(err).Warn("Failed to close dispatcher")
			}
		}
	}
	return dispatchers, closeAll, nil
}
