package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/swarmroll/pkg/api"
	"github.com/cuemby/swarmroll/pkg/deploy"
	"github.com/cuemby/swarmroll/pkg/events"
	"github.com/cuemby/swarmroll/pkg/log"
	"github.com/cuemby/swarmroll/pkg/metrics"
	"github.com/cuemby/swarmroll/pkg/security"
	"github.com/cuemby/swarmroll/pkg/types"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook server",
	Long: `Run the swarmroll HTTP server.

The server accepts signed deploy webhooks on POST /deploy, manages the service
registry under /services and exposes /health, /ready, /live and /metrics.
SWARMROLL_SIGNATURE_SECRET must be set. On SIGINT or SIGTERM the server stops
accepting requests and waits up to SWARMROLL_DRAIN_TIMEOUT for a running
rollout to finish.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("listen", "", "Listen address (env SWARMROLL_LISTEN_ADDR)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("listen") {
		cfg.ListenAddr, _ = cmd.Flags().GetString("listen")
	}
	if err := cfg.ValidateServer(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := log.WithComponent("serve")
	metrics.SetVersion(Version)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	verifier, err := security.NewVerifier(cfg.SignatureSecret)
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	metrics.RegisterComponent(metrics.ComponentStore, true, "")

	p, closer, err := openPlatform(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()
	if err := p.Ping(ctx); err != nil {
		logger.Warn().Err(err).Msg("Platform is not reachable yet")
		metrics.RegisterComponent(metrics.ComponentPlatform, false, err.Error())
	} else {
		metrics.RegisterComponent(metrics.ComponentPlatform, true, "")
	}

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sinks := []events.Sink{events.NewLogSink()}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink, err := events.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return err
		}
		sinks = append(sinks, kafkaSink)
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("Publishing events to kafka")
	}

	deployer := newDeployer(cfg, store, broker)

	collector := metrics.NewCollector(func(ctx context.Context) ([]types.ServiceStatus, error) {
		return deploy.Statuses(ctx, store, p)
	}, cfg.MetricsInterval)
	collector.Start()
	defer collector.Stop()

	server, err := api.NewServer(api.Config{
		Addr:         cfg.ListenAddr,
		Verifier:     verifier,
		WebhookRate:  rate.Limit(cfg.WebhookRate),
		WebhookBurst: cfg.WebhookBurst,
	}, deployer, store, p, broker)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, sink := range sinks {
		g.Go(func() error {
			return events.Run(gctx, broker, sink)
		})
	}
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		shutdownErr := server.Shutdown(shutdownCtx)

		// A webhook rollout keeps running after its request is gone; let it
		// finish, rollback included, before the store and platform close.
		logger.Info().Dur("timeout", cfg.DrainTimeout).Msg("Waiting for in-flight rollout")
		drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.DrainTimeout)
		defer cancelDrain()
		if err := deployer.Wait(drainCtx); err != nil {
			return fmt.Errorf("rollout still running at shutdown: %w", err)
		}

		// Shutdown times out while a rollout holds its request open
		if errors.Is(shutdownErr, context.DeadlineExceeded) {
			return nil
		}
		return shutdownErr
	})

	logger.Info().
		Str("version", Version).
		Str("addr", cfg.ListenAddr).
		Str("store", cfg.StoreDriver).
		Str("image_store", cfg.ImageStore).
		Msg("swarmroll started")

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info().Msg("Shutdown complete")
	return nil
}
