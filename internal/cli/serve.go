package cli

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/aixgo-dev/aibroker/internal/observability"
	"github.com/aixgo-dev/aibroker/pkg/config"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the broker's health/metrics HTTP server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "Port for the health/metrics server")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	observability.InitMetrics()
	shutdownTracing, err := observability.InitTracing(ctx, "")
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	b, err := buildBroker(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = b.store.Close() }()

	checker := observability.NewHealthChecker()
	checker.Register(&observability.HealthCheck{
		Name:      "kv_store",
		CheckFunc: b.store.Ping,
		Critical:  true,
	})

	sched := cron.New()
	if _, err := sched.AddFunc("@every 1h", func() {
		report, err := b.cache.Optimize(context.Background())
		if err != nil {
			log.Printf("serve: cache optimize sweep failed: %v", err)
			return
		}
		log.Printf("serve: cache optimize scanned=%d removed_stale=%d flagged=%d",
			report.Scanned, report.RemovedStale, report.FlaggedForCompression)
	}); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	server := observability.NewServer(servePort, checker, nil)
	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	log.Printf("serve: listening on :%d", servePort)

	select {
	case <-ctx.Done():
		log.Printf("serve: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
