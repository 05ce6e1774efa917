package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/phrazzld/warden/internal/api"
	"github.com/phrazzld/warden/internal/sizing"
	"github.com/phrazzld/warden/internal/supervisor"
)

var serveCmd = &cobra.Command{
	Use:    "serve",
	Short:  "Run the HTTP pool master (spawned by start)",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadApp()
		if err != nil {
			return err
		}

		size := sizing.HTTPPoolSize(sizing.DetectCores())
		pool := supervisor.NewHTTPPool(
			supervisor.PoolConfigFromServer(cfg.Server, cfg.Paths, size), log)
		if err := pool.Start(); err != nil {
			return err
		}

		admin := &http.Server{
			Addr:    cfg.Server.AdminAddr,
			Handler: api.NewStatusHandler(pool, log).Router(),
		}
		go func() {
			if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("admin endpoint failed", "error", err)
			}
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		sig := <-sigCh
		log.Info("pool master shutting down", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(),
			cfg.Server.GracefulTimeout+5*time.Second)
		defer cancel()

		if err := admin.Shutdown(ctx); err != nil {
			log.Warn("admin endpoint shutdown failed", "error", err)
		}
		return pool.Stop(ctx)
	},
}

func init() {
	// The role marker keeps "--role http" in the master's command line
	// so it is discoverable by signature like every other worker.
	serveCmd.Flags().String("role", "http", "role marker used for process discovery")
}
