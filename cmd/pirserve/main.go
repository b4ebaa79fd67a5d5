// Command pirserve runs the private information retrieval content-delivery
// backend.
//
// Logging:
//   - Base logger is created here with output format and level
//   - Logger is passed to all components via dependency injection
//   - No global slog configuration (no slog.SetDefault)
//   - Components scope loggers with their own attributes
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"pirserve/internal/catalog/sqlite"
	"pirserve/internal/chunkcache"
	"pirserve/internal/home"
	"pirserve/internal/ingest"
	"pirserve/internal/logging"
	"pirserve/internal/pirconfig"
	"pirserve/internal/server"
	"pirserve/internal/session"
)

func main() {
	baseHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug, // filtering is done by ComponentFilterHandler
	})
	filterHandler := logging.NewComponentFilterHandler(baseHandler, slog.LevelInfo)
	logger := slog.New(filterHandler)

	rootCmd := &cobra.Command{
		Use:   "pirserve",
		Short: "Private information retrieval content-delivery backend",
	}
	rootCmd.PersistentFlags().String("data-dir", "", "data directory (default: platform config dir, or PIRSERVE_DATA_DIR)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			dataDirFlag, _ := cmd.Flags().GetString("data-dir")
			addrFlag, _ := cmd.Flags().GetString("addr")

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			return run(ctx, logger, dataDirFlag, addrFlag)
		},
	}
	serveCmd.Flags().String("addr", "", "listen address (default: "+pirconfig.DefaultListenAddr+", or PIRSERVE_LISTEN_ADDR)")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("dev")
		},
	}

	rootCmd.AddCommand(serveCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, dataDirFlag, addrFlag string) error {
	dir, err := resolveHome(dataDirFlag)
	if err != nil {
		return fmt.Errorf("resolve data directory: %w", err)
	}
	if err := dir.EnsureExists(); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	logger.Info("data directory", "path", dir.Root())

	adminSecret, fromEnv := pirconfig.AdminSecret()
	if !fromEnv {
		logger.Warn("ADMIN_SECRET not set, using insecure built-in default — set ADMIN_SECRET before exposing this server")
	}

	store, err := sqlite.NewStore(dir.CatalogPath())
	if err != nil {
		return fmt.Errorf("open catalog store: %w", err)
	}
	defer store.Close()

	cache := chunkcache.New(store, dir, logger)
	if err := cache.Reload(ctx); err != nil {
		return fmt.Errorf("initial chunk cache load: %w", err)
	}

	ingester := ingest.New(store, dir, cache, logger)
	sessions := session.New(pirconfig.SessionTTL())
	srv := server.New(store, cache, sessions, ingester, dir, adminSecret, logger)

	addr := addrFlag
	if addr == "" {
		addr = pirconfig.ListenAddr()
	}

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// resolveHome returns a Dir from the flag value, the PIRSERVE_DATA_DIR
// environment variable, or the platform default, in that priority order.
func resolveHome(flagValue string) (home.Dir, error) {
	if flagValue != "" {
		return home.New(flagValue), nil
	}
	if envDir := pirconfig.DataDir(); envDir != "" {
		return home.New(envDir), nil
	}
	return home.Default()
}
