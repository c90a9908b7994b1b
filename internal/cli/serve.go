package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/retryguard/internal/control"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the operations API and refresh rules on schedule",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	app, err := control.NewApp(control.Config{
		Port:     cfg.Server.Port,
		Redis:    cfg.Redis,
		Database: cfg.Database,
		Rules:    cfg.Rules,
		WorkerID: cfg.Worker.ID,
	})
	if err != nil {
		slog.Error("Failed to initialize retryguard", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := app.Start(ctx); err != nil {
		slog.Error("Failed to start retryguard", "error", err)
		os.Exit(1)
	}

	slog.Info("retryguard started", "config", cfgPath, "port", cfg.Server.Port)

	sig := <-sigChan
	slog.Info("Received signal, shutting down...", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := app.Stop(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
		os.Exit(1)
	}
}
