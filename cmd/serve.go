package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/killallgit/player-api/internal/api"
	"github.com/killallgit/player-api/internal/service"
	"github.com/killallgit/player-api/pkg/config"
)

var (
	serverHost string
	serverPort int
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the marker service",
	Long: `Start the marker service's HTTP transport with the configured
settings: opens the library and action log databases, wires the CRUD,
Shift and Purge engines, and serves the Request Dispatcher over HTTP.

Example:
  player-api serve
  player-api serve --port 9090
  player-api serve --host 0.0.0.0 --port 8080`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "", "server host (overrides config)")
	serveCmd.Flags().IntVar(&serverPort, "port", 0, "server port (overrides config)")
}

func runServer(cmd *cobra.Command, args []string) error {
	svc, err := service.New()
	if err != nil {
		return fmt.Errorf("starting service: %w", err)
	}

	cfg, err := config.GetConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if serverHost != "" {
		cfg.Server.Host = serverHost
	}
	if serverPort != 0 {
		cfg.Server.Port = serverPort
	}

	server := api.NewServer(svc, cfg)

	fmt.Printf("Starting marker service on %s:%d\n", cfg.Server.Host, cfg.Server.Port)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			serverErr <- fmt.Errorf("server error: %w", err)
		}
	}()

	fmt.Printf("Server is ready to handle requests at %s:%d\n", cfg.Server.Host, cfg.Server.Port)

	select {
	case <-stop:
		fmt.Println("\nShutting down server...")
	case err := <-serverErr:
		fmt.Fprintf(os.Stderr, "\n%v\n", err)
		fmt.Println("Shutting down server...")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Server forced to shutdown: %v\n", err)
		return err
	}
	if err := svc.Shutdown(); err != nil {
		fmt.Fprintf(os.Stderr, "Error closing service: %v\n", err)
	}

	fmt.Println("Server gracefully stopped")
	return nil
}
