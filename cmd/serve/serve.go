// Package serve implements the serve subcommand: the read-only inventory
// API plus the optional Prometheus endpoint.
package serve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/tallycam/tallycam-go/internal/api"
	"github.com/tallycam/tallycam-go/internal/conf"
	"github.com/tallycam/tallycam-go/internal/inventory"
	"github.com/tallycam/tallycam-go/internal/observability"
)

// Command creates the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only inventory API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), settings)
		},
	}

	cmd.Flags().StringVar(&settings.API.Listen, "listen", settings.API.Listen, "API listen address")
	cmd.Flags().StringVar(&settings.API.Key, "key", settings.API.Key, "Bearer key required on all requests")

	return cmd
}

func runServe(ctx context.Context, settings *conf.Settings) error {
	m, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	inv, err := inventory.NewStore(conf.InventorySettings{
		Path:      settings.ResolvePath(settings.Inventory.Path),
		PhotoPath: settings.ResolvePath(settings.Inventory.PhotoPath),
	}, m.Store)
	if err != nil {
		return err
	}

	server := api.New(settings.API, inv)

	errCh := make(chan error, 2)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	if settings.Metrics.Enabled {
		go func() {
			if err := m.Serve(settings.Metrics.Listen); err != nil {
				errCh <- err
			}
		}()
	}
	fmt.Printf("Inventory API on %s\n", settings.API.Listen)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
