package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/adjudex/adjudex/internal/server"
	"github.com/adjudex/adjudex/pkg/logging"
)

var serveAddr string

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the scraping API over HTTP",
	Long: `Serve exposes run triggering, run history and the source list over
HTTP and blocks until interrupted.`,
	Example: `  adjudex serve
  adjudex serve --addr :9090`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config, then :8080)")
}

func runServe(cobraCmd *cobra.Command, _ []string) error {
	ctx := cobraCmd.Context()

	store, err := newStore(ctx, appConfig)
	if err != nil {
		return err
	}
	defer store.Close()

	runner, err := newRunner(appConfig, store)
	if err != nil {
		return err
	}

	addr := serveAddr
	if addr == "" {
		addr = appConfig.ServerAddr
	}
	srv := server.New(runner, server.Config{
		Addr:           addr,
		AllowedOrigins: appConfig.AllowedOrigins,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logging.Info().Msg("shutting down")
		shutdownCtx, cancel := shutdownContext(10 * time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
