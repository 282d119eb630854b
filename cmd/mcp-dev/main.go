package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/worldofchami/ucpchat/pkg/logging"
	"github.com/worldofchami/ucpchat/pkg/mcp/mcptest"
)

// Local MCP tool server with a fixed catalog, for running the chat server
// against the real transport.
//
//	go run ./cmd/mcp-dev --addr :8080 --sse
//	MCP_SERVER_URL=http://localhost:8080 go run ./cmd/server serve
func main() {
	_ = godotenv.Load()

	var addr, checkoutBase string
	var sse bool
	root := &cobra.Command{
		Use:          "mcp-dev",
		Short:        "Serve search_products and create_checkout_session from a static catalog",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := logging.New(os.Stderr, "info", "console")
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, addr, newToolServer(defaultCatalog, checkoutBase, sse, logger), logger)
		},
	}
	root.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	root.Flags().StringVar(&checkoutBase, "checkout-base", "https://checkout.stripe.com/c/pay", "base of generated checkout URLs")
	root.Flags().BoolVar(&sse, "sse", false, "frame responses as an event stream")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRouter(tools http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/mcp", tools)
	return r
}

func run(ctx context.Context, addr string, tools *mcptest.Server, logger zerolog.Logger) error {
	srv := &http.Server{Addr: addr, Handler: newRouter(tools), ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Str("endpoint", fmt.Sprintf("http://localhost%s/mcp", addr)).Msg("mcp_dev_started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
