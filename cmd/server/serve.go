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

	"github.com/nlpodyssey/openai-agents-go/tracing"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/worldofchami/ucpchat/pkg/agents"
	"github.com/worldofchami/ucpchat/pkg/api"
	"github.com/worldofchami/ucpchat/pkg/chat"
	"github.com/worldofchami/ucpchat/pkg/commerce"
	"github.com/worldofchami/ucpchat/pkg/config"
	"github.com/worldofchami/ucpchat/pkg/llm"
	"github.com/worldofchami/ucpchat/pkg/logging"
	"github.com/worldofchami/ucpchat/pkg/mcp"
	"github.com/worldofchami/ucpchat/pkg/sms"
	"github.com/worldofchami/ucpchat/pkg/store"
	"github.com/worldofchami/ucpchat/pkg/utils"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				cfg.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
	cmd.Flags().String("addr", "", "listen address (overrides ADDR)")
	return cmd
}

// setup loads configuration and applies the persistent --db flag.
func setup(cmd *cobra.Command) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.DBPath = db
	}
	logger, err := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, logger, nil
}

func serve(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	// Agent run traces are not exported anywhere.
	tracing.SetTracingDisabled(true)

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	tools := mcp.NewClient(cfg.Commerce.ServerURL,
		mcp.WithHTTPClient(utils.NewHTTPClientWithBearerToken(cfg.Commerce.AuthToken)),
		mcp.WithTimeout(cfg.Commerce.Timeout),
		mcp.WithLogger(logger.With().Str("component", "mcp").Logger()),
	)

	completer := llm.NewAgentCompleter(cfg.OpenAIKey, cfg.OpenAIModel,
		llm.WithTimeout(cfg.ChatTimeout),
		llm.WithLogger(logger.With().Str("component", "llm").Logger()),
	)

	engine := commerce.NewEngine(cfg.Commerce.EngineConfig(), tools, st,
		commerce.WithCompleter(completer),
		commerce.WithLogger(logger.With().Str("component", "commerce").Logger()),
	)

	chatOpts := []chat.Option{
		chat.WithCommerce(engine),
		chat.WithLogger(logger.With().Str("component", "chat").Logger()),
	}
	if cfg.Commerce.Enabled {
		sales := agents.Get(agents.Sales)
		chatOpts = append(chatOpts, chat.WithCatalogCompleter(
			completer.WithTools(sales.Name, commerce.CatalogTool(tools, cfg.Commerce.SearchTool)),
		))
	}
	svc := chat.New(st, completer, chatOpts...)

	apiOpts := []api.Option{
		api.WithLogger(logger),
		api.WithCommerce(cfg.Commerce.Enabled, tools),
	}
	if cfg.OpenAIKey == "" {
		apiOpts = append(apiOpts, api.WithConfigError(errors.New("OPENAI_API_KEY is not set")))
		logger.Warn().Msg("openai_key_missing")
	}
	if cfg.Twilio.Configured() {
		sender := sms.NewTwilioClient(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.PhoneNumber,
			logger.With().Str("component", "sms").Logger())
		apiOpts = append(apiOpts, api.WithSMS(sender, cfg.Twilio.AgentID))
	} else {
		logger.Info().Msg("twilio_not_configured")
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.New(st, svc, apiOpts...).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", cfg.Addr).
			Bool("commerce_enabled", cfg.Commerce.Enabled).
			Str("rate_profile", cfg.Commerce.RateProfile).
			Msg("server_started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("chat server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("server_stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
