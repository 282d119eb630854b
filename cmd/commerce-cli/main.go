package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/worldofchami/ucpchat/pkg/commerce"
	"github.com/worldofchami/ucpchat/pkg/logging"
	"github.com/worldofchami/ucpchat/pkg/mcp"
	"github.com/worldofchami/ucpchat/pkg/utils"
)

// CLI for exercising the MCP tool server without the chat server.
//
// Examples:
//
//	go run ./cmd/commerce-cli tools
//	go run ./cmd/commerce-cli search "organic cotton hoodie"
//	go run ./cmd/commerce-cli call create_checkout_session --args '{"variantId":"v1","quantity":1}'
//	go run ./cmd/commerce-cli health
func main() {
	_ = godotenv.Load()

	if err := newRootCommand(os.Stdout).Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

type options struct {
	serverURL string
	token     string
	timeout   time.Duration
	verbose   bool
}

func (o *options) client() (*mcp.Client, error) {
	clientOpts := []mcp.Option{
		mcp.WithHTTPClient(utils.NewHTTPClientWithBearerToken(o.token)),
		mcp.WithTimeout(o.timeout),
		mcp.WithUserAgent("ucpchat-cli/0.1.0"),
	}
	if o.verbose {
		logger, err := logging.New(os.Stderr, "debug", "console")
		if err != nil {
			return nil, err
		}
		clientOpts = append(clientOpts, mcp.WithLogger(logger))
	}
	return mcp.NewClient(o.serverURL, clientOpts...), nil
}

func newRootCommand(out io.Writer) *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "commerce-cli",
		Short:         "Call MCP commerce tools directly",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&opts.serverURL, "server", os.Getenv("MCP_SERVER_URL"), "tool server base URL")
	flags.StringVar(&opts.token, "token", os.Getenv("MCP_AUTH_TOKEN"), "bearer token for the tool server")
	flags.DurationVar(&opts.timeout, "timeout", mcp.DefaultTimeout, "per-request timeout")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log transport events to stderr")

	root.AddCommand(
		newToolsCommand(opts, out),
		newSearchCommand(opts, out),
		newCallCommand(opts, out),
		newHealthCommand(opts, out),
	)
	return root
}

func newToolsCommand(opts *options, out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tools the server exposes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			res, err := client.ListTools(cmd.Context())
			if err != nil {
				return fmt.Errorf("%s", mcp.FormatError(err))
			}
			for _, t := range res.Tools {
				if t.Description != "" {
					_, _ = fmt.Fprintf(out, "%s\t%s\n", t.Name, t.Description)
					continue
				}
				_, _ = fmt.Fprintln(out, t.Name)
			}
			return nil
		},
	}
}

func newSearchCommand(opts *options, out io.Writer) *cobra.Command {
	var tool string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search products and print the normalized listing",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := commerce.NormalizeQuery(strings.Join(args, " "))
			if query == "" {
				return fmt.Errorf("query is required")
			}
			client, err := opts.client()
			if err != nil {
				return err
			}
			raw, err := client.CallTool(cmd.Context(), tool, map[string]any{
				"query": query,
				"limit": commerce.MaxSearchItems,
			})
			if err != nil {
				return fmt.Errorf("%s", mcp.FormatError(err))
			}
			items := commerce.NormalizeProducts(commerce.UnwrapToolResult(raw))
			if asJSON {
				return encode(out, items)
			}
			if len(items) == 0 {
				_, _ = fmt.Fprintf(out, commerce.MsgNoMatches+"\n", query)
				return nil
			}
			_, _ = fmt.Fprintln(out, commerce.ListItems(query, items))
			return nil
		},
	}
	cmd.Flags().StringVar(&tool, "tool", envOr("MCP_SEARCH_TOOL", "search_products"), "search tool name")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print normalized items as JSON")
	return cmd
}

func newCallCommand(opts *options, out io.Writer) *cobra.Command {
	var argsJSON string
	cmd := &cobra.Command{
		Use:   "call <tool>",
		Short: "Invoke a tool and print the raw result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			toolArgs := map[string]any{}
			if strings.TrimSpace(argsJSON) != "" {
				if err := json.Unmarshal([]byte(argsJSON), &toolArgs); err != nil {
					return fmt.Errorf("--args must be a JSON object: %w", err)
				}
			}
			client, err := opts.client()
			if err != nil {
				return err
			}
			raw, err := client.CallTool(cmd.Context(), args[0], toolArgs)
			if err != nil {
				return fmt.Errorf("%s", mcp.FormatError(err))
			}
			return encode(out, json.RawMessage(raw))
		},
	}
	cmd.Flags().StringVar(&argsJSON, "args", "", "tool arguments as a JSON object")
	return cmd
}

func newHealthCommand(opts *options, out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the tool server answers tools/list",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			status := map[string]any{"ok": true, "mcp": true}
			if _, err := client.ListTools(ctx); err != nil {
				status = map[string]any{"ok": false, "mcp": false, "error": mcp.FormatError(err)}
			}
			if err := encode(out, status); err != nil {
				return err
			}
			if status["ok"] != true {
				return fmt.Errorf("tool server unhealthy")
			}
			return nil
		},
	}
}

func encode(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
