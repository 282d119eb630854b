package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worldofchami/ucpchat/pkg/commerce"
	"github.com/worldofchami/ucpchat/pkg/mcp/mcptest"
	"github.com/worldofchami/ucpchat/pkg/models"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommands(t *testing.T) {
	fake := mcptest.NewServer().
		Handle("search_products", func(_ context.Context, args map[string]any) (any, error) {
			return mcptest.TextResult([]map[string]any{{"title": "Classic Hoodie", "price": "49.00", "id": "v1"}}), nil
		}).
		Handle("echo", func(_ context.Context, args map[string]any) (any, error) {
			return args, nil
		})
	srv := fake.Start()
	defer srv.Close()

	out, err := run(t, "tools", "--server", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "echo\nsearch_products\n", out)

	out, err = run(t, "search", "--server", srv.URL, "the", "hoodies")
	require.NoError(t, err)
	assert.Contains(t, out, `Here's what I found for "hoodies"`)
	assert.Contains(t, out, "1. Classic Hoodie — $49.00")
	assert.Equal(t, "hoodies", fake.Calls()[0].Arguments["query"])

	out, err = run(t, "call", "echo", "--server", srv.URL, "--args", `{"x":1}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":1}`, out)

	out, err = run(t, "health", "--server", srv.URL)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true,"mcp":true}`, out)
}

func TestCallCheckoutUsesEngineArgKeys(t *testing.T) {
	fake := mcptest.NewServer().
		Handle("create_checkout_session", func(_ context.Context, args map[string]any) (any, error) {
			return args, nil
		})
	srv := fake.Start()
	defer srv.Close()

	_, err := run(t, "call", "create_checkout_session", "--server", srv.URL, "--args", `{"variantId":"v1","quantity":1}`)
	require.NoError(t, err)

	want := commerce.CheckoutArgs(commerce.ParamsItem, models.NormalizedSearchItem{VariantID: "v1"}, 1)
	got := fake.Calls()[0].Arguments
	for _, k := range []string{"variantId", "quantity"} {
		require.Contains(t, want, k)
		assert.Contains(t, got, k)
	}
	assert.Equal(t, want["variantId"], got["variantId"])
}

func TestCommandErrors(t *testing.T) {
	_, err := run(t, "tools", "--server", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CONFIG_ERROR")

	_, err = run(t, "call", "echo", "--server", "http://127.0.0.1:1", "--args", "[1]")
	assert.ErrorContains(t, err, "--args must be a JSON object")

	out, err := run(t, "health", "--server", "http://127.0.0.1:1")
	require.Error(t, err)
	assert.Contains(t, out, "NETWORK_ERROR")
}
