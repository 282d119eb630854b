package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worldofchami/ucpchat/pkg/commerce"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefaults(t *testing.T) {
	cfg, err := FromLookup(envOf(nil))
	require.NoError(t, err)

	assert.Equal(t, ":8090", cfg.Addr)
	assert.Equal(t, "./chat.db", cfg.DBPath)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAIModel)
	assert.Equal(t, 30*time.Second, cfg.ChatTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)

	assert.False(t, cfg.Commerce.Enabled)
	assert.Equal(t, 12*time.Second, cfg.Commerce.Timeout)
	assert.Equal(t, "search_products", cfg.Commerce.SearchTool)
	assert.Equal(t, "create_checkout_session", cfg.Commerce.CheckoutTool)
	assert.Equal(t, 5, cfg.Commerce.SearchLimit)
	assert.Equal(t, commerce.Profiles["lenient"], cfg.Commerce.Limits)
	assert.Equal(t, "commerce", cfg.Twilio.AgentID)
	assert.False(t, cfg.Twilio.Configured())
}

func TestCommerceSettings(t *testing.T) {
	cfg, err := FromLookup(envOf(map[string]string{
		"COMMERCE_ENABLED":     "true",
		"MCP_SERVER_URL":       "https://tools.example/api/server",
		"MCP_TIMEOUT":          "1500",
		"RATE_LIMIT_PROFILE":   "strict",
		"CHECKOUT_LINK_STYLE":  "HTML",
		"CHECKOUT_PARAM_STYLE": "items",
		"CHAT_TIMEOUT":         "45s",
	}))
	require.NoError(t, err)

	assert.Equal(t, 1500*time.Millisecond, cfg.Commerce.Timeout)
	assert.Equal(t, 45*time.Second, cfg.ChatTimeout)

	ec := cfg.Commerce.EngineConfig()
	assert.True(t, ec.Enabled)
	assert.Equal(t, commerce.LinkHTML, ec.LinkStyle)
	assert.Equal(t, commerce.ParamsItems, ec.ParamStyle)
	assert.Equal(t, commerce.Profiles["strict"], ec.Limits)
}

func TestValidationFailures(t *testing.T) {
	tests := map[string]map[string]string{
		"enabled without url": {"COMMERCE_ENABLED": "true"},
		"bad url":             {"COMMERCE_ENABLED": "1", "MCP_SERVER_URL": "not a url"},
		"bad link style":      {"CHECKOUT_LINK_STYLE": "bbcode"},
		"bad param style":     {"CHECKOUT_PARAM_STYLE": "cart"},
		"search limit":        {"SEARCH_LIMIT": "9"},
		"bad bool":            {"COMMERCE_ENABLED": "maybe"},
		"bad duration":        {"CHAT_TIMEOUT": "soon"},
		"zero timeout":        {"MCP_TIMEOUT": "0"},
		"unknown profile":     {"RATE_LIMIT_PROFILE": "ultra"},
		"unknown sms agent":   {"SMS_AGENT_ID": "marketing"},
		"bad log level":       {"LOG_LEVEL": "trace"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := FromLookup(envOf(env))
			require.Error(t, err)
			var verr ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestProfilesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
profiles:
  demo:
    per_minute: 2
    per_day: 10
    per_conversation: 4
    count_tool_traces: true
  lenient:
    per_minute: 30
    per_day: 300
    per_conversation: 60
`), 0o600))

	cfg, err := FromLookup(envOf(map[string]string{
		"COMMERCE_PROFILES_FILE": path,
		"RATE_LIMIT_PROFILE":     "demo",
	}))
	require.NoError(t, err)
	assert.Equal(t, commerce.Limits{PerMinute: 2, PerDay: 10, PerConversation: 4, CountToolTraces: true}, cfg.Commerce.Limits)

	profiles, err := Profiles(path)
	require.NoError(t, err)
	assert.Equal(t, 30, profiles["lenient"].PerMinute)
	assert.Equal(t, commerce.Profiles["strict"], profiles["strict"])
	assert.Equal(t, 15, commerce.Profiles["lenient"].PerMinute, "built-ins are not mutated")
}

func TestProfilesFileErrors(t *testing.T) {
	_, err := Profiles(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("profiles:\n  broken:\n    per_minute: -1\n"), 0o600))
	_, err = Profiles(path)
	var verr ValidationError
	assert.ErrorAs(t, err, &verr)
}
