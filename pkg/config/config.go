// Package config assembles process configuration from the environment (and
// an optional .env file), then validates it.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/worldofchami/ucpchat/pkg/agents"
	"github.com/worldofchami/ucpchat/pkg/commerce"
)

type Config struct {
	Addr        string        `validate:"required"`
	DBPath      string        `validate:"required"`
	OpenAIKey   string        `validate:"-"`
	OpenAIModel string        `validate:"required"`
	ChatTimeout time.Duration `validate:"gt=0"`
	LogLevel    string        `validate:"oneof=debug info warn error"`
	LogFormat   string        `validate:"oneof=json console"`

	Commerce Commerce
	Twilio   Twilio
}

type Commerce struct {
	Enabled      bool
	ServerURL    string        `validate:"required_if=Enabled true,omitempty,url"`
	AuthToken    string        `validate:"-"`
	Timeout      time.Duration `validate:"gt=0"`
	SearchTool   string        `validate:"required"`
	CheckoutTool string        `validate:"required"`
	SearchLimit  int           `validate:"min=1,max=5"`
	LinkStyle    string        `validate:"oneof=markdown html"`
	ParamStyle   string        `validate:"oneof=item items"`
	RateProfile  string        `validate:"required"`
	ProfilesFile string
	Limits       commerce.Limits
}

type Twilio struct {
	AccountSID  string `validate:"-"`
	AuthToken   string `validate:"-"`
	PhoneNumber string
	AgentID     string `validate:"agent_id"`
}

// Configured reports whether every Twilio credential is present.
func (t Twilio) Configured() bool {
	return t.AccountSID != "" && t.AuthToken != "" && t.PhoneNumber != ""
}

// EngineConfig converts the commerce settings for the engine.
func (c Commerce) EngineConfig() commerce.Config {
	return commerce.Config{
		Enabled:      c.Enabled,
		SearchTool:   c.SearchTool,
		CheckoutTool: c.CheckoutTool,
		SearchLimit:  c.SearchLimit,
		Limits:       c.Limits,
		LinkStyle:    commerce.LinkStyle(c.LinkStyle),
		ParamStyle:   commerce.ParamStyle(c.ParamStyle),
	}
}

// ValidationError names the first invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromLookup(os.Getenv)
}

// FromLookup builds and validates a Config from getenv.
func FromLookup(getenv func(string) string) (*Config, error) {
	env := lookup(getenv)

	chatTimeout, err := env.getDuration("CHAT_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	mcpTimeout, err := env.getDuration("MCP_TIMEOUT", 12*time.Second)
	if err != nil {
		return nil, err
	}
	searchLimit, err := env.getInt("SEARCH_LIMIT", 5)
	if err != nil {
		return nil, err
	}
	enabled, err := env.getBool("COMMERCE_ENABLED", false)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Addr:        env.get("ADDR", ":8090"),
		DBPath:      env.get("DB_PATH", "./chat.db"),
		OpenAIKey:   env.get("OPENAI_API_KEY", ""),
		OpenAIModel: env.get("OPENAI_MODEL", "gpt-4o-mini"),
		ChatTimeout: chatTimeout,
		LogLevel:    strings.ToLower(env.get("LOG_LEVEL", "info")),
		LogFormat:   strings.ToLower(env.get("LOG_FORMAT", "json")),
		Commerce: Commerce{
			Enabled:      enabled,
			ServerURL:    env.get("MCP_SERVER_URL", ""),
			AuthToken:    env.get("MCP_AUTH_TOKEN", ""),
			Timeout:      mcpTimeout,
			SearchTool:   env.get("MCP_SEARCH_TOOL", "search_products"),
			CheckoutTool: env.get("MCP_CHECKOUT_TOOL", "create_checkout_session"),
			SearchLimit:  searchLimit,
			LinkStyle:    strings.ToLower(env.get("CHECKOUT_LINK_STYLE", string(commerce.LinkMarkdown))),
			ParamStyle:   strings.ToLower(env.get("CHECKOUT_PARAM_STYLE", string(commerce.ParamsItem))),
			RateProfile:  env.get("RATE_LIMIT_PROFILE", "lenient"),
			ProfilesFile: env.get("COMMERCE_PROFILES_FILE", ""),
		},
		Twilio: Twilio{
			AccountSID:  env.get("TWILIO_ACCOUNT_SID", ""),
			AuthToken:   env.get("TWILIO_AUTH_TOKEN", ""),
			PhoneNumber: env.get("TWILIO_PHONE_NUMBER", ""),
			AgentID:     env.get("SMS_AGENT_ID", agents.Commerce),
		},
	}

	profiles, err := Profiles(cfg.Commerce.ProfilesFile)
	if err != nil {
		return nil, err
	}
	limits, ok := profiles[cfg.Commerce.RateProfile]
	if !ok {
		return nil, ValidationError{Field: "RateProfile", Message: fmt.Sprintf("unknown rate limit profile %q", cfg.Commerce.RateProfile)}
	}
	cfg.Commerce.Limits = limits

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("agent_id", func(fl validator.FieldLevel) bool {
		return agents.Valid(fl.Field().String())
	})
	return v
}

// Validate checks cfg and reports the first invalid field.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		e := verrs[0]
		return ValidationError{
			Field:   e.Namespace(),
			Message: fmt.Sprintf("failed on '%s' with value '%v'", e.Tag(), e.Value()),
		}
	}
	return err
}

type lookup func(string) string

// get returns the trimmed value of key or def when unset.
func (l lookup) get(key, def string) string {
	if v := strings.TrimSpace(l(key)); v != "" {
		return v
	}
	return def
}

func (l lookup) getBool(key string, def bool) (bool, error) {
	v := l.get(key, "")
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, ValidationError{Field: key, Message: fmt.Sprintf("not a boolean: %q", v)}
	}
	return b, nil
}

func (l lookup) getInt(key string, def int) (int, error) {
	v := l.get(key, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, ValidationError{Field: key, Message: fmt.Sprintf("not an integer: %q", v)}
	}
	return n, nil
}

// getDuration accepts Go durations ("12s") or bare milliseconds ("12000").
func (l lookup) getDuration(key string, def time.Duration) (time.Duration, error) {
	v := l.get(key, "")
	if v == "" {
		return def, nil
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, ValidationError{Field: key, Message: fmt.Sprintf("not a duration: %q", v)}
	}
	return d, nil
}
