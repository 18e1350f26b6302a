package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/titanous/json5"
)

const defaultSystemPrompt = `You are the first-line support assistant of a VPN service.
Answer calmly, confidently and to the point, in 1-3 sentences.
If the knowledge base has a solution, use it.
If not, give a short useful answer.
No apologies and no bureaucratic tone.`

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Telegram: TelegramConfig{
			SendRPS: 25,
		},
		Escalation: EscalationConfig{
			Backend:     "telegram",
			ChannelName: "TEST AI SUPPORT",
			MaxTextCols: 1000,
		},
		OpenAI: OpenAIConfig{
			Model:        "gpt-4o",
			MaxTokens:    300,
			SystemPrompt: defaultSystemPrompt,
		},
		Knowledge: KnowledgeConfig{
			Path:      "solutions.json",
			Threshold: 60,
			Watch:     true,
		},
		Router: RouterConfig{
			ReplyCap:        3,
			SessionTTL:      Duration(24 * time.Hour),
			GratitudeMarker: "glad",
			WelcomeText:     "Hello! I'm the support assistant. Please describe your question in one message 😊",
			HandoverText:    "Passing the conversation to an operator 👨‍💻 Please wait...",
			FallbackText:    "Sorry, I couldn't prepare an answer right now. Please rephrase or wait for an operator.",
		},
		Pacing: PacingConfig{
			Window:     Duration(60 * time.Second),
			MaxEntries: 10,
			MinDelay:   Duration(3200 * time.Millisecond),
			MaxDelay:   Duration(6700 * time.Millisecond),
		},
		Telemetry: TelemetryConfig{
			ServiceName: "supportdesk",
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars.
// A missing file is not an error: defaults plus env are used.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err == nil {
		if err := json5.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values.
func (c *Config) applyEnvOverrides() error {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envStr("SUPPORTDESK_TELEGRAM_TOKEN", &c.Telegram.Token)
	envStr("SUPPORTDESK_TELEGRAM_PROXY", &c.Telegram.Proxy)
	envStr("SUPPORTDESK_DISCORD_TOKEN", &c.Discord.Token)
	envStr("SUPPORTDESK_DISCORD_GUILD_ID", &c.Discord.GuildID)
	envStr("OPENAI_API_KEY", &c.OpenAI.APIKey) // conventional name, overridden below
	envStr("SUPPORTDESK_OPENAI_API_KEY", &c.OpenAI.APIKey)
	envStr("SUPPORTDESK_OPENAI_API_BASE", &c.OpenAI.APIBase)
	envStr("SUPPORTDESK_OPENAI_MODEL", &c.OpenAI.Model)
	envStr("SUPPORTDESK_OPERATOR_CHANNEL_ID", &c.Escalation.ChannelID)
	envStr("SUPPORTDESK_OPERATOR_CHANNEL_NAME", &c.Escalation.ChannelName)
	envStr("SUPPORTDESK_ESCALATION_BACKEND", &c.Escalation.Backend)
	envStr("SUPPORTDESK_KNOWLEDGE_PATH", &c.Knowledge.Path)
	envStr("SUPPORTDESK_OPS_LISTEN", &c.Ops.Listen)
	envStr("SUPPORTDESK_TELEMETRY_ENDPOINT", &c.Telemetry.Endpoint)

	if v := os.Getenv("SUPPORTDESK_TELEGRAM_ALLOW_FROM"); v != "" {
		c.Telegram.AllowFrom = strings.Split(v, ",")
	}
	if v := os.Getenv("SUPPORTDESK_REPLY_CAP"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SUPPORTDESK_REPLY_CAP: %w", err)
		}
		c.Router.ReplyCap = n
	}
	if v := os.Getenv("SUPPORTDESK_TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = v == "true" || v == "1"
	}
	return nil
}

// Validate checks the values the conversation core depends on.
func (c *Config) Validate() error {
	var errs []error
	if c.Router.ReplyCap < 1 {
		errs = append(errs, fmt.Errorf("router.reply_cap must be >= 1, got %d", c.Router.ReplyCap))
	}
	if c.Router.SessionTTL <= 0 {
		errs = append(errs, errors.New("router.session_ttl must be positive"))
	}
	if c.Router.GratitudeMarker == "" {
		errs = append(errs, errors.New("router.gratitude_marker must not be empty"))
	}
	if c.Knowledge.Threshold < 1 || c.Knowledge.Threshold > 100 {
		errs = append(errs, fmt.Errorf("knowledge.threshold must be within 1..100, got %d", c.Knowledge.Threshold))
	}
	if c.Pacing.MaxEntries < 1 {
		errs = append(errs, fmt.Errorf("pacing.max_entries must be >= 1, got %d", c.Pacing.MaxEntries))
	}
	if c.Pacing.Window <= 0 {
		errs = append(errs, errors.New("pacing.window must be positive"))
	}
	if c.Pacing.MinDelay < 0 || c.Pacing.MaxDelay < c.Pacing.MinDelay {
		errs = append(errs, fmt.Errorf("pacing delay bounds invalid: min=%s max=%s",
			c.Pacing.MinDelay.Std(), c.Pacing.MaxDelay.Std()))
	}
	switch c.Escalation.Backend {
	case "telegram", "discord":
	default:
		errs = append(errs, fmt.Errorf("escalation.backend must be telegram or discord, got %q", c.Escalation.Backend))
	}
	if c.Escalation.ChannelID == "" && c.Escalation.ChannelName == "" {
		errs = append(errs, errors.New("escalation needs channel_id or channel_name"))
	}
	return errors.Join(errs...)
}
