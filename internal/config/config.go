package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/titanous/json5"
)

// FlexibleStringSlice accepts both ["str"] and [123] in JSON.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

// Duration is a time.Duration written as a Go duration string ("24h", "3.2s").
// Bare numbers are read as seconds.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json5.Unmarshal(data, &s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var secs float64
	if err := json5.Unmarshal(data, &secs); err != nil {
		return fmt.Errorf("duration must be a string or number of seconds: %s", data)
	}
	*d = Duration(secs * float64(time.Second))
	return nil
}

// Config is the root configuration for the support bot.
type Config struct {
	Telegram   TelegramConfig   `json:"telegram"`
	Discord    DiscordConfig    `json:"discord,omitempty"`
	Escalation EscalationConfig `json:"escalation"`
	OpenAI     OpenAIConfig     `json:"openai"`
	Knowledge  KnowledgeConfig  `json:"knowledge"`
	Router     RouterConfig     `json:"router"`
	Pacing     PacingConfig     `json:"pacing"`
	Ops        OpsConfig        `json:"ops,omitempty"`
	Telemetry  TelemetryConfig  `json:"telemetry,omitempty"`
}

// EscalationConfig selects where operator alerts go and how the operator
// channel is located: by ID first, then by display name.
type EscalationConfig struct {
	Backend     string `json:"backend"`                // "telegram" (default) or "discord"
	ChannelID   string `json:"channel_id"`             // operator chat/channel ID
	ChannelName string `json:"channel_name,omitempty"` // fallback display name
	MaxTextCols int    `json:"max_text_cols,omitempty"`
}

// OpenAIConfig configures the completion fallback.
type OpenAIConfig struct {
	APIKey       string   `json:"-"` // from env SUPPORTDESK_OPENAI_API_KEY only
	APIBase      string   `json:"api_base,omitempty"`
	Model        string   `json:"model"`
	MaxTokens    int      `json:"max_tokens"`
	SystemPrompt string   `json:"system_prompt"`
	Timeout      Duration `json:"timeout,omitempty"` // 0 = no timeout
}

// KnowledgeConfig points at the canned-answer file.
type KnowledgeConfig struct {
	Path      string `json:"path"`
	Threshold int    `json:"threshold"` // 0..100, a score equal to it matches
	Watch     bool   `json:"watch"`     // reload on file change
}

// RouterConfig holds the conversation policy and reply texts.
type RouterConfig struct {
	ReplyCap        int      `json:"reply_cap"`
	SessionTTL      Duration `json:"session_ttl"`
	GratitudeMarker string   `json:"gratitude_marker"`
	WelcomeText     string   `json:"welcome_text"`
	HandoverText    string   `json:"handover_text"`
	FallbackText    string   `json:"fallback_text"`
}

// PacingConfig configures the global outbound pacer.
type PacingConfig struct {
	Window     Duration `json:"window"`
	MaxEntries int      `json:"max_entries"`
	MinDelay   Duration `json:"min_delay"`
	MaxDelay   Duration `json:"max_delay"`
}

// OpsConfig configures the health/metrics/session-inspection listener.
type OpsConfig struct {
	Listen string `json:"listen,omitempty"` // e.g. "127.0.0.1:9464"; empty = disabled
}

// TelemetryConfig configures OpenTelemetry OTLP export.
type TelemetryConfig struct {
	Enabled     bool   `json:"enabled"`
	Endpoint    string `json:"endpoint,omitempty"` // host:port, e.g. "localhost:4318"
	Insecure    bool   `json:"insecure,omitempty"`
	ServiceName string `json:"service_name,omitempty"`
}
