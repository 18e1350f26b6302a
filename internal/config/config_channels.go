package config

type TelegramConfig struct {
	Token     string              `json:"token"`
	Proxy     string              `json:"proxy,omitempty"`
	AllowFrom FlexibleStringSlice `json:"allow_from,omitempty"` // empty = everyone
	SendRPS   float64             `json:"send_rps,omitempty"`   // Bot API ceiling (default 25/s)
}

// DiscordConfig is only used as an operator-alert backend.
type DiscordConfig struct {
	Token   string `json:"token"`
	GuildID string `json:"guild_id,omitempty"` // required for the name fallback
}
