package escalation

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// DiscordDirectory posts operator alerts to a Discord text channel over the
// REST API. No gateway connection is opened.
type DiscordDirectory struct {
	session *discordgo.Session
	guildID string
}

// NewDiscordDirectory creates a directory for a bot token. guildID scopes
// the display-name fallback; without it only ID lookup works.
func NewDiscordDirectory(token, guildID string) (*DiscordDirectory, error) {
	if token == "" {
		return nil, fmt.Errorf("discord token not set")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	return &DiscordDirectory{session: session, guildID: guildID}, nil
}

func (d *DiscordDirectory) Lookup(ctx context.Context, id string) (string, error) {
	ch, err := d.session.Channel(id, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("get discord channel %s: %w", id, err)
	}
	return ch.ID, nil
}

func (d *DiscordDirectory) FindByName(ctx context.Context, name string) (string, bool) {
	if d.guildID == "" {
		return "", false
	}
	chans, err := d.session.GuildChannels(d.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return "", false
	}
	for _, ch := range chans {
		if ch.Type == discordgo.ChannelTypeGuildText && strings.EqualFold(ch.Name, name) {
			return ch.ID, true
		}
	}
	return "", false
}

func (d *DiscordDirectory) SendAlert(ctx context.Context, target, text string) error {
	_, err := d.session.ChannelMessageSend(target, text, discordgo.WithContext(ctx))
	return err
}
