package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"groovebox/internal/services/audio"
	"groovebox/pkg/logger"
)

var errVoiceNotReady = errors.New("voice connection not ready")

// openVoiceSink joins target's voice channel and wraps the connection in a
// VoiceSink. It is the audio manager's sink factory.
func (app *Application) openVoiceSink(ctx context.Context, target audio.VoiceTarget) (audio.Sink, error) {
	log := app.logger.WithGuild(target.GuildID)

	maxRetries := app.config.Discord.ReconnectAttempts
	if maxRetries < 1 {
		maxRetries = 1
	}
	retryDelay := app.config.Discord.ReconnectDelay

	var (
		vc  *discordgo.VoiceConnection
		err error
	)
	for i := 0; i < maxRetries; i++ {
		vc, err = app.discord.ChannelVoiceJoin(target.GuildID, target.ChannelID, false, true)
		if err == nil {
			err = waitVoiceReady(ctx, vc)
		}
		if err == nil {
			log.Info("Joined voice channel", logger.Fields{"channel_id": target.ChannelID})
			source := &audio.YtdlpSource{
				Cookies: app.config.Resolver.Cookies,
				Proxy:   app.config.Resolver.Proxy,
			}
			return audio.NewVoiceSink(vc, source, app.audioConfig().EncodeOptions(), app.logger), nil
		}

		log.Warn("Failed to join voice channel", logger.Fields{
			"attempt":     i + 1,
			"max_retries": maxRetries,
			"error":       err.Error(),
		})
		if vc != nil {
			_ = vc.Disconnect()
		}
		if i == maxRetries-1 {
			break
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("failed to join voice channel: %w", ctx.Err())
		case <-time.After(retryDelay):
		}
	}

	return nil, fmt.Errorf("failed to join voice channel after %d attempts: %w", maxRetries, err)
}

// waitVoiceReady polls vc until it reports ready or ctx ends.
func waitVoiceReady(ctx context.Context, vc *discordgo.VoiceConnection) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		vc.RLock()
		ready := vc.Ready
		vc.RUnlock()
		if ready {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", errVoiceNotReady, ctx.Err())
		case <-ticker.C:
		}
	}
}

// handleVoiceStateUpdate destroys a guild's session when the bot is removed
// from its voice channel by someone else.
func (app *Application) handleVoiceStateUpdate(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	app.metrics.RecordDiscordEvent("voice_state_update")

	if s.State == nil || s.State.User == nil || v.UserID != s.State.User.ID || v.ChannelID != "" {
		return
	}

	// A live connection means the bot was moved or has already rejoined
	s.RLock()
	vc, ok := s.VoiceConnections[v.GuildID]
	s.RUnlock()
	if ok {
		vc.RLock()
		channelID := vc.ChannelID
		vc.RUnlock()
		if channelID != "" {
			return
		}
	}

	if app.audioManager.Destroy(v.GuildID) {
		app.logger.WithGuild(v.GuildID).Info("Session destroyed after voice disconnect")
	}
}

// channelNotifier posts session announcements to text channels.
type channelNotifier struct {
	session *discordgo.Session
	log     *logger.Logger
}

func newChannelNotifier(session *discordgo.Session, log *logger.Logger) *channelNotifier {
	return &channelNotifier{session: session, log: log.WithComponent("notifier")}
}

// Notify sends message asynchronously; failures are logged and dropped.
func (n *channelNotifier) Notify(channelID, message string) {
	if channelID == "" {
		return
	}
	go func() {
		if _, err := n.session.ChannelMessageSend(channelID, message); err != nil {
			n.log.Warn("Failed to send announcement", logger.Fields{
				"channel_id": channelID,
				"error":      err.Error(),
			})
		}
	}()
}
