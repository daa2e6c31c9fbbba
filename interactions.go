package main

import (
	"github.com/bwmarrin/discordgo"

	"groovebox/internal/services/commands"
	"groovebox/pkg/logger"
)

// handleInteraction turns a slash command into a dispatcher request and
// answers it.
func (app *Application) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	app.metrics.RecordDiscordEvent("interaction")

	req := buildRequest(i, func(guildID, userID string) *commands.VoiceState {
		return lookupVoiceState(s, guildID, userID)
	})

	// Resolution can outlast the interaction deadline, so play is deferred
	// once its preconditions hold.
	if req.Command == commands.CommandPlay && commands.Precheck(req) == nil {
		app.handleDeferred(s, i, req)
		return
	}

	reply := app.dispatcher.Handle(app.ctx, req)
	if err := respond(s, i, reply); err != nil {
		app.logger.Error("Failed to respond to interaction", err, logger.Fields{
			"command":  req.Command,
			"guild_id": req.GuildID,
		})
	}
}

func (app *Application) handleDeferred(s *discordgo.Session, i *discordgo.InteractionCreate, req commands.Request) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
	if err != nil {
		app.logger.Error("Failed to defer interaction", err, logger.Fields{"guild_id": req.GuildID})
		return
	}

	reply := app.dispatcher.Handle(app.ctx, req)

	if reply.Ephemeral {
		// A deferred public response cannot turn ephemeral; replace it
		_ = s.InteractionResponseDelete(i.Interaction)
		_, err = s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
			Content: reply.Content,
			Flags:   discordgo.MessageFlagsEphemeral,
		})
	} else {
		content := reply.Content
		_, err = s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &content})
	}
	if err != nil {
		app.logger.Error("Failed to edit deferred response", err, logger.Fields{"guild_id": req.GuildID})
	}
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, reply commands.Reply) error {
	data := &discordgo.InteractionResponseData{Content: reply.Content}
	if reply.Ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
}

// buildRequest extracts a dispatcher request from an application command.
// voice looks up the invoking user's voice state and may be nil-returning.
func buildRequest(i *discordgo.InteractionCreate, voice func(guildID, userID string) *commands.VoiceState) commands.Request {
	data := i.ApplicationCommandData()

	req := commands.Request{
		Command:       data.Name,
		GuildID:       i.GuildID,
		TextChannelID: i.ChannelID,
	}

	switch {
	case i.Member != nil && i.Member.User != nil:
		req.UserID = i.Member.User.ID
	case i.User != nil:
		req.UserID = i.User.ID
	}

	for _, opt := range data.Options {
		if opt.Name == playInputOption && opt.Type == discordgo.ApplicationCommandOptionString {
			req.Input = opt.StringValue()
		}
	}

	if req.GuildID != "" && req.UserID != "" {
		req.Voice = voice(req.GuildID, req.UserID)
	}
	return req
}

// lookupVoiceState reports the user's voice channel from the state cache
// and whether the bot may connect and speak there.
func lookupVoiceState(s *discordgo.Session, guildID, userID string) *commands.VoiceState {
	vs, err := s.State.VoiceState(guildID, userID)
	if err != nil || vs.ChannelID == "" {
		return nil
	}

	state := &commands.VoiceState{ChannelID: vs.ChannelID}

	perms, err := s.State.UserChannelPermissions(s.State.User.ID, vs.ChannelID)
	if err != nil {
		// Fall back to the API when the bot's member is not cached
		perms, err = s.UserChannelPermissions(s.State.User.ID, vs.ChannelID)
		if err != nil {
			return state
		}
	}
	state.CanConnect = perms&discordgo.PermissionVoiceConnect != 0
	state.CanSpeak = perms&discordgo.PermissionVoiceSpeak != 0
	return state
}
