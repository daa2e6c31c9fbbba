package main

import (
	"github.com/bwmarrin/discordgo"

	"groovebox/internal/services/commands"
	"groovebox/pkg/logger"
)

const playInputOption = "url"

var slashCommands = []*discordgo.ApplicationCommand{
	{Name: commands.CommandHello, Description: "Test if bot is alive"},
	{
		Name:        commands.CommandPlay,
		Description: "Play a YouTube URL or search term",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        playInputOption,
				Description: "YouTube URL or search term",
				Required:    true,
			},
		},
	},
	{Name: commands.CommandStop, Description: "Stop playback and clear the queue"},
	{Name: commands.CommandSkip, Description: "Skip the current song"},
	{Name: commands.CommandQueue, Description: "Show the current queue"},
	{Name: commands.CommandClear, Description: "Clear the queue"},
	{Name: commands.CommandDisconnect, Description: "Leave and reset bot"},
	{Name: commands.CommandPause, Description: "Pause playback"},
	{Name: commands.CommandResume, Description: "Resume playback"},
}

// registerCommands replaces the application's slash commands, scoped to the
// configured guild when one is set.
func (app *Application) registerCommands(s *discordgo.Session, appID string) error {
	registered, err := s.ApplicationCommandBulkOverwrite(appID, app.config.Discord.GuildID, slashCommands)
	if err != nil {
		return err
	}
	app.registered = registered

	app.logger.Info("Slash commands registered", logger.Fields{
		"count":    len(registered),
		"guild_id": app.config.Discord.GuildID,
	})
	return nil
}

// removeCommands deletes the commands registered at startup
func (app *Application) removeCommands() {
	if app.discord == nil || app.discord.State == nil || app.discord.State.User == nil {
		return
	}
	appID := app.discord.State.User.ID

	for _, cmd := range app.registered {
		if err := app.discord.ApplicationCommandDelete(appID, app.config.Discord.GuildID, cmd.ID); err != nil {
			app.logger.Warn("Failed to delete slash command", logger.Fields{
				"command": cmd.Name,
				"error":   err.Error(),
			})
		}
	}
}
