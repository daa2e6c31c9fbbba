package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"

	"groovebox/config"
	"groovebox/internal/services/audio"
	"groovebox/internal/services/commands"
	"groovebox/internal/services/resolver"
	"groovebox/pkg/dependency"
	"groovebox/pkg/logger"
	"groovebox/pkg/metrics"
)

// Application represents the main application
type Application struct {
	config       *config.Config
	logger       *logger.Logger
	metrics      *metrics.Metrics
	discord      *discordgo.Session
	audioManager *audio.Manager
	dispatcher   *commands.Dispatcher
	registered   []*discordgo.ApplicationCommand
	ctx          context.Context
	cancel       context.CancelFunc
}

// Version information (should be set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.NewLogger(logger.LoggerConfig{
		Level:            cfg.Logging.Level,
		OutputFile:       cfg.Logging.OutputFile,
		MaxFileSizeMB:    cfg.Logging.MaxFileSize,
		MaxBackups:       cfg.Logging.MaxBackups,
		MaxAge:           cfg.Logging.MaxAge,
		EnableConsole:    cfg.Logging.EnableConsole,
		EnableFile:       cfg.Logging.EnableFile,
		EnableJSON:       cfg.Logging.EnableJSON,
		EnableStackTrace: cfg.Logging.EnableStackTrace,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	logger.SetDefault(appLogger)

	appLogger.LogStartup(Version, BuildTime, GitCommit)
	appLogger.LogConfiguration(map[string]interface{}{
		"bot_token":     cfg.GetRedactedToken(),
		"youtube_token": cfg.GetRedactedAPIKey(),
		"guild_id":      cfg.Discord.GuildID,
		"log_level":     appLogger.GetLevel(),
		"session":       cfg.Session,
		"commands":      cfg.Commands,
		"features":      cfg.Features,
	})

	if err := checkDependencies(ctx, appLogger); err != nil {
		appLogger.Fatal("Dependency check failed", err)
	}

	var metricsInstance *metrics.Metrics
	if cfg.Features.EnableMetrics {
		metricsInstance = metrics.NewMetrics()
		appLogger.Info("Metrics collection enabled")
	}

	app := &Application{
		config:  cfg,
		logger:  appLogger,
		metrics: metricsInstance,
		ctx:     ctx,
		cancel:  cancel,
	}

	if err := app.initialize(); err != nil {
		appLogger.Fatal("Failed to initialize application", err)
	}

	if err := app.start(); err != nil {
		appLogger.Fatal("Failed to start application", err)
	}

	app.waitForShutdown()

	app.shutdown()
	appLogger.LogShutdown("Signal received", true)
	_ = appLogger.Close()
}

// initialize initializes the application components
func (app *Application) initialize() error {
	session, err := discordgo.New("Bot " + app.config.Discord.Token)
	if err != nil {
		return fmt.Errorf("failed to create Discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates
	app.discord = session

	// The Data API resolver comes first; yt-dlp covers everything it cannot
	youtubeResolver, err := resolver.NewYouTube(app.ctx, app.config.Resolver.APIKey)
	if err != nil {
		return fmt.Errorf("failed to create YouTube resolver: %w", err)
	}
	chain := resolver.NewChain(app.logger,
		youtubeResolver,
		resolver.NewYtdlp(app.config.Resolver.Cookies, app.config.Resolver.Proxy),
	)

	options := []audio.Option{
		audio.WithLogger(app.logger),
		audio.WithMetrics(app.metrics),
	}
	if app.config.Features.AnnounceTracks {
		options = append(options, audio.WithNotifier(newChannelNotifier(session, app.logger)))
	}
	app.audioManager = audio.NewManager(app.audioConfig(), app.openVoiceSink, options...)

	app.dispatcher = commands.NewDispatcher(app.audioManager, chain, commands.Config{
		ResolveTimeout:     app.config.Resolver.ResolveTimeout,
		EnableRateLimiting: app.config.Commands.EnableRateLimiting,
		UserRateLimitDelay: app.config.Commands.UserRateLimitDelay,
		MaxMessageLength:   app.config.Discord.MaxMessageLength,
	}, app.logger, app.metrics)

	app.setupDiscordHandlers()

	app.logger.Info("Application initialized successfully")
	return nil
}

func (app *Application) audioConfig() audio.Config {
	return audio.Config{
		Bitrate:          app.config.Audio.Bitrate,
		Volume:           app.config.Audio.Volume,
		FrameRate:        app.config.Audio.FrameRate,
		FrameDuration:    app.config.Audio.FrameDuration,
		CompressionLevel: app.config.Audio.CompressionLevel,
		PacketLoss:       app.config.Audio.PacketLoss,
		BufferedFrames:   app.config.Audio.BufferedFrames,
		EnableVBR:        app.config.Audio.EnableVBR,
		ConnectTimeout:   app.config.Audio.ConnectTimeout,
		IdleTimeout:      app.config.Session.IdleTimeout,
		MaxQueueSize:     app.config.Session.MaxQueueSize,
	}
}

// start starts the application
func (app *Application) start() error {
	if err := app.discord.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}

	if app.metrics != nil {
		collector := metrics.NewMonitoringCollector(app.metrics, app.config.Features.MetricsInterval)
		go collector.Start(app.ctx)
	}

	go app.logMemoryUsage()

	app.logger.Info("Application started successfully")
	return nil
}

// setupDiscordHandlers sets up Discord event handlers
func (app *Application) setupDiscordHandlers() {
	app.discord.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		app.logger.Info("Discord bot ready", logger.Fields{
			"username":    r.User.Username,
			"bot_id":      r.User.ID,
			"guild_count": len(r.Guilds),
		})

		err := s.UpdateStatusComplex(discordgo.UpdateStatusData{
			Activities: []*discordgo.Activity{
				{
					Name: "music 🎵 | /play",
					Type: discordgo.ActivityTypeListening,
				},
			},
			Status: "online",
		})
		if err != nil {
			app.logger.Warn("Failed to set bot status", logger.Fields{"error": err.Error()})
		}

		if err := app.registerCommands(s, r.User.ID); err != nil {
			app.logger.Error("Failed to register slash commands", err)
		}

		app.metrics.RecordDiscordEvent("ready")
	})

	app.discord.AddHandler(app.handleInteraction)

	app.discord.AddHandler(app.handleVoiceStateUpdate)

	app.discord.AddHandler(func(s *discordgo.Session, e *discordgo.Disconnect) {
		app.logger.Warn("Discord disconnected", logger.Fields{"event": "disconnect"})
		app.metrics.RecordDiscordEvent("disconnect")
	})
}

// logMemoryUsage periodically logs memory statistics
func (app *Application) logMemoryUsage() {
	memoryTicker := time.NewTicker(5 * time.Minute)
	defer memoryTicker.Stop()

	for {
		select {
		case <-app.ctx.Done():
			return
		case <-memoryTicker.C:
			app.logger.LogMemoryUsage()
			app.logger.Debug("Active sessions", logger.Fields{
				"count": app.audioManager.GetActiveSessions(),
			})
			if app.metrics.IsEnabled() {
				app.logger.Info("Metrics snapshot", logger.Fields(app.metrics.Snapshot()))
			}
		}
	}
}

// waitForShutdown waits for shutdown signal
func (app *Application) waitForShutdown() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	app.logger.Info("Shutdown signal received")
}

// shutdown gracefully shuts down the application
func (app *Application) shutdown() {
	app.logger.Info("Starting graceful shutdown")

	app.cancel()

	if app.audioManager != nil {
		app.audioManager.Shutdown()
	}

	if app.config.Discord.CleanupCommands {
		app.removeCommands()
	}

	if app.discord != nil {
		if err := app.discord.Close(); err != nil {
			app.logger.Error("Failed to close Discord session", err)
		}
	}

	app.logger.Info("Graceful shutdown completed")
}

// checkDependencies checks system dependencies
func checkDependencies(ctx context.Context, appLogger *logger.Logger) error {
	appLogger.Info("Checking system dependencies")

	report := dependency.ValidateEnvironment(ctx, nil, nil)

	appLogger.Info("Dependency check completed", logger.Fields{
		"severity":           report.Severity,
		"required_missing":   len(report.RequiredMissing),
		"optional_missing":   len(report.OptionalMissing),
		"recommended_action": report.RecommendedAction,
	})

	if !report.IsHealthy() {
		fmt.Println(report.GenerateReport())
	}

	return report.Err()
}
