package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"groovebox/internal/services/audio"
	"groovebox/internal/services/resolver"
	"groovebox/pkg/logger"
	"groovebox/pkg/metrics"
)

const (
	CommandHello      = "hello"
	CommandPlay       = "play"
	CommandSkip       = "skip"
	CommandQueue      = "queue"
	CommandClear      = "clear"
	CommandDisconnect = "disconnect"
	CommandStop       = "stop"
	CommandPause      = "pause"
	CommandResume     = "resume"
)

// DefaultMaxMessageLength is Discord's message content limit
const DefaultMaxMessageLength = 2000

// VoiceState is the invoking user's voice channel and the bot's rights on it.
type VoiceState struct {
	ChannelID  string
	CanConnect bool
	CanSpeak   bool
}

// Request is one inbound command, stripped of transport details.
type Request struct {
	Command       string
	Input         string
	GuildID       string
	UserID        string
	TextChannelID string
	// Voice is nil when the user is not in a voice channel.
	Voice *VoiceState
}

// Reply is the single textual answer to a Request.
type Reply struct {
	Content   string
	Ephemeral bool
}

// Sessions is the session registry the dispatcher drives.
type Sessions interface {
	GetOrCreate(ctx context.Context, target audio.VoiceTarget) (*audio.Session, error)
	Get(guildID string) (*audio.Session, bool)
	Destroy(guildID string) bool
}

// Config holds dispatcher settings
type Config struct {
	ResolveTimeout     time.Duration
	EnableRateLimiting bool
	UserRateLimitDelay time.Duration
	MaxMessageLength   int
}

// Dispatcher maps commands to session operations and a reply.
type Dispatcher struct {
	sessions Sessions
	resolver resolver.Resolver
	config   Config
	limiter  *userLimiter
	log      *logger.Logger
	metrics  *metrics.Metrics
}

// NewDispatcher creates a new command dispatcher
func NewDispatcher(sessions Sessions, res resolver.Resolver, config Config, log *logger.Logger, m *metrics.Metrics) *Dispatcher {
	if log == nil {
		log = logger.GetDefault()
	}
	if config.MaxMessageLength <= 0 {
		config.MaxMessageLength = DefaultMaxMessageLength
	}

	d := &Dispatcher{
		sessions: sessions,
		resolver: res,
		config:   config,
		log:      log.WithComponent("commands"),
		metrics:  m,
	}
	if config.EnableRateLimiting && config.UserRateLimitDelay > 0 {
		d.limiter = newUserLimiter(config.UserRateLimitDelay)
	}
	return d
}

// Handle runs req and returns its reply. It never fails: every error
// becomes a user-facing reply.
func (d *Dispatcher) Handle(ctx context.Context, req Request) Reply {
	start := time.Now()

	reply, err := d.dispatch(ctx, req)
	fields := logger.Fields{"text_channel_id": req.TextChannelID}
	if err != nil {
		botErr := asBotError(err)
		reply = Reply{Content: botErr.UserMessage, Ephemeral: botErr.Ephemeral}
		fields["error_type"] = string(botErr.Type)
		fields["error"] = botErr.Error()

		if !botErr.Benign() {
			d.metrics.RecordError(strings.ToLower(string(botErr.Type)))
		}
		switch botErr.Type {
		case ErrorTypeInternal, ErrorTypeVoice, ErrorTypeRender:
			d.log.WithGuild(req.GuildID).Error("Command failed", botErr, logger.Fields{"command": req.Command})
		}
	}

	duration := time.Since(start)
	d.log.LogCommandEvent(req.Command, req.UserID, req.GuildID, err == nil, duration, fields)
	d.metrics.RecordCommandExecution(req.Command, err == nil, duration)
	return reply
}

func (d *Dispatcher) dispatch(ctx context.Context, req Request) (Reply, error) {
	if err := Precheck(req); err != nil {
		return Reply{}, err
	}

	switch req.Command {
	case CommandHello:
		return Reply{Content: "Hello, ready to rock! 🎸"}, nil
	case CommandPlay:
		return d.play(ctx, req)
	case CommandSkip:
		return d.skip(req)
	case CommandQueue:
		return d.queue(req)
	case CommandClear:
		return d.clear(req)
	case CommandDisconnect:
		return d.disconnect(req)
	case CommandStop:
		return d.stop(req)
	case CommandPause:
		return d.pause(req)
	case CommandResume:
		return d.resume(req)
	default:
		return Reply{Content: "❓ Unknown command.", Ephemeral: true}, nil
	}
}

// Precheck validates where a command came from. hello runs anywhere, queue
// only needs a guild, everything else needs a voice channel the bot may
// join and speak in.
func Precheck(req Request) error {
	if req.Command == CommandHello {
		return nil
	}
	if req.GuildID == "" {
		return NewPreconditionError("command outside a guild", "❌ Commands only work inside servers!")
	}
	if req.Command == CommandQueue {
		return nil
	}
	if req.Voice == nil || req.Voice.ChannelID == "" {
		return NewPreconditionError("user not in a voice channel", "❌ You must be in a voice channel!")
	}
	if !req.Voice.CanConnect || !req.Voice.CanSpeak {
		return NewPreconditionError("missing connect/speak permission", "❌ I need permissions to join and speak in your voice channel!")
	}
	return nil
}

func (d *Dispatcher) play(ctx context.Context, req Request) (Reply, error) {
	input := strings.TrimSpace(req.Input)
	if input == "" {
		return Reply{}, NewResolutionError(resolver.ErrEmptyInput)
	}

	if d.limiter != nil && !d.limiter.Allow(req.UserID) {
		e := NewBotError(ErrorTypeRateLimit, "play rate limited",
			fmt.Sprintf("⏳ Slow down! You can queue another track in %s.", d.config.UserRateLimitDelay), nil)
		e.Ephemeral = true
		return Reply{}, e
	}

	resolveCtx := ctx
	if d.config.ResolveTimeout > 0 {
		var cancel context.CancelFunc
		resolveCtx, cancel = context.WithTimeout(ctx, d.config.ResolveTimeout)
		defer cancel()
	}
	result, err := d.resolver.Resolve(resolveCtx, input)
	if err != nil {
		return Reply{}, NewResolutionError(err)
	}

	track := audio.Track{
		Title:       result.Title,
		SourceRef:   result.URL,
		RequestedBy: req.UserID,
		ChannelID:   req.TextChannelID,
	}
	target := audio.VoiceTarget{GuildID: req.GuildID, ChannelID: req.Voice.ChannelID}

	// A session may be torn down between lookup and enqueue; retry once with a fresh one.
	for attempt := 0; ; attempt++ {
		session, err := d.sessions.GetOrCreate(ctx, target)
		if err != nil {
			return Reply{}, NewBotError(ErrorTypeVoice, "could not join voice channel",
				"❌ Could not join your voice channel. Please try again.", err)
		}

		position, err := session.Enqueue(track)
		if errors.Is(err, audio.ErrSessionClosed) && attempt == 0 {
			continue
		}
		if err != nil {
			return Reply{}, err
		}

		content := fmt.Sprintf("🎵 Queued: %s - %s", track.Title, track.SourceRef)
		if position > 1 {
			content += fmt.Sprintf(" (position %d)", position)
		}
		return Reply{Content: content}, nil
	}
}

// active returns the guild's live session or nil.
func (d *Dispatcher) active(guildID string) *audio.Session {
	session, ok := d.sessions.Get(guildID)
	if !ok {
		return nil
	}
	return session
}

func (d *Dispatcher) skip(req Request) (Reply, error) {
	session := d.active(req.GuildID)
	if session == nil {
		return Reply{}, NewEmptyStateError("❌ Nothing to skip.", nil)
	}
	if _, err := session.Skip(); err != nil {
		return Reply{}, NewEmptyStateError("❌ Nothing to skip.", err)
	}
	return Reply{Content: "⏭ Skipped current track."}, nil
}

func (d *Dispatcher) queue(req Request) (Reply, error) {
	session := d.active(req.GuildID)
	if session == nil {
		return Reply{}, NewEmptyStateError("📭 Queue is empty.", nil)
	}
	snap, err := session.Snapshot()
	if err != nil || snap.Current == nil {
		return Reply{}, NewEmptyStateError("📭 Queue is empty.", err)
	}
	return Reply{Content: formatQueue(snap, d.config.MaxMessageLength)}, nil
}

func (d *Dispatcher) clear(req Request) (Reply, error) {
	session := d.active(req.GuildID)
	if session == nil {
		return Reply{}, NewEmptyStateError("📭 Nothing to clear.", nil)
	}
	removed, err := session.Clear()
	if err != nil {
		return Reply{}, NewEmptyStateError("📭 Nothing to clear.", err)
	}
	return Reply{Content: fmt.Sprintf("🧹 Queue cleared (%d removed), current track remains playing.", removed)}, nil
}

func (d *Dispatcher) disconnect(req Request) (Reply, error) {
	if !d.sessions.Destroy(req.GuildID) {
		return Reply{}, NewBotError(ErrorTypeNotConnected, "no session to destroy", "❌ Not connected.", nil)
	}
	return Reply{Content: "👋 Disconnected and cleared the queue."}, nil
}

func (d *Dispatcher) stop(req Request) (Reply, error) {
	session := d.active(req.GuildID)
	if session == nil {
		return Reply{}, NewEmptyStateError("🚫 Nothing is playing.", nil)
	}
	if err := session.ClearAndStop(); err != nil {
		return Reply{}, NewEmptyStateError("🚫 Nothing is playing.", err)
	}
	return Reply{Content: "⏹️ Stopped playback and cleared the queue."}, nil
}

func (d *Dispatcher) pause(req Request) (Reply, error) {
	session := d.active(req.GuildID)
	if session == nil {
		return Reply{}, NewEmptyStateError("🚫 Nothing to pause.", nil)
	}
	switch err := session.Pause(); {
	case err == nil:
		return Reply{Content: "⏸️ Paused playback."}, nil
	case errors.Is(err, audio.ErrNotRendering):
		return Reply{}, NewEmptyStateError("⚠️ Not currently playing.", err)
	default:
		return Reply{}, NewEmptyStateError("🚫 Nothing to pause.", err)
	}
}

func (d *Dispatcher) resume(req Request) (Reply, error) {
	session := d.active(req.GuildID)
	if session == nil {
		return Reply{}, NewEmptyStateError("🚫 Nothing to resume.", nil)
	}
	switch err := session.Resume(); {
	case err == nil:
		return Reply{Content: "▶️ Resumed playing."}, nil
	case errors.Is(err, audio.ErrNotPaused):
		return Reply{}, NewEmptyStateError("⚠️ Not paused. Already playing or idle.", err)
	default:
		return Reply{}, NewEmptyStateError("🚫 Nothing to resume.", err)
	}
}

// formatQueue renders the current track and the numbered remainder,
// dropping trailing entries that would exceed limit.
func formatQueue(snap audio.Snapshot, limit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎶 **Now playing:** %s", snap.Current.Title)
	if snap.State == audio.StatePaused {
		b.WriteString(" (paused)")
	}
	b.WriteString("\n\n📃 **Up next:**\n")

	if len(snap.Upcoming) == 0 {
		b.WriteString("No more tracks in queue.")
		return b.String()
	}

	for i, t := range snap.Upcoming {
		line := fmt.Sprintf("%d. %s\n", i+1, t.Title)
		more := fmt.Sprintf("…and %d more", len(snap.Upcoming)-i)
		if b.Len()+len(line)+len(more) > limit {
			b.WriteString(more)
			return b.String()
		}
		b.WriteString(line)
	}
	return strings.TrimRight(b.String(), "\n")
}
