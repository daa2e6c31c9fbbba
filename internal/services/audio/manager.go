package audio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonas747/dca"
	"golang.org/x/sync/singleflight"

	"groovebox/pkg/logger"
	"groovebox/pkg/metrics"
)

// Config holds audio configuration
type Config struct {
	Bitrate          int
	Volume           int
	FrameRate        int
	FrameDuration    int
	CompressionLevel int
	PacketLoss       int
	BufferedFrames   int
	EnableVBR        bool
	ConnectTimeout   time.Duration
	IdleTimeout      time.Duration
	MaxQueueSize     int
}

// EncodeOptions returns dca options for this configuration
func (c Config) EncodeOptions() *dca.EncodeOptions {
	options := *dca.StdEncodeOptions
	options.RawOutput = true
	options.Application = dca.AudioApplicationAudio
	if c.Bitrate > 0 {
		options.Bitrate = c.Bitrate
	}
	if c.Volume > 0 {
		options.Volume = c.Volume
	}
	if c.FrameRate > 0 {
		options.FrameRate = c.FrameRate
	}
	if c.FrameDuration > 0 {
		options.FrameDuration = c.FrameDuration
	}
	if c.BufferedFrames > 0 {
		options.BufferedFrames = c.BufferedFrames
	}
	options.CompressionLevel = c.CompressionLevel
	options.PacketLoss = c.PacketLoss
	options.VBR = c.EnableVBR
	return &options
}

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the logger used by the manager and its sessions
func WithLogger(l *logger.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithMetrics sets the metrics sink
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithNotifier sets where now-playing and failure announcements go
func WithNotifier(n Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

// WithScheduler replaces the timer used for idle teardown
func WithScheduler(s Scheduler) Option {
	return func(m *Manager) { m.schedule = s }
}

// Manager owns the per-guild sessions. At most one session exists per guild.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	group    singleflight.Group

	config   Config
	newSink  SinkFactory
	schedule Scheduler
	logger   *logger.Logger
	metrics  *metrics.Metrics
	notifier Notifier
}

// NewManager creates a new session manager
func NewManager(config Config, newSink SinkFactory, opts ...Option) *Manager {
	m := &Manager{
		sessions: make(map[string]*Session),
		config:   config,
		newSink:  newSink,
		schedule: afterFunc,
		logger:   logger.GetDefault(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.WithComponent("audio")
	return m
}

// Get returns the live session of a guild, if any
func (m *Manager) Get(guildID string) (*Session, bool) {
	m.mu.RLock()
	session, exists := m.sessions[guildID]
	m.mu.RUnlock()

	if !exists || session.closed() {
		return nil, false
	}
	return session, true
}

// GetOrCreate returns the guild's session, opening a sink for target when
// none exists. Concurrent callers for one guild share a single creation;
// other guilds are not blocked while the voice connection is established.
func (m *Manager) GetOrCreate(ctx context.Context, target VoiceTarget) (*Session, error) {
	if session, ok := m.Get(target.GuildID); ok {
		return session, nil
	}

	v, err, _ := m.group.Do(target.GuildID, func() (interface{}, error) {
		// Double-check after winning the flight
		if session, ok := m.Get(target.GuildID); ok {
			return session, nil
		}

		connectCtx := ctx
		if m.config.ConnectTimeout > 0 {
			var cancel context.CancelFunc
			connectCtx, cancel = context.WithTimeout(ctx, m.config.ConnectTimeout)
			defer cancel()
		}

		sink, err := m.newSink(connectCtx, target)
		if err != nil {
			m.metrics.RecordError("sink_open")
			return nil, fmt.Errorf("failed to open voice sink: %w", err)
		}

		session := newSession(target, sink, sessionConfig{
			idleTimeout: m.config.IdleTimeout,
			maxQueue:    m.config.MaxQueueSize,
			schedule:    m.schedule,
			logger:      m.logger,
			metrics:     m.metrics,
			notifier:    m.notifier,
			onDestroyed: m.remove,
		})

		m.mu.Lock()
		m.sessions[target.GuildID] = session
		active := len(m.sessions)
		m.mu.Unlock()

		go session.run()

		m.metrics.RecordSessionEvent("created")
		m.metrics.SetActiveSessions(active)
		m.logger.WithGuild(target.GuildID).Info("Session created", logger.Fields{
			"channel_id": target.ChannelID,
		})
		return session, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

// Destroy tears down the guild's session. It reports whether one existed.
// The session stays registered until its sink is released, so a concurrent
// GetOrCreate cannot join the voice channel the old sink is leaving.
func (m *Manager) Destroy(guildID string) bool {
	session, exists := m.Get(guildID)
	if !exists {
		return false
	}
	session.Close("disconnect")
	return true
}

// GetActiveSessions returns the number of registered sessions
func (m *Manager) GetActiveSessions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// remove unregisters s if it is still the guild's session.
func (m *Manager) remove(s *Session) {
	m.mu.Lock()
	if current, ok := m.sessions[s.GuildID()]; ok && current == s {
		delete(m.sessions, s.GuildID())
	}
	active := len(m.sessions)
	m.mu.Unlock()

	m.metrics.SetActiveSessions(active)
}

// Shutdown tears down every session
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, session := range sessions {
		session.Close("shutdown")
	}
	m.metrics.SetActiveSessions(0)
	m.logger.Info("Audio manager shut down", logger.Fields{"sessions_closed": len(sessions)})
}
