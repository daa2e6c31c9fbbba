package audio

import (
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"groovebox/pkg/logger"
	"groovebox/pkg/metrics"
)

// State represents the playback state of a session
type State string

const (
	StateIdle      State = "idle"
	StateRendering State = "rendering"
	StatePaused    State = "paused"
	StateDestroyed State = "destroyed"
)

var (
	ErrSessionClosed  = errors.New("session closed")
	ErrNothingPlaying = errors.New("nothing is playing")
	ErrNotRendering   = errors.New("not currently rendering")
	ErrNotPaused      = errors.New("not paused")
	ErrNothingToClear = errors.New("nothing to clear")
	ErrQueueFull      = errors.New("queue is full")
)

// Timer is a pending scheduled call.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d, on a goroutine of its choosing.
type Scheduler func(d time.Duration, f func()) Timer

func afterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Notifier posts short human-readable messages to a text channel.
type Notifier interface {
	Notify(channelID, message string)
}

// Snapshot is a read-only view of a session.
type Snapshot struct {
	State     State
	Current   *Track
	Upcoming  []Track
	IdleArmed bool
}

type sessionConfig struct {
	idleTimeout time.Duration
	maxQueue    int
	schedule    Scheduler
	logger      *logger.Logger
	metrics     *metrics.Metrics
	notifier    Notifier
	onDestroyed func(*Session)
}

// Session is the playback state of one guild. Every mutation runs on the
// session's own goroutine: commands are submitted through a mailbox, and
// sink events and idle-timer firings arrive on the same loop, so they are
// handled one at a time in arrival order.
type Session struct {
	target VoiceTarget
	sink   Sink
	cfg    sessionConfig
	log    *logger.Logger

	ops  chan func()
	done chan struct{}

	// Owned by the loop goroutine.
	queue      Queue
	state      State
	generation uint64
	idle       Timer
	idleGen    uint64
}

func newSession(target VoiceTarget, sink Sink, cfg sessionConfig) *Session {
	if cfg.schedule == nil {
		cfg.schedule = afterFunc
	}
	if cfg.logger == nil {
		cfg.logger = logger.GetDefault()
	}

	s := &Session{
		target: target,
		sink:   sink,
		cfg:    cfg,
		log:    cfg.logger.WithComponent("session").WithGuild(target.GuildID),
		ops:    make(chan func()),
		done:   make(chan struct{}),
		state:  StateIdle,
	}
	// A fresh session has nothing to play; reap it if no track ever arrives.
	s.armIdle()
	return s
}

// GuildID returns the guild the session belongs to
func (s *Session) GuildID() string {
	return s.target.GuildID
}

// Target returns the voice target the session renders into
func (s *Session) Target() VoiceTarget {
	return s.target
}

// Done is closed once the session has been torn down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Session) run() {
	defer close(s.done)
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Session loop panicked", fmt.Errorf("panic: %v", r), logger.Fields{
				"stack": string(debug.Stack()),
			})
			s.teardown("panic")
		}
	}()

	events := s.sink.Events()
	for s.state != StateDestroyed {
		select {
		case op := <-s.ops:
			op()
		case ev, ok := <-events:
			if !ok {
				s.log.Warn("Sink event stream closed")
				s.teardown("sink closed")
				continue
			}
			s.handleSinkEvent(ev)
		}
	}
}

// do runs fn on the session loop and waits for its result.
func (s *Session) do(fn func() error) error {
	errc := make(chan error, 1)
	select {
	case s.ops <- func() { errc <- fn() }:
	case <-s.done:
		return ErrSessionClosed
	}

	select {
	case err := <-errc:
		return err
	case <-s.done:
		// fn panicked and the loop tore the session down.
		select {
		case err := <-errc:
			return err
		default:
			return ErrSessionClosed
		}
	}
}

// post queues fn on the loop without waiting; dropped if the session is gone.
func (s *Session) post(fn func()) {
	select {
	case s.ops <- fn:
	case <-s.done:
	}
}

// command wraps a user-initiated operation: arriving activity cancels a
// pending idle teardown, and the timer is re-armed afterwards only if the
// session is still left with nothing to play.
func (s *Session) command(fn func() error) error {
	return s.do(func() error {
		s.disarmIdle()
		err := fn()
		if s.state == StateIdle && s.queue.Len() == 0 && s.idle == nil {
			s.armIdle()
		}
		return err
	})
}

// Enqueue appends t and starts playback if nothing is rendering.
// It returns the 1-based queue position of the new track.
func (s *Session) Enqueue(t Track) (int, error) {
	var position int
	err := s.command(func() error {
		if s.cfg.maxQueue > 0 && s.queue.Len() >= s.cfg.maxQueue {
			return ErrQueueFull
		}
		s.queue.Append(t)
		position = s.queue.Len()
		s.cfg.metrics.RecordQueueLength(s.target.GuildID, s.queue.Len())
		s.log.WithTrack(t.Title, t.SourceRef).Info("Track queued", logger.Fields{"position": position})

		if s.state == StateIdle {
			s.advance()
		}
		if s.state == StateDestroyed {
			position = 0
			return fmt.Errorf("%w: %w", ErrSessionClosed, ErrSinkUnavailable)
		}
		return nil
	})
	return position, err
}

// Skip ends the current track and moves on to the next one, or idles.
func (s *Session) Skip() (Track, error) {
	var skipped Track
	err := s.command(func() error {
		head, ok := s.queue.Head()
		if !ok {
			return ErrNothingPlaying
		}
		skipped = head
		s.cfg.metrics.RecordTrackEvent("skipped")
		s.stopCurrent()
		return nil
	})
	return skipped, err
}

// Stop ends the current track. The queue behind it is left as is, so
// playback continues with the next entry if there is one; callers that
// want playback to halt clear first (see ClearAndStop).
func (s *Session) Stop() error {
	return s.command(func() error {
		if s.queue.Len() == 0 {
			return ErrNothingPlaying
		}
		s.stopCurrent()
		return nil
	})
}

// ClearAndStop drops all pending tracks and ends the current one in a single step.
func (s *Session) ClearAndStop() error {
	return s.command(func() error {
		if s.queue.Len() == 0 {
			return ErrNothingPlaying
		}
		s.queue.TruncateToHead()
		s.stopCurrent()
		return nil
	})
}

// Clear drops every track behind the current one. Rendering is untouched.
func (s *Session) Clear() (int, error) {
	var removed int
	err := s.command(func() error {
		if s.queue.Len() <= 1 {
			return ErrNothingToClear
		}
		removed = s.queue.TruncateToHead()
		s.cfg.metrics.RecordQueueLength(s.target.GuildID, s.queue.Len())
		return nil
	})
	return removed, err
}

// Pause pauses the sink. Only valid while rendering.
func (s *Session) Pause() error {
	return s.command(func() error {
		if s.queue.Len() == 0 {
			return ErrNothingPlaying
		}
		if s.state != StateRendering || !s.sink.Pause() {
			return ErrNotRendering
		}
		s.state = StatePaused
		return nil
	})
}

// Resume unpauses the sink. Only valid while paused.
func (s *Session) Resume() error {
	return s.command(func() error {
		if s.queue.Len() == 0 {
			return ErrNothingPlaying
		}
		if s.state != StatePaused || !s.sink.Unpause() {
			return ErrNotPaused
		}
		s.state = StateRendering
		return nil
	})
}

// Snapshot returns the current state and queue without touching the idle timer.
func (s *Session) Snapshot() (Snapshot, error) {
	var snap Snapshot
	err := s.do(func() error {
		tracks := s.queue.Snapshot()
		snap.State = s.state
		snap.IdleArmed = s.idle != nil
		if len(tracks) > 0 {
			current := tracks[0]
			snap.Current = &current
			snap.Upcoming = tracks[1:]
		}
		return nil
	})
	return snap, err
}

// Close tears the session down. Closing an already closed session is a no-op.
func (s *Session) Close(reason string) {
	err := s.do(func() error {
		s.teardown(reason)
		return nil
	})
	if err != nil && !errors.Is(err, ErrSessionClosed) {
		s.log.Error("Failed to close session", err)
	}
}

// advance starts rendering the queue head. Heads that fail to start are
// dropped and the next one is tried; an empty queue arms the idle timer.
func (s *Session) advance() {
	for {
		head, ok := s.queue.Head()
		if !ok {
			s.state = StateIdle
			s.armIdle()
			return
		}

		s.generation++
		err := s.sink.Play(s.generation, head.SourceRef)
		if err == nil {
			s.state = StateRendering
			s.cfg.metrics.RecordTrackEvent("started")
			s.log.WithTrack(head.Title, head.SourceRef).Info("Now playing", logger.Fields{
				"remaining": s.queue.Len() - 1,
			})
			s.announce(head.ChannelID, fmt.Sprintf("🎵 Now playing: %s", head.Title))
			return
		}

		if errors.Is(err, ErrSinkUnavailable) {
			s.log.Error("Sink can no longer play, tearing down", err)
			s.teardown("sink unavailable")
			return
		}

		s.cfg.metrics.RecordTrackEvent("start_failed")
		s.log.WithTrack(head.Title, head.SourceRef).Error("Could not start track, skipping", err)
		s.announce(head.ChannelID, fmt.Sprintf("⚠️ Could not play %s, skipping it.", head.Title))
		s.queue.PopHead()
	}
}

// finishCurrent pops the head after its playback ended and advances.
func (s *Session) finishCurrent(renderErr error) {
	finished, ok := s.queue.PopHead()
	if !ok {
		s.state = StateIdle
		return
	}

	if renderErr != nil {
		s.cfg.metrics.RecordTrackEvent("render_error")
		s.log.WithTrack(finished.Title, finished.SourceRef).Error("Playback failed, advancing queue", renderErr)
		s.announce(finished.ChannelID, fmt.Sprintf("⚠️ Playback of %s failed, moving on.", finished.Title))
	} else {
		s.cfg.metrics.RecordTrackEvent("finished")
		s.log.WithTrack(finished.Title, finished.SourceRef).Debug("Track finished")
	}

	s.state = StateIdle
	s.advance()
}

// stopCurrent halts the sink and runs the completion path right away. The
// idle event the sink emits for the stopped generation is then stale.
func (s *Session) stopCurrent() {
	s.sink.Stop(true)
	s.finishCurrent(nil)
}

func (s *Session) handleSinkEvent(ev SinkEvent) {
	if s.state == StateDestroyed {
		return
	}
	if ev.Fatal {
		s.log.Error("Sink reported a fatal error", ev.Err)
		s.teardown("sink failure")
		return
	}
	if ev.Generation != s.generation || s.state == StateIdle {
		s.log.Debug("Ignoring stale sink event", logger.Fields{
			"event":      ev.Kind.String(),
			"generation": ev.Generation,
			"current":    s.generation,
		})
		return
	}

	switch ev.Kind {
	case EventIdle:
		s.finishCurrent(nil)
	case EventError:
		s.finishCurrent(ev.Err)
	default:
		// Rendering/paused notifications only confirm what the loop already did.
	}
}

func (s *Session) armIdle() {
	s.disarmIdle()
	gen := s.idleGen
	s.idle = s.cfg.schedule(s.cfg.idleTimeout, func() {
		s.post(func() { s.onIdleExpired(gen) })
	})
}

func (s *Session) disarmIdle() {
	if s.idle != nil {
		s.idle.Stop()
		s.idle = nil
	}
	s.idleGen++
}

func (s *Session) onIdleExpired(gen uint64) {
	if s.idle == nil || gen != s.idleGen {
		return
	}
	s.idle = nil
	if s.state != StateIdle || s.queue.Len() > 0 {
		return
	}
	s.cfg.metrics.RecordSessionEvent("idle_timeout")
	s.log.Info("Idle timeout reached, leaving voice", logger.Fields{"idle_timeout": s.cfg.idleTimeout.String()})
	s.teardown("idle timeout")
}

// teardown releases the sink exactly once and unregisters the session.
func (s *Session) teardown(reason string) {
	if s.state == StateDestroyed {
		return
	}
	s.state = StateDestroyed
	s.disarmIdle()
	s.queue = Queue{}

	s.sink.Stop(true)
	if err := s.sink.Close(); err != nil {
		s.log.Error("Failed to close sink", err)
	}

	s.cfg.metrics.ClearQueueLength(s.target.GuildID)
	s.cfg.metrics.RecordSessionEvent("destroyed")
	s.log.Info("Session destroyed", logger.Fields{"reason": reason})

	if s.cfg.onDestroyed != nil {
		s.cfg.onDestroyed(s)
	}
}

func (s *Session) announce(channelID, message string) {
	if s.cfg.notifier == nil || channelID == "" {
		return
	}
	s.cfg.notifier.Notify(channelID, message)
}
