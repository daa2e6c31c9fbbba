package audio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	mu        sync.Mutex
	plays     []string
	gens      []uint64
	playErr   map[string]error
	rendering bool
	paused    bool
	stops     int
	closes    int
	events    chan SinkEvent
	onClose   func()
}

func newFakeSink() *fakeSink {
	return &fakeSink{
		playErr: make(map[string]error),
		events:  make(chan SinkEvent, 16),
	}
}

func (f *fakeSink) Play(generation uint64, sourceRef string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plays = append(f.plays, sourceRef)
	f.gens = append(f.gens, generation)
	if err := f.playErr[sourceRef]; err != nil {
		return err
	}
	f.rendering = true
	f.paused = false
	return nil
}

func (f *fakeSink) Pause() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.rendering || f.paused {
		return false
	}
	f.paused = true
	return true
}

func (f *fakeSink) Unpause() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.paused {
		return false
	}
	f.paused = false
	return true
}

func (f *fakeSink) Stop(force bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	was := f.rendering
	f.rendering = false
	f.paused = false
	return was
}

func (f *fakeSink) Events() <-chan SinkEvent {
	return f.events
}

func (f *fakeSink) Close() error {
	f.mu.Lock()
	f.closes++
	hook := f.onClose
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return nil
}

func (f *fakeSink) failPlay(ref string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playErr[ref] = err
}

func (f *fakeSink) played() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.plays...)
}

func (f *fakeSink) lastGeneration() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.gens) == 0 {
		return 0
	}
	return f.gens[len(f.gens)-1]
}

func (f *fakeSink) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

// finish reports the current track as naturally ended.
func (f *fakeSink) finish() {
	f.mu.Lock()
	f.rendering = false
	f.mu.Unlock()
	f.events <- SinkEvent{Kind: EventIdle, Generation: f.lastGeneration()}
}

// drained reports whether the session loop has picked up every pushed event.
func (f *fakeSink) drained() bool {
	return len(f.events) == 0
}

type fakeTimer struct {
	mu      sync.Mutex
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

func (t *fakeTimer) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (s *fakeScheduler) schedule(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) all() []*fakeTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*fakeTimer(nil), s.timers...)
}

func (s *fakeScheduler) pending() []*fakeTimer {
	var out []*fakeTimer
	for _, t := range s.all() {
		if !t.isStopped() {
			out = append(out, t)
		}
	}
	return out
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *fakeNotifier) Notify(channelID, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, channelID+": "+message)
}

func (n *fakeNotifier) sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

type harness struct {
	manager *Manager
	sched   *fakeScheduler

	mu    sync.Mutex
	sinks []*fakeSink
	err   error
}

func newHarness(t *testing.T, cfg Config, opts ...Option) *harness {
	t.Helper()
	h := &harness{sched: &fakeScheduler{}}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = time.Minute
	}
	opts = append([]Option{WithScheduler(h.sched.schedule)}, opts...)
	h.manager = NewManager(cfg, h.openSink, opts...)
	t.Cleanup(h.manager.Shutdown)
	return h
}

func (h *harness) openSink(ctx context.Context, target VoiceTarget) (Sink, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return nil, h.err
	}
	s := newFakeSink()
	h.sinks = append(h.sinks, s)
	return s, nil
}

func (h *harness) sinkCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sinks)
}

func (h *harness) sink(i int) *fakeSink {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sinks[i]
}

func (h *harness) session(t *testing.T, guildID string) (*Session, *fakeSink) {
	t.Helper()
	s, err := h.manager.GetOrCreate(context.Background(), VoiceTarget{GuildID: guildID, ChannelID: "voice-" + guildID})
	require.NoError(t, err)
	return s, h.sink(h.sinkCount() - 1)
}

func track(ref string) Track {
	return Track{Title: "Title " + ref, SourceRef: ref, RequestedBy: "user", ChannelID: "text"}
}

var errSpawn = errors.New("spawn failed")

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, time.Second, time.Millisecond)
}
