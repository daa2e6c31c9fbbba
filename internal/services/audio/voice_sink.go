package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/jonas747/dca"

	"groovebox/pkg/logger"
)

const sinkEventBuffer = 16

// VoiceSink renders audio into a Discord voice connection through dca.
type VoiceSink struct {
	mu      sync.Mutex
	vc      *discordgo.VoiceConnection
	source  StreamSource
	options *dca.EncodeOptions
	log     *logger.Logger

	current *playback

	events    chan SinkEvent
	closed    chan struct{}
	closeOnce sync.Once
}

type playback struct {
	generation uint64
	stream     *SourceStream
	encoder    *dca.EncodeSession
	streaming  *dca.StreamingSession
	cancel     context.CancelFunc
	paused     bool
	stopped    bool
}

// NewVoiceSink creates a sink bound to vc. The sink owns vc and disconnects it on Close.
func NewVoiceSink(vc *discordgo.VoiceConnection, source StreamSource, options *dca.EncodeOptions, log *logger.Logger) *VoiceSink {
	if log == nil {
		log = logger.GetDefault()
	}
	return &VoiceSink{
		vc:      vc,
		source:  source,
		options: options,
		log:     log.WithComponent("voice_sink"),
		events:  make(chan SinkEvent, sinkEventBuffer),
		closed:  make(chan struct{}),
	}
}

// Events returns the sink's event stream
func (v *VoiceSink) Events() <-chan SinkEvent {
	return v.events
}

func (v *VoiceSink) ready() bool {
	if v.vc == nil {
		return false
	}
	v.vc.RLock()
	defer v.vc.RUnlock()
	return v.vc.Ready
}

// Play starts streaming sourceRef, replacing whatever is playing.
func (v *VoiceSink) Play(generation uint64, sourceRef string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	select {
	case <-v.closed:
		return fmt.Errorf("sink closed: %w", ErrSinkUnavailable)
	default:
	}
	if !v.ready() {
		return fmt.Errorf("voice connection not ready: %w", ErrSinkUnavailable)
	}

	v.stopLocked(true)

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := v.source.Open(ctx, sourceRef)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to open stream: %w", err)
	}

	encoder, err := dca.EncodeMem(stream, v.options)
	if err != nil {
		cancel()
		stream.Close()
		return fmt.Errorf("failed creating an encoding session: %w", err)
	}

	if err := v.vc.Speaking(true); err != nil {
		v.log.Warn("Failed to set speaking state", logger.Fields{"error": err.Error()})
	}

	done := make(chan error, 1)
	p := &playback{
		generation: generation,
		stream:     stream,
		encoder:    encoder,
		cancel:     cancel,
	}
	p.streaming = dca.NewStream(encoder, v.vc, done)
	v.current = p

	v.offer(SinkEvent{Kind: EventRendering, Generation: generation})
	go v.wait(p, done)
	return nil
}

// wait reports how p ended once the dca stream finished.
func (v *VoiceSink) wait(p *playback, done <-chan error) {
	streamErr := <-done

	// Clean up in case ffmpeg or yt-dlp are still running
	p.encoder.Cleanup()
	p.cancel()
	p.stream.Close()
	sourceErr := p.stream.Wait()

	v.mu.Lock()
	stopped := p.stopped
	if v.current == p {
		v.current = nil
		v.vc.Speaking(false)
	}
	v.mu.Unlock()

	ev := SinkEvent{Kind: EventIdle, Generation: p.generation}
	switch {
	case stopped:
	case streamErr != nil && !errors.Is(streamErr, io.EOF):
		ev.Kind = EventError
		ev.Err = fmt.Errorf("stream stopped suddenly: %w", streamErr)
		ev.Fatal = !v.ready()
	case sourceErr != nil:
		ev.Kind = EventError
		ev.Err = sourceErr
	}
	v.emit(ev)
}

// Pause pauses the stream; false when nothing is rendering.
func (v *VoiceSink) Pause() bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	p := v.current
	if p == nil || p.paused || p.stopped {
		return false
	}
	p.streaming.SetPaused(true)
	p.paused = true
	v.vc.Speaking(false)
	v.offer(SinkEvent{Kind: EventPaused, Generation: p.generation})
	return true
}

// Unpause resumes a paused stream; false when not paused.
func (v *VoiceSink) Unpause() bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	p := v.current
	if p == nil || !p.paused || p.stopped {
		return false
	}
	v.vc.Speaking(true)
	p.streaming.SetPaused(false)
	p.paused = false
	v.offer(SinkEvent{Kind: EventRendering, Generation: p.generation})
	return true
}

// Stop ends the current stream. A paused stream is only stopped when force is set.
func (v *VoiceSink) Stop(force bool) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stopLocked(force)
}

func (v *VoiceSink) stopLocked(force bool) bool {
	p := v.current
	if p == nil || p.stopped {
		return false
	}
	if p.paused && !force {
		return false
	}

	p.stopped = true
	p.encoder.Cleanup()
	p.cancel()
	if p.paused {
		// A paused stream never reports completion
		p.streaming.SetPaused(false)
		p.paused = false
	}
	v.current = nil
	v.vc.Speaking(false)
	return true
}

// Close stops playback and leaves the voice channel. Safe to call more than once.
func (v *VoiceSink) Close() error {
	var err error
	v.closeOnce.Do(func() {
		v.mu.Lock()
		v.stopLocked(true)
		v.mu.Unlock()

		close(v.closed)
		if v.vc != nil {
			err = v.vc.Disconnect()
		}
	})
	return err
}

// emit delivers completion events; dropped only once the sink is closed.
func (v *VoiceSink) emit(ev SinkEvent) {
	select {
	case v.events <- ev:
	case <-v.closed:
	}
}

// offer delivers informational events without blocking the caller.
func (v *VoiceSink) offer(ev SinkEvent) {
	select {
	case v.events <- ev:
	default:
	}
}
