package audio

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"

	"github.com/liuscraft/noizee/internal/logging"
)

// EngineConfig 输出引擎配置
type EngineConfig struct {
	Driver     string // portaudio | speaker | null
	SampleRate int
	BufferMs   int
}

func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		Driver:     "portaudio",
		SampleRate: 44100,
		BufferMs:   100,
	}
}

type decodeFunc func(data []byte) (beep.StreamSeekCloser, beep.Format, error)

// Engine mixes every attached clip into one output device. The device is
// opened lazily by Resume, so an engine whose clips are never played never
// touches the audio hardware.
type Engine struct {
	config     *EngineConfig
	sampleRate beep.SampleRate
	out        output
	decode     decodeFunc

	// mu guards mixer and every streamer reachable from it
	mu     sync.Mutex
	mixer  beep.Mixer
	closed bool

	startMu sync.Mutex
	started bool
}

var _ Router = (*Engine)(nil)

func NewEngine(config *EngineConfig) (*Engine, error) {
	if config == nil {
		config = DefaultEngineConfig()
	}
	sampleRate := config.SampleRate
	if sampleRate <= 0 {
		sampleRate = 44100
	}
	bufferMs := config.BufferMs
	if bufferMs <= 0 {
		bufferMs = 100
	}

	out, err := newOutput(config.Driver)
	if err != nil {
		return nil, err
	}

	return &Engine{
		config:     &EngineConfig{Driver: config.Driver, SampleRate: sampleRate, BufferMs: bufferMs},
		sampleRate: beep.SampleRate(sampleRate),
		out:        out,
		decode:     decodeMP3,
	}, nil
}

func (e *Engine) SampleRate() beep.SampleRate {
	return e.sampleRate
}

// Resume opens the output device on first use.
func (e *Engine) Resume(ctx context.Context) error {
	e.startMu.Lock()
	defer e.startMu.Unlock()

	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if e.started {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	frames := e.sampleRate.N(time.Duration(e.config.BufferMs) * time.Millisecond)
	if err := e.out.start(e.sampleRate, frames, e.fill); err != nil {
		return fmt.Errorf("%w: %v", ErrNoOutput, err)
	}
	e.started = true
	logging.Infof("AudioEngine: output %s started (rate=%d, frames=%d)", e.config.Driver, e.sampleRate, frames)
	return nil
}

// NewClip creates a lazily decoded, endlessly looping element for the file at path.
func (e *Engine) NewClip(id, path string) *Clip {
	return newClip(e, id, path)
}

// Connect splices a gain stage between a clip and the output.
func (e *Engine) Connect(el Element) (Route, error) {
	c, ok := el.(*Clip)
	if !ok || c.engine != e {
		return nil, ErrUnroutable
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if c.closed || e.closed {
		return nil, ErrClosed
	}
	if c.route != nil {
		return nil, ErrAlreadyRouted
	}
	r := newRoute(c)
	c.route = r
	c.rewire()
	return r, nil
}

// Attach plays an arbitrary streamer until it ends or detach is called.
func (e *Engine) Attach(s beep.Streamer) (detach func()) {
	t := &streamTap{src: s}
	e.mu.Lock()
	if !e.closed {
		e.mixer.Add(t)
	}
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		t.detached = true
		e.mu.Unlock()
	}
}

// Playing reports how many streamers the output currently pulls from.
func (e *Engine) Playing() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mixer.Len()
}

func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mixer.Clear()
	e.mu.Unlock()

	e.startMu.Lock()
	defer e.startMu.Unlock()
	if !e.started {
		return nil
	}
	e.started = false
	if err := e.out.close(); err != nil {
		logging.Errorf("AudioEngine: failed to close output: %v", err)
		return err
	}
	return nil
}

// fill is the output callback: it renders the next block of mixed samples.
func (e *Engine) fill(samples [][2]float64) {
	for i := range samples {
		samples[i] = [2]float64{}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.mixer.Stream(samples)
}

type streamTap struct {
	src      beep.Streamer
	detached bool
}

func (t *streamTap) Stream(samples [][2]float64) (int, bool) {
	if t.detached {
		return 0, false
	}
	return t.src.Stream(samples)
}

func (t *streamTap) Err() error {
	return t.src.Err()
}

func decodeMP3(data []byte) (beep.StreamSeekCloser, beep.Format, error) {
	return mp3.Decode(nopCloser{bytes.NewReader(data)})
}

// nopCloser wraps a bytes.Reader to implement io.ReadCloser.
type nopCloser struct {
	*bytes.Reader
}

func (nopCloser) Close() error { return nil }

func normalizeDriver(driver string) string {
	driver = strings.ToLower(strings.TrimSpace(driver))
	if driver == "" {
		return "portaudio"
	}
	return driver
}
