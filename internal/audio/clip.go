package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"

	"github.com/liuscraft/noizee/internal/logging"
)

var errStreamEnded = errors.New("audio: stream ended unexpectedly")

const eventBuffer = 32

// Clip is an Element backed by one MP3 file. The file is read and decoded on
// the first Play and then looped forever:
//
//	file -> Loop -> Resample -> Ctrl -> level -> [route gain] -> engine mixer
type Clip struct {
	engine *Engine
	id     string
	path   string

	loadMu sync.Mutex

	evMu     sync.Mutex
	events   chan Event
	evClosed bool

	// guarded by engine.mu
	loaded bool
	src    beep.StreamSeekCloser
	format beep.Format
	ctrl   *beep.Ctrl
	level  *effects.Volume
	volume float64
	route  *route
	out    beep.Streamer
	tap    *clipTap
	closed bool
}

var _ Element = (*Clip)(nil)

func newClip(e *Engine, id, path string) *Clip {
	return &Clip{
		engine: e,
		id:     id,
		path:   path,
		events: make(chan Event, eventBuffer),
		volume: 1,
	}
}

func (c *Clip) ID() string {
	return c.id
}

func (c *Clip) Events() <-chan Event {
	return c.events
}

// Play loads the clip if needed, opens the output and unpauses it.
func (c *Clip) Play(ctx context.Context) error {
	if err := c.load(ctx); err != nil {
		return err
	}
	if err := c.engine.Resume(ctx); err != nil {
		return err
	}

	e := c.engine
	e.mu.Lock()
	if c.closed || e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		e.mu.Unlock()
		return err
	}
	changed := c.ctrl.Paused || c.tap == nil
	c.ctrl.Paused = false
	if c.tap == nil {
		c.tap = &clipTap{clip: c}
		e.mixer.Add(c.tap)
	}
	e.mu.Unlock()

	if changed {
		c.emit(Event{Kind: Started})
	}
	return nil
}

func (c *Clip) Pause() {
	e := c.engine
	e.mu.Lock()
	if c.ctrl == nil || c.ctrl.Paused || c.closed {
		e.mu.Unlock()
		return
	}
	c.ctrl.Paused = true
	e.mu.Unlock()

	c.emit(Event{Kind: Paused})
}

func (c *Clip) SetPosition(d time.Duration) error {
	if d < 0 {
		d = 0
	}
	e := c.engine
	e.mu.Lock()
	defer e.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if !c.loaded {
		return nil
	}
	n := c.format.SampleRate.N(d)
	if length := c.src.Len(); length > 0 {
		n %= length
	}
	if err := c.src.Seek(n); err != nil {
		return fmt.Errorf("seek %s: %w", c.id, err)
	}
	return nil
}

func (c *Clip) SetVolume(v float64) {
	e := c.engine
	e.mu.Lock()
	defer e.mu.Unlock()

	c.volume = ClampVolume(v)
	if c.level != nil {
		setLinear(c.level, c.volume)
	}
}

func (c *Clip) Close() error {
	e := c.engine
	e.mu.Lock()
	if c.closed {
		e.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.tap != nil {
		c.tap.dead = true
		c.tap = nil
	}
	c.route = nil
	c.out = nil
	src := c.src
	e.mu.Unlock()

	c.evMu.Lock()
	c.evClosed = true
	close(c.events)
	c.evMu.Unlock()

	if src != nil {
		return src.Close()
	}
	return nil
}

func (c *Clip) load(ctx context.Context) error {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	e := c.engine
	e.mu.Lock()
	loaded, closed := c.loaded, c.closed
	e.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if loaded {
		return nil
	}

	c.emit(Event{Kind: Buffering})
	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("read clip %s: %w", c.id, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	src, format, err := e.decode(data)
	if err != nil {
		return fmt.Errorf("decode clip %s: %w", c.id, err)
	}

	var s beep.Streamer = beep.Loop(-1, src)
	if format.SampleRate != e.sampleRate {
		s = beep.Resample(4, format.SampleRate, e.sampleRate, s)
	}

	e.mu.Lock()
	if c.closed {
		e.mu.Unlock()
		src.Close()
		return ErrClosed
	}
	c.src = src
	c.format = format
	c.ctrl = &beep.Ctrl{Streamer: s, Paused: true}
	c.level = &effects.Volume{Streamer: c.ctrl, Base: 2}
	setLinear(c.level, c.volume)
	c.loaded = true
	c.rewire()
	e.mu.Unlock()

	logging.Debugf("Clip[%s]: decoded %s (rate=%d, channels=%d)", c.id, c.path, format.SampleRate, format.NumChannels)
	c.emit(Event{Kind: Ready})
	return nil
}

// rewire recomputes the head of the chain. Caller holds engine.mu.
func (c *Clip) rewire() {
	if c.level == nil {
		c.out = nil
		return
	}
	if c.route != nil {
		c.route.gain.Streamer = c.level
		c.out = c.route.gain
		return
	}
	c.out = c.level
}

// fault is called from the output callback with engine.mu held.
func (c *Clip) fault(err error) {
	if c.tap != nil {
		c.tap.dead = true
		c.tap = nil
	}
	if c.ctrl != nil {
		c.ctrl.Paused = true
	}
	logging.Warnf("Clip[%s]: playback fault: %v", c.id, err)
	c.emit(Event{Kind: Faulted, Err: err})
}

// emit never blocks; events are dropped when the consumer falls behind.
func (c *Clip) emit(ev Event) {
	c.evMu.Lock()
	defer c.evMu.Unlock()
	if c.evClosed {
		return
	}
	select {
	case c.events <- ev:
	default:
		logging.Warnf("Clip[%s]: event %s dropped", c.id, ev.Kind)
	}
}

// clipTap is what the engine mixer pulls from. It lives until the clip faults or closes.
type clipTap struct {
	clip *Clip
	dead bool
}

func (t *clipTap) Stream(samples [][2]float64) (int, bool) {
	if t.dead {
		return 0, false
	}
	out := t.clip.out
	if out == nil {
		for i := range samples {
			samples[i] = [2]float64{}
		}
		return len(samples), true
	}
	n, ok := out.Stream(samples)
	if !ok || n < len(samples) {
		err := out.Err()
		if err == nil {
			err = errStreamEnded
		}
		t.clip.fault(err)
		return n, n > 0
	}
	return n, true
}

func (t *clipTap) Err() error {
	return nil
}
