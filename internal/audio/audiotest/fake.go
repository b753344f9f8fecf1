// Package audiotest provides scripted audio elements and routers for tests.
package audiotest

import (
	"context"
	"sync"
	"time"

	"github.com/liuscraft/noizee/internal/audio"
)

// Element is a scripted audio.Element. It never emits events by itself;
// tests deliver them explicitly.
type Element struct {
	mu       sync.Mutex
	PlayErr  error
	plays    int
	pauses   int
	playing  bool
	volume   float64
	position time.Duration
	closed   bool
	events   chan audio.Event
}

var _ audio.Element = (*Element)(nil)

func NewElement() *Element {
	return &Element{volume: 1, events: make(chan audio.Event, 16)}
}

func (e *Element) Play(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.plays++
	if e.closed {
		return audio.ErrClosed
	}
	if e.PlayErr != nil {
		return e.PlayErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	e.playing = true
	return nil
}

func (e *Element) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pauses++
	e.playing = false
}

func (e *Element) SetPosition(d time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.position = d
	return nil
}

func (e *Element) SetVolume(v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.volume = v
}

func (e *Element) Events() <-chan audio.Event {
	return e.events
}

func (e *Element) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		e.playing = false
		close(e.events)
	}
	return nil
}

// Emit delivers ev on the Events channel. It is a no-op after Close.
func (e *Element) Emit(ev audio.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.events <- ev
}

// SetPlayErr changes the result of subsequent Play calls.
func (e *Element) SetPlayErr(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.PlayErr = err
}

func (e *Element) Plays() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.plays
}

func (e *Element) Pauses() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pauses
}

// Playing reports whether the element was played and not paused since.
func (e *Element) Playing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playing
}

func (e *Element) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volume
}

func (e *Element) Position() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.position
}

func (e *Element) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Route records the gain applied to it.
type Route struct {
	mu     sync.Mutex
	gain   float64
	closed bool
}

func (r *Route) SetGain(v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gain = v
}

func (r *Route) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *Route) Gain() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gain
}

func (r *Route) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Router hands out Routes and counts how many were built.
type Router struct {
	mu         sync.Mutex
	ConnectErr error
	ResumeErr  error
	routes     []*Route
	resumes    int
}

var _ audio.Router = (*Router)(nil)

func (r *Router) Connect(audio.Element) (audio.Route, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ConnectErr != nil {
		return nil, r.ConnectErr
	}
	route := &Route{gain: 1}
	r.routes = append(r.routes, route)
	return route, nil
}

func (r *Router) Resume(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resumes++
	if r.ResumeErr != nil {
		return r.ResumeErr
	}
	return ctx.Err()
}

func (r *Router) Routes() []*Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Route(nil), r.routes...)
}

func (r *Router) Resumes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resumes
}
