// Package player implements the per-clip playback state machine.
//
// Every method must be called on the event loop the player was created with.
// Play attempts run on their own goroutine and post their outcome back to the
// loop; timer fires are posted the same way.
package player

import (
	"context"
	"time"

	"github.com/liuscraft/noizee/internal/audio"
	"github.com/liuscraft/noizee/internal/clock"
	"github.com/liuscraft/noizee/internal/logging"
	"github.com/liuscraft/noizee/internal/loop"
)

const (
	DefaultVolume       = 0.3
	DefaultConfirmDelay = 150 * time.Millisecond

	playTimeout = 10 * time.Second
)

// Observer 接收播放器的确认播放/停止通知
type Observer interface {
	TrackPlaying(id string)
	TrackPaused(id string)
}

type Options struct {
	Volume float64
	// ConfirmDelay is how long a start must survive before it counts as playing.
	// Zero confirms immediately.
	ConfirmDelay time.Duration
	// Router enables the gain stage. Nil selects direct element volume.
	Router audio.Router
	Clock  clock.Clock
	Loop   loop.Poster
	// Spawn runs a play attempt. Defaults to a new goroutine.
	Spawn func(func())
}

func DefaultOptions(l loop.Poster) Options {
	return Options{
		Volume:       DefaultVolume,
		ConfirmDelay: DefaultConfirmDelay,
		Clock:        clock.Real(),
		Loop:         l,
	}
}

// Player 单个片段的播放状态机 (TrackPlayer)
type Player struct {
	id       string
	el       audio.Element
	backend  backend
	sm       *stateMachine
	loop     loop.Poster
	clock    clock.Clock
	spawn    func(func())
	delay    time.Duration
	observer Observer

	volume float64

	// attempt identifies the current play attempt; results from older attempts are stale
	attempt       uint64
	cancelAttempt context.CancelFunc

	confirm    clock.Timer
	confirmSeq uint64

	// pauseEcho is set when we pause the element ourselves and cleared by the
	// next Started; a Paused seen meanwhile belongs to the earlier episode
	pauseEcho bool

	disposed bool
}

func New(id string, el audio.Element, opts Options) *Player {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Spawn == nil {
		opts.Spawn = func(f func()) { go f() }
	}
	if opts.ConfirmDelay < 0 {
		opts.ConfirmDelay = 0
	}

	p := &Player{
		id:      id,
		el:      el,
		backend: newBackend(id, el, opts.Router),
		sm:      newStateMachine(),
		loop:    opts.Loop,
		clock:   opts.Clock,
		spawn:   opts.Spawn,
		delay:   opts.ConfirmDelay,
		volume:  audio.ClampVolume(opts.Volume),
	}
	el.SetVolume(p.volume)
	return p
}

func (p *Player) ID() string {
	return p.id
}

func (p *Player) Status() Status {
	return p.sm.Current()
}

func (p *Player) Volume() float64 {
	return p.volume
}

// Routed reports whether volume currently goes through a gain stage.
func (p *Player) Routed() bool {
	return p.backend.routed()
}

func (p *Player) SetObserver(o Observer) {
	p.observer = o
}

// Toggle plays when idle, paused or errored and pauses when loading or playing.
func (p *Player) Toggle() {
	if p.disposed {
		return
	}
	if p.Status().Active() {
		p.pause()
		return
	}
	p.play()
}

// Play starts an attempt unless one is already loading or playing.
func (p *Player) Play() {
	if p.disposed || p.Status().Active() {
		return
	}
	p.play()
}

// ForcePause moves Loading and Playing to Paused before returning.
func (p *Player) ForcePause() {
	if p.disposed {
		return
	}
	p.pause()
}

// Rewind seeks back to the start of the clip.
func (p *Player) Rewind() {
	if p.disposed {
		return
	}
	if err := p.el.SetPosition(0); err != nil {
		logging.Warnf("TrackPlayer[%s]: rewind failed: %v", p.id, err)
	}
}

func (p *Player) SetVolume(v float64) {
	if p.disposed {
		return
	}
	p.volume = audio.ClampVolume(v)
	p.backend.setVolume(p.volume)
}

// Dispose releases the gain stage and the element. A confirmed playing
// episode is closed with a pause notification.
func (p *Player) Dispose() {
	if p.disposed {
		return
	}
	wasPlaying := p.Status() == Playing
	p.invalidateAttempt()
	p.cancelConfirm()
	p.disposed = true

	p.el.Pause()
	p.backend.release()
	if err := p.el.Close(); err != nil {
		logging.Warnf("TrackPlayer[%s]: failed to close element: %v", p.id, err)
	}
	if wasPlaying {
		p.sm.Transition(Paused)
		p.notifyPaused()
	}
	logging.Debugf("TrackPlayer[%s]: disposed", p.id)
}

// HandleEvent consumes a hardware event from the element.
func (p *Player) HandleEvent(ev audio.Event) {
	if p.disposed {
		return
	}
	status := p.Status()
	switch ev.Kind {
	case audio.Started:
		p.pauseEcho = false
		switch status {
		case Loading:
			p.armConfirm()
		case Playing:
		default:
			// the element started without a request from us
			logging.Debugf("TrackPlayer[%s]: unsolicited start while %s", p.id, status)
			p.pauseElement()
		}
	case audio.Paused:
		// a pause in Loading is a leftover from an earlier episode; the attempt decides
		if status == Playing && p.pauseEcho {
			logging.Debugf("TrackPlayer[%s]: ignoring pause from an earlier episode", p.id)
			return
		}
		if status == Playing {
			p.transition(Paused)
			p.notifyPaused()
		}
	case audio.Faulted:
		if status == Errored {
			return
		}
		logging.Warnf("TrackPlayer[%s]: playback fault while %s: %v", p.id, status, ev.Err)
		p.invalidateAttempt()
		p.cancelConfirm()
		p.transition(Errored)
		if status == Playing {
			p.notifyPaused()
		}
	case audio.Buffering, audio.Ready:
		logging.Debugf("TrackPlayer[%s]: %s", p.id, ev.Kind)
	}
}

func (p *Player) play() {
	if !p.transition(Loading) {
		return
	}
	p.backend.ensureGraph(p.volume)

	p.invalidateAttempt()
	p.attempt++
	gen := p.attempt
	ctx, cancel := context.WithTimeout(context.Background(), playTimeout)
	p.cancelAttempt = cancel

	b, el, l := p.backend, p.el, p.loop
	p.spawn(func() {
		defer cancel()
		err := b.resume(ctx)
		if err == nil {
			err = el.Play(ctx)
		}
		l.Post(func() { p.playDone(gen, err) })
	})
}

func (p *Player) playDone(gen uint64, err error) {
	if p.disposed {
		return
	}
	if gen != p.attempt || p.Status() != Loading {
		if err == nil && !p.Status().Active() {
			// the user paused while the start was in flight
			p.pauseElement()
		}
		return
	}
	p.cancelAttempt = nil
	if err != nil {
		logging.Warnf("TrackPlayer[%s]: play rejected: %v", p.id, err)
		p.transition(Errored)
		return
	}
	p.armConfirm()
}

func (p *Player) pause() {
	switch p.Status() {
	case Loading:
		p.invalidateAttempt()
		p.cancelConfirm()
		p.transition(Paused)
		p.pauseElement()
	case Playing:
		p.transition(Paused)
		p.pauseElement()
		p.notifyPaused()
	}
}

func (p *Player) pauseElement() {
	p.el.Pause()
	p.pauseEcho = true
}

func (p *Player) armConfirm() {
	if p.confirm != nil {
		return
	}
	if p.delay == 0 {
		p.confirmPlaying()
		return
	}
	p.confirmSeq++
	seq := p.confirmSeq
	p.confirm = p.clock.AfterFunc(p.delay, func() {
		p.loop.Post(func() { p.confirmFired(seq) })
	})
}

func (p *Player) confirmFired(seq uint64) {
	if p.disposed || seq != p.confirmSeq || p.confirm == nil {
		return
	}
	p.confirm = nil
	if p.Status() == Loading {
		p.confirmPlaying()
	}
}

func (p *Player) confirmPlaying() {
	if !p.transition(Playing) {
		return
	}
	logging.Infof("TrackPlayer[%s]: playing (volume=%.2f, routed=%v)", p.id, p.volume, p.backend.routed())
	if p.observer != nil {
		p.observer.TrackPlaying(p.id)
	}
}

func (p *Player) notifyPaused() {
	logging.Infof("TrackPlayer[%s]: paused", p.id)
	if p.observer != nil {
		p.observer.TrackPaused(p.id)
	}
}

func (p *Player) cancelConfirm() {
	if p.confirm == nil {
		return
	}
	p.confirm.Stop()
	p.confirm = nil
	p.confirmSeq++
}

// invalidateAttempt makes any in-flight play result stale.
func (p *Player) invalidateAttempt() {
	p.attempt++
	if p.cancelAttempt != nil {
		p.cancelAttempt()
		p.cancelAttempt = nil
	}
}

func (p *Player) transition(to Status) bool {
	from := p.Status()
	if from == to {
		return true
	}
	if !p.sm.Transition(to) {
		logging.Warnf("TrackPlayer[%s]: refused transition %s -> %s", p.id, from, to)
		return false
	}
	logging.Debugf("TrackPlayer[%s]: %s -> %s", p.id, from, to)
	return true
}
