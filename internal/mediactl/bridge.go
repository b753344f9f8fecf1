// Package mediactl keeps external media control surfaces in step with the
// mixer: their play, pause and stop intents drive the mixer, and the mixer's
// aggregate state is pushed back whenever playback starts or stops.
package mediactl

import (
	"github.com/liuscraft/noizee/internal/logging"
	"github.com/liuscraft/noizee/internal/loop"
	"github.com/liuscraft/noizee/internal/mixer"
)

// Controller is the part of the mixer the bridge drives.
type Controller interface {
	ResumeLast()
	PauseQuiet()
	Stop()
	Snapshot() mixer.State
	Subscribe(fn func(mixer.State)) (unsubscribe func())
}

// Bridge 媒体控制桥
type Bridge struct {
	name    string
	surface Surface
	ctl     Controller
	loop    loop.Poster

	inert       bool
	playing     bool
	unsubscribe func()
}

// Attach registers with surface. It must run on the loop. A nil surface or
// any registration failure yields an inert bridge, never an error.
func Attach(name string, surface Surface, ctl Controller, l loop.Poster, md Metadata) *Bridge {
	b := &Bridge{name: name, surface: surface, ctl: ctl, loop: l}
	if surface == nil {
		b.inert = true
		logging.Infof("Bridge[%s]: no media control surface", name)
		return b
	}

	if err := surface.SetMetadata(md); err != nil {
		b.fail("set metadata", err)
		return b
	}
	for _, action := range Actions {
		if err := surface.SetActionHandler(action, func() {
			l.Post(func() { b.handle(action) })
		}); err != nil {
			b.fail("register "+string(action), err)
			return b
		}
	}

	b.playing = ctl.Snapshot().PlayingCount > 0
	if !b.push() {
		return b
	}
	b.unsubscribe = ctl.Subscribe(b.onState)
	logging.Infof("Bridge[%s]: attached", name)
	return b
}

// Active reports whether the bridge still talks to its surface.
func (b *Bridge) Active() bool {
	return !b.inert
}

// Detach deregisters and closes the surface. Runs on the loop.
func (b *Bridge) Detach() {
	if b.unsubscribe != nil {
		b.unsubscribe()
		b.unsubscribe = nil
	}
	if b.inert {
		return
	}
	b.inert = true
	if err := b.surface.SetPlaybackState(StateNone); err != nil {
		logging.Debugf("Bridge[%s]: reset state on detach: %v", b.name, err)
	}
	if err := b.surface.Close(); err != nil {
		logging.Warnf("Bridge[%s]: close surface: %v", b.name, err)
	}
	logging.Infof("Bridge[%s]: detached", b.name)
}

func (b *Bridge) handle(action Action) {
	if b.inert {
		return
	}
	logging.Infof("Bridge[%s]: inbound %s", b.name, action)
	switch action {
	case ActionPlay:
		b.ctl.ResumeLast()
	case ActionPause:
		b.ctl.PauseQuiet()
	case ActionStop:
		b.ctl.Stop()
	}
}

func (b *Bridge) onState(s mixer.State) {
	if b.inert {
		return
	}
	playing := s.PlayingCount > 0
	if playing == b.playing {
		return
	}
	b.playing = playing
	b.push()
}

func (b *Bridge) push() bool {
	state := StatePaused
	if b.playing {
		state = StatePlaying
	}
	if err := b.surface.SetPlaybackState(state); err != nil {
		b.fail("push "+string(state), err)
		return false
	}
	return true
}

// fail makes the bridge inert. The surface is released but nothing propagates.
func (b *Bridge) fail(op string, err error) {
	logging.Infof("Bridge[%s]: %s failed, media controls disabled: %v", b.name, op, err)
	b.inert = true
	if b.unsubscribe != nil {
		b.unsubscribe()
		b.unsubscribe = nil
	}
	if cerr := b.surface.Close(); cerr != nil {
		logging.Debugf("Bridge[%s]: close after failure: %v", b.name, cerr)
	}
}
