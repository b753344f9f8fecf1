package player

import (
	"context"

	"github.com/liuscraft/noizee/internal/audio"
	"github.com/liuscraft/noizee/internal/logging"
)

// backend is the volume/graph capability chosen once per player.
type backend interface {
	// ensureGraph builds the routing resource on the first play attempt. Runs on the loop.
	ensureGraph(volume float64)
	// resume prepares the output before the element plays. Runs off the loop.
	resume(ctx context.Context) error
	setVolume(v float64)
	routed() bool
	release()
}

func newBackend(id string, el audio.Element, router audio.Router) backend {
	if router == nil {
		return &directBackend{el: el}
	}
	return &routedBackend{id: id, el: el, router: router}
}

// directBackend drives the element's own volume.
type directBackend struct {
	el audio.Element
}

func (b *directBackend) ensureGraph(float64) {}

func (b *directBackend) resume(context.Context) error { return nil }

func (b *directBackend) setVolume(v float64) { b.el.SetVolume(v) }

func (b *directBackend) routed() bool { return false }

func (b *directBackend) release() {}

// routedBackend splices a gain stage in front of the output. If the router
// refuses the element it degrades to direct volume for good.
type routedBackend struct {
	id       string
	el       audio.Element
	router   audio.Router
	route    audio.Route
	tried    bool
	fallback bool
}

func (b *routedBackend) ensureGraph(volume float64) {
	if b.tried {
		return
	}
	b.tried = true

	route, err := b.router.Connect(b.el)
	if err != nil {
		logging.Warnf("TrackPlayer[%s]: gain stage unavailable, using element volume: %v", b.id, err)
		b.fallback = true
		b.el.SetVolume(volume)
		return
	}
	b.route = route
	b.el.SetVolume(1)
	b.route.SetGain(volume)
	logging.Debugf("TrackPlayer[%s]: gain stage connected", b.id)
}

func (b *routedBackend) resume(ctx context.Context) error {
	return b.router.Resume(ctx)
}

func (b *routedBackend) setVolume(v float64) {
	if b.route != nil {
		b.route.SetGain(v)
		return
	}
	b.el.SetVolume(v)
}

func (b *routedBackend) routed() bool { return b.route != nil }

func (b *routedBackend) release() {
	if b.route == nil {
		return
	}
	if err := b.route.Close(); err != nil {
		logging.Warnf("TrackPlayer[%s]: failed to close gain stage: %v", b.id, err)
	}
	b.route = nil
}
