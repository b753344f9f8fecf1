package audio

import "github.com/gopxl/beep/v2/effects"

// route is the gain stage spliced between a clip and the engine output.
type route struct {
	clip *Clip
	gain *effects.Volume
}

var _ Route = (*route)(nil)

// newRoute is called with engine.mu held.
func newRoute(c *Clip) *route {
	r := &route{
		clip: c,
		gain: &effects.Volume{Base: 2},
	}
	return r
}

func (r *route) SetGain(v float64) {
	e := r.clip.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	setLinear(r.gain, v)
}

// Close removes the gain stage; the clip keeps playing at its own volume.
func (r *route) Close() error {
	e := r.clip.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	if r.clip.route != r {
		return nil
	}
	r.clip.route = nil
	r.clip.rewire()
	return nil
}
