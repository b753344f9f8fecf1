// Package mixer aggregates track players into one global play, pause and
// resume protocol. Like the players it coordinates, a Controller is confined
// to the event loop.
package mixer

import (
	"time"

	"github.com/samber/lo"

	"github.com/liuscraft/noizee/internal/clock"
	"github.com/liuscraft/noizee/internal/logging"
	"github.com/liuscraft/noizee/internal/loop"
	"github.com/liuscraft/noizee/internal/player"
)

const DefaultMuteTimeout = 3000 * time.Millisecond

// State 混音器聚合状态快照
type State struct {
	PlayingCount int
	// Resumable holds the ids captured by the last pause-all or stop, in track order.
	Resumable    []string
	MuteActive   bool
	MuteDeadline time.Time
}

type Options struct {
	MuteTimeout time.Duration
	Clock       clock.Clock
	Loop        loop.Poster
}

type subscriber struct {
	id uint64
	fn func(State)
}

// Controller 混音控制器 (MixerController)
type Controller struct {
	clock       clock.Clock
	loop        loop.Poster
	muteTimeout time.Duration

	players []*player.Player
	byID    map[string]*player.Player

	playing      int
	resumable    []string
	muteActive   bool
	muteDeadline time.Time
	muteTimer    clock.Timer
	muteSeq      uint64

	// batching suppresses publication while an operation pauses many players
	batching bool

	subs    []subscriber
	nextSub uint64
}

var _ player.Observer = (*Controller)(nil)

func New(opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.MuteTimeout < 0 {
		opts.MuteTimeout = 0
	}
	return &Controller{
		clock:       opts.Clock,
		loop:        opts.Loop,
		muteTimeout: opts.MuteTimeout,
		byID:        make(map[string]*player.Player),
	}
}

// SetPlayers replaces the collection. Previous players are disposed and all
// aggregate state is reset.
func (c *Controller) SetPlayers(players []*player.Player) {
	c.batching = true
	for _, p := range c.players {
		p.Dispose()
	}
	c.batching = false

	c.cancelMute()
	c.resumable = nil
	c.players = append([]*player.Player(nil), players...)
	c.byID = lo.KeyBy(c.players, func(p *player.Player) string { return p.ID() })
	for _, p := range c.players {
		p.SetObserver(c)
	}
	c.playing = lo.CountBy(c.players, func(p *player.Player) bool { return p.Status() == player.Playing })

	logging.Infof("Mixer: %d tracks loaded", len(c.players))
	c.publish()
}

func (c *Controller) Players() []*player.Player {
	return append([]*player.Player(nil), c.players...)
}

func (c *Controller) Player(id string) (*player.Player, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// Toggle is a manual toggle of one track. Starting a track supersedes the
// resumable set and the mute indicator at once.
func (c *Controller) Toggle(id string) bool {
	p, ok := c.byID[id]
	if !ok {
		return false
	}
	p.Toggle()
	if p.Status() == player.Loading {
		c.resumable = nil
		c.cancelMute()
	}
	c.publish()
	return true
}

func (c *Controller) SetVolume(id string, v float64) bool {
	p, ok := c.byID[id]
	if !ok {
		return false
	}
	p.SetVolume(v)
	c.publish()
	return true
}

// PauseAll captures the playing set, pauses everything and shows the mute
// indicator for the mute timeout.
func (c *Controller) PauseAll() {
	c.capture("pause-all", true, false)
}

// PauseQuiet is PauseAll without the mute indicator.
func (c *Controller) PauseQuiet() {
	c.capture("pause", false, false)
}

// Stop is PauseQuiet that also rewinds every track.
func (c *Controller) Stop() {
	c.capture("stop", false, true)
}

// ResumeLast plays every captured track again and clears the resumable set.
func (c *Controller) ResumeLast() {
	episode := logging.StartEpisode()
	ids := c.resumable
	c.resumable = nil
	c.cancelMute()

	for _, id := range ids {
		if p, ok := c.byID[id]; ok {
			p.Play()
		}
	}
	logging.Infof("Mixer: resume %v (episode %d)", ids, episode)
	c.publish()
}

func (c *Controller) ToggleGlobal() {
	switch {
	case c.playing > 0:
		c.PauseAll()
	case len(c.resumable) > 0:
		c.ResumeLast()
	default:
		logging.Debugf("Mixer: global toggle with nothing to do")
	}
}

func (c *Controller) Snapshot() State {
	return State{
		PlayingCount: c.playing,
		Resumable:    append([]string(nil), c.resumable...),
		MuteActive:   c.muteActive,
		MuteDeadline: c.muteDeadline,
	}
}

// Subscribe registers fn for every state change. The returned func removes it.
func (c *Controller) Subscribe(fn func(State)) (unsubscribe func()) {
	c.nextSub++
	id := c.nextSub
	c.subs = append(c.subs, subscriber{id: id, fn: fn})
	return func() {
		c.subs = lo.Reject(c.subs, func(s subscriber, _ int) bool { return s.id == id })
	}
}

// TrackPlaying implements player.Observer.
func (c *Controller) TrackPlaying(id string) {
	c.playing++
	// a confirmed start supersedes the controller's own bookkeeping
	c.resumable = nil
	c.cancelMute()
	logging.Debugf("Mixer: %s playing (count=%d)", id, c.playing)
	c.publish()
}

// TrackPaused implements player.Observer.
func (c *Controller) TrackPaused(id string) {
	if c.playing > 0 {
		c.playing--
	}
	logging.Debugf("Mixer: %s paused (count=%d)", id, c.playing)
	c.publish()
}

func (c *Controller) capture(reason string, mute, rewind bool) {
	episode := logging.StartEpisode()
	set := lo.FilterMap(c.players, func(p *player.Player, _ int) (string, bool) {
		return p.ID(), p.Status() == player.Playing
	})

	c.batching = true
	for _, p := range c.players {
		p.ForcePause()
		if rewind {
			p.Rewind()
		}
	}
	c.batching = false

	c.playing = 0
	c.resumable = set
	if mute {
		c.armMute()
	}
	logging.Infof("Mixer: %s captured %v (episode %d)", reason, set, episode)
	c.publish()
}

func (c *Controller) armMute() {
	c.cancelMute()
	c.muteActive = true
	c.muteDeadline = c.clock.Now().Add(c.muteTimeout)
	c.muteSeq++
	seq := c.muteSeq
	c.muteTimer = c.clock.AfterFunc(c.muteTimeout, func() {
		c.loop.Post(func() { c.muteExpired(seq) })
	})
}

func (c *Controller) muteExpired(seq uint64) {
	if seq != c.muteSeq || !c.muteActive {
		return
	}
	c.muteTimer = nil
	c.muteActive = false
	c.muteDeadline = time.Time{}
	c.publish()
}

func (c *Controller) cancelMute() {
	if c.muteTimer != nil {
		c.muteTimer.Stop()
		c.muteTimer = nil
	}
	c.muteSeq++
	c.muteActive = false
	c.muteDeadline = time.Time{}
}

func (c *Controller) publish() {
	if c.batching {
		return
	}
	state := c.Snapshot()
	for _, s := range append([]subscriber(nil), c.subs...) {
		s.fn(state)
	}
}
