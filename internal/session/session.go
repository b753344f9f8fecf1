// Package session wires the manifest, players, mixer and media control
// bridges together and exposes them through a goroutine-safe facade.
package session

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/liuscraft/noizee/internal/audio"
	"github.com/liuscraft/noizee/internal/clock"
	"github.com/liuscraft/noizee/internal/config"
	"github.com/liuscraft/noizee/internal/logging"
	"github.com/liuscraft/noizee/internal/loop"
	"github.com/liuscraft/noizee/internal/manifest"
	"github.com/liuscraft/noizee/internal/mediactl"
	"github.com/liuscraft/noizee/internal/mediactl/mpris"
	"github.com/liuscraft/noizee/internal/mediactl/remote"
	"github.com/liuscraft/noizee/internal/mixer"
	"github.com/liuscraft/noizee/internal/player"
)

// Track 单个片段的只读视图，Icon 为图标文件路径（没有图标时为空）
type Track struct {
	ID     string
	Name   string
	Icon   string
	Status player.Status
	Volume float64
	Routed bool
}

// View is a consistent snapshot of the whole session.
type View struct {
	Tracks    []Track
	Mixer     mixer.State
	Indicator mixer.Indicator
	// Bridges lists the media control surfaces that are attached and working.
	Bridges []string
}

// ElementFactory builds the playback element for a clip.
type ElementFactory func(clip manifest.Clip) audio.Element

type Option func(*Session)

// WithElements replaces the audio engine. router may be nil.
func WithElements(factory ElementFactory, router audio.Router) Option {
	return func(s *Session) {
		s.factory = factory
		s.router = router
		s.customElements = true
	}
}

// WithSurfaces replaces the configured media control surfaces.
func WithSurfaces(surfaces map[string]mediactl.Surface) Option {
	return func(s *Session) {
		s.surfaces = surfaces
	}
}

func WithClock(c clock.Clock) Option {
	return func(s *Session) {
		s.clock = c
	}
}

const reloadTimeout = 10 * time.Second

type namedBridge struct {
	name   string
	bridge *mediactl.Bridge
}

type Session struct {
	cfg   *config.AppConfig
	loop  *loop.Loop
	clock clock.Clock

	engine         *audio.Engine
	factory        ElementFactory
	router         audio.Router
	customElements bool
	surfaces       map[string]mediactl.Surface

	watcher *manifest.Watcher
	// ctx is cancelled by Close; background work derives from it
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once    sync.Once

	// loop confined
	mixer   *mixer.Controller
	clips   []manifest.Clip
	bridges []namedBridge
}

func New(cfg *config.AppConfig, opts ...Option) (*Session, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	s := &Session{
		cfg:   cfg,
		clock: clock.Real(),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(s)
	}

	if !s.customElements {
		engine, err := audio.NewEngine(&audio.EngineConfig{
			Driver:     cfg.Audio.Driver,
			SampleRate: cfg.Audio.SampleRate,
			BufferMs:   cfg.Audio.BufferMs,
		})
		if err != nil {
			return nil, fmt.Errorf("create audio engine: %w", err)
		}
		s.engine = engine
		s.factory = func(clip manifest.Clip) audio.Element {
			return engine.NewClip(clip.ID, manifest.SoundPath(cfg.Manifest.AssetsDir, clip))
		}
		if cfg.Audio.GainStage {
			s.router = engine
		}
	}

	s.loop = loop.New()
	s.mixer = mixer.New(mixer.Options{
		MuteTimeout: time.Duration(cfg.Playback.MuteTimeoutMs) * time.Millisecond,
		Clock:       s.clock,
		Loop:        s.loop,
	})
	return s, nil
}

// Start loads the manifest, builds the players and attaches the media
// control bridges. None of these can fail the session.
func (s *Session) Start(ctx context.Context) error {
	logging.SetSessionID(logging.NewSessionID())
	clips := manifest.Load(ctx, s.cfg.Manifest.Source)

	surfaces := s.surfaces
	if surfaces == nil {
		surfaces = s.dialSurfaces()
	}

	s.loop.Do(func() {
		s.setClips(clips)
		for _, name := range sortedKeys(surfaces) {
			b := mediactl.Attach(name, surfaces[name], s.mixer, s.loop, mediactl.Metadata{
				Title:  "noizee",
				Artist: "ambient soundscape",
			})
			s.bridges = append(s.bridges, namedBridge{name: name, bridge: b})
		}
	})

	if s.cfg.Manifest.Watch && !manifest.IsRemote(s.cfg.Manifest.Source) {
		w, err := manifest.NewWatcher(s.cfg.Manifest.Source)
		if err != nil {
			logging.Warnf("Session: manifest watch disabled: %v", err)
		} else {
			s.watcher = w
			s.wg.Add(1)
			go s.watch(w)
		}
	}
	logging.Infof("Session: started with %d clips", len(clips))
	return nil
}

// Close tears down bridges, players and the audio engine.
func (s *Session) Close() error {
	var err error
	s.once.Do(func() {
		s.cancel()
		if s.watcher != nil {
			s.watcher.Close()
		}
		s.loop.Do(func() {
			for _, nb := range s.bridges {
				nb.bridge.Detach()
			}
			s.bridges = nil
			s.mixer.SetPlayers(nil)
		})
		s.loop.Close()
		s.wg.Wait()
		if s.engine != nil {
			err = s.engine.Close()
		}
		logging.Infof("Session: closed")
	})
	return err
}

// Reload fetches the manifest again and replaces every player. It does
// nothing once Close has started.
func (s *Session) Reload(ctx context.Context) {
	clips := manifest.Load(ctx, s.cfg.Manifest.Source)
	s.loop.Do(func() {
		// Close cancels before it posts its dispose task
		if s.ctx.Err() != nil {
			return
		}
		s.setClips(clips)
	})
}

func (s *Session) Toggle(id string) bool {
	var ok bool
	s.loop.Do(func() { ok = s.mixer.Toggle(id) })
	return ok
}

func (s *Session) SetVolume(id string, v float64) bool {
	var ok bool
	s.loop.Do(func() { ok = s.mixer.SetVolume(id, v) })
	return ok
}

func (s *Session) PauseAll() {
	s.loop.Do(s.mixer.PauseAll)
}

func (s *Session) Stop() {
	s.loop.Do(s.mixer.Stop)
}

func (s *Session) ResumeLast() {
	s.loop.Do(s.mixer.ResumeLast)
}

func (s *Session) ToggleGlobal() {
	s.loop.Do(s.mixer.ToggleGlobal)
}

func (s *Session) View() View {
	var v View
	s.loop.Do(func() { v = s.view() })
	return v
}

// Subscribe calls fn with a fresh View after every mixer change. fn runs on
// the event loop and must not call back into the Session.
func (s *Session) Subscribe(fn func(View)) (unsubscribe func()) {
	var unsub func()
	s.loop.Do(func() {
		unsub = s.mixer.Subscribe(func(mixer.State) { fn(s.view()) })
	})
	return func() {
		s.loop.Do(func() {
			if unsub != nil {
				unsub()
			}
		})
	}
}

func (s *Session) setClips(clips []manifest.Clip) {
	players := make([]*player.Player, 0, len(clips))
	for _, clip := range clips {
		el := s.factory(clip)
		opts := player.DefaultOptions(s.loop)
		opts.Volume = s.cfg.Playback.DefaultVolume
		opts.ConfirmDelay = time.Duration(s.cfg.Playback.ConfirmDelayMs) * time.Millisecond
		opts.Router = s.router
		opts.Clock = s.clock
		p := player.New(clip.ID, el, opts)
		s.pump(p, el.Events())
		players = append(players, p)
	}
	s.clips = clips
	s.mixer.SetPlayers(players)
}

// pump forwards element events to the loop until the element closes.
func (s *Session) pump(p *player.Player, events <-chan audio.Event) {
	if events == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				s.loop.Post(func() { p.HandleEvent(ev) })
			case <-s.ctx.Done():
				return
			}
		}
	}()
}

func (s *Session) watch(w *manifest.Watcher) {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logging.Warnf("Session: manifest watch: %v", err)
		case _, ok := <-w.Events:
			if !ok {
				return
			}
			logging.Infof("Session: manifest changed, reloading")
			ctx, cancel := context.WithTimeout(s.ctx, reloadTimeout)
			s.Reload(ctx)
			cancel()
		}
	}
}

func (s *Session) view() View {
	state := s.mixer.Snapshot()
	names := lo.SliceToMap(s.clips, func(c manifest.Clip) (string, manifest.Clip) { return c.ID, c })
	tracks := lo.Map(s.mixer.Players(), func(p *player.Player, _ int) Track {
		clip := names[p.ID()]
		return Track{
			ID:     p.ID(),
			Name:   clip.DisplayName,
			Icon:   manifest.IconPath(s.cfg.Manifest.AssetsDir, clip),
			Status: p.Status(),
			Volume: p.Volume(),
			Routed: p.Routed(),
		}
	})
	bridges := lo.FilterMap(s.bridges, func(nb namedBridge, _ int) (string, bool) {
		return nb.name, nb.bridge.Active()
	})
	return View{
		Tracks:    tracks,
		Mixer:     state,
		Indicator: mixer.IndicatorFor(state),
		Bridges:   bridges,
	}
}

func (s *Session) dialSurfaces() map[string]mediactl.Surface {
	surfaces := make(map[string]mediactl.Surface)
	mc := s.cfg.MediaControl
	if mc.MPRIS.Enable {
		surface, err := mpris.Dial(mc.MPRIS.Name)
		if err != nil {
			logging.Infof("Session: MPRIS unavailable: %v", err)
			surfaces["mpris"] = nil
		} else {
			surfaces["mpris"] = surface
		}
	}
	if mc.Remote.Enable {
		server, err := remote.Listen(mc.Remote.Addr)
		if err != nil {
			logging.Infof("Session: remote control unavailable: %v", err)
			surfaces["remote"] = nil
		} else {
			surfaces["remote"] = server
		}
	}
	return surfaces
}

func sortedKeys(m map[string]mediactl.Surface) []string {
	keys := lo.Keys(m)
	slices.Sort(keys)
	return keys
}
