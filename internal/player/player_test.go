package player

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/liuscraft/noizee/internal/audio"
	"github.com/liuscraft/noizee/internal/audio/audiotest"
	"github.com/liuscraft/noizee/internal/clock/clocktest"
	"github.com/liuscraft/noizee/internal/loop/looptest"
)

type recorder struct {
	events []string
}

func (r *recorder) TrackPlaying(id string) { r.events = append(r.events, "play:"+id) }
func (r *recorder) TrackPaused(id string)  { r.events = append(r.events, "pause:"+id) }

type harness struct {
	q      *looptest.Queue
	clk    *clocktest.Clock
	el     *audiotest.Element
	router *audiotest.Router
	rec    *recorder
	p      *Player
}

func newHarness(t *testing.T, routed bool, mutate ...func(*Options)) *harness {
	t.Helper()
	h := &harness{
		q:   &looptest.Queue{},
		clk: clocktest.New(time.Unix(0, 0)),
		el:  audiotest.NewElement(),
		rec: &recorder{},
	}
	opts := Options{
		Volume:       DefaultVolume,
		ConfirmDelay: DefaultConfirmDelay,
		Clock:        h.clk,
		Loop:         h.q,
		Spawn:        func(f func()) { f() },
	}
	if routed {
		h.router = &audiotest.Router{}
		opts.Router = h.router
	}
	for _, m := range mutate {
		m(&opts)
	}
	h.p = New("rain", h.el, opts)
	h.p.SetObserver(h.rec)
	return h
}

// settle runs pending loop work and lets the confirmation delay elapse.
func (h *harness) settle() {
	h.q.Drain()
	h.clk.Advance(DefaultConfirmDelay)
	h.q.Drain()
}

func (h *harness) expectStatus(t *testing.T, want Status) {
	t.Helper()
	if got := h.p.Status(); got != want {
		t.Fatalf("status = %s, want %s", got, want)
	}
}

func (h *harness) expectEvents(t *testing.T, want ...string) {
	t.Helper()
	if !slices.Equal(h.rec.events, want) {
		t.Fatalf("notifications = %v, want %v", h.rec.events, want)
	}
}

func TestToggleConfirmsAfterDelay(t *testing.T) {
	h := newHarness(t, false)

	h.p.Toggle()
	h.expectStatus(t, Loading)
	h.q.Drain()
	h.clk.Advance(DefaultConfirmDelay - time.Millisecond)
	h.q.Drain()
	h.expectStatus(t, Loading)
	h.expectEvents(t)

	h.clk.Advance(time.Millisecond)
	h.q.Drain()
	h.expectStatus(t, Playing)
	h.expectEvents(t, "play:rain")

	h.p.Toggle()
	h.expectStatus(t, Paused)
	h.expectEvents(t, "play:rain", "pause:rain")
	if h.el.Playing() {
		t.Fatal("element should be paused")
	}
}

func TestZeroConfirmDelay(t *testing.T) {
	h := newHarness(t, false, func(o *Options) { o.ConfirmDelay = 0 })
	h.p.Toggle()
	h.q.Drain()
	h.expectStatus(t, Playing)
	h.expectEvents(t, "play:rain")
}

func TestPauseWithinConfirmWindowEmitsNothing(t *testing.T) {
	h := newHarness(t, false)

	h.p.Toggle()
	h.q.Drain()
	h.clk.Advance(100 * time.Millisecond)
	h.p.Toggle()
	h.expectStatus(t, Paused)

	h.clk.Advance(time.Second)
	h.q.Drain()
	h.expectStatus(t, Paused)
	h.expectEvents(t)
	if h.clk.Pending() != 0 {
		t.Fatalf("confirmation timer should be cancelled, %d pending", h.clk.Pending())
	}
}

func TestRapidToggleOpensOneRoute(t *testing.T) {
	h := newHarness(t, true)

	h.p.Toggle()
	h.p.Play()
	h.p.Toggle()
	h.p.Toggle()
	h.settle()

	h.expectStatus(t, Playing)
	h.expectEvents(t, "play:rain")
	if n := len(h.router.Routes()); n != 1 {
		t.Fatalf("expected one gain stage, got %d", n)
	}
	if n := h.el.Plays(); n != 2 {
		t.Fatalf("expected two play attempts, got %d", n)
	}
}

func TestVolumeNeverChangesStatus(t *testing.T) {
	volumes := []struct {
		in, want float64
	}{
		{0, 0},
		{0.25, 0.25},
		{0.5, 0.5},
		{1, 1},
		{-3, 0},
		{2, 1},
	}

	for _, routed := range []bool{false, true} {
		h := newHarness(t, routed)
		steps := []func(){
			func() {},
			func() { h.p.Toggle() },
			func() { h.settle() },
			func() { h.p.Toggle() },
		}
		for _, step := range steps {
			step()
			before := h.p.Status()
			for _, v := range volumes {
				h.p.SetVolume(v.in)
				if h.p.Status() != before {
					t.Fatalf("SetVolume(%v) changed status %s -> %s", v.in, before, h.p.Status())
				}
				if h.p.Volume() != v.want {
					t.Fatalf("Volume() = %v, want %v", h.p.Volume(), v.want)
				}
			}
		}
	}
}

func TestVolumeTarget(t *testing.T) {
	direct := newHarness(t, false)
	if direct.el.Volume() != DefaultVolume {
		t.Fatalf("element volume = %v, want default %v", direct.el.Volume(), DefaultVolume)
	}
	direct.p.SetVolume(0.7)
	if direct.el.Volume() != 0.7 {
		t.Fatalf("direct element volume = %v, want 0.7", direct.el.Volume())
	}

	routed := newHarness(t, true)
	routed.p.SetVolume(0.4)
	if routed.el.Volume() != 0.4 || len(routed.router.Routes()) != 0 {
		t.Fatalf("before the first play volume is stored on the element")
	}
	routed.p.Toggle()
	routed.settle()
	route := routed.router.Routes()[0]
	if route.Gain() != 0.4 || routed.el.Volume() != 1 {
		t.Fatalf("gain = %v, element = %v; want 0.4 and 1", route.Gain(), routed.el.Volume())
	}
	routed.p.SetVolume(0.9)
	if route.Gain() != 0.9 {
		t.Fatalf("gain = %v, want 0.9", route.Gain())
	}
	if !routed.p.Routed() {
		t.Fatal("expected routed player")
	}
}

func TestRouterRefusalFallsBackToElementVolume(t *testing.T) {
	h := newHarness(t, true)
	h.router.ConnectErr = audio.ErrUnroutable

	h.p.Toggle()
	h.settle()
	h.expectStatus(t, Playing)
	if h.p.Routed() {
		t.Fatal("player should not be routed")
	}
	h.p.SetVolume(0.6)
	if h.el.Volume() != 0.6 {
		t.Fatalf("element volume = %v, want 0.6", h.el.Volume())
	}
}

func TestPlayRejected(t *testing.T) {
	h := newHarness(t, false)
	h.el.SetPlayErr(errors.New("autoplay blocked"))

	h.p.Toggle()
	h.settle()
	h.expectStatus(t, Errored)
	h.expectEvents(t)

	h.el.SetPlayErr(nil)
	h.p.Toggle()
	h.settle()
	h.expectStatus(t, Playing)
	h.expectEvents(t, "play:rain")
}

func TestResumeRejected(t *testing.T) {
	h := newHarness(t, true)
	h.router.ResumeErr = audio.ErrNoOutput

	h.p.Toggle()
	h.settle()
	h.expectStatus(t, Errored)
	if h.el.Plays() != 0 {
		t.Fatalf("element should not be played when the output cannot resume")
	}
}

func TestFaultWhilePlaying(t *testing.T) {
	h := newHarness(t, false)
	h.p.Toggle()
	h.settle()

	h.p.HandleEvent(audio.Event{Kind: audio.Faulted, Err: errors.New("decode")})
	h.expectStatus(t, Errored)
	h.p.HandleEvent(audio.Event{Kind: audio.Faulted, Err: errors.New("decode")})
	h.expectEvents(t, "play:rain", "pause:rain")
}

func TestFaultWhileLoading(t *testing.T) {
	h := newHarness(t, false)
	h.p.Toggle()
	h.q.Drain()
	h.p.HandleEvent(audio.Event{Kind: audio.Faulted})
	h.settle()

	h.expectStatus(t, Errored)
	h.expectEvents(t)
}

func TestStartedEventArmsConfirmation(t *testing.T) {
	h := newHarness(t, false, func(o *Options) { o.Spawn = func(func()) {} })

	h.p.Toggle()
	h.p.HandleEvent(audio.Event{Kind: audio.Started})
	h.settle()
	h.expectStatus(t, Playing)
	h.expectEvents(t, "play:rain")
}

func TestUnsolicitedStartIsPaused(t *testing.T) {
	h := newHarness(t, false)
	h.p.HandleEvent(audio.Event{Kind: audio.Started})
	h.expectStatus(t, Idle)
	if h.el.Pauses() != 1 {
		t.Fatalf("expected the element to be paused, got %d pauses", h.el.Pauses())
	}
}

func TestExternalPauseEvent(t *testing.T) {
	h := newHarness(t, false)
	h.p.Toggle()
	h.settle()

	h.p.HandleEvent(audio.Event{Kind: audio.Paused})
	h.expectStatus(t, Paused)
	h.expectEvents(t, "play:rain", "pause:rain")
}

func TestPauseFromEarlierEpisodeIgnored(t *testing.T) {
	h := newHarness(t, false, func(o *Options) { o.ConfirmDelay = 0 })

	h.p.Toggle()
	h.q.Drain()
	h.p.Toggle()
	h.p.Toggle()
	h.q.Drain()
	h.expectStatus(t, Playing)

	// the element's report of our own pause arrives late
	h.p.HandleEvent(audio.Event{Kind: audio.Paused})
	h.expectStatus(t, Playing)
	h.expectEvents(t, "play:rain", "pause:rain", "play:rain")
	if !h.el.Playing() {
		t.Fatalf("expected the element to keep playing")
	}
}

func TestExternalPauseHonouredAfterRestart(t *testing.T) {
	h := newHarness(t, false, func(o *Options) { o.ConfirmDelay = 0 })

	h.p.Toggle()
	h.q.Drain()
	h.p.Toggle()
	h.p.HandleEvent(audio.Event{Kind: audio.Paused})
	h.p.Toggle()
	h.q.Drain()
	h.p.HandleEvent(audio.Event{Kind: audio.Started})
	h.expectStatus(t, Playing)

	h.p.HandleEvent(audio.Event{Kind: audio.Paused})
	h.expectStatus(t, Paused)
	h.expectEvents(t, "play:rain", "pause:rain", "play:rain", "pause:rain")
}

func TestStaleStartIsPausedAgain(t *testing.T) {
	var pending []func()
	h := newHarness(t, false, func(o *Options) {
		o.Spawn = func(f func()) { pending = append(pending, f) }
	})

	h.p.Toggle()
	for _, f := range pending {
		f()
	}
	h.p.Toggle()
	h.settle()

	h.expectStatus(t, Paused)
	h.expectEvents(t)
	if h.el.Pauses() != 2 {
		t.Fatalf("expected the late start to be paused again, got %d pauses", h.el.Pauses())
	}
}

func TestForcePause(t *testing.T) {
	loading := newHarness(t, false)
	loading.p.Toggle()
	loading.p.ForcePause()
	loading.expectStatus(t, Paused)
	loading.settle()
	loading.expectEvents(t)

	playing := newHarness(t, false)
	playing.p.Toggle()
	playing.settle()
	playing.p.ForcePause()
	playing.expectStatus(t, Paused)
	playing.expectEvents(t, "play:rain", "pause:rain")

	idle := newHarness(t, false)
	idle.p.ForcePause()
	idle.expectStatus(t, Idle)
}

func TestRewind(t *testing.T) {
	h := newHarness(t, false)
	h.el.SetPosition(5 * time.Second)
	h.p.Rewind()
	if h.el.Position() != 0 {
		t.Fatalf("position = %v, want 0", h.el.Position())
	}
}

func TestDispose(t *testing.T) {
	h := newHarness(t, true)
	h.p.Toggle()
	h.settle()

	h.p.Dispose()
	h.p.Dispose()
	h.expectEvents(t, "play:rain", "pause:rain")
	if !h.el.Closed() || !h.router.Routes()[0].Closed() {
		t.Fatal("dispose should close the element and the gain stage")
	}

	h.p.Toggle()
	h.p.HandleEvent(audio.Event{Kind: audio.Started})
	h.settle()
	h.expectStatus(t, Paused)

	idle := newHarness(t, true)
	idle.p.Dispose()
	if !idle.el.Closed() {
		t.Fatal("dispose should close an idle element")
	}
	if len(idle.router.Routes()) != 0 {
		t.Fatal("idle player should never have built a gain stage")
	}
}

func TestDisposeDuringLoading(t *testing.T) {
	h := newHarness(t, false)
	h.p.Toggle()
	h.p.Dispose()
	h.settle()
	h.expectEvents(t)
	if h.clk.Pending() != 0 {
		t.Fatalf("no timers should survive dispose, %d pending", h.clk.Pending())
	}
}
