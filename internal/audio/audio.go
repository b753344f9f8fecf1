package audio

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/gopxl/beep/v2/effects"
)

var (
	ErrClosed        = errors.New("audio: closed")
	ErrUnroutable    = errors.New("audio: element cannot be routed through this engine")
	ErrAlreadyRouted = errors.New("audio: element already routed")
	ErrNoOutput      = errors.New("audio: no output device")
)

// EventKind 播放元素上报的硬件事件类型
type EventKind int

const (
	Started EventKind = iota
	Paused
	Buffering
	Ready
	Faulted
)

func (k EventKind) String() string {
	switch k {
	case Started:
		return "started"
	case Paused:
		return "paused"
	case Buffering:
		return "buffering"
	case Ready:
		return "ready"
	case Faulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// Event 播放元素事件，Faulted 时 Err 非空
type Event struct {
	Kind EventKind
	Err  error
}

// Element 单个片段的播放能力
type Element interface {
	// Play starts playback, buffering first if needed. It may block and may fail.
	Play(ctx context.Context) error
	Pause()
	SetPosition(d time.Duration) error
	// SetVolume sets the element's own volume, used when no gain stage is routed.
	SetVolume(v float64)
	Events() <-chan Event
	Close() error
}

// Route 已构建的增益级
type Route interface {
	SetGain(v float64)
	Close() error
}

// Router 可选的路由能力：source -> gain -> output
type Router interface {
	Connect(el Element) (Route, error)
	// Resume opens the output if it is still suspended.
	Resume(ctx context.Context) error
}

// ClampVolume limits v to [0,1]. NaN maps to 0.
func ClampVolume(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// setLinear maps a linear level onto a base-2 effects.Volume.
func setLinear(v *effects.Volume, level float64) {
	level = ClampVolume(level)
	if level == 0 {
		v.Silent = true
		v.Volume = 0
		return
	}
	v.Silent = false
	v.Volume = math.Log2(level)
}
