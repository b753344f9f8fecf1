package audio

import (
	"fmt"
	"sync"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gordonklaus/portaudio"
)

// output is the device behind the engine. start must not block on playback.
type output interface {
	start(sr beep.SampleRate, frames int, fill func([][2]float64)) error
	close() error
}

func newOutput(driver string) (output, error) {
	switch normalizeDriver(driver) {
	case "portaudio":
		return &portaudioOutput{}, nil
	case "speaker":
		return &speakerOutput{}, nil
	case "null":
		return nullOutput{}, nil
	default:
		return nil, fmt.Errorf("unknown audio driver %q", driver)
	}
}

type portaudioOutput struct {
	mu     sync.Mutex
	stream *portaudio.Stream
	buf    [][2]float64
}

func (p *portaudioOutput) start(sr beep.SampleRate, frames int, fill func([][2]float64)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := portaudio.Initialize(); err != nil {
		return err
	}
	p.buf = make([][2]float64, frames)
	callback := func(out [][]float32) {
		n := len(out[0])
		if cap(p.buf) < n {
			p.buf = make([][2]float64, n)
		}
		buf := p.buf[:n]
		fill(buf)
		for i := range buf {
			out[0][i] = float32(buf[i][0])
			out[1][i] = float32(buf[i][1])
		}
	}

	stream, err := portaudio.OpenDefaultStream(0, 2, float64(sr), frames, callback)
	if err != nil {
		portaudio.Terminate()
		return err
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return err
	}
	p.stream = stream
	return nil
}

func (p *portaudioOutput) close() error {
	p.mu.Lock()
	stream := p.stream
	p.stream = nil
	p.mu.Unlock()

	if stream == nil {
		return nil
	}
	var firstErr error
	if err := stream.Stop(); err != nil {
		firstErr = err
	}
	if err := stream.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := portaudio.Terminate(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

type speakerOutput struct{}

func (speakerOutput) start(sr beep.SampleRate, frames int, fill func([][2]float64)) error {
	if err := speaker.Init(sr, frames); err != nil {
		return err
	}
	speaker.Play(beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		fill(samples)
		return len(samples), true
	}))
	return nil
}

func (speakerOutput) close() error {
	speaker.Clear()
	speaker.Close()
	return nil
}

// nullOutput discards audio. Used headless and in tests, where fill is driven by hand.
type nullOutput struct{}

func (nullOutput) start(beep.SampleRate, int, func([][2]float64)) error { return nil }

func (nullOutput) close() error { return nil }
