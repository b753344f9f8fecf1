package mixer

// Indicator is the presentation of the global play/pause control.
type Indicator int

const (
	Hidden Indicator = iota
	ShowPause
	ShowResume
	ShowMuted
)

func (i Indicator) String() string {
	switch i {
	case ShowPause:
		return "pause"
	case ShowResume:
		return "resume"
	case ShowMuted:
		return "muted"
	default:
		return "hidden"
	}
}

// IndicatorFor derives the global control from a snapshot. The mute window
// wins over everything else.
func IndicatorFor(s State) Indicator {
	switch {
	case s.MuteActive:
		return ShowMuted
	case s.PlayingCount > 0:
		return ShowPause
	case len(s.Resumable) > 0:
		return ShowResume
	default:
		return Hidden
	}
}
