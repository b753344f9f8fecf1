package player

import "slices"

// Status 播放器状态
type Status int

const (
	Idle Status = iota
	Loading
	Playing
	Paused
	Errored
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}

// Active reports whether a toggle in this status pauses rather than plays.
func (s Status) Active() bool {
	return s == Loading || s == Playing
}

var validTransitions = map[Status][]Status{
	Idle:    {Loading, Errored},
	Loading: {Playing, Paused, Errored},
	Playing: {Paused, Errored},
	Paused:  {Loading, Errored},
	Errored: {Loading},
}

// stateMachine 状态机
type stateMachine struct {
	current Status
}

func newStateMachine() *stateMachine {
	return &stateMachine{current: Idle}
}

// CanTransition 检查是否可以转换
func (sm *stateMachine) CanTransition(to Status) bool {
	validTo, ok := validTransitions[sm.current]
	if !ok {
		return false
	}
	return slices.Contains(validTo, to)
}

// Transition 状态转换
func (sm *stateMachine) Transition(to Status) bool {
	if sm.CanTransition(to) {
		sm.current = to
		return true
	}
	return false
}

func (sm *stateMachine) Current() Status {
	return sm.current
}
