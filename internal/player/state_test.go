package player

import "testing"

func TestStateMachineTransitions(t *testing.T) {
	tests := []struct {
		name          string
		from          Status
		to            Status
		shouldSucceed bool
	}{
		{"Idle to Loading", Idle, Loading, true},
		{"Idle to Errored", Idle, Errored, true},
		{"Idle to Playing", Idle, Playing, false},
		{"Loading to Playing", Loading, Playing, true},
		{"Loading to Paused", Loading, Paused, true},
		{"Loading to Errored", Loading, Errored, true},
		{"Playing to Paused", Playing, Paused, true},
		{"Playing to Loading", Playing, Loading, false},
		{"Paused to Loading", Paused, Loading, true},
		{"Paused to Playing", Paused, Playing, false},
		{"Errored to Loading", Errored, Loading, true},
		{"Errored to Paused", Errored, Paused, false},
	}

	sm := newStateMachine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm.current = tt.from
			result := sm.Transition(tt.to)
			if result != tt.shouldSucceed {
				t.Errorf("Transition(%v) = %v, want %v", tt.to, result, tt.shouldSucceed)
			}
			if result && sm.Current() != tt.to {
				t.Errorf("State after transition = %v, want %v", sm.Current(), tt.to)
			}
		})
	}
}

func TestStatusActive(t *testing.T) {
	for _, s := range []Status{Idle, Paused, Errored} {
		if s.Active() {
			t.Errorf("%s should not be active", s)
		}
	}
	for _, s := range []Status{Loading, Playing} {
		if !s.Active() {
			t.Errorf("%s should be active", s)
		}
	}
}
