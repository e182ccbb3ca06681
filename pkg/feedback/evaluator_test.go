package feedback

import (
	"testing"

	"github.com/teslashibe/go-swarm/pkg/action"
	"github.com/teslashibe/go-swarm/pkg/sensor"
)

func fr(f, l, r float64) sensor.Frame {
	return sensor.Frame{Front: f, Left: l, Right: r}
}

func TestSuccess(t *testing.T) {
	e := NewEvaluator(DefaultConfig())

	tests := []struct {
		name      string
		prev, cur sensor.Frame
		act       action.Action
		want      bool
	}{
		{"forward kept clearance", fr(300, 200, 200), fr(290, 200, 200), action.Forward, true},
		{"forward lost clearance", fr(300, 200, 200), fr(270, 200, 200), action.Forward, false},
		{"forward into collision", fr(300, 200, 200), fr(300, 35, 200), action.Forward, false},
		{"left turn opened left", fr(200, 100, 300), fr(200, 120, 280), action.TurnLeft, true},
		{"left turn within tolerance", fr(200, 100, 300), fr(200, 91, 280), action.TurnLeft, true},
		{"left turn closed left", fr(200, 100, 300), fr(200, 80, 280), action.TurnLeft, false},
		{"right turn opened right", fr(200, 300, 100), fr(200, 280, 130), action.TurnRight, true},
		{"right turn closed right", fr(200, 300, 100), fr(200, 280, 70), action.TurnRight, false},
		{"reverse gained room", fr(45, 50, 50), fr(80, 60, 55), action.Reverse, true},
		{"reverse no gain", fr(45, 50, 50), fr(45, 50, 60), action.Reverse, false},
		{"escape gained room", fr(70, 70, 70), fr(120, 90, 80), action.Escape, true},
		{"stop safe", fr(100, 100, 100), fr(100, 100, 100), action.Stop, true},
		{"stop too close", fr(100, 100, 100), fr(55, 100, 100), action.Stop, false},
		{"unknown action", fr(100, 100, 100), fr(100, 100, 100), action.Action("JUMP"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.Success(tt.prev, tt.cur, tt.act); got != tt.want {
				t.Errorf("Success = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatal(err)
	}
	bad := DefaultConfig()
	bad.SafeFloor = -1
	if err := bad.Validate(); err == nil {
		t.Error("expected error")
	}
}
