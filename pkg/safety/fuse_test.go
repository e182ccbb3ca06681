package safety

import (
	"errors"
	"testing"

	"github.com/teslashibe/go-swarm/pkg/action"
	"github.com/teslashibe/go-swarm/pkg/sensor"
)

func frame(f, l, r float64) sensor.Frame {
	return sensor.Sanitize(sensor.Frame{Front: f, Left: l, Right: r, BatteryVoltage: 7.4, BatteryPercent: 90}, nil)
}

func TestEvaluate(t *testing.T) {
	fuse := NewFuse(DefaultConfig())

	tests := []struct {
		name     string
		f, l, r  float64
		kind     Kind
		rule     string
		act      action.Action
		leftFast bool
	}{
		{name: "front critical", f: 30, l: 300, r: 300, kind: Emergency, rule: "EMERGENCY_DISTANCE"},
		{name: "cornered", f: 45, l: 40, r: 38, kind: Emergency, rule: "EMERGENCY_DISTANCE"},
		{name: "trapped sides", f: 300, l: 55, r: 50, kind: Emergency, rule: "TRAPPED"},
		{name: "left wall", f: 200, l: 50, r: 300, kind: Reflex, rule: "SIDE_COLLISION_LEFT", act: action.TurnRight, leftFast: true},
		{name: "right wall", f: 200, l: 300, r: 50, kind: Reflex, rule: "SIDE_COLLISION_RIGHT", act: action.TurnLeft},
		{name: "front sharp right open", f: 80, l: 120, r: 300, kind: Reflex, rule: "FRONT_SHARP", act: action.TurnRight, leftFast: true},
		{name: "front sharp left open", f: 80, l: 300, r: 120, kind: Reflex, rule: "FRONT_SHARP", act: action.TurnLeft},
		{name: "front danger", f: 130, l: 300, r: 250, kind: Reflex, rule: "FRONT_DANGER", act: action.TurnLeft},
		{name: "asymmetric", f: 400, l: 100, r: 300, kind: SeekSpace, rule: "SEEK_SPACE", act: action.Forward, leftFast: true},
		{name: "open", f: 400, l: 300, r: 320, kind: Pass},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := fuse.Evaluate(frame(tt.f, tt.l, tt.r))
			if v.Kind != tt.kind {
				t.Fatalf("kind = %s, want %s", v.Kind, tt.kind)
			}
			if v.Rule != tt.rule {
				t.Errorf("rule = %q, want %q", v.Rule, tt.rule)
			}
			if tt.kind != Reflex && tt.kind != SeekSpace {
				return
			}
			d := v.Decision
			if d.Action != tt.act {
				t.Errorf("action = %s, want %s", d.Action, tt.act)
			}
			if d.Source != action.SourceSafety {
				t.Errorf("source = %s", d.Source)
			}
			if (d.SpeedLeft > d.SpeedRight) != tt.leftFast {
				t.Errorf("speeds %d/%d, leftFast=%v", d.SpeedLeft, d.SpeedRight, tt.leftFast)
			}
		})
	}
}

func TestSideCollisionSpeeds(t *testing.T) {
	v := NewFuse(DefaultConfig()).Evaluate(frame(200, 50, 300))
	if v.Decision.SpeedLeft != 140 || v.Decision.SpeedRight != 40 {
		t.Errorf("got %d/%d, want 140/40", v.Decision.SpeedLeft, v.Decision.SpeedRight)
	}
}

func TestFrontDangerTurnsGently(t *testing.T) {
	cfg := DefaultConfig()
	fuse := NewFuse(cfg)

	danger := fuse.Evaluate(frame(130, 300, 120))
	sharp := fuse.Evaluate(frame(80, 300, 120))
	if danger.Rule != "FRONT_DANGER" || sharp.Rule != "FRONT_SHARP" {
		t.Fatalf("rules = %s, %s", danger.Rule, sharp.Rule)
	}
	if danger.Decision.Direction() != sharp.Decision.Direction() {
		t.Errorf("danger turns %s, sharp turns %s", danger.Decision.Direction(), sharp.Decision.Direction())
	}
	if danger.Decision.SpeedRight != cfg.DangerFast || danger.Decision.SpeedLeft != cfg.DangerSlow {
		t.Errorf("danger speeds %d/%d, want %d/%d", danger.Decision.SpeedLeft, danger.Decision.SpeedRight, cfg.DangerSlow, cfg.DangerFast)
	}
	if danger.Decision.SpeedRight >= sharp.Decision.SpeedRight {
		t.Errorf("danger outer wheel %d should be slower than sharp %d", danger.Decision.SpeedRight, sharp.Decision.SpeedRight)
	}
}

func TestFuseAgreesWithCategoryTable(t *testing.T) {
	fuse := NewFuse(DefaultConfig())
	for _, fr := range []sensor.Frame{frame(80, 100, 300), frame(80, 300, 100), frame(200, 50, 300)} {
		v := fuse.Evaluate(fr)
		want := action.EscapeToward(fr.Left, fr.Right)
		if got := v.Decision.Direction(); got != want {
			t.Errorf("frame %+v: fuse turns %s, escape side %s", fr, got, want)
		}
	}
}

func TestValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	bad := DefaultConfig()
	bad.DangerDistance = 10
	if err := bad.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}

	bad = DefaultConfig()
	bad.SeekFast = 200
	if err := bad.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}
