package knowledge

import (
	"github.com/teslashibe/go-swarm/pkg/action"
	"github.com/teslashibe/go-swarm/pkg/sensor"
)

// prototype is a canonical situation used to seed a knowledge base.
type prototype struct {
	label    string
	category action.Category
	front    float64
	left     float64
	right    float64
}

var prototypes = []prototype{
	{"CLEAR_PATH", action.Clear, 400, 350, 350},
	{"CLEAR_PATH_WIDE", action.Clear, 400, 400, 400},
	{"CORRIDOR", action.Corridor, 380, 120, 120},
	{"CORRIDOR_NARROW", action.Corridor, 300, 90, 100},
	{"NORMAL", action.Normal, 250, 220, 220},
	{"LEFT_WALL", action.LeftBlocked, 300, 70, 300},
	{"LEFT_OBSTACLE", action.LeftBlocked, 220, 80, 260},
	{"RIGHT_WALL", action.RightBlocked, 300, 300, 70},
	{"RIGHT_OBSTACLE", action.RightBlocked, 220, 260, 80},
	{"FRONT_OBSTACLE", action.FrontBlocked, 90, 200, 220},
	{"FRONT_OBSTACLE_LEFT", action.FrontBlocked, 90, 120, 300},
	{"FRONT_OBSTACLE_RIGHT", action.FrontBlocked, 90, 300, 120},
	{"AVOIDANCE_AHEAD", action.Avoidance, 150, 180, 200},
	{"EXPLORATION_LEFT", action.ExploreLeft, 220, 400, 180},
	{"EXPLORATION_RIGHT", action.ExploreRight, 220, 180, 400},
	{"TRAPPED", action.Trapped, 70, 70, 70},
	{"EMERGENCY_ESCAPE", action.Trapped, 60, 80, 75},
	{"COLLISION", action.Collision, 25, 150, 150},
}

// Prototypes returns seed concepts encoded from canonical situations. Wheel
// speeds are taken as cruising speed.
func Prototypes() []Concept {
	out := make([]Concept, 0, len(prototypes))
	for _, p := range prototypes {
		f := sensor.Sanitize(sensor.Frame{
			Front:      p.front,
			Left:       p.left,
			Right:      p.right,
			SpeedLeft:  sensor.DefaultSpeed,
			SpeedRight: sensor.DefaultSpeed,
		}, nil)
		out = append(out, Concept{
			Label:    p.label,
			Category: p.category,
			Vector:   sensor.Encode(f),
			Origin:   Static,
		})
	}
	return out
}
