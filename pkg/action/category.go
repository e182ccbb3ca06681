package action

import "fmt"

// Category is a situation class. It keys behavioral weights and maps to
// exactly one behavior.
type Category int

const (
	Unknown Category = iota
	Clear
	Corridor
	Normal
	LeftBlocked
	RightBlocked
	FrontBlocked
	Avoidance
	ExploreLeft
	ExploreRight
	Trapped
	Collision

	numCategories
)

var categoryNames = [numCategories]string{
	Unknown:      "unknown",
	Clear:        "clear",
	Corridor:     "corridor",
	Normal:       "normal",
	LeftBlocked:  "left_blocked",
	RightBlocked: "right_blocked",
	FrontBlocked: "front_blocked",
	Avoidance:    "avoidance",
	ExploreLeft:  "explore_left",
	ExploreRight: "explore_right",
	Trapped:      "trapped",
	Collision:    "collision",
}

// Categories returns every category in declaration order.
func Categories() []Category {
	out := make([]Category, 0, numCategories)
	for c := Category(0); c < numCategories; c++ {
		out = append(out, c)
	}
	return out
}

func (c Category) String() string {
	if c < 0 || c >= numCategories {
		return fmt.Sprintf("category(%d)", int(c))
	}
	return categoryNames[c]
}

// Valid reports whether c is a declared category.
func (c Category) Valid() bool {
	return c >= 0 && c < numCategories
}

// ParseCategory converts a stored name back to a Category.
func ParseCategory(s string) (Category, error) {
	for c, name := range categoryNames {
		if name == s {
			return Category(c), nil
		}
	}
	return Unknown, fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// MarshalText implements encoding.TextMarshaler.
func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCategory, int(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Category) UnmarshalText(b []byte) error {
	v, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Behavior is what a category asks the robot to do. Steer behaviors pick
// their side at resolve time with EscapeToward.
type Behavior struct {
	Action Action
	Left   int
	Right  int
	Steer  bool
}

var behaviors = [numCategories]Behavior{
	Unknown:      {Action: Forward, Left: 80, Right: 80},
	Clear:        {Action: Forward, Left: 120, Right: 120},
	Corridor:     {Action: Forward, Left: 90, Right: 90},
	Normal:       {Action: Forward, Left: 100, Right: 100},
	LeftBlocked:  {Action: TurnRight, Left: 140, Right: 40},
	RightBlocked: {Action: TurnLeft, Left: 40, Right: 140},
	FrontBlocked: {Steer: true, Left: 130, Right: 30},
	Avoidance:    {Steer: true, Left: 110, Right: 40},
	ExploreLeft:  {Action: TurnLeft, Left: 30, Right: 150},
	ExploreRight: {Action: TurnRight, Left: 150, Right: 30},
	Trapped:      {Action: Escape, Left: -120, Right: 120},
	Collision:    {Action: Stop},
}

// BehaviorOf returns the table entry for c. Undeclared categories get the
// Unknown behavior.
func BehaviorOf(c Category) Behavior {
	if !c.Valid() {
		return behaviors[Unknown]
	}
	return behaviors[c]
}

// Resolve turns a category into a concrete action and wheel speeds given
// the current side clearances. For steer behaviors Left is the outer wheel
// speed and Right the inner one.
func Resolve(c Category, left, right float64) (Action, int, int) {
	b := BehaviorOf(c)
	if !b.Steer {
		return b.Action, b.Left, b.Right
	}
	dir := EscapeToward(left, right)
	l, r := Turn(dir, b.Left, b.Right)
	return dir.TurnAction(), l, r
}
