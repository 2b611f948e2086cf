package snapshot

import (
	"maps"
	"slices"
)

// Vec3 is an x, y, z triple. It serializes as a bare JSON array so the wire
// shape matches what script runtimes expect.
type Vec3 [3]float64

// Add returns v + o component-wise.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v[0] + o[0], v[1] + o[1], v[2] + o[2]}
}

// Sub returns v - o component-wise.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v[0] - o[0], v[1] - o[1], v[2] - o[2]}
}

// Scale returns v scaled by f.
func (v Vec3) Scale(f float64) Vec3 {
	return Vec3{v[0] * f, v[1] * f, v[2] * f}
}

// Dot returns the dot product of v and o.
func (v Vec3) Dot(o Vec3) float64 {
	return v[0]*o[0] + v[1]*o[1] + v[2]*o[2]
}

// EngineInfo describes the host engine clock at capture time.
type EngineInfo struct {
	FrameRate      float64 `json:"frame_rate"`
	CurrentFrame   uint64  `json:"current_frame"`
	TimeSinceStart float64 `json:"time_since_start"`
}

// ControllerInfo identifies the logic controller a script runs under.
type ControllerInfo struct {
	Name   string `json:"name"`
	Kind   string `json:"kind,omitempty"`
	Active bool   `json:"active"`
	Owner  string `json:"owner,omitempty"`
}

// SceneInfo lists one scene and its member object names in host order.
type SceneInfo struct {
	Name    string   `json:"name"`
	Objects []string `json:"objects,omitempty"`
}

// SceneSet names the current scene and every scene known this tick.
type SceneSet struct {
	Current string      `json:"current,omitempty"`
	Scenes  []SceneInfo `json:"scenes,omitempty"`
}

// Scene returns the entry for name, if present.
func (s SceneSet) Scene(name string) (SceneInfo, bool) {
	for _, sc := range s.Scenes {
		if sc.Name == name {
			return sc, true
		}
	}
	return SceneInfo{}, false
}

// RayCastResult is the host's resolution of a ray cast requested on a
// previous tick. A miss leaves the whole result absent.
type RayCastResult struct {
	Object string `json:"object"`
	Point  Vec3   `json:"point"`
	Normal Vec3   `json:"normal"`
}

// ObjectState is one object's observable state at capture time.
type ObjectState struct {
	Name       string         `json:"name"`
	Position   Vec3           `json:"position"`
	Rotation   Vec3           `json:"rotation"`
	Scale      Vec3           `json:"scale"`
	Parent     string         `json:"parent,omitempty"`
	Children   []string       `json:"children,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
	RayCast    *RayCastResult `json:"ray_cast,omitempty"`
}

func (o ObjectState) clone() ObjectState {
	o.Children = slices.Clone(o.Children)
	o.Properties = maps.Clone(o.Properties)
	if o.RayCast != nil {
		rc := *o.RayCast
		o.RayCast = &rc
	}
	return o
}

// KeyboardState carries key-name sets for one tick of keyboard input.
type KeyboardState struct {
	Pressed      []string `json:"pressed,omitempty"`
	JustPressed  []string `json:"just_pressed,omitempty"`
	JustReleased []string `json:"just_released,omitempty"`
}

// MouseState carries pointer position, button sets and wheel movement.
type MouseState struct {
	Position     [2]float64 `json:"position"`
	Pressed      []string   `json:"pressed,omitempty"`
	JustPressed  []string   `json:"just_pressed,omitempty"`
	JustReleased []string   `json:"just_released,omitempty"`
	WheelDelta   float64    `json:"wheel_delta,omitempty"`
}

// JoystickState carries per-device button and axis readings keyed by device
// index.
type JoystickState struct {
	Count   int               `json:"count"`
	Buttons map[int][]int     `json:"buttons,omitempty"`
	Axes    map[int][]float64 `json:"axes,omitempty"`
}

// InputState bundles every input device reading for one tick.
type InputState struct {
	Keyboard KeyboardState `json:"keyboard"`
	Mouse    MouseState    `json:"mouse"`
	Joystick JoystickState `json:"joystick"`
}

// Snapshot is the immutable per-tick view of host state handed to one script
// execution. It is built once before the execution, read freely during it,
// and discarded afterward; ray cast results are the only values the host
// threads from one tick into the next.
type Snapshot struct {
	Engine     EngineInfo             `json:"engine"`
	Controller *ControllerInfo        `json:"controller,omitempty"`
	Scenes     SceneSet               `json:"scenes"`
	Objects    map[string]ObjectState `json:"objects,omitempty"`
	Input      InputState             `json:"input"`
}

// Object returns the captured state for name, if present.
func (s *Snapshot) Object(name string) (ObjectState, bool) {
	st, ok := s.Objects[name]
	return st, ok
}

// Clone returns a deep copy. Snapshots are read-only by convention; Clone
// exists for hosts that keep one beyond the tick that built it.
func (s *Snapshot) Clone() *Snapshot {
	out := *s
	if s.Controller != nil {
		c := *s.Controller
		out.Controller = &c
	}
	out.Scenes.Scenes = make([]SceneInfo, len(s.Scenes.Scenes))
	for i, sc := range s.Scenes.Scenes {
		sc.Objects = slices.Clone(sc.Objects)
		out.Scenes.Scenes[i] = sc
	}
	if s.Objects != nil {
		out.Objects = make(map[string]ObjectState, len(s.Objects))
		for name, st := range s.Objects {
			out.Objects[name] = st.clone()
		}
	}
	out.Input.Keyboard.Pressed = slices.Clone(s.Input.Keyboard.Pressed)
	out.Input.Keyboard.JustPressed = slices.Clone(s.Input.Keyboard.JustPressed)
	out.Input.Keyboard.JustReleased = slices.Clone(s.Input.Keyboard.JustReleased)
	out.Input.Mouse.Pressed = slices.Clone(s.Input.Mouse.Pressed)
	out.Input.Mouse.JustPressed = slices.Clone(s.Input.Mouse.JustPressed)
	out.Input.Mouse.JustReleased = slices.Clone(s.Input.Mouse.JustReleased)
	if s.Input.Joystick.Buttons != nil {
		out.Input.Joystick.Buttons = make(map[int][]int, len(s.Input.Joystick.Buttons))
		for k, v := range s.Input.Joystick.Buttons {
			out.Input.Joystick.Buttons[k] = slices.Clone(v)
		}
	}
	if s.Input.Joystick.Axes != nil {
		out.Input.Joystick.Axes = make(map[int][]float64, len(s.Input.Joystick.Axes))
		for k, v := range s.Input.Joystick.Axes {
			out.Input.Joystick.Axes[k] = slices.Clone(v)
		}
	}
	return &out
}
