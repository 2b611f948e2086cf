// Package scriptenv is the object graph a script execution sees: reads come
// from one immutable snapshot, writes become queued commands. It never
// touches host state, which is what makes it safe to evaluate inside an
// isolated runtime process. The embedded JavaScript runner mirrors this
// graph for the external runtime; scriptenv is the canonical form and the
// one the in-process fake runtime executes against.
package scriptenv

import (
	"github.com/tickbridge/tickbridge/command"
	"github.com/tickbridge/tickbridge/snapshot"
)

// Env binds one snapshot to one command queue for the duration of a single
// script execution. Handles returned for the same name share their
// optimistic local state, so sequential writes read back consistently.
type Env struct {
	snap    *snapshot.Snapshot
	queue   *command.Queue
	objects map[string]*Object
	scenes  map[string]*Scene
}

// New builds a fresh environment over snap, appending every mutation to
// queue. The queue is owned by the calling invocation and must not be
// shared across executions.
func New(snap *snapshot.Snapshot, queue *command.Queue) *Env {
	if snap == nil {
		snap = &snapshot.Snapshot{}
	}
	if queue == nil {
		queue = &command.Queue{}
	}
	return &Env{
		snap:    snap,
		queue:   queue,
		objects: make(map[string]*Object),
		scenes:  make(map[string]*Scene),
	}
}

// Object returns the shared handle for name. Names unknown to the snapshot
// still get a handle; their reads yield zero values.
func (e *Env) Object(name string) *Object {
	if o, ok := e.objects[name]; ok {
		return o
	}
	o := &Object{env: e, name: name, scale: snapshot.Vec3{1, 1, 1}}
	if st, ok := e.snap.Object(name); ok {
		o.known = true
		o.pos = st.Position
		o.rot = st.Rotation
		o.scale = st.Scale
		o.parent = st.Parent
		o.children = append([]string(nil), st.Children...)
		o.ray = st.RayCast
		o.props = make(map[string]any, len(st.Properties))
		for k, v := range st.Properties {
			o.props[k] = v
		}
	} else {
		o.props = make(map[string]any)
	}
	e.objects[name] = o
	return o
}

// Owner returns the handle for the controller's owning object, or nil when
// the snapshot carries no controller.
func (e *Env) Owner() *Object {
	if e.snap.Controller == nil || e.snap.Controller.Owner == "" {
		return nil
	}
	return e.Object(e.snap.Controller.Owner)
}

func (e *Env) Controller() (snapshot.ControllerInfo, bool) {
	if e.snap.Controller == nil {
		return snapshot.ControllerInfo{}, false
	}
	return *e.snap.Controller, true
}

func (e *Env) Engine() snapshot.EngineInfo {
	return e.snap.Engine
}

func (e *Env) Keyboard() snapshot.KeyboardState {
	return e.snap.Input.Keyboard
}

func (e *Env) Mouse() snapshot.MouseState {
	return e.snap.Input.Mouse
}

func (e *Env) Joystick() snapshot.JoystickState {
	return e.snap.Input.Joystick
}

// CurrentScene returns the handle for the snapshot's current scene.
func (e *Env) CurrentScene() *Scene {
	return e.scene(e.snap.Scenes.Current)
}

// Scene returns the handle for name and whether the snapshot knows it.
func (e *Env) Scene(name string) (*Scene, bool) {
	s := e.scene(name)
	return s, s.known
}

// Scenes returns handles for every scene in snapshot order.
func (e *Env) Scenes() []*Scene {
	out := make([]*Scene, 0, len(e.snap.Scenes.Scenes))
	for _, info := range e.snap.Scenes.Scenes {
		out = append(out, e.scene(info.Name))
	}
	return out
}

func (e *Env) scene(name string) *Scene {
	if s, ok := e.scenes[name]; ok {
		return s
	}
	s := &Scene{env: e, name: name}
	if info, ok := e.snap.Scenes.Scene(name); ok {
		s.known = true
		s.objectNames = append([]string(nil), info.Objects...)
	}
	e.scenes[name] = s
	return s
}

// SetGravity queues an engine-global gravity change.
func (e *Env) SetGravity(g snapshot.Vec3) {
	e.queue.Append(command.Command{Op: command.OpSetGravity, Gravity: &g})
}

// EndGame queues an engine shutdown request.
func (e *Env) EndGame() {
	e.queue.Append(command.Command{Op: command.OpEndGame})
}

// RestartGame queues an engine restart request.
func (e *Env) RestartGame() {
	e.queue.Append(command.Command{Op: command.OpRestartGame})
}

func (e *Env) controllerName() string {
	if e.snap.Controller == nil {
		return ""
	}
	return e.snap.Controller.Name
}
