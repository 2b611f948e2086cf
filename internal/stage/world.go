package stage

import (
	"slices"

	"github.com/tickbridge/tickbridge/host"
	"github.com/tickbridge/tickbridge/snapshot"
)

var (
	_ host.Model       = (*World)(nil)
	_ host.InputSource = (*World)(nil)
)

// World is the live form of a WorldFile. The file is retained as the
// restart blueprint.
type World struct {
	blueprint WorldFile

	frameRate float64
	frame     uint64
	elapsed   float64

	gravity snapshot.Vec3
	input   snapshot.InputState

	sceneOrder []string
	scenes     map[string]*Scene
	current    string

	ctrlOrder   []string
	controllers map[string]snapshot.ControllerInfo

	ended    bool
	restarts int
}

func NewWorld(file WorldFile) (*World, error) {
	if err := validateWorldFile(file); err != nil {
		return nil, err
	}
	w := &World{blueprint: file}
	w.reset()
	return w, nil
}

func (w *World) reset() {
	file := w.blueprint

	w.frameRate = file.Engine.FrameRate
	if w.frameRate <= 0 {
		w.frameRate = 60
	}
	w.frame = 0
	w.elapsed = 0
	w.gravity = file.World.Gravity
	w.ended = false

	w.sceneOrder = w.sceneOrder[:0]
	w.scenes = make(map[string]*Scene, len(file.Scenes))
	for _, sc := range file.Scenes {
		scene := newScene(w, sc)
		w.sceneOrder = append(w.sceneOrder, scene.name)
		w.scenes[scene.name] = scene
	}
	w.current = file.World.CurrentScene
	if w.current == "" {
		w.current = w.sceneOrder[0]
	}

	w.ctrlOrder = w.ctrlOrder[:0]
	w.controllers = make(map[string]snapshot.ControllerInfo, len(file.Controllers))
	for _, cc := range file.Controllers {
		info := snapshot.ControllerInfo{Name: cc.Name, Kind: cc.Kind, Owner: cc.Owner, Active: true}
		if cc.Active != nil {
			info.Active = *cc.Active
		}
		w.ctrlOrder = append(w.ctrlOrder, cc.Name)
		w.controllers[cc.Name] = info
	}
}

func (w *World) CurrentScene() host.Scene {
	sc, ok := w.scenes[w.current]
	if !ok {
		return nil
	}
	return sc
}

func (w *World) Scene(name string) (host.Scene, bool) {
	sc, ok := w.scenes[name]
	if !ok {
		return nil, false
	}
	return sc, true
}

func (w *World) SceneNames() []string {
	return slices.Clone(w.sceneOrder)
}

func (w *World) Controller(name string) (snapshot.ControllerInfo, bool) {
	info, ok := w.controllers[name]
	return info, ok
}

// ControllerNames lists controllers in file order; the tick loop runs them
// in this order.
func (w *World) ControllerNames() []string {
	return slices.Clone(w.ctrlOrder)
}

func (w *World) Engine() snapshot.EngineInfo {
	return snapshot.EngineInfo{
		FrameRate:      w.frameRate,
		CurrentFrame:   w.frame,
		TimeSinceStart: w.elapsed,
	}
}

func (w *World) SetGravity(g snapshot.Vec3) { w.gravity = g }
func (w *World) Gravity() snapshot.Vec3     { return w.gravity }

func (w *World) EndGame()    { w.ended = true }
func (w *World) Ended() bool { return w.ended }

// RestartGame rebuilds every scene from the blueprint and rewinds the
// engine clock.
func (w *World) RestartGame() {
	w.restarts++
	w.reset()
}

func (w *World) Restarts() int { return w.restarts }

func (w *World) Input() snapshot.InputState      { return w.input }
func (w *World) SetInput(in snapshot.InputState) { w.input = in }

// Advance moves the engine clock one tick of dt seconds: lifetimes expire
// and pending ray casts resolve, so their results surface in the next
// Snapshot and only there.
func (w *World) Advance(dt float64) {
	w.frame++
	w.elapsed += dt
	for _, name := range w.sceneOrder {
		w.scenes[name].advance(dt)
	}
}
