package host

import (
	"github.com/tickbridge/tickbridge/command"
	"github.com/tickbridge/tickbridge/snapshot"
)

// Object is one mutable engine object. Reads feed the Snapshot; writes
// arrive through Apply in command order.
type Object interface {
	Name() string
	Position() snapshot.Vec3
	SetPosition(snapshot.Vec3)
	Rotation() snapshot.Vec3
	SetRotation(snapshot.Vec3)
	Scale() snapshot.Vec3
	SetScale(snapshot.Vec3)
	// ApplyMovement translates by a relative delta; repeated deltas within
	// one command list accumulate.
	ApplyMovement(snapshot.Vec3)
	LookAt(point snapshot.Vec3)
	Property(name string) (any, bool)
	SetProperty(name string, value any) error
	Properties() map[string]any
	Parent() string
	SetParent(name string) error
	Children() []string
}

// RayCaster is implemented by objects that can cast rays. A request is
// resolved by the host between ticks; the stashed result rides the next
// Snapshot and is consumed by it.
type RayCaster interface {
	RequestRayCast(direction snapshot.Vec3, distance float64)
	RequestRayCastTo(point snapshot.Vec3)
	RayCastResult() (snapshot.RayCastResult, bool)
}

// Camera is implemented by objects that own a viewport.
type Camera interface {
	SetViewport(command.Viewport)
}

// Vehicle is implemented by objects with per-wheel physics inputs.
type Vehicle interface {
	ApplyEngineForce(force float64, wheel int)
	SetSteering(steering float64, wheel int)
	ApplyBraking(braking float64, wheel int)
}

// Character is implemented by objects with locomotion physics.
type Character interface {
	Jump()
	Walk(delta snapshot.Vec3)
}

// ActuatorHolder is implemented by objects carrying named logic actuators.
// The controller argument attributes the request; empty means the scripting
// controller was not named.
type ActuatorHolder interface {
	ActivateActuator(controller, actuator string) error
	DeactivateActuator(controller, actuator string) error
}

// Scene is one named object collection.
type Scene interface {
	Name() string
	ObjectNames() []string
	Object(name string) (Object, bool)
	AddObject(template, reference string, lifetime float64) error
	RemoveObject(name string) error
}

// Model is the host world as the bridge sees it.
type Model interface {
	CurrentScene() Scene
	Scene(name string) (Scene, bool)
	SceneNames() []string
	Controller(name string) (snapshot.ControllerInfo, bool)
	Engine() snapshot.EngineInfo
	SetGravity(snapshot.Vec3)
	EndGame()
	RestartGame()
}

// InputSource supplies device state for the Snapshot. Hosts without input
// plumbing omit it and the bridge substitutes an empty state.
type InputSource interface {
	Input() snapshot.InputState
}

// findObject resolves an object the way commands address them: an explicit
// scene confines the search, otherwise the current scene wins over the rest
// of the scene table.
func findObject(model Model, sceneName, objectName string) (Object, bool) {
	if objectName == "" {
		return nil, false
	}
	if sceneName != "" {
		sc, ok := model.Scene(sceneName)
		if !ok {
			return nil, false
		}
		return sc.Object(objectName)
	}

	currentName := ""
	if current := model.CurrentScene(); current != nil {
		currentName = current.Name()
		if obj, ok := current.Object(objectName); ok {
			return obj, true
		}
	}
	for _, name := range model.SceneNames() {
		if name == currentName {
			continue
		}
		sc, ok := model.Scene(name)
		if !ok {
			continue
		}
		if obj, ok := sc.Object(objectName); ok {
			return obj, true
		}
	}
	return nil, false
}
