package snapshot

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/tickbridge/tickbridge/internal/testutil/testlog"
)

func fullSnapshot() Snapshot {
	return Snapshot{
		Engine: EngineInfo{
			FrameRate:      60,
			CurrentFrame:   1204,
			TimeSinceStart: 20.066,
		},
		Controller: &ControllerInfo{
			Name:   "main",
			Kind:   "script",
			Active: true,
			Owner:  "Cube",
		},
		Scenes: SceneSet{
			Current: "Main",
			Scenes: []SceneInfo{
				{Name: "Main", Objects: []string{"Cube", "Camera", "Lamp"}},
				{Name: "Overlay", Objects: []string{"HUD"}},
			},
		},
		Objects: map[string]ObjectState{
			"Cube": {
				Name:       "Cube",
				Position:   Vec3{1, 2, 3},
				Rotation:   Vec3{0, 0, 0.5},
				Scale:      Vec3{1, 1, 1},
				Parent:     "Anchor",
				Children:   []string{"CubeChild"},
				Properties: map[string]any{"hp": 100.0, "label": "player", "alive": true},
				RayCast: &RayCastResult{
					Object: "Ground",
					Point:  Vec3{1, 2, 0},
					Normal: Vec3{0, 0, 1},
				},
			},
			"CubeChild": {
				Name:     "CubeChild",
				Position: Vec3{1, 2, 4},
				Scale:    Vec3{1, 1, 1},
			},
		},
		Input: InputState{
			Keyboard: KeyboardState{
				Pressed:     []string{"W", "SHIFT"},
				JustPressed: []string{"SPACE"},
			},
			Mouse: MouseState{
				Position:   [2]float64{0.5, 0.25},
				Pressed:    []string{"LEFT"},
				WheelDelta: -1,
			},
			Joystick: JoystickState{
				Count:   1,
				Buttons: map[int][]int{0: {0, 3}},
				Axes:    map[int][]float64{0: {0.1, -0.9}},
			},
		},
	}
}

func TestSnapshotRoundTripPreservesEverything(t *testing.T) {
	testlog.Start(t)

	in := fullSnapshot()
	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out Snapshot
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("round trip mismatch:\n in=%+v\nout=%+v", in, out)
	}
}

func TestVectorWireShapeIsBareArray(t *testing.T) {
	testlog.Start(t)

	raw, err := json.Marshal(Vec3{0, 0, 0.1})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != "[0,0,0.1]" {
		t.Fatalf("unexpected wire shape: %s", raw)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	testlog.Start(t)

	in := fullSnapshot()
	cp := in.Clone()

	cp.Objects["Cube"].Properties["hp"] = 1.0
	cp.Scenes.Scenes[0].Objects[0] = "Mutant"
	cp.Input.Joystick.Axes[0][0] = 99

	if in.Objects["Cube"].Properties["hp"] != 100.0 {
		t.Fatalf("clone shares object properties")
	}
	if in.Scenes.Scenes[0].Objects[0] != "Cube" {
		t.Fatalf("clone shares scene member list")
	}
	if in.Input.Joystick.Axes[0][0] != 0.1 {
		t.Fatalf("clone shares joystick axes")
	}
}

func TestSceneAndObjectLookup(t *testing.T) {
	testlog.Start(t)

	s := fullSnapshot()
	if _, ok := s.Object("Cube"); !ok {
		t.Fatalf("expected Cube state")
	}
	if _, ok := s.Object("Ghost"); ok {
		t.Fatalf("unexpected state for unknown object")
	}
	sc, ok := s.Scenes.Scene("Overlay")
	if !ok {
		t.Fatalf("expected Overlay scene")
	}
	if len(sc.Objects) != 1 || sc.Objects[0] != "HUD" {
		t.Fatalf("unexpected Overlay members: %v", sc.Objects)
	}
	if _, ok := s.Scenes.Scene("Void"); ok {
		t.Fatalf("unexpected entry for unknown scene")
	}
}
