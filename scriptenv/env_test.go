package scriptenv

import (
	"testing"

	"github.com/tickbridge/tickbridge/command"
	"github.com/tickbridge/tickbridge/internal/testutil/testlog"
	"github.com/tickbridge/tickbridge/snapshot"
)

func testSnapshot() *snapshot.Snapshot {
	return &snapshot.Snapshot{
		Engine: snapshot.EngineInfo{FrameRate: 60, CurrentFrame: 10, TimeSinceStart: 0.166},
		Controller: &snapshot.ControllerInfo{
			Name:   "main",
			Kind:   "script",
			Active: true,
			Owner:  "Cube",
		},
		Scenes: snapshot.SceneSet{
			Current: "Main",
			Scenes: []snapshot.SceneInfo{
				{Name: "Main", Objects: []string{"Cube", "Camera"}},
				{Name: "Overlay", Objects: []string{"HUD"}},
			},
		},
		Objects: map[string]snapshot.ObjectState{
			"Cube": {
				Name:       "Cube",
				Position:   snapshot.Vec3{1, 2, 3},
				Rotation:   snapshot.Vec3{0, 0, 0},
				Scale:      snapshot.Vec3{1, 1, 1},
				Parent:     "Anchor",
				Children:   []string{"CubeChild"},
				Properties: map[string]any{"hp": 100.0},
				RayCast: &snapshot.RayCastResult{
					Object: "Ground",
					Point:  snapshot.Vec3{1, 2, 0},
					Normal: snapshot.Vec3{0, 0, 1},
				},
			},
		},
		Input: snapshot.InputState{
			Keyboard: snapshot.KeyboardState{Pressed: []string{"W"}},
		},
	}
}

func TestWritesQueueInEmissionOrder(t *testing.T) {
	testlog.Start(t)

	var q command.Queue
	env := New(testSnapshot(), &q)

	cube := env.Object("Cube")
	cube.SetPosition(snapshot.Vec3{5, 0, 0})
	cube.ApplyMovement(snapshot.Vec3{0, 0, 0.1})
	env.EndGame()

	cmds := q.Commands()
	if len(cmds) != 3 {
		t.Fatalf("expected 3 commands, got %d", len(cmds))
	}
	if cmds[0].Op != command.OpSetPosition || cmds[1].Op != command.OpApplyMovement || cmds[2].Op != command.OpEndGame {
		t.Fatalf("order not preserved: %v %v %v", cmds[0].Op, cmds[1].Op, cmds[2].Op)
	}
}

func TestTransformWritesReadBackOptimistically(t *testing.T) {
	testlog.Start(t)

	var q command.Queue
	env := New(testSnapshot(), &q)
	cube := env.Object("Cube")

	if cube.Position() != (snapshot.Vec3{1, 2, 3}) {
		t.Fatalf("initial position from snapshot, got %v", cube.Position())
	}
	cube.SetPosition(snapshot.Vec3{7, 8, 9})
	if cube.Position() != (snapshot.Vec3{7, 8, 9}) {
		t.Fatalf("position did not read back after write: %v", cube.Position())
	}
	cube.SetRotation(snapshot.Vec3{0, 0, 1.5})
	if cube.Rotation() != (snapshot.Vec3{0, 0, 1.5}) {
		t.Fatalf("rotation did not read back after write: %v", cube.Rotation())
	}
	cube.SetScale(snapshot.Vec3{2, 2, 2})
	if cube.Scale() != (snapshot.Vec3{2, 2, 2}) {
		t.Fatalf("scale did not read back after write: %v", cube.Scale())
	}
}

func TestApplyMovementDoesNotUpdateLocalRead(t *testing.T) {
	testlog.Start(t)

	var q command.Queue
	env := New(testSnapshot(), &q)
	cube := env.Object("Cube")

	cube.ApplyMovement(snapshot.Vec3{0, 0, 0.1})
	cube.ApplyMovement(snapshot.Vec3{0, 0, 0.1})

	if cube.Position() != (snapshot.Vec3{1, 2, 3}) {
		t.Fatalf("applyMovement must not touch the local read value, got %v", cube.Position())
	}
	cmds := q.Commands()
	if len(cmds) != 2 {
		t.Fatalf("expected 2 queued movements, got %d", len(cmds))
	}
	for i, c := range cmds {
		if c.Op != command.OpApplyMovement || *c.Delta != (snapshot.Vec3{0, 0, 0.1}) {
			t.Fatalf("command %d unexpected: %+v", i, c)
		}
	}
}

func TestHandlesForSameNameShareState(t *testing.T) {
	testlog.Start(t)

	var q command.Queue
	env := New(testSnapshot(), &q)

	a := env.Object("Cube")
	scene := env.CurrentScene()
	b, ok := scene.Object("Cube")
	if !ok {
		t.Fatalf("Cube must be a member of the current scene")
	}
	if a != b {
		t.Fatalf("expected one shared handle per name")
	}
	a.SetPosition(snapshot.Vec3{4, 4, 4})
	if b.Position() != (snapshot.Vec3{4, 4, 4}) {
		t.Fatalf("handles diverged: %v", b.Position())
	}
}

func TestRayCastResultIsPreviousTickOnly(t *testing.T) {
	testlog.Start(t)

	var q command.Queue
	env := New(testSnapshot(), &q)
	cube := env.Object("Cube")

	res, ok := cube.RayCastResult()
	if !ok || res.Object != "Ground" {
		t.Fatalf("expected snapshot ray result, got ok=%v res=%+v", ok, res)
	}

	cube.RayCast(snapshot.Vec3{0, 0, -1}, 10)
	res, ok = cube.RayCastResult()
	if !ok || res.Object != "Ground" {
		t.Fatalf("issuing a cast must not change the same-tick read, got ok=%v res=%+v", ok, res)
	}

	cmds := q.Commands()
	if len(cmds) != 1 || cmds[0].Op != command.OpRayCast || cmds[0].Distance != 10 {
		t.Fatalf("unexpected queued cast: %+v", cmds)
	}
}

func TestUnknownObjectReadsZeroValues(t *testing.T) {
	testlog.Start(t)

	var q command.Queue
	env := New(testSnapshot(), &q)

	ghost := env.Object("Ghost")
	if ghost.Known() {
		t.Fatalf("Ghost must be unknown to the snapshot")
	}
	if ghost.Position() != (snapshot.Vec3{}) {
		t.Fatalf("unknown position must be zero, got %v", ghost.Position())
	}
	if ghost.Scale() != (snapshot.Vec3{1, 1, 1}) {
		t.Fatalf("unknown scale must be identity, got %v", ghost.Scale())
	}
	if _, ok := ghost.Property("hp"); ok {
		t.Fatalf("unknown object must have no properties")
	}
	ghost.SetPosition(snapshot.Vec3{1, 1, 1})
	if q.Len() != 1 {
		t.Fatalf("writes to unknown objects must still queue")
	}
}

func TestSetPropertyNormalizesAndReadsBack(t *testing.T) {
	testlog.Start(t)

	var q command.Queue
	env := New(testSnapshot(), &q)
	cube := env.Object("Cube")

	if err := cube.SetProperty("hp", 42); err != nil {
		t.Fatalf("set property: %v", err)
	}
	v, ok := cube.Property("hp")
	if !ok || v != 42.0 {
		t.Fatalf("property read back = %v (%T), want 42.0", v, v)
	}
	cmds := q.Commands()
	if len(cmds) != 1 || cmds[0].Value != 42.0 {
		t.Fatalf("queued value not normalized: %+v", cmds)
	}

	if err := cube.SetProperty("bad", []int{1}); err == nil {
		t.Fatalf("expected error for non-primitive value")
	}
	if q.Len() != 1 {
		t.Fatalf("rejected write must not queue")
	}
}

func TestSetParentReparentAndClear(t *testing.T) {
	testlog.Start(t)

	var q command.Queue
	env := New(testSnapshot(), &q)
	cube := env.Object("Cube")

	if p := cube.Parent(); p == nil || p.Name() != "Anchor" {
		t.Fatalf("expected snapshot parent Anchor, got %v", p)
	}

	cam := env.Object("Camera")
	cube.SetParent(cam)
	if p := cube.Parent(); p == nil || p.Name() != "Camera" {
		t.Fatalf("reparent did not read back")
	}

	cube.SetParent(nil)
	if cube.Parent() != nil {
		t.Fatalf("clear did not read back")
	}

	cmds := q.Commands()
	if len(cmds) != 2 {
		t.Fatalf("expected 2 commands, got %d", len(cmds))
	}
	if cmds[0].Parent != "Camera" || cmds[1].Parent != "" {
		t.Fatalf("unexpected parent payloads: %+v", cmds)
	}
}

func TestSceneHandlesAndMutations(t *testing.T) {
	testlog.Start(t)

	var q command.Queue
	env := New(testSnapshot(), &q)

	cur := env.CurrentScene()
	if cur.Name() != "Main" {
		t.Fatalf("current scene = %q, want Main", cur.Name())
	}
	objs := cur.Objects()
	if len(objs) != 2 || objs[0].Name() != "Cube" || objs[1].Name() != "Camera" {
		t.Fatalf("unexpected members: %v", objs)
	}

	overlay, ok := env.Scene("Overlay")
	if !ok {
		t.Fatalf("expected Overlay scene")
	}
	if _, member := overlay.Object("Cube"); member {
		t.Fatalf("Cube is not an Overlay member")
	}
	if _, ok := env.Scene("Void"); ok {
		t.Fatalf("unexpected scene Void")
	}

	cur.AddObject("Spark", "Cube", 120)
	overlay.RemoveObject("HUD")

	cmds := q.Commands()
	if len(cmds) != 2 {
		t.Fatalf("expected 2 commands, got %d", len(cmds))
	}
	if cmds[0].Op != command.OpSceneAddObject || cmds[0].Scene != "Main" || cmds[0].Object != "Spark" || cmds[0].Reference != "Cube" {
		t.Fatalf("unexpected add command: %+v", cmds[0])
	}
	if cmds[1].Op != command.OpSceneRemoveObject || cmds[1].Scene != "Overlay" || cmds[1].Object != "HUD" {
		t.Fatalf("unexpected remove command: %+v", cmds[1])
	}
}

func TestEngineGlobalsCarryNoTarget(t *testing.T) {
	testlog.Start(t)

	var q command.Queue
	env := New(testSnapshot(), &q)

	env.SetGravity(snapshot.Vec3{0, 0, -9.8})
	env.EndGame()
	env.RestartGame()

	for _, c := range q.Commands() {
		if !c.EngineGlobal() {
			t.Fatalf("expected engine-global command, got %+v", c)
		}
		if c.Object != "" {
			t.Fatalf("engine-global command must not carry a target: %+v", c)
		}
	}
}

func TestOwnerAndActuatorAttribution(t *testing.T) {
	testlog.Start(t)

	var q command.Queue
	env := New(testSnapshot(), &q)

	owner := env.Owner()
	if owner == nil || owner.Name() != "Cube" {
		t.Fatalf("expected owner Cube, got %v", owner)
	}

	owner.ActivateActuator("thrust")
	cmds := q.Commands()
	if len(cmds) != 1 || cmds[0].Actuator != "thrust" || cmds[0].Controller != "main" {
		t.Fatalf("actuator command not attributed to controller: %+v", cmds)
	}

	bare := New(&snapshot.Snapshot{}, &command.Queue{})
	if bare.Owner() != nil {
		t.Fatalf("ownerless snapshot must yield nil owner")
	}
}
