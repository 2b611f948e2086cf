package command

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/tickbridge/tickbridge/internal/testutil/testlog"
	"github.com/tickbridge/tickbridge/snapshot"
)

func vec(x, y, z float64) *snapshot.Vec3 {
	v := snapshot.Vec3{x, y, z}
	return &v
}

func TestCommandListRoundTrip(t *testing.T) {
	testlog.Start(t)

	in := []Command{
		{Op: OpSetPosition, Object: "Cube", Position: vec(1, 2, 3)},
		{Op: OpApplyMovement, Object: "Cube", Delta: vec(0, 0, 0.1)},
		{Op: OpSetProperty, Object: "Cube", Property: "hp", Value: 99.0},
		{Op: OpSetProperty, Object: "Cube", Property: "alive", Value: false},
		{Op: OpSetParent, Object: "CubeChild", Parent: "Cube"},
		{Op: OpSetParent, Object: "CubeChild"},
		{Op: OpLookAt, Object: "Camera", TargetObject: "Cube"},
		{Op: OpRayCast, Object: "Cube", Direction: vec(0, 0, -1), Distance: 10},
		{Op: OpSetViewport, Object: "Camera", Viewport: &Viewport{Left: 0, Bottom: 0, Right: 640, Top: 480}},
		{Op: OpSceneAddObject, Scene: "Main", Object: "Spark", Reference: "Cube", Lifetime: 120},
		{Op: OpActivateActuator, Object: "Cube", Actuator: "thrust", Controller: "main"},
		{Op: OpVehicleEngineForce, Object: "Car", Force: 150, Wheel: 2},
		{Op: OpCharacterWalk, Object: "Player", Delta: vec(0, 1, 0)},
		{Op: OpSetGravity, Gravity: vec(0, 0, -9.8)},
		{Op: OpEndGame},
	}

	raw, err := EncodeList(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := DecodeList(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("round trip mismatch:\n in=%+v\nout=%+v", in, out)
	}
}

func TestCommandWireShapeOmitsUnsetFields(t *testing.T) {
	testlog.Start(t)

	raw, err := json.Marshal(Command{Op: OpApplyMovement, Object: "Cube", Delta: vec(0, 0, 0.1)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"op":"applyMovement","object":"Cube","delta":[0,0,0.1]}`
	if string(raw) != want {
		t.Fatalf("unexpected wire shape:\n got=%s\nwant=%s", raw, want)
	}
}

func TestEncodeListNeverEmitsNull(t *testing.T) {
	testlog.Start(t)

	raw, err := EncodeList(nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(raw) != "[]" {
		t.Fatalf("expected empty array, got %s", raw)
	}
}

func TestQueuePreservesEmissionOrder(t *testing.T) {
	testlog.Start(t)

	var q Queue
	q.Append(Command{Op: OpSetPosition, Object: "A", Position: vec(1, 0, 0)})
	q.Append(Command{Op: OpApplyMovement, Object: "B", Delta: vec(0, 1, 0)})
	q.Append(Command{Op: OpEndGame})

	cmds := q.Commands()
	if len(cmds) != 3 {
		t.Fatalf("expected 3 commands, got %d", len(cmds))
	}
	if cmds[0].Object != "A" || cmds[1].Object != "B" || cmds[2].Op != OpEndGame {
		t.Fatalf("order not preserved: %+v", cmds)
	}

	cmds[0].Object = "mutated"
	if q.Commands()[0].Object != "A" {
		t.Fatalf("Commands must return a copy")
	}
}

func TestValidateCatchesMissingFields(t *testing.T) {
	testlog.Start(t)

	cases := []struct {
		name string
		cmd  Command
		want error
	}{
		{"unknown op", Command{Op: "teleport"}, ErrUnknownOp},
		{"setPosition without object", Command{Op: OpSetPosition, Position: vec(0, 0, 0)}, ErrMissingField},
		{"setPosition without vector", Command{Op: OpSetPosition, Object: "Cube"}, ErrMissingField},
		{"setProperty without name", Command{Op: OpSetProperty, Object: "Cube"}, ErrMissingField},
		{"lookAt without target", Command{Op: OpLookAt, Object: "Camera"}, ErrMissingField},
		{"actuator without name", Command{Op: OpActivateActuator, Object: "Cube"}, ErrMissingField},
		{"gravity without vector", Command{Op: OpSetGravity}, ErrMissingField},
	}
	for _, tc := range cases {
		if err := tc.cmd.Validate(); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	valid := []Command{
		{Op: OpEndGame},
		{Op: OpRestartGame},
		{Op: OpSetGravity, Gravity: vec(0, 0, -9.8)},
		{Op: OpSetParent, Object: "CubeChild"},
		{Op: OpCharacterJump, Object: "Player"},
	}
	for _, c := range valid {
		if err := c.Validate(); err != nil {
			t.Fatalf("expected %q to validate, got %v", c.Op, err)
		}
	}
}

func TestNormalizeValueWidensIntegers(t *testing.T) {
	testlog.Start(t)

	cases := []struct {
		in   any
		want any
	}{
		{nil, nil},
		{"label", "label"},
		{true, true},
		{3.5, 3.5},
		{int(7), 7.0},
		{int64(-2), -2.0},
		{uint8(255), 255.0},
		{float32(1.5), 1.5},
	}
	for _, tc := range cases {
		got, err := NormalizeValue(tc.in)
		if err != nil {
			t.Fatalf("normalize %T: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("normalize %T: got %v (%T), want %v (%T)", tc.in, got, got, tc.want, tc.want)
		}
	}

	if _, err := NormalizeValue([]string{"nope"}); !errors.Is(err, ErrBadValue) {
		t.Fatalf("expected ErrBadValue for slice, got %v", err)
	}
	if _, err := NormalizeValue(struct{}{}); !errors.Is(err, ErrBadValue) {
		t.Fatalf("expected ErrBadValue for struct, got %v", err)
	}
}

func TestEngineGlobalClassification(t *testing.T) {
	testlog.Start(t)

	globals := []Op{OpSetGravity, OpEndGame, OpRestartGame}
	for _, op := range globals {
		if !(Command{Op: op}).EngineGlobal() {
			t.Fatalf("expected %q to be engine-global", op)
		}
	}
	targeted := []Op{OpSetPosition, OpApplyMovement, OpSceneAddObject, OpCharacterJump}
	for _, op := range targeted {
		if (Command{Op: op}).EngineGlobal() {
			t.Fatalf("expected %q to be targeted", op)
		}
	}
}

func TestDecodeListRejectsMalformedPayload(t *testing.T) {
	testlog.Start(t)

	if _, err := DecodeList([]byte(`[{"op":`)); err == nil {
		t.Fatalf("expected error for truncated payload")
	}
	if _, err := DecodeList([]byte(`{"op":"endGame"}`)); err == nil {
		t.Fatalf("expected error for non-array payload")
	}
	cmds, err := DecodeList([]byte(`[]`))
	if err != nil {
		t.Fatalf("decode empty array: %v", err)
	}
	if len(cmds) != 0 {
		t.Fatalf("expected empty list, got %d", len(cmds))
	}
}
