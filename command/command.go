package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/tickbridge/tickbridge/snapshot"
)

var (
	ErrUnknownOp    = errors.New("command: unknown op")
	ErrMissingField = errors.New("command: missing field")
	ErrBadValue     = errors.New("command: unsupported property value")
)

// Op tags one deferred mutation kind.
type Op string

const (
	OpSetPosition        Op = "setPosition"
	OpSetRotation        Op = "setRotation"
	OpSetScale           Op = "setScale"
	OpSetProperty        Op = "setProperty"
	OpSetParent          Op = "setParent"
	OpApplyMovement      Op = "applyMovement"
	OpLookAt             Op = "lookAt"
	OpSetViewport        Op = "setViewport"
	OpRayCast            Op = "rayCast"
	OpRayCastTo          Op = "rayCastTo"
	OpSceneAddObject     Op = "sceneAddObject"
	OpSceneRemoveObject  Op = "sceneRemoveObject"
	OpActivateActuator   Op = "activateActuator"
	OpDeactivateActuator Op = "deactivateActuator"
	OpSetGravity         Op = "setGravity"
	OpVehicleEngineForce Op = "vehicleEngineForce"
	OpVehicleSteering    Op = "vehicleSteering"
	OpVehicleBraking     Op = "vehicleBraking"
	OpCharacterJump      Op = "characterJump"
	OpCharacterWalk      Op = "characterWalk"
	OpEndGame            Op = "endGame"
	OpRestartGame        Op = "restartGame"
)

// Viewport is a camera viewport rectangle in window pixels.
type Viewport struct {
	Left   int `json:"left"`
	Bottom int `json:"bottom"`
	Right  int `json:"right"`
	Top    int `json:"top"`
}

// Command is one deferred mutation emitted by a script. Exactly the fields
// belonging to Op are set; everything else stays zero and is omitted on the
// wire, so the JSON shape is always {op, object?, scene?, ...op fields}.
type Command struct {
	Op           Op             `json:"op"`
	Object       string         `json:"object,omitempty"`
	Scene        string         `json:"scene,omitempty"`
	Position     *snapshot.Vec3 `json:"position,omitempty"`
	Rotation     *snapshot.Vec3 `json:"rotation,omitempty"`
	Scale        *snapshot.Vec3 `json:"scale,omitempty"`
	Delta        *snapshot.Vec3 `json:"delta,omitempty"`
	Target       *snapshot.Vec3 `json:"target,omitempty"`
	TargetObject string         `json:"target_object,omitempty"`
	Direction    *snapshot.Vec3 `json:"direction,omitempty"`
	Distance     float64        `json:"distance,omitempty"`
	Gravity      *snapshot.Vec3 `json:"gravity,omitempty"`
	Viewport     *Viewport      `json:"viewport,omitempty"`
	Property     string         `json:"property,omitempty"`
	Value        any            `json:"value,omitempty"`
	Parent       string         `json:"parent,omitempty"`
	Reference    string         `json:"reference,omitempty"`
	Lifetime     float64        `json:"lifetime,omitempty"`
	Actuator     string         `json:"actuator,omitempty"`
	Controller   string         `json:"controller,omitempty"`
	Force        float64        `json:"force,omitempty"`
	Steering     float64        `json:"steering,omitempty"`
	Braking      float64        `json:"braking,omitempty"`
	Wheel        int            `json:"wheel,omitempty"`
}

// EngineGlobal reports whether the op mutates engine state rather than one
// object, meaning there is no target to resolve.
func (c Command) EngineGlobal() bool {
	switch c.Op {
	case OpSetGravity, OpEndGame, OpRestartGame:
		return true
	}
	return false
}

// Validate checks that the fields the op requires are present. The applier
// validates every decoded command before resolving its target.
func (c Command) Validate() error {
	switch c.Op {
	case OpEndGame, OpRestartGame:
		return nil
	case OpSetGravity:
		return requireVec(c.Gravity, "gravity")
	case OpSetPosition:
		if err := requireObject(c); err != nil {
			return err
		}
		return requireVec(c.Position, "position")
	case OpSetRotation:
		if err := requireObject(c); err != nil {
			return err
		}
		return requireVec(c.Rotation, "rotation")
	case OpSetScale:
		if err := requireObject(c); err != nil {
			return err
		}
		return requireVec(c.Scale, "scale")
	case OpApplyMovement, OpCharacterWalk:
		if err := requireObject(c); err != nil {
			return err
		}
		return requireVec(c.Delta, "delta")
	case OpSetProperty:
		if c.Property == "" {
			return fmt.Errorf("%w: property", ErrMissingField)
		}
		return requireObject(c)
	case OpSetParent:
		return requireObject(c)
	case OpLookAt, OpRayCastTo:
		if c.Target == nil && c.TargetObject == "" {
			return fmt.Errorf("%w: target or target_object", ErrMissingField)
		}
		return requireObject(c)
	case OpRayCast:
		if err := requireObject(c); err != nil {
			return err
		}
		return requireVec(c.Direction, "direction")
	case OpSetViewport:
		if c.Viewport == nil {
			return fmt.Errorf("%w: viewport", ErrMissingField)
		}
		return requireObject(c)
	case OpSceneAddObject, OpSceneRemoveObject:
		return requireObject(c)
	case OpActivateActuator, OpDeactivateActuator:
		if c.Actuator == "" {
			return fmt.Errorf("%w: actuator", ErrMissingField)
		}
		return requireObject(c)
	case OpVehicleEngineForce, OpVehicleSteering, OpVehicleBraking, OpCharacterJump:
		return requireObject(c)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOp, c.Op)
	}
}

func requireObject(c Command) error {
	if c.Object == "" {
		return fmt.Errorf("%w: object", ErrMissingField)
	}
	return nil
}

func requireVec(v *snapshot.Vec3, name string) error {
	if v == nil {
		return fmt.Errorf("%w: %s", ErrMissingField, name)
	}
	return nil
}

// NormalizeValue coerces v into the JSON primitive domain used for property
// values: string, bool, float64 or nil. Integers widen to float64 so values
// survive an encode/decode round trip unchanged.
func NormalizeValue(v any) (any, error) {
	switch x := v.(type) {
	case nil, string, bool, float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int8:
		return float64(x), nil
	case int16:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint:
		return float64(x), nil
	case uint8:
		return float64(x), nil
	case uint16:
		return float64(x), nil
	case uint32:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrBadValue, v)
	}
}

// Queue accumulates commands in script-emission order. One queue belongs to
// exactly one script execution and is not safe for concurrent use.
type Queue struct {
	cmds []Command
}

// Append adds c to the end of the queue.
func (q *Queue) Append(c Command) {
	q.cmds = append(q.cmds, c)
}

// Len returns the number of queued commands.
func (q *Queue) Len() int {
	return len(q.cmds)
}

// Commands returns the queued commands in emission order.
func (q *Queue) Commands() []Command {
	return slices.Clone(q.cmds)
}

// EncodeList serializes commands as one JSON array.
func EncodeList(cmds []Command) ([]byte, error) {
	if cmds == nil {
		cmds = []Command{}
	}
	return json.Marshal(cmds)
}

// DecodeList parses a JSON array of commands.
func DecodeList(data []byte) ([]Command, error) {
	var cmds []Command
	if err := json.Unmarshal(data, &cmds); err != nil {
		return nil, err
	}
	return cmds, nil
}
