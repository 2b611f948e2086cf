package host

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/tickbridge/tickbridge/command"
	"github.com/tickbridge/tickbridge/internal/observability"
	"github.com/tickbridge/tickbridge/snapshot"
)

var (
	ErrTargetMissing = errors.New("host: apply target missing")
	ErrNotCapable    = errors.New("host: object lacks capability")
)

// Skip records one command that did not apply. Index is the position in the
// incoming list.
type Skip struct {
	Index  int
	Op     command.Op
	Object string
	Reason string
}

// Report sums one command list application.
type Report struct {
	Applied int
	Skips   []Skip
}

func (r Report) Skipped() int { return len(r.Skips) }

// Apply replays cmds against the live model in emission order. Each command
// re-resolves its target at apply time; one that cannot resolve, fails
// validation, or is rejected by its target is skipped and recorded, and the
// rest of the list still applies. endGame and restartGame forward at most
// once per call; repeats count as applied.
func Apply(model Model, cmds []command.Command) Report {
	var rep Report
	var latch engineLatch

	for i, cmd := range cmds {
		if err := applyOne(model, cmd, &latch); err != nil {
			rep.Skips = append(rep.Skips, Skip{
				Index:  i,
				Op:     cmd.Op,
				Object: cmd.Object,
				Reason: err.Error(),
			})
			observability.RecordCommandSkipped(skipReason(err))
			log.Warn().
				Int("index", i).
				Str("op", string(cmd.Op)).
				Str("object", cmd.Object).
				Err(err).
				Msg("command skipped")
			continue
		}
		rep.Applied++
		observability.RecordCommandApplied(string(cmd.Op))
	}
	return rep
}

type engineLatch struct {
	ended     bool
	restarted bool
}

func applyOne(model Model, cmd command.Command, latch *engineLatch) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	if cmd.EngineGlobal() {
		switch cmd.Op {
		case command.OpSetGravity:
			model.SetGravity(*cmd.Gravity)
		case command.OpEndGame:
			if !latch.ended {
				latch.ended = true
				model.EndGame()
			}
		case command.OpRestartGame:
			if !latch.restarted {
				latch.restarted = true
				model.RestartGame()
			}
		}
		return nil
	}

	switch cmd.Op {
	case command.OpSceneAddObject:
		sc, err := resolveScene(model, cmd.Scene)
		if err != nil {
			return err
		}
		return sc.AddObject(cmd.Object, cmd.Reference, cmd.Lifetime)
	case command.OpSceneRemoveObject:
		sc, err := resolveScene(model, cmd.Scene)
		if err != nil {
			return err
		}
		return sc.RemoveObject(cmd.Object)
	}

	obj, ok := findObject(model, cmd.Scene, cmd.Object)
	if !ok {
		if cmd.Scene != "" {
			return fmt.Errorf("%w: %s in scene %s", ErrTargetMissing, cmd.Object, cmd.Scene)
		}
		return fmt.Errorf("%w: %s", ErrTargetMissing, cmd.Object)
	}
	return applyToObject(model, obj, cmd)
}

func applyToObject(model Model, obj Object, cmd command.Command) error {
	switch cmd.Op {
	case command.OpSetPosition:
		obj.SetPosition(*cmd.Position)
	case command.OpSetRotation:
		obj.SetRotation(*cmd.Rotation)
	case command.OpSetScale:
		obj.SetScale(*cmd.Scale)
	case command.OpApplyMovement:
		obj.ApplyMovement(*cmd.Delta)
	case command.OpSetProperty:
		value, err := command.NormalizeValue(cmd.Value)
		if err != nil {
			return err
		}
		return obj.SetProperty(cmd.Property, value)
	case command.OpSetParent:
		return obj.SetParent(cmd.Parent)
	case command.OpLookAt:
		point, err := resolvePoint(model, cmd)
		if err != nil {
			return err
		}
		obj.LookAt(point)
	case command.OpSetViewport:
		cam, ok := obj.(Camera)
		if !ok {
			return fmt.Errorf("%w: %s is not a camera", ErrNotCapable, obj.Name())
		}
		cam.SetViewport(*cmd.Viewport)
	case command.OpRayCast:
		caster, ok := obj.(RayCaster)
		if !ok {
			return fmt.Errorf("%w: %s cannot cast rays", ErrNotCapable, obj.Name())
		}
		caster.RequestRayCast(*cmd.Direction, cmd.Distance)
	case command.OpRayCastTo:
		caster, ok := obj.(RayCaster)
		if !ok {
			return fmt.Errorf("%w: %s cannot cast rays", ErrNotCapable, obj.Name())
		}
		point, err := resolvePoint(model, cmd)
		if err != nil {
			return err
		}
		caster.RequestRayCastTo(point)
	case command.OpActivateActuator:
		holder, ok := obj.(ActuatorHolder)
		if !ok {
			return fmt.Errorf("%w: %s has no actuators", ErrNotCapable, obj.Name())
		}
		return holder.ActivateActuator(cmd.Controller, cmd.Actuator)
	case command.OpDeactivateActuator:
		holder, ok := obj.(ActuatorHolder)
		if !ok {
			return fmt.Errorf("%w: %s has no actuators", ErrNotCapable, obj.Name())
		}
		return holder.DeactivateActuator(cmd.Controller, cmd.Actuator)
	case command.OpVehicleEngineForce:
		veh, ok := obj.(Vehicle)
		if !ok {
			return fmt.Errorf("%w: %s is not a vehicle", ErrNotCapable, obj.Name())
		}
		veh.ApplyEngineForce(cmd.Force, cmd.Wheel)
	case command.OpVehicleSteering:
		veh, ok := obj.(Vehicle)
		if !ok {
			return fmt.Errorf("%w: %s is not a vehicle", ErrNotCapable, obj.Name())
		}
		veh.SetSteering(cmd.Steering, cmd.Wheel)
	case command.OpVehicleBraking:
		veh, ok := obj.(Vehicle)
		if !ok {
			return fmt.Errorf("%w: %s is not a vehicle", ErrNotCapable, obj.Name())
		}
		veh.ApplyBraking(cmd.Braking, cmd.Wheel)
	case command.OpCharacterJump:
		ch, ok := obj.(Character)
		if !ok {
			return fmt.Errorf("%w: %s is not a character", ErrNotCapable, obj.Name())
		}
		ch.Jump()
	case command.OpCharacterWalk:
		ch, ok := obj.(Character)
		if !ok {
			return fmt.Errorf("%w: %s is not a character", ErrNotCapable, obj.Name())
		}
		ch.Walk(*cmd.Delta)
	default:
		return fmt.Errorf("%w: %q", command.ErrUnknownOp, cmd.Op)
	}
	return nil
}

func resolveScene(model Model, name string) (Scene, error) {
	if name == "" {
		if sc := model.CurrentScene(); sc != nil {
			return sc, nil
		}
		return nil, fmt.Errorf("%w: no current scene", ErrTargetMissing)
	}
	if sc, ok := model.Scene(name); ok {
		return sc, nil
	}
	return nil, fmt.Errorf("%w: scene %s", ErrTargetMissing, name)
}

// resolvePoint turns a lookAt/rayCastTo destination into a point: an
// explicit target wins, a target object contributes its live position.
func resolvePoint(model Model, cmd command.Command) (snapshot.Vec3, error) {
	if cmd.TargetObject != "" {
		target, ok := findObject(model, "", cmd.TargetObject)
		if !ok {
			return snapshot.Vec3{}, fmt.Errorf("%w: target %s", ErrTargetMissing, cmd.TargetObject)
		}
		return target.Position(), nil
	}
	if cmd.Target == nil {
		return snapshot.Vec3{}, fmt.Errorf("%w: target", command.ErrMissingField)
	}
	return *cmd.Target, nil
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, ErrTargetMissing):
		return "target_missing"
	case errors.Is(err, ErrNotCapable):
		return "not_capable"
	case errors.Is(err, command.ErrUnknownOp):
		return "unknown_op"
	case errors.Is(err, command.ErrMissingField), errors.Is(err, command.ErrBadValue):
		return "invalid"
	default:
		return "rejected"
	}
}
