package scriptenv

import (
	"maps"
	"slices"

	"github.com/tickbridge/tickbridge/command"
	"github.com/tickbridge/tickbridge/snapshot"
)

// Object is the script-facing handle for one named host object. Transform
// setters update the handle's local value as well as the queue, so a script
// that writes and then reads sees its own change; applyMovement is relative
// and deliberately does not, since accumulation is resolved host-side.
type Object struct {
	env      *Env
	name     string
	known    bool
	pos      snapshot.Vec3
	rot      snapshot.Vec3
	scale    snapshot.Vec3
	parent   string
	children []string
	props    map[string]any
	ray      *snapshot.RayCastResult
}

func (o *Object) Name() string {
	return o.name
}

// Known reports whether the snapshot carried state for this object.
func (o *Object) Known() bool {
	return o.known
}

func (o *Object) Position() snapshot.Vec3 {
	return o.pos
}

func (o *Object) SetPosition(v snapshot.Vec3) {
	o.pos = v
	o.env.queue.Append(command.Command{Op: command.OpSetPosition, Object: o.name, Position: &v})
}

func (o *Object) Rotation() snapshot.Vec3 {
	return o.rot
}

func (o *Object) SetRotation(v snapshot.Vec3) {
	o.rot = v
	o.env.queue.Append(command.Command{Op: command.OpSetRotation, Object: o.name, Rotation: &v})
}

func (o *Object) Scale() snapshot.Vec3 {
	return o.scale
}

func (o *Object) SetScale(v snapshot.Vec3) {
	o.scale = v
	o.env.queue.Append(command.Command{Op: command.OpSetScale, Object: o.name, Scale: &v})
}

// ApplyMovement queues a relative translation. The local read value stays
// untouched; repeated calls accumulate when the host applies them in order.
func (o *Object) ApplyMovement(delta snapshot.Vec3) {
	o.env.queue.Append(command.Command{Op: command.OpApplyMovement, Object: o.name, Delta: &delta})
}

func (o *Object) Property(name string) (any, bool) {
	v, ok := o.props[name]
	return v, ok
}

// SetProperty queues a property write. The value must be a JSON primitive;
// integers are widened to float64.
func (o *Object) SetProperty(name string, v any) error {
	nv, err := command.NormalizeValue(v)
	if err != nil {
		return err
	}
	o.props[name] = nv
	o.env.queue.Append(command.Command{Op: command.OpSetProperty, Object: o.name, Property: name, Value: nv})
	return nil
}

// Properties returns a copy of the handle's current property view.
func (o *Object) Properties() map[string]any {
	return maps.Clone(o.props)
}

// Parent returns the handle for this object's parent, or nil at the root.
func (o *Object) Parent() *Object {
	if o.parent == "" {
		return nil
	}
	return o.env.Object(o.parent)
}

// SetParent queues a reparent; passing nil clears the parent.
func (o *Object) SetParent(p *Object) {
	name := ""
	if p != nil {
		name = p.name
	}
	o.parent = name
	o.env.queue.Append(command.Command{Op: command.OpSetParent, Object: o.name, Parent: name})
}

// Children returns handles for the snapshot's child list.
func (o *Object) Children() []*Object {
	out := make([]*Object, 0, len(o.children))
	for _, name := range o.children {
		out = append(out, o.env.Object(name))
	}
	return out
}

// ChildNames returns the snapshot's child name list.
func (o *Object) ChildNames() []string {
	return slices.Clone(o.children)
}

// LookAt queues an orientation change toward a world point.
func (o *Object) LookAt(point snapshot.Vec3) {
	o.env.queue.Append(command.Command{Op: command.OpLookAt, Object: o.name, Target: &point})
}

// LookAtObject queues an orientation change toward another object.
func (o *Object) LookAtObject(name string) {
	o.env.queue.Append(command.Command{Op: command.OpLookAt, Object: o.name, TargetObject: name})
}

// RayCast queues a cast from this object along direction. The result is
// never available in the same tick; it arrives with the next snapshot.
func (o *Object) RayCast(direction snapshot.Vec3, distance float64) {
	o.env.queue.Append(command.Command{Op: command.OpRayCast, Object: o.name, Direction: &direction, Distance: distance})
}

// RayCastTo queues a cast from this object toward a world point.
func (o *Object) RayCastTo(point snapshot.Vec3) {
	o.env.queue.Append(command.Command{Op: command.OpRayCastTo, Object: o.name, Target: &point})
}

// RayCastToObject queues a cast from this object toward another object.
func (o *Object) RayCastToObject(name string) {
	o.env.queue.Append(command.Command{Op: command.OpRayCastTo, Object: o.name, TargetObject: name})
}

// RayCastResult returns the previous tick's resolution for this object's
// last cast, if the host recorded one.
func (o *Object) RayCastResult() (snapshot.RayCastResult, bool) {
	if o.ray == nil {
		return snapshot.RayCastResult{}, false
	}
	return *o.ray, true
}

func (o *Object) ActivateActuator(name string) {
	o.env.queue.Append(command.Command{
		Op:         command.OpActivateActuator,
		Object:     o.name,
		Actuator:   name,
		Controller: o.env.controllerName(),
	})
}

func (o *Object) DeactivateActuator(name string) {
	o.env.queue.Append(command.Command{
		Op:         command.OpDeactivateActuator,
		Object:     o.name,
		Actuator:   name,
		Controller: o.env.controllerName(),
	})
}

func (o *Object) ApplyEngineForce(force float64, wheel int) {
	o.env.queue.Append(command.Command{Op: command.OpVehicleEngineForce, Object: o.name, Force: force, Wheel: wheel})
}

func (o *Object) SetSteering(steering float64, wheel int) {
	o.env.queue.Append(command.Command{Op: command.OpVehicleSteering, Object: o.name, Steering: steering, Wheel: wheel})
}

func (o *Object) ApplyBraking(braking float64, wheel int) {
	o.env.queue.Append(command.Command{Op: command.OpVehicleBraking, Object: o.name, Braking: braking, Wheel: wheel})
}

func (o *Object) Jump() {
	o.env.queue.Append(command.Command{Op: command.OpCharacterJump, Object: o.name})
}

// Walk queues a character walk direction change.
func (o *Object) Walk(delta snapshot.Vec3) {
	o.env.queue.Append(command.Command{Op: command.OpCharacterWalk, Object: o.name, Delta: &delta})
}

// SetViewport queues a camera viewport change.
func (o *Object) SetViewport(v command.Viewport) {
	o.env.queue.Append(command.Command{Op: command.OpSetViewport, Object: o.name, Viewport: &v})
}
