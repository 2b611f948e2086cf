package stage

import (
	"fmt"
	"maps"

	"github.com/tickbridge/tickbridge/command"
	"github.com/tickbridge/tickbridge/host"
	"github.com/tickbridge/tickbridge/snapshot"
)

// Object kinds accepted in world files.
const (
	KindBase      = "base"
	KindCamera    = "camera"
	KindVehicle   = "vehicle"
	KindCharacter = "character"
)

var (
	_ host.Object         = (*Object)(nil)
	_ host.RayCaster      = (*Object)(nil)
	_ host.ActuatorHolder = (*Object)(nil)
	_ host.Camera         = (*Camera)(nil)
	_ host.Vehicle        = (*Vehicle)(nil)
	_ host.Character      = (*Character)(nil)
)

type rayRequest struct {
	direction snapshot.Vec3
	distance  float64
}

// Object is the base stage object: transform, properties, parentage,
// a collision sphere for ray casts, and named actuators.
type Object struct {
	name  string
	scene *Scene

	position snapshot.Vec3
	rotation snapshot.Vec3
	scale    snapshot.Vec3

	props  map[string]any
	parent string

	radius   float64
	lifetime float64

	actuators map[string]bool
	// which controller last drove each actuator
	actuatorBy map[string]string

	rayPending *rayRequest
	rayResult  *snapshot.RayCastResult
}

func newBaseObject(s *Scene, cfg ObjectConfig) *Object {
	o := &Object{
		name:     cfg.Name,
		scene:    s,
		position: cfg.Position,
		rotation: cfg.Rotation,
		scale:    snapshot.Vec3{1, 1, 1},
		parent:   cfg.Parent,
		radius:   cfg.Radius,
		lifetime: cfg.Lifetime,
	}
	if cfg.Scale != nil {
		o.scale = *cfg.Scale
	}
	if len(cfg.Properties) > 0 {
		o.props = make(map[string]any, len(cfg.Properties))
		for key, value := range cfg.Properties {
			norm, err := command.NormalizeValue(value)
			if err != nil {
				continue
			}
			o.props[key] = norm
		}
	}
	if len(cfg.Actuators) > 0 {
		o.actuators = make(map[string]bool, len(cfg.Actuators))
		for _, name := range cfg.Actuators {
			o.actuators[name] = false
		}
	}
	return o
}

func newObject(s *Scene, cfg ObjectConfig) stageObject {
	base := newBaseObject(s, cfg)
	switch cfg.Kind {
	case KindCamera:
		return &Camera{Object: base}
	case KindVehicle:
		return newVehicle(base)
	case KindCharacter:
		return &Character{Object: base}
	default:
		return base
	}
}

// cloneObject copies an object for scene instantiation. Actuators come back
// inactive and transient state (pending rays, lifetime) does not carry
// over.
func cloneObject(source stageObject, s *Scene, name string) stageObject {
	b := source.base()
	base := &Object{
		name:     name,
		scene:    s,
		position: b.position,
		rotation: b.rotation,
		scale:    b.scale,
		radius:   b.radius,
	}
	if len(b.props) > 0 {
		base.props = maps.Clone(b.props)
	}
	if len(b.actuators) > 0 {
		base.actuators = make(map[string]bool, len(b.actuators))
		for name := range b.actuators {
			base.actuators[name] = false
		}
	}
	switch source.(type) {
	case *Camera:
		return &Camera{Object: base}
	case *Vehicle:
		return newVehicle(base)
	case *Character:
		return &Character{Object: base}
	default:
		return base
	}
}

func (o *Object) base() *Object { return o }

func (o *Object) Name() string { return o.name }

func (o *Object) Position() snapshot.Vec3     { return o.position }
func (o *Object) SetPosition(v snapshot.Vec3) { o.position = v }
func (o *Object) Rotation() snapshot.Vec3     { return o.rotation }
func (o *Object) SetRotation(v snapshot.Vec3) { o.rotation = v }
func (o *Object) Scale() snapshot.Vec3        { return o.scale }
func (o *Object) SetScale(v snapshot.Vec3)    { o.scale = v }

func (o *Object) ApplyMovement(delta snapshot.Vec3) {
	o.position = o.position.Add(delta)
}

func (o *Object) LookAt(point snapshot.Vec3) {
	o.rotation = faceRotation(o.position, point)
}

func (o *Object) Property(name string) (any, bool) {
	v, ok := o.props[name]
	return v, ok
}

func (o *Object) SetProperty(name string, value any) error {
	norm, err := command.NormalizeValue(value)
	if err != nil {
		return err
	}
	if o.props == nil {
		o.props = make(map[string]any)
	}
	o.props[name] = norm
	return nil
}

func (o *Object) Properties() map[string]any {
	if len(o.props) == 0 {
		return nil
	}
	return maps.Clone(o.props)
}

func (o *Object) Parent() string { return o.parent }

// SetParent requires the parent to live in the same scene and rejects
// cycles. Empty clears parentage.
func (o *Object) SetParent(name string) error {
	if name == "" {
		o.parent = ""
		return nil
	}
	if name == o.name {
		return fmt.Errorf("stage: %s cannot parent itself", o.name)
	}
	next, ok := o.scene.objects[name]
	if !ok {
		return fmt.Errorf("stage: parent %q not in scene %s", name, o.scene.name)
	}
	for anc := next; ; {
		b := anc.base()
		if b.name == o.name {
			return fmt.Errorf("stage: parenting %s under %s creates a cycle", o.name, name)
		}
		up, ok := o.scene.objects[b.parent]
		if !ok {
			break
		}
		anc = up
	}
	o.parent = name
	return nil
}

// Children scans the scene in object order, so the list is stable across
// Snapshots.
func (o *Object) Children() []string {
	var children []string
	for _, name := range o.scene.order {
		obj, ok := o.scene.objects[name]
		if ok && obj.base().parent == o.name {
			children = append(children, name)
		}
	}
	return children
}

func (o *Object) ActivateActuator(controller, actuator string) error {
	return o.setActuator(controller, actuator, true)
}

func (o *Object) DeactivateActuator(controller, actuator string) error {
	return o.setActuator(controller, actuator, false)
}

func (o *Object) setActuator(controller, actuator string, active bool) error {
	if _, ok := o.actuators[actuator]; !ok {
		return fmt.Errorf("stage: no actuator %q on %s", actuator, o.name)
	}
	o.actuators[actuator] = active
	if controller != "" {
		if o.actuatorBy == nil {
			o.actuatorBy = make(map[string]string)
		}
		o.actuatorBy[actuator] = controller
	}
	return nil
}

func (o *Object) ActuatorActive(name string) bool { return o.actuators[name] }

// ActuatorDriver reports which controller last touched the actuator.
func (o *Object) ActuatorDriver(name string) string { return o.actuatorBy[name] }

func (o *Object) RequestRayCast(direction snapshot.Vec3, distance float64) {
	o.rayPending = &rayRequest{direction: direction, distance: distance}
}

func (o *Object) RequestRayCastTo(point snapshot.Vec3) {
	dir := point.Sub(o.position)
	o.rayPending = &rayRequest{direction: dir, distance: vecLen(dir)}
}

func (o *Object) RayCastResult() (snapshot.RayCastResult, bool) {
	if o.rayResult == nil {
		return snapshot.RayCastResult{}, false
	}
	return *o.rayResult, true
}

// resolveRay runs at tick advance: a pending request becomes the result the
// next Snapshot carries; without a request the previous result expires.
func (o *Object) resolveRay(s *Scene) {
	req := o.rayPending
	o.rayPending = nil
	o.rayResult = nil
	if req == nil {
		return
	}
	length := vecLen(req.direction)
	if length == 0 || req.distance <= 0 {
		return
	}
	dir := req.direction.Scale(1 / length)

	var best *snapshot.RayCastResult
	bestT := req.distance
	for _, name := range s.order {
		other, ok := s.objects[name]
		if !ok || name == o.name {
			continue
		}
		ob := other.base()
		if ob.radius <= 0 {
			continue
		}
		t, hit := raySphere(o.position, dir, ob.position, ob.radius)
		if !hit || t > bestT {
			continue
		}
		point := o.position.Add(dir.Scale(t))
		normal := point.Sub(ob.position).Scale(1 / ob.radius)
		best = &snapshot.RayCastResult{Object: name, Point: point, Normal: normal}
		bestT = t
	}
	o.rayResult = best
}

// Camera is a stage object that owns a viewport.
type Camera struct {
	*Object
	viewport command.Viewport
}

func (c *Camera) SetViewport(v command.Viewport) { c.viewport = v }
func (c *Camera) Viewport() command.Viewport     { return c.viewport }

// Vehicle tracks per-wheel physics inputs.
type Vehicle struct {
	*Object
	engineForce map[int]float64
	steering    map[int]float64
	braking     map[int]float64
}

func newVehicle(base *Object) *Vehicle {
	return &Vehicle{
		Object:      base,
		engineForce: map[int]float64{},
		steering:    map[int]float64{},
		braking:     map[int]float64{},
	}
}

func (v *Vehicle) ApplyEngineForce(force float64, wheel int) { v.engineForce[wheel] = force }
func (v *Vehicle) SetSteering(steering float64, wheel int)   { v.steering[wheel] = steering }
func (v *Vehicle) ApplyBraking(braking float64, wheel int)   { v.braking[wheel] = braking }

func (v *Vehicle) EngineForce(wheel int) float64 { return v.engineForce[wheel] }
func (v *Vehicle) Steering(wheel int) float64    { return v.steering[wheel] }
func (v *Vehicle) Braking(wheel int) float64     { return v.braking[wheel] }

// Character tracks locomotion requests; Walk also translates, matching how
// the engine moves characters immediately.
type Character struct {
	*Object
	jumps  int
	walked snapshot.Vec3
}

func (c *Character) Jump() { c.jumps++ }

func (c *Character) Walk(delta snapshot.Vec3) {
	c.walked = c.walked.Add(delta)
	c.position = c.position.Add(delta)
}

func (c *Character) Jumps() int            { return c.jumps }
func (c *Character) Walked() snapshot.Vec3 { return c.walked }
