package host

import "github.com/tickbridge/tickbridge/snapshot"

// BuildSnapshot freezes the model for one script execution: engine state,
// the scene table, the named controller, device input, and the controller's
// owner object with its reachable relatives (parent and children, one hop).
// It never fails; whatever the model cannot answer becomes an absent field.
func BuildSnapshot(model Model, controllerName string, input snapshot.InputState) *snapshot.Snapshot {
	snap := &snapshot.Snapshot{
		Engine: model.Engine(),
		Input:  input,
	}

	if current := model.CurrentScene(); current != nil {
		snap.Scenes.Current = current.Name()
	}
	for _, name := range model.SceneNames() {
		sc, ok := model.Scene(name)
		if !ok {
			continue
		}
		snap.Scenes.Scenes = append(snap.Scenes.Scenes, snapshot.SceneInfo{
			Name:    name,
			Objects: sc.ObjectNames(),
		})
	}

	ctrl, ok := model.Controller(controllerName)
	if !ok {
		return snap
	}
	snap.Controller = &ctrl

	owner, found := findObject(model, "", ctrl.Owner)
	if !found {
		return snap
	}

	objects := map[string]snapshot.ObjectState{owner.Name(): objectState(owner)}
	include := func(name string) {
		if name == "" {
			return
		}
		if _, done := objects[name]; done {
			return
		}
		if obj, ok := findObject(model, "", name); ok {
			objects[name] = objectState(obj)
		}
	}
	include(owner.Parent())
	for _, child := range owner.Children() {
		include(child)
	}
	snap.Objects = objects

	return snap
}

func objectState(obj Object) snapshot.ObjectState {
	st := snapshot.ObjectState{
		Name:       obj.Name(),
		Position:   obj.Position(),
		Rotation:   obj.Rotation(),
		Scale:      obj.Scale(),
		Parent:     obj.Parent(),
		Children:   obj.Children(),
		Properties: obj.Properties(),
	}
	if caster, ok := obj.(RayCaster); ok {
		if res, hit := caster.RayCastResult(); hit {
			st.RayCast = &res
		}
	}
	return st
}
