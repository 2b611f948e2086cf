package scriptenv

import (
	"slices"

	"github.com/tickbridge/tickbridge/command"
)

// Scene is the script-facing handle for one scene. Member handles are
// materialized lazily from the snapshot's name list.
type Scene struct {
	env         *Env
	name        string
	known       bool
	objectNames []string
}

func (s *Scene) Name() string {
	return s.name
}

// ObjectNames returns the member names the snapshot listed for this scene.
func (s *Scene) ObjectNames() []string {
	return slices.Clone(s.objectNames)
}

// Objects materializes a handle per member name, in snapshot order.
func (s *Scene) Objects() []*Object {
	out := make([]*Object, 0, len(s.objectNames))
	for _, name := range s.objectNames {
		out = append(out, s.env.Object(name))
	}
	return out
}

// Object returns the handle for name and whether this scene lists it.
func (s *Scene) Object(name string) (*Object, bool) {
	return s.env.Object(name), slices.Contains(s.objectNames, name)
}

// AddObject queues spawning template into this scene. reference names the
// object whose transform seeds the spawn and lifetime bounds it in frames;
// both may be zero.
func (s *Scene) AddObject(template, reference string, lifetime float64) {
	s.env.queue.Append(command.Command{
		Op:        command.OpSceneAddObject,
		Scene:     s.name,
		Object:    template,
		Reference: reference,
		Lifetime:  lifetime,
	})
}

// RemoveObject queues removal of name from this scene.
func (s *Scene) RemoveObject(name string) {
	s.env.queue.Append(command.Command{
		Op:     command.OpSceneRemoveObject,
		Scene:  s.name,
		Object: name,
	})
}
