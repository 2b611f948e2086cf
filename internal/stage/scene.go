package stage

import (
	"fmt"
	"slices"

	"github.com/tickbridge/tickbridge/host"
)

var _ host.Scene = (*Scene)(nil)

// stageObject is any object variant living in a scene.
type stageObject interface {
	host.Object
	base() *Object
}

type Scene struct {
	name    string
	world   *World
	order   []string
	objects map[string]stageObject
}

func newScene(w *World, cfg SceneConfig) *Scene {
	s := &Scene{
		name:    cfg.Name,
		world:   w,
		objects: make(map[string]stageObject, len(cfg.Objects)),
	}
	for _, oc := range cfg.Objects {
		obj := newObject(s, oc)
		s.order = append(s.order, obj.Name())
		s.objects[obj.Name()] = obj
	}
	return s
}

func (s *Scene) Name() string { return s.name }

func (s *Scene) ObjectNames() []string {
	return slices.Clone(s.order)
}

func (s *Scene) Object(name string) (host.Object, bool) {
	obj, ok := s.objects[name]
	if !ok {
		return nil, false
	}
	return obj, true
}

// AddObject instantiates a copy of the template object. A live reference
// object contributes its transform; lifetime > 0 removes the copy after
// that much engine time.
func (s *Scene) AddObject(template, reference string, lifetime float64) error {
	source, ok := s.objects[template]
	if !ok {
		return fmt.Errorf("stage: template %q not in scene %s", template, s.name)
	}
	clone := cloneObject(source, s, s.uniqueName(template))
	base := clone.base()
	base.lifetime = lifetime
	if ref, ok := s.objects[reference]; ok {
		base.position = ref.base().position
		base.rotation = ref.base().rotation
	}
	s.order = append(s.order, base.name)
	s.objects[base.name] = clone
	return nil
}

func (s *Scene) RemoveObject(name string) error {
	if _, ok := s.objects[name]; !ok {
		return fmt.Errorf("stage: object %q not in scene %s", name, s.name)
	}
	delete(s.objects, name)
	s.order = slices.DeleteFunc(s.order, func(n string) bool { return n == name })
	for _, other := range s.objects {
		if other.base().parent == name {
			other.base().parent = ""
		}
	}
	return nil
}

// uniqueName suffixes instance names editor-style: Cube, Cube.001,
// Cube.002.
func (s *Scene) uniqueName(base string) string {
	if _, taken := s.objects[base]; !taken {
		return base
	}
	for i := 1; ; i++ {
		name := fmt.Sprintf("%s.%03d", base, i)
		if _, taken := s.objects[name]; !taken {
			return name
		}
	}
}

func (s *Scene) advance(dt float64) {
	for _, name := range slices.Clone(s.order) {
		obj, ok := s.objects[name]
		if !ok {
			continue
		}
		b := obj.base()
		if b.lifetime > 0 {
			b.lifetime -= dt
			if b.lifetime <= 0 {
				_ = s.RemoveObject(name)
				continue
			}
		}
		b.resolveRay(s)
	}
}
