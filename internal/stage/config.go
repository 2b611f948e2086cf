package stage

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/tickbridge/tickbridge/command"
	"github.com/tickbridge/tickbridge/snapshot"
)

// WorldFile is the TOML shape of a stage world.
type WorldFile struct {
	Engine      EngineConfig       `toml:"engine"`
	World       WorldConfig        `toml:"world"`
	Scenes      []SceneConfig      `toml:"scenes"`
	Controllers []ControllerConfig `toml:"controllers"`
}

type EngineConfig struct {
	FrameRate float64 `toml:"frame_rate"`
}

type WorldConfig struct {
	CurrentScene string        `toml:"current_scene"`
	Gravity      snapshot.Vec3 `toml:"gravity"`
}

type SceneConfig struct {
	Name    string         `toml:"name"`
	Objects []ObjectConfig `toml:"objects"`
}

type ObjectConfig struct {
	Name     string        `toml:"name"`
	Kind     string        `toml:"kind"`
	Position snapshot.Vec3 `toml:"position"`
	Rotation snapshot.Vec3 `toml:"rotation"`
	// Scale defaults to identity when omitted.
	Scale  *snapshot.Vec3 `toml:"scale"`
	Parent string         `toml:"parent"`
	// Radius is the collision sphere for ray casts; zero means the object
	// cannot be hit.
	Radius float64 `toml:"radius"`
	// Lifetime > 0 removes the object after that much engine time.
	Lifetime   float64        `toml:"lifetime"`
	Actuators  []string       `toml:"actuators"`
	Properties map[string]any `toml:"properties"`
}

type ControllerConfig struct {
	Name  string `toml:"name"`
	Kind  string `toml:"kind"`
	Owner string `toml:"owner"`
	// Active defaults to true when omitted.
	Active *bool `toml:"active"`
}

// Load reads a world file and builds the live world from it.
func Load(path string) (*World, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("stage: world load failed (%s): %w", path, err)
	}
	var file WorldFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("stage: world parse failed (%s): %w", path, err)
	}
	return NewWorld(file)
}

func validateWorldFile(file WorldFile) error {
	if len(file.Scenes) == 0 {
		return fmt.Errorf("stage: world has no scenes")
	}
	sceneSeen := map[string]bool{}
	for i, sc := range file.Scenes {
		if strings.TrimSpace(sc.Name) == "" {
			return fmt.Errorf("stage: scene[%d] missing name", i)
		}
		if sceneSeen[sc.Name] {
			return fmt.Errorf("stage: duplicate scene %q", sc.Name)
		}
		sceneSeen[sc.Name] = true

		objectSeen := map[string]bool{}
		for j, oc := range sc.Objects {
			if strings.TrimSpace(oc.Name) == "" {
				return fmt.Errorf("stage: scene %q object[%d] missing name", sc.Name, j)
			}
			if objectSeen[oc.Name] {
				return fmt.Errorf("stage: scene %q duplicate object %q", sc.Name, oc.Name)
			}
			objectSeen[oc.Name] = true
			switch oc.Kind {
			case "", KindBase, KindCamera, KindVehicle, KindCharacter:
			default:
				return fmt.Errorf("stage: object %q has unknown kind %q", oc.Name, oc.Kind)
			}
			for key, value := range oc.Properties {
				if _, err := command.NormalizeValue(value); err != nil {
					return fmt.Errorf("stage: object %q property %q: %v", oc.Name, key, err)
				}
			}
		}
	}

	if file.World.CurrentScene != "" && !sceneSeen[file.World.CurrentScene] {
		return fmt.Errorf("stage: current scene %q not defined", file.World.CurrentScene)
	}

	ctrlSeen := map[string]bool{}
	for i, cc := range file.Controllers {
		if strings.TrimSpace(cc.Name) == "" {
			return fmt.Errorf("stage: controller[%d] missing name", i)
		}
		if ctrlSeen[cc.Name] {
			return fmt.Errorf("stage: duplicate controller %q", cc.Name)
		}
		ctrlSeen[cc.Name] = true
	}
	return nil
}
