package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "bridge":
		return bridgeTemplate, nil
	case "world":
		return worldTemplate, nil
	case "scripts":
		return scriptTemplate, nil
	default:
		return "", fmt.Errorf("unknown template kind: %s", kind)
	}
}

func defaultPath(kind string) string {
	switch kind {
	case "world":
		return "world.toml"
	case "scripts":
		return "scripts"
	default:
		return "bridge.toml"
	}
}

// targetFile resolves the file a template lands in; the scripts kind
// scaffolds a directory holding one starter controller script.
func targetFile(kind, output string) string {
	if kind == "scripts" {
		return filepath.Join(output, "main.js")
	}
	return output
}

func writeTemplate(path, body string, mode os.FileMode, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("file already exists: %s", path)
		}
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(body), mode)
}

const bridgeTemplate = `id = "bridge.local"
world = "world.toml"
scripts = "scripts"
mode = "worker"
tick_rate = 60.0
admin_addr = "127.0.0.1:7780"
cors_origins = ["http://localhost:3000"]
timeout = "5s"
watch_scripts = true
`

const worldTemplate = `[engine]
frame_rate = 60.0

[world]
current_scene = "Main"
gravity = [0.0, 0.0, -9.8]

[[scenes]]
name = "Main"

[[scenes.objects]]
name = "Player"
kind = "character"
position = [0.0, 0.0, 0.0]

[[scenes.objects]]
name = "Camera"
kind = "camera"
position = [0.0, -8.0, 4.0]

[[scenes.objects]]
name = "Ground"
kind = "base"
position = [0.0, 0.0, -2.0]
radius = 1.0

[[controllers]]
name = "main"
kind = "script"
owner = "Player"
`

const scriptTemplate = `// Starter controller script. The bridge runs this once per tick with
// the owner's view of the world in scope as the game global.
const owner = game.owner();
if (owner) {
  if (game.keyboard.isPressed('W')) {
    owner.applyMovement([0, 0.05, 0]);
  }
  owner.setProperty('last_frame', game.engine.currentFrame);
}
console.log('tick', game.engine.currentFrame);
`
