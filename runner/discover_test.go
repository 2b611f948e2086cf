package runner

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/tickbridge/tickbridge/internal/testutil/testlog"
)

func writeFakeNode(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
}

func TestDiscoverRuntimeExplicitPath(t *testing.T) {
	testlog.Start(t)

	node := filepath.Join(t.TempDir(), "node-custom")
	writeFakeNode(t, node)

	got, err := DiscoverRuntime(Config{NodePath: node})
	if err != nil {
		t.Fatalf("DiscoverRuntime: %v", err)
	}
	if got != node {
		t.Fatalf("got %q, want %q", got, node)
	}

	_, err = DiscoverRuntime(Config{NodePath: filepath.Join(t.TempDir(), "absent")})
	if !errors.Is(err, ErrBinaryNotFound) {
		t.Fatalf("err = %v, want ErrBinaryNotFound", err)
	}
}

func TestDiscoverRuntimeSDKTree(t *testing.T) {
	testlog.Start(t)
	t.Setenv("PATH", t.TempDir())

	root := t.TempDir()
	node := filepath.Join(root, "runtime", runtime.GOOS, "bin", nodeExecutable())
	writeFakeNode(t, node)

	got, err := DiscoverRuntime(Config{SDKRoot: root})
	if err != nil {
		t.Fatalf("DiscoverRuntime: %v", err)
	}
	if got != node {
		t.Fatalf("got %q, want %q", got, node)
	}

	// An SDK root without the runtime tree falls through, and the emptied
	// PATH has nothing to offer.
	_, err = DiscoverRuntime(Config{SDKRoot: t.TempDir()})
	if !errors.Is(err, ErrBinaryNotFound) {
		t.Fatalf("err = %v, want ErrBinaryNotFound", err)
	}
}

func TestDiscoverRuntimePathLookup(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix PATH layout")
	}
	testlog.Start(t)

	dir := t.TempDir()
	node := filepath.Join(dir, "node")
	writeFakeNode(t, node)
	t.Setenv("PATH", dir)

	got, err := DiscoverRuntime(Config{})
	if err != nil {
		t.Fatalf("DiscoverRuntime: %v", err)
	}
	if got != node {
		t.Fatalf("got %q, want %q", got, node)
	}
}

type remoteStubLauncher struct{}

func (remoteStubLauncher) Launch(string, ...string) (Process, error) {
	return nil, errors.New("not launched")
}

func TestResolveBinarySkipsDiscoveryForRemote(t *testing.T) {
	testlog.Start(t)
	t.Setenv("PATH", t.TempDir())

	got, err := resolveBinary(Config{Launcher: remoteStubLauncher{}})
	if err != nil {
		t.Fatalf("resolveBinary: %v", err)
	}
	if got != "node" {
		t.Fatalf("got %q, want the remote default", got)
	}

	// Remote paths are not stat-ed; the far side resolves them.
	got, err = resolveBinary(Config{Launcher: remoteStubLauncher{}, NodePath: "/opt/node/bin/node"})
	if err != nil {
		t.Fatalf("resolveBinary: %v", err)
	}
	if got != "/opt/node/bin/node" {
		t.Fatalf("got %q, want the pinned path", got)
	}
}
