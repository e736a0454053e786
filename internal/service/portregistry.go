package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/renameio"
)

// PortRegistryPath is the fixed location of the service port registry
// relative to the home repository (spec §6: ".yam/.servicePort").
const PortRegistryPath = ".yam/.servicePort"

// WritePortRegistry atomically writes "<pid> <port>" to
// <homeDir>/.yam/.servicePort via a rename, so a concurrent reader never
// observes a partial write.
func WritePortRegistry(homeDir string, pid, port int) error {
	path := filepath.Join(homeDir, PortRegistryPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	content := fmt.Sprintf("%d %d\n", pid, port)
	return renameio.WriteFile(path, []byte(content), 0o644)
}

// ReadPortRegistry reads the pid and port a running service last wrote.
func ReadPortRegistry(homeDir string) (pid, port int, err error) {
	path := filepath.Join(homeDir, PortRegistryPath)
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, err
	}
	fields := strings.Fields(string(data))
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("%s: malformed registry contents %q", path, string(data))
	}
	pid, err = strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, fmt.Errorf("%s: invalid pid: %w", path, err)
	}
	port, err = strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, fmt.Errorf("%s: invalid port: %w", path, err)
	}
	return pid, port, nil
}

// RemovePortRegistry deletes the registry file, e.g. on clean shutdown.
func RemovePortRegistry(homeDir string) error {
	err := os.Remove(filepath.Join(homeDir, PortRegistryPath))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// IsAlive reports whether a process with the given pid still exists.
// Used by the client to decide whether a stale registry entry should be
// ignored and a new service spawned.
func IsAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
