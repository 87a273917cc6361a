package runner

import (
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/KaramelBytes/statloom/internal/utils"
)

// ErrInterpreterNotFound means no interpreter exists in the local runtime dirs or on PATH.
var ErrInterpreterNotFound = errors.New("Rscript executable not found")

// Search describes where to look for the interpreter. Zero-valued function fields
// fall back to exec.LookPath and a regular-file check.
type Search struct {
	// Explicit is a configured path or command name that bypasses discovery.
	Explicit string
	// Root anchors relative LocalDirs; empty means the working directory.
	Root      string
	LocalDirs []string
	Name      string
	GOOS      string
	LookPath  func(file string) (string, error)
	Exists    func(path string) bool
}

// ExecutableName appends the platform executable suffix when the name has none.
func ExecutableName(name, goos string) string {
	if goos == "windows" && filepath.Ext(name) == "" {
		return name + ".exe"
	}
	return name
}

// Resolve returns the interpreter path: Explicit first, then LocalDirs in order, then the search path.
func Resolve(s Search) (string, error) {
	goos := s.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}
	lookPath := s.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	exists := s.Exists
	if exists == nil {
		exists = utils.FileExists
	}
	name := strings.TrimSpace(s.Name)
	if name == "" {
		name = "Rscript"
	}

	if explicit := strings.TrimSpace(s.Explicit); explicit != "" {
		if exists(explicit) {
			return explicit, nil
		}
		if p, err := lookPath(explicit); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("%w: configured interpreter %q does not exist", ErrInterpreterNotFound, explicit)
	}

	exe := ExecutableName(name, goos)
	for _, dir := range s.LocalDirs {
		if dir == "" {
			continue
		}
		if !filepath.IsAbs(dir) && s.Root != "" {
			dir = filepath.Join(s.Root, dir)
		}
		candidate := filepath.Join(dir, exe)
		if exists(candidate) {
			return candidate, nil
		}
	}
	if p, err := lookPath(exe); err == nil {
		return p, nil
	}
	return "", fmt.Errorf("%w: looked for %s in %s and on PATH", ErrInterpreterNotFound, exe, strings.Join(s.LocalDirs, ", "))
}
