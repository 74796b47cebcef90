package elfver

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// defaultLibDirs are the trusted directories the loader falls back to.
// The multiarch subdirectories cover Debian-style layouts.
var defaultLibDirs = []string{
	"/lib/x86_64-linux-gnu",
	"/usr/lib/x86_64-linux-gnu",
	"/lib/i386-linux-gnu",
	"/usr/lib/i386-linux-gnu",
	"/lib/aarch64-linux-gnu",
	"/usr/lib/aarch64-linux-gnu",
	"/lib",
	"/usr/lib",
	"/usr/local/lib",
}

// Locate finds the on-disk file for a library name without loading it.
// A name containing a slash is used as-is; a bare SONAME is searched in
// LD_LIBRARY_PATH and then in the default loader directories. This only
// needs to agree with the dynamic loader for the common case: the
// orchestrator normally hands this probe the path the dynamic probe
// already resolved.
func Locate(name string) (string, error) {
	if strings.ContainsRune(name, '/') {
		if _, err := os.Stat(name); err != nil {
			return "", err
		}
		return name, nil
	}

	var dirs []string
	if env := os.Getenv("LD_LIBRARY_PATH"); env != "" {
		for _, d := range strings.Split(env, ":") {
			if d != "" {
				dirs = append(dirs, d)
			}
		}
	}
	dirs = append(dirs, defaultLibDirs...)

	for _, dir := range dirs {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%s not found in library search path", name)
}
