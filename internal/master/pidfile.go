package master

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// newbinSuffix is the suffix newbinPath appends to the pidfile path to
// name its ".newbin" sibling.
const newbinSuffix = ".newbin"

// writePIDFile writes pid, newline-terminated, to path with
// conventional pidfile permissions: world-
// readable so an operator's `kill -HUP $(cat pidfile)` works regardless
// of which user owns the file. Parent directories are not created.
func writePIDFile(path string, pid int) error {
	if path == "" {
		return nil
	}
	return os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0644)
}

// readPIDFile reads and parses path.
func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("master: malformed pidfile %s: %w", path, err)
	}
	return pid, nil
}

// removePIDFile removes path, ignoring a missing file.
func removePIDFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// newbinPath returns the ".newbin" sibling path of a pidfile path. It
// only computes the name: nothing in this package writes a pid to that
// path or renames it over the main pidfile during a change-binary.
func newbinPath(path string) string {
	if path == "" {
		return ""
	}
	return path + newbinSuffix
}
