package statedir

import (
	"os"
	"path/filepath"
	"strings"
)

// Prefix marks a path as relative to the application's state directory.
const Prefix = "<state>"

const appName = "orderscraper"

// Root returns the application's state directory, it is created if it does not exist.
// ORDERSCRAPER_STATE_DIR overrides the default of <user config dir>/orderscraper.
func Root() (string, error) {
	dir := os.Getenv("ORDERSCRAPER_STATE_DIR")
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(base, appName)
	}
	err := os.MkdirAll(dir, 0700)
	if err != nil {
		return "", err
	}
	return dir, nil
}

// ResolvePath replaces a leading "<state>" in path with Root(), other paths are returned as is.
func ResolvePath(path string) (string, error) {
	if !strings.HasPrefix(path, Prefix) {
		return path, nil
	}

	root, err := Root()
	if err != nil {
		return "", err
	}

	subpath := strings.TrimLeft(strings.TrimPrefix(path, Prefix), `/\`)
	return filepath.Join(root, subpath), nil
}
