package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// resolveOpenTarget turns a handoff reference (a plain path or a file:// URI)
// into an existing absolute path.
func resolveOpenTarget(target string) (string, error) {
	target = strings.TrimSpace(target)
	target = strings.Trim(target, "\"")
	if target == "" {
		return "", errors.New("nothing to open")
	}
	if strings.HasPrefix(target, "file://") {
		u, err := url.Parse(target)
		if err != nil {
			return "", fmt.Errorf("bad file uri %q: %w", target, err)
		}
		target = filepath.FromSlash(u.Path)
		// file:///C:/x parses to /C:/x.
		if len(target) >= 3 && target[0] == filepath.Separator && target[2] == ':' {
			target = target[1:]
		}
	}

	abs, err := filepath.Abs(target)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(abs); err != nil {
		return "", err
	}
	return abs, nil
}
