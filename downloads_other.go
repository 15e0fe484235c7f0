//go:build !windows

package main

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// platformDownloadsDir honours XDG_DOWNLOAD_DIR, either from the environment
// or from ~/.config/user-dirs.dirs.
func platformDownloadsDir() (string, error) {
	if v := strings.TrimSpace(os.Getenv("XDG_DOWNLOAD_DIR")); v != "" {
		return os.ExpandEnv(v), nil
	}
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	f, err := os.Open(filepath.Join(cfgDir, "user-dirs.dirs"))
	if err != nil {
		return "", err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		v, ok := strings.CutPrefix(line, "XDG_DOWNLOAD_DIR=")
		if !ok {
			continue
		}
		v = strings.Trim(v, "\"")
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		v = strings.ReplaceAll(v, "$HOME", home)
		return os.ExpandEnv(v), nil
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	return "", errors.New("XDG_DOWNLOAD_DIR not set")
}
