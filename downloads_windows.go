//go:build windows

package main

import (
	"errors"
	"os"
	"strings"

	"golang.org/x/sys/windows/registry"
)

// platformDownloadsDir reads the Downloads folder from the user's shell
// folder settings, which follow the folder when it is moved.
func platformDownloadsDir() (string, error) {
	const userShellFolders = `Software\Microsoft\Windows\CurrentVersion\Explorer\User Shell Folders`
	const downloadsGUID = `{374DE290-123F-4565-9164-39C4925E467B}`

	k, err := registry.OpenKey(registry.CURRENT_USER, userShellFolders, registry.QUERY_VALUE)
	if err != nil {
		return "", err
	}
	defer k.Close()

	v, _, err := k.GetStringValue(downloadsGUID)
	if err != nil {
		alt, _, altErr := k.GetStringValue("Downloads")
		if altErr != nil {
			return "", err
		}
		v = alt
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", errors.New("downloads folder not set")
	}
	// Values are usually REG_EXPAND_SZ.
	if expanded, err := registry.ExpandString(v); err == nil {
		v = expanded
	}
	return os.ExpandEnv(v), nil
}
