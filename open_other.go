//go:build !windows

package main

import (
	"os/exec"
	"runtime"
)

// openInOS hands target to whatever the desktop associates with it.
func openInOS(target string) error {
	abs, err := resolveOpenTarget(target)
	if err != nil {
		return err
	}
	opener := "xdg-open"
	if runtime.GOOS == "darwin" {
		opener = "open"
	}
	return exec.Command(opener, abs).Start()
}
