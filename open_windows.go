//go:build windows

package main

import "os/exec"

// openInOS hands target to whatever the shell associates with it.
func openInOS(target string) error {
	abs, err := resolveOpenTarget(target)
	if err != nil {
		return err
	}
	return exec.Command("rundll32.exe", "url.dll,FileProtocolHandler", abs).Start()
}
