//go:build windows

package main

import "golang.org/x/sys/windows"

// showSystemError reports a failure that happens before the window exists.
func showSystemError(title, message string) {
	t, err := windows.UTF16PtrFromString(title)
	if err != nil {
		return
	}
	m, err := windows.UTF16PtrFromString(message)
	if err != nil {
		return
	}
	_, _ = windows.MessageBox(0, m, t, windows.MB_OK|windows.MB_ICONERROR)
}
