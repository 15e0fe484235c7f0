//go:build windows

package main

import (
	"errors"

	"golang.org/x/sys/windows"
)

var singleInstanceMutex windows.Handle

func tryAcquireSingleInstance(appID string) (primary bool, release func(), err error) {
	name := "Local\\" + sanitizeInstanceName(appID)
	ptr, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return false, nil, err
	}
	h, err := windows.CreateMutex(nil, false, ptr)
	// CreateMutex reports ERROR_ALREADY_EXISTS alongside a valid handle when
	// another process owns the name.
	if err != nil && !errors.Is(err, windows.ERROR_ALREADY_EXISTS) {
		return false, nil, err
	}
	already := windows.GetLastError() == windows.ERROR_ALREADY_EXISTS || errors.Is(err, windows.ERROR_ALREADY_EXISTS)
	if already {
		_ = windows.CloseHandle(h)
		return false, func() {}, nil
	}

	singleInstanceMutex = h
	return true, func() {
		if singleInstanceMutex != 0 {
			_ = windows.CloseHandle(singleInstanceMutex)
			singleInstanceMutex = 0
		}
	}, nil
}
