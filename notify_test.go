package main

import (
	"errors"
	"testing"
)

func TestNotifierRoutesByVisibility(t *testing.T) {
	rt := &fakeRuntime{}
	n := newShellNotifier(rt, discardLogger())
	var toasts []string
	var toastErr error
	n.toast = func(title, msg string) error {
		toasts = append(toasts, title+": "+msg)
		return toastErr
	}

	n.Notify("Downloading update...")
	if got := rt.eventsNamed(eventNotice); len(got) != 1 || got[0].data[0] != "Downloading update..." {
		t.Fatalf("visible notice events=%+v", got)
	}
	if len(toasts) != 0 {
		t.Fatalf("toast shown while visible: %v", toasts)
	}

	n.setVisible(false)
	n.Notify("Update downloaded! Installing...")
	if len(toasts) != 1 || toasts[0] != noticeTitle+": Update downloaded! Installing..." {
		t.Fatalf("toasts=%v", toasts)
	}
	if len(rt.eventsNamed(eventNotice)) != 1 {
		t.Fatal("hidden notice also emitted in-page")
	}

	toastErr = errors.New("no notification daemon")
	n.Notify("Update file not found")
	if len(rt.eventsNamed(eventNotice)) != 2 {
		t.Fatal("failed toast did not fall back to the page")
	}
}
