package main

import (
	"io"
	"log/slog"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/runtime"
)

type emitted struct {
	event string
	data  []any
}

// fakeRuntime records what the bridges ask of the window.
type fakeRuntime struct {
	mu      sync.Mutex
	events  []emitted
	dialogs []runtime.MessageDialogOptions
	opens   []runtime.OpenDialogOptions

	answer    string
	dialogErr error
	openPath  string
	openErr   error
	onEmit    func(event string, data ...any)
}

func (f *fakeRuntime) Emit(event string, data ...any) {
	f.mu.Lock()
	f.events = append(f.events, emitted{event: event, data: data})
	hook := f.onEmit
	f.mu.Unlock()
	if hook != nil {
		hook(event, data...)
	}
}

func (f *fakeRuntime) MessageDialog(opts runtime.MessageDialogOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dialogs = append(f.dialogs, opts)
	return f.answer, f.dialogErr
}

func (f *fakeRuntime) OpenFileDialog(opts runtime.OpenDialogOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens = append(f.opens, opts)
	return f.openPath, f.openErr
}

func (f *fakeRuntime) eventsNamed(name string) []emitted {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []emitted
	for _, e := range f.events {
		if e.event == name {
			out = append(out, e)
		}
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
