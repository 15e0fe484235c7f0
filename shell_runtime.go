package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wailsapp/wails/v2/pkg/runtime"
)

// Events exchanged with the bridge script.
const (
	eventNotice          = "shell:notice"
	eventResume          = "shell:resume"
	eventVisibility      = "shell:visibility"
	eventChooseSource    = "shell:choose-source"
	eventDismissSource   = "shell:dismiss-source"
	eventSourceChosen    = "shell:source-chosen"
	eventUpdateBadge     = "shell:update-badge"
	eventDownloadBytes   = "shell:download-progress"
	eventSettingsChanged = "shell:settings-changed"
)

// shellRuntime is the part of the Wails runtime the bridges need.
type shellRuntime interface {
	Emit(event string, data ...any)
	MessageDialog(opts runtime.MessageDialogOptions) (string, error)
	OpenFileDialog(opts runtime.OpenDialogOptions) (string, error)
}

// wailsRuntime forwards to the Wails runtime once startup has handed it a
// context. Before that, events are dropped and dialogs fail.
type wailsRuntime struct {
	ctx context.Context
}

func (w *wailsRuntime) Emit(event string, data ...any) {
	if w.ctx == nil {
		return
	}
	runtime.EventsEmit(w.ctx, event, data...)
}

func (w *wailsRuntime) MessageDialog(opts runtime.MessageDialogOptions) (string, error) {
	if w.ctx == nil {
		return "", fmt.Errorf("window not ready")
	}
	return runtime.MessageDialog(w.ctx, opts)
}

func (w *wailsRuntime) OpenFileDialog(opts runtime.OpenDialogOptions) (string, error) {
	if w.ctx == nil {
		return "", fmt.Errorf("window not ready")
	}
	return runtime.OpenFileDialog(w.ctx, opts)
}

// decodeEventPayload converts the first argument of a frontend event, which
// arrives as decoded JSON, into v.
func decodeEventPayload(data []any, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("empty event payload")
	}
	b, err := json.Marshal(data[0])
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
