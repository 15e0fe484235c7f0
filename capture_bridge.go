package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/wailsapp/wails/v2/pkg/runtime"

	"Distributor/internal/capture"
	"Distributor/internal/platform"
	"Distributor/internal/settings"
)

// shellLauncher services capture intents with the native file dialog and an
// external camera command.
type shellLauncher struct {
	rt            shellRuntime
	cameraCommand string
	log           *slog.Logger
}

func (l *shellLauncher) CanHandle(in platform.Intent) bool {
	switch in.Action {
	case platform.ActionGetContent:
		return true
	case platform.ActionImageCapture:
		return strings.TrimSpace(l.cameraCommand) != ""
	default:
		return false
	}
}

func (l *shellLauncher) Start(ctx context.Context, in platform.Intent) (capture.ActivityResult, error) {
	switch in.Action {
	case platform.ActionGetContent:
		return l.pickFile(in)
	case platform.ActionImageCapture:
		return l.runCamera(ctx, in)
	default:
		return capture.ActivityResult{}, capture.ErrNoActivity
	}
}

func (l *shellLauncher) pickFile(in platform.Intent) (capture.ActivityResult, error) {
	path, err := l.rt.OpenFileDialog(runtime.OpenDialogOptions{
		Title:   "Select File",
		Filters: fileFilters(in.ExtraMIMETypes),
	})
	if err != nil {
		return capture.ActivityResult{}, err
	}
	return capture.ActivityResult{OK: path != "", Data: path}, nil
}

func (l *shellLauncher) runCamera(ctx context.Context, in platform.Intent) (capture.ActivityResult, error) {
	if !l.CanHandle(in) {
		return capture.ActivityResult{}, capture.ErrNoActivity
	}
	out, err := resolveOpenTarget(in.Output)
	if err != nil {
		return capture.ActivityResult{}, err
	}
	args := cameraArgs(l.cameraCommand, out)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return capture.ActivityResult{}, fmt.Errorf("%w: %v", capture.ErrNoActivity, err)
		}
		var exitErr *exec.ExitError
		if ctx.Err() != nil || errors.As(err, &exitErr) {
			l.log.Info("camera command ended without a photo", "err", err)
			return capture.ActivityResult{}, nil
		}
		return capture.ActivityResult{}, err
	}
	return capture.ActivityResult{OK: true}, nil
}

// cameraArgs splits command on whitespace and substitutes {output} with the
// image path, appending the path when the placeholder is absent.
func cameraArgs(command, output string) []string {
	fields := strings.Fields(command)
	substituted := false
	for i, f := range fields {
		if strings.Contains(f, "{output}") {
			fields[i] = strings.ReplaceAll(f, "{output}", output)
			substituted = true
		}
	}
	if !substituted {
		fields = append(fields, output)
	}
	return fields
}

var mimeExtensions = map[string][]string{
	"text/csv":                    {"*.csv"},
	"text/comma-separated-values": {"*.csv"},
	"application/csv":             {"*.csv"},
	"text/plain":                  {"*.txt"},
	"application/vnd.ms-excel":    {"*.xls"},
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": {"*.xlsx"},
}

// fileFilters maps a MIME allow-list onto dialog patterns. Unmapped types
// such as application/octet-stream are covered by the trailing catch-all.
func fileFilters(mimeTypes []string) []runtime.FileFilter {
	patterns := lo.Uniq(lo.FlatMap(mimeTypes, func(m string, _ int) []string {
		return mimeExtensions[m]
	}))
	if len(patterns) == 0 {
		return nil
	}
	return []runtime.FileFilter{
		{DisplayName: "Spreadsheets (CSV/Excel)", Pattern: strings.Join(patterns, ";")},
		{DisplayName: "All Files", Pattern: "*.*"},
	}
}

// eventPrompter asks the page to render the source chooser and waits for
// its reply event.
type eventPrompter struct {
	rt shellRuntime

	mu      sync.Mutex
	waiting map[string]chan sourceReply
}

func newEventPrompter(rt shellRuntime) *eventPrompter {
	return &eventPrompter{rt: rt, waiting: map[string]chan sourceReply{}}
}

func (p *eventPrompter) ChooseSource(ctx context.Context, title string, choices []capture.Choice) (capture.Source, bool) {
	id := uuid.NewString()
	ch := make(chan sourceReply, 1)
	p.mu.Lock()
	p.waiting[id] = ch
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.waiting, id)
		p.mu.Unlock()
	}()

	p.rt.Emit(eventChooseSource, sourcePrompt{ID: id, Title: title, Choices: choices})
	select {
	case r := <-ch:
		return r.Source, r.OK
	case <-ctx.Done():
		p.rt.Emit(eventDismissSource, id)
		return 0, false
	}
}

// reply routes a chooser answer to the prompt waiting on it. Answers for
// prompts that are gone are dropped.
func (p *eventPrompter) reply(r sourceReply) bool {
	p.mu.Lock()
	ch, ok := p.waiting[r.ID]
	p.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- r:
		return true
	default:
		return false
	}
}

const settingGrantedPermissions = "grantedPermissions"

var permissionLabels = map[platform.Permission]string{
	platform.PermReadMediaImages:      "Read photos and images",
	platform.PermReadExternalStorage:  "Read files on this computer",
	platform.PermWriteExternalStorage: "Save files on this computer",
	platform.PermCamera:               "Use the camera",
}

// dialogPermissions asks once with a native dialog and remembers grants in
// the settings store.
type dialogPermissions struct {
	rt    shellRuntime
	store *settings.Store
	log   *slog.Logger
}

func (d *dialogPermissions) granted() []platform.Permission {
	raw, ok, err := d.store.Get(settingGrantedPermissions)
	if err != nil || !ok {
		return nil
	}
	var out []platform.Permission
	if err := json.Unmarshal(raw, &out); err != nil {
		d.log.Warn("granted permissions unreadable", "err", err)
		return nil
	}
	return out
}

func (d *dialogPermissions) Granted(p platform.Permission) bool {
	return lo.Contains(d.granted(), p)
}

func (d *dialogPermissions) Request(ctx context.Context, perms []platform.Permission) map[platform.Permission]bool {
	lines := lo.Map(perms, func(p platform.Permission, _ int) string {
		return "• " + lo.ValueOr(permissionLabels, p, string(p))
	})
	res, err := d.rt.MessageDialog(runtime.MessageDialogOptions{
		Type:          runtime.QuestionDialog,
		Title:         "Permissions",
		Message:       "Distributor needs the following to attach files:\n\n" + strings.Join(lines, "\n"),
		Buttons:       []string{"Allow", "Deny"},
		DefaultButton: "Allow",
		CancelButton:  "Deny",
	})
	allowed := err == nil && ctx.Err() == nil && (res == "Allow" || res == "Yes" || res == "Ok")
	if err != nil {
		d.log.Warn("permission dialog failed", "err", err)
	}
	if allowed {
		all := lo.Union(d.granted(), perms)
		if b, err := json.Marshal(all); err == nil {
			if err := d.store.Set(settingGrantedPermissions, b); err != nil {
				d.log.Warn("persist permissions failed", "err", err)
			}
		}
	}
	return lo.SliceToMap(perms, func(p platform.Permission) (platform.Permission, bool) {
		return p, allowed
	})
}
