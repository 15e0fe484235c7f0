package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/skip2/go-qrcode"
	"github.com/wailsapp/wails/v2/pkg/runtime"

	"Distributor/internal/downloads"
	"Distributor/internal/platform"
	"Distributor/internal/update"
)

const (
	buttonUpdateNow = "Update Now"
	buttonLater     = "Later"

	downloadTitle       = "Distributor App Update"
	downloadDescription = "Downloading latest version..."
)

// shellUpdateUI is the coordinator's view onto the window.
type shellUpdateUI struct {
	rt       shellRuntime
	notifier *shellNotifier
	badge    atomic.Bool
}

func (u *shellUpdateUI) Prompt(ctx context.Context, title, message string) bool {
	res, err := u.rt.MessageDialog(runtime.MessageDialogOptions{
		Type:          runtime.QuestionDialog,
		Title:         title,
		Message:       message,
		Buttons:       []string{buttonUpdateNow, buttonLater},
		DefaultButton: buttonUpdateNow,
		CancelButton:  buttonLater,
	})
	if err != nil || ctx.Err() != nil {
		return false
	}
	// Windows only offers Yes/No for question dialogs.
	return res == buttonUpdateNow || res == "Yes"
}

func (u *shellUpdateUI) Notify(msg string) {
	u.notifier.Notify(msg)
}

func (u *shellUpdateUI) SetBadge(visible bool) {
	u.badge.Store(visible)
	u.rt.Emit(eventUpdateBadge, visible)
}

// osInstaller hands a downloaded package to the OS's handler for its type.
type osInstaller struct {
	open func(target string) error
	log  *slog.Logger
}

func (i osInstaller) Install(in platform.Intent) error {
	if in.Action != platform.ActionView {
		return fmt.Errorf("unsupported install action %q", in.Action)
	}
	i.log.Info("install handoff", "data", in.Data, "mime", in.MIME, "grantRead", in.Has(platform.FlagGrantRead))
	return i.open(in.Data)
}

// getDownloadsDir resolves the user's Downloads folder.
func getDownloadsDir() (string, error) {
	if p, err := platformDownloadsDir(); err == nil && strings.TrimSpace(p) != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "Downloads"), nil
}

func (a *App) GetVersion() string {
	return Version
}

// CheckForUpdates is the explicit check behind the settings action. It
// always reports its outcome.
func (a *App) CheckForUpdates() (*UpdateStatus, error) {
	a.notifier.Notify(update.NoticeChecking)
	outcome, err := a.updates.CheckNow(a.ctx)
	a.log.Info("manual update check", "outcome", outcome, "err", err)
	status := a.GetUpdateStatus()
	if errors.Is(err, update.ErrBusy) {
		return status, nil
	}
	return status, err
}

func (a *App) GetUpdateStatus() *UpdateStatus {
	snap := a.updates.Snapshot()
	st := &UpdateStatus{
		State:              snap.State.String(),
		LastOutcome:        snap.Session.LastOutcome.String(),
		CurrentVersion:     Version,
		CurrentVersionCode: snap.Session.CurrentVersionCode,
		BadgeVisible:       a.ui.badge.Load(),
		Downloading:        snap.Session.DownloadID != "",
	}
	if v := snap.Session.Latest; v != nil {
		st.LatestVersionCode = v.Code
		st.LatestVersionName = v.Name
		st.ReleaseNotes = v.ReleaseNotes
		st.DownloadURL = v.DownloadURL
	}
	return st
}

// GetDownloadQRCode renders the newest package URL as a PNG data URL so it
// can be scanned by a device that should install it.
func (a *App) GetDownloadQRCode() (string, error) {
	latest := a.updates.Snapshot().Session.Latest
	if latest == nil || latest.DownloadURL == "" {
		return "", errors.New("no update information yet")
	}
	png, err := qrcode.Encode(latest.DownloadURL, qrcode.Medium, 256)
	if err != nil {
		return "", fmt.Errorf("encode qr code: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

func (a *App) emitDownloadProgress(id downloads.ID, written, total int64) {
	a.rt.Emit(eventDownloadBytes, map[string]any{
		"id":      id,
		"written": written,
		"total":   total,
	})
}
