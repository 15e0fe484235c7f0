package main

import (
	"errors"
	"log/slog"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"Distributor/internal/settings"
)

const (
	buttonSave   = "Save"
	buttonCancel = "Cancel"
)

var errSettingsDeclined = errors.New("settings change declined")

// SettingsView is the page's view of the settings. Stored passwords stay in
// the shell; the page only learns whether one is set.
type SettingsView struct {
	APIPasswordSet   bool `json:"apiPasswordSet"`
	AdminPasswordSet bool `json:"adminPasswordSet"`
	AutoCheckUpdates bool `json:"autoCheckUpdates"`
}

// SettingsChange is what the page may submit. A nil password keeps the
// stored one.
type SettingsChange struct {
	APIPassword      *string `json:"apiPassword"`
	AdminPassword    *string `json:"adminPassword"`
	AutoCheckUpdates bool    `json:"autoCheckUpdates"`
}

func viewOf(s settings.Settings) SettingsView {
	return SettingsView{
		APIPasswordSet:   s.APIPassword != "",
		AdminPasswordSet: s.AdminPassword != "",
		AutoCheckUpdates: s.AutoCheckUpdates,
	}
}

// settingsBinding backs the settings methods bound to the webview. Password
// changes need a native confirmation the page cannot answer for the user.
type settingsBinding struct {
	store    *settings.Store
	rt       shellRuntime
	notifier *shellNotifier
	log      *slog.Logger
}

func (b *settingsBinding) view() SettingsView {
	return viewOf(b.store.Load())
}

func (b *settingsBinding) save(c SettingsChange) error {
	cur := b.store.Load()
	next := cur
	next.AutoCheckUpdates = c.AutoCheckUpdates
	if c.APIPassword != nil {
		next.APIPassword = *c.APIPassword
	}
	if c.AdminPassword != nil {
		next.AdminPassword = *c.AdminPassword
	}
	if next == cur {
		return nil
	}
	if (next.APIPassword != cur.APIPassword || next.AdminPassword != cur.AdminPassword) && !b.confirmPasswords() {
		b.log.Info("password change declined")
		return errSettingsDeclined
	}
	if err := b.store.Save(next); err != nil {
		return err
	}
	b.notifier.Notify("Settings saved")
	return nil
}

func (b *settingsBinding) confirmPasswords() bool {
	res, err := b.rt.MessageDialog(runtime.MessageDialogOptions{
		Type:          runtime.QuestionDialog,
		Title:         "Change passwords",
		Message:       "Save the new API and admin passwords?",
		Buttons:       []string{buttonSave, buttonCancel},
		DefaultButton: buttonCancel,
		CancelButton:  buttonCancel,
	})
	if err != nil {
		return false
	}
	return res == buttonSave || res == "Yes"
}
