package main

import (
	"errors"
	"path/filepath"
	"testing"

	"Distributor/internal/settings"
)

func newTestSettingsBinding(t *testing.T, answer string) (*settingsBinding, *fakeRuntime) {
	t.Helper()
	rt := &fakeRuntime{answer: answer}
	store := settings.NewStore(filepath.Join(t.TempDir(), "settings.json"), nil, discardLogger())
	if err := store.Save(settings.Settings{APIPassword: "api-secret", AdminPassword: "admin-secret", AutoCheckUpdates: true}); err != nil {
		t.Fatal(err)
	}
	return &settingsBinding{
		store:    store,
		rt:       rt,
		notifier: newShellNotifier(rt, discardLogger()),
		log:      discardLogger(),
	}, rt
}

func strPtr(s string) *string { return &s }

func TestSettingsViewHidesPasswords(t *testing.T) {
	b, _ := newTestSettingsBinding(t, "")
	got := b.view()
	want := SettingsView{APIPasswordSet: true, AdminPasswordSet: true, AutoCheckUpdates: true}
	if got != want {
		t.Fatalf("view=%+v want %+v", got, want)
	}
	if empty := viewOf(settings.Defaults()); empty.APIPasswordSet || empty.AdminPasswordSet {
		t.Fatalf("defaults view=%+v", empty)
	}
}

func TestSaveSettingsWithoutPasswordsSkipsConfirmation(t *testing.T) {
	b, rt := newTestSettingsBinding(t, "")
	if err := b.save(SettingsChange{AutoCheckUpdates: false}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(rt.dialogs) != 0 {
		t.Fatalf("dialogs=%d", len(rt.dialogs))
	}
	got := b.store.Load()
	if got.AutoCheckUpdates || got.APIPassword != "api-secret" || got.AdminPassword != "admin-secret" {
		t.Fatalf("stored=%+v", got)
	}
}

func TestSavePasswordsNeedsConfirmation(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		saved  bool
	}{
		{name: "save", answer: buttonSave, saved: true},
		{name: "windows yes", answer: "Yes", saved: true},
		{name: "cancel", answer: buttonCancel},
		{name: "closed", answer: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, rt := newTestSettingsBinding(t, tt.answer)
			err := b.save(SettingsChange{APIPassword: strPtr("overwritten"), AutoCheckUpdates: true})
			if len(rt.dialogs) != 1 {
				t.Fatalf("dialogs=%d", len(rt.dialogs))
			}
			got := b.store.Load()
			if tt.saved {
				if err != nil || got.APIPassword != "overwritten" {
					t.Fatalf("err=%v stored=%+v", err, got)
				}
			} else {
				if !errors.Is(err, errSettingsDeclined) || got.APIPassword != "api-secret" {
					t.Fatalf("err=%v stored=%+v", err, got)
				}
			}
			if got.AdminPassword != "admin-secret" {
				t.Fatalf("admin password touched: %+v", got)
			}
		})
	}
}

func TestSaveSettingsDialogErrorDeclines(t *testing.T) {
	b, rt := newTestSettingsBinding(t, buttonSave)
	rt.dialogErr = errors.New("window not ready")
	if err := b.save(SettingsChange{AdminPassword: strPtr(""), AutoCheckUpdates: true}); !errors.Is(err, errSettingsDeclined) {
		t.Fatalf("err=%v", err)
	}
	if got := b.store.Load(); got.AdminPassword != "admin-secret" {
		t.Fatalf("stored=%+v", got)
	}
}
