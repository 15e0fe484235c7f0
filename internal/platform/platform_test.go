package platform

import (
	"reflect"
	"testing"
)

func TestCapturePermissions(t *testing.T) {
	tests := []struct {
		name string
		tier Tier
		want []Permission
	}{
		{name: "granular media", tier: GranularMedia, want: []Permission{PermReadMediaImages, PermCamera}},
		{name: "content uri", tier: ContentURI, want: []Permission{PermReadExternalStorage, PermWriteExternalStorage, PermCamera}},
		{name: "legacy", tier: Legacy, want: []Permission{PermReadExternalStorage, PermWriteExternalStorage, PermCamera}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CapturePermissions(tt.tier)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("CapturePermissions(%v)=%v want %v", tt.tier, got, tt.want)
			}
		})
	}
}

func TestInstallAccess(t *testing.T) {
	if got := InstallAccess(Legacy); got != DirectFile {
		t.Fatalf("legacy access=%v", got)
	}
	if got := InstallAccess(ContentURI); got != SharedHandle {
		t.Fatalf("content-uri access=%v", got)
	}
	if got := InstallAccess(GranularMedia); got != SharedHandle {
		t.Fatalf("granular-media access=%v", got)
	}
}

func TestParseTierRoundTrip(t *testing.T) {
	for _, tier := range []Tier{Legacy, ContentURI, GranularMedia} {
		got, err := ParseTier(tier.String())
		if err != nil {
			t.Fatalf("ParseTier(%q): %v", tier.String(), err)
		}
		if got != tier {
			t.Fatalf("ParseTier(%q)=%v want %v", tier.String(), got, tier)
		}
	}
	if got, err := ParseTier("  "); err != nil || got != GranularMedia {
		t.Fatalf("blank tier=%v err=%v", got, err)
	}
	if _, err := ParseTier("android-4"); err == nil {
		t.Fatal("expected error for unknown tier")
	}
}

func TestIntentHas(t *testing.T) {
	in := Intent{Flags: FlagNewTask | FlagGrantRead}
	if !in.Has(FlagNewTask) || !in.Has(FlagGrantRead) {
		t.Fatalf("flags=%b", in.Flags)
	}
	if in.Has(FlagGrantWrite) {
		t.Fatal("unexpected write grant")
	}
}
