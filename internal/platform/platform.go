// Package platform resolves tier-dependent capabilities: which runtime
// permissions a capture needs and how a local file is handed to another
// process.
package platform

import (
	"fmt"
	"strings"
)

// Tier is a coarse platform generation. Behaviour that differs between OS
// releases is keyed on it instead of on raw version numbers.
type Tier int

const (
	// Legacy predates content-sharing handles; files are passed by path.
	Legacy Tier = iota
	// ContentURI requires content-sharing handles for cross-process file access.
	ContentURI
	// GranularMedia replaces storage permissions with per-media read permissions.
	GranularMedia
)

func (t Tier) String() string {
	switch t {
	case Legacy:
		return "legacy"
	case ContentURI:
		return "content-uri"
	case GranularMedia:
		return "granular-media"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// ParseTier accepts the names produced by String. An empty string yields
// GranularMedia.
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "granular-media":
		return GranularMedia, nil
	case "content-uri":
		return ContentURI, nil
	case "legacy":
		return Legacy, nil
	default:
		return Legacy, fmt.Errorf("unknown platform tier %q", s)
	}
}

type Permission string

const (
	PermReadMediaImages      Permission = "read-media-images"
	PermReadExternalStorage  Permission = "read-external-storage"
	PermWriteExternalStorage Permission = "write-external-storage"
	PermCamera               Permission = "camera"
)

// CapturePermissions returns the exact set that must be held before the
// capture source prompt may be shown.
func CapturePermissions(t Tier) []Permission {
	if t >= GranularMedia {
		return []Permission{PermReadMediaImages, PermCamera}
	}
	return []Permission{PermReadExternalStorage, PermWriteExternalStorage, PermCamera}
}

// FileAccess says how a local file is addressed when handed to another
// process.
type FileAccess int

const (
	DirectFile FileAccess = iota
	SharedHandle
)

func (a FileAccess) String() string {
	if a == SharedHandle {
		return "shared-handle"
	}
	return "direct-file"
}

// InstallAccess picks the file addressing strategy for the installer handoff.
func InstallAccess(t Tier) FileAccess {
	if t >= ContentURI {
		return SharedHandle
	}
	return DirectFile
}
