package update

import (
	"errors"
	"fmt"

	"Distributor/internal/downloads"
	"Distributor/internal/manifest"
)

var (
	ErrDownloadIssue        = errors.New("update: download could not be started")
	ErrFileNotFound         = errors.New("update: downloaded file not found")
	ErrInstallHandoff       = errors.New("update: installer handoff failed")
	ErrReceiverRegistration = errors.New("update: completion listener registration failed")
	ErrBusy                 = errors.New("update: another check is in progress")
	ErrClosed               = errors.New("update: coordinator closed")
)

type State int

const (
	Idle State = iota
	Checking
	Prompting
	Downloading
	AwaitingCompletion
	Installing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Checking:
		return "checking"
	case Prompting:
		return "prompting"
	case Downloading:
		return "downloading"
	case AwaitingCompletion:
		return "awaiting-completion"
	case Installing:
		return "installing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type Outcome int

const (
	NotChecked Outcome = iota
	UpToDate
	UpdateAvailable
	CheckFailed
)

func (o Outcome) String() string {
	switch o {
	case NotChecked:
		return "not-checked"
	case UpToDate:
		return "up-to-date"
	case UpdateAvailable:
		return "update-available"
	case CheckFailed:
		return "check-failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Mode says who asked for a check; it decides what the user gets to see.
type Mode int

const (
	Automatic Mode = iota
	Manual
)

func (m Mode) String() string {
	if m == Manual {
		return "manual"
	}
	return "automatic"
}

// Session is the update state that lives as long as the host view.
type Session struct {
	CurrentVersionCode int               `json:"currentVersionCode"`
	LastOutcome        Outcome           `json:"lastOutcome"`
	Latest             *manifest.Version `json:"latest,omitempty"`
	DownloadID         downloads.ID      `json:"downloadId,omitempty"`
	CheckPerformed     bool              `json:"checkPerformed"`
}

// Snapshot is a copy of the coordinator's state for display and tests.
type Snapshot struct {
	State   State   `json:"state"`
	Session Session `json:"session"`
}
