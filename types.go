package main

import "Distributor/internal/capture"

// UpdateStatus is what the settings page renders.
type UpdateStatus struct {
	State              string `json:"state"`
	LastOutcome        string `json:"lastOutcome"`
	CurrentVersion     string `json:"currentVersion"`
	CurrentVersionCode int    `json:"currentVersionCode"`
	LatestVersionCode  int    `json:"latestVersionCode,omitempty"`
	LatestVersionName  string `json:"latestVersionName,omitempty"`
	ReleaseNotes       string `json:"releaseNotes,omitempty"`
	DownloadURL        string `json:"downloadUrl,omitempty"`
	BadgeVisible       bool   `json:"badgeVisible"`
	Downloading        bool   `json:"downloading"`
}

// CaptureResult is a captured file as the page sees it. An empty URL means
// the capture produced nothing.
type CaptureResult struct {
	URL  string `json:"url"`
	Name string `json:"name"`
	MIME string `json:"mime"`
}

// sourcePrompt is the payload of the shell:choose-source event.
type sourcePrompt struct {
	ID      string           `json:"id"`
	Title   string           `json:"title"`
	Choices []capture.Choice `json:"choices"`
}

// sourceReply is the payload of the shell:source-chosen event.
type sourceReply struct {
	ID     string         `json:"id"`
	Source capture.Source `json:"source"`
	OK     bool           `json:"ok"`
}
