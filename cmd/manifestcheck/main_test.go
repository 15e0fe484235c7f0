package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"Distributor/internal/manifest"
)

func manifestServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestRunExitCodes(t *testing.T) {
	const doc = `{"versionCode": 9, "versionName": "1.0.9", "downloadUrl": "https://example.com/app.apk", "releaseNotes": "Faster sync"}`
	tests := []struct {
		name    string
		status  int
		body    string
		current string
		want    int
		contain string
	}{
		{name: "update available", status: 200, body: doc, current: "8", want: exitUpdateAvailable, contain: "update available"},
		{name: "same version", status: 200, body: doc, current: "9", want: exitUpToDate, contain: "up to date"},
		{name: "server error", status: 500, body: "boom", current: "8", want: exitFailure, contain: "check failed"},
		{name: "malformed", status: 200, body: `{"versionName": "x"}`, current: "8", want: exitFailure, contain: "check failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := manifestServer(t, tt.status, tt.body)
			var out, errOut bytes.Buffer
			args := []string{
				"-config", filepath.Join(t.TempDir(), "missing.toml"),
				"-url", ts.URL,
				"-current", tt.current,
			}
			got := run(context.Background(), args, &out, &errOut)
			if got != tt.want {
				t.Fatalf("exit=%d want %d stdout=%q stderr=%q", got, tt.want, out.String(), errOut.String())
			}
			if !strings.Contains(out.String(), tt.contain) {
				t.Fatalf("output missing %q: %q", tt.contain, out.String())
			}
		})
	}
}

func TestRunBadFlag(t *testing.T) {
	var out, errOut bytes.Buffer
	if got := run(context.Background(), []string{"-nope"}, &out, &errOut); got != exitFailure {
		t.Fatalf("exit=%d want %d", got, exitFailure)
	}
}

func TestRenderReportIncludesNotes(t *testing.T) {
	out := renderReport("https://example.com/app-version.json", 8, manifest.Version{
		Code: 9, Name: "1.0.9", DownloadURL: "https://example.com/app.apk", ReleaseNotes: "- Faster sync",
	})
	for _, want := range []string{"1.0.9", "update available", "Faster sync"} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
}
