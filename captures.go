package main

import (
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"Distributor/internal/platform"
)

const (
	capturePathPrefix = "/__shell/capture/"
	captureTTL        = 10 * time.Minute
)

// fileSharer hands local files to other processes. A file:// URI is the
// shared handle on the desktop.
type fileSharer struct{}

func (fileSharer) Share(path string, access platform.FileAccess, _ platform.Flag) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if access == platform.DirectFile {
		return abs, nil
	}
	p := filepath.ToSlash(abs)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return (&url.URL{Scheme: "file", Path: p}).String(), nil
}

type captureEntry struct {
	path    string
	expires time.Time
}

// captureRegistry publishes captured files to the page under short-lived
// unguessable URLs.
type captureRegistry struct {
	mu      sync.Mutex
	entries map[string]captureEntry
	now     func() time.Time
}

func newCaptureRegistry() *captureRegistry {
	return &captureRegistry{entries: map[string]captureEntry{}, now: time.Now}
}

func (r *captureRegistry) Publish(path string) CaptureResult {
	token := uuid.NewString()
	r.mu.Lock()
	r.pruneLocked()
	r.entries[token] = captureEntry{path: path, expires: r.now().Add(captureTTL)}
	r.mu.Unlock()
	return CaptureResult{
		URL:  capturePathPrefix + token,
		Name: filepath.Base(path),
		MIME: mimeOf(path),
	}
}

func (r *captureRegistry) lookup(token string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[token]
	if !ok {
		return "", false
	}
	if r.now().After(e.expires) {
		delete(r.entries, token)
		return "", false
	}
	return e.path, true
}

func (r *captureRegistry) pruneLocked() {
	now := r.now()
	for k, e := range r.entries {
		if now.After(e.expires) {
			delete(r.entries, k)
		}
	}
}

func (r *captureRegistry) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	token := strings.TrimPrefix(req.URL.Path, capturePathPrefix)
	path, ok := r.lookup(token)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "capture not found"})
		return
	}
	st, err := os.Stat(path)
	if err != nil || st.IsDir() {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "capture file missing"})
		return
	}
	w.Header().Set("Content-Type", mimeOf(path))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename*=UTF-8''%s", url.PathEscape(filepath.Base(path))))
	w.Header().Set("Cache-Control", "no-store")
	http.ServeFile(w, req, path)
}

// mimeOf prefers the extension and sniffs the content when there is none
// the platform knows.
func mimeOf(path string) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); t != "" {
		return t
	}
	if mt, err := mimetype.DetectFile(path); err == nil {
		return mt.String()
	}
	return "application/octet-stream"
}
