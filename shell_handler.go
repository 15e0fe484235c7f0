package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"
)

const (
	shellPathPrefix = "/__shell/"
	offlinePage     = "offline.html"
	bridgeScriptTag = `<script src="/__shell/bridge.js"></script>`

	proxyDialTimeout = 10 * time.Second
)

// shellHandler is the webview's asset server. It serves the shell's own
// pages and captured files and proxies everything else to the wrapped page.
type shellHandler struct {
	target   *url.URL
	proxy    *httputil.ReverseProxy
	static   fs.FS
	captures http.Handler
	log      *slog.Logger
}

func newShellHandler(pageURL string, static fs.FS, captures http.Handler, log *slog.Logger) (*shellHandler, error) {
	target, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil {
		return nil, fmt.Errorf("page url: %w", err)
	}
	if (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		return nil, fmt.Errorf("page url %q must be absolute http(s)", pageURL)
	}
	h := &shellHandler{target: target, static: static, captures: captures, log: log}
	h.proxy = &httputil.ReverseProxy{
		Rewrite:        h.rewrite,
		ModifyResponse: h.modifyResponse,
		ErrorHandler:   h.proxyError,
		Transport:      newProxyTransport(proxyDialTimeout),
	}
	return h, nil
}

// newProxyTransport bounds connect and TLS setup so an unreachable page falls
// through to the offline page quickly.
func newProxyTransport(dialTimeout time.Duration) *http.Transport {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout}).DialContext,
		TLSHandshakeTimeout:   dialTimeout,
		ResponseHeaderTimeout: 10 * time.Second,
		IdleConnTimeout:       90 * time.Second,
	}
}

func (h *shellHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasPrefix(r.URL.Path, capturePathPrefix):
		h.captures.ServeHTTP(w, r)
	case strings.HasPrefix(r.URL.Path, shellPathPrefix):
		h.serveStatic(w, r)
	default:
		h.proxy.ServeHTTP(w, r)
	}
}

func (h *shellHandler) serveStatic(w http.ResponseWriter, r *http.Request) {
	clean := path.Clean(r.URL.Path)
	name := strings.TrimPrefix(clean, strings.TrimSuffix(shellPathPrefix, "/"))
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		name = "settings.html"
	}
	data, err := fs.ReadFile(h.static, name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	http.ServeContent(w, r, path.Base(name), time.Time{}, bytes.NewReader(data))
}

func (h *shellHandler) rewrite(pr *httputil.ProxyRequest) {
	pr.SetURL(h.target)
	pr.Out.Host = h.target.Host
	// The transport negotiates and strips compression itself, which keeps
	// HTML bodies rewritable.
	pr.Out.Header.Del("Accept-Encoding")
	origin := h.target.Scheme + "://" + h.target.Host
	if pr.In.Header.Get("Origin") != "" {
		pr.Out.Header.Set("Origin", origin)
	}
	if ref := pr.In.Header.Get("Referer"); ref != "" {
		if u, err := url.Parse(ref); err == nil {
			pr.Out.Header.Set("Referer", origin+u.RequestURI())
		}
	}
}

func (h *shellHandler) modifyResponse(resp *http.Response) error {
	if loc := resp.Header.Get("Location"); loc != "" {
		resp.Header.Set("Location", h.localise(loc))
	}
	if cookies := resp.Header.Values("Set-Cookie"); len(cookies) > 0 {
		resp.Header.Del("Set-Cookie")
		for _, c := range cookies {
			resp.Header.Add("Set-Cookie", hostOnlyCookie(c))
		}
	}

	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(ct), "text/html") || resp.Header.Get("Content-Encoding") != "" {
		return nil
	}
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return err
	}
	body = injectBridge(body)
	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))
	resp.Header.Set("Content-Length", strconv.Itoa(len(body)))
	return nil
}

// localise maps redirects that point back at the wrapped site onto the
// webview's own origin.
func (h *shellHandler) localise(loc string) string {
	u, err := url.Parse(loc)
	if err != nil || !u.IsAbs() || !strings.EqualFold(u.Host, h.target.Host) {
		return loc
	}
	return u.RequestURI()
}

// hostOnlyCookie drops attributes that would stop the webview origin from
// storing a cookie set by the wrapped site.
func hostOnlyCookie(raw string) string {
	c, err := http.ParseSetCookie(raw)
	if err != nil {
		return raw
	}
	c.Domain = ""
	c.Secure = false
	if c.SameSite == http.SameSiteNoneMode {
		c.SameSite = http.SameSiteLaxMode
	}
	return c.String()
}

func injectBridge(html []byte) []byte {
	lower := bytes.ToLower(html)
	if bytes.Contains(lower, []byte(`src="/__shell/bridge.js"`)) {
		return html
	}
	at := bytes.Index(lower, []byte("</head>"))
	if at < 0 {
		out := make([]byte, 0, len(html)+len(bridgeScriptTag))
		out = append(out, bridgeScriptTag...)
		return append(out, html...)
	}
	out := make([]byte, 0, len(html)+len(bridgeScriptTag))
	out = append(out, html[:at]...)
	out = append(out, bridgeScriptTag...)
	return append(out, html[at:]...)
}

func (h *shellHandler) proxyError(w http.ResponseWriter, r *http.Request, err error) {
	h.log.Warn("page unreachable", "path", r.URL.Path, "err", err)
	if !wantsHTML(r) {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "page unreachable"})
		return
	}
	data, readErr := fs.ReadFile(h.static, offlinePage)
	if readErr != nil {
		http.Error(w, "page unreachable", http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusBadGateway)
	_, _ = w.Write(data)
}

func wantsHTML(r *http.Request) bool {
	if r.Method != http.MethodGet {
		return false
	}
	if strings.Contains(r.Header.Get("Accept"), "text/html") {
		return true
	}
	base := path.Base(r.URL.Path)
	return r.URL.Path == "/" || !strings.Contains(base, ".")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
