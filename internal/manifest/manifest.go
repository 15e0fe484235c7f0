// Package manifest fetches the remote document describing the latest
// distributable build.
package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var (
	ErrNetwork = errors.New("manifest: network failure")
	ErrParse   = errors.New("manifest: malformed manifest")
)

const (
	ConnectTimeout = 10 * time.Second
	ReadTimeout    = 10 * time.Second

	// CacheBustParam carries the request time so intermediary caches miss.
	CacheBustParam = "t"

	maxBodyBytes = 1 << 20
)

// Version is one parsed manifest. It is produced fresh by every Fetch and
// never mutated afterwards.
type Version struct {
	Code         int    `json:"versionCode"`
	Name         string `json:"versionName"`
	DownloadURL  string `json:"downloadUrl"`
	ReleaseNotes string `json:"releaseNotes"`
}

// NewerThan reports whether v is an update over the given build. Only the
// integer code is compared; names are informational.
func (v Version) NewerThan(currentCode int) bool {
	return v.Code > currentCode
}

type Client struct {
	url  string
	http *http.Client
	now  func() time.Time
}

type Option func(*Client)

// WithHTTPClient replaces the default client. The caller owns its timeouts.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(cl *Client) {
		if now != nil {
			cl.now = now
		}
	}
}

func NewClient(manifestURL string, opts ...Option) *Client {
	c := &Client{
		url:  strings.TrimSpace(manifestURL),
		http: defaultHTTPClient(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func defaultHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   ConnectTimeout,
		ResponseHeaderTimeout: ReadTimeout,
	}
	return &http.Client{Timeout: ConnectTimeout + ReadTimeout, Transport: transport}
}

// URL returns the manifest URL with the cache-defeating parameter applied.
func (c *Client) URL() (string, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return "", fmt.Errorf("%w: bad manifest url: %v", ErrNetwork, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported manifest url %q", ErrNetwork, c.url)
	}
	q := u.Query()
	q.Set(CacheBustParam, strconv.FormatInt(c.now().UnixMilli(), 10))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Fetch performs a single GET of the manifest. It blocks on network I/O and
// never retries.
func (c *Client) Fetch(ctx context.Context) (Version, error) {
	target, err := c.URL()
	if err != nil {
		return Version{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Version{}, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.http.Do(req)
	if err != nil {
		return Version{}, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Version{}, fmt.Errorf("%w: status=%d body=%s", ErrNetwork, resp.StatusCode, strings.TrimSpace(string(b)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Version{}, fmt.Errorf("%w: read body: %v", ErrNetwork, err)
	}
	return Parse(body)
}

// Parse decodes a flat manifest object. All four fields are required and
// must carry the expected JSON types.
func Parse(body []byte) (Version, error) {
	var raw struct {
		Code         *int    `json:"versionCode"`
		Name         *string `json:"versionName"`
		DownloadURL  *string `json:"downloadUrl"`
		ReleaseNotes *string `json:"releaseNotes"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return Version{}, fmt.Errorf("%w: %v", ErrParse, err)
	}

	var missing []string
	if raw.Code == nil {
		missing = append(missing, "versionCode")
	}
	if raw.Name == nil {
		missing = append(missing, "versionName")
	}
	if raw.DownloadURL == nil {
		missing = append(missing, "downloadUrl")
	}
	if raw.ReleaseNotes == nil {
		missing = append(missing, "releaseNotes")
	}
	if len(missing) > 0 {
		return Version{}, fmt.Errorf("%w: missing %s", ErrParse, strings.Join(missing, ", "))
	}

	return Version{
		Code:         *raw.Code,
		Name:         *raw.Name,
		DownloadURL:  *raw.DownloadURL,
		ReleaseNotes: *raw.ReleaseNotes,
	}, nil
}
