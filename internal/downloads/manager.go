// Package downloads is a small download manager: transfers run in the
// background and announce their end through completion broadcasts carrying
// the opaque request id.
package downloads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrClosed = errors.New("downloads: manager closed")

// ID is an opaque request handle. Compare with ==.
type ID string

type Request struct {
	URL         string
	Title       string
	Description string
	// Dest is the final path. Any existing file there is replaced.
	Dest               string
	NotifyOnCompletion bool
}

// Completion is broadcast once per finished request, successful or not.
type Completion struct {
	ID   ID
	Dest string
	Err  error
}

type ProgressFunc func(id ID, written, total int64)

const ProgressEmitInterval = 150 * time.Millisecond

type Manager struct {
	client     *http.Client
	userAgent  string
	log        *slog.Logger
	onProgress ProgressFunc

	mu      sync.Mutex
	subs    map[uint64]func(Completion)
	nextSub uint64
	closed  bool
	active  map[ID]Request
	wg      sync.WaitGroup
}

type Option func(*Manager)

func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) {
		if c != nil {
			m.client = c
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(m *Manager) { m.userAgent = ua }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

func WithProgress(fn ProgressFunc) Option {
	return func(m *Manager) { m.onProgress = fn }
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		client: &http.Client{Timeout: 30 * time.Minute},
		log:    slog.Default(),
		subs:   map[uint64]func(Completion){},
		active: map[ID]Request{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Enqueue validates req, clears the destination and starts the transfer in
// the background. It returns as soon as the request is accepted.
func (m *Manager) Enqueue(req Request) (ID, error) {
	u, err := url.Parse(strings.TrimSpace(req.URL))
	if err != nil {
		return "", fmt.Errorf("downloads: bad url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("downloads: unsupported url %q", req.URL)
	}
	if strings.TrimSpace(req.Dest) == "" {
		return "", errors.New("downloads: destination is empty")
	}
	if err := os.MkdirAll(filepath.Dir(req.Dest), 0o755); err != nil {
		return "", fmt.Errorf("downloads: %w", err)
	}
	if err := os.Remove(req.Dest); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("downloads: clear destination: %w", err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", ErrClosed
	}
	id := ID(uuid.NewString())
	req.URL = u.String()
	m.active[id] = req
	m.wg.Add(1)
	m.mu.Unlock()

	m.log.Info("download enqueued", "id", id, "url", req.URL, "dest", req.Dest, "title", req.Title)
	go m.run(id, req)
	return id, nil
}

// Subscribe registers fn for every completion broadcast from now on. The
// returned cancel is safe to call more than once.
func (m *Manager) Subscribe(fn func(Completion)) (cancel func()) {
	m.mu.Lock()
	m.nextSub++
	key := m.nextSub
	m.subs[key] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, key)
			m.mu.Unlock()
		})
	}
}

// Active reports whether id is still transferring.
func (m *Manager) Active(id ID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active[id]
	return ok
}

// Close stops accepting requests. Transfers already running are left to
// finish.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}

// Wait blocks until every accepted transfer has ended or ctx is done.
func (m *Manager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) run(id ID, req Request) {
	defer m.wg.Done()

	err := m.transfer(id, req)
	if err != nil {
		m.log.Warn("download failed", "id", id, "err", err)
	} else {
		m.log.Info("download finished", "id", id, "dest", req.Dest)
	}

	m.mu.Lock()
	delete(m.active, id)
	var subs []func(Completion)
	if req.NotifyOnCompletion {
		subs = make([]func(Completion), 0, len(m.subs))
		for _, fn := range m.subs {
			subs = append(subs, fn)
		}
	}
	m.mu.Unlock()

	c := Completion{ID: id, Dest: req.Dest, Err: err}
	for _, fn := range subs {
		fn(c)
	}
}

func (m *Manager) transfer(id ID, req Request) error {
	part := req.Dest + ".partial"
	_ = os.Remove(part)

	httpReq, err := http.NewRequest(http.MethodGet, req.URL, nil)
	if err != nil {
		return err
	}
	if strings.TrimSpace(m.userAgent) != "" {
		httpReq.Header.Set("User-Agent", m.userAgent)
	}
	resp, err := m.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return fmt.Errorf("download status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	f, err := os.Create(part)
	if err != nil {
		return err
	}
	var w io.Writer = f
	if m.onProgress != nil {
		w = &progressWriter{w: f, id: id, total: resp.ContentLength, fn: m.onProgress}
	}
	_, copyErr := io.Copy(w, resp.Body)
	closeErr := f.Close()
	if copyErr != nil {
		_ = os.Remove(part)
		return copyErr
	}
	if closeErr != nil {
		_ = os.Remove(part)
		return closeErr
	}
	return os.Rename(part, req.Dest)
}

type progressWriter struct {
	w        io.Writer
	id       ID
	written  int64
	total    int64
	lastEmit time.Time
	fn       ProgressFunc
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.written += int64(n)
	now := time.Now()
	if ShouldEmitProgress(p.lastEmit, now, p.written, p.total) {
		p.lastEmit = now
		p.fn(p.id, p.written, p.total)
	}
	return n, err
}

// ShouldEmitProgress throttles progress callbacks but always lets the final
// one through.
func ShouldEmitProgress(lastEmit, now time.Time, written, total int64) bool {
	if total > 0 && written == total {
		return true
	}
	return now.Sub(lastEmit) > ProgressEmitInterval
}
