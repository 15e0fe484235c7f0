package capture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"Distributor/internal/platform"
)

type fakePerms struct {
	granted   map[platform.Permission]bool
	grantAll  bool
	requested [][]platform.Permission
}

func (p *fakePerms) Granted(perm platform.Permission) bool { return p.granted[perm] }

func (p *fakePerms) Request(_ context.Context, perms []platform.Permission) map[platform.Permission]bool {
	p.requested = append(p.requested, perms)
	out := map[platform.Permission]bool{}
	for _, perm := range perms {
		out[perm] = p.grantAll
	}
	return out
}

type fakePrompter struct {
	src     Source
	ok      bool
	prompts int
}

func (p *fakePrompter) ChooseSource(_ context.Context, _ string, _ []Choice) (Source, bool) {
	p.prompts++
	return p.src, p.ok
}

type fakeLauncher struct {
	cannot  map[platform.Action]bool
	refuse  bool
	result  ActivityResult
	capture []byte
	started []platform.Intent
}

func (l *fakeLauncher) CanHandle(in platform.Intent) bool {
	if in.Action == platform.ActionGetContent && len(in.ExtraMIMETypes) > 0 && l.refuse {
		return false
	}
	return !l.cannot[in.Action]
}

func (l *fakeLauncher) Start(_ context.Context, in platform.Intent) (ActivityResult, error) {
	l.started = append(l.started, in)
	if in.Action == platform.ActionImageCapture && l.capture != nil {
		if err := os.WriteFile(in.Output, l.capture, 0o644); err != nil {
			return ActivityResult{}, err
		}
	}
	return l.result, nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (n *fakeNotifier) Notify(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
}

func newTestSelector(t *testing.T, perms Permissions, pr Prompter, l Launcher, n Notifier) (*Slot, *Selector) {
	t.Helper()
	slot := NewSlot(nil)
	sel := NewSelector(slot, SelectorConfig{
		Tier:        platform.GranularMedia,
		PicturesDir: t.TempDir(),
		Permissions: perms,
		Prompter:    pr,
		Launcher:    l,
		Notifier:    n,
		Now:         func() time.Time { return time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC) },
	})
	return slot, sel
}

func grantedAll() *fakePerms {
	return &fakePerms{granted: map[platform.Permission]bool{
		platform.PermReadMediaImages: true,
		platform.PermCamera:          true,
	}}
}

func TestRequestTypedPickerDeliversSelection(t *testing.T) {
	l := &fakeLauncher{result: ActivityResult{OK: true, Data: "/data/prices.csv"}}
	_, sel := newTestSelector(t, grantedAll(), &fakePrompter{src: SourceFile, ok: true}, l, &fakeNotifier{})

	var rec recorder
	if err := sel.Request(context.Background(), rec.cb); err != nil {
		t.Fatalf("Request: %v", err)
	}
	if len(rec.calls) != 1 || rec.calls[0].Path != "/data/prices.csv" {
		t.Fatalf("calls=%+v", rec.calls)
	}
	if len(l.started) != 1 || len(l.started[0].ExtraMIMETypes) == 0 {
		t.Fatalf("started=%+v", l.started)
	}
}

func TestRequestTypedPickerFallsBackToUnrestricted(t *testing.T) {
	l := &fakeLauncher{refuse: true, result: ActivityResult{OK: true, Data: "/data/any.bin"}}
	_, sel := newTestSelector(t, grantedAll(), &fakePrompter{src: SourceFile, ok: true}, l, &fakeNotifier{})

	var rec recorder
	if err := sel.Request(context.Background(), rec.cb); err != nil {
		t.Fatalf("Request: %v", err)
	}
	if len(l.started) != 1 {
		t.Fatalf("started=%d intents", len(l.started))
	}
	if got := l.started[0]; len(got.ExtraMIMETypes) != 0 || !got.LocalOnly {
		t.Fatalf("fallback intent=%+v", got)
	}
	if len(rec.calls) != 1 || rec.calls[0].Path != "/data/any.bin" {
		t.Fatalf("calls=%+v", rec.calls)
	}
}

func TestRequestCancelledPickerResolvesEmpty(t *testing.T) {
	l := &fakeLauncher{result: ActivityResult{OK: false}}
	_, sel := newTestSelector(t, grantedAll(), &fakePrompter{src: SourceAnyFile, ok: true}, l, &fakeNotifier{})

	var rec recorder
	if err := sel.Request(context.Background(), rec.cb); err != nil {
		t.Fatalf("Request: %v", err)
	}
	if len(rec.calls) != 1 || !rec.calls[0].Empty() {
		t.Fatalf("calls=%+v", rec.calls)
	}
}

func TestRequestDismissedPromptResolvesEmpty(t *testing.T) {
	l := &fakeLauncher{}
	_, sel := newTestSelector(t, grantedAll(), &fakePrompter{ok: false}, l, &fakeNotifier{})

	var rec recorder
	if err := sel.Request(context.Background(), rec.cb); err != nil {
		t.Fatalf("Request: %v", err)
	}
	if len(rec.calls) != 1 || !rec.calls[0].Empty() {
		t.Fatalf("calls=%+v", rec.calls)
	}
	if len(l.started) != 0 {
		t.Fatalf("launcher started %d intents", len(l.started))
	}
}

func TestRequestPermissionDenied(t *testing.T) {
	perms := &fakePerms{granted: map[platform.Permission]bool{}, grantAll: false}
	pr := &fakePrompter{src: SourceCamera, ok: true}
	l := &fakeLauncher{}
	n := &fakeNotifier{}
	_, sel := newTestSelector(t, perms, pr, l, n)

	var rec recorder
	err := sel.Request(context.Background(), rec.cb)
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("err=%v want ErrPermissionDenied", err)
	}
	if len(perms.requested) != 1 {
		t.Fatalf("permission prompts=%d", len(perms.requested))
	}
	if len(rec.calls) != 1 || !rec.calls[0].Empty() {
		t.Fatalf("calls=%+v", rec.calls)
	}
	if pr.prompts != 0 || len(l.started) != 0 {
		t.Fatalf("prompts=%d started=%d", pr.prompts, len(l.started))
	}
	if len(n.msgs) != 1 || n.msgs[0] != NoticePermissions {
		t.Fatalf("notices=%v", n.msgs)
	}
}

func TestRequestPermissionGrantedProceeds(t *testing.T) {
	perms := &fakePerms{granted: map[platform.Permission]bool{}, grantAll: true}
	l := &fakeLauncher{result: ActivityResult{OK: true, Data: "/x.xlsx"}}
	_, sel := newTestSelector(t, perms, &fakePrompter{src: SourceFile, ok: true}, l, &fakeNotifier{})

	var rec recorder
	if err := sel.Request(context.Background(), rec.cb); err != nil {
		t.Fatalf("Request: %v", err)
	}
	if len(perms.requested) != 1 || len(perms.requested[0]) != 2 {
		t.Fatalf("requested=%v", perms.requested)
	}
	if len(rec.calls) != 1 || rec.calls[0].Path != "/x.xlsx" {
		t.Fatalf("calls=%+v", rec.calls)
	}
}

func TestRequestCameraWritesTempFile(t *testing.T) {
	l := &fakeLauncher{result: ActivityResult{OK: true}, capture: []byte("jpeg")}
	slot, sel := newTestSelector(t, grantedAll(), &fakePrompter{src: SourceCamera, ok: true}, l, &fakeNotifier{})

	var rec recorder
	if err := sel.Request(context.Background(), rec.cb); err != nil {
		t.Fatalf("Request: %v", err)
	}
	if len(rec.calls) != 1 || rec.calls[0].Empty() {
		t.Fatalf("calls=%+v", rec.calls)
	}
	got := rec.calls[0].Path
	if base := filepath.Base(got); base[:21] != "JPEG_20261018_093000_" || filepath.Ext(base) != ".jpg" {
		t.Fatalf("photo name=%q", base)
	}
	if b, err := os.ReadFile(got); err != nil || string(b) != "jpeg" {
		t.Fatalf("photo contents=%q err=%v", b, err)
	}
	if slot.TransientPath() != "" {
		t.Fatal("transient path not cleared")
	}
	if l.started[0].Output != got || !l.started[0].Has(platform.FlagGrantWrite) {
		t.Fatalf("camera intent=%+v", l.started[0])
	}
}

func TestRequestCameraCancelledRemovesTempFile(t *testing.T) {
	dir := t.TempDir()
	l := &fakeLauncher{result: ActivityResult{OK: false}}
	slot := NewSlot(nil)
	sel := NewSelector(slot, SelectorConfig{
		PicturesDir: dir,
		Prompter:    &fakePrompter{src: SourceCamera, ok: true},
		Launcher:    l,
	})

	var rec recorder
	if err := sel.Request(context.Background(), rec.cb); err != nil {
		t.Fatalf("Request: %v", err)
	}
	if len(rec.calls) != 1 || !rec.calls[0].Empty() {
		t.Fatalf("calls=%+v", rec.calls)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("temp files left behind: %d", len(entries))
	}
}

func TestRequestNoCamera(t *testing.T) {
	l := &fakeLauncher{cannot: map[platform.Action]bool{platform.ActionImageCapture: true}}
	n := &fakeNotifier{}
	_, sel := newTestSelector(t, grantedAll(), &fakePrompter{src: SourceCamera, ok: true}, l, n)

	var rec recorder
	err := sel.Request(context.Background(), rec.cb)
	if !errors.Is(err, ErrNoActivity) {
		t.Fatalf("err=%v", err)
	}
	if len(rec.calls) != 1 || !rec.calls[0].Empty() {
		t.Fatalf("calls=%+v", rec.calls)
	}
	if len(n.msgs) != 1 || n.msgs[0] != NoticeNoCamera {
		t.Fatalf("notices=%v", n.msgs)
	}
}

// firstBlocksPrompter blocks its first prompt until the context is cancelled
// and answers later prompts immediately.
type firstBlocksPrompter struct {
	mu      sync.Mutex
	calls   int
	entered chan struct{}
}

func (p *firstBlocksPrompter) ChooseSource(ctx context.Context, _ string, _ []Choice) (Source, bool) {
	p.mu.Lock()
	p.calls++
	n := p.calls
	p.mu.Unlock()
	if n == 1 {
		close(p.entered)
		<-ctx.Done()
		return 0, false
	}
	return SourceFile, true
}

func TestRequestSupersededWhilePrompting(t *testing.T) {
	pr := &firstBlocksPrompter{entered: make(chan struct{})}
	l := &fakeLauncher{result: ActivityResult{OK: true, Data: "/second.csv"}}
	_, sel := newTestSelector(t, grantedAll(), pr, l, &fakeNotifier{})

	var mu sync.Mutex
	var firstCalls []Result
	done := make(chan error, 1)
	go func() {
		done <- sel.Request(context.Background(), func(r Result) {
			mu.Lock()
			firstCalls = append(firstCalls, r)
			mu.Unlock()
		})
	}()

	select {
	case <-pr.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first capture never prompted")
	}

	var rec recorder
	if err := sel.Request(context.Background(), rec.cb); err != nil {
		t.Fatalf("second Request: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("first Request: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first Request did not return after being superseded")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(firstCalls) != 1 || !firstCalls[0].Empty() {
		t.Fatalf("first calls=%+v", firstCalls)
	}
	if len(rec.calls) != 1 || rec.calls[0].Path != "/second.csv" {
		t.Fatalf("second calls=%+v", rec.calls)
	}
}

func TestHandleResultLateIsDropped(t *testing.T) {
	slot, sel := newTestSelector(t, nil, &fakePrompter{}, &fakeLauncher{}, nil)
	var rec recorder
	tk := slot.Begin(rec.cb, SourceFile)
	slot.Resolve(NoResult)
	sel.HandleResult(tk, ActivityResult{OK: true, Data: "/late"})
	if len(rec.calls) != 1 || !rec.calls[0].Empty() {
		t.Fatalf("calls=%+v", rec.calls)
	}
}

type seqPrompter struct {
	mu      sync.Mutex
	sources []Source
}

func (p *seqPrompter) ChooseSource(_ context.Context, _ string, _ []Choice) (Source, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	src := p.sources[0]
	if len(p.sources) > 1 {
		p.sources = p.sources[1:]
	}
	return src, true
}

// blockingCamera holds the camera open until the capture is cancelled and
// answers file pickers immediately.
type blockingCamera struct {
	entered chan struct{}
}

func (blockingCamera) CanHandle(platform.Intent) bool { return true }

func (c blockingCamera) Start(ctx context.Context, in platform.Intent) (ActivityResult, error) {
	if in.Action != platform.ActionImageCapture {
		return ActivityResult{OK: true, Data: "/second.csv"}, nil
	}
	close(c.entered)
	<-ctx.Done()
	return ActivityResult{}, nil
}

func TestSupersededCameraRemovesTempFile(t *testing.T) {
	dir := t.TempDir()
	cam := blockingCamera{entered: make(chan struct{})}
	sel := NewSelector(NewSlot(nil), SelectorConfig{
		PicturesDir: dir,
		Prompter:    &seqPrompter{sources: []Source{SourceCamera, SourceAnyFile}},
		Launcher:    cam,
	})

	done := make(chan error, 1)
	go func() {
		done <- sel.Request(context.Background(), func(Result) {})
	}()
	select {
	case <-cam.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("camera never started")
	}

	var rec recorder
	if err := sel.Request(context.Background(), rec.cb); err != nil {
		t.Fatalf("second Request: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("first Request: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("camera capture did not return after being superseded")
	}

	if len(rec.calls) != 1 || rec.calls[0].Path != "/second.csv" {
		t.Fatalf("calls=%+v", rec.calls)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("camera temp files left behind: %d", len(entries))
	}
}
