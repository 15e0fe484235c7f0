// Package update runs the self-update flow: check the manifest, ask the user,
// start the download, match the completion broadcast to that download and
// hand the package to the installer.
package update

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"Distributor/internal/downloads"
	"Distributor/internal/manifest"
	"Distributor/internal/platform"
)

const (
	NoticeChecking       = "Checking for updates..."
	NoticeUpToDate       = "No updates available"
	NoticeNoUpdatesFound = "No updates found"
	NoticeDownloading    = "Downloading update..."
	NoticeInstalling     = "Update downloaded! Installing..."
	NoticeFileNotFound   = "Update file not found"

	PromptTitle = "Update Available!"
)

type Fetcher interface {
	Fetch(ctx context.Context) (manifest.Version, error)
}

type Downloader interface {
	Enqueue(req downloads.Request) (downloads.ID, error)
	Subscribe(fn func(downloads.Completion)) (cancel func())
}

type Installer interface {
	Install(in platform.Intent) error
}

// UI is everything the coordinator shows the user.
type UI interface {
	// Prompt asks whether to install v. Only an explicit accept returns true.
	Prompt(ctx context.Context, title, message string) bool
	Notify(msg string)
	SetBadge(visible bool)
}

type Config struct {
	CurrentVersionCode int
	// Dest is the fixed path downloads are written to.
	Dest             string
	PackageMIME      string
	Tier             platform.Tier
	DownloadTitle    string
	DownloadDescribe string
	// AutoCheck reports whether resume may prompt. Nil means always.
	AutoCheck func() bool
}

type Deps struct {
	Fetcher    Fetcher
	Downloader Downloader
	Installer  Installer
	Sharer     platform.FileSharer
	UI         UI
	Logger     *slog.Logger
}

type Coordinator struct {
	cfg  Config
	deps Deps
	log  *slog.Logger

	mu          sync.Mutex
	state       State
	session     Session
	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
	closed      bool
	// early holds completions heard while Enqueue had not yet returned an id.
	early map[downloads.ID]downloads.Completion
}

func New(cfg Config, deps Deps) *Coordinator {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	if cfg.PackageMIME == "" {
		cfg.PackageMIME = "application/vnd.android.package-archive"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		cfg:     cfg,
		deps:    deps,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
		session: Session{CurrentVersionCode: cfg.CurrentVersionCode},
	}
}

// Start registers the completion listener. A failure leaves the coordinator
// usable without auto-install.
func (c *Coordinator) Start() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrReceiverRegistration, r)
		}
		if err != nil {
			c.log.Warn("update listener not registered", "err", err)
		}
	}()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.unsubscribe != nil {
		return nil
	}
	if c.deps.Downloader == nil {
		return fmt.Errorf("%w: no downloader", ErrReceiverRegistration)
	}
	c.unsubscribe = c.deps.Downloader.Subscribe(c.OnDownloadComplete)
	return nil
}

// Close cancels outstanding checks and unregisters the completion listener.
// Downloads already enqueued keep running; their broadcasts go unheard.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()

	c.cancel()
	if unsubscribe != nil {
		unsubscribe()
	}
	c.log.Info("update coordinator closed")
}

func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.session
	if s.Latest != nil {
		v := *s.Latest
		s.Latest = &v
	}
	return Snapshot{State: c.currentStateLocked(), Session: s}
}

func (c *Coordinator) currentStateLocked() State {
	if c.state == Idle && c.session.DownloadID != "" {
		return AwaitingCompletion
	}
	return c.state
}

// OnResume runs the automatic check the first time the host comes to the
// foreground and a silent badge refresh on every later resume.
func (c *Coordinator) OnResume(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	first := !c.session.CheckPerformed
	c.session.CheckPerformed = true
	c.mu.Unlock()

	if first && c.autoCheckEnabled() {
		_, err := c.Check(ctx, Automatic)
		return err
	}
	_, err := c.RefreshBadge(ctx)
	return err
}

// CheckNow is the explicit re-check. Once it starts it reopens the
// automatic-check gate; a refused check leaves the gate alone.
func (c *Coordinator) CheckNow(ctx context.Context) (Outcome, error) {
	return c.check(ctx, Manual, true)
}

func (c *Coordinator) autoCheckEnabled() bool {
	if c.cfg.AutoCheck == nil {
		return true
	}
	return c.cfg.AutoCheck()
}

// Check fetches the manifest and, when it names a newer build, prompts and
// starts the download on acceptance. Automatic checks never show failures.
// A check is refused with ErrBusy while another one runs or while the
// tracked download has not completed.
func (c *Coordinator) Check(ctx context.Context, mode Mode) (Outcome, error) {
	return c.check(ctx, mode, false)
}

func (c *Coordinator) check(ctx context.Context, mode Mode, reopen bool) (outcome Outcome, err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return NotChecked, ErrClosed
	}
	if busy := c.currentStateLocked(); busy != Idle {
		c.mu.Unlock()
		c.log.Debug("update check skipped", "mode", mode, "state", busy)
		return NotChecked, ErrBusy
	}
	if reopen {
		c.session.CheckPerformed = false
	}
	c.setStateLocked(Checking)
	c.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			c.log.Error("update check panic", "mode", mode, "panic", r)
			outcome, err = CheckFailed, fmt.Errorf("update: %v", r)
			if mode == Manual {
				c.notify(NoticeNoUpdatesFound)
			}
		}
		c.mu.Lock()
		if c.state != Installing {
			c.setStateLocked(Idle)
		}
		c.mu.Unlock()
	}()

	ctx, cancel := c.scoped(ctx)
	defer cancel()

	v, err := c.deps.Fetcher.Fetch(ctx)
	if err != nil {
		c.mu.Lock()
		c.session.LastOutcome = CheckFailed
		c.mu.Unlock()
		c.log.Info("update check failed", "mode", mode, "err", err)
		if mode == Manual {
			c.notify(NoticeNoUpdatesFound)
		}
		return CheckFailed, err
	}

	c.log.Info("update check done", "mode", mode, "server", v.Code, "current", c.cfg.CurrentVersionCode)
	if !v.NewerThan(c.cfg.CurrentVersionCode) {
		c.mu.Lock()
		c.session.LastOutcome = UpToDate
		c.session.Latest = nil
		c.mu.Unlock()
		c.setBadge(false)
		if mode == Manual {
			c.notify(NoticeUpToDate)
		}
		return UpToDate, nil
	}

	c.mu.Lock()
	c.session.LastOutcome = UpdateAvailable
	latest := v
	c.session.Latest = &latest
	c.setStateLocked(Prompting)
	c.mu.Unlock()
	c.setBadge(true)

	if c.deps.UI == nil || !c.deps.UI.Prompt(ctx, PromptTitle, PromptMessage(v)) {
		c.log.Info("update declined", "version", v.Name)
		return UpdateAvailable, nil
	}
	if err := c.startDownload(v); err != nil {
		return UpdateAvailable, err
	}
	return UpdateAvailable, nil
}

// PromptMessage is the body of the update prompt.
func PromptMessage(v manifest.Version) string {
	return fmt.Sprintf("New version %s is available!\n\nWhat's new:\n%s\n\nWould you like to download and install the update?", v.Name, v.ReleaseNotes)
}

func (c *Coordinator) startDownload(v manifest.Version) (err error) {
	c.mu.Lock()
	c.setStateLocked(Downloading)
	c.early = nil
	c.mu.Unlock()

	var cause error
	defer func() {
		if r := recover(); r != nil {
			cause = fmt.Errorf("%v", r)
		}
		if cause != nil {
			err = fmt.Errorf("%w: %w", ErrDownloadIssue, cause)
			c.log.Warn("update download not started", "err", cause)
			c.notify("Failed to start download: " + cause.Error())
		}
	}()

	if c.deps.Downloader == nil {
		cause = errors.New("no downloader")
		return
	}
	id, enqueueErr := c.deps.Downloader.Enqueue(downloads.Request{
		URL:                v.DownloadURL,
		Title:              c.cfg.DownloadTitle,
		Description:        c.cfg.DownloadDescribe,
		Dest:               c.cfg.Dest,
		NotifyOnCompletion: true,
	})
	if enqueueErr != nil {
		cause = enqueueErr
		return
	}

	c.mu.Lock()
	c.session.DownloadID = id
	done, finished := c.early[id]
	c.early = nil
	c.mu.Unlock()
	c.log.Info("update download started", "id", id, "version", v.Name)
	c.notify(NoticeDownloading)
	if finished {
		c.OnDownloadComplete(done)
	}
	return nil
}

// RefreshBadge re-checks silently and only toggles the badge.
func (c *Coordinator) RefreshBadge(ctx context.Context) (visible bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			visible, err = false, fmt.Errorf("update: %v", r)
		}
		c.setBadge(visible)
	}()
	ctx, cancel := c.scoped(ctx)
	defer cancel()

	v, err := c.deps.Fetcher.Fetch(ctx)
	if err != nil {
		c.log.Debug("badge refresh failed", "err", err)
		return false, err
	}
	return v.NewerThan(c.cfg.CurrentVersionCode), nil
}

// OnDownloadComplete is the completion listener. Broadcasts for any id other
// than the tracked one are ignored.
func (c *Coordinator) OnDownloadComplete(done downloads.Completion) {
	c.mu.Lock()
	if !c.closed && done.ID != "" && c.state == Downloading && c.session.DownloadID == "" {
		if c.early == nil {
			c.early = make(map[downloads.ID]downloads.Completion)
		}
		c.early[done.ID] = done
		c.mu.Unlock()
		return
	}
	if c.closed || done.ID == "" || done.ID != c.session.DownloadID {
		c.mu.Unlock()
		c.log.Debug("foreign download completion ignored", "id", done.ID)
		return
	}
	c.session.DownloadID = ""
	c.setStateLocked(Installing)
	c.mu.Unlock()

	if done.Err != nil {
		c.log.Warn("tracked download ended with error", "id", done.ID, "err", done.Err)
	}
	_ = c.Install()
}

// Install hands the downloaded package to the installer. It returns the
// coordinator to Idle whatever happens.
func (c *Coordinator) Install() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrInstallHandoff, r)
			c.notify("Failed to process update")
		}
		if err != nil {
			c.log.Warn("update install failed", "err", err)
		}
		c.mu.Lock()
		c.setStateLocked(Idle)
		c.mu.Unlock()
	}()

	c.mu.Lock()
	c.setStateLocked(Installing)
	c.mu.Unlock()

	st, statErr := os.Stat(c.cfg.Dest)
	if statErr != nil || st.IsDir() {
		c.notify(NoticeFileNotFound)
		return fmt.Errorf("%w: %s", ErrFileNotFound, c.cfg.Dest)
	}
	c.notify(NoticeInstalling)

	in, err := c.installIntent()
	if err != nil {
		c.notify("Failed to install update: " + err.Error())
		return fmt.Errorf("%w: %w", ErrInstallHandoff, err)
	}
	if c.deps.Installer == nil {
		return fmt.Errorf("%w: no installer", ErrInstallHandoff)
	}
	if err := c.deps.Installer.Install(in); err != nil {
		c.notify("Failed to install update: " + err.Error())
		return fmt.Errorf("%w: %w", ErrInstallHandoff, err)
	}
	c.log.Info("update handed to installer", "data", in.Data, "access", platform.InstallAccess(c.cfg.Tier))
	return nil
}

func (c *Coordinator) installIntent() (platform.Intent, error) {
	access := platform.InstallAccess(c.cfg.Tier)
	in := platform.Intent{
		Action: platform.ActionView,
		Data:   c.cfg.Dest,
		MIME:   c.cfg.PackageMIME,
		Flags:  platform.FlagNewTask,
	}
	var grant platform.Flag
	if access == platform.SharedHandle {
		grant = platform.FlagGrantRead
		in.Flags |= platform.FlagGrantRead
	}
	if c.deps.Sharer != nil {
		ref, err := c.deps.Sharer.Share(c.cfg.Dest, access, grant)
		if err != nil {
			return platform.Intent{}, err
		}
		in.Data = ref
	}
	return in, nil
}

// scoped ties ctx to the coordinator lifetime so Close cancels it.
func (c *Coordinator) scoped(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (c *Coordinator) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.log.Debug("update state", "from", c.state, "to", s)
	c.state = s
}

func (c *Coordinator) notify(msg string) {
	if c.deps.UI != nil {
		c.deps.UI.Notify(msg)
	}
}

func (c *Coordinator) setBadge(visible bool) {
	if c.deps.UI != nil {
		c.deps.UI.SetBadge(visible)
	}
}
