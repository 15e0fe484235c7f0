package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"Distributor/internal/capture"
	"Distributor/internal/config"
	"Distributor/internal/downloads"
	"Distributor/internal/manifest"
	"Distributor/internal/settings"
	"Distributor/internal/update"
)

const keyringService = "distributor"

// App is bound to the webview. It owns the update coordinator and the
// capture bridge for as long as the window lives.
type App struct {
	ctx context.Context
	cfg config.Config
	log *slog.Logger
	rt  *wailsRuntime

	store     *settings.Store
	settings  *settingsBinding
	downloads *downloads.Manager
	updates   *update.Coordinator
	ui        *shellUpdateUI
	notifier  *shellNotifier

	slot     *capture.Slot
	selector *capture.Selector
	prompter *eventPrompter
	captures *captureRegistry

	ipcOnce     sync.Once
	ipcListener net.Listener
	unlisten    []func()
}

// NewApp wires the shell from cfg. Nothing touches the window until startup.
func NewApp(cfg config.Config, log *slog.Logger) *App {
	rt := &wailsRuntime{}
	store := settings.NewStore(settings.DefaultPath(), settings.NewKeyring(keyringService), log.With("component", "settings"))
	notifier := newShellNotifier(rt, log.With("component", "notice"))

	a := &App{
		cfg:      cfg,
		log:      log,
		rt:       rt,
		store:    store,
		notifier: notifier,
		ui:       &shellUpdateUI{rt: rt, notifier: notifier},
		prompter: newEventPrompter(rt),
		captures: newCaptureRegistry(),
	}
	a.settings = &settingsBinding{store: store, rt: rt, notifier: notifier, log: log.With("component", "settings")}
	a.downloads = downloads.NewManager(
		downloads.WithUserAgent("Distributor/"+Version),
		downloads.WithLogger(log.With("component", "downloads")),
		downloads.WithProgress(a.emitDownloadProgress),
	)

	sharer := fileSharer{}
	a.updates = update.New(update.Config{
		CurrentVersionCode: cfg.VersionCode,
		Dest:               cfg.DownloadPath(),
		PackageMIME:        cfg.PackageMIME,
		Tier:               cfg.Tier,
		DownloadTitle:      downloadTitle,
		DownloadDescribe:   downloadDescription,
		AutoCheck:          func() bool { return store.Load().AutoCheckUpdates },
	}, update.Deps{
		Fetcher:    manifest.NewClient(cfg.ManifestURL),
		Downloader: a.downloads,
		Installer:  osInstaller{open: openInOS, log: log.With("component", "install")},
		Sharer:     sharer,
		UI:         a.ui,
		Logger:     log.With("component", "update"),
	})

	captureLog := log.With("component", "capture")
	a.slot = capture.NewSlot(captureLog)
	a.selector = capture.NewSelector(a.slot, capture.SelectorConfig{
		Tier:        cfg.Tier,
		PicturesDir: cfg.PicturesDir,
		Permissions: &dialogPermissions{rt: rt, store: store, log: captureLog},
		Prompter:    a.prompter,
		Launcher:    &shellLauncher{rt: rt, cameraCommand: cfg.CameraCommand, log: captureLog},
		Sharer:      sharer,
		Notifier:    notifier,
		Logger:      captureLog,
	})
	return a
}

func (a *App) setIPCListener(ln net.Listener) {
	a.ipcListener = ln
}

// startup is called when the app starts. The context is saved
// so we can call the runtime methods
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
	a.rt.ctx = ctx

	if err := a.updates.Start(); err != nil {
		a.log.Warn("update completion listener unavailable", "err", err)
	}
	a.unlisten = append(a.unlisten,
		runtime.EventsOn(ctx, eventResume, func(...any) { go a.onResume() }),
		runtime.EventsOn(ctx, eventVisibility, a.onVisibility),
		runtime.EventsOn(ctx, eventSourceChosen, a.onSourceChosen),
	)
	if err := a.store.Watch(ctx, func(s settings.Settings) {
		a.rt.Emit(eventSettingsChanged, viewOf(s))
	}); err != nil {
		a.log.Warn("settings watch unavailable", "err", err)
	}
	a.startIPCListener()
}

func (a *App) shutdown(ctx context.Context) {
	for _, off := range a.unlisten {
		off()
	}
	a.updates.Close()
	a.slot.Resolve(capture.NoResult)
	a.downloads.Close()
	a.log.Info("shutdown")
}

func (a *App) onResume() {
	a.notifier.setVisible(true)
	err := a.updates.OnResume(a.ctx)
	switch {
	case err == nil, errors.Is(err, update.ErrBusy), errors.Is(err, update.ErrClosed):
	default:
		a.log.Info("resume update check", "err", err)
	}
}

func (a *App) onVisibility(data ...any) {
	var visible bool
	if err := decodeEventPayload(data, &visible); err != nil {
		a.log.Debug("bad visibility event", "err", err)
		return
	}
	a.notifier.setVisible(visible)
}

func (a *App) onSourceChosen(data ...any) {
	var r sourceReply
	if err := decodeEventPayload(data, &r); err != nil {
		a.log.Debug("bad source reply", "err", err)
		return
	}
	if !a.prompter.reply(r) {
		a.log.Debug("source reply without prompt", "id", r.ID)
	}
}

// ChooseFile runs one capture for the page's file input. An empty URL in the
// result means nothing was chosen.
func (a *App) ChooseFile() (CaptureResult, error) {
	done := make(chan capture.Result, 1)
	err := a.selector.Request(a.ctx, func(res capture.Result) { done <- res })

	res := capture.NoResult
	select {
	case res = <-done:
	default:
	}
	switch {
	case err == nil:
	case errors.Is(err, capture.ErrPermissionDenied), errors.Is(err, capture.ErrNoActivity):
		a.log.Info("capture ended without a file", "err", err)
	default:
		a.log.Warn("capture failed", "err", err)
	}
	if res.Empty() {
		return CaptureResult{}, nil
	}
	return a.captures.Publish(res.Path), nil
}

func (a *App) GetSettings() SettingsView {
	return a.settings.view()
}

func (a *App) SaveSettings(c SettingsChange) error {
	return a.settings.save(c)
}

func (a *App) startIPCListener() {
	if a.ipcListener == nil {
		return
	}
	a.ipcOnce.Do(func() {
		go func() {
			for {
				conn, err := a.ipcListener.Accept()
				if err != nil {
					return
				}
				go a.handleIPCConn(conn)
			}
		}()
	})
}

// handleIPCConn brings the window forward when a second launch pings us.
func (a *App) handleIPCConn(conn net.Conn) {
	defer func() { _ = conn.Close() }()
	if a.ctx == nil {
		return
	}
	data, _ := io.ReadAll(io.LimitReader(conn, 1024))
	if strings.TrimSpace(string(data)) != wakeMessage {
		return
	}
	a.log.Info("second launch, raising window")
	runtime.WindowShow(a.ctx)
	runtime.WindowUnminimise(a.ctx)
	runtime.WindowSetAlwaysOnTop(a.ctx, true)
	runtime.WindowSetAlwaysOnTop(a.ctx, false)
	go a.onResume()
}
