package main

import (
	"embed"
	"flag"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"Distributor/internal/config"
	"Distributor/internal/logs"
)

//go:embed all:frontend/dist
var assets embed.FS

func main() {
	configPath := flag.String("config", "", "path to config.toml")
	flag.Parse()

	log, closeLog := logs.New(os.Stderr, logs.LaunchLogPath())
	defer closeLog.Close()
	slog.SetDefault(log)

	exe, _ := os.Executable()
	log.Info("launch", "exe", exe, "args", strings.Join(os.Args[1:], " "), "version", Version)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Error("config", "err", err)
		showSystemError("Distributor", err.Error())
		os.Exit(1)
	}
	logs.Level.Set(cfg.LogLevel)

	// wails dev runs a short-lived wailsbindings binary to generate bindings;
	// it must not take the single-instance lock.
	skipSingleInstance := strings.Contains(strings.ToLower(filepath.Base(exe)), "wailsbindings")
	primary, releaseMutex, err := true, func() {}, error(nil)
	if !skipSingleInstance {
		primary, releaseMutex, err = tryAcquireSingleInstance(instanceAppID)
	}
	if err != nil {
		log.Warn("single-instance acquire", "err", err)
	} else if !primary {
		log.Info("single-instance secondary: waking existing instance")
		if err := notifyExistingInstance(instanceAppID); err != nil {
			log.Warn("single-instance notify", "err", err)
		}
		return
	}
	defer releaseMutex()

	var ipcLn net.Listener
	if primary && !skipSingleInstance {
		ln, cleanup, err := startInstanceIPC(instanceAppID)
		if err != nil {
			log.Warn("single-instance ipc start", "err", err)
		} else {
			ipcLn = ln
			defer cleanup()
		}
	}

	app := NewApp(cfg, log)
	if ipcLn != nil {
		app.setIPCListener(ipcLn)
	}

	static, err := fs.Sub(assets, "frontend/dist")
	if err != nil {
		log.Error("embedded assets", "err", err)
		os.Exit(1)
	}
	handler, err := newShellHandler(cfg.PageURL, static, app.captures, log.With("component", "shell"))
	if err != nil {
		log.Error("shell handler", "err", err)
		showSystemError("Distributor", err.Error())
		os.Exit(1)
	}

	err = wails.Run(&options.App{
		Title:  "Distributor",
		Width:  1024,
		Height: 768,
		AssetServer: &assetserver.Options{
			Handler: handler,
		},
		BackgroundColour: &options.RGBA{R: 255, G: 255, B: 255, A: 1},
		OnStartup:        app.startup,
		OnShutdown:       app.shutdown,
		Bind: []interface{}{
			app,
		},
	})
	if err != nil {
		log.Error("wails run", "err", err)
	}
}

// loadConfig reads the TOML config and fills the values only known at run
// time.
func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if cfg.VersionCode == 0 {
		cfg.VersionCode = buildVersionCode()
	}
	if cfg.DownloadsDir == "" {
		dir, err := getDownloadsDir()
		if err != nil {
			return config.Config{}, err
		}
		cfg.DownloadsDir = dir
	}
	return cfg, nil
}
