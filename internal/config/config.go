package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"Distributor/internal/platform"
)

// Config holds the shell's tunables. Every field has a usable default.
type Config struct {
	PageURL          string
	ManifestURL      string
	VersionCode      int
	DownloadFileName string
	PackageMIME      string
	DownloadsDir     string
	PicturesDir      string
	Tier             platform.Tier
	CameraCommand    string
	LogLevel         slog.Level
}

const (
	DefaultPageURL          = "https://stellar-bienenstitch-f651bf.netlify.app/"
	DefaultManifestURL      = "https://stellar-bienenstitch-f651bf.netlify.app/app-version.json"
	DefaultDownloadFileName = "distributor-update.apk"
	DefaultPackageMIME      = "application/vnd.android.package-archive"

	EnvConfigPath = "DISTRIBUTOR_CONFIG"
)

func Defaults() Config {
	return Config{
		PageURL:          DefaultPageURL,
		ManifestURL:      DefaultManifestURL,
		DownloadFileName: DefaultDownloadFileName,
		PackageMIME:      DefaultPackageMIME,
		Tier:             platform.GranularMedia,
		LogLevel:         slog.LevelInfo,
	}
}

// DefaultPath is <UserConfigDir>/distributor/config.toml, or the value of
// DISTRIBUTOR_CONFIG when set.
func DefaultPath() string {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		dir = "."
	}
	return filepath.Join(dir, "distributor", "config.toml")
}

// Load parses the TOML file at path, falling back to defaults when it is
// missing. Blank values keep their defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) == "" {
		path = DefaultPath()
	}
	resolved, err := expandPath(path)
	if err != nil {
		return Config{}, err
	}

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		PageURL          string `toml:"page_url"`
		ManifestURL      string `toml:"manifest_url"`
		VersionCode      int    `toml:"version_code"`
		DownloadFileName string `toml:"download_file_name"`
		PackageMIME      string `toml:"package_mime"`
		DownloadsDir     string `toml:"downloads_dir"`
		PicturesDir      string `toml:"pictures_dir"`
		PlatformTier     string `toml:"platform_tier"`
		CameraCommand    string `toml:"camera_command"`
		LogLevel         string `toml:"log_level"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	setString(&cfg.PageURL, raw.PageURL)
	setString(&cfg.ManifestURL, raw.ManifestURL)
	setString(&cfg.DownloadFileName, raw.DownloadFileName)
	setString(&cfg.PackageMIME, raw.PackageMIME)
	setString(&cfg.CameraCommand, raw.CameraCommand)
	if raw.VersionCode < 0 {
		return Config{}, fmt.Errorf("parse config: version_code must not be negative")
	}
	cfg.VersionCode = raw.VersionCode

	if name := filepath.Base(cfg.DownloadFileName); name != cfg.DownloadFileName || name == "." || name == ".." {
		return Config{}, fmt.Errorf("parse config: download_file_name must be a bare file name")
	}

	if dir := strings.TrimSpace(raw.DownloadsDir); dir != "" {
		if cfg.DownloadsDir, err = expandPath(dir); err != nil {
			return Config{}, err
		}
	}
	if dir := strings.TrimSpace(raw.PicturesDir); dir != "" {
		if cfg.PicturesDir, err = expandPath(dir); err != nil {
			return Config{}, err
		}
	}

	if cfg.Tier, err = platform.ParseTier(raw.PlatformTier); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if lvl := strings.TrimSpace(raw.LogLevel); lvl != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(lvl)); err != nil {
			return Config{}, fmt.Errorf("parse config: log_level: %w", err)
		}
	}
	return cfg, nil
}

// DownloadPath is the fixed destination of update downloads.
func (c Config) DownloadPath() string {
	return filepath.Join(c.DownloadsDir, c.DownloadFileName)
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
