package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// where a browser executable was found
const (
	browserFromConfig = "browser.exec_path"
	browserFromPath   = "PATH"
	browserFromSystem = "system install"
	browserFromCustom = "user config dir"
)

var browserNames = []string{"google-chrome", "google-chrome-stable", "chrome", "chromium", "chromium-browser", "chrome.exe", "chromium.exe"}

// resolveChromium returns the browser executable to start.
func resolveChromium(cfg BrowserConfig) (string, error) {
	path, _, err := locateBrowser(cfg)
	return path, err
}

// locateBrowser tries, in order: a configured exec_path (which must exist),
// PATH, the usual system install locations and a Chromium unpacked under
// the user config dir. It also reports which of those matched.
func locateBrowser(cfg BrowserConfig) (path, source string, err error) {
	if cfg.ExecPath != "" {
		if _, err := os.Stat(cfg.ExecPath); err != nil {
			return "", "", fmt.Errorf("browser.exec_path %s: %w", cfg.ExecPath, err)
		}
		return cfg.ExecPath, browserFromConfig, nil
	}
	if path := FindChromiumExecutable(); path != "" {
		return path, browserFromPath, nil
	}
	for _, path := range systemBrowserPaths(runtime.GOOS) {
		if _, err := os.Stat(path); err == nil {
			slog.Info("Found browser in system location", "path", path)
			return path, browserFromSystem, nil
		}
	}
	if path, err := GetCustomChromiumPath(); err == nil {
		return path, browserFromCustom, nil
	}
	slog.Warn("No Chrome/Chromium browser found")
	return "", "", fmt.Errorf("no Chrome/Chromium found, install one or set browser.exec_path")
}

// FindChromiumExecutable looks the known browser names up in PATH
func FindChromiumExecutable() string {
	for _, name := range browserNames {
		if path, err := exec.LookPath(name); err == nil {
			slog.Info("Found browser in PATH", "path", path)
			return path
		}
	}
	return ""
}

func systemBrowserPaths(goos string) []string {
	switch goos {
	case "windows":
		var paths []string
		for _, root := range []string{os.Getenv("ProgramFiles"), os.Getenv("ProgramFiles(x86)"), os.Getenv("LocalAppData")} {
			if root == "" {
				continue
			}
			paths = append(paths,
				filepath.Join(root, "Google", "Chrome", "Application", "chrome.exe"),
				filepath.Join(root, "Chromium", "Application", "chrome.exe"),
			)
		}
		return paths
	case "darwin":
		return []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
		}
	case "linux":
		return []string{
			"/usr/bin/google-chrome",
			"/usr/bin/chromium",
			"/snap/bin/chromium",
			"/var/lib/flatpak/exports/bin/com.google.Chrome",
		}
	}
	return nil
}

// looks for a Chromium unpacked by hand into the user config directory,
// ~/.config/attendo/chromium (Linux) or %AppData%\attendo\chromium (Windows)
func GetCustomChromiumPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	chromiumDir := filepath.Join(configDir, "attendo", "chromium")
	var chromiumExe string
	switch runtime.GOOS {
	case "windows":
		chromiumExe = filepath.Join(chromiumDir, "chrome-win", "chrome.exe")
	case "linux":
		chromiumExe = filepath.Join(chromiumDir, "chrome-linux", "chrome")
	case "darwin":
		chromiumExe = filepath.Join(chromiumDir, "chrome-mac", "Chromium.app", "Contents", "MacOS", "Chromium")
	default:
		return "", fmt.Errorf("unsupported OS: %s", runtime.GOOS)
	}
	if _, err := os.Stat(chromiumExe); err != nil {
		return "", fmt.Errorf("chromium executable not found at %s", chromiumExe)
	}
	slog.Info("Using custom Chromium", "path", chromiumExe)
	return chromiumExe, nil
}
