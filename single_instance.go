package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	instanceAppID = "Distributor"

	// wakeMessage is what a second launch sends to the running instance.
	wakeMessage = "wake"
)

type instanceInfo struct {
	Port int `json:"port"`
}

func instanceInfoPath(appID string) (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	p := filepath.Join(dir, "distributor", sanitizeInstanceName(appID), "instance.json")
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", err
	}
	return p, nil
}

func sanitizeInstanceName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "app"
	}
	return strings.NewReplacer("\\", "_", "/", "_", ":", "_", " ", "_").Replace(s)
}

func writeInstanceInfo(appID string, info instanceInfo) error {
	p, err := instanceInfoPath(appID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o644)
}

func readInstanceInfo(appID string) (instanceInfo, error) {
	p, err := instanceInfoPath(appID)
	if err != nil {
		return instanceInfo{}, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return instanceInfo{}, err
	}
	var info instanceInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return instanceInfo{}, err
	}
	return info, nil
}

// startInstanceIPC listens on loopback and records the port so later
// launches can find the running instance.
func startInstanceIPC(appID string) (net.Listener, func(), error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, nil, err
	}
	_, portStr, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		_ = ln.Close()
		return nil, nil, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		_ = ln.Close()
		return nil, nil, err
	}
	if err := writeInstanceInfo(appID, instanceInfo{Port: port}); err != nil {
		_ = ln.Close()
		return nil, nil, err
	}
	return ln, func() { _ = ln.Close() }, nil
}

func dialInstance(appID string) (net.Conn, error) {
	info, err := readInstanceInfo(appID)
	if err != nil {
		return nil, err
	}
	if info.Port <= 0 {
		return nil, errors.New("invalid ipc port")
	}
	return net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", info.Port), 300*time.Millisecond)
}

// notifyExistingInstance asks the running instance to come to the front.
// The primary may still be starting, so it retries for a short while.
func notifyExistingInstance(appID string) error {
	var lastErr error
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := dialInstance(appID)
		if err != nil {
			lastErr = err
			time.Sleep(100 * time.Millisecond)
			continue
		}
		_, _ = conn.Write([]byte(wakeMessage))
		_ = conn.Close()
		return nil
	}
	if lastErr == nil {
		lastErr = errors.New("notify timeout")
	}
	return lastErr
}
