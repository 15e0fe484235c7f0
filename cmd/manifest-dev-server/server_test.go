package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"Distributor/internal/manifest"
)

func newTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "distributor-update.apk"), []byte("PK-payload"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := &server{dir: dir, rel: release{Code: 9, Name: "1.0.9", Notes: "fixes", Package: "distributor-update.apk"}}
	ts := httptest.NewServer(newRouter(s))
	s.baseURL = ts.URL
	t.Cleanup(ts.Close)
	return ts, dir
}

func TestManifestRoundTripsThroughClient(t *testing.T) {
	ts, _ := newTestServer(t)

	v, err := manifest.NewClient(ts.URL + "/app-version.json").Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if v.Code != 9 || v.Name != "1.0.9" || v.ReleaseNotes != "fixes" {
		t.Fatalf("manifest=%+v", v)
	}
	if v.DownloadURL != ts.URL+"/packages/distributor-update.apk" {
		t.Fatalf("downloadUrl=%q", v.DownloadURL)
	}

	resp, err := http.Get(v.DownloadURL)
	if err != nil {
		t.Fatalf("GET package: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "PK-payload" {
		t.Fatalf("package status=%d body=%q", resp.StatusCode, body)
	}
}

func TestPackageRejectsMissingAndHidden(t *testing.T) {
	ts, _ := newTestServer(t)

	cases := map[string]int{
		"/packages/other.apk": http.StatusNotFound,
		"/packages/.hidden":   http.StatusBadRequest,
	}
	for path, want := range cases {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != want {
			t.Fatalf("GET %s status=%d want %d", path, resp.StatusCode, want)
		}
	}
}

func TestScoreAddressPrefersPrivateWireless(t *testing.T) {
	wifi := scoreAddress(net.ParseIP("192.168.1.20").To4(), "wlan0", net.FlagUp)
	vbox := scoreAddress(net.ParseIP("192.168.56.1").To4(), "vboxnet0", net.FlagUp)
	vpn := scoreAddress(net.ParseIP("10.8.0.2").To4(), "tun0", net.FlagUp|net.FlagPointToPoint)
	public := scoreAddress(net.ParseIP("8.8.8.8").To4(), "eth0", net.FlagUp)

	if !(wifi > vbox && vbox > public && public > vpn) {
		t.Fatalf("scores wifi=%d vbox=%d public=%d vpn=%d", wifi, vbox, public, vpn)
	}
}
