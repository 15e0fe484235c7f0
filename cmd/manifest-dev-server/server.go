package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"

	"Distributor/internal/manifest"
)

// release describes the build being served.
type release struct {
	Code    int
	Name    string
	Notes   string
	Package string // file name inside dir
}

type server struct {
	dir     string
	rel     release
	baseURL string // e.g. http://192.168.1.20:8787
}

func newRouter(s *server) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "OK")
	}).Methods(http.MethodGet)
	r.HandleFunc("/app-version.json", s.handleManifest).Methods(http.MethodGet)
	r.HandleFunc("/packages/{name}", s.handlePackage).Methods(http.MethodGet, http.MethodHead)
	return r
}

func (s *server) manifest() manifest.Version {
	return manifest.Version{
		Code:         s.rel.Code,
		Name:         s.rel.Name,
		DownloadURL:  strings.TrimSuffix(s.baseURL, "/") + "/packages/" + s.rel.Package,
		ReleaseNotes: s.rel.Notes,
	}
}

func (s *server) handleManifest(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode(s.manifest())
}

func (s *server) handlePackage(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if name == "" || filepath.Base(name) != name || strings.HasPrefix(name, ".") {
		http.Error(w, "bad package name", http.StatusBadRequest)
		return
	}
	full := filepath.Join(s.dir, name)
	st, err := os.Stat(full)
	if err != nil || st.IsDir() {
		http.Error(w, "package not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.android.package-archive")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeFile(w, r, full)
}
