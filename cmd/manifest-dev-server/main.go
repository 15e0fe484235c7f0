// Command manifest-dev-server serves an update manifest and its package from
// a local directory so the shell's update flow can be exercised end to end.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	"Distributor/internal/logs"
)

func main() {
	dir := flag.String("dir", ".", "directory holding the package file")
	addr := flag.String("addr", ":8787", "listen address")
	code := flag.Int("code", 9, "versionCode to advertise")
	name := flag.String("name", "dev", "versionName to advertise")
	notes := flag.String("notes", "Development build", "releaseNotes to advertise")
	pkg := flag.String("package", "distributor-update.apk", "package file name inside -dir")
	flag.Parse()

	log, closer := logs.New(os.Stderr, "")
	defer closer.Close()

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		log.Error("listen", "addr", *addr, "err", err)
		os.Exit(1)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	host, err := lanIPv4()
	if err != nil {
		log.Warn("no LAN address, advertising localhost", "err", err)
		host = "127.0.0.1"
	}
	base := fmt.Sprintf("http://%s", net.JoinHostPort(host, strconv.Itoa(port)))

	s := &server{
		dir:     *dir,
		rel:     release{Code: *code, Name: *name, Notes: *notes, Package: *pkg},
		baseURL: base,
	}
	srv := &http.Server{Handler: newRouter(s), ReadHeaderTimeout: 10 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("serving", "manifest", base+"/app-version.json", "dir", *dir, "versionCode", *code)
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("serve", "err", err)
		os.Exit(1)
	}
}
