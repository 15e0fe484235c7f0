package main

import (
	"strconv"
	"strings"
)

// Version is the human readable build name and VersionCode the integer the
// update manifest is compared against.
//
// Build-time injection example:
//
//	wails build -clean -ldflags "-X main.Version=1.0.7 -X main.VersionCode=9"
//
// VersionCode is a string so that -X can set it.
var (
	Version     = "dev"
	VersionCode = "8"
)

func buildVersionCode() int {
	n, err := strconv.Atoi(strings.TrimSpace(VersionCode))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
