package main

import (
	"errors"
	"net"
	"strings"
)

var virtualInterfaceHints = []string{
	"vpn", "virtualbox", "vmware", "hyper-v", "wintun", "wireguard",
	"tailscale", "zerotier", "hamachi", "tap", "tun", "utun", "docker",
	"vethernet", "loopback",
}

// lanIPv4 picks the address a phone on the same network is most likely to
// reach: private ranges and wireless adapters first, tunnels last.
func lanIPv4() (string, error) {
	ifs, err := net.Interfaces()
	if err != nil {
		return "", err
	}

	var best net.IP
	bestScore := 0
	for _, iface := range ifs {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			ip4 := ipNet.IP.To4()
			if ip4 == nil || ip4.IsLoopback() || ip4.IsLinkLocalUnicast() {
				continue
			}
			score := scoreAddress(ip4, strings.ToLower(iface.Name), iface.Flags)
			if best == nil || score > bestScore {
				best, bestScore = ip4, score
			}
		}
	}
	if best == nil {
		return "", errors.New("no usable IPv4 address")
	}
	return best.String(), nil
}

func scoreAddress(ip4 net.IP, ifName string, flags net.Flags) int {
	score := 0
	if ip4.IsPrivate() {
		score += 100
	}
	if ip4[0] == 192 && ip4[1] == 168 {
		score += 5
		// VirtualBox host-only default.
		if ip4[2] == 56 {
			score -= 50
		}
	}
	for _, k := range []string{"wlan", "wi-fi", "wifi", "wireless"} {
		if strings.Contains(ifName, k) {
			score += 40
			break
		}
	}
	if strings.Contains(ifName, "ethernet") {
		score += 5
	}
	if flags&net.FlagPointToPoint != 0 {
		score -= 200
	}
	for _, k := range virtualInterfaceHints {
		if strings.Contains(ifName, k) {
			score -= 1000
			break
		}
	}
	return score
}
