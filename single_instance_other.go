//go:build !windows

package main

// tryAcquireSingleInstance treats a reachable IPC listener as proof that
// another instance owns the session.
func tryAcquireSingleInstance(appID string) (primary bool, release func(), err error) {
	conn, err := dialInstance(appID)
	if err != nil {
		return true, func() {}, nil
	}
	_ = conn.Close()
	return false, func() {}, nil
}
