//go:build linux

package main

import "github.com/coreos/go-systemd/v22/daemon"

// sdNotifyReady tells systemd the command is up and shows status
// in `systemctl status`.
func sdNotifyReady(status string) (bool, error) {
	return daemon.SdNotify(false, daemon.SdNotifyReady+"\nSTATUS="+status)
}
