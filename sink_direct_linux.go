//go:build linux
// +build linux

package nanolog

import "golang.org/x/sys/unix"

var directIOFlag = unix.O_DIRECT
