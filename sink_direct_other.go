//go:build !linux && !windows
// +build !linux,!windows

package nanolog

// directIOFlag is 0 on platforms (BSD/Darwin) where O_DIRECT isn't a
// portable open() flag; direct I/O there would need F_NOCACHE via
// fcntl instead, which openDirect's fallback path covers by simply
// using a buffered file.
var directIOFlag = 0
