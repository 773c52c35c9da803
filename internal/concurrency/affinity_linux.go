//go:build linux
// +build linux

// File: internal/concurrency/affinity_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// platformPinCurrentThread binds the current OS thread to cpuID via
// sched_setaffinity. The thread stays locked even on failure so the
// caller's goroutine keeps a stable thread identity either way.
func platformPinCurrentThread(cpuID int) error {
	runtime.LockOSThread()
	if cpuID < 0 {
		return nil
	}
	var set unix.CPUSet
	set.Zero()
	set.Set(cpuID % runtime.NumCPU())
	return unix.SchedSetaffinity(0, &set)
}

func platformUnpinCurrentThread() {
	runtime.UnlockOSThread()
}
