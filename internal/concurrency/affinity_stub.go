//go:build !linux && !windows
// +build !linux,!windows

// File: internal/concurrency/affinity_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import "runtime"

func platformPinCurrentThread(cpuID int) error {
	runtime.LockOSThread()
	return nil
}

func platformUnpinCurrentThread() {
	runtime.UnlockOSThread()
}
