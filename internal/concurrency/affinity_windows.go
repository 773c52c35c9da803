//go:build windows
// +build windows

// File: internal/concurrency/affinity_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/windows"
)

var (
	modkernel32               = windows.NewLazySystemDLL("kernel32.dll")
	procSetThreadAffinityMask = modkernel32.NewProc("SetThreadAffinityMask")
	procGetCurrentThread      = modkernel32.NewProc("GetCurrentThread")
)

// platformPinCurrentThread pins the current OS thread to cpuID using
// SetThreadAffinityMask. cpuID < 0 locks the thread without a mask.
func platformPinCurrentThread(cpuID int) error {
	runtime.LockOSThread()
	if cpuID < 0 {
		return nil
	}
	handle, _, _ := procGetCurrentThread.Call()
	mask := uintptr(1) << uint(cpuID%runtime.NumCPU())
	old, _, err := procSetThreadAffinityMask.Call(handle, mask)
	if old == 0 {
		return fmt.Errorf("SetThreadAffinityMask failed: %v", err)
	}
	return nil
}

func platformUnpinCurrentThread() {
	runtime.UnlockOSThread()
}
