// File: internal/concurrency/affinity.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Cross-platform CPU affinity for executor worker threads.

package concurrency

// PinCurrentThread locks the calling goroutine to its OS thread and binds
// that thread to the given CPU core. cpuID < 0 locks the thread without
// restricting its CPU mask.
func PinCurrentThread(cpuID int) error {
	return platformPinCurrentThread(cpuID)
}

// UnpinCurrentThread releases the binding established by PinCurrentThread.
func UnpinCurrentThread() {
	platformUnpinCurrentThread()
}
