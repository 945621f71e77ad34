//go:build windows

package lockfile

import "os"

// processAlive on Windows can only check that the PID resolves at all.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	_, err := os.FindProcess(pid)
	return err == nil
}
