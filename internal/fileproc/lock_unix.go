//go:build !windows

package fileproc

import (
	"os"

	"golang.org/x/sys/unix"
)

// probeSharedRead opens path and attempts a non-blocking advisory shared
// lock. If another process holds an exclusive lock the probe fails
// without blocking, matching spec §4.4 step 4 ("reject if locked").
func probeSharedRead(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_SH|unix.LOCK_NB); err != nil {
		return err
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	return nil
}
