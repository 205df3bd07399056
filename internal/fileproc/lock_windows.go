//go:build windows

package fileproc

import "os"

// probeSharedRead on Windows relies on os.Open's own share-mode semantics:
// opening for read already fails if another process holds an exclusive
// handle, so no separate advisory lock call is needed.
func probeSharedRead(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	return f.Close()
}
