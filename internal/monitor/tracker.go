package monitor

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// ErrLeaseStat marks a failure to read a watched lease file's
// metadata. Lease files are expected to exist while their DHCP client
// runs, so the monitor treats this class as fatal and stops; the
// caller decides whether that ends the process.
var ErrLeaseStat = errors.New("lease file metadata unavailable")

// modTracker remembers the last observed modification time per path.
type modTracker struct {
	timestamps map[string]time.Time
}

func newModTracker() *modTracker {
	return &modTracker{timestamps: make(map[string]time.Time)}
}

// wasModified reports whether the file's mtime advanced since the last
// observation and stores the new mtime when it did. An absent entry
// compares against the zero time, so an existing file always reads as
// modified on first observation.
func (t *modTracker) wasModified(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrLeaseStat, path, err)
	}

	current := info.ModTime()
	if current.After(t.timestamps[path]) {
		t.timestamps[path] = current
		return true, nil
	}
	return false, nil
}
