// Package debug is an opt-in category logger writing to a file. The demo
// owns stdout for its TUI, so diagnostics go to
// <user config dir>/automat/debug.log instead.
package debug

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	mu      sync.Mutex
	file    *os.File
	enabled bool
)

// Enable starts debug logging. Calling it again while enabled is a no-op.
func Enable() error {
	mu.Lock()
	defer mu.Unlock()
	if enabled {
		return nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return err
	}
	dir = filepath.Join(dir, "automat")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(dir, "debug.log"), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	file = f
	enabled = true
	return nil
}

// Disable stops debug logging and closes the file.
func Disable() {
	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		file.Close()
		file = nil
	}
	enabled = false
}

// Logf writes one line to the debug log, tagged with a category.
func Logf(category, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if !enabled || file == nil {
		return
	}
	ts := time.Now().Format("15:04:05.000")
	fmt.Fprintf(file, "[%s] %-10s %s\n", ts, category, fmt.Sprintf(format, args...))
	file.Sync() // flush immediately so the log survives a crash
}
