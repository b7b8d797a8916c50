// Package safego provides a panic-recovering goroutine launcher for background
// work.
package safego

import "log/slog"

// Go launches fn in a new goroutine. If fn panics, the panic is recovered and
// logged rather than crashing the process. Used for fire-and-forget work such
// as access-log writes, where an unrecovered panic would take the whole server
// down over a side effect the caller does not even wait for.
func Go(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("recovered panic in background goroutine", "panic", r)
			}
		}()
		fn()
	}()
}
