// Package strict gates programming-error checks that are enabled in
// test builds and disabled in production. A failed check is a caller
// bug, not a recoverable runtime condition.
//
// The toggle is process-wide. Engine construction and profiles only
// ever turn checks on, so one strict engine is never silently relaxed
// by a lenient one sharing the process; turning checks off is an
// explicit Enable(false) call.
package strict

import (
	"fmt"
	"sync/atomic"
)

var enabled atomic.Bool

// Enable turns misuse checks on or off. Typically called once at
// service construction.
func Enable(on bool) { enabled.Store(on) }

// Enabled reports whether misuse checks are active.
func Enabled() bool { return enabled.Load() }

// Check panics with the formatted message when checks are enabled and
// cond is false. With checks disabled it does nothing.
func Check(cond bool, format string, args ...interface{}) {
	if !cond && enabled.Load() {
		panic(fmt.Sprintf(format, args...))
	}
}
