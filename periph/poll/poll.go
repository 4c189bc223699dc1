// Package poll turns single-poll, non-blocking register primitives into
// retrying operations with an explicit budget.
package poll

import (
	"runtime"

	"rangefinder-go/errcode"
)

// Budget is the number of extra attempts after the first one.
// Forever retries without bound; a wedged bus then hangs the caller.
type Budget int

const (
	Forever Budget = -1
	Once    Budget = 0
)

// Times allows n retries after the first attempt.
func Times(n int) Budget {
	if n < 0 {
		return Once
	}
	return Budget(n)
}

// Yield runs between attempts. The host build gives other goroutines (the
// simulated peripheral) a chance to progress; override in tests if needed.
var Yield = runtime.Gosched

// Until calls op until it returns something other than NotReady or the
// budget runs out. Exhaustion yields an *errcode.E with RetryExhausted.
func Until(b Budget, op func() error) error {
	for left := b; ; left-- {
		err := op()
		if !errcode.Transient(err) {
			return err
		}
		if b != Forever && left <= 0 {
			return errcode.Wrap(errcode.RetryExhausted, "", err)
		}
		Yield()
	}
}

// Named is Until with the operation name recorded on exhaustion.
func Named(name string, b Budget, op func() error) error {
	err := Until(b, op)
	if e, ok := err.(*errcode.E); ok && e.Op == "" {
		e.Op = name
	}
	return err
}
