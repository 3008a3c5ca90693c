package safe

import (
	"janusbridge/logger"
	"janusbridge/tools/errs"

	"go.uber.org/zap"
)

// Go starts f in a new goroutine; a panic is recovered and logged so it cannot take the
// process down.
func Go(name string, f func()) {
	go Run(name, f)
}

// Run calls f on the current goroutine and recovers a panic. It reports whether f returned normally.
func Run(name string, f func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.L().Error("panic recovered",
				zap.String("goroutine", name),
				zap.Error(errs.ErrPanic(r)),
				zap.Stack("stack"),
			)
			ok = false
		}
	}()
	f()
	return true
}
