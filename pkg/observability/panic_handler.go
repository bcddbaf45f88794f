package observability

import (
	"fmt"
	"runtime/debug"
)

// RecoverPanic logs a recovered panic with its stack. It must be deferred
// directly:
//
//	defer observability.RecoverPanic(logger, "expiry scan")
//
// The panic is not re-raised.
func RecoverPanic(logger *Logger, where string) {
	if r := recover(); r != nil {
		logPanic(logger, where, r)
	}
}

// RecoverPanicWithCallback is RecoverPanic followed by onPanic, which only
// runs when a panic was recovered
func RecoverPanicWithCallback(logger *Logger, where string, onPanic func()) {
	if r := recover(); r != nil {
		logPanic(logger, where, r)
		if onPanic != nil {
			onPanic()
		}
	}
}

// PanicError converts a recovered value into an error, or nil when nothing
// was recovered
//
//	defer func() {
//		if perr := observability.PanicError(recover()); perr != nil {
//			err = perr
//		}
//	}()
func PanicError(r interface{}) error {
	if r == nil {
		return nil
	}
	if err, ok := r.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", r)
}

func logPanic(logger *Logger, where string, r interface{}) {
	if logger == nil {
		logger = NewLogger(ErrorLevel, nil)
	}
	logger.WithFields(map[string]interface{}{
		"panic":   fmt.Sprint(r),
		"stack":   string(debug.Stack()),
		"context": where,
	}).Error("PANIC recovered")
}
