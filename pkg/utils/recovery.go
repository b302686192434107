package utils

import (
	"fmt"
	"runtime/debug"
)

// PanicError wraps a recovered panic so goroutine failures surface as
// ordinary errors instead of crashing the process.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("recovered panic: %v", e.Value)
}

// RecoverWithCallback recovers a panic in the deferring goroutine and hands
// it to cb as a *PanicError. Use as: defer RecoverWithCallback(func(err error) {...}).
func RecoverWithCallback(cb func(error)) {
	if r := recover(); r != nil {
		cb(&PanicError{Value: r, Stack: debug.Stack()})
	}
}
