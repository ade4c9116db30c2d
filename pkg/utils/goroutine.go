package utils

import (
	"fmt"
	"runtime/debug"
)

// GoSafe runs fn in a goroutine and recovers panics so a single task cannot
// take down the process.
func GoSafe(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				fmt.Printf("recovered from panic: %v\n%s\n", r, debug.Stack())
			}
		}()
		fn()
	}()
}
