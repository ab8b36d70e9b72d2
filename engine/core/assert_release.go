//go:build !debug

package core

// Assert is compiled out in release builds. See assert_debug.go.
func Assert(cond bool, msg string, args ...interface{}) {}
