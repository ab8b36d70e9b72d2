//go:build debug

package core

// Assert aborts the process when cond is false. Only present in debug
// builds; release builds compile it to a no-op.
func Assert(cond bool, msg string, args ...interface{}) {
	if !cond {
		LogFatal("assertion failed: "+msg, args...)
	}
}
