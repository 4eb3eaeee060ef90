// Package log provides a minimal leveled logger for enisyncd.
//
// Output goes to stdout for debug/info and stderr for warnings and errors.
// Debug output is gated behind the -verbose flag.
package log
