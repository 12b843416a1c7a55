//go:build !linux

package app

// setProcessTitle is a no-op on platforms without prctl.
func setProcessTitle(string) {}
