//go:build arm64

package simd

import "golang.org/x/sys/cpu"

func init() {
	// ASIMD is mandatory on AArch64 Linux; cpu reports it explicitly.
	hasASIMD = cpu.ARM64.HasASIMD
	initCapabilities()
}
