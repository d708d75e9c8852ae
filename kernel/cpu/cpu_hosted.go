//go:build !386

package cpu

// Halt blocks the calling goroutine forever. Hosted builds only run the boot
// stage against the simulated processor, which provides its own Halt; this
// fallback keeps the kfmt panic path linkable.
func Halt() {
	select {}
}
