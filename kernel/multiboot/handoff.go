package multiboot

import (
	"io"
	"peluboot/kernel"
	"peluboot/kernel/kfmt"
)

// BootloaderMagic is the value a Multiboot2 loader stores in EAX before
// jumping to the kernel entry point.
const BootloaderMagic = uint32(0x36D76289)

// ErrHandoffMismatch is returned when the kernel was not started by a
// Multiboot2 compliant loader.
var ErrHandoffMismatch = &kernel.Error{Module: "multiboot", Message: "bootloader magic mismatch"}

// ValidateHandoff checks the registers passed by the loader. The pointer to
// the boot information in ebx is reported but not parsed.
func ValidateHandoff(w io.Writer, eax, ebx uint32) *kernel.Error {
	kfmt.Fprintf(w, "=== Multiboot2 Handoff ===\n")
	kfmt.Fprintf(w, "eax (magic): 0x%8x\n", eax)
	kfmt.Fprintf(w, "ebx (info):  0x%8x\n", ebx)

	if eax != BootloaderMagic {
		kfmt.Fprintf(w, "handoff: FAIL (expected 0x%8x)\n", BootloaderMagic)
		return ErrHandoffMismatch
	}

	kfmt.Fprintf(w, "handoff: OK\n")
	return nil
}
