// Package stack reserves and verifies the scratch stack used by the boot
// stage before any runtime support is available.
package stack

import (
	"io"
	"peluboot/kernel"
	"peluboot/kernel/cpu"
	"peluboot/kernel/kfmt"
)

const (
	// Size of the boot stack in bytes.
	Size = 16 * 1024

	// Align is the alignment of the initial stack pointer required by the
	// System V calling conventions.
	Align = 16
)

// Region is the backing storage for the boot stack. It must be placed in
// zero-initialized storage (.bss) by the link step.
type Region [Size]byte

// Loader is implemented by backends that can set the stack register from
// regular code. On hardware the stack is activated by the entry trampoline
// before any call instruction is executed.
type Loader interface {
	LoadStackPointer(sp uintptr)
}

// ErrStackMismatch is returned when the live stack pointer does not lie
// within the boot stack.
var ErrStackMismatch = &kernel.Error{Module: "stack", Message: "stack pointer outside the boot stack"}

// Top returns the initial stack pointer for a stack region at base. Stacks
// grow downwards so this is the aligned end of the region.
func Top(base uintptr) uintptr {
	return (base + Size) &^ (Align - 1)
}

// Activate points the stack register at the top of the region at base.
func Activate(l Loader, base uintptr) {
	l.LoadStackPointer(Top(base))
}

// Verify checks that the live stack pointer lies within the boot stack
// region at base.
func Verify(w io.Writer, c cpu.CPU, base uintptr) *kernel.Error {
	top := Top(base)
	sp := c.StackPointer()

	kfmt.Fprintf(w, "=== Stack Verification ===\n")
	kfmt.Fprintf(w, "stack region: 0x%8x - 0x%8x (%d bytes)\n", base, base+Size, Size)
	kfmt.Fprintf(w, "expected top: 0x%8x\n", top)
	kfmt.Fprintf(w, "current sp:   0x%8x\n", sp)

	if sp < base || sp > top {
		kfmt.Fprintf(w, "stack: FAIL\n")
		return ErrStackMismatch
	}

	kfmt.Fprintf(w, "stack: OK (%d bytes in use)\n", top-sp)
	return nil
}
