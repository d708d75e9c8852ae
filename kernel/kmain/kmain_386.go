package kmain

import (
	"peluboot/device/tty"
	"peluboot/device/video/console"
	"peluboot/kernel/cpu"
	"peluboot/kernel/gdt"
	"peluboot/kernel/kfmt"
	"peluboot/kernel/mem"
	"peluboot/kernel/mem/vmm"
	"peluboot/kernel/stack"
	"unsafe"
)

// The boot stage structures live in static storage. The loader does not
// honour Go's alignment beyond 8 bytes so the paging tree is carved out of
// an oversized area at the first page boundary.
var (
	bootStack  stack.Region
	pagingArea [unsafe.Sizeof(vmm.IdentityTables{}) + uintptr(mem.PageSize)]byte
	bootGDT    gdt.Table

	vgaConsole console.VgaTextConsole
	terminal   tty.VT

	bootCtx Context

	// handoffEAX and handoffEBX are stored by the entry trampoline.
	handoffEAX uint32
	handoffEBX uint32
)

// entry is the kernel entry point the loader jumps to. It activates the boot
// stack, stores the handoff registers and calls Kmain. It never returns.
func entry()

// Kmain is invoked by the entry trampoline once the boot stack is active.
//
// Kmain is not expected to return. If it does, the trampoline halts the CPU.
//
//go:noinline
func Kmain(eax, ebx uint32) {
	vgaConsole.Init(console.VgaTextColumns, console.VgaTextRows, console.VgaTextPhysAddr)
	terminal.Init(4)
	terminal.AttachTo(&vgaConsole)

	pageMask := uintptr(mem.PageSize - 1)
	pagingOffset := (uintptr(mem.PageSize) - uintptr(unsafe.Pointer(&pagingArea[0]))&pageMask) & pageMask

	bootCtx = Context{
		CPU:        cpu.Native{},
		Console:    &terminal,
		StackBase:  uintptr(unsafe.Pointer(&bootStack[0])),
		Paging:     (*vmm.IdentityTables)(unsafe.Pointer(&pagingArea[pagingOffset])),
		PagingBase: uint32(uintptr(unsafe.Pointer(&pagingArea[pagingOffset]))),
		GDT:        &bootGDT,
		GDTBase:    uint32(uintptr(unsafe.Pointer(&bootGDT))),
	}

	if Boot(&bootCtx, eax, ebx) != nil {
		return
	}

	kfmt.Printf("halting\n")
	cpu.Halt()
}
