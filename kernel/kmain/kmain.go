// Package kmain sequences the boot stage: it validates the loader handoff,
// checks the processor, builds the paging tree and descriptor table and
// finally switches the processor to long mode.
package kmain

import (
	"io"
	"peluboot/kernel"
	"peluboot/kernel/cpu"
	"peluboot/kernel/gdt"
	"peluboot/kernel/kfmt"
	"peluboot/kernel/longmode"
	"peluboot/kernel/mem/vmm"
	"peluboot/kernel/multiboot"
	"peluboot/kernel/stack"
)

// Context describes the processor and the placement of every structure the
// boot stage touches. Addresses are physical; the boot stage runs with
// paging disabled so they are also the addresses the code dereferences.
type Context struct {
	CPU cpu.CPU

	// Console receives the diagnostic output. Fatal errors are reported
	// through the kfmt output sink which Boot points at Console.
	Console io.Writer

	// Halt, if set, replaces cpu.Halt as the final action of a fatal
	// error. A nil Halt restores cpu.Halt.
	Halt func()

	StackBase uintptr

	Paging     *vmm.IdentityTables
	PagingBase uint32

	GDT     *gdt.Table
	GDTBase uint32

	// Transition performs the switch to long mode. If nil, longmode.Enter
	// is used.
	Transition func(w io.Writer, c cpu.CPU, pml4 uint32)
}

var (
	// setHaltFn is mocked by tests.
	setHaltFn = kfmt.SetHaltFn

	// stageLog tags the output of each stage with the stage name.
	stageLog kfmt.PrefixWriter

	vendorBuf [12]byte

	prefixHandoff  = []byte("[handoff] ")
	prefixStack    = []byte("[stack] ")
	prefixCPU      = []byte("[cpu] ")
	prefixPaging   = []byte("[vmm] ")
	prefixGDT      = []byte("[gdt] ")
	prefixLongMode = []byte("[longmode] ")
)

// Boot runs the boot stage using the loader registers eax and ebx. The
// entry trampoline must have activated the boot stack at ctx.StackBase.
//
// Every error is fatal: Boot reports it through kfmt.Panic which halts the
// processor. Boot only returns the error when running against a halt
// function that returns, as the simulator does.
func Boot(ctx *Context, eax, ebx uint32) *kernel.Error {
	setHaltFn(ctx.Halt)
	kfmt.SetOutputSink(ctx.Console)
	stageLog.Sink = ctx.Console

	if err := boot(ctx, eax, ebx); err != nil {
		kfmt.Panic(err)
		return err
	}

	kfmt.Printf("boot stage complete\n")
	return nil
}

func boot(ctx *Context, eax, ebx uint32) *kernel.Error {
	stageLog.Prefix = prefixHandoff
	if err := multiboot.ValidateHandoff(&stageLog, eax, ebx); err != nil {
		return err
	}

	stageLog.Prefix = prefixStack
	if err := stack.Verify(&stageLog, ctx.CPU, ctx.StackBase); err != nil {
		return err
	}

	stageLog.Prefix = prefixCPU
	if err := probeCPU(&stageLog, ctx.CPU); err != nil {
		return err
	}

	stageLog.Prefix = prefixPaging
	if err := ctx.Paging.Build(&stageLog, ctx.PagingBase); err != nil {
		return err
	}

	stageLog.Prefix = prefixGDT
	*ctx.GDT = gdt.BootTable
	gdt.Load(&stageLog, ctx.CPU, ctx.GDT, uint64(ctx.GDTBase))

	stageLog.Prefix = prefixLongMode
	transition := ctx.Transition
	if transition == nil {
		transition = longmode.Enter
	}
	transition(&stageLog, ctx.CPU, ctx.PagingBase)

	return nil
}

// probeCPU reports the processor vendor and checks for long mode support.
func probeCPU(w io.Writer, c cpu.CPU) *kernel.Error {
	kfmt.Fprintf(w, "=== CPU Feature Probe ===\n")

	status := cpu.ProbeLongMode(c)
	if status != cpu.CpuidUnsupported {
		kfmt.Fprintf(w, "vendor: %s\n", cpu.Vendor(c, &vendorBuf))
	}
	kfmt.Fprintf(w, "long mode: %s\n", status.String())

	return status.Err()
}
