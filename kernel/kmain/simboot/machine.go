// Package simboot runs the boot stage against a simulated processor. The
// page tables, descriptor table, stack and text console are placed in
// simulated physical memory at the addresses a real machine would use.
package simboot

import (
	"io"
	"peluboot/device/tty"
	"peluboot/device/video/console"
	"peluboot/kernel"
	"peluboot/kernel/cpu"
	"peluboot/kernel/cpu/sim"
	"peluboot/kernel/gdt"
	"peluboot/kernel/kmain"
	"peluboot/kernel/longmode"
	"peluboot/kernel/mem"
	"peluboot/kernel/mem/vmm"
	"peluboot/kernel/stack"
	"strings"
)

// Physical memory layout of the simulated machine.
const (
	MemorySize  = 4 * mem.Mb
	ConsoleBase = uint64(console.VgaTextPhysAddr)
	PagingBase  = uint64(0x100000)
	GDTBase     = PagingBase + uint64(3*mem.PageSize)
	StackBase   = uint64(0x104000)
)

var (
	// ErrOutOfOrder is returned when the transition writes were issued in
	// an order the processor does not accept.
	ErrOutOfOrder = &kernel.Error{Module: "sim", Message: "long mode transition performed out of order"}

	// ErrTripleFault is returned when the processor faulted during the
	// transition. Real hardware resets in both cases.
	ErrTripleFault = &kernel.Error{Module: "sim", Message: "processor triple faulted"}

	// ErrNotInLongMode is returned if the boot stage finished without
	// reaching long mode.
	ErrNotInLongMode = &kernel.Error{Module: "sim", Message: "boot stage finished outside long mode"}
)

// Machine is a simulated computer with the boot stage loaded.
type Machine struct {
	Memory   *sim.Memory
	CPU      *sim.Processor
	Console  *console.VgaTextConsole
	Terminal *tty.VT

	ctx kmain.Context
}

// New creates a machine whose processor reports the features in cfg. If
// log is not nil, the diagnostic output is copied to it in addition to the
// simulated text console.
func New(cfg sim.Config, log io.Writer) (*Machine, error) {
	physMem, err := sim.NewMemory(uint64(MemorySize))
	if err != nil {
		return nil, err
	}

	m := &Machine{
		Memory:   physMem,
		CPU:      sim.NewProcessor(cfg, physMem),
		Console:  console.NewVgaTextConsole(console.VgaTextColumns, console.VgaTextRows, uintptr(physMem.Pointer(ConsoleBase))),
		Terminal: tty.NewVT(4),
	}
	m.Terminal.AttachTo(m.Console)

	var out io.Writer = m.Terminal
	if log != nil {
		out = io.MultiWriter(m.Terminal, log)
	}

	m.ctx = kmain.Context{
		CPU:        m.CPU,
		Console:    out,
		Halt:       m.CPU.Halt,
		StackBase:  uintptr(StackBase),
		Paging:     (*vmm.IdentityTables)(physMem.Pointer(PagingBase)),
		PagingBase: uint32(PagingBase),
		GDT:        (*gdt.Table)(physMem.Pointer(GDTBase)),
		GDTBase:    uint32(GDTBase),
	}

	return m, nil
}

// SetTransitionOrder replaces the long mode transition with the steps of
// longmode.Steps executed in the supplied order. A nil order restores the
// regular transition.
func (m *Machine) SetTransitionOrder(order []int) {
	if order == nil {
		m.ctx.Transition = nil
		return
	}

	m.ctx.Transition = func(w io.Writer, c cpu.CPU, pml4 uint32) {
		for _, index := range order {
			step := longmode.Steps[index]
			step.Run(c, pml4)
			io.WriteString(w, step.Name+"\n")
		}
	}
}

// Boot activates the boot stack, as the entry trampoline does, and runs the
// boot stage with the supplied loader registers. Besides the errors reported
// by the boot stage it returns ErrOutOfOrder or ErrTripleFault when the
// processor ends up in an invalid state.
func (m *Machine) Boot(eax, ebx uint32) *kernel.Error {
	stack.Activate(m.CPU, uintptr(StackBase))
	if err := kmain.Boot(&m.ctx, eax, ebx); err != nil {
		return err
	}

	switch m.CPU.Mode() {
	case cpu.ModeLong:
		return nil
	case cpu.ModeOutOfOrder:
		return ErrOutOfOrder
	case cpu.ModeTripleFault:
		return ErrTripleFault
	default:
		return ErrNotInLongMode
	}
}

// Screen returns the contents of the text console, one string per row with
// trailing blanks removed.
func (m *Machine) Screen() []string {
	width, height := m.Console.Dimensions()
	rows := make([]string, height)
	line := make([]byte, width)
	for y := uint32(1); y <= height; y++ {
		for x := uint32(1); x <= width; x++ {
			line[x-1], _ = m.Console.Cell(x, y)
		}
		rows[y-1] = strings.TrimRight(string(line), " ")
	}
	return rows
}

// Close releases the simulated physical memory.
func (m *Machine) Close() error {
	return m.Memory.Close()
}
