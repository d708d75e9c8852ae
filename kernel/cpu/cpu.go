// Package cpu isolates every privileged instruction the boot stage needs
// behind the CPU interface. The native implementation (386) issues the real
// instructions; the sim sub-package provides a simulated processor.
package cpu

// Control register, MSR and flag bits touched by the boot stage.
const (
	// CR0PE is the protected mode enable bit. The loader hands over
	// control with it already set.
	CR0PE = uint32(1 << 0)

	// CR0PG enables paging. Once set together with EFERLME the processor
	// switches to long mode.
	CR0PG = uint32(1 << 31)

	// CR4PAE enables physical address extension; required for long mode.
	CR4PAE = uint32(1 << 5)

	// MSREFER is the extended feature enable register.
	MSREFER = uint32(0xC0000080)

	// EFERLME requests long mode on the next paging enable.
	EFERLME = uint64(1 << 8)

	// EFERLMA is set by the processor once long mode is active.
	EFERLMA = uint64(1 << 10)

	// FlagsID is the EFLAGS bit whose writability signals CPUID support.
	FlagsID = uint32(1 << 21)
)

// CPUID leaves and feature bits used by the feature probe.
const (
	LeafVendor           = uint32(0)
	LeafExtendedMax      = uint32(0x80000000)
	LeafExtendedFeatures = uint32(0x80000001)

	// ExtFeatureLongMode is reported in EDX of LeafExtendedFeatures.
	ExtFeatureLongMode = uint32(1 << 29)
)

// Regs holds the register values returned by a CPUID query.
type Regs struct {
	EAX, EBX, ECX, EDX uint32
}

// DescriptorPointer is the operand of the descriptor table load instruction.
type DescriptorPointer struct {
	// Size of the table in bytes minus one.
	Limit uint16

	// Physical address of the first table entry.
	Base uint64
}

// CPU is implemented by objects that provide access to the privileged
// processor state used while switching to long mode.
type CPU interface {
	// IDFlagToggles flips the EFLAGS ID bit, reads it back, restores the
	// original flags and reports whether the flip stuck.
	IDFlagToggles() bool

	// ID executes CPUID with EAX=leaf and ECX=subLeaf.
	ID(leaf, subLeaf uint32) Regs

	ReadCR0() uint32
	WriteCR0(uint32)
	WriteCR3(uint32)
	ReadCR4() uint32
	WriteCR4(uint32)

	// ReadMSR returns the 64-bit contents of a model specific register.
	ReadMSR(msr uint32) uint64

	// WriteMSR updates the contents of a model specific register.
	WriteMSR(msr uint32, value uint64)

	// LoadGDT makes the table described by ptr the active GDT.
	LoadGDT(ptr DescriptorPointer)

	// StackPointer returns the current value of the stack register.
	StackPointer() uintptr

	// Halt stops instruction execution. The native implementation never
	// returns.
	Halt()
}
