// Package sim provides a simulated x86 processor that implements cpu.CPU. It
// tracks the privileged state touched by the boot stage and classifies every
// write against the protected mode to long mode transition so ordering bugs
// surface as distinct invalid states instead of an unobservable reset.
package sim

import (
	"encoding/binary"
	"peluboot/kernel/cpu"
	"peluboot/kernel/gdt"
)

// Register identifies a piece of privileged state written by the boot stage.
type Register uint8

// The list of tracked registers.
const (
	RegNone Register = iota
	RegCR0
	RegCR3
	RegCR4
	RegEFER
	RegGDTR
	RegSP
	RegCPUID
)

var registerNames = [...]string{
	RegNone:  "none",
	RegCR0:   "CR0",
	RegCR3:   "CR3",
	RegCR4:   "CR4",
	RegEFER:  "EFER",
	RegGDTR:  "GDTR",
	RegSP:    "ESP",
	RegCPUID: "CPUID",
}

// String implements fmt.Stringer.
func (r Register) String() string {
	if int(r) < len(registerNames) {
		return registerNames[r]
	}
	return "unknown"
}

// Write is a journal entry describing a privileged write.
type Write struct {
	Reg   Register
	Value uint64
}

// Config describes the features reported by a simulated processor.
type Config struct {
	// Vendor is the 12-byte CPUID vendor string.
	Vendor string

	// IDFlagToggles controls whether software can flip EFLAGS.ID, i.e.
	// whether CPUID exists at all.
	IDFlagToggles bool

	// MaxExtendedLeaf is returned in EAX for leaf 0x80000000.
	MaxExtendedLeaf uint32

	// LongMode sets the long mode bit of leaf 0x80000001.
	LongMode bool
}

// DefaultConfig describes a 64-bit capable processor.
var DefaultConfig = Config{
	Vendor:          "GenuineIntel",
	IDFlagToggles:   true,
	MaxExtendedLeaf: 0x80000008,
	LongMode:        true,
}

// Processor is a simulated single-core x86 processor. It starts in 32-bit
// protected mode with paging disabled, the state a Multiboot2 loader hands
// over.
type Processor struct {
	cfg Config
	mem *Memory

	cr0, cr3, cr4 uint32
	efer          uint64
	gdtr          cpu.DescriptorPointer
	gdtLoaded     bool
	sp            uintptr

	mode      cpu.Mode
	violation Register
	journal   []Write
	halted    bool
}

// NewProcessor returns a processor with the supplied feature set. The
// processor uses mem to inspect the tables referenced by CR3 and GDTR.
func NewProcessor(cfg Config, mem *Memory) *Processor {
	return &Processor{
		cfg: cfg,
		mem: mem,
		cr0: cpu.CR0PE,
	}
}

// Mode returns the transition state of the processor.
func (p *Processor) Mode() cpu.Mode { return p.mode }

// Violation returns the register whose write moved the processor into an
// invalid state, or RegNone.
func (p *Processor) Violation() Register { return p.violation }

// Journal returns the ordered list of privileged writes.
func (p *Processor) Journal() []Write { return p.journal }

// Halted returns true once Halt has been called.
func (p *Processor) Halted() bool { return p.halted }

// CR3 returns the paging root.
func (p *Processor) CR3() uint32 { return p.cr3 }

// GDTR returns the operand of the last LGDT.
func (p *Processor) GDTR() (cpu.DescriptorPointer, bool) { return p.gdtr, p.gdtLoaded }

// IDFlagToggles implements cpu.CPU.
func (p *Processor) IDFlagToggles() bool {
	return p.cfg.IDFlagToggles
}

// ID implements cpu.CPU. Executing CPUID on a processor without it raises
// #UD which, without an IDT, escalates to a triple fault.
func (p *Processor) ID(leaf, _ uint32) cpu.Regs {
	if !p.cfg.IDFlagToggles {
		p.fail(cpu.ModeTripleFault, RegCPUID)
		return cpu.Regs{}
	}

	switch {
	case leaf == cpu.LeafVendor:
		var v [12]byte
		copy(v[:], p.cfg.Vendor)
		return cpu.Regs{
			EAX: 1,
			EBX: binary.LittleEndian.Uint32(v[0:4]),
			EDX: binary.LittleEndian.Uint32(v[4:8]),
			ECX: binary.LittleEndian.Uint32(v[8:12]),
		}
	case leaf == cpu.LeafExtendedMax:
		return cpu.Regs{EAX: p.cfg.MaxExtendedLeaf}
	case leaf > p.cfg.MaxExtendedLeaf:
		return cpu.Regs{}
	case leaf == cpu.LeafExtendedFeatures && p.cfg.LongMode:
		return cpu.Regs{EDX: cpu.ExtFeatureLongMode}
	default:
		return cpu.Regs{}
	}
}

// ReadCR0 implements cpu.CPU.
func (p *Processor) ReadCR0() uint32 { return p.cr0 }

// ReadCR4 implements cpu.CPU.
func (p *Processor) ReadCR4() uint32 { return p.cr4 }

// StackPointer implements cpu.CPU.
func (p *Processor) StackPointer() uintptr { return p.sp }

// LoadStackPointer sets the stack register.
func (p *Processor) LoadStackPointer(sp uintptr) {
	p.record(RegSP, uint64(sp))
	p.sp = sp
}

// Halt implements cpu.CPU. Unlike the native implementation it returns.
func (p *Processor) Halt() {
	p.halted = true
}

// WriteCR3 implements cpu.CPU. Loading the paging root is the first step of
// the transition.
func (p *Processor) WriteCR3(v uint32) {
	p.record(RegCR3, uint64(v))
	p.cr3 = v
	p.advance(cpu.ModeProtected32, cpu.ModePagingRootLoaded, RegCR3)
}

// WriteCR4 implements cpu.CPU. Setting PAE is the second step.
func (p *Processor) WriteCR4(v uint32) {
	p.record(RegCR4, uint64(v))
	old := p.cr4
	p.cr4 = v

	switch {
	case old&cpu.CR4PAE == 0 && v&cpu.CR4PAE != 0:
		p.advance(cpu.ModePagingRootLoaded, cpu.ModePAEEnabled, RegCR4)
	case old&cpu.CR4PAE != 0 && v&cpu.CR4PAE == 0 && p.mode == cpu.ModeLong:
		// clearing PAE while in long mode raises #GP
		p.fail(cpu.ModeTripleFault, RegCR4)
	case old&cpu.CR4PAE != 0 && v&cpu.CR4PAE == 0:
		p.fail(cpu.ModeOutOfOrder, RegCR4)
	}
}

// ReadMSR implements cpu.CPU.
func (p *Processor) ReadMSR(msr uint32) uint64 {
	if msr == cpu.MSREFER {
		return p.efer
	}
	return 0
}

// WriteMSR implements cpu.CPU. Setting EFER.LME is the third step.
func (p *Processor) WriteMSR(msr uint32, value uint64) {
	if msr != cpu.MSREFER {
		return
	}

	p.record(RegEFER, value)
	old := p.efer
	p.efer = value &^ cpu.EFERLMA
	if p.mode == cpu.ModeLong {
		p.efer |= cpu.EFERLMA
	}

	if old&cpu.EFERLME == 0 && value&cpu.EFERLME != 0 {
		p.advance(cpu.ModePAEEnabled, cpu.ModeLongModeBitSet, RegEFER)
	}
}

// WriteCR0 implements cpu.CPU. Enabling paging is the final step; it only
// succeeds if every previous step has committed and the active GDT holds a
// 64-bit code descriptor. Otherwise the processor triple faults.
func (p *Processor) WriteCR0(v uint32) {
	p.record(RegCR0, uint64(v))
	old := p.cr0
	p.cr0 = v

	if old&cpu.CR0PG != 0 || v&cpu.CR0PG == 0 {
		return
	}

	if p.mode != cpu.ModeLongModeBitSet || !p.validPagingRoot() || !p.validCodeDescriptor() {
		p.fail(cpu.ModeTripleFault, RegCR0)
		return
	}

	p.efer |= cpu.EFERLMA
	p.mode = cpu.ModeLong
}

// LoadGDT implements cpu.CPU.
func (p *Processor) LoadGDT(ptr cpu.DescriptorPointer) {
	p.record(RegGDTR, ptr.Base)
	p.gdtr = ptr
	p.gdtLoaded = true
}

// LongModeCodeActive reports whether the active GDT contains a 64-bit code
// descriptor at gdt.CodeSelector.
func (p *Processor) LongModeCodeActive() bool {
	return p.validCodeDescriptor()
}

// advance moves the processor from state "from" to state "to". Any write
// that arrives while the processor is in another state is out of order.
func (p *Processor) advance(from, to cpu.Mode, reg Register) {
	if !p.mode.Valid() {
		return
	}

	if p.mode != from {
		p.fail(cpu.ModeOutOfOrder, reg)
		return
	}
	p.mode = to
}

// fail moves the processor into a terminal invalid state. The first
// violation wins.
func (p *Processor) fail(mode cpu.Mode, reg Register) {
	if !p.mode.Valid() {
		return
	}
	p.mode = mode
	p.violation = reg
}

func (p *Processor) record(reg Register, value uint64) {
	p.journal = append(p.journal, Write{Reg: reg, Value: value})
}

func (p *Processor) validPagingRoot() bool {
	if p.cr3 == 0 || p.cr3&0xfff != 0 {
		return false
	}
	return p.mem == nil || uint64(p.cr3)+4096 <= p.mem.Size()
}

func (p *Processor) validCodeDescriptor() bool {
	if !p.gdtLoaded || p.mem == nil {
		return false
	}

	codeOffset := uint64(gdt.CodeSelector)
	if uint64(p.gdtr.Limit) < codeOffset+7 || p.gdtr.Base+codeOffset+8 > p.mem.Size() {
		return false
	}

	null := gdt.Descriptor(p.mem.ReadUint64(p.gdtr.Base))
	code := gdt.Descriptor(p.mem.ReadUint64(p.gdtr.Base + codeOffset))
	return null.IsNull() && code.IsLongModeCode()
}
