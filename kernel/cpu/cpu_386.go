package cpu

import "unsafe"

// gdtrImage holds the packed operand for LGDT: a 16-bit limit immediately
// followed by the base address.
var gdtrImage [10]byte

// Native implements CPU by issuing the privileged instructions directly. It
// can only be used while running in ring 0.
type Native struct{}

// IDFlagToggles implements CPU.
func (Native) IDFlagToggles() bool { return idFlagToggles() }

// ID implements CPU.
func (Native) ID(leaf, subLeaf uint32) Regs {
	eax, ebx, ecx, edx := cpuid(leaf, subLeaf)
	return Regs{EAX: eax, EBX: ebx, ECX: ecx, EDX: edx}
}

// ReadCR0 implements CPU.
func (Native) ReadCR0() uint32 { return readCR0() }

// WriteCR0 implements CPU.
func (Native) WriteCR0(v uint32) { writeCR0(v) }

// WriteCR3 implements CPU.
func (Native) WriteCR3(v uint32) { writeCR3(v) }

// ReadCR4 implements CPU.
func (Native) ReadCR4() uint32 { return readCR4() }

// WriteCR4 implements CPU.
func (Native) WriteCR4(v uint32) { writeCR4(v) }

// ReadMSR implements CPU.
func (Native) ReadMSR(msr uint32) uint64 {
	lo, hi := rdmsr(msr)
	return uint64(hi)<<32 | uint64(lo)
}

// WriteMSR implements CPU.
func (Native) WriteMSR(msr uint32, value uint64) {
	wrmsr(msr, uint32(value), uint32(value>>32))
}

// LoadGDT implements CPU.
func (Native) LoadGDT(ptr DescriptorPointer) {
	gdtrImage[0] = byte(ptr.Limit)
	gdtrImage[1] = byte(ptr.Limit >> 8)
	for i := 0; i < 8; i++ {
		gdtrImage[2+i] = byte(ptr.Base >> (8 * uint(i)))
	}
	lgdt(uintptr(unsafe.Pointer(&gdtrImage[0])))
}

// StackPointer implements CPU.
func (Native) StackPointer() uintptr { return stackPointer() }

// Halt implements CPU.
func (Native) Halt() { Halt() }

// Halt disables interrupts and stops instruction execution. It never returns.
func Halt()

func idFlagToggles() bool
func cpuid(leaf, subLeaf uint32) (eax, ebx, ecx, edx uint32)
func readCR0() uint32
func writeCR0(v uint32)
func writeCR3(v uint32)
func readCR4() uint32
func writeCR4(v uint32)
func rdmsr(msr uint32) (lo, hi uint32)
func wrmsr(msr, lo, hi uint32)
func lgdt(gdtrAddr uintptr)
func stackPointer() uintptr
