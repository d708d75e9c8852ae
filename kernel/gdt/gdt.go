// Package gdt provides the minimal global descriptor table required to enter
// long mode. Segmentation is inert in 64-bit mode but the processor still
// demands a code descriptor with the long mode bit set.
package gdt

import (
	"io"
	"peluboot/kernel/cpu"
	"peluboot/kernel/kfmt"
)

// Descriptor is a single 8-byte segment descriptor.
type Descriptor uint64

// Access and flag bits of a segment descriptor. Only the ones needed for a
// 64-bit code segment are listed; base and limit are ignored in long mode.
const (
	FlagAccessed Descriptor = 1 << 40

	FlagReadWrite Descriptor = 1 << 41

	// FlagExecutable marks a code segment.
	FlagExecutable Descriptor = 1 << 43

	// FlagCodeOrData is set for code and data segments and clear for
	// system segments.
	FlagCodeOrData Descriptor = 1 << 44

	// FlagPresent must be set for any usable segment.
	FlagPresent Descriptor = 1 << 47

	// FlagLongMode marks a 64-bit code segment.
	FlagLongMode Descriptor = 1 << 53

	// FlagDefaultSize must be clear when FlagLongMode is set.
	FlagDefaultSize Descriptor = 1 << 54
)

const (
	// Entries is the number of descriptors in the boot GDT.
	Entries = 2

	// Size is the size of the boot GDT in bytes.
	Size = Entries * 8

	// CodeSelector selects the 64-bit code descriptor.
	CodeSelector = uint16(1 << 3)

	longModeCode = FlagExecutable | FlagCodeOrData | FlagPresent | FlagLongMode
)

// Table is the boot GDT: a mandatory null descriptor followed by the 64-bit
// code descriptor.
type Table [Entries]Descriptor

// BootTable is the GDT loaded before paging is enabled.
var BootTable = Table{0, longModeCode}

// IsNull returns true for the all-zero descriptor.
func (d Descriptor) IsNull() bool {
	return d == 0
}

// IsLongModeCode returns true if d describes a present 64-bit code segment.
func (d Descriptor) IsLongModeCode() bool {
	return d&longModeCode == longModeCode && d&FlagDefaultSize == 0
}

// Pointer returns the LGDT operand for a table located at physical address
// base.
func (t *Table) Pointer(base uint64) cpu.DescriptorPointer {
	return cpu.DescriptorPointer{
		Limit: uint16(len(t)*8 - 1),
		Base:  base,
	}
}

// Load makes the table located at physical address base the active GDT. The
// table contents must be final; long mode requires the code descriptor to be
// valid at the moment paging is enabled.
func Load(w io.Writer, c cpu.CPU, t *Table, base uint64) {
	ptr := t.Pointer(base)

	kfmt.Fprintf(w, "=== GDT Setup ===\n")
	kfmt.Fprintf(w, "loading GDT with limit %d at 0x%x\n", ptr.Limit, ptr.Base)
	c.LoadGDT(ptr)
	kfmt.Fprintf(w, "GDT loaded\n")
}
