// Package vmm builds the page tables that the boot stage installs before
// switching the processor to long mode.
package vmm

import (
	"peluboot/kernel"
	"peluboot/kernel/mem"
	"unsafe"
)

// ErrPhysicalAddressOverflow is returned when an entry value does not fit
// in 32 bits. The tables are written by 32-bit code so such a value points to
// a misconfigured table placement.
var ErrPhysicalAddressOverflow = &kernel.Error{Module: "vmm", Message: "page table entry exceeds 32-bit physical address space"}

// Table is a single 4 KiB page table.
type Table [EntriesPerTable]uint64

// MapPage stores the entry physAddr|flags at index. If the combined value
// sets any bit above bit 31 the entry is left untouched and
// ErrPhysicalAddressOverflow is returned.
func (t *Table) MapPage(index int, physAddr uint64, flags EntryFlag) *kernel.Error {
	entry := pageTableEntry(physAddr)
	entry.SetFlags(flags)
	if uint64(entry) >= entryAddressLimit {
		return ErrPhysicalAddressOverflow
	}

	t[index] = uint64(entry)
	return nil
}

// MapRange populates every entry of the table with the address and flags
// returned by fn for each index. It stops at the first failure.
func (t *Table) MapRange(fn func(index int) (uint64, EntryFlag)) *kernel.Error {
	for index := 0; index < EntriesPerTable; index++ {
		physAddr, flags := fn(index)
		if err := t.MapPage(index, physAddr, flags); err != nil {
			return err
		}
	}

	return nil
}

// Clear resets every entry of the table.
func (t *Table) Clear() {
	mem.Memset(uintptr(unsafe.Pointer(t)), 0, mem.PageSize)
}
