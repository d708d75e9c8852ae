package vmm

import (
	"io"
	"peluboot/kernel"
	"peluboot/kernel/kfmt"
	"peluboot/kernel/mem"
	"unsafe"
)

// IdentityLimit is the size of the region mapped by IdentityTables.
const IdentityLimit = EntriesPerTable * uint64(mem.LargePageSize)

// ErrMisalignedTables is returned when the tables are not placed at a page
// boundary.
var ErrMisalignedTables = &kernel.Error{Module: "vmm", Message: "page tables must be 4K aligned"}

// IdentityTables is the paging tree that identity maps the first 1 GiB of
// physical memory using 2 MiB pages. The three tables are laid out
// contiguously so the tree occupies a single 12 KiB block.
type IdentityTables struct {
	Level4 Table
	Level3 Table
	Level2 Table
}

// Level3Offset and Level2Offset are the offsets of the lower level tables
// from the start of an IdentityTables block.
const (
	Level3Offset = uint32(unsafe.Offsetof(IdentityTables{}.Level3))
	Level2Offset = uint32(unsafe.Offsetof(IdentityTables{}.Level2))
)

// Build populates the tables so that virtual address A translates to A for
// every A below IdentityLimit. base is the physical address of t; it becomes
// the value loaded into CR3.
func (t *IdentityTables) Build(w io.Writer, base uint32) *kernel.Error {
	if uint64(base)&uint64(mem.PageSize-1) != 0 {
		return ErrMisalignedTables
	}

	kfmt.Fprintf(w, "=== Page Table Setup ===\n")
	var (
		level3Addr = uint64(base) + uint64(Level3Offset)
		level2Addr = uint64(base) + uint64(Level2Offset)
	)

	kfmt.Fprintf(w, "level4 at 0x%8x, level3 at 0x%8x, level2 at 0x%8x\n", base, level3Addr, level2Addr)

	t.Level4.Clear()
	t.Level3.Clear()
	t.Level2.Clear()

	if err := t.Level4.MapPage(0, level3Addr, FlagPresent|FlagRW); err != nil {
		return err
	}

	if err := t.Level3.MapPage(0, level2Addr, FlagPresent|FlagRW); err != nil {
		return err
	}

	err := t.Level2.MapRange(func(index int) (uint64, EntryFlag) {
		return uint64(index) * uint64(mem.LargePageSize), FlagPresent | FlagRW | FlagHugePage
	})
	if err != nil {
		return err
	}

	kfmt.Fprintf(w, "identity mapped 0x0 - 0x%x with %d 2M pages\n", IdentityLimit, EntriesPerTable)
	return nil
}
