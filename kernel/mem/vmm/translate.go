package vmm

import "peluboot/kernel"

// ErrInvalidMapping is returned when trying to lookup a virtual address
// that is not mapped.
var ErrInvalidMapping = &kernel.Error{Module: "vmm", Message: "virtual address does not point to a mapped physical page"}

// PhysReader is implemented by objects that provide access to physical
// memory.
type PhysReader interface {
	ReadUint64(physAddr uint64) uint64
}

// walk performs a page table walk for virtAddr starting at the level-4
// table located at physical address root. The visitor is invoked for each
// entry encountered and may abort the walk by returning false.
func walk(mem PhysReader, root, virtAddr uint64, walkFn func(level uint8, pte pageTableEntry) bool) {
	tableAddr := root
	for level := uint8(0); level < pageLevels; level++ {
		index := (virtAddr >> pageLevelShifts[level]) & (EntriesPerTable - 1)
		pte := pageTableEntry(mem.ReadUint64(tableAddr + index<<3))

		if !walkFn(level, pte) {
			return
		}

		tableAddr = pte.Address()
	}
}

// Translate returns the physical address that virtAddr resolves to when
// the paging tree at root is active, or ErrInvalidMapping if the address is
// not mapped.
func Translate(mem PhysReader, root, virtAddr uint64) (uint64, *kernel.Error) {
	var (
		physAddr uint64
		err      = ErrInvalidMapping
	)

	walk(mem, root, virtAddr, func(level uint8, pte pageTableEntry) bool {
		if !pte.HasFlags(FlagPresent) {
			return false
		}

		// huge pages terminate the walk at levels 3 and 2; the last
		// level always maps a 4K page
		lastLevel := level == pageLevels-1
		if lastLevel || (level > 0 && pte.HasFlags(FlagHugePage)) {
			pageMask := uint64(1)<<pageLevelShifts[level] - 1
			physAddr = (pte.Address() &^ pageMask) | (virtAddr & pageMask)
			err = nil
			return false
		}

		return true
	})

	return physAddr, err
}

// EntryFlags returns the flags of the entry that terminates the walk for
// virtAddr, or ErrInvalidMapping if the address is not mapped.
func EntryFlags(mem PhysReader, root, virtAddr uint64) (EntryFlag, *kernel.Error) {
	var (
		flags EntryFlag
		err   = ErrInvalidMapping
	)

	walk(mem, root, virtAddr, func(level uint8, pte pageTableEntry) bool {
		if !pte.HasFlags(FlagPresent) {
			return false
		}

		if level == pageLevels-1 || (level > 0 && pte.HasFlags(FlagHugePage)) {
			flags = EntryFlag(uint64(pte) &^ ptePhysPageMask)
			err = nil
			return false
		}

		return true
	})

	return flags, err
}
