package vmm

// pageTableEntry describes a page table entry. These entries encode a
// physical address and a set of flags.
type pageTableEntry uint64

// HasFlags returns true if this entry has all the input flags set.
func (pte pageTableEntry) HasFlags(flags EntryFlag) bool {
	return (uint64(pte) & uint64(flags)) == uint64(flags)
}

// SetFlags sets the input list of flags to the page table entry.
func (pte *pageTableEntry) SetFlags(flags EntryFlag) {
	*pte = (pageTableEntry)(uint64(*pte) | uint64(flags))
}

// Address returns the physical address encoded in this entry.
func (pte pageTableEntry) Address() uint64 {
	return uint64(pte) & ptePhysPageMask
}
