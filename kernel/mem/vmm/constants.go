package vmm

const (
	// EntriesPerTable is the number of entries in a page table.
	EntriesPerTable = 512

	// pageLevels indicates the number of page levels of 4-level long
	// mode paging.
	pageLevels = 4

	// ptePhysPageMask extracts the physical address from a page table
	// entry. Bits 12-51 hold the address.
	ptePhysPageMask = uint64(0x000ffffffffff000)

	// entryAddressLimit is the first combined entry value that cannot be
	// stored while the processor still runs 32-bit code.
	entryAddressLimit = uint64(1 << 32)
)

// pageLevelShifts defines the shift required to access each page table
// component of a virtual address.
var pageLevelShifts = [pageLevels]uint8{
	39,
	30,
	21,
	12,
}

// EntryFlag describes a flag that can be applied to a page table entry.
type EntryFlag uint64

const (
	// FlagPresent is set when the page is available in memory.
	FlagPresent EntryFlag = 1 << iota

	// FlagRW is set if the page can be written to.
	FlagRW

	// FlagUserAccessible is set if user-mode code can access this page.
	FlagUserAccessible

	// FlagWriteThroughCaching implies write-through caching when set and
	// write-back caching if cleared.
	FlagWriteThroughCaching

	// FlagDoNotCache prevents this page from being cached if set.
	FlagDoNotCache

	// FlagAccessed is set by the CPU when this page is accessed.
	FlagAccessed

	// FlagDirty is set by the CPU when this page is modified.
	FlagDirty

	// FlagHugePage terminates the walk at a level-3 (1G) or level-2 (2M)
	// entry.
	FlagHugePage

	// FlagGlobal prevents the TLB from flushing the cached translation
	// when CR3 is reloaded.
	FlagGlobal

	// FlagNoExecute if set, indicates that a page contains non-executable
	// code.
	FlagNoExecute EntryFlag = 1 << 63
)
