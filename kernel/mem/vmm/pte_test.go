package vmm

import "testing"

func TestPageTableEntryFlags(t *testing.T) {
	var (
		pte   = pageTableEntry(0x200000)
		flag1 = EntryFlag(1 << 10)
		flag2 = EntryFlag(1 << 11)
	)

	if pte.HasFlags(flag1) {
		t.Fatalf("expected HasFlags to return false")
	}

	pte.SetFlags(flag1)

	if !pte.HasFlags(flag1) {
		t.Fatalf("expected HasFlags to return true")
	}

	if pte.HasFlags(flag1 | flag2) {
		t.Fatalf("expected HasFlags to return false when only some flags are set")
	}

	pte.SetFlags(flag2)

	if !pte.HasFlags(flag1 | flag2) {
		t.Fatalf("expected HasFlags to return true")
	}

	if got := pte.Address(); got != 0x200000 {
		t.Fatalf("expected SetFlags to preserve the address; got 0x%x", got)
	}
}

func TestPageTableEntryAddress(t *testing.T) {
	pte := pageTableEntry(0x3fe00000) | pageTableEntry(FlagPresent|FlagRW|FlagHugePage|FlagNoExecute)
	if got := pte.Address(); got != 0x3fe00000 {
		t.Fatalf("expected address 0x3fe00000; got 0x%x", got)
	}
}

func TestFlagValues(t *testing.T) {
	specs := []struct {
		flag EntryFlag
		bit  uint
	}{
		{FlagPresent, 0},
		{FlagRW, 1},
		{FlagUserAccessible, 2},
		{FlagWriteThroughCaching, 3},
		{FlagDoNotCache, 4},
		{FlagAccessed, 5},
		{FlagDirty, 6},
		{FlagHugePage, 7},
		{FlagGlobal, 8},
		{FlagNoExecute, 63},
	}

	for specIndex, spec := range specs {
		if exp := EntryFlag(1) << spec.bit; spec.flag != exp {
			t.Errorf("[spec %d] expected flag to be bit %d (0x%x); got 0x%x", specIndex, spec.bit, uint64(exp), uint64(spec.flag))
		}
	}
}
