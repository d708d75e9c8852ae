package sim

import (
	"peluboot/kernel/cpu"
	"peluboot/kernel/gdt"
	"testing"
)

const (
	testRoot    = 0x1000
	testGDTBase = 0x3000
)

func newTestProcessor(t *testing.T, cfg Config) *Processor {
	t.Helper()

	m, err := NewMemory(0x10000)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { m.Close() })

	*(*gdt.Table)(m.Pointer(testGDTBase)) = gdt.BootTable
	return NewProcessor(cfg, m)
}

func loadBootGDT(p *Processor) {
	p.LoadGDT(gdt.BootTable.Pointer(testGDTBase))
}

func TestProcessorInitialState(t *testing.T) {
	p := newTestProcessor(t, DefaultConfig)

	if p.Mode() != cpu.ModeProtected32 {
		t.Fatalf("expected initial mode %q; got %q", cpu.ModeProtected32, p.Mode())
	}

	if p.ReadCR0() != cpu.CR0PE {
		t.Fatalf("expected CR0 to only have PE set; got 0x%x", p.ReadCR0())
	}

	if p.Violation() != RegNone || p.Halted() || len(p.Journal()) != 0 {
		t.Fatal("expected a clean processor")
	}

	if _, loaded := p.GDTR(); loaded {
		t.Fatal("expected no GDT to be loaded")
	}
}

func TestProcessorID(t *testing.T) {
	p := newTestProcessor(t, Config{
		Vendor:          "AuthenticAMD",
		IDFlagToggles:   true,
		MaxExtendedLeaf: 0x80000001,
		LongMode:        true,
	})

	var buf [12]byte
	if got := string(cpu.Vendor(p, &buf)); got != "AuthenticAMD" {
		t.Fatalf("expected vendor AuthenticAMD; got %q", got)
	}

	if got := p.ID(cpu.LeafExtendedMax, 0).EAX; got != 0x80000001 {
		t.Fatalf("expected max extended leaf 0x80000001; got 0x%x", got)
	}

	if got := p.ID(cpu.LeafExtendedFeatures, 0).EDX; got&cpu.ExtFeatureLongMode == 0 {
		t.Fatal("expected long mode bit to be set")
	}

	// leaves above the maximum return zeroes
	if got := p.ID(0x80000008, 0); got != (cpu.Regs{}) {
		t.Fatalf("expected zero registers; got %+v", got)
	}
}

func TestProcessorIDWithoutCPUID(t *testing.T) {
	cfg := DefaultConfig
	cfg.IDFlagToggles = false
	p := newTestProcessor(t, cfg)

	if p.IDFlagToggles() {
		t.Fatal("expected ID flag not to toggle")
	}

	p.ID(cpu.LeafVendor, 0)
	if p.Mode() != cpu.ModeTripleFault || p.Violation() != RegCPUID {
		t.Fatalf("expected CPUID to triple fault; got %q at %s", p.Mode(), p.Violation())
	}
}

func TestProcessorTransition(t *testing.T) {
	p := newTestProcessor(t, DefaultConfig)
	loadBootGDT(p)

	specs := []struct {
		write   func()
		expMode cpu.Mode
	}{
		{func() { p.WriteCR3(testRoot) }, cpu.ModePagingRootLoaded},
		{func() { p.WriteCR4(p.ReadCR4() | cpu.CR4PAE) }, cpu.ModePAEEnabled},
		// unrelated MSR writes are ignored
		{func() { p.WriteMSR(0x1b, 1) }, cpu.ModePAEEnabled},
		{func() { p.WriteMSR(cpu.MSREFER, p.ReadMSR(cpu.MSREFER)|cpu.EFERLME) }, cpu.ModeLongModeBitSet},
		{func() { p.WriteCR0(p.ReadCR0() | cpu.CR0PG) }, cpu.ModeLong},
		// rewriting EFER in long mode keeps LMA
		{func() { p.WriteMSR(cpu.MSREFER, p.ReadMSR(cpu.MSREFER)) }, cpu.ModeLong},
	}

	for specIndex, spec := range specs {
		spec.write()
		if got := p.Mode(); got != spec.expMode {
			t.Fatalf("[spec %d] expected mode %q; got %q", specIndex, spec.expMode, got)
		}
	}

	if p.ReadMSR(cpu.MSREFER)&cpu.EFERLMA == 0 {
		t.Fatal("expected EFER.LMA to be set")
	}

	if p.ReadMSR(0x1b) != 0 {
		t.Fatal("expected untracked MSRs to read as zero")
	}

	// clearing PAE in long mode faults
	p.WriteCR4(0)
	if p.Mode() != cpu.ModeTripleFault || p.Violation() != RegCR4 {
		t.Fatalf("expected clearing PAE to triple fault; got %q at %s", p.Mode(), p.Violation())
	}
}

func TestProcessorViolations(t *testing.T) {
	specs := []struct {
		writes       func(p *Processor)
		expMode      cpu.Mode
		expViolation Register
	}{
		{
			func(p *Processor) { p.WriteCR4(cpu.CR4PAE) },
			cpu.ModeOutOfOrder, RegCR4,
		},
		{
			func(p *Processor) { p.WriteMSR(cpu.MSREFER, cpu.EFERLME) },
			cpu.ModeOutOfOrder, RegEFER,
		},
		{
			func(p *Processor) { p.WriteCR0(cpu.CR0PE | cpu.CR0PG) },
			cpu.ModeTripleFault, RegCR0,
		},
		{
			func(p *Processor) {
				p.WriteCR3(testRoot)
				p.WriteCR3(testRoot)
			},
			cpu.ModeOutOfOrder, RegCR3,
		},
		{
			func(p *Processor) {
				p.WriteCR3(testRoot)
				p.WriteCR4(cpu.CR4PAE)
				p.WriteCR4(0)
			},
			cpu.ModeOutOfOrder, RegCR4,
		},
		// the first violation wins
		{
			func(p *Processor) {
				p.WriteMSR(cpu.MSREFER, cpu.EFERLME)
				p.WriteCR0(cpu.CR0PE | cpu.CR0PG)
			},
			cpu.ModeOutOfOrder, RegEFER,
		},
		// misaligned paging root
		{
			func(p *Processor) {
				p.WriteCR3(testRoot + 8)
				p.WriteCR4(cpu.CR4PAE)
				p.WriteMSR(cpu.MSREFER, cpu.EFERLME)
				p.WriteCR0(cpu.CR0PE | cpu.CR0PG)
			},
			cpu.ModeTripleFault, RegCR0,
		},
		// paging root outside physical memory
		{
			func(p *Processor) {
				p.WriteCR3(0x100000)
				p.WriteCR4(cpu.CR4PAE)
				p.WriteMSR(cpu.MSREFER, cpu.EFERLME)
				p.WriteCR0(cpu.CR0PE | cpu.CR0PG)
			},
			cpu.ModeTripleFault, RegCR0,
		},
	}

	for specIndex, spec := range specs {
		p := newTestProcessor(t, DefaultConfig)
		loadBootGDT(p)
		spec.writes(p)

		if got := p.Mode(); got != spec.expMode {
			t.Errorf("[spec %d] expected mode %q; got %q", specIndex, spec.expMode, got)
		}

		if got := p.Violation(); got != spec.expViolation {
			t.Errorf("[spec %d] expected violation at %s; got %s", specIndex, spec.expViolation, got)
		}
	}
}

func TestProcessorCodeDescriptor(t *testing.T) {
	specs := []struct {
		table gdt.Table
		limit uint16
		exp   bool
	}{
		{gdt.BootTable, 15, true},
		// code descriptor beyond the table limit
		{gdt.BootTable, 7, false},
		{gdt.Table{gdt.BootTable[1], gdt.BootTable[1]}, 15, false},
		{gdt.Table{0, gdt.BootTable[1] | gdt.FlagDefaultSize}, 15, false},
	}

	for specIndex, spec := range specs {
		p := newTestProcessor(t, DefaultConfig)
		*(*gdt.Table)(p.mem.Pointer(testGDTBase)) = spec.table
		p.LoadGDT(cpu.DescriptorPointer{Limit: spec.limit, Base: testGDTBase})

		if got := p.LongModeCodeActive(); got != spec.exp {
			t.Errorf("[spec %d] expected LongModeCodeActive() to return %t; got %t", specIndex, spec.exp, got)
		}
	}

	// no GDT loaded
	if newTestProcessor(t, DefaultConfig).LongModeCodeActive() {
		t.Error("expected LongModeCodeActive() to return false without a GDT")
	}
}

func TestProcessorJournal(t *testing.T) {
	p := newTestProcessor(t, DefaultConfig)
	p.LoadStackPointer(0x108000)
	loadBootGDT(p)
	p.WriteCR3(testRoot)
	p.Halt()

	exp := []Write{
		{RegSP, 0x108000},
		{RegGDTR, testGDTBase},
		{RegCR3, testRoot},
	}

	journal := p.Journal()
	if len(journal) != len(exp) {
		t.Fatalf("expected %d journal entries; got %d", len(exp), len(journal))
	}

	for index := range exp {
		if journal[index] != exp[index] {
			t.Errorf("expected journal entry %d to be %+v; got %+v", index, exp[index], journal[index])
		}
	}

	if !p.Halted() {
		t.Error("expected processor to be halted")
	}

	if p.StackPointer() != 0x108000 {
		t.Errorf("expected stack pointer 0x108000; got 0x%x", p.StackPointer())
	}
}

func TestRegisterString(t *testing.T) {
	specs := []struct {
		reg Register
		exp string
	}{
		{RegNone, "none"},
		{RegCR0, "CR0"},
		{RegEFER, "EFER"},
		{RegSP, "ESP"},
		{Register(200), "unknown"},
	}

	for specIndex, spec := range specs {
		if got := spec.reg.String(); got != spec.exp {
			t.Errorf("[spec %d] expected %q; got %q", specIndex, spec.exp, got)
		}
	}
}
