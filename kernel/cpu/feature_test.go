package cpu

import "testing"

// fakeCPU answers CPUID queries from a leaf table and ignores all other
// privileged operations.
type fakeCPU struct {
	idToggles bool
	leaves    map[uint32]Regs
	queried   []uint32
}

func (c *fakeCPU) IDFlagToggles() bool { return c.idToggles }
func (c *fakeCPU) ID(leaf, _ uint32) Regs {
	c.queried = append(c.queried, leaf)
	return c.leaves[leaf]
}
func (c *fakeCPU) ReadCR0() uint32 { return CR0PE }
func (c *fakeCPU) WriteCR0(uint32) {}
func (c *fakeCPU) WriteCR3(uint32) {}
func (c *fakeCPU) ReadCR4() uint32 { return 0 }
func (c *fakeCPU) WriteCR4(uint32) {}
func (c *fakeCPU) ReadMSR(uint32) uint64 { return 0 }
func (c *fakeCPU) WriteMSR(uint32, uint64) {}
func (c *fakeCPU) LoadGDT(DescriptorPointer) {}
func (c *fakeCPU) StackPointer() uintptr { return 0 }
func (c *fakeCPU) Halt() {}

func TestProbeLongMode(t *testing.T) {
	specs := []struct {
		cpu        *fakeCPU
		exp        FeatureStatus
		expErr     error
		expQueried int
	}{
		// ID flag cannot be toggled
		{
			&fakeCPU{idToggles: false},
			CpuidUnsupported,
			ErrCpuidUnsupported,
			0,
		},
		// max extended leaf below the feature bits leaf
		{
			&fakeCPU{idToggles: true, leaves: map[uint32]Regs{
				LeafExtendedMax: {EAX: LeafExtendedMax},
			}},
			ExtendedModeUnsupported,
			ErrExtendedModeUnsupported,
			1,
		},
		// feature bits leaf present but LM bit clear
		{
			&fakeCPU{idToggles: true, leaves: map[uint32]Regs{
				LeafExtendedMax:      {EAX: LeafExtendedFeatures},
				LeafExtendedFeatures: {EDX: ^ExtFeatureLongMode},
			}},
			LongModeUnsupported,
			ErrLongModeUnsupported,
			2,
		},
		// long mode supported
		{
			&fakeCPU{idToggles: true, leaves: map[uint32]Regs{
				LeafExtendedMax:      {EAX: 0x80000008},
				LeafExtendedFeatures: {EDX: ExtFeatureLongMode},
			}},
			Supported,
			nil,
			2,
		},
	}

	for specIndex, spec := range specs {
		got := ProbeLongMode(spec.cpu)
		if got != spec.exp {
			t.Errorf("[spec %d] expected probe to return %q; got %q", specIndex, spec.exp, got)
		}

		if err := got.Err(); (spec.expErr == nil && err != nil) || (spec.expErr != nil && err != spec.expErr) {
			t.Errorf("[spec %d] expected error %v; got %v", specIndex, spec.expErr, err)
		}

		if len(spec.cpu.queried) != spec.expQueried {
			t.Errorf("[spec %d] expected %d CPUID queries; got %d", specIndex, spec.expQueried, len(spec.cpu.queried))
		}
	}
}

func TestVendor(t *testing.T) {
	specs := []struct {
		ebx, ecx, edx uint32
		exp           string
	}{
		// CPUID output from an Intel CPU
		{0x756e6547, 0x6c65746e, 0x49656e69, "GenuineIntel"},
		// CPUID output from an AMD CPU
		{0x68747541, 0x444d4163, 0x69746e65, "AuthenticAMD"},
	}

	var buf [12]byte
	for specIndex, spec := range specs {
		c := &fakeCPU{idToggles: true, leaves: map[uint32]Regs{
			LeafVendor: {EAX: 0xd, EBX: spec.ebx, ECX: spec.ecx, EDX: spec.edx},
		}}

		if got := string(Vendor(c, &buf)); got != spec.exp {
			t.Errorf("[spec %d] expected vendor %q; got %q", specIndex, spec.exp, got)
		}
	}
}

func TestModeString(t *testing.T) {
	if got := ModeLong.String(); got != "long mode" {
		t.Errorf("expected %q; got %q", "long mode", got)
	}

	if got := Mode(200).String(); got != "unknown" {
		t.Errorf("expected %q; got %q", "unknown", got)
	}

	for m := ModeProtected32; m <= ModeTripleFault; m++ {
		if exp := m <= ModeLong; m.Valid() != exp {
			t.Errorf("expected %s.Valid() to be %t", m, exp)
		}
	}
}
