package cpu

import "peluboot/kernel"

// FeatureStatus is the outcome of ProbeLongMode.
type FeatureStatus uint8

// The list of possible feature probe outcomes.
const (
	Supported FeatureStatus = iota
	CpuidUnsupported
	ExtendedModeUnsupported
	LongModeUnsupported
)

var (
	ErrCpuidUnsupported        = &kernel.Error{Module: "cpuid", Message: "CPUID is not supported; impossible to boot"}
	ErrExtendedModeUnsupported = &kernel.Error{Module: "cpuid", Message: "CPUID extended leaves are not supported; impossible to boot"}
	ErrLongModeUnsupported     = &kernel.Error{Module: "cpuid", Message: "long mode is not supported; impossible to boot"}
)

// Err maps a failed probe outcome to its kernel error. It returns nil for
// Supported.
func (s FeatureStatus) Err() *kernel.Error {
	switch s {
	case CpuidUnsupported:
		return ErrCpuidUnsupported
	case ExtendedModeUnsupported:
		return ErrExtendedModeUnsupported
	case LongModeUnsupported:
		return ErrLongModeUnsupported
	default:
		return nil
	}
}

// String implements fmt.Stringer.
func (s FeatureStatus) String() string {
	switch s {
	case Supported:
		return "supported"
	case CpuidUnsupported:
		return "cpuid unsupported"
	case ExtendedModeUnsupported:
		return "extended mode unsupported"
	case LongModeUnsupported:
		return "long mode unsupported"
	default:
		return "unknown"
	}
}

// ProbeCPUIDSupport reports whether the CPUID instruction is available. The
// only architecturally defined detection method is to check whether software
// can flip the ID bit of EFLAGS.
func ProbeCPUIDSupport(c CPU) bool {
	return c.IDFlagToggles()
}

// Query issues CPUID for a single leaf.
func Query(c CPU, leaf, subLeaf uint32) Regs {
	return c.ID(leaf, subLeaf)
}

// ProbeLongMode checks, in order, that CPUID is available, that the extended
// feature leaf exists and that it advertises long mode support.
func ProbeLongMode(c CPU) FeatureStatus {
	if !ProbeCPUIDSupport(c) {
		return CpuidUnsupported
	}

	if regs := Query(c, LeafExtendedMax, 0); regs.EAX < LeafExtendedFeatures {
		return ExtendedModeUnsupported
	}

	if regs := Query(c, LeafExtendedFeatures, 0); regs.EDX&ExtFeatureLongMode == 0 {
		return LongModeUnsupported
	}

	return Supported
}

// Vendor fills buf with the 12-byte vendor identification string reported by
// CPUID leaf 0 and returns it. The caller must make sure that CPUID is
// supported.
func Vendor(c CPU, buf *[12]byte) []byte {
	regs := Query(c, LeafVendor, 0)
	for i, reg := range [3]uint32{regs.EBX, regs.EDX, regs.ECX} {
		buf[i*4] = byte(reg)
		buf[i*4+1] = byte(reg >> 8)
		buf[i*4+2] = byte(reg >> 16)
		buf[i*4+3] = byte(reg >> 24)
	}
	return buf[:]
}
