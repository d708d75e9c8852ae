package cpu

// Mode describes how far the processor has progressed on its way from 32-bit
// protected mode to long mode. The transition is one-directional:
//
//	ModeProtected32 -> ModePagingRootLoaded -> ModePAEEnabled ->
//	ModeLongModeBitSet -> ModeLong
//
// ModeOutOfOrder and ModeTripleFault are terminal states that a real
// processor can only report by resetting.
type Mode uint8

// The list of modes, in transition order.
const (
	ModeProtected32 Mode = iota
	ModePagingRootLoaded
	ModePAEEnabled
	ModeLongModeBitSet
	ModeLong
	ModeOutOfOrder
	ModeTripleFault
)

var modeNames = [...]string{
	ModeProtected32:      "protected mode (32-bit)",
	ModePagingRootLoaded: "paging root loaded",
	ModePAEEnabled:       "PAE enabled",
	ModeLongModeBitSet:   "long mode bit set",
	ModeLong:             "long mode",
	ModeOutOfOrder:       "out-of-order transition",
	ModeTripleFault:      "triple fault",
}

// String implements fmt.Stringer.
func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return "unknown"
}

// Valid returns false for the terminal error states.
func (m Mode) Valid() bool {
	return m <= ModeLong
}
