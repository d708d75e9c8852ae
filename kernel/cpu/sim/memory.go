package sim

import (
	"encoding/binary"
	"unsafe"
)

// Memory models the physical address space of the simulated machine. Address
// 0 of the backing slice corresponds to physical address 0.
type Memory struct {
	data    []byte
	release func([]byte) error
}

// Size returns the amount of simulated physical memory in bytes.
func (m *Memory) Size() uint64 {
	return uint64(len(m.data))
}

// Bytes returns a slice aliasing size bytes of physical memory at addr.
func (m *Memory) Bytes(addr, size uint64) []byte {
	return m.data[addr : addr+size : addr+size]
}

// Pointer returns a pointer to physical address addr. It allows the boot
// stage statics (page tables, GDT, stack) to be placed inside simulated
// memory so physical addresses computed by the kernel code are meaningful.
func (m *Memory) Pointer(addr uint64) unsafe.Pointer {
	return unsafe.Pointer(&m.data[addr])
}

// ReadUint64 reads a little-endian 64-bit word at physical address addr.
func (m *Memory) ReadUint64(addr uint64) uint64 {
	return binary.LittleEndian.Uint64(m.data[addr : addr+8])
}

// WriteUint64 stores a little-endian 64-bit word at physical address addr.
func (m *Memory) WriteUint64(addr, value uint64) {
	binary.LittleEndian.PutUint64(m.data[addr:addr+8], value)
}

// Close releases the memory backing the simulated address space.
func (m *Memory) Close() error {
	if m.release == nil || m.data == nil {
		return nil
	}
	err := m.release(m.data)
	m.data = nil
	return err
}
