//go:build !unix

package sim

// NewMemory allocates size bytes of zeroed memory to back the simulated
// physical address space.
func NewMemory(size uint64) (*Memory, error) {
	return &Memory{data: make([]byte, size)}, nil
}
