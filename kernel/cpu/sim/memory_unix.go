//go:build unix

package sim

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// NewMemory maps size bytes of zeroed anonymous memory to back the simulated
// physical address space.
func NewMemory(size uint64) (*Memory, error) {
	data, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("map %d bytes of simulated memory: %w", size, err)
	}
	return &Memory{data: data, release: unix.Munmap}, nil
}
