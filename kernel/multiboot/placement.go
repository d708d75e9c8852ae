package multiboot

import (
	"encoding/binary"
	"peluboot/kernel"
)

// Placement describes where the link step must put the header for a loader
// to find it.
type Placement struct {
	// Section is the name of the output section holding the header. The
	// linker script must place it first in the image.
	Section string

	// Align is the required alignment of the header offset.
	Align uint32

	// SearchWindow is the number of bytes, counted from the start of the
	// image, that a loader scans for the header.
	SearchWindow uint32
}

// HeaderPlacement is the placement contract of the Multiboot2 protocol.
var HeaderPlacement = Placement{
	Section:      ".multiboot2_header",
	Align:        8,
	SearchWindow: 32768,
}

var (
	// ErrHeaderMisplaced is returned when the header lies outside the
	// search window or is not suitably aligned.
	ErrHeaderMisplaced = &kernel.Error{Module: "multiboot", Message: "header outside the loader search window or misaligned"}

	// ErrHeaderNotFound is returned when an image contains no valid header.
	ErrHeaderNotFound = &kernel.Error{Module: "multiboot", Message: "no valid header in the loader search window"}
)

// Check returns ErrHeaderMisplaced if a header of HeaderLength bytes at
// offset would not be recognized by a loader.
func (p Placement) Check(offset uint32) *kernel.Error {
	if offset%p.Align != 0 || uint64(offset)+uint64(HeaderLength) > uint64(p.SearchWindow) {
		return ErrHeaderMisplaced
	}
	return nil
}

// FindHeader scans image the way a Multiboot2 loader does and returns the
// offset of the first valid header. Only aligned offsets inside the search
// window are probed.
func FindHeader(image []byte) (uint32, *kernel.Error) {
	limit := uint32(len(image))
	if limit > HeaderPlacement.SearchWindow {
		limit = HeaderPlacement.SearchWindow
	}

	for offset := uint32(0); offset+HeaderLength <= limit; offset += HeaderPlacement.Align {
		if binary.LittleEndian.Uint32(image[offset:]) != HeaderMagic {
			continue
		}

		hdr := Header{
			Magic:        HeaderMagic,
			Architecture: binary.LittleEndian.Uint32(image[offset+4:]),
			HeaderLength: binary.LittleEndian.Uint32(image[offset+8:]),
			Checksum:     binary.LittleEndian.Uint32(image[offset+12:]),
		}
		if hdr.Valid() {
			return offset, nil
		}
	}

	return 0, ErrHeaderNotFound
}
