// Package multiboot implements the kernel side of the Multiboot2 boot
// protocol: the header a compliant loader searches for in the kernel image
// and the validation of the registers the loader hands over at entry.
package multiboot

import "encoding/binary"

const (
	// HeaderMagic identifies a Multiboot2 header.
	HeaderMagic = uint32(0xE85250D6)

	// ArchI386 requests 32-bit protected mode on entry.
	ArchI386 = uint32(0)

	// HeaderLength is the size of the header including the end tag.
	HeaderLength = uint32(24)

	// BootChecksum is the checksum of a header requesting ArchI386.
	BootChecksum = uint32(-(int64(HeaderMagic) + int64(ArchI386) + int64(HeaderLength)) & 0xffffffff)

	endTagType  = uint16(0)
	endTagFlags = uint16(0)
	endTagSize  = uint32(8)
)

// Header is the Multiboot2 header. It consists of the fixed fields followed
// by the terminating end tag; the boot stage requests no optional tags.
type Header struct {
	Magic        uint32
	Architecture uint32
	HeaderLength uint32
	Checksum     uint32

	EndTagType  uint16
	EndTagFlags uint16
	EndTagSize  uint32
}

// BootHeader is the header embedded in the kernel image. It is a constant
// composite literal so the linker emits it as initialized data.
var BootHeader = Header{
	Magic:        HeaderMagic,
	Architecture: ArchI386,
	HeaderLength: HeaderLength,
	Checksum:     BootChecksum,
	EndTagType:   endTagType,
	EndTagFlags:  endTagFlags,
	EndTagSize:   endTagSize,
}

// NewHeader returns a header for the requested architecture with a valid
// checksum.
func NewHeader(arch uint32) Header {
	return Header{
		Magic:        HeaderMagic,
		Architecture: arch,
		HeaderLength: HeaderLength,
		Checksum:     checksum(HeaderMagic, arch, HeaderLength),
		EndTagType:   endTagType,
		EndTagFlags:  endTagFlags,
		EndTagSize:   endTagSize,
	}
}

// checksum returns the value that makes the sum of the fixed fields
// wrap to zero.
func checksum(magic, arch, length uint32) uint32 {
	return -(magic + arch + length)
}

// Valid returns true if the header carries the magic value, a matching
// length and a checksum for which the fixed fields sum to zero.
func (h *Header) Valid() bool {
	return h.Magic == HeaderMagic &&
		h.HeaderLength == HeaderLength &&
		h.Magic+h.Architecture+h.HeaderLength+h.Checksum == 0
}

// MarshalBinary returns the little-endian encoding of the header as it must
// appear in the kernel image.
func (h *Header) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderLength)
	binary.LittleEndian.PutUint32(buf[0:], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:], h.Architecture)
	binary.LittleEndian.PutUint32(buf[8:], h.HeaderLength)
	binary.LittleEndian.PutUint32(buf[12:], h.Checksum)
	binary.LittleEndian.PutUint16(buf[16:], h.EndTagType)
	binary.LittleEndian.PutUint16(buf[18:], h.EndTagFlags)
	binary.LittleEndian.PutUint32(buf[20:], h.EndTagSize)
	return buf, nil
}
