package main

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"os"
	"path/filepath"
	"peluboot/kernel"
	"peluboot/kernel/multiboot"
	"strings"
	"testing"
)

// writeTestImage creates a minimal 32-bit ELF file with an empty header
// section at sectionOffset.
func writeTestImage(t *testing.T, sectionOffset uint32) string {
	t.Helper()

	const sectionSize = 32
	shstrtab := []byte("\x00" + multiboot.HeaderPlacement.Section + "\x00.shstrtab\x00")
	shstrtabOffset := sectionOffset + sectionSize
	shOffset := (shstrtabOffset + uint32(len(shstrtab)) + 3) &^ 3

	hdr := elf.Header32{
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(elf.EM_386),
		Version:   uint32(elf.EV_CURRENT),
		Shoff:     shOffset,
		Ehsize:    52,
		Phentsize: 32,
		Shentsize: 40,
		Shnum:     3,
		Shstrndx:  2,
	}
	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS32)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	sections := []elf.Section32{
		{},
		{Name: 1, Type: uint32(elf.SHT_PROGBITS), Flags: uint32(elf.SHF_ALLOC), Off: sectionOffset, Size: sectionSize, Addralign: 8},
		{Name: uint32(len(multiboot.HeaderPlacement.Section) + 2), Type: uint32(elf.SHT_STRTAB), Off: shstrtabOffset, Size: uint32(len(shstrtab)), Addralign: 1},
	}

	image := make([]byte, shOffset)
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, hdr)
	copy(image, buf.Bytes())
	copy(image[shstrtabOffset:], shstrtab)

	buf.Reset()
	buf.Write(image)
	for _, section := range sections {
		binary.Write(&buf, binary.LittleEndian, section)
	}

	imgFile := filepath.Join(t.TempDir(), "kernel.elf")
	if err := os.WriteFile(imgFile, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return imgFile
}

func TestWriteAndCheckHeader(t *testing.T) {
	imgFile := writeTestImage(t, 0x1000)

	if _, err := checkHeader(imgFile); err == nil {
		t.Fatal("expected check to fail before the header is written")
	}

	offset, size, err := elfHeaderSection(imgFile)
	if err != nil {
		t.Fatal(err)
	}
	if offset != 0x1000 || size != 32 {
		t.Fatalf("expected section at 0x1000 with size 32; got 0x%x with size %d", offset, size)
	}

	if err := writeHeader(imgFile); err != nil {
		t.Fatal(err)
	}

	found, err := checkHeader(imgFile)
	if err != nil {
		t.Fatal(err)
	}

	if found != 0x1000 {
		t.Fatalf("expected header at offset 0x1000; got 0x%x", found)
	}
}

func TestWriteHeaderMisplaced(t *testing.T) {
	specs := []uint32{
		0x1004,
		0x8000,
		0x10000,
	}

	for specIndex, sectionOffset := range specs {
		imgFile := writeTestImage(t, sectionOffset)
		err := writeHeader(imgFile)
		if err == nil {
			t.Errorf("[spec %d] expected writing a header at offset 0x%x to fail", specIndex, sectionOffset)
			continue
		}

		if !strings.Contains(err.Error(), multiboot.ErrHeaderMisplaced.Message) {
			t.Errorf("[spec %d] expected error to contain %q; got %q", specIndex, multiboot.ErrHeaderMisplaced.Message, err.Error())
		}
	}
}

func TestCheckPlacement(t *testing.T) {
	specs := []struct {
		offset uint64
		expErr *kernel.Error
	}{
		{0, nil},
		{0x1000, nil},
		{0x7fe8, nil},
		{0x1004, multiboot.ErrHeaderMisplaced},
		{0x7ff0, multiboot.ErrHeaderMisplaced},
		// truncating to 32 bits would yield 0x1000
		{0x100001000, multiboot.ErrHeaderMisplaced},
	}

	for specIndex, spec := range specs {
		if err := checkPlacement(spec.offset); err != spec.expErr {
			t.Errorf("[spec %d] expected checkPlacement(0x%x) to return %v; got %v", specIndex, spec.offset, spec.expErr, err)
		}
	}
}

func TestWriteHeaderMissingSection(t *testing.T) {
	imgFile := filepath.Join(t.TempDir(), "kernel.elf")
	if err := os.WriteFile(imgFile, []byte("not an elf file"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := writeHeader(imgFile); err == nil {
		t.Fatal("expected an error for a non-ELF image")
	}
}

func TestEmitHeader(t *testing.T) {
	outFile := filepath.Join(t.TempDir(), "header.bin")
	if err := emitHeader(outFile); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(outFile)
	if err != nil {
		t.Fatal(err)
	}

	if offset, kerr := multiboot.FindHeader(data); kerr != nil || offset != 0 {
		t.Fatalf("expected emitted header to be found at offset 0; got %d, %v", offset, kerr)
	}
}
