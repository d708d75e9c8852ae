package main

import (
	"debug/elf"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"peluboot/kernel"
	"peluboot/kernel/multiboot"
)

func exit(err error) {
	fmt.Fprintf(os.Stderr, "[mbheader] error: %s\n", err.Error())
	os.Exit(1)
}

// elfHeaderSection returns the file offset and size of the section that
// holds the Multiboot2 header.
func elfHeaderSection(imgFile string) (uint64, uint64, error) {
	f, err := elf.Open(imgFile)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	section := f.Section(multiboot.HeaderPlacement.Section)
	if section == nil {
		return 0, 0, fmt.Errorf("%s: missing %s section", imgFile, multiboot.HeaderPlacement.Section)
	}

	return section.Offset, section.Size, nil
}

// checkPlacement applies the loader placement contract to a file offset.
// Offsets beyond 4 GiB saturate instead of wrapping so they are rejected.
func checkPlacement(offset uint64) *kernel.Error {
	return multiboot.HeaderPlacement.Check(uint32(min(offset, math.MaxUint32)))
}

// writeHeader stores the encoded boot header at the start of the header
// section of imgFile.
func writeHeader(imgFile string) error {
	offset, size, err := elfHeaderSection(imgFile)
	if err != nil {
		return err
	}

	if size < uint64(multiboot.HeaderLength) {
		return fmt.Errorf("%s: section %s is %d bytes; need %d", imgFile, multiboot.HeaderPlacement.Section, size, multiboot.HeaderLength)
	}

	if kerr := checkPlacement(offset); kerr != nil {
		return fmt.Errorf("%s: section %s at file offset %d: %s", imgFile, multiboot.HeaderPlacement.Section, offset, kerr.Message)
	}

	data, err := multiboot.BootHeader.MarshalBinary()
	if err != nil {
		return err
	}

	f, err := os.OpenFile(imgFile, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.WriteAt(data, int64(offset))
	return err
}

// checkHeader scans imgFile the way a Multiboot2 loader does and returns the
// offset of the header it would use.
func checkHeader(imgFile string) (uint32, error) {
	f, err := os.Open(imgFile)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	window := make([]byte, multiboot.HeaderPlacement.SearchWindow)
	n, err := io.ReadFull(f, window)
	if err != nil && err != io.ErrUnexpectedEOF {
		return 0, err
	}

	offset, kerr := multiboot.FindHeader(window[:n])
	if kerr != nil {
		return 0, fmt.Errorf("%s: %s", imgFile, kerr.Message)
	}

	return offset, nil
}

// emitHeader writes the raw header bytes to outFile so the link step can
// include them with .incbin or objcopy.
func emitHeader(outFile string) error {
	data, err := multiboot.BootHeader.MarshalBinary()
	if err != nil {
		return err
	}

	return os.WriteFile(outFile, data, 0o644)
}

func main() {
	flag.Parse()

	if len(flag.Args()) != 2 {
		exit(errors.New("usage: mbheader emit|write|check FILE"))
	}

	var err error
	switch cmd, file := flag.Arg(0), flag.Arg(1); cmd {
	case "emit":
		err = emitHeader(file)
	case "write":
		err = writeHeader(file)
	case "check":
		var offset uint32
		if offset, err = checkHeader(file); err == nil {
			fmt.Printf("multiboot2 header found at offset %d\n", offset)
		}
	default:
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		exit(err)
	}
}
