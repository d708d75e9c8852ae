package console

import "unsafe"

const (
	// VgaTextPhysAddr is the physical address of the VGA text mode window.
	VgaTextPhysAddr = uintptr(0xb8000)

	// VgaTextColumns and VgaTextRows describe VGA mode 0x3.
	VgaTextColumns = 80
	VgaTextRows    = 25

	// numColors is the number of EGA colors an attribute nibble can select.
	numColors = 16
)

// VgaTextConsole implements an EGA-compatible text console. Each character
// occupies two bytes in the framebuffer: the ASCII code followed by an
// attribute byte that encodes the foreground (low nibble) and background
// (high nibble) colors. Writes are raw stores with no acknowledgment.
//
// The default settings for the console are:
//   - white text (color 15) on black background (color 0).
//   - space as the clear character
type VgaTextConsole struct {
	width  uint32
	height uint32

	fb []uint16

	defaultFg uint8
	defaultBg uint8
	clearChar uint16
}

// NewVgaTextConsole creates an new vga text console with its framebuffer
// located at fbAddr. On hardware fbAddr is VgaTextPhysAddr; the simulator
// passes the address of its emulated window.
func NewVgaTextConsole(columns, rows uint32, fbAddr uintptr) *VgaTextConsole {
	cons := &VgaTextConsole{}
	cons.Init(columns, rows, fbAddr)
	return cons
}

// Init sets up a console stored in static memory. The boot stage has no
// allocator so it cannot use NewVgaTextConsole.
func (cons *VgaTextConsole) Init(columns, rows uint32, fbAddr uintptr) {
	cons.width = columns
	cons.height = rows
	cons.fb = unsafe.Slice((*uint16)(unsafe.Pointer(fbAddr)), int(columns*rows))
	cons.clearChar = uint16(' ')
	cons.defaultFg = 15
	cons.defaultBg = 0
}

// Dimensions returns the console width and height in characters.
func (cons *VgaTextConsole) Dimensions() (uint32, uint32) {
	return cons.width, cons.height
}

// DefaultColors returns the default foreground and background colors
// used by this console.
func (cons *VgaTextConsole) DefaultColors() (fg uint8, bg uint8) {
	return cons.defaultFg, cons.defaultBg
}

// Fill sets the contents of the specified rectangular region to the requested
// color. Both x and y coordinates are 1-based.
func (cons *VgaTextConsole) Fill(x, y, width, height uint32, fg, bg uint8) {
	var (
		clr                  = attr(fg, bg)<<8 | cons.clearChar
		rowOffset, colOffset uint32
	)

	// clip rectangle
	if x == 0 {
		x = 1
	} else if x >= cons.width {
		x = cons.width
	}

	if y == 0 {
		y = 1
	} else if y >= cons.height {
		y = cons.height
	}

	if x+width-1 > cons.width {
		width = cons.width - x + 1
	}

	if y+height-1 > cons.height {
		height = cons.height - y + 1
	}

	rowOffset = ((y - 1) * cons.width) + (x - 1)
	for ; height > 0; height, rowOffset = height-1, rowOffset+cons.width {
		for colOffset = rowOffset; colOffset < rowOffset+width; colOffset++ {
			cons.fb[colOffset] = clr
		}
	}
}

// Scroll the console contents to the specified direction. The caller
// is responsible for updating (e.g. clear or replace) the contents of
// the region that was scrolled.
func (cons *VgaTextConsole) Scroll(dir ScrollDir, lines uint32) {
	if lines == 0 || lines > cons.height {
		return
	}

	offset := lines * cons.width
	switch dir {
	case ScrollDirUp:
		copy(cons.fb, cons.fb[offset:])
	case ScrollDirDown:
		copy(cons.fb[offset:], cons.fb[:uint32(len(cons.fb))-offset])
	}
}

// Write a char to the specified location. Colors outside the 16 color EGA
// range are replaced by the console defaults. Both x and y coordinates are
// 1-based.
func (cons *VgaTextConsole) Write(ch byte, fg, bg uint8, x, y uint32) {
	if x < 1 || x > cons.width || y < 1 || y > cons.height {
		return
	}

	if fg >= numColors {
		fg = cons.defaultFg
	}
	if bg >= numColors {
		bg = cons.defaultBg
	}

	cons.fb[((y-1)*cons.width)+(x-1)] = attr(fg, bg)<<8 | uint16(ch)
}

// Cell returns the character and attribute byte stored at the specified
// 1-based location.
func (cons *VgaTextConsole) Cell(x, y uint32) (ch byte, attribute uint8) {
	if x < 1 || x > cons.width || y < 1 || y > cons.height {
		return 0, 0
	}

	v := cons.fb[((y-1)*cons.width)+(x-1)]
	return byte(v), uint8(v >> 8)
}

func attr(fg, bg uint8) uint16 {
	return uint16(bg)<<4 | uint16(fg)
}
