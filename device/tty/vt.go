// Package tty implements the line-oriented terminal that turns the boot
// stage's text output into console cell writes.
package tty

import (
	"io"
	"peluboot/device/video/console"
	"peluboot/kernel/sync"
)

// replacementChar is displayed for bytes outside the printable ASCII range.
const replacementChar = 0xFE

// VT implements a terminal without scrollback on top of a console device. The
// terminal interprets the following special characters:
//   - \r (carriage-return)
//   - \n (line-feed)
//   - \t (tab; advances the cursor by tabWidth columns)
//   - \x00 (ignored)
//
// Every other byte outside the printable ASCII range is rendered as a filled
// box. When the cursor moves past the last row the console is scrolled up by
// one line.
//
// The terminal is guarded by a spinlock. The boot stage only ever runs a
// single context, but the terminal outlives it.
type VT struct {
	lock sync.Spinlock

	cons console.Device

	width, height uint32
	tabWidth      uint32
	fg, bg        uint8
	cursorX       uint32
	cursorY       uint32
}

// NewVT creates a new terminal. It must be attached to a console before it
// can be written to.
func NewVT(tabWidth uint32) *VT {
	t := &VT{}
	t.Init(tabWidth)
	return t
}

// Init resets a terminal stored in static memory.
func (t *VT) Init(tabWidth uint32) {
	t.tabWidth = tabWidth
	t.cursorX, t.cursorY = 1, 1
}

// AttachTo connects the terminal to a console instance and clears the
// console.
func (t *VT) AttachTo(cons console.Device) {
	if cons == nil {
		return
	}

	t.lock.Acquire()
	t.cons = cons
	t.width, t.height = cons.Dimensions()
	t.fg, t.bg = cons.DefaultColors()
	t.cursorX, t.cursorY = 1, 1
	cons.Fill(1, 1, t.width, t.height, t.fg, t.bg)
	t.lock.Release()
}

// CursorPosition returns the current cursor position.
func (t *VT) CursorPosition() (uint32, uint32) {
	return t.cursorX, t.cursorY
}

// Write implements io.Writer.
func (t *VT) Write(data []byte) (int, error) {
	t.lock.Acquire()
	defer t.lock.Release()

	if t.cons == nil {
		return 0, io.ErrClosedPipe
	}

	for _, b := range data {
		t.writeByte(b)
	}

	return len(data), nil
}

func (t *VT) writeByte(b byte) {
	switch {
	case b == 0:
	case b == '\r':
		t.cursorX = 1
	case b == '\n':
		t.lf()
	case b == '\t':
		t.cursorX += t.tabWidth
		if t.cursorX > t.width {
			t.lf()
		}
	case b < 0x20 || b > 0x7e:
		t.put(replacementChar)
	default:
		t.put(b)
	}
}

// put writes a character at the cursor position and advances the cursor,
// wrapping to the next line at the right edge.
func (t *VT) put(b byte) {
	if t.cursorY > t.height {
		t.scroll()
	}

	t.cons.Write(b, t.fg, t.bg, t.cursorX, t.cursorY)
	t.cursorX++
	if t.cursorX > t.width {
		t.lf()
	}
}

// lf moves the cursor to the start of the next line. The console is scrolled
// lazily so a trailing newline on the last row does not blank it; the cursor
// never moves more than one row past the bottom.
func (t *VT) lf() {
	if t.cursorY > t.height {
		t.scroll()
	}

	t.cursorX = 1
	t.cursorY++
}

func (t *VT) scroll() {
	t.cons.Scroll(console.ScrollDirUp, 1)
	t.cons.Fill(1, t.height, t.width, 1, t.fg, t.bg)
	t.cursorY = t.height
}
