package main

import (
	"fmt"
	"image/color"
	"io"
	"peluboot/device/video/console"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
)

// egaPalette maps the 16 attribute colors to RGB.
var egaPalette = [16]color.RGBA{
	{0x00, 0x00, 0x00, 0xff}, {0x00, 0x00, 0xaa, 0xff}, {0x00, 0xaa, 0x00, 0xff}, {0x00, 0xaa, 0xaa, 0xff},
	{0xaa, 0x00, 0x00, 0xff}, {0xaa, 0x00, 0xaa, 0xff}, {0xaa, 0x55, 0x00, 0xff}, {0xaa, 0xaa, 0xaa, 0xff},
	{0x55, 0x55, 0x55, 0xff}, {0x55, 0x55, 0xff, 0xff}, {0x55, 0xff, 0x55, 0xff}, {0x55, 0xff, 0xff, 0xff},
	{0xff, 0x55, 0x55, 0xff}, {0xff, 0x55, 0xff, 0xff}, {0xff, 0xff, 0x55, 0xff}, {0xff, 0xff, 0xff, 0xff},
}

const (
	glyphWidth  = 7
	glyphHeight = 13
)

// renderScreen writes the console rows inside a frame. If maxWidth is
// positive, lines are truncated to fit.
func renderScreen(w io.Writer, rows []string, columns, maxWidth int) {
	border := "+" + strings.Repeat("-", columns) + "+"
	lines := make([]string, 0, len(rows)+2)
	lines = append(lines, border)
	for _, row := range rows {
		lines = append(lines, fmt.Sprintf("|%-*s|", columns, printable(row)))
	}
	lines = append(lines, border)

	for _, line := range lines {
		if maxWidth > 0 {
			line = ansi.Truncate(line, maxWidth, "")
		}
		fmt.Fprintln(w, line)
	}
}

// printable replaces the console box character and other non-ASCII bytes so
// the output stays valid UTF-8.
func printable(row string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r > 0x7e {
			return '#'
		}
		return r
	}, strings.ToValidUTF8(row, "#"))
}

// screenshot renders the console framebuffer into a PNG image using the
// cell colors.
func screenshot(path string, cons *console.VgaTextConsole) error {
	columns, rows := cons.Dimensions()

	dc := gg.NewContext(int(columns)*glyphWidth, int(rows)*glyphHeight)
	dc.SetColor(egaPalette[0])
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)

	for y := uint32(1); y <= rows; y++ {
		for x := uint32(1); x <= columns; x++ {
			ch, attr := cons.Cell(x, y)
			left := float64((x - 1) * glyphWidth)
			top := float64((y - 1) * glyphHeight)

			if bg := attr >> 4; bg != 0 {
				dc.SetColor(egaPalette[bg])
				dc.DrawRectangle(left, top, glyphWidth, glyphHeight)
				dc.Fill()
			}

			if ch == ' ' || ch == 0 {
				continue
			}

			glyph := string(rune(ch))
			if ch > 0x7e {
				glyph = "#"
			}
			dc.SetColor(egaPalette[attr&0xf])
			dc.DrawString(glyph, left, top+float64(basicfont.Face7x13.Ascent))
		}
	}

	return dc.SavePNG(path)
}
