package detector

import (
	"encoding/binary"
	"image"
	"image/color"
)

type Direction int

const (
	LeftToRight Direction = iota
	RightToLeft
)

// Scanner locates pixels of an exact RGB value in a frame. Alpha is ignored
// and there is no tolerance: the game draws its bar with a fixed palette.
// All coordinates are in the frame's own coordinate space, so sub-images
// report positions of their parent.
type Scanner interface {
	// FindFirstMatch scans rows top to bottom and, within a row, in dir.
	FindFirstMatch(frame *image.RGBA, target color.RGBA, dir Direction) (image.Point, bool)
	// FindBoundaryRow returns the first row, counted from the top or the
	// bottom edge, that holds at least one matching pixel.
	FindBoundaryRow(frame *image.RGBA, target color.RGBA, fromTop bool) (int, bool)
	// MarkRows reports for every row whether it holds a matching pixel.
	MarkRows(frame *image.RGBA, target color.RGBA) []bool
}

// PixelScanner compares whole rows as packed little-endian words.
type PixelScanner struct{}

func NewPixelScanner() Scanner {
	return PixelScanner{}
}

const rgbMask uint32 = 0x00FFFFFF

func packRGB(c color.RGBA) uint32 {
	return uint32(c.R) | uint32(c.G)<<8 | uint32(c.B)<<16
}

func rowPix(frame *image.RGBA, y int) []byte {
	start := frame.PixOffset(frame.Rect.Min.X, y)
	return frame.Pix[start : start+frame.Rect.Dx()*4]
}

// indexIn returns the pixel index of the first match in row, or -1.
func indexIn(row []byte, key uint32, dir Direction) int {
	n := len(row) / 4
	if dir == RightToLeft {
		for i := n - 1; i >= 0; i-- {
			if binary.LittleEndian.Uint32(row[i*4:])&rgbMask == key {
				return i
			}
		}
		return -1
	}
	for i := 0; i < n; i++ {
		if binary.LittleEndian.Uint32(row[i*4:])&rgbMask == key {
			return i
		}
	}
	return -1
}

func (PixelScanner) FindFirstMatch(frame *image.RGBA, target color.RGBA, dir Direction) (image.Point, bool) {
	b := frame.Rect
	if b.Empty() {
		return image.Point{}, false
	}
	key := packRGB(target)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		if i := indexIn(rowPix(frame, y), key, dir); i >= 0 {
			return image.Pt(b.Min.X+i, y), true
		}
	}
	return image.Point{}, false
}

func (PixelScanner) FindBoundaryRow(frame *image.RGBA, target color.RGBA, fromTop bool) (int, bool) {
	b := frame.Rect
	if b.Empty() {
		return 0, false
	}
	key := packRGB(target)
	if fromTop {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			if indexIn(rowPix(frame, y), key, LeftToRight) >= 0 {
				return y, true
			}
		}
		return 0, false
	}
	for y := b.Max.Y - 1; y >= b.Min.Y; y-- {
		if indexIn(rowPix(frame, y), key, LeftToRight) >= 0 {
			return y, true
		}
	}
	return 0, false
}

func (PixelScanner) MarkRows(frame *image.RGBA, target color.RGBA) []bool {
	b := frame.Rect
	if b.Empty() {
		return nil
	}
	key := packRGB(target)
	marks := make([]bool, b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		marks[y-b.Min.Y] = indexIn(rowPix(frame, y), key, LeftToRight) >= 0
	}
	return marks
}
