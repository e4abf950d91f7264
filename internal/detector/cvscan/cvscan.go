package cvscan

import (
	"image"
	"image/color"
	"image/draw"

	"gocv.io/x/gocv"

	"gpo-autofish/internal/detector"
)

// MatScanner implements detector.Scanner with an OpenCV range mask. It is
// slower than detector.PixelScanner for small regions and mainly serves as
// a cross check when tuning colors.
type MatScanner struct{}

func NewMatScanner() detector.Scanner {
	return MatScanner{}
}

// compact copies frame into a tightly packed RGBA buffer with its origin at
// 0,0 so that the bytes can back a Mat directly.
func compact(frame *image.RGBA) *image.RGBA {
	b := frame.Bounds()
	if b.Min == (image.Point{}) && frame.Stride == b.Dx()*4 {
		return frame
	}
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), frame, b.Min, draw.Src)
	return out
}

// mask returns one byte per pixel, non-zero where the pixel equals target.
func mask(frame *image.RGBA, target color.RGBA) ([]byte, bool) {
	b := frame.Bounds()
	if b.Empty() {
		return nil, false
	}
	img := compact(frame)
	mat, err := gocv.NewMatFromBytes(b.Dy(), b.Dx(), gocv.MatTypeCV8UC4, img.Pix)
	if err != nil {
		return nil, false
	}
	defer mat.Close()

	m := gocv.NewMat()
	defer m.Close()

	lower := gocv.NewScalar(float64(target.R), float64(target.G), float64(target.B), 0)
	upper := gocv.NewScalar(float64(target.R), float64(target.G), float64(target.B), 255)
	gocv.InRangeWithScalar(mat, lower, upper, &m)

	if gocv.CountNonZero(m) == 0 {
		return nil, false
	}
	return m.ToBytes(), true
}

func (MatScanner) FindFirstMatch(frame *image.RGBA, target color.RGBA, dir detector.Direction) (image.Point, bool) {
	bits, ok := mask(frame, target)
	if !ok {
		return image.Point{}, false
	}
	b := frame.Bounds()
	w := b.Dx()
	for y := 0; y < b.Dy(); y++ {
		row := bits[y*w : (y+1)*w]
		if dir == detector.RightToLeft {
			for x := w - 1; x >= 0; x-- {
				if row[x] != 0 {
					return image.Pt(b.Min.X+x, b.Min.Y+y), true
				}
			}
			continue
		}
		for x := 0; x < w; x++ {
			if row[x] != 0 {
				return image.Pt(b.Min.X+x, b.Min.Y+y), true
			}
		}
	}
	return image.Point{}, false
}

func (s MatScanner) FindBoundaryRow(frame *image.RGBA, target color.RGBA, fromTop bool) (int, bool) {
	marks := s.MarkRows(frame, target)
	minY := frame.Bounds().Min.Y
	if fromTop {
		for i, m := range marks {
			if m {
				return minY + i, true
			}
		}
		return 0, false
	}
	for i := len(marks) - 1; i >= 0; i-- {
		if marks[i] {
			return minY + i, true
		}
	}
	return 0, false
}

func (MatScanner) MarkRows(frame *image.RGBA, target color.RGBA) []bool {
	b := frame.Bounds()
	if b.Empty() {
		return nil
	}
	marks := make([]bool, b.Dy())
	bits, ok := mask(frame, target)
	if !ok {
		return marks
	}
	w := b.Dx()
	for y := range marks {
		for _, v := range bits[y*w : (y+1)*w] {
			if v != 0 {
				marks[y] = true
				break
			}
		}
	}
	return marks
}
