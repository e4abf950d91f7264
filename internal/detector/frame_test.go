package detector

import (
	"image"
	"image/color"
	"image/draw"
)

var (
	background = color.RGBA{R: 60, G: 90, B: 120, A: 255}
	indicator  = color.RGBA{R: 85, G: 170, B: 255, A: 255}
	dark       = color.RGBA{R: 25, G: 25, B: 25, A: 255}
	marker     = color.RGBA{R: 255, G: 255, B: 255, A: 255}

	testPalette = Palette{Indicator: indicator, Dark: dark, Marker: marker}
)

func newFrame(w, h int) *image.RGBA {
	frame := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(frame, frame.Bounds(), &image.Uniform{C: background}, image.Point{}, draw.Src)
	return frame
}

func fill(frame *image.RGBA, r image.Rectangle, c color.RGBA) {
	draw.Draw(frame, r, &image.Uniform{C: c}, image.Point{}, draw.Src)
}

// barFrame draws a fishing bar: an indicator line on row 5 spanning x 10..29,
// one-pixel dark borders on rows 10 and 89, a four row marker from markerTop
// and a ten row dark fish starting at fishTop.
func barFrame(markerTop, fishTop int) *image.RGBA {
	frame := newFrame(40, 100)
	fill(frame, image.Rect(10, 5, 30, 6), indicator)
	fill(frame, image.Rect(10, 10, 30, 11), dark)
	fill(frame, image.Rect(10, 89, 30, 90), dark)
	fill(frame, image.Rect(12, markerTop, 28, markerTop+4), marker)
	fill(frame, image.Rect(14, fishTop, 26, fishTop+10), dark)
	return frame
}
