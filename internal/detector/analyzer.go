package detector

import (
	"errors"
	"image"
	"image/color"
)

var (
	ErrNoIndicator = errors.New("indicator not visible")
	ErrNoBand      = errors.New("dark band not found")
	ErrNoMarker    = errors.New("reference marker not found")
	ErrNoSection   = errors.New("no dark section found")
)

// Palette holds the three fixed colors of the fishing bar.
type Palette struct {
	Indicator color.RGBA // bright frame pixels that bound the bar horizontally
	Dark      color.RGBA // the bar background and the moving fish indicator
	Marker    color.RGBA // white reference marker the fish has to be held on
}

// Measurement is one cycle's reading of the bar, in frame coordinates.
type Measurement struct {
	Area         image.Rectangle
	MarkerTop    int
	MarkerHeight int
	MaxGap       int
	Sections     []Section
	Target       Section
}

func (m Measurement) TargetY() int   { return m.MarkerTop }
func (m Measurement) MeasuredY() int { return m.Target.Middle }
func (m Measurement) Height() int    { return m.Area.Dy() }

type Analyzer struct {
	scanner Scanner
	palette Palette
}

func NewAnalyzer(scanner Scanner, palette Palette) *Analyzer {
	return &Analyzer{scanner: scanner, palette: palette}
}

// Analyze narrows the frame down to the measurement rectangle and finds the
// marker and the largest dark section inside it. ErrNoIndicator means the
// bar is not on screen; the other errors mean it is, but this frame could
// not be measured.
func (a *Analyzer) Analyze(frame *image.RGBA) (Measurement, error) {
	var m Measurement
	b := frame.Bounds()
	s := a.scanner

	first, ok := s.FindFirstMatch(frame, a.palette.Indicator, LeftToRight)
	if !ok {
		return m, ErrNoIndicator
	}
	row := frame.SubImage(image.Rect(b.Min.X, first.Y, b.Max.X, first.Y+1)).(*image.RGBA)
	last, ok := s.FindFirstMatch(row, a.palette.Indicator, RightToLeft)
	if !ok {
		return m, ErrNoIndicator
	}

	band := frame.SubImage(image.Rect(first.X, b.Min.Y, last.X+1, b.Max.Y)).(*image.RGBA)
	top, okTop := s.FindBoundaryRow(band, a.palette.Dark, true)
	bottom, okBottom := s.FindBoundaryRow(band, a.palette.Dark, false)
	if !okTop || !okBottom {
		return m, ErrNoBand
	}
	m.Area = image.Rect(first.X, top, last.X+1, bottom+1)
	area := frame.SubImage(m.Area).(*image.RGBA)

	markerTop, okTop := s.FindBoundaryRow(area, a.palette.Marker, true)
	markerBottom, okBottom := s.FindBoundaryRow(area, a.palette.Marker, false)
	if !okTop || !okBottom {
		return m, ErrNoMarker
	}
	m.MarkerTop = markerTop
	m.MarkerHeight = markerBottom - markerTop + 1
	m.MaxGap = 2 * m.MarkerHeight

	m.Sections = ExtractSections(s.MarkRows(area, a.palette.Dark), m.Area.Min.Y, m.MaxGap)
	target, ok := Largest(m.Sections)
	if !ok {
		return m, ErrNoSection
	}
	m.Target = target
	return m, nil
}
