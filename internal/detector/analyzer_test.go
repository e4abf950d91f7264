package detector

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeBar(t *testing.T) {
	a := NewAnalyzer(NewPixelScanner(), testPalette)

	m, err := a.Analyze(barFrame(30, 50))
	require.NoError(t, err)

	assert.Equal(t, image.Rect(10, 10, 30, 90), m.Area)
	assert.Equal(t, 80, m.Height())
	assert.Equal(t, 30, m.TargetY())
	assert.Equal(t, 4, m.MarkerHeight)
	assert.Equal(t, 8, m.MaxGap)
	assert.Len(t, m.Sections, 3)
	assert.Equal(t, Section{Start: 50, End: 59, Middle: 54, Size: 10}, m.Target)
	assert.Equal(t, 54, m.MeasuredY())
}

func TestAnalyzeNoIndicator(t *testing.T) {
	a := NewAnalyzer(NewPixelScanner(), testPalette)
	_, err := a.Analyze(newFrame(40, 100))
	assert.ErrorIs(t, err, ErrNoIndicator)
}

func TestAnalyzeMissingBand(t *testing.T) {
	frame := newFrame(40, 100)
	fill(frame, image.Rect(10, 5, 30, 6), indicator)
	// dark pixels outside the indicator's columns do not count
	fill(frame, image.Rect(0, 40, 5, 60), dark)

	_, err := NewAnalyzer(NewPixelScanner(), testPalette).Analyze(frame)
	assert.ErrorIs(t, err, ErrNoBand)
}

func TestAnalyzeMissingMarker(t *testing.T) {
	frame := barFrame(30, 50)
	fill(frame, image.Rect(12, 30, 28, 34), background)

	_, err := NewAnalyzer(NewPixelScanner(), testPalette).Analyze(frame)
	assert.ErrorIs(t, err, ErrNoMarker)
}

func TestAnalyzeMergesSmallRenderingGaps(t *testing.T) {
	frame := barFrame(30, 50)
	// a two row hole in the fish stays below max gap (8)
	fill(frame, image.Rect(14, 54, 26, 56), background)

	m, err := NewAnalyzer(NewPixelScanner(), testPalette).Analyze(frame)
	require.NoError(t, err)
	assert.Equal(t, 50, m.Target.Start)
	assert.Equal(t, 59, m.Target.End)
}
