package game

import (
	"errors"
	"fmt"
	"image"
	"image/draw"

	"github.com/go-vgo/robotgo"
	"github.com/kbinani/screenshot"
	"go.uber.org/zap"
)

var ErrEmptyRegion = errors.New("capture region is empty")

// Game is the desktop side of the bot: the game window and the screen.
type Game struct {
	Title string
	log   *zap.Logger
}

func NewGame(title string, log *zap.Logger) *Game {
	return &Game{Title: title, log: log}
}

// Initialize tunes robotgo's built-in delays and brings the game window to
// the front when a title is configured. A missing window is not fatal.
func (g *Game) Initialize() {
	robotgo.MouseSleep = 0
	robotgo.KeySleep = 0

	if g.Title == "" {
		return
	}
	if err := activateWindow(g.Title); err != nil {
		g.log.Warn("Could not activate game window.", zap.String("title", g.Title), zap.Error(err))
		return
	}
	g.log.Info("Game window activated.", zap.String("title", g.Title))
}

// Sampler captures a rectangle of the screen. The returned frame's bounds
// start at (0,0) and have the size of rect.
type Sampler interface {
	Capture(rect image.Rectangle) (*image.RGBA, error)
}

// ScreenshotSampler captures through kbinani/screenshot.
type ScreenshotSampler struct{}

func (ScreenshotSampler) Capture(rect image.Rectangle) (*image.RGBA, error) {
	if rect.Empty() {
		return nil, ErrEmptyRegion
	}
	img, err := screenshot.CaptureRect(rect)
	if err != nil {
		return nil, fmt.Errorf("capture %v: %w", rect, err)
	}
	return rebase(img), nil
}

// RobotgoSampler captures through robotgo's bitmap API.
type RobotgoSampler struct{}

func (RobotgoSampler) Capture(rect image.Rectangle) (*image.RGBA, error) {
	if rect.Empty() {
		return nil, ErrEmptyRegion
	}
	bitmap := robotgo.CaptureScreen(rect.Min.X, rect.Min.Y, rect.Dx(), rect.Dy())
	if bitmap == nil {
		return nil, fmt.Errorf("capture %v: robotgo returned no bitmap", rect)
	}
	defer robotgo.FreeBitmap(bitmap)

	img := robotgo.ToImage(bitmap)
	if rgba, ok := img.(*image.RGBA); ok {
		return rebase(rgba), nil
	}
	out := image.NewRGBA(image.Rect(0, 0, img.Bounds().Dx(), img.Bounds().Dy()))
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Src)
	return out, nil
}

// NewSampler picks the capture backend by its configured name.
func NewSampler(backend string) (Sampler, error) {
	switch backend {
	case "screenshot", "":
		return ScreenshotSampler{}, nil
	case "robotgo":
		return RobotgoSampler{}, nil
	}
	return nil, fmt.Errorf("unknown capture backend %q", backend)
}

func rebase(img *image.RGBA) *image.RGBA {
	if img.Rect.Min == (image.Point{}) {
		return img
	}
	out := *img
	out.Rect = image.Rect(0, 0, img.Rect.Dx(), img.Rect.Dy())
	return &out
}
