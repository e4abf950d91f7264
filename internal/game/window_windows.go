//go:build windows

package game

import (
	"errors"

	"github.com/go-vgo/robotgo"
	"github.com/tailscale/win"
)

func activateWindow(title string) error {
	hwnd := robotgo.FindWindow(title)
	if hwnd == 0 {
		return errors.New("window not found")
	}
	if !win.SetForegroundWindow(hwnd) {
		return errors.New("SetForegroundWindow failed")
	}
	return nil
}
