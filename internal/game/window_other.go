//go:build !windows

package game

import "github.com/go-vgo/robotgo"

func activateWindow(title string) error {
	return robotgo.ActiveName(title)
}
