package game

import (
	"fmt"

	"github.com/go-vgo/robotgo"
)

// RobotDriver injects mouse and keyboard input through robotgo.
type RobotDriver struct{}

func (RobotDriver) Move(x, y int) error {
	robotgo.Move(x, y)
	return nil
}

func (RobotDriver) Toggle(button string, down bool) error {
	var err error
	if down {
		err = robotgo.Toggle(button)
	} else {
		err = robotgo.Toggle(button, "up")
	}
	if err != nil {
		return fmt.Errorf("toggle %s: %w", button, err)
	}
	return nil
}

func (RobotDriver) KeyTap(key string) error {
	if err := robotgo.KeyTap(key); err != nil {
		return fmt.Errorf("tap %s: %w", key, err)
	}
	return nil
}

func (RobotDriver) Type(text string) error {
	robotgo.TypeStr(text)
	return nil
}

// Location returns the current cursor position.
func Location() (int, int) {
	return robotgo.Location()
}

// ReleaseAllKeys lifts the keys and buttons the bot may have left pressed.
func ReleaseAllKeys() {
	robotgo.Toggle("left", "up")
	robotgo.Toggle("right", "up")
	for _, key := range []string{"shift", "ctrl", "alt"} {
		robotgo.KeyToggle(key, "up")
	}
}
