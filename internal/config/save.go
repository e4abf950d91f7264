package config

import (
	"fmt"
	"strconv"

	"github.com/spf13/viper"
)

// SaveRegion stores the capture region in v and writes the settings file.
func SaveRegion(v *viper.Viper, path string, r RegionConfig) error {
	v.Set("region.x", r.X)
	v.Set("region.y", r.Y)
	v.Set("region.width", r.Width)
	v.Set("region.height", r.Height)
	return write(v, path)
}

// SavePoints stores the calibrated purchase points in v and writes the
// settings file. points[0] is point 1.
func SavePoints(v *viper.Viper, path string, points []Point) error {
	raw := make(map[string]any, len(points))
	for i, p := range points {
		raw[strconv.Itoa(i+1)] = map[string]any{"x": p.X, "y": p.Y}
	}
	v.Set("purchase.points", raw)
	return write(v, path)
}

func write(v *viper.Viper, path string) error {
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
