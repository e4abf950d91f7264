package utils

import "image"

func ToGlobalPoint(offset image.Point, local image.Point) image.Point {
	return image.Point{X: offset.X + local.X, Y: offset.Y + local.Y}
}

// NormalizeRect builds a rectangle from two arbitrary corners.
func NormalizeRect(a image.Point, b image.Point) image.Rectangle {
	return image.Rect(a.X, a.Y, b.X, b.Y).Canon()
}
