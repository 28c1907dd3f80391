package isosurface

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// Level binds a threshold to the tissue class and display color it stands for.
type Level struct {
	Value float64
	Label string
	Color color.RGBA
}

// DefaultLevels is the soft tissue / dense tissue / bone table.
func DefaultLevels() []Level {
	return []Level{
		{Value: 0.3, Label: "soft tissue", Color: color.RGBA{R: 255, A: 255}},
		{Value: 0.5, Label: "dense tissue", Color: color.RGBA{G: 255, A: 255}},
		{Value: 0.7, Label: "bone", Color: color.RGBA{B: 255, A: 255}},
	}
}

// NewLevel builds a level from a "#RRGGBB" color string.
func NewLevel(value float64, label, hex string) (Level, error) {
	if value <= 0 || value >= 1 {
		return Level{}, fmt.Errorf("threshold %v outside (0, 1)", value)
	}
	c, err := ParseColor(hex)
	if err != nil {
		return Level{}, fmt.Errorf("level %q: %w", label, err)
	}
	return Level{Value: value, Label: label, Color: c}, nil
}

// ParseColor parses "#RRGGBB" (the leading # is optional) into an opaque color.
func ParseColor(hex string) (color.RGBA, error) {
	s := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(s) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid color %q: want #RRGGBB", hex)
	}
	n, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", hex, err)
	}
	return color.RGBA{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n), A: 255}, nil
}

// FormatThreshold renders a threshold the way it appears in emission paths.
func FormatThreshold(t float64) string {
	return strconv.FormatFloat(t, 'f', -1, 64)
}
