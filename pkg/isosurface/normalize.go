// Package isosurface normalizes scalar volumes and extracts triangulated
// level surfaces from them at a table of density thresholds.
package isosurface

import (
	"gonum.org/v1/gonum/floats"

	"dicomvolume/internal/models"
)

// Field is a normalized scalar grid in [0, 1]. It is read-only once built and
// shared between every threshold extracted from the same volume.
type Field struct {
	Data   []float64
	Depth  int
	Height int
	Width  int
}

// index returns the flat offset of grid point (x, y, z)
func (f *Field) index(x, y, z int) int {
	return z*f.Height*f.Width + y*f.Width + x
}

// At returns the field value at grid point (x, y, z)
func (f *Field) At(x, y, z int) float64 {
	return f.Data[f.index(x, y, z)]
}

// Normalize rescales v to (v - min) / (max - min). A volume with a single
// value everywhere yields an all-zero field and degenerate is true.
func Normalize(v *models.Volume) (field *Field, degenerate bool) {
	field = &Field{
		Data:   make([]float64, len(v.Data)),
		Depth:  v.Depth,
		Height: v.Height,
		Width:  v.Width,
	}
	if len(v.Data) == 0 {
		return field, true
	}

	lo, hi := floats.Min(v.Data), floats.Max(v.Data)
	if hi == lo {
		return field, true
	}

	span := hi - lo
	for i, val := range v.Data {
		n := (val - lo) / span
		// Guard against rounding just outside the unit interval.
		if n < 0 {
			n = 0
		} else if n > 1 {
			n = 1
		}
		field.Data[i] = n
	}
	return field, false
}
