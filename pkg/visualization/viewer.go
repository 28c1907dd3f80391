// Package visualization renders planes of reconstructed volumes and single
// slices as 8-bit grayscale images.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"dicomvolume/internal/models"
	"dicomvolume/pkg/volume"
)

// Plane names the three orthogonal views, keyed by the axis held fixed.
var Plane = map[string]string{
	"z": "axial",
	"y": "coronal",
	"x": "sagittal",
}

// Viewer extracts orthogonal planes from a volume. Intensities are windowed
// to the volume's own min/max so every plane of one volume shares a scale.
type Viewer struct {
	vol *models.Volume

	// window bounds
	lo, hi float64
}

// NewViewer creates a viewer for vol
func NewViewer(vol *models.Volume) *Viewer {
	st := volume.ComputeStats(vol.Data)
	return &Viewer{vol: vol, lo: st.Min, hi: st.Max}
}

// ExtractSlice extracts a 2D plane holding axis fixed at position.
// x yields a (depth x height) image, y a (width x depth) image and z a
// (width x height) image.
func (v *Viewer) ExtractSlice(axis string, position int) (*image.Gray, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}

	d, h, w := v.vol.Shape()
	var img *image.Gray

	switch axis {
	case "x", "X":
		if position >= w {
			return nil, fmt.Errorf("position %d exceeds width %d", position, w)
		}
		img = image.NewGray(image.Rect(0, 0, d, h))
		for y := 0; y < h; y++ {
			for z := 0; z < d; z++ {
				img.SetGray(z, y, v.gray(v.vol.At(position, y, z)))
			}
		}

	case "y", "Y":
		if position >= h {
			return nil, fmt.Errorf("position %d exceeds height %d", position, h)
		}
		img = image.NewGray(image.Rect(0, 0, w, d))
		for z := 0; z < d; z++ {
			for x := 0; x < w; x++ {
				img.SetGray(x, z, v.gray(v.vol.At(x, position, z)))
			}
		}

	case "z", "Z":
		if position >= d {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, d)
		}
		img = image.NewGray(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				img.SetGray(x, y, v.gray(v.vol.At(x, y, position)))
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

func (v *Viewer) gray(val float64) color.Gray {
	return color.Gray{Y: scale8(val, v.lo, v.hi)}
}

// SaveMidSlices writes the middle axial, coronal and sagittal planes as
// <prefix>_<plane>.png under dir and returns the written paths.
func (v *Viewer) SaveMidSlices(dir, prefix string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	d, h, w := v.vol.Shape()
	mids := []struct {
		axis string
		pos  int
	}{{"z", d / 2}, {"y", h / 2}, {"x", w / 2}}

	paths := make([]string, 0, len(mids))
	for _, m := range mids {
		img, err := v.ExtractSlice(m.axis, m.pos)
		if err != nil {
			return paths, err
		}
		filename := filepath.Join(dir, fmt.Sprintf("%s_%s.png", prefix, Plane[m.axis]))
		if err := SavePNG(img, filename); err != nil {
			return paths, err
		}
		paths = append(paths, filename)
	}
	return paths, nil
}

// GridImage renders a single slice windowed to its own min/max.
func GridImage(g *models.PixelGrid) *image.Gray {
	st := volume.ComputeStats(g.Data)
	img := image.NewGray(image.Rect(0, 0, g.Cols, g.Rows))
	for y := 0; y < g.Rows; y++ {
		for x := 0; x < g.Cols; x++ {
			img.SetGray(x, y, color.Gray{Y: scale8(g.At(x, y), st.Min, st.Max)})
		}
	}
	return img
}

// SavePNG saves an image as PNG
func SavePNG(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := png.Encode(file, img); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// scale8 maps val from [lo, hi] onto 0..255; a flat window maps to 0.
func scale8(val, lo, hi float64) uint8 {
	if hi <= lo {
		return 0
	}
	n := (val - lo) / (hi - lo) * 255
	return uint8(math.Max(0, math.Min(255, math.Round(n))))
}
