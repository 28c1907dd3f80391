// Package volume stacks the slices of a series into a 3D scalar volume.
package volume

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"dicomvolume/internal/models"
	"dicomvolume/pkg/series"
)

var (
	// ErrShapeMismatch is returned when slices of a series differ in shape or dtype.
	ErrShapeMismatch = errors.New("slice shape mismatch")

	// ErrVolumeTooLarge is returned when a volume would exceed the voxel limit.
	ErrVolumeTooLarge = errors.New("volume exceeds voxel limit")

	// ErrTooFewSlices is returned for series below the stacking minimum.
	ErrTooFewSlices = errors.New("too few slices for a volume")
)

// Builder stacks series into volumes.
type Builder struct {
	// MaxVoxels caps depth*height*width; zero disables the guard
	MaxVoxels int
}

// NewBuilder creates a builder with the given voxel limit.
func NewBuilder(maxVoxels int) *Builder {
	return &Builder{MaxVoxels: maxVoxels}
}

// Build stacks the slices of s, in order, along a new leading depth axis.
// The result has shape (N, H, W) and carries the first slice's metadata.
func (b *Builder) Build(s models.Series) (*models.Volume, error) {
	if s.Len() < series.MinSlices {
		return nil, fmt.Errorf("series %s has %d slices: %w", s.ID, s.Len(), ErrTooFewSlices)
	}

	first := s.Slices[0]
	if first.Pixels == nil {
		return nil, fmt.Errorf("series %s slice 0 has no pixels: %w", s.ID, ErrShapeMismatch)
	}
	h, w, dtype := first.Pixels.Rows, first.Pixels.Cols, first.Pixels.DType

	for i, sl := range s.Slices[1:] {
		p := sl.Pixels
		if p == nil {
			return nil, fmt.Errorf("series %s slice %d has no pixels: %w", s.ID, i+1, ErrShapeMismatch)
		}
		if p.Rows != h || p.Cols != w {
			return nil, fmt.Errorf("series %s slice %d (%s) has shape (%d, %d), expected (%d, %d): %w",
				s.ID, i+1, sl.Path, p.Rows, p.Cols, h, w, ErrShapeMismatch)
		}
		if p.DType != dtype {
			return nil, fmt.Errorf("series %s slice %d (%s) has dtype %s, expected %s: %w",
				s.ID, i+1, sl.Path, p.DType, dtype, ErrShapeMismatch)
		}
	}

	depth := s.Len()
	sliceSize := h * w
	if b.MaxVoxels > 0 && sliceSize > 0 && depth > b.MaxVoxels/sliceSize {
		return nil, fmt.Errorf("series %s needs %d voxels, limit %d: %w",
			s.ID, depth*sliceSize, b.MaxVoxels, ErrVolumeTooLarge)
	}

	vol := &models.Volume{
		Data:            make([]float64, depth*sliceSize),
		Depth:           depth,
		Height:          h,
		Width:           w,
		DType:           dtype,
		SeriesID:        s.ID,
		Description:     first.Description,
		Modality:        first.Modality,
		PatientID:       first.PatientID,
		InstanceNumbers: s.InstanceNumbers(),
	}
	for z, sl := range s.Slices {
		copy(vol.Data[z*sliceSize:(z+1)*sliceSize], sl.Pixels.Data)
	}
	return vol, nil
}

// Stats summarizes the scalar range of a grid
type Stats struct {
	Min  float64
	Max  float64
	Mean float64
}

// ComputeStats returns min, max and mean of data. Empty input yields zeros.
func ComputeStats(data []float64) Stats {
	if len(data) == 0 {
		return Stats{}
	}
	return Stats{
		Min:  floats.Min(data),
		Max:  floats.Max(data),
		Mean: stat.Mean(data, nil),
	}
}
