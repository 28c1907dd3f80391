package models

import (
	"fmt"
	"image/color"

	"gonum.org/v1/gonum/spatial/r3"
)

// DType names the numeric type of the samples a pixel grid was decoded from.
type DType string

const (
	Uint8  DType = "uint8"
	Int8   DType = "int8"
	Uint16 DType = "uint16"
	Int16  DType = "int16"
	Uint32 DType = "uint32"
	Int32  DType = "int32"
)

// PixelGrid is a single 2D image plane with its native sample type
type PixelGrid struct {
	// Rows and Cols give the shape of the grid (H, W)
	Rows int
	Cols int

	// DType is the sample type stored in the source file
	DType DType

	// Data holds the samples in row-major order, widened to float64
	Data []float64
}

// Shape returns (rows, cols).
func (g *PixelGrid) Shape() (int, int) {
	return g.Rows, g.Cols
}

// At returns the sample at column x, row y.
func (g *PixelGrid) At(x, y int) float64 {
	return g.Data[y*g.Cols+x]
}

// SliceRecord represents a single imaging instance read from disk.
// Records are created once by the scanner and never mutated afterwards.
type SliceRecord struct {
	// Path is the file the record was parsed from
	Path string

	SeriesID       string
	InstanceNumber int
	Modality       string
	PatientID      string
	Description    string

	// Pixels is the decoded first frame of the instance
	Pixels *PixelGrid
}

// Series is an ordered group of slices sharing one series id
type Series struct {
	ID     string
	Slices []SliceRecord
}

// Len returns the number of slices in the series.
func (s *Series) Len() int { return len(s.Slices) }

// InstanceNumbers lists the instance numbers in series order.
func (s *Series) InstanceNumbers() []int {
	nums := make([]int, len(s.Slices))
	for i, sl := range s.Slices {
		nums[i] = sl.InstanceNumber
	}
	return nums
}

// Volume represents a 3D volume stacked from the slices of one series
type Volume struct {
	// Data is the 3D volume data as a 1D array, index z*Height*Width + y*Width + x
	Data []float64

	// Depth is the number of stacked slices
	Depth int

	// Height and Width are the common per-slice shape
	Height int
	Width  int

	// DType is the shared sample type of the source slices
	DType DType

	SeriesID    string
	Description string
	Modality    string
	PatientID   string

	// InstanceNumbers records the stacking order
	InstanceNumbers []int
}

// Shape returns (depth, height, width).
func (v *Volume) Shape() (int, int, int) {
	return v.Depth, v.Height, v.Width
}

// ShapeString formats the shape the way it appears in metadata documents.
func (v *Volume) ShapeString() string {
	return fmt.Sprintf("(%d, %d, %d)", v.Depth, v.Height, v.Width)
}

// At returns the voxel at (x, y, z).
func (v *Volume) At(x, y, z int) float64 {
	return v.Data[z*v.Height*v.Width+y*v.Width+x]
}

// Mesh is a triangulated isosurface extracted at one threshold
type Mesh struct {
	Vertices []r3.Vec
	Faces    [][3]int
	Normals  []r3.Vec

	// Values holds the field value at each vertex
	Values []float64

	Color     color.RGBA
	Label     string
	Threshold float64
}

// Validate checks that every face references an existing vertex and that
// the per-vertex arrays line up.
func (m *Mesh) Validate() error {
	n := len(m.Vertices)
	if len(m.Normals) != n {
		return fmt.Errorf("mesh has %d vertices but %d normals", n, len(m.Normals))
	}
	if m.Values != nil && len(m.Values) != n {
		return fmt.Errorf("mesh has %d vertices but %d values", n, len(m.Values))
	}
	for i, f := range m.Faces {
		for _, idx := range f {
			if idx < 0 || idx >= n {
				return fmt.Errorf("face %d references vertex %d, mesh has %d vertices", i, idx, n)
			}
		}
	}
	return nil
}
