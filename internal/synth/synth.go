// Package synth writes small synthetic DICOM series to disk. It backs the
// generate command and the test suites.
package synth

import (
	"fmt"
	"hash/fnv"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"
)

const (
	explicitVRLittleEndian = "1.2.840.10008.1.2.1"
	mrImageStorage         = "1.2.840.10008.5.1.4.1.1.4"
)

// Pattern returns the normalized intensity in [0, 1] of voxel (x, y, z).
type Pattern func(x, y, z int) float64

// SeriesSpec describes one series to write.
type SeriesSpec struct {
	SeriesID    string
	Description string
	Modality    string
	PatientID   string

	// Slices is the number of files written
	Slices int
	Rows   int
	Cols   int

	// Bits is 8 or 16; zero means 16
	Bits int

	// InstanceNumbers overrides the default 1..Slices numbering
	InstanceNumbers []int

	// FilePrefix names the files; defaults to a sanitized series id
	FilePrefix string

	// OmitSeriesID leaves SeriesInstanceUID out of every file
	OmitSeriesID bool

	// OmitPixelData writes the attributes without a PixelData element
	OmitPixelData bool

	// Pattern fills the pixels; defaults to a sphere phantom
	Pattern Pattern
}

// SpherePhantom is a radial density that peaks at 1 in the volume centre and
// falls linearly to 0 at the edge of the inscribed ellipsoid.
func SpherePhantom(rows, cols, slices int) Pattern {
	cx, cy, cz := float64(cols-1)/2, float64(rows-1)/2, float64(slices-1)/2
	hx, hy, hz := math.Max(float64(cols)/2, 1), math.Max(float64(rows)/2, 1), math.Max(float64(slices)/2, 1)
	return func(x, y, z int) float64 {
		dx := (float64(x) - cx) / hx
		dy := (float64(y) - cy) / hy
		dz := (float64(z) - cz) / hz
		return math.Max(0, 1-math.Sqrt(dx*dx+dy*dy+dz*dz))
	}
}

// Uniform returns a pattern with the same value everywhere.
func Uniform(v float64) Pattern {
	return func(x, y, z int) float64 { return v }
}

// WriteSeries writes spec into dir and returns the file paths in slice order.
func WriteSeries(dir string, spec SeriesSpec) ([]string, error) {
	if spec.Slices <= 0 || spec.Rows <= 0 || spec.Cols <= 0 {
		return nil, fmt.Errorf("invalid series shape %dx%dx%d", spec.Slices, spec.Rows, spec.Cols)
	}
	if spec.InstanceNumbers != nil && len(spec.InstanceNumbers) != spec.Slices {
		return nil, fmt.Errorf("%d instance numbers for %d slices", len(spec.InstanceNumbers), spec.Slices)
	}
	bits := spec.Bits
	if bits == 0 {
		bits = 16
	}
	if bits != 8 && bits != 16 {
		return nil, fmt.Errorf("unsupported bit depth %d", bits)
	}
	pattern := spec.Pattern
	if pattern == nil {
		pattern = SpherePhantom(spec.Rows, spec.Cols, spec.Slices)
	}
	prefix := spec.FilePrefix
	if prefix == "" {
		prefix = sanitize(spec.SeriesID)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	paths := make([]string, 0, spec.Slices)
	for z := 0; z < spec.Slices; z++ {
		instance := z + 1
		if spec.InstanceNumbers != nil {
			instance = spec.InstanceNumbers[z]
		}

		elements, err := sliceElements(spec, z, instance, bits)
		if err != nil {
			return nil, err
		}
		if !spec.OmitPixelData {
			pixels, err := pixelElement(spec, pattern, z, bits)
			if err != nil {
				return nil, err
			}
			elements = append(elements, pixels)
		}

		path := filepath.Join(dir, fmt.Sprintf("%s_%04d.dcm", prefix, z))
		if err := writeDataset(path, dicom.Dataset{Elements: elements}); err != nil {
			return nil, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// WriteJunk writes a file that is not DICOM.
func WriteJunk(dir, name string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	return path, os.WriteFile(path, []byte("not a dicom file"), 0644)
}

func sliceElements(spec SeriesSpec, z, instance, bits int) ([]*dicom.Element, error) {
	sopInstanceUID := fmt.Sprintf("2.25.%d.%d", uidSeed(spec.SeriesID, spec.FilePrefix), z+1)

	type entry struct {
		t tag.Tag
		v interface{}
	}
	entries := []entry{
		{tag.TransferSyntaxUID, []string{explicitVRLittleEndian}},
		{tag.MediaStorageSOPClassUID, []string{mrImageStorage}},
		{tag.MediaStorageSOPInstanceUID, []string{sopInstanceUID}},
		{tag.SOPClassUID, []string{mrImageStorage}},
		{tag.SOPInstanceUID, []string{sopInstanceUID}},
		{tag.InstanceNumber, []string{fmt.Sprintf("%d", instance)}},
		{tag.Rows, []int{spec.Rows}},
		{tag.Columns, []int{spec.Cols}},
		{tag.BitsAllocated, []int{bits}},
		{tag.BitsStored, []int{bits}},
		{tag.HighBit, []int{bits - 1}},
		{tag.PixelRepresentation, []int{0}},
		{tag.SamplesPerPixel, []int{1}},
		{tag.PhotometricInterpretation, []string{"MONOCHROME2"}},
	}
	if !spec.OmitSeriesID {
		entries = append(entries, entry{tag.SeriesInstanceUID, []string{spec.SeriesID}})
	}
	if spec.Description != "" {
		entries = append(entries, entry{tag.SeriesDescription, []string{spec.Description}})
	}
	if spec.Modality != "" {
		entries = append(entries, entry{tag.Modality, []string{spec.Modality}})
	}
	if spec.PatientID != "" {
		entries = append(entries, entry{tag.PatientID, []string{spec.PatientID}})
	}

	elements := make([]*dicom.Element, 0, len(entries)+1)
	for _, e := range entries {
		elem, err := dicom.NewElement(e.t, e.v)
		if err != nil {
			return nil, fmt.Errorf("create element %v: %w", e.t, err)
		}
		elements = append(elements, elem)
	}
	return elements, nil
}

func pixelElement(spec SeriesSpec, pattern Pattern, z, bits int) (*dicom.Element, error) {
	n := spec.Rows * spec.Cols
	var fr *frame.Frame

	if bits == 8 {
		nf := frame.NewNativeFrame[uint8](8, spec.Rows, spec.Cols, n, 1)
		for y := 0; y < spec.Rows; y++ {
			for x := 0; x < spec.Cols; x++ {
				nf.RawData[y*spec.Cols+x] = uint8(clamp01(pattern(x, y, z)) * 250)
			}
		}
		fr = &frame.Frame{Encapsulated: false, NativeData: nf}
	} else {
		nf := frame.NewNativeFrame[uint16](16, spec.Rows, spec.Cols, n, 1)
		for y := 0; y < spec.Rows; y++ {
			for x := 0; x < spec.Cols; x++ {
				nf.RawData[y*spec.Cols+x] = uint16(clamp01(pattern(x, y, z)) * 4000)
			}
		}
		fr = &frame.Frame{Encapsulated: false, NativeData: nf}
	}

	elem, err := dicom.NewElement(tag.PixelData, dicom.PixelDataInfo{Frames: []*frame.Frame{fr}})
	if err != nil {
		return nil, fmt.Errorf("create pixel data: %w", err)
	}
	return elem, nil
}

func writeDataset(path string, ds dicom.Dataset) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := dicom.Write(f, ds); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func sanitize(id string) string {
	if id == "" {
		return "series"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		default:
			return '_'
		}
	}, id)
}

// uidSeed derives a stable numeric UID component from the series identity.
func uidSeed(parts ...string) uint32 {
	h := fnv.New32a()
	for _, p := range parts {
		h.Write([]byte(p))
	}
	return h.Sum32()
}
