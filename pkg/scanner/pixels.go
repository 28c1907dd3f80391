package scanner

import (
	"github.com/pkg/errors"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"

	"dicomvolume/internal/models"
)

// ErrNoPixelData is returned when a dataset carries no decodable frame.
var ErrNoPixelData = errors.New("no pixel data")

// DecodePixels converts the first native frame of ds into a PixelGrid.
// Multi-sample pixels are averaged into one channel. Signed data stored as
// unsigned words is reinterpreted using PixelRepresentation.
func DecodePixels(ds dicom.Dataset) (*models.PixelGrid, error) {
	elem, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return nil, ErrNoPixelData
	}
	info, ok := elem.Value.GetValue().(dicom.PixelDataInfo)
	if !ok || len(info.Frames) == 0 {
		return nil, ErrNoPixelData
	}

	fr := info.Frames[0]
	if fr == nil || fr.Encapsulated || fr.NativeData == nil {
		return nil, errors.Wrap(ErrNoPixelData, "encapsulated pixel data is not supported")
	}
	return gridFromFrame(fr.NativeData, intAttr(ds, tag.PixelRepresentation, 0) == 1)
}

func gridFromFrame(nf frame.INativeFrame, signed bool) (*models.PixelGrid, error) {
	rows, cols := nf.Rows(), nf.Cols()
	if rows <= 0 || cols <= 0 {
		return nil, errors.Wrapf(ErrNoPixelData, "frame has shape %dx%d", rows, cols)
	}
	spp := nf.SamplesPerPixel()
	if spp < 1 {
		spp = 1
	}
	n := rows * cols

	var (
		samples []float64
		dtype   models.DType
	)
	switch raw := nf.RawDataSlice().(type) {
	case []uint8:
		if signed {
			samples, dtype = widen(raw, func(v uint8) float64 { return float64(int8(v)) }), models.Int8
		} else {
			samples, dtype = widen(raw, func(v uint8) float64 { return float64(v) }), models.Uint8
		}
	case []int8:
		samples, dtype = widen(raw, func(v int8) float64 { return float64(v) }), models.Int8
	case []uint16:
		if signed {
			samples, dtype = widen(raw, func(v uint16) float64 { return float64(int16(v)) }), models.Int16
		} else {
			samples, dtype = widen(raw, func(v uint16) float64 { return float64(v) }), models.Uint16
		}
	case []int16:
		samples, dtype = widen(raw, func(v int16) float64 { return float64(v) }), models.Int16
	case []uint32:
		if signed {
			samples, dtype = widen(raw, func(v uint32) float64 { return float64(int32(v)) }), models.Int32
		} else {
			samples, dtype = widen(raw, func(v uint32) float64 { return float64(v) }), models.Uint32
		}
	case []int32:
		samples, dtype = widen(raw, func(v int32) float64 { return float64(v) }), models.Int32
	default:
		return nil, errors.Errorf("unsupported pixel sample type %T", raw)
	}

	if len(samples) < n*spp {
		return nil, errors.Errorf("frame holds %d samples, need %d", len(samples), n*spp)
	}

	data := make([]float64, n)
	if spp == 1 {
		copy(data, samples[:n])
	} else {
		for i := 0; i < n; i++ {
			var sum float64
			for s := 0; s < spp; s++ {
				sum += samples[i*spp+s]
			}
			data[i] = sum / float64(spp)
		}
	}

	return &models.PixelGrid{Rows: rows, Cols: cols, DType: dtype, Data: data}, nil
}

func widen[T any](raw []T, conv func(T) float64) []float64 {
	out := make([]float64, len(raw))
	for i, v := range raw {
		out[i] = conv(v)
	}
	return out
}
