package reconstruction

import (
	"fmt"
	"strings"

	"dicomvolume/internal/models"
	"dicomvolume/pkg/isosurface"
	"dicomvolume/pkg/volume"
)

func sliceMetadata(rec models.SliceRecord) string {
	st := volume.ComputeStats(rec.Pixels.Data)
	lines := []string{
		"Series Description: " + rec.Description,
		"Modality: " + rec.Modality,
		"Patient ID: " + rec.PatientID,
		fmt.Sprintf("Instance Number: %d", rec.InstanceNumber),
		fmt.Sprintf("Image Shape: (%d, %d)", rec.Pixels.Rows, rec.Pixels.Cols),
		"Image Data Type: " + string(rec.Pixels.DType),
		fmt.Sprintf("Min Value: %g", st.Min),
		fmt.Sprintf("Max Value: %g", st.Max),
		fmt.Sprintf("Mean Value: %.2f", st.Mean),
		"File Path: " + rec.Path,
	}
	return strings.Join(lines, "\n")
}

func volumeMetadata(vol *models.Volume) string {
	st := volume.ComputeStats(vol.Data)
	lines := []string{
		"3D Volume - " + vol.Description,
		"Series UID: " + vol.SeriesID,
		"Modality: " + vol.Modality,
		"Patient ID: " + vol.PatientID,
		fmt.Sprintf("Number of slices: %d", vol.Depth),
		"Volume Shape: " + vol.ShapeString(),
		"Data Type: " + string(vol.DType),
		fmt.Sprintf("Min Value: %g", st.Min),
		fmt.Sprintf("Max Value: %g", st.Max),
		fmt.Sprintf("Mean Value: %.2f", st.Mean),
		fmt.Sprintf("Instance Numbers: %v", vol.InstanceNumbers),
	}
	return strings.Join(lines, "\n")
}

func meshMetadata(seriesID string, m *models.Mesh) string {
	lines := []string{
		"Isosurface - " + m.Label,
		"Series UID: " + seriesID,
		"Threshold: " + isosurface.FormatThreshold(m.Threshold),
		fmt.Sprintf("Color: #%02x%02x%02x", m.Color.R, m.Color.G, m.Color.B),
		fmt.Sprintf("Vertices: %d", len(m.Vertices)),
		fmt.Sprintf("Faces: %d", len(m.Faces)),
	}
	return strings.Join(lines, "\n")
}
