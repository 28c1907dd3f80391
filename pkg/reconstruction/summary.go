package reconstruction

import (
	"fmt"
	"strings"
)

// Summary holds the counters of one run.
type Summary struct {
	// FilesTotal == FilesValid + FilesInvalid. FilesNoPixel is the part of
	// FilesValid that carried no usable pixel data.
	FilesTotal   int
	FilesValid   int
	FilesInvalid int
	FilesNoPixel int

	// SlicesKept is the number of slice records with pixel data.
	SlicesKept int

	SeriesTotal         int
	SeriesUndersized    int
	SeriesBuilt         int
	SeriesShapeMismatch int
	SeriesTooLarge      int
	SeriesFailed        int
	SeriesSkipped       int

	// SeriesDegenerate counts built volumes with a single scalar value.
	SeriesDegenerate int

	MeshesEmitted int
	MeshesEmpty   int
	MeshesFailed  int
}

// seriesResult is the contribution of one series to the summary
type seriesResult struct {
	built, shapeMismatch, tooLarge, failed, degenerate int
	meshes, meshesEmpty, meshesFailed                  int
}

func (s *Summary) merge(r seriesResult) {
	s.SeriesBuilt += r.built
	s.SeriesShapeMismatch += r.shapeMismatch
	s.SeriesTooLarge += r.tooLarge
	s.SeriesFailed += r.failed
	s.SeriesDegenerate += r.degenerate
	s.MeshesEmitted += r.meshes
	s.MeshesEmpty += r.meshesEmpty
	s.MeshesFailed += r.meshesFailed
}

// Text renders the summary document.
func (s *Summary) Text() string {
	var b strings.Builder
	b.WriteString("DICOM Processing Summary\n")
	b.WriteString(strings.Repeat("=", 40) + "\n")
	fmt.Fprintf(&b, "Total files: %d\n", s.FilesTotal)
	fmt.Fprintf(&b, "Valid DICOM files: %d\n", s.FilesValid)
	fmt.Fprintf(&b, "Invalid files: %d\n", s.FilesInvalid)
	fmt.Fprintf(&b, "Files without pixel data: %d\n", s.FilesNoPixel)
	fmt.Fprintf(&b, "Slices with pixel data: %d\n", s.SlicesKept)
	fmt.Fprintf(&b, "Number of series: %d\n", s.SeriesTotal)
	fmt.Fprintf(&b, "  Undersized: %d\n", s.SeriesUndersized)
	fmt.Fprintf(&b, "  Volumes built: %d\n", s.SeriesBuilt)
	fmt.Fprintf(&b, "  Shape mismatch: %d\n", s.SeriesShapeMismatch)
	fmt.Fprintf(&b, "  Too large: %d\n", s.SeriesTooLarge)
	fmt.Fprintf(&b, "  Degenerate: %d\n", s.SeriesDegenerate)
	if s.SeriesFailed > 0 {
		fmt.Fprintf(&b, "  Failed: %d\n", s.SeriesFailed)
	}
	if s.SeriesSkipped > 0 {
		fmt.Fprintf(&b, "  Not started: %d\n", s.SeriesSkipped)
	}
	fmt.Fprintf(&b, "Meshes emitted: %d (empty: %d, failed: %d)\n", s.MeshesEmitted, s.MeshesEmpty, s.MeshesFailed)
	b.WriteString("\n")
	b.WriteString("Individual images are logged under: series/{series_id}\n")
	b.WriteString("3D volumes are logged under: volumes/tensor/{series_id}\n")
	b.WriteString("Meshes are logged under: volumes/mesh/{series_id}/threshold_{t}")
	return b.String()
}
