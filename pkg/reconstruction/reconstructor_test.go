package reconstruction

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dicomvolume/internal/synth"
	"dicomvolume/pkg/config"
	"dicomvolume/pkg/log"
	"dicomvolume/pkg/presenter"
	"dicomvolume/pkg/scanner"
	"dicomvolume/pkg/series"
)

// run processes dir with a recorder attached and returns both.
func run(t *testing.T, dir string, workers int) (*Summary, *presenter.Recorder) {
	t.Helper()
	rec := presenter.NewRecorder()
	session := presenter.NewSession("test", rec)
	defer session.Close()

	params := &Params{InputDir: dir, MinSeriesSlices: 2, Workers: workers}
	sum, err := NewReconstructor(params, log.NewNoopLogger(), session).Process(context.Background())
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	return sum, rec
}

func writeSeries(t *testing.T, dir string, spec synth.SeriesSpec) {
	t.Helper()
	if _, err := synth.WriteSeries(dir, spec); err != nil {
		t.Fatalf("Failed to write series %s: %v", spec.SeriesID, err)
	}
}

// TestScenarioMixedSeries covers one three-slice series next to a
// single-slice series of the same resolution.
func TestScenarioMixedSeries(t *testing.T) {
	dir := t.TempDir()
	writeSeries(t, dir, synth.SeriesSpec{SeriesID: "1.2.3.1", Slices: 3, Rows: 64, Cols: 64, Modality: "MR"})
	writeSeries(t, dir, synth.SeriesSpec{SeriesID: "1.2.3.2", Slices: 1, Rows: 64, Cols: 64})

	sum, rec := run(t, dir, 1)

	if n := rec.Count(presenter.KindImage, presenter.SeriesPath("1.2.3.1")); n != 3 {
		t.Errorf("Expected 3 images for the three-slice series, got %d", n)
	}
	if n := rec.Count(presenter.KindImage, presenter.SeriesPath("1.2.3.2")); n != 1 {
		t.Errorf("Expected 1 image for the single-slice series, got %d", n)
	}

	tensors := rec.Filter(presenter.KindTensor, "")
	if len(tensors) != 1 || tensors[0].Path != presenter.TensorPath("1.2.3.1") {
		t.Fatalf("Expected one tensor for 1.2.3.1, got %+v", rec.Paths(presenter.KindTensor))
	}
	d, h, w := tensors[0].Tensor.Shape()
	if d != 3 || h != 64 || w != 64 {
		t.Errorf("Expected shape (3, 64, 64), got (%d, %d, %d)", d, h, w)
	}

	meshes := rec.Filter(presenter.KindMesh, "")
	if len(meshes) < 1 || len(meshes) > 3 {
		t.Errorf("Expected 1 to 3 meshes, got %d", len(meshes))
	}
	for _, m := range meshes {
		if !strings.HasPrefix(m.Path, "volumes/mesh/1.2.3.1/threshold_") {
			t.Errorf("Unexpected mesh path %s", m.Path)
		}
		if err := m.Mesh.Validate(); err != nil {
			t.Errorf("Mesh at %s is invalid: %v", m.Path, err)
		}
		if _, ok := rec.Text(presenter.MetadataPath(m.Path)); !ok {
			t.Errorf("Mesh at %s has no metadata", m.Path)
		}
	}

	if sum.SeriesTotal != 2 || sum.SeriesUndersized != 1 || sum.SeriesBuilt != 1 {
		t.Errorf("Unexpected series counters: %+v", sum)
	}
	if sum.MeshesEmitted != len(meshes) || sum.MeshesEmitted+sum.MeshesEmpty+sum.MeshesFailed != 3 {
		t.Errorf("Mesh counters do not add up: %+v", sum)
	}

	meta, ok := rec.Text(presenter.MetadataPath(presenter.TensorPath("1.2.3.1")))
	if !ok || !strings.Contains(meta, "Volume Shape: (3, 64, 64)") || !strings.Contains(meta, "Instance Numbers: [1 2 3]") {
		t.Errorf("Unexpected volume metadata:\n%s", meta)
	}
	if _, ok := rec.Text(presenter.SummaryPath); !ok {
		t.Error("Expected summary text")
	}
}

// TestScenarioNoParseableFiles covers a folder without any DICOM file.
func TestScenarioNoParseableFiles(t *testing.T) {
	for _, junk := range []int{0, 2} {
		dir := t.TempDir()
		for i := 0; i < junk; i++ {
			if _, err := synth.WriteJunk(dir, fmt.Sprintf("junk_%d.txt", i)); err != nil {
				t.Fatal(err)
			}
		}

		sum, rec := run(t, dir, 1)
		if sum.FilesTotal != junk || sum.FilesValid != 0 || sum.FilesInvalid != junk {
			t.Errorf("Unexpected file counters: %+v", sum)
		}
		if sum.SeriesTotal != 0 {
			t.Errorf("Expected zero series, got %d", sum.SeriesTotal)
		}
		text, ok := rec.Text(presenter.SummaryPath)
		if !ok || !strings.Contains(text, "Valid DICOM files: 0") || !strings.Contains(text, "Number of series: 0") {
			t.Errorf("Unexpected summary:\n%s", text)
		}
		if len(rec.Filter(presenter.KindImage, "")) != 0 {
			t.Error("Expected no images")
		}
	}
}

// TestScenarioShapeMismatch covers a series whose slices differ in shape.
func TestScenarioShapeMismatch(t *testing.T) {
	dir := t.TempDir()
	writeSeries(t, dir, synth.SeriesSpec{SeriesID: "C", FilePrefix: "c_big", Slices: 2, Rows: 32, Cols: 32, InstanceNumbers: []int{1, 2}})
	writeSeries(t, dir, synth.SeriesSpec{SeriesID: "C", FilePrefix: "c_small", Slices: 1, Rows: 16, Cols: 16, InstanceNumbers: []int{3}})
	writeSeries(t, dir, synth.SeriesSpec{SeriesID: "D", Slices: 4, Rows: 24, Cols: 24})

	sum, rec := run(t, dir, 1)

	if n := rec.Count(presenter.KindImage, presenter.SeriesPath("C")); n != 3 {
		t.Errorf("Expected 3 images for mismatched series, got %d", n)
	}
	if n := rec.Count(presenter.KindTensor, presenter.TensorPath("C")); n != 0 {
		t.Errorf("Expected no tensor for mismatched series, got %d", n)
	}
	if n := rec.Count(presenter.KindMesh, "volumes/mesh/C/"); n != 0 {
		t.Errorf("Expected no mesh for mismatched series, got %d", n)
	}
	if n := rec.Count(presenter.KindTensor, presenter.TensorPath("D")); n != 1 {
		t.Errorf("Sibling series should still get its tensor, got %d", n)
	}
	if sum.SeriesShapeMismatch != 1 || sum.SeriesBuilt != 1 {
		t.Errorf("Unexpected series counters: %+v", sum)
	}
}

// TestCountsBalance mixes valid, pixel-less and junk files.
// TestUniformSeries covers a series with one value everywhere: the tensor
// is still emitted but every threshold comes back empty.
func TestUniformSeries(t *testing.T) {
	dir := t.TempDir()
	writeSeries(t, dir, synth.SeriesSpec{SeriesID: "flat", Slices: 3, Rows: 8, Cols: 8, Pattern: synth.Uniform(0.5)})

	sum, rec := run(t, dir, 1)
	if sum.SeriesBuilt != 1 || sum.SeriesDegenerate != 1 {
		t.Errorf("Expected 1 built and 1 degenerate series, got %d and %d", sum.SeriesBuilt, sum.SeriesDegenerate)
	}
	if sum.MeshesEmpty != 3 || sum.MeshesEmitted != 0 || sum.MeshesFailed != 0 {
		t.Errorf("Expected 3 empty meshes only, got emitted=%d empty=%d failed=%d",
			sum.MeshesEmitted, sum.MeshesEmpty, sum.MeshesFailed)
	}
	if n := rec.Count(presenter.KindTensor, presenter.TensorPath("flat")); n != 1 {
		t.Errorf("Expected one tensor, got %d", n)
	}
	if n := rec.Count(presenter.KindMesh, ""); n != 0 {
		t.Errorf("Expected no meshes, got %d", n)
	}
}

func TestCountsBalance(t *testing.T) {
	dir := t.TempDir()
	writeSeries(t, dir, synth.SeriesSpec{SeriesID: "A", Slices: 3, Rows: 8, Cols: 8, Bits: 8})
	writeSeries(t, filepath.Join(dir, "nested"), synth.SeriesSpec{SeriesID: "B", Slices: 2, Rows: 8, Cols: 8, OmitPixelData: true})
	if _, err := synth.WriteJunk(dir, "notes.txt"); err != nil {
		t.Fatal(err)
	}

	sum, _ := run(t, dir, 1)
	if sum.FilesTotal != sum.FilesValid+sum.FilesInvalid {
		t.Errorf("Counts do not balance: %+v", sum)
	}
	if sum.FilesTotal != 6 || sum.FilesInvalid != 1 || sum.FilesNoPixel != 2 || sum.SlicesKept != 3 {
		t.Errorf("Unexpected file counters: %+v", sum)
	}
}

// TestInstanceOrdering checks slices are emitted in instance order,
// whatever order the files were written in.
func TestInstanceOrdering(t *testing.T) {
	dir := t.TempDir()
	writeSeries(t, dir, synth.SeriesSpec{SeriesID: "S", Slices: 4, Rows: 8, Cols: 8, InstanceNumbers: []int{4, 2, 3, 1}})

	_, rec := run(t, dir, 1)
	var instances []string
	for _, e := range rec.Filter(presenter.KindText, presenter.MetadataPath(presenter.SeriesPath("S"))) {
		for _, line := range strings.Split(e.Text, "\n") {
			if strings.HasPrefix(line, "Instance Number: ") {
				instances = append(instances, strings.TrimPrefix(line, "Instance Number: "))
			}
		}
	}
	if strings.Join(instances, ",") != "1,2,3,4" {
		t.Errorf("Expected instances 1,2,3,4, got %v", instances)
	}
}

func TestParallelMatchesSequential(t *testing.T) {
	dir := t.TempDir()
	for _, id := range []string{"P1", "P2", "P3", "P4"} {
		writeSeries(t, dir, synth.SeriesSpec{SeriesID: id, Slices: 3, Rows: 16, Cols: 16})
	}

	seq, seqRec := run(t, dir, 1)
	par, parRec := run(t, dir, 3)

	if *seq != *par {
		t.Errorf("Summaries differ:\nsequential %+v\nparallel   %+v", seq, par)
	}
	if a, b := seqRec.Paths(presenter.KindMesh), parRec.Paths(presenter.KindMesh); strings.Join(a, ",") != strings.Join(b, ",") {
		t.Errorf("Mesh paths differ:\n%v\n%v", a, b)
	}
}

func TestVoxelGuard(t *testing.T) {
	dir := t.TempDir()
	writeSeries(t, dir, synth.SeriesSpec{SeriesID: "big", Slices: 3, Rows: 16, Cols: 16})

	rec := presenter.NewRecorder()
	params := &Params{InputDir: dir, MaxVoxels: 16 * 16 * 2}
	sum, err := NewReconstructor(params, log.NewNoopLogger(), presenter.NewSession("t", rec)).Process(context.Background())
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if sum.SeriesTooLarge != 1 || rec.Count(presenter.KindTensor, "") != 0 {
		t.Errorf("Expected the volume to be rejected, got %+v", sum)
	}
	if rec.Count(presenter.KindImage, "") != 3 {
		t.Error("Slices of a rejected volume should still be emitted")
	}
}

func TestInvalidFolder(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file.dcm")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path string
		want error
	}{
		{filepath.Join(dir, "missing"), scanner.ErrFolderNotFound},
		{file, scanner.ErrNotDirectory},
	}
	for _, tt := range tests {
		rec := presenter.NewRecorder()
		r := NewReconstructor(&Params{InputDir: tt.path}, log.NewNoopLogger(), presenter.NewSession("t", rec))
		sum, err := r.Process(context.Background())
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: expected %v, got %v", tt.path, tt.want, err)
		}
		if sum != nil || len(rec.All()) != 0 {
			t.Errorf("%s: nothing should be processed or emitted", tt.path)
		}
	}
}

func TestCancelledContext(t *testing.T) {
	dir := t.TempDir()
	writeSeries(t, dir, synth.SeriesSpec{SeriesID: "S", Slices: 2, Rows: 8, Cols: 8})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewReconstructor(&Params{InputDir: dir}, log.NewNoopLogger(), presenter.NewSession("t", presenter.NewRecorder()))
	if _, err := r.Process(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestParamsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Processing.Workers = 2

	p, err := ParamsFromConfig(cfg, "/data")
	if err != nil {
		t.Fatalf("ParamsFromConfig failed: %v", err)
	}
	if p.InputDir != "/data" || p.Workers != 2 || p.MinSeriesSlices != series.MinSlices {
		t.Errorf("Unexpected params: %+v", p)
	}
	if len(p.Levels) != 3 || p.Levels[2].Label != "bone" || p.Levels[2].Color.B != 255 {
		t.Errorf("Unexpected levels: %+v", p.Levels)
	}

	cfg.Isosurface.Levels[0].Color = "red"
	if _, err := ParamsFromConfig(cfg, "/data"); err == nil {
		t.Error("Expected error for a malformed color")
	}
}

func TestSummaryText(t *testing.T) {
	s := &Summary{FilesTotal: 5, FilesValid: 4, FilesInvalid: 1, SeriesTotal: 2, MeshesEmitted: 3}
	text := s.Text()
	for _, want := range []string{"Total files: 5", "Invalid files: 1", "Meshes emitted: 3 (empty: 0, failed: 0)"} {
		if !strings.Contains(text, want) {
			t.Errorf("Summary missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "Not started") {
		t.Error("Zero skipped series should not be reported")
	}
}
