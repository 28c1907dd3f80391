package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"dicomvolume/internal/models"
	"dicomvolume/internal/synth"
	"dicomvolume/pkg/log"
)

func TestScanClassifiesFiles(t *testing.T) {
	dir := t.TempDir()
	if _, err := synth.WriteSeries(dir, synth.SeriesSpec{
		SeriesID: "1.2.840.1", Description: "T1 AX", Modality: "MR", PatientID: "P42",
		Slices: 2, Rows: 6, Cols: 5,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := synth.WriteSeries(filepath.Join(dir, "sub", "deeper"), synth.SeriesSpec{
		SeriesID: "1.2.840.2", Slices: 1, Rows: 4, Cols: 4, OmitPixelData: true,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := synth.WriteJunk(dir, "junk.bin"); err != nil {
		t.Fatal(err)
	}

	res, err := New(log.NewNoopLogger()).Scan(context.Background(), dir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if res.Total != 4 || res.Valid != 3 || res.Invalid != 1 || res.NoPixel != 1 {
		t.Errorf("Unexpected counts: total %d valid %d invalid %d nopixel %d",
			res.Total, res.Valid, res.Invalid, res.NoPixel)
	}
	if res.Total != res.Valid+res.Invalid {
		t.Error("Counts do not balance")
	}
	if len(res.Entries) != res.Total {
		t.Errorf("Expected one entry per file, got %d", len(res.Entries))
	}
	if len(res.Records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(res.Records))
	}

	rec := res.Records[0]
	if rec.SeriesID != "1.2.840.1" || rec.Description != "T1 AX" || rec.Modality != "MR" || rec.PatientID != "P42" {
		t.Errorf("Unexpected attributes: %+v", rec)
	}
	if rows, cols := rec.Pixels.Shape(); rows != 6 || cols != 5 {
		t.Errorf("Expected shape (6, 5), got (%d, %d)", rows, cols)
	}
	if rec.Pixels.DType != models.Uint16 {
		t.Errorf("Expected uint16, got %s", rec.Pixels.DType)
	}

	for _, e := range res.Entries {
		if filepath.Base(e.Path) == "junk.bin" && (e.Status != StatusInvalid || e.Err == nil) {
			t.Errorf("Junk file should be invalid with an error, got %s", e.Status)
		}
	}
}

func TestScanAttributeDefaults(t *testing.T) {
	dir := t.TempDir()
	if _, err := synth.WriteSeries(dir, synth.SeriesSpec{
		FilePrefix: "anon", OmitSeriesID: true, Slices: 1, Rows: 3, Cols: 3, Bits: 8,
	}); err != nil {
		t.Fatal(err)
	}

	res, err := New(log.NewNoopLogger()).Scan(context.Background(), dir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(res.Records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(res.Records))
	}

	rec := res.Records[0]
	if rec.SeriesID != DefaultSeriesID {
		t.Errorf("Expected %s, got %s", DefaultSeriesID, rec.SeriesID)
	}
	if rec.Description != DefaultDescription || rec.Modality != DefaultModality || rec.PatientID != DefaultPatientID {
		t.Errorf("Expected N/A defaults, got %+v", rec)
	}
	if rec.InstanceNumber != 1 {
		t.Errorf("Expected instance 1, got %d", rec.InstanceNumber)
	}
	if rec.Pixels.DType != models.Uint8 {
		t.Errorf("Expected uint8, got %s", rec.Pixels.DType)
	}
}

func TestScanPixelValues(t *testing.T) {
	dir := t.TempDir()
	if _, err := synth.WriteSeries(dir, synth.SeriesSpec{
		SeriesID: "u", Slices: 1, Rows: 2, Cols: 2, Pattern: synth.Uniform(0.5),
	}); err != nil {
		t.Fatal(err)
	}

	res, err := New(log.NewNoopLogger()).Scan(context.Background(), dir)
	if err != nil || len(res.Records) != 1 {
		t.Fatalf("Scan failed: %v", err)
	}
	for i, v := range res.Records[0].Pixels.Data {
		if v != 2000 {
			t.Errorf("Pixel %d: expected 2000, got %v", i, v)
		}
	}
}

func TestScanFollowsFileSymlinks(t *testing.T) {
	src := t.TempDir()
	paths, err := synth.WriteSeries(src, synth.SeriesSpec{SeriesID: "linked", Slices: 2, Rows: 4, Cols: 4})
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	for i, p := range paths {
		if err := os.Symlink(p, filepath.Join(dir, filepath.Base(p))); err != nil {
			t.Skipf("symlinks unavailable: %v", err)
		}
		if i == 0 {
			// A linked directory must not be walked.
			if err := os.Symlink(src, filepath.Join(dir, "linked_dir")); err != nil {
				t.Fatal(err)
			}
		}
	}

	res, err := New(log.NewNoopLogger()).Scan(context.Background(), dir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if res.Total != 2 || res.Valid != 2 || res.Invalid != 0 {
		t.Errorf("Expected 2 total / 2 valid / 0 invalid, got %d / %d / %d", res.Total, res.Valid, res.Invalid)
	}
	if len(res.Records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(res.Records))
	}
	for _, rec := range res.Records {
		if rec.SeriesID != "linked" {
			t.Errorf("Unexpected series %q", rec.SeriesID)
		}
	}
}

func TestCheckFolder(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	if err := os.WriteFile(file, nil, 0644); err != nil {
		t.Fatal(err)
	}

	if err := CheckFolder(dir); err != nil {
		t.Errorf("Expected directory to pass, got %v", err)
	}
	if err := CheckFolder(filepath.Join(dir, "missing")); !errors.Is(err, ErrFolderNotFound) {
		t.Errorf("Expected ErrFolderNotFound, got %v", err)
	}
	if err := CheckFolder(file); !errors.Is(err, ErrNotDirectory) {
		t.Errorf("Expected ErrNotDirectory, got %v", err)
	}

	if _, err := New(log.NewNoopLogger()).Scan(context.Background(), file); !errors.Is(err, ErrNotDirectory) {
		t.Errorf("Scan should reject a file root, got %v", err)
	}
}

func TestStatusString(t *testing.T) {
	if StatusValid.String() != "valid" || StatusNoPixelData.String() != "no-pixel-data" || StatusInvalid.String() != "invalid" {
		t.Error("Unexpected status names")
	}
}
