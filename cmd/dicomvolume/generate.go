package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dicomvolume/internal/synth"
)

func newGenerateCommand() *cobra.Command {
	var (
		out        string
		series     int
		slices     int
		size       int
		bits       int
		withExtras bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic DICOM folder with sphere phantom series",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				return fmt.Errorf("--out is required")
			}
			files, err := generateFolder(out, series, slices, size, bits, withExtras)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d files to %s\n", files, out)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&out, "out", "", "output directory")
	flags.IntVar(&series, "series", 2, "number of volume series")
	flags.IntVar(&slices, "slices", 16, "slices per series")
	flags.IntVar(&size, "size", 64, "rows and columns per slice")
	flags.IntVar(&bits, "bits", 16, "bits allocated per pixel (8 or 16)")
	flags.BoolVar(&withExtras, "with-extras", true, "add a single-slice series, a file without pixel data and a non-DICOM file")
	return cmd
}

// generateFolder writes the synthetic folder and returns the file count.
func generateFolder(out string, series, slices, size, bits int, extras bool) (int, error) {
	total := 0
	for i := 1; i <= series; i++ {
		paths, err := synth.WriteSeries(out, synth.SeriesSpec{
			SeriesID:    fmt.Sprintf("2.25.1000.%d", i),
			Description: fmt.Sprintf("Phantom %d", i),
			Modality:    "MR",
			PatientID:   "PHANTOM",
			Slices:      slices,
			Rows:        size,
			Cols:        size,
			Bits:        bits,
		})
		if err != nil {
			return total, err
		}
		total += len(paths)
	}
	if !extras {
		return total, nil
	}

	single, err := synth.WriteSeries(out, synth.SeriesSpec{
		SeriesID: "2.25.1000.99", Description: "Scout", Modality: "MR", PatientID: "PHANTOM",
		Slices: 1, Rows: size, Cols: size, Bits: bits,
	})
	if err != nil {
		return total, err
	}
	total += len(single)

	empty, err := synth.WriteSeries(out, synth.SeriesSpec{
		SeriesID: "2.25.1000.98", FilePrefix: "nopixels", Slices: 1, Rows: size, Cols: size, OmitPixelData: true,
	})
	if err != nil {
		return total, err
	}
	total += len(empty)

	if _, err := synth.WriteJunk(out, "README.txt"); err != nil {
		return total, err
	}
	return total + 1, nil
}
