// Package scanner walks an input folder and turns every file it can read as
// DICOM into an immutable slice record.
package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"dicomvolume/internal/models"
	"dicomvolume/pkg/log"
)

// Fallbacks used when an attribute is absent or blank.
const (
	DefaultSeriesID       = "UNKNOWN_SERIES"
	DefaultDescription    = "N/A"
	DefaultModality       = "N/A"
	DefaultPatientID      = "N/A"
	DefaultInstanceNumber = 0
)

var (
	// ErrFolderNotFound is returned when the input folder does not exist.
	ErrFolderNotFound = errors.New("folder does not exist")

	// ErrNotDirectory is returned when the input path is not a directory.
	ErrNotDirectory = errors.New("path is not a directory")
)

// Status classifies one scanned file.
type Status int

const (
	// StatusValid means the file parsed and carried decodable pixel data.
	StatusValid Status = iota
	// StatusNoPixelData means the file parsed but had no usable pixels.
	StatusNoPixelData
	// StatusInvalid means the file could not be parsed at all.
	StatusInvalid
)

func (s Status) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusNoPixelData:
		return "no-pixel-data"
	case StatusInvalid:
		return "invalid"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Entry is the per-file outcome of a scan.
type Entry struct {
	Path   string
	Status Status
	Err    error
}

// Result holds everything a scan produced. Records are kept in scan order.
type Result struct {
	Records []models.SliceRecord
	Entries []Entry

	// Total counts every regular file seen; Total == Valid + Invalid.
	Total   int
	Valid   int
	Invalid int

	// NoPixel counts the valid files skipped for missing pixel data.
	NoPixel int
}

// Scanner reads slice records from a folder tree.
type Scanner struct {
	log log.Logger
}

// New creates a scanner that reports through logger.
func New(logger log.Logger) *Scanner {
	return &Scanner{log: logger}
}

// CheckFolder verifies that path exists and is a directory.
func CheckFolder(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return errors.Wrap(ErrFolderNotFound, path)
	}
	if err != nil {
		return errors.Wrapf(err, "stat %s", path)
	}
	if !info.IsDir() {
		return errors.Wrap(ErrNotDirectory, path)
	}
	return nil
}

// Scan walks root recursively. The only error it returns is for an unusable
// root; per-file problems are recorded in the result.
func (s *Scanner) Scan(ctx context.Context, root string) (*Result, error) {
	if err := CheckFolder(root); err != nil {
		s.log.Error("invalid input folder", log.String("path", root), log.Err(err))
		return nil, err
	}

	s.log.Info("starting to load DICOM files", log.String("path", root))

	res := &Result{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			// Unreadable directories are skipped, not fatal.
			s.log.Warn("cannot read entry", log.String("path", path), log.Err(err))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !isFile(path, d) {
			return nil
		}

		res.Total++
		rec, entry := s.readFile(path)
		res.Entries = append(res.Entries, entry)

		switch entry.Status {
		case StatusValid:
			res.Valid++
			res.Records = append(res.Records, *rec)
		case StatusNoPixelData:
			res.Valid++
			res.NoPixel++
			s.log.Warn("no pixel data found in file", log.String("path", path), log.Err(entry.Err))
		case StatusInvalid:
			res.Invalid++
			s.log.Error("error processing file", log.String("path", path), log.Err(entry.Err))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	s.log.Info("loading complete",
		log.Int("total", res.Total),
		log.Int("valid", res.Valid),
		log.Int("invalid", res.Invalid),
		log.Int("no_pixel_data", res.NoPixel),
	)
	return res, nil
}

// isFile reports whether a walk entry is a regular file. Symlinks are
// followed to files only; linked directories are not descended into.
func isFile(path string, d fs.DirEntry) bool {
	if d.Type()&fs.ModeSymlink == 0 {
		return d.Type().IsRegular()
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// readFile parses one file and classifies it.
func (s *Scanner) readFile(path string) (*models.SliceRecord, Entry) {
	ds, err := dicom.ParseFile(path, nil)
	if err != nil {
		return nil, Entry{Path: path, Status: StatusInvalid, Err: errors.Wrap(err, "parse dicom")}
	}

	rec := &models.SliceRecord{
		Path:           path,
		SeriesID:       stringAttr(ds, tag.SeriesInstanceUID, DefaultSeriesID),
		Description:    stringAttr(ds, tag.SeriesDescription, DefaultDescription),
		Modality:       stringAttr(ds, tag.Modality, DefaultModality),
		PatientID:      stringAttr(ds, tag.PatientID, DefaultPatientID),
		InstanceNumber: intAttr(ds, tag.InstanceNumber, DefaultInstanceNumber),
	}
	s.log.Debug("processing instance",
		log.String("path", path),
		log.String("series", rec.SeriesID),
		log.Int("instance", rec.InstanceNumber),
	)

	grid, err := DecodePixels(ds)
	if err != nil {
		return nil, Entry{Path: path, Status: StatusNoPixelData, Err: err}
	}
	rec.Pixels = grid
	return rec, Entry{Path: path, Status: StatusValid}
}

// stringAttr returns the first value of a string element, or def when the
// element is missing or blank.
func stringAttr(ds dicom.Dataset, t tag.Tag, def string) string {
	elem, err := ds.FindElementByTag(t)
	if err != nil {
		return def
	}
	vals, ok := elem.Value.GetValue().([]string)
	if !ok || len(vals) == 0 {
		return def
	}
	v := strings.TrimSpace(strings.TrimRight(vals[0], "\x00"))
	if v == "" {
		return def
	}
	return v
}

// intAttr reads an integer element stored either as IS text or as binary ints.
func intAttr(ds dicom.Dataset, t tag.Tag, def int) int {
	elem, err := ds.FindElementByTag(t)
	if err != nil {
		return def
	}
	switch vals := elem.Value.GetValue().(type) {
	case []int:
		if len(vals) > 0 {
			return vals[0]
		}
	case []string:
		if len(vals) > 0 {
			if n, err := strconv.Atoi(strings.TrimSpace(vals[0])); err == nil {
				return n
			}
		}
	}
	return def
}
