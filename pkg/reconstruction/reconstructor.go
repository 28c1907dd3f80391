// Package reconstruction runs the whole pipeline: scan a folder, emit every
// slice, group slices into series, stack each series into a volume, extract
// isosurfaces at every configured threshold and emit the results.
package reconstruction

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"dicomvolume/internal/models"
	"dicomvolume/pkg/config"
	"dicomvolume/pkg/isosurface"
	"dicomvolume/pkg/log"
	"dicomvolume/pkg/presenter"
	"dicomvolume/pkg/scanner"
	"dicomvolume/pkg/series"
	"dicomvolume/pkg/volume"
)

// Params holds the reconstruction parameters.
type Params struct {
	// InputDir is the folder scanned recursively for DICOM files.
	InputDir string

	// MinSeriesSlices is the smallest series that is stacked into a volume.
	// Smaller series still get their slices emitted.
	MinSeriesSlices int

	// MaxVoxels caps depth*height*width of one volume; zero disables the guard.
	MaxVoxels int

	// Workers is how many series are processed at once. One keeps the
	// pipeline fully sequential.
	Workers int

	// Levels is the threshold table; empty means isosurface.DefaultLevels.
	Levels []isosurface.Level
}

// ParamsFromConfig builds Params for inputDir from a validated configuration.
func ParamsFromConfig(cfg *config.Config, inputDir string) (*Params, error) {
	levels := make([]isosurface.Level, 0, len(cfg.Isosurface.Levels))
	for _, spec := range cfg.Isosurface.Levels {
		l, err := isosurface.NewLevel(spec.Value, spec.Label, spec.Color)
		if err != nil {
			return nil, err
		}
		levels = append(levels, l)
	}
	return &Params{
		InputDir:        inputDir,
		MinSeriesSlices: cfg.Processing.MinSeriesSlices,
		MaxVoxels:       cfg.Processing.MaxVoxels,
		Workers:         cfg.Processing.Workers,
		Levels:          levels,
	}, nil
}

// Reconstructor drives one run over one input folder.
type Reconstructor struct {
	params    Params
	log       log.Logger
	out       *presenter.Session
	scanner   *scanner.Scanner
	builder   *volume.Builder
	extractor *isosurface.Extractor
}

// NewReconstructor creates a reconstructor that emits through session.
func NewReconstructor(params *Params, logger log.Logger, session *presenter.Session) *Reconstructor {
	p := *params
	if p.MinSeriesSlices < series.MinSlices {
		p.MinSeriesSlices = series.MinSlices
	}
	if p.Workers < 1 {
		p.Workers = 1
	}
	return &Reconstructor{
		params:    p,
		log:       logger,
		out:       session,
		scanner:   scanner.New(logger),
		builder:   volume.NewBuilder(p.MaxVoxels),
		extractor: isosurface.NewExtractor(p.Levels, logger),
	}
}

// Process runs the complete pipeline. The returned error is non-nil only
// when the input folder is unusable or ctx is cancelled; every per-file,
// per-series and per-threshold problem is counted in the summary instead.
func (r *Reconstructor) Process(ctx context.Context) (*Summary, error) {
	start := time.Now()

	// Step 1: Scan the input folder
	r.log.Info("Step 1: Scanning input folder", log.String("path", r.params.InputDir))
	scan, err := r.scanner.Scan(ctx, r.params.InputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan input folder: %w", err)
	}

	sum := &Summary{
		FilesTotal:   scan.Total,
		FilesValid:   scan.Valid,
		FilesInvalid: scan.Invalid,
		FilesNoPixel: scan.NoPixel,
		SlicesKept:   len(scan.Records),
	}
	if len(scan.Records) == 0 {
		r.log.Error("no valid DICOM files found", log.String("path", r.params.InputDir))
		r.finish(sum, start)
		return sum, nil
	}

	// Step 2: Group and order slices by series
	r.log.Info("Step 2: Sorting DICOM files by series UID, then by instance number")
	groups := series.Aggregate(scan.Records)
	sum.SeriesTotal = len(groups)

	// Step 3: Emit every slice, including those of undersized series
	r.log.Info("Step 3: Emitting individual slices", log.Int("slices", sum.SlicesKept))
	for _, s := range groups {
		r.emitSlices(s)
	}

	// Step 4: Build volumes and meshes
	qualifying, undersized := series.Split(groups, r.params.MinSeriesSlices)
	for _, s := range undersized {
		r.log.Warn("series has too few images, skipping 3D volume creation",
			log.String("series", s.ID),
			log.Int("slices", s.Len()),
			log.Int("min", r.params.MinSeriesSlices),
		)
	}
	sum.SeriesUndersized = len(undersized)

	r.log.Info("Step 4: Creating 3D volumes and isosurfaces",
		log.Int("series", len(qualifying)),
		log.Int("workers", r.params.Workers),
	)
	err = r.processSeries(ctx, qualifying, sum)

	r.finish(sum, start)
	return sum, err
}

// finish logs and emits the summary.
func (r *Reconstructor) finish(sum *Summary, start time.Time) {
	r.log.Info("Step 5: Emitting summary")
	r.out.EmitText(presenter.SummaryPath, sum.Text())
	r.log.Info("processing complete",
		log.Int("files", sum.FilesTotal),
		log.Int("valid", sum.FilesValid),
		log.Int("invalid", sum.FilesInvalid),
		log.Int("series", sum.SeriesTotal),
		log.Int("volumes", sum.SeriesBuilt),
		log.Int("meshes", sum.MeshesEmitted),
		log.Duration("elapsed", time.Since(start)),
	)
}

// processSeries runs every qualifying series through build, extract and
// emit, at most Workers at a time. Series are started in order; with one
// worker each finishes before the next starts.
func (r *Reconstructor) processSeries(ctx context.Context, qualifying []models.Series, sum *Summary) error {
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sem = make(chan struct{}, r.params.Workers)
		err error
	)

schedule:
	for i, s := range qualifying {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			err = ctx.Err()
			sum.SeriesSkipped = len(qualifying) - i
			r.log.Warn("cancelled, not starting remaining series", log.Int("remaining", sum.SeriesSkipped))
			break schedule
		}

		wg.Add(1)
		go func(s models.Series) {
			defer wg.Done()
			defer func() { <-sem }()

			res := r.processOne(s)

			mu.Lock()
			sum.merge(res)
			mu.Unlock()
		}(s)
	}

	wg.Wait()
	return err
}

// processOne isolates one series: nothing it does can affect another.
func (r *Reconstructor) processOne(s models.Series) (res seriesResult) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("series processing panicked",
				log.String("series", s.ID),
				log.Any("panic", p),
				log.String("stack", string(debug.Stack())),
			)
			res.failed = 1
		}
	}()

	r.log.Info("creating 3D volume", log.String("series", s.ID), log.Int("slices", s.Len()))
	vol, err := r.builder.Build(s)
	if err != nil {
		r.log.Error("error creating 3D volume", log.String("series", s.ID), log.Err(err))
		switch {
		case errors.Is(err, volume.ErrShapeMismatch):
			res.shapeMismatch = 1
		case errors.Is(err, volume.ErrVolumeTooLarge):
			res.tooLarge = 1
		default:
			res.failed = 1
		}
		return res
	}
	res.built = 1

	tensorPath := presenter.TensorPath(s.ID)
	r.out.EmitTensor(tensorPath, vol)
	r.out.EmitText(presenter.MetadataPath(tensorPath), volumeMetadata(vol))
	r.log.Info("created 3D volume", log.String("series", s.ID), log.String("shape", vol.ShapeString()))

	field, degenerate := isosurface.Normalize(vol)
	if degenerate {
		r.log.Warn("volume has a single value, normalized to zero", log.String("series", s.ID))
		res.degenerate = 1
	}

	for _, out := range r.extractor.ExtractAll(s.ID, field) {
		switch out.Status {
		case isosurface.StatusOK:
			meshPath := presenter.MeshPath(s.ID, out.Level.Value)
			r.out.EmitMesh(meshPath, out.Mesh)
			r.out.EmitText(presenter.MetadataPath(meshPath), meshMetadata(s.ID, out.Mesh))
			res.meshes++
		case isosurface.StatusEmpty:
			res.meshesEmpty++
		case isosurface.StatusFailed:
			res.meshesFailed++
		}
	}
	return res
}

// emitSlices emits the image and metadata of every slice in s, in order.
func (r *Reconstructor) emitSlices(s models.Series) {
	path := presenter.SeriesPath(s.ID)
	for _, rec := range s.Slices {
		r.out.EmitImage(path, rec.Pixels)
		r.out.EmitText(presenter.MetadataPath(path), sliceMetadata(rec))
		r.log.Info("logged DICOM",
			log.String("path", rec.Path),
			log.String("series", rec.SeriesID),
			log.Int("instance", rec.InstanceNumber),
		)
	}
}
