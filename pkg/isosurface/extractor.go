package isosurface

import (
	"fmt"
	"runtime/debug"

	"dicomvolume/internal/models"
	"dicomvolume/pkg/log"
)

// Status is the result class of one threshold extraction.
type Status int

const (
	// StatusOK means a non-empty mesh was produced.
	StatusOK Status = iota
	// StatusEmpty means the level set produced no vertices or no faces.
	StatusEmpty
	// StatusFailed means extraction returned an error or panicked.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusEmpty:
		return "empty"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Outcome is the per-threshold result. Mesh is set only when Status is StatusOK.
type Outcome struct {
	Level  Level
	Mesh   *models.Mesh
	Status Status
	Err    error
}

// Extractor runs a threshold table against normalized fields.
type Extractor struct {
	levels []Level
	log    log.Logger

	// extract is the surface algorithm; replaced in tests to inject failures
	extract func(f *Field, iso float64) (*models.Mesh, error)
}

// NewExtractor creates an extractor for levels. An empty table falls back to
// DefaultLevels.
func NewExtractor(levels []Level, logger log.Logger) *Extractor {
	if len(levels) == 0 {
		levels = DefaultLevels()
	}
	return &Extractor{
		levels:  append([]Level(nil), levels...),
		log:     logger,
		extract: Extract,
	}
}

// Levels returns a copy of the threshold table in extraction order.
func (e *Extractor) Levels() []Level {
	return append([]Level(nil), e.levels...)
}

// ExtractAll extracts one surface per level from f. Every level yields an
// Outcome, in table order; an empty or failed level never affects the others.
func (e *Extractor) ExtractAll(seriesID string, f *Field) []Outcome {
	outcomes := make([]Outcome, 0, len(e.levels))
	for _, l := range e.levels {
		out := e.extractLevel(f, l)

		fields := []log.Field{
			log.String("series", seriesID),
			log.Float64("threshold", l.Value),
			log.String("label", l.Label),
		}
		switch out.Status {
		case StatusOK:
			e.log.Debug("extracted isosurface", append(fields,
				log.Int("vertices", len(out.Mesh.Vertices)),
				log.Int("faces", len(out.Mesh.Faces)))...)
		case StatusEmpty:
			e.log.Warn("no surface found at threshold", fields...)
		case StatusFailed:
			e.log.Error("isosurface extraction failed", append(fields, log.Err(out.Err))...)
		}
		outcomes = append(outcomes, out)
	}
	return outcomes
}

// extractLevel runs one threshold. Panics are turned into a failed outcome.
func (e *Extractor) extractLevel(f *Field, l Level) (out Outcome) {
	out.Level = l
	defer func() {
		if r := recover(); r != nil {
			e.log.Debug("recovered extraction panic", log.String("stack", string(debug.Stack())))
			out = Outcome{Level: l, Status: StatusFailed, Err: fmt.Errorf("panic at threshold %v: %v", l.Value, r)}
		}
	}()

	mesh, err := e.extract(f, l.Value)
	if err != nil {
		out.Status, out.Err = StatusFailed, fmt.Errorf("threshold %v: %w", l.Value, err)
		return out
	}
	if mesh == nil || len(mesh.Vertices) == 0 || len(mesh.Faces) == 0 {
		out.Status = StatusEmpty
		return out
	}
	if err := mesh.Validate(); err != nil {
		out.Status, out.Err = StatusFailed, fmt.Errorf("threshold %v: %w", l.Value, err)
		return out
	}

	mesh.Color = l.Color
	mesh.Label = l.Label
	mesh.Threshold = l.Value
	out.Mesh, out.Status = mesh, StatusOK
	return out
}
