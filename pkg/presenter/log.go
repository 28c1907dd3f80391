package presenter

import (
	"fmt"

	"dicomvolume/internal/models"
	"dicomvolume/pkg/log"
)

// LogPresenter reports every emission through a logger. It stands in for a
// viewer when nothing is written to disk.
type LogPresenter struct {
	log log.Logger
}

// NewLogPresenter creates a presenter that logs to logger
func NewLogPresenter(logger log.Logger) *LogPresenter {
	return &LogPresenter{log: logger}
}

func (p *LogPresenter) EmitImage(path string, grid *models.PixelGrid) {
	p.log.Info("emit image",
		log.String("path", path),
		log.String("shape", fmt.Sprintf("(%d, %d)", grid.Rows, grid.Cols)),
		log.String("dtype", string(grid.DType)),
	)
}

func (p *LogPresenter) EmitTensor(path string, vol *models.Volume) {
	p.log.Info("emit tensor",
		log.String("path", path),
		log.String("shape", vol.ShapeString()),
		log.String("dtype", string(vol.DType)),
	)
}

func (p *LogPresenter) EmitMesh(path string, mesh *models.Mesh) {
	p.log.Info("emit mesh",
		log.String("path", path),
		log.Int("vertices", len(mesh.Vertices)),
		log.Int("faces", len(mesh.Faces)),
		log.String("label", mesh.Label),
	)
}

func (p *LogPresenter) EmitText(path, text string) {
	p.log.Debug("emit text", log.String("path", path), log.Int("bytes", len(text)))
}
