package presenter

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"dicomvolume/internal/models"
	"dicomvolume/pkg/log"
	"dicomvolume/pkg/stl"
	"dicomvolume/pkg/visualization"
)

// DirPresenter writes emissions as files under a root directory, mirroring
// the emission hierarchy:
//
//	<path>/image_NNNN.png     one per EmitImage, numbered in call order
//	<path>/tensor.bin         little-endian float64, depth-major
//	<path>/tensor_<plane>.png middle axial, coronal and sagittal planes
//	<path>/mesh.stl           binary STL
//	<path>.txt                text; repeats get a _NNNN suffix
//
// A DirPresenter is not safe for concurrent use; wrap it in a Session.
type DirPresenter struct {
	root string
	log  log.Logger

	// counts tracks emissions per (kind, path) for file numbering
	counts map[string]int
}

// NewDirPresenter creates the root directory and returns a presenter over it.
func NewDirPresenter(root string, logger log.Logger) (*DirPresenter, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	return &DirPresenter{root: root, log: logger, counts: make(map[string]int)}, nil
}

// Root returns the output directory
func (p *DirPresenter) Root() string {
	return p.root
}

func (p *DirPresenter) next(kind Kind, path string) int {
	key := string(kind) + ":" + path
	n := p.counts[key]
	p.counts[key] = n + 1
	return n
}

// dir maps an emission path to a directory under root.
func (p *DirPresenter) dir(path string) (string, error) {
	d := filepath.Join(p.root, filepath.FromSlash(path))
	return d, os.MkdirAll(d, 0755)
}

func (p *DirPresenter) fail(what, path string, err error) {
	p.log.Error("failed to write "+what, log.String("path", path), log.Err(err))
}

func (p *DirPresenter) EmitImage(path string, grid *models.PixelGrid) {
	n := p.next(KindImage, path)
	dir, err := p.dir(path)
	if err != nil {
		p.fail("image", path, err)
		return
	}

	label := fmt.Sprintf("#%d %dx%d %s", n, grid.Cols, grid.Rows, grid.DType)
	img := visualization.Annotate(visualization.GridImage(grid), label)

	file := filepath.Join(dir, fmt.Sprintf("image_%04d.png", n))
	if err := visualization.SavePNG(img, file); err != nil {
		p.fail("image", path, err)
		return
	}
	p.log.Debug("wrote image", log.String("file", file))
}

func (p *DirPresenter) EmitTensor(path string, vol *models.Volume) {
	dir, err := p.dir(path)
	if err != nil {
		p.fail("tensor", path, err)
		return
	}

	file := filepath.Join(dir, "tensor.bin")
	if err := writeFloat64s(file, vol.Data); err != nil {
		p.fail("tensor", path, err)
		return
	}
	if _, err := visualization.NewViewer(vol).SaveMidSlices(dir, "tensor"); err != nil {
		p.fail("tensor planes", path, err)
		return
	}
	p.log.Debug("wrote tensor", log.String("file", file), log.String("shape", vol.ShapeString()))
}

func (p *DirPresenter) EmitMesh(path string, mesh *models.Mesh) {
	dir, err := p.dir(path)
	if err != nil {
		p.fail("mesh", path, err)
		return
	}

	file := filepath.Join(dir, "mesh.stl")
	if err := stl.SaveToSTL(file, stl.FromMesh(mesh)); err != nil {
		p.fail("mesh", path, err)
		return
	}
	p.log.Debug("wrote mesh", log.String("file", file), log.Int("faces", len(mesh.Faces)))
}

func (p *DirPresenter) EmitText(path, text string) {
	n := p.next(KindText, path)
	base := filepath.Join(p.root, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(base), 0755); err != nil {
		p.fail("text", path, err)
		return
	}

	file := base + ".txt"
	if n > 0 {
		file = fmt.Sprintf("%s_%04d.txt", base, n)
	}
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	if err := os.WriteFile(file, []byte(text), 0644); err != nil {
		p.fail("text", path, err)
	}
}

func writeFloat64s(file string, data []float64) error {
	f, err := os.Create(file)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)
	var buf [8]byte
	for _, v := range data {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		if _, err := w.Write(buf[:]); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
