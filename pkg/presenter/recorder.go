package presenter

import (
	"sort"
	"strings"
	"sync"

	"dicomvolume/internal/models"
)

// Kind is the type of an emission
type Kind string

const (
	KindImage  Kind = "image"
	KindTensor Kind = "tensor"
	KindMesh   Kind = "mesh"
	KindText   Kind = "text"
)

// Emission is one recorded presenter call
type Emission struct {
	Kind   Kind
	Path   string
	Image  *models.PixelGrid
	Tensor *models.Volume
	Mesh   *models.Mesh
	Text   string
}

// Recorder keeps every emission in memory, in call order.
type Recorder struct {
	mu        sync.Mutex
	emissions []Emission
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) add(e Emission) {
	r.mu.Lock()
	r.emissions = append(r.emissions, e)
	r.mu.Unlock()
}

func (r *Recorder) EmitImage(path string, grid *models.PixelGrid) {
	r.add(Emission{Kind: KindImage, Path: path, Image: grid})
}

func (r *Recorder) EmitTensor(path string, vol *models.Volume) {
	r.add(Emission{Kind: KindTensor, Path: path, Tensor: vol})
}

func (r *Recorder) EmitMesh(path string, mesh *models.Mesh) {
	r.add(Emission{Kind: KindMesh, Path: path, Mesh: mesh})
}

func (r *Recorder) EmitText(path, text string) {
	r.add(Emission{Kind: KindText, Path: path, Text: text})
}

// All returns a copy of every emission
func (r *Recorder) All() []Emission {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Emission(nil), r.emissions...)
}

// Filter returns the emissions of kind k whose path starts with prefix.
func (r *Recorder) Filter(k Kind, prefix string) []Emission {
	var out []Emission
	for _, e := range r.All() {
		if e.Kind == k && strings.HasPrefix(e.Path, prefix) {
			out = append(out, e)
		}
	}
	return out
}

// Count returns the number of emissions of kind k under prefix
func (r *Recorder) Count(k Kind, prefix string) int {
	return len(r.Filter(k, prefix))
}

// Paths returns the distinct paths emitted with kind k, sorted.
func (r *Recorder) Paths(k Kind) []string {
	seen := make(map[string]bool)
	var paths []string
	for _, e := range r.All() {
		if e.Kind == k && !seen[e.Path] {
			seen[e.Path] = true
			paths = append(paths, e.Path)
		}
	}
	sort.Strings(paths)
	return paths
}

// Text returns the last text emitted at path, if any.
func (r *Recorder) Text(path string) (string, bool) {
	all := r.All()
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].Kind == KindText && all[i].Path == path {
			return all[i].Text, true
		}
	}
	return "", false
}
