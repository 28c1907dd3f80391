// Package presenter defines the outward emission contract of the pipeline
// and its implementations. Emissions are addressed only by hierarchical path
// and are fire-and-forget: presenters log their own failures.
package presenter

import (
	"errors"
	"io"
	"sync"

	"dicomvolume/internal/models"
)

// Presenter receives the images, tensors, meshes and text the pipeline emits.
type Presenter interface {
	EmitImage(path string, grid *models.PixelGrid)
	EmitTensor(path string, vol *models.Volume)
	EmitMesh(path string, mesh *models.Mesh)
	EmitText(path, text string)
}

// Multi fans every emission out to each presenter in order.
type Multi []Presenter

func (m Multi) EmitImage(path string, grid *models.PixelGrid) {
	for _, p := range m {
		p.EmitImage(path, grid)
	}
}

func (m Multi) EmitTensor(path string, vol *models.Volume) {
	for _, p := range m {
		p.EmitTensor(path, vol)
	}
}

func (m Multi) EmitMesh(path string, mesh *models.Mesh) {
	for _, p := range m {
		p.EmitMesh(path, mesh)
	}
}

func (m Multi) EmitText(path, text string) {
	for _, p := range m {
		p.EmitText(path, text)
	}
}

// Session is the explicit handle a run emits through. It serializes
// emissions, so presenters behind it need no locking of their own, and it
// owns their resources until Close.
type Session struct {
	name string
	out  Multi

	mu     sync.Mutex
	closed bool
}

// NewSession opens a session named name over presenters.
func NewSession(name string, presenters ...Presenter) *Session {
	return &Session{name: name, out: Multi(presenters)}
}

// Name returns the session name
func (s *Session) Name() string {
	return s.name
}

func (s *Session) EmitImage(path string, grid *models.PixelGrid) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.out.EmitImage(path, grid)
	}
}

func (s *Session) EmitTensor(path string, vol *models.Volume) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.out.EmitTensor(path, vol)
	}
}

func (s *Session) EmitMesh(path string, mesh *models.Mesh) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.out.EmitMesh(path, mesh)
	}
}

func (s *Session) EmitText(path, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.out.EmitText(path, text)
	}
}

// Close closes every presenter that implements io.Closer. Emissions after
// Close are dropped. Calling Close again is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	for _, p := range s.out {
		if c, ok := p.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
