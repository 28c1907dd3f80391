package presenter

import (
	"net/url"
	"strings"

	"dicomvolume/pkg/isosurface"
)

// Path roots of the emission hierarchy
const (
	SeriesRoot  = "series"
	TensorRoot  = "volumes/tensor"
	MeshRoot    = "volumes/mesh"
	SummaryPath = "summary"

	metadataLeaf = "metadata"
)

// EscapeID makes a series id safe to use as a single path segment. Distinct
// ids always map to distinct segments.
func EscapeID(id string) string {
	switch id {
	case "":
		// a lone % never comes out of PathEscape
		return "%"
	case ".", "..":
		return strings.Repeat("%2E", len(id))
	}
	return url.PathEscape(id)
}

// SeriesPath is where per-instance images of a series are emitted.
func SeriesPath(seriesID string) string {
	return SeriesRoot + "/" + EscapeID(seriesID)
}

// TensorPath is where the stacked volume of a series is emitted.
func TensorPath(seriesID string) string {
	return TensorRoot + "/" + EscapeID(seriesID)
}

// MeshPath is where the isosurface of a series at threshold t is emitted.
func MeshPath(seriesID string, t float64) string {
	return MeshRoot + "/" + EscapeID(seriesID) + "/threshold_" + isosurface.FormatThreshold(t)
}

// MetadataPath is the text document attached to the entity at path.
func MetadataPath(path string) string {
	return path + "/" + metadataLeaf
}

// IsMetadata reports whether path addresses a metadata document.
func IsMetadata(path string) bool {
	return strings.HasSuffix(path, "/"+metadataLeaf)
}
