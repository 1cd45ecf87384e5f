// Package geometry provides the planar primitives used by the demand-zone
// engine and the proximity queries: point validation, degree-based
// distance, polygon containment, centroids and geometry codecs.
package geometry

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/healthmap/internal/model"
)

// NewPoint validates a coordinate pair. Values must be finite with
// x in [-180, 180] and y in [-90, 90].
func NewPoint(x, y float64) (model.Point, error) {
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return model.Point{}, eris.Wrap(model.ErrInvalidInput, "geometry: coordinate is not finite")
	}
	if x < -180 || x > 180 {
		return model.Point{}, eris.Wrapf(model.ErrInvalidInput, "geometry: x %v out of range", x)
	}
	if y < -90 || y > 90 {
		return model.Point{}, eris.Wrapf(model.ErrInvalidInput, "geometry: y %v out of range", y)
	}
	return model.Point{X: x, Y: y}, nil
}

// ParsePoint parses and validates a coordinate pair given as strings.
func ParsePoint(xs, ys string) (model.Point, error) {
	xs, ys = strings.TrimSpace(xs), strings.TrimSpace(ys)
	if xs == "" || ys == "" {
		return model.Point{}, eris.Wrap(model.ErrInvalidInput, "geometry: x and y are required")
	}
	x, err := strconv.ParseFloat(xs, 64)
	if err != nil {
		return model.Point{}, eris.Wrapf(model.ErrInvalidInput, "geometry: parse x %q", xs)
	}
	y, err := strconv.ParseFloat(ys, 64)
	if err != nil {
		return model.Point{}, eris.Wrapf(model.ErrInvalidInput, "geometry: parse y %q", ys)
	}
	return NewPoint(x, y)
}

// ParseCoord parses an optional registry coordinate. Blank or unparsable
// values yield nil rather than an error; the registry treats such rows as
// facilities without a location.
func ParseCoord(xs, ys string) *model.Point {
	p, err := ParsePoint(xs, ys)
	if err != nil {
		return nil
	}
	return &p
}
