package dataflow

import "github.com/cockroachdb/errors"

// ErrShape marks arity and variant mismatches: indexing a non-tuple value,
// positions outside the bound state, tuples of the wrong arity and the like.
// They indicate a malformed flow rather than bad data.
var ErrShape = errors.New("shape mismatch")

// ShapeErrorf returns an error marked as ErrShape.
func ShapeErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrShape)
}

func shapeErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.NewWithDepthf(1, format, args...), ErrShape)
}

// IsShapeError reports whether err (or anything it wraps) is a shape error.
func IsShapeError(err error) bool {
	return errors.Is(err, ErrShape)
}
