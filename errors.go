package isosurface

import "github.com/pkg/errors"

var (
	// ErrInvalidInput is returned when extraction parameters can not describe
	// a surface, i.e. non-positive chunk size or a max depth of zero.
	ErrInvalidInput = errors.New("invalid extraction input")
	// ErrNonFinite is returned when a Sampler returns NaN or an infinity.
	// The surface is undefined at that point so extraction aborts.
	ErrNonFinite = errors.New("non-finite field sample")
)
