package configx

import (
	"go.eggybyte.com/scf/core/errors"
)

// IsConfigMismatch reports whether err means a key was requested with a
// config other than the one it was first created with.
func IsConfigMismatch(err error) bool {
	return errors.IsCode(err, errors.CodeConfigMismatch)
}

// IsRequiredMissing reports whether err means a required property resolved
// to nothing.
func IsRequiredMissing(err error) bool {
	return errors.IsCode(err, errors.CodeRequiredMissing)
}

// IsArgumentError reports whether err is a construction or argument error.
func IsArgumentError(err error) bool {
	return errors.IsCode(err, errors.CodeInvalidArgument)
}
