package ontology

import (
	"errors"
	"fmt"
)

// ErrMissingCode is matched by every *MissingCodeError.
var ErrMissingCode = errors.New("code missing from hierarchy index")

// Index names reported by MissingCodeError.
const (
	IndexPath = "path"
	IndexText = "text"
)

// MissingCodeError reports a lookup miss while resolving Code. Ref is the code
// that could not be found; it differs from Code when an ancestor is missing.
type MissingCodeError struct {
	Code  string
	Ref   string
	Index string
}

func (e *MissingCodeError) Error() string {
	if e.Ref != "" && e.Ref != e.Code {
		return fmt.Sprintf("resolve %s: ancestor %s missing from %s index", e.Code, e.Ref, e.Index)
	}
	return fmt.Sprintf("resolve %s: missing from %s index", e.Code, e.Index)
}

// Is lets errors.Is(err, ErrMissingCode) match.
func (e *MissingCodeError) Is(target error) bool {
	return target == ErrMissingCode
}

// ConstraintViolation describes a row dropped by the not-null filter. It is
// expected for partial source data and is not treated as an error.
type ConstraintViolation struct {
	Code   string
	Column string
}

func (v ConstraintViolation) String() string {
	return fmt.Sprintf("%s: %s is empty", v.Code, v.Column)
}
