package build

import (
	"errors"
	"fmt"
)

// buildError marks the abnormal-failure taxonomy of build machinery. Expected
// build failures travel through the boolean stage result instead; these
// errors are reserved for conditions a correct backend does not hit cleanly.
type buildError interface {
	error
	buildError()
}

// IsBuildError reports whether err belongs to the build error taxonomy.
func IsBuildError(err error) bool {
	var be buildError
	return errors.As(err, &be)
}

// FailedDirectory reports a working directory that could not be created or
// validated.
type FailedDirectory struct {
	Path   string
	Reason string
}

func (e *FailedDirectory) Error() string {
	return fmt.Sprintf("failed creating/ensuring dir %s: %s", e.Path, e.Reason)
}

func (e *FailedDirectory) buildError() {}

// GenericError wraps an arbitrary cause as a failed build operation.
type GenericError struct {
	Err error
}

func (e *GenericError) Error() string {
	return fmt.Sprintf("failed build operation: %v", e.Err)
}

func (e *GenericError) Unwrap() error { return e.Err }

func (e *GenericError) buildError() {}
