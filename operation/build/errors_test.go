package build

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsBuildError(t *testing.T) {
	dirErr := &FailedDirectory{Path: "/tmp/work", Reason: "permission denied"}
	genErr := &GenericError{Err: errors.New("compiler exploded")}

	assert.True(t, IsBuildError(dirErr))
	assert.True(t, IsBuildError(genErr))
	assert.True(t, IsBuildError(fmt.Errorf("stage setup: %w", dirErr)))
	assert.False(t, IsBuildError(errors.New("plain")))
	assert.False(t, IsBuildError(nil))
}

func TestBuildErrorMessages(t *testing.T) {
	dirErr := &FailedDirectory{Path: "/tmp/work", Reason: "permission denied"}
	assert.Equal(t, "failed creating/ensuring dir /tmp/work: permission denied", dirErr.Error())

	cause := errors.New("compiler exploded")
	genErr := &GenericError{Err: cause}
	assert.Equal(t, "failed build operation: compiler exploded", genErr.Error())
	assert.ErrorIs(t, genErr, cause)
}
