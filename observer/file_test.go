package observer

import (
	"bytes"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projecteru2/parcel/format"
)

type errWriter struct {
	err error
}

func (w errWriter) Write([]byte) (int, error) { return 0, w.err }

func TestPhasesOutput(t *testing.T) {
	var buf bytes.Buffer
	obs := NewPhases(format.New(&buf))

	obs.PhaseStart("setup")
	obs.PhaseEnd("setup", true)
	obs.PhaseStart("compile")
	obs.PhaseEnd("compile", false)

	assert.Equal(t,
		"starting setup\nfinished setup: true\nstarting compile\nfinished compile: false\n",
		buf.String())
	assert.NoError(t, obs.Err())
}

func TestPhasesSilentOnRepoEvents(t *testing.T) {
	var buf bytes.Buffer
	obs := NewPhases(format.New(&buf))

	obs.TriggerStart("preinst", "ldconfig")
	obs.TriggerEnd("preinst", "ldconfig")
	obs.InstallingFsObj("/usr/bin/foo")
	obs.RemovingFsObj("/usr/bin/foo")

	assert.Empty(t, buf.String())
}

func TestRepoOutput(t *testing.T) {
	var buf bytes.Buffer
	obs := NewRepo(format.New(&buf))

	obs.TriggerStart("preinst", "ldconfig")
	obs.InstallingFsObj("/usr/bin/foo")
	obs.RemovingFsObj("/usr/lib/old.so")
	obs.TriggerEnd("preinst", "ldconfig")

	assert.Equal(t,
		"hook preinst: trigger: starting ldconfig\n>>> /usr/bin/foo\n<<< /usr/lib/old.so\nhook preinst: trigger: finished ldconfig\n",
		buf.String())
}

func TestPhasesRecordsFirstWriteError(t *testing.T) {
	obs := NewPhases(format.New(errWriter{err: syscall.EPIPE}))

	obs.PhaseStart("setup")
	first := obs.Err()
	require.Error(t, first)
	assert.ErrorIs(t, first, format.ErrStreamClosed)

	// Later failures do not replace the first.
	obs.PhaseEnd("setup", true)
	assert.Same(t, first, obs.Err())
}
