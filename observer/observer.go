package observer

// Observer receives progress events from package operations. The stage
// engine fires PhaseStart/PhaseEnd around every stage; repository backends
// fire the trigger and filesystem-object events while merging or unmerging
// contents. Implementations are expected to be cheap; the engine holds no
// state on their behalf.
type Observer interface {
	PhaseStart(phase string)
	PhaseEnd(phase string, status bool)
	TriggerStart(hook, trigger string)
	TriggerEnd(hook, trigger string)
	InstallingFsObj(obj string)
	RemovingFsObj(obj string)
}

// Nop discards every event. A nil observer on an operation is also valid
// and disables notification overhead entirely; Nop exists for callers that
// want an explicit value.
var Nop Observer = nop{}

type nop struct{}

func (nop) PhaseStart(string)           {}
func (nop) PhaseEnd(string, bool)       {}
func (nop) TriggerStart(string, string) {}
func (nop) TriggerEnd(string, string)   {}
func (nop) InstallingFsObj(string)      {}
func (nop) RemovingFsObj(string)        {}
