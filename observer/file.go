package observer

import (
	"github.com/projecteru2/parcel/format"
)

// Phases writes phase progress lines to a formatter. Trigger and
// filesystem-object events are silent; use Repo for those.
//
// Write failures are recorded rather than returned (the Observer contract
// has no result channel); check Err after the operation. A recorded
// format.ErrStreamClosed should be handled like a user interrupt.
type Phases struct {
	out *format.Formatter
	err error
}

// NewPhases creates a phase observer writing to out.
func NewPhases(out *format.Formatter) *Phases {
	return &Phases{out: out}
}

// Err returns the first write error encountered, if any.
func (p *Phases) Err() error { return p.err }

func (p *Phases) record(err error) {
	if p.err == nil && err != nil {
		p.err = err
	}
}

func (p *Phases) PhaseStart(phase string) {
	p.record(p.out.Printf("starting %s", phase))
}

func (p *Phases) PhaseEnd(phase string, status bool) {
	p.record(p.out.Printf("finished %s: %v", phase, status))
}

func (p *Phases) TriggerStart(string, string) {}

func (p *Phases) TriggerEnd(string, string) {}

func (p *Phases) InstallingFsObj(string) {}

func (p *Phases) RemovingFsObj(string) {}

// Repo extends Phases with the repository-mutation events: trigger runs and
// per-object merge/unmerge lines.
type Repo struct {
	Phases
}

// NewRepo creates a repository observer writing to out.
func NewRepo(out *format.Formatter) *Repo {
	return &Repo{Phases{out: out}}
}

func (r *Repo) TriggerStart(hook, trigger string) {
	r.record(r.out.Printf("hook %s: trigger: starting %v", hook, trigger))
}

func (r *Repo) TriggerEnd(hook, trigger string) {
	r.record(r.out.Printf("hook %s: trigger: finished %v", hook, trigger))
}

func (r *Repo) InstallingFsObj(obj string) {
	r.record(r.out.Printf(">>> %s", obj))
}

func (r *Repo) RemovingFsObj(obj string) {
	r.record(r.out.Printf("<<< %s", obj))
}
