package engine

import (
	"github.com/sbaloglu/proverif-codes/term"
)

// Status is the life-cycle state of an instance.
type Status byte

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusDone:
		return "done"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

const (
	// StatusRunning means the instance still has actions to execute.
	StatusRunning Status = iota

	// StatusDone means the instance executed all its actions.
	StatusDone

	// StatusFailed means a guard evaluated to something other than true,
	// or a reduction failed, so the remaining actions were abandoned.
	StatusFailed
)

// Instance is one running copy of a template. It owns a program counter
// into the action sequence and a frame mapping the variables bound so far
// to ground terms.
type Instance struct {
	id     int
	tmpl   Template
	pc     int
	frame  term.Bindings
	status Status
}

func newInstance(id int, tmpl Template) *Instance {
	return &Instance{
		id:     id,
		tmpl:   tmpl,
		frame:  make(term.Bindings),
		status: StatusRunning,
	}
}

// ID returns the session-unique identifier of the instance. Identifiers
// are assigned in spawn order, starting at zero.
func (i *Instance) ID() int {
	return i.id
}

// Template returns the name of the template the instance runs.
func (i *Instance) Template() string {
	return i.tmpl.Name
}

// Status returns the life-cycle state of the instance.
func (i *Instance) Status() Status {
	return i.status
}

// Frame returns a copy of the variable bindings of the instance.
func (i *Instance) Frame() term.Bindings {
	return i.frame.Clone()
}

// State returns a snapshot of the instance.
func (i *Instance) State() InstanceState {
	return InstanceState{
		ID:       i.id,
		Template: i.tmpl.Name,
		Status:   i.status,
		Step:     i.pc,
		Frame:    i.frame.Clone(),
	}
}

// next returns the pending action of the instance, or false when the
// instance has terminated.
func (i *Instance) next() (Action, bool) {
	if i.status != StatusRunning || i.pc >= len(i.tmpl.Actions) {
		return nil, false
	}

	return i.tmpl.Actions[i.pc], true
}

// InstanceState is a snapshot of an instance at the end of a replay or in
// a step event.
type InstanceState struct {
	ID       int
	Template string
	Status   Status
	Step     int
	Frame    term.Bindings
}
