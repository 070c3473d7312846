package orchestrator

import (
	"slices"
	"time"
)

// Snapshot is an immutable view of orchestrator state for readers outside
// the loop goroutine.
type Snapshot struct {
	Active    string    `json:"active"`
	Running   []string  `json:"running"`
	Builtins  []string  `json:"builtins"`
	Connected bool      `json:"connected"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (o *Orchestrator) Snapshot() Snapshot {
	if snap := o.snapshot.Load(); snap != nil {
		return *snap
	}
	return Snapshot{}
}

func (o *Orchestrator) publishSnapshot() {
	builtins := make([]string, 0, len(o.builtins))
	for name := range o.builtins {
		builtins = append(builtins, name)
	}
	slices.Sort(builtins)

	active, _ := o.active.Name()
	o.snapshot.Store(&Snapshot{
		Active:    active,
		Running:   o.host.Running(),
		Builtins:  builtins,
		Connected: o.connected,
		UpdatedAt: time.Now(),
	})
}
