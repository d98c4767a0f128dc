package state

import (
	"sort"
	"sync"

	"github.com/normen/goxlr-daemon/protocol"
)

// Value is the mirrored value of a target. Known is false until the target
// was read back from or written to the device.
type Value struct {
	Raw   int32
	Known bool
}

// Change is a new value for a target.
type Change struct {
	Target Target `json:"target"`
	Value  int32  `json:"value"`
}

// Mirror is the in-process copy of the device state. Only the daemon loop
// applies changes; any goroutine may read.
type Mirror struct {
	mu     sync.RWMutex
	values map[Target]int32
}

func NewMirror() *Mirror {
	return &Mirror{values: make(map[Target]int32)}
}

// Get returns the last known value of t.
func (m *Mirror) Get(t Target) Value {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[t]
	return Value{Raw: v, Known: ok}
}

// Apply records v as the current value of t.
func (m *Mirror) Apply(t Target, v int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[t] = v
}

// ApplyAll records all changes at once, so readers never see a partial set.
func (m *Mirror) ApplyAll(changes []Change) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range changes {
		m.values[c.Target] = c.Value
	}
}

// Reset forgets every value.
func (m *Mirror) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = make(map[Target]int32)
}

// Snapshot returns a consistent copy of every known value.
func (m *Mirror) Snapshot() map[Target]int32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[Target]int32, len(m.values))
	for t, v := range m.values {
		out[t] = v
	}
	return out
}

// Changes returns the snapshot as a sorted list.
func (m *Mirror) Changes() []Change {
	snap := m.Snapshot()
	out := make([]Change, 0, len(snap))
	for t, v := range snap {
		out = append(out, Change{Target: t, Value: v})
	}
	SortChanges(out)
	return out
}

// SortChanges orders changes by kind, id and sub id.
func SortChanges(c []Change) {
	sort.Slice(c, func(i, j int) bool { return c[i].Target.less(c[j].Target) })
}

func (t Target) less(o Target) bool {
	if t.Kind != o.Kind {
		return t.Kind < o.Kind
	}
	if t.ID != o.ID {
		return t.ID < o.ID
	}
	return t.Sub < o.Sub
}

// RoutingMatrix holds one cell per input/output pair. True routes the input
// to the output.
type RoutingMatrix [protocol.NumInputs][protocol.NumOutputs]bool

// Routing returns the full routing matrix. Cells that were never read count as
// muted.
func (m *Mirror) Routing() RoutingMatrix {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var r RoutingMatrix
	for in := range r {
		for out := range r[in] {
			r[in][out] = m.values[Routing(protocol.InputDevice(in), protocol.OutputDevice(out))] != 0
		}
	}
	return r
}

// FaderStatus describes what a physical fader currently controls.
type FaderStatus struct {
	Channel protocol.Channel
	Muted   bool
	Style   protocol.FaderStyle
}

// Fader returns the status of f.
func (m *Mirror) Fader(f protocol.Fader) FaderStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch := protocol.Channel(m.values[FaderChannel(f)])
	return FaderStatus{
		Channel: ch,
		Muted:   m.values[Mute(ch)] != 0,
		Style:   protocol.FaderStyle(m.values[FaderStyle(f)]),
	}
}

// FaderFor returns the fader a channel is assigned to.
func (m *Mirror) FaderFor(ch protocol.Channel) (protocol.Fader, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for f := protocol.Fader(0); f < protocol.NumFaders; f++ {
		if v, ok := m.values[FaderChannel(f)]; ok && protocol.Channel(v) == ch {
			return f, true
		}
	}
	return 0, false
}
