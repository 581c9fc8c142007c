package kvo

// State describes how far a Binding has got with its source.
type State int32

// Binding states. A Binding starts Loading and moves to Healthy after the
// first document applies. Decode failures move it to Empty when nothing has
// applied yet and to Degraded otherwise; the Object keeps its properties.
const (
	StateLoading State = iota
	StateHealthy
	StateDegraded
	StateEmpty
)

var stateNames = [...]string{
	StateLoading:  "loading",
	StateHealthy:  "healthy",
	StateDegraded: "degraded",
	StateEmpty:    "empty",
}

// String returns the state name, or "unknown" for values outside the set.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
