package job

// State is a job's position in the pipeline. Jobs move forward one state at
// a time and may jump to Failed from any non-terminal state.
type State int

const (
	Received State = iota
	Validated
	Resolved
	Fetched
	Composited
	Persisted
	Published
	CleanedUp
	Failed
)

var stateNames = [...]string{
	Received:   "received",
	Validated:  "validated",
	Resolved:   "resolved",
	Fetched:    "fetched",
	Composited: "composited",
	Persisted:  "persisted",
	Published:  "published",
	CleanedUp:  "cleaned_up",
	Failed:     "failed",
}

// String returns the lowercase state name used in logs.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == CleanedUp || s == Failed
}

// Next returns the state that follows s on the success path.
// Terminal states return themselves.
func (s State) Next() State {
	if s.Terminal() {
		return s
	}
	return s + 1
}
