package model

// State is a step in the life of one requested clip within a batch.
type State string

const (
	StateResolved State = "resolved"
	StateMapped   State = "mapped"
	StateCutting  State = "cutting"
	StateCut      State = "cut"
	StateIndexed  State = "indexed"
	StateFailed   State = "failed"
)

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	return s == StateIndexed || s == StateFailed
}

// Outcome is the terminal result for one requested event or shift.
type Outcome struct {
	Key      string
	State    State
	Segment  *ClipSegment
	Record   *ClipRecord
	CacheHit bool
	Reason   string
	Err      error
}

// OK reports whether the request ended indexed.
func (o Outcome) OK() bool {
	return o.State == StateIndexed
}
