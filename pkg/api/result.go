package api

// ResultKind tags the variant held by a Result.
type ResultKind int

const (
	// ResultDelta means the task produced a partial State to merge.
	ResultDelta ResultKind = iota
	// ResultJump means the task asked to resume at a named segment.
	ResultJump
)

func (k ResultKind) String() string {
	switch k {
	case ResultDelta:
		return "delta"
	case ResultJump:
		return "jump"
	default:
		return "unknown"
	}
}

// Result is what a Task returns: either a delta to merge over the current
// State, or a jump instruction naming the segment to resume at.
//
// A jump may still carry a Delta. Combinator chains use it to hand the
// changes made by earlier tasks in the chain to whichever engine honours the
// jump, so they are merged before execution resumes at Target.
type Result struct {
	Kind ResultKind

	// Delta is the partial State produced by the task.
	Delta State

	// Target is the segment name for ResultJump.
	Target string

	// Outcome is an optional routing label. The linear engine follows the
	// node edge whose key equals Outcome before falling back to the default
	// edge.
	Outcome string
}

// Continue returns a delta result.
func Continue(delta State) Result {
	return Result{Kind: ResultDelta, Delta: delta}
}

// Outcome returns a delta result labelled with outcome for edge routing.
func Outcome(outcome string, delta State) Result {
	return Result{Kind: ResultDelta, Delta: delta, Outcome: outcome}
}

// Jump returns a jump instruction to the named segment.
func Jump(target string) Result {
	return Result{Kind: ResultJump, Target: target}
}

// JumpWith returns a jump instruction that also carries a delta.
func JumpWith(target string, delta State) Result {
	return Result{Kind: ResultJump, Target: target, Delta: delta}
}

// IsJump reports whether r is a jump instruction.
func (r Result) IsJump() bool {
	return r.Kind == ResultJump
}

// Apply merges the result's delta over state. It is the single place where
// a caller folds a task result into the accumulated State.
func (r Result) Apply(state State) State {
	return Merge(state, r.Delta)
}
