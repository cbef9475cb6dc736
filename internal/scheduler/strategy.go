package scheduler

// Status names the three outcomes of polling the task graph for work. No
// function in this package returns a Status: runWorker tells the same three
// cases apart directly (a selected task, a nil selection, a finished graph).
type Status int

const (
	// StatusRunning means a task was handed to the caller; its accesses
	// are now held.
	StatusRunning Status = iota
	// StatusNoTasksAvailable means nothing is runnable right now, but the
	// graph isn't finished — the caller should yield and poll again.
	StatusNoTasksAvailable
	// StatusNoTasksRemaining means every task in this tick has completed —
	// the caller may exit its polling loop.
	StatusNoTasksRemaining
)

// Strategy picks which of the currently-runnable, non-conflicting
// candidates to start next. Spec §4.5 / §9 calls out that the access
// tracker and graph bookkeeping are strategy-agnostic and several
// strategies may exist; this package ships the priority-maximizing
// strategy plus a simple FIFO one to keep the seam real.
type Strategy interface {
	Select(candidates []*taskNode) *taskNode
}

// MaximizePriorityStrategy always starts the candidate with the highest
// derived priority (performance + Σ priority(dependents)), so long
// dependency chains get a head start. This is the default.
type MaximizePriorityStrategy struct{}

func (MaximizePriorityStrategy) Select(candidates []*taskNode) *taskNode {
	if len(candidates) == 0 {
		return nil
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.priority > best.priority {
			best = c
		}
	}
	return best
}

// FIFOStrategy starts candidates in the order they became runnable,
// ignoring priority. Useful for deterministic tests and as proof the
// try_start_task/complete_task seam is genuinely strategy-agnostic.
type FIFOStrategy struct{}

func (FIFOStrategy) Select(candidates []*taskNode) *taskNode {
	if len(candidates) == 0 {
		return nil
	}
	return candidates[0]
}
