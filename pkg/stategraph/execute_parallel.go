package stategraph

import (
	"context"
	"errors"
	"sync"
	"time"
)

// branchOutcome is one branch's report back to the fan-out point: the
// partial updates its nodes produced, in production order, or the error
// that stopped it.
type branchOutcome struct {
	branch string
	deltas []PartialState
	err    error
}

// runFanOut executes every branch of a fan-out concurrently from the
// current state, waits for all of them, and merges their updates into
// the shared state in declared edge order, then in each branch's own
// production order. Completion timing never affects the merged result.
//
// Branch state is isolated: each branch works on its own deep copy, and
// nothing from a failed or cancelled branch is ever merged. Interrupt
// points do not fire inside branches; pauses happen only on the
// sequential path.
func (r *runner) runFanOut(ec *executionContext, fo *FanOut) error {
	startTime := time.Now()
	budget := r.cfg.maxIterations - r.iterations

	outcomes, err := r.dispatch(ec, fo, r.state, r.steps, budget)
	if err != nil {
		return err
	}
	if err := pickBranchError(fo, outcomes); err != nil {
		return err
	}

	for _, out := range outcomes {
		for _, update := range out.deltas {
			merged, err := r.cg.schema.Merge(r.state, update)
			if err != nil {
				return &BranchError{FanOutNode: fo.NodeID, Branch: out.branch, Err: err}
			}
			r.state = merged
			r.steps++
			r.iterations++
		}
	}
	if r.iterations > r.cfg.maxIterations {
		return &IterationLimitError{
			Max:        r.cfg.maxIterations,
			LastNodeID: fo.NodeID,
			State:      r.state,
		}
	}

	ec.Logger().Info("fan-out merged",
		"fan_out_node", fo.NodeID,
		"join_node", fo.JoinNodeID,
		"branches", len(fo.Branches),
		"duration_ms", time.Since(startTime).Milliseconds())

	return nil
}

// dispatch runs each branch of a fan-out in its own goroutine from a
// copy of base and returns their outcomes in declared branch order. The
// first branch failure cancels the remaining siblings; dispatch still
// waits for every branch to stop before returning.
func (r *runner) dispatch(ec *executionContext, fo *FanOut, base State, baseSteps, budget int) ([]branchOutcome, error) {
	states := make([]State, len(fo.Branches))
	for i, head := range fo.Branches {
		cloned, err := base.Clone()
		if err != nil {
			return nil, &BranchError{FanOutNode: fo.NodeID, Branch: head, Err: err}
		}
		states[i] = cloned
	}

	branchCtx, cancel := context.WithCancel(ec.Context)
	defer cancel()
	bec := ec.withStdContext(branchCtx)

	var sem chan struct{}
	if r.cfg.maxConcurrency > 0 {
		sem = make(chan struct{}, r.cfg.maxConcurrency)
	}

	outcomes := make([]branchOutcome, len(fo.Branches))
	var wg sync.WaitGroup
	for i, head := range fo.Branches {
		wg.Add(1)
		go func(idx int, head string, state State) {
			defer wg.Done()

			if sem != nil {
				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-branchCtx.Done():
					outcomes[idx] = branchOutcome{branch: head, err: &CancellationError{
						NodeID:       head,
						State:        state,
						Cause:        context.Cause(branchCtx),
						WasExecuting: false,
					}}
					return
				}
			}

			w := &branchWalker{
				r:      r,
				ec:     bec,
				join:   fo.JoinNodeID,
				state:  state,
				steps:  baseSteps,
				budget: budget,
			}
			err := w.walk(head)
			outcomes[idx] = branchOutcome{branch: head, deltas: w.deltas, err: err}
			if err != nil {
				cancel()
			}
		}(i, head, states[i])
	}
	wg.Wait()

	return outcomes, nil
}

// pickBranchError selects deterministically which branch failure fails
// the run: the first declared branch holding a non-cancellation error,
// so sibling cancellations triggered by the real failure never mask it.
func pickBranchError(fo *FanOut, outcomes []branchOutcome) error {
	var first *branchOutcome
	for i := range outcomes {
		out := &outcomes[i]
		if out.err == nil {
			continue
		}
		if first == nil {
			first = out
		}
		var cancelErr *CancellationError
		if !errors.As(out.err, &cancelErr) {
			return &BranchError{FanOutNode: fo.NodeID, Branch: out.branch, Err: out.err}
		}
	}
	if first != nil {
		return &BranchError{FanOutNode: fo.NodeID, Branch: first.branch, Err: first.err}
	}
	return nil
}

// branchWalker drives one branch from its head node to the join (or
// END), keeping every partial update in production order for the
// deterministic merge at the fan-out point.
type branchWalker struct {
	r  *runner
	ec *executionContext

	join   string
	state  State
	deltas []PartialState

	// steps numbers this branch's node executions for logs and spans;
	// authoritative step numbers are assigned when the fan-out point
	// replays the deltas.
	steps  int
	visits int
	budget int
}

func (w *branchWalker) walk(head string) error {
	current := head

	for current != w.join && current != END {
		w.visits++
		if w.visits > w.budget {
			return &IterationLimitError{
				Max:        w.r.cfg.maxIterations,
				LastNodeID: current,
				State:      w.state,
			}
		}

		select {
		case <-w.ec.Done():
			return &CancellationError{
				NodeID:       current,
				State:        w.state,
				Cause:        context.Cause(w.ec),
				WasExecuting: false,
			}
		default:
		}

		update, err := w.r.executeNode(w.ec, current, w.state, w.steps+1)
		if err != nil {
			return err
		}
		merged, err := w.r.cg.schema.Merge(w.state, update)
		if err != nil {
			return err
		}
		w.state = merged
		w.steps++
		w.deltas = append(w.deltas, update)

		if fo, ok := w.r.cg.getFanOut(current); ok {
			if err := w.nestedFanOut(fo); err != nil {
				return err
			}
			current = fo.JoinNodeID
			continue
		}

		next, err := w.r.advance(w.ec, current, w.state)
		if err != nil {
			return err
		}
		current = next
	}

	return nil
}

// nestedFanOut handles a fan-out inside a branch: the sub-branches run
// concurrently against this branch's state, and their merged updates
// join this branch's delta list so the outermost replay stays ordered.
func (w *branchWalker) nestedFanOut(fo *FanOut) error {
	outcomes, err := w.r.dispatch(w.ec, fo, w.state, w.steps, w.budget-w.visits)
	if err != nil {
		return err
	}
	if err := pickBranchError(fo, outcomes); err != nil {
		return err
	}

	for _, out := range outcomes {
		for _, update := range out.deltas {
			merged, err := w.r.cg.schema.Merge(w.state, update)
			if err != nil {
				return &BranchError{FanOutNode: fo.NodeID, Branch: out.branch, Err: err}
			}
			w.state = merged
			w.steps++
			w.visits++
			w.deltas = append(w.deltas, update)
		}
	}
	if w.visits > w.budget {
		return &IterationLimitError{
			Max:        w.r.cfg.maxIterations,
			LastNodeID: fo.NodeID,
			State:      w.state,
		}
	}
	return nil
}
