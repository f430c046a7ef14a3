package stategraph

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InterruptPhase says which side of a node a pause was taken on.
type InterruptPhase string

// Interrupt phase constants.
const (
	// InterruptBefore pauses before the node executes. The node's effects
	// are not in the paused state.
	InterruptBefore InterruptPhase = "before"

	// InterruptAfter pauses after the node executed and its update was
	// merged. The paused state includes the node's effects.
	InterruptAfter InterruptPhase = "after"
)

// InterruptStatus represents the lifecycle of a recorded interrupt.
type InterruptStatus string

// Interrupt status constants.
const (
	InterruptPending InterruptStatus = "pending"
	InterruptResumed InterruptStatus = "resumed"
)

// Interrupt records one pause of a run: where it happened, which phase,
// and the checkpoint that must be resumed to continue. RunResult carries
// the interrupt that paused the run; an InterruptController additionally
// keeps them as inspectable history.
type Interrupt struct {
	// ID uniquely identifies this interrupt.
	ID string `json:"id"`

	// ThreadID is the durable thread the paused run belongs to.
	ThreadID string `json:"thread_id"`

	// NodeID is the node the run paused at.
	NodeID string `json:"node_id"`

	// Phase says whether the pause was taken before or after NodeID.
	Phase InterruptPhase `json:"phase"`

	// Step is the number of committed steps at pause time.
	Step int `json:"step"`

	// CheckpointID is the durable pause snapshot. Passing it (or the
	// thread's latest checkpoint) to Resume continues the run.
	CheckpointID string `json:"checkpoint_id"`

	// Status tracks whether the interrupt has been resumed.
	Status InterruptStatus `json:"status"`

	// Timestamps
	RaisedAt  time.Time  `json:"raised_at"`
	ResumedAt *time.Time `json:"resumed_at,omitempty"`
}

// newInterrupt creates a pending interrupt record.
func newInterrupt(threadID, nodeID string, phase InterruptPhase, step int, checkpointID string) *Interrupt {
	return &Interrupt{
		ID:           fmt.Sprintf("int-%s", uuid.New().String()[:8]),
		ThreadID:     threadID,
		NodeID:       nodeID,
		Phase:        phase,
		Step:         step,
		CheckpointID: checkpointID,
		Status:       InterruptPending,
		RaisedAt:     time.Now(),
	}
}

// Clone creates a deep copy of the interrupt.
func (i *Interrupt) Clone() *Interrupt {
	interruptCopy := *i
	if i.ResumedAt != nil {
		t := *i.ResumedAt
		interruptCopy.ResumedAt = &t
	}
	return &interruptCopy
}

// InterruptController configures pause points and records the pauses runs
// take. A single controller can be shared by Run and Resume calls so the
// full interrupt history of a thread stays in one place.
//
// The controller is optional: WithInterruptBefore/WithInterruptAfter work
// without one, but then no history is kept.
type InterruptController struct {
	mu      sync.RWMutex
	before  map[string]bool
	after   map[string]bool
	history []*Interrupt
}

// NewInterruptController creates an empty controller.
func NewInterruptController() *InterruptController {
	return &InterruptController{
		before: make(map[string]bool),
		after:  make(map[string]bool),
	}
}

// BeforeNode registers pause points before the given nodes execute.
// Returns the controller for chaining.
func (c *InterruptController) BeforeNode(nodes ...string) *InterruptController {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, n := range nodes {
		c.before[n] = true
	}
	return c
}

// AfterNode registers pause points after the given nodes execute.
// Returns the controller for chaining.
func (c *InterruptController) AfterNode(nodes ...string) *InterruptController {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, n := range nodes {
		c.after[n] = true
	}
	return c
}

// beforeNodes returns a copy of the before-pause set.
func (c *InterruptController) beforeNodes() map[string]bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]bool, len(c.before))
	for n := range c.before {
		out[n] = true
	}
	return out
}

// afterNodes returns a copy of the after-pause set.
func (c *InterruptController) afterNodes() map[string]bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]bool, len(c.after))
	for n := range c.after {
		out[n] = true
	}
	return out
}

// record appends an interrupt to the history.
func (c *InterruptController) record(i *Interrupt) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history, i)
}

// markResumed flips the pending interrupt holding the given checkpoint to
// resumed. No-op when the controller never saw that pause.
func (c *InterruptController) markResumed(checkpointID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, i := range c.history {
		if i.CheckpointID == checkpointID && i.Status == InterruptPending {
			now := time.Now()
			i.Status = InterruptResumed
			i.ResumedAt = &now
			return
		}
	}
}

// Pending returns the interrupts still awaiting resume, oldest first.
func (c *InterruptController) Pending() []*Interrupt {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Interrupt, 0)
	for _, i := range c.history {
		if i.Status == InterruptPending {
			out = append(out, i.Clone())
		}
	}
	return out
}

// History returns every interrupt the controller recorded, oldest first.
func (c *InterruptController) History() []*Interrupt {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Interrupt, len(c.history))
	for idx, i := range c.history {
		out[idx] = i.Clone()
	}
	return out
}
