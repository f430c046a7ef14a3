package checkpoint

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Version is the current checkpoint format version.
// Increment when making breaking changes to checkpoint structure.
const Version = 1

// Pause phases. A checkpoint written by a normal step commit has an empty
// Phase; a checkpoint written by an interrupt records which side of the
// node the run paused on.
const (
	// PhaseBefore marks a pause taken before NodeID executed. NextNode
	// carries the node to run on resume.
	PhaseBefore = "before"

	// PhaseAfter marks a pause taken after NodeID executed and its update
	// was merged.
	PhaseAfter = "after"
)

// Checkpoint is the persisted snapshot of a run at a step boundary.
// It contains everything needed to resume the thread: the full merged
// state plus enough position metadata to pick the next node.
//
// Checkpoints form a chain per thread: ParentID points at the checkpoint
// the run held when this one was written. Rollback starts a new branch by
// writing a fresh checkpoint whose parent is an older one; nothing is
// ever deleted or rewritten.
type Checkpoint struct {
	// Metadata
	Version   int       `json:"version"`
	ID        string    `json:"id"`
	ThreadID  string    `json:"thread_id"`
	Seq       int64     `json:"seq"`
	Step      int       `json:"step"`
	ParentID  string    `json:"parent_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	// Position
	NodeID   string `json:"node_id"`
	NextNode string `json:"next_node,omitempty"`
	Phase    string `json:"phase,omitempty"`

	// Execution state, serialized by the caller
	State json.RawMessage `json:"state"`
}

// New creates a checkpoint for a thread positioned at nodeID after the
// given step. State must already be JSON-serialized. Seq is zero until a
// Store assigns it.
func New(threadID, nodeID string, step int, state []byte) *Checkpoint {
	return &Checkpoint{
		Version:   Version,
		ID:        "ckpt-" + uuid.NewString(),
		ThreadID:  threadID,
		Step:      step,
		CreatedAt: time.Now().UTC(),
		NodeID:    nodeID,
		State:     state,
	}
}

// WithParent links the checkpoint to its predecessor in the thread chain.
func (c *Checkpoint) WithParent(parentID string) *Checkpoint {
	c.ParentID = parentID
	return c
}

// WithNextNode records the node to execute on resume. Only set on
// before-phase pauses; step commits leave it empty and the resume path
// re-resolves the successor.
func (c *Checkpoint) WithNextNode(nodeID string) *Checkpoint {
	c.NextNode = nodeID
	return c
}

// WithPhase marks the checkpoint as a pause of the given phase.
func (c *Checkpoint) WithPhase(phase string) *Checkpoint {
	c.Phase = phase
	return c
}

// Marshal serializes a checkpoint to JSON.
func (c *Checkpoint) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// Unmarshal deserializes a checkpoint from JSON.
func Unmarshal(data []byte) (*Checkpoint, error) {
	var c Checkpoint
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Clone returns a deep copy of the checkpoint.
func (c *Checkpoint) Clone() *Checkpoint {
	cp := *c
	if c.State != nil {
		cp.State = make(json.RawMessage, len(c.State))
		copy(cp.State, c.State)
	}
	return &cp
}

// StateMap deserializes the checkpoint's state into a generic map.
func (c *Checkpoint) StateMap() (map[string]any, error) {
	if len(c.State) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(c.State, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Info returns the checkpoint's metadata view.
func (c *Checkpoint) Info() Info {
	return Info{
		ID:        c.ID,
		ThreadID:  c.ThreadID,
		Seq:       c.Seq,
		Step:      c.Step,
		ParentID:  c.ParentID,
		NodeID:    c.NodeID,
		Phase:     c.Phase,
		CreatedAt: c.CreatedAt,
		Size:      int64(len(c.State)),
	}
}
