package syncer

import "time"

type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

type State string

const (
	StatePending      State = "pending"
	StateFetching     State = "fetching"
	StateChunking     State = "chunking"
	StateWriting      State = "writing"
	StateDone         State = "done"
	StateFailed       State = "failed"
	StateDeadLettered State = "dead_lettered"
)

// Task is one unit of reconciliation work: bring the index in line with the
// latest state of one document.
type Task struct {
	DocumentID    string
	Operation     Operation
	CorrelationID string
	State         State
	Attempts      int
	EnqueuedAt    time.Time
}

// Message is the wire form of a Task on the content.sync topic.
type Message struct {
	Operation     string `json:"operation"`
	DocumentID    string `json:"document_id"`
	CorrelationID string `json:"correlation_id,omitempty"`
}
