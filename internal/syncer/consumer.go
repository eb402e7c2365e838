package syncer

import (
	"encoding/json"
	"log/slog"

	"github.com/nsqio/go-nsq"

	"github.com/IndigoNakamoto/Litecoin-Knowledge-Hub-sub008/internal/config"
)

type Submitter interface {
	Submit(task *Task)
}

// Consumer bridges the content.sync topic to the scheduler. Malformed
// messages are logged and dropped rather than requeued; NSQ redelivery
// cannot fix a bad payload.
type Consumer struct {
	scheduler Submitter
}

func NewConsumer(s Submitter) *Consumer {
	return &Consumer{scheduler: s}
}

func (c *Consumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var msg Message
	if err := json.Unmarshal(m.Body, &msg); err != nil {
		slog.Error("dropping malformed sync message", "error", err, "topic", config.TopicContentSync)
		return nil
	}
	if msg.DocumentID == "" {
		slog.Error("dropping sync message without document_id", "topic", config.TopicContentSync)
		return nil
	}

	op := Operation(msg.Operation)
	switch op {
	case OpCreate, OpUpdate, OpDelete:
	default:
		slog.Error("dropping sync message with unknown operation", "operation", msg.Operation, "document_id", msg.DocumentID)
		return nil
	}

	c.scheduler.Submit(&Task{
		DocumentID:    msg.DocumentID,
		Operation:     op,
		CorrelationID: msg.CorrelationID,
	})
	return nil
}
