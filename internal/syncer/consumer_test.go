package syncer

import (
	"testing"

	"github.com/nsqio/go-nsq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSubmitter struct {
	tasks []*Task
}

func (r *recordingSubmitter) Submit(task *Task) { r.tasks = append(r.tasks, task) }

func nsqMessage(body string) *nsq.Message {
	return nsq.NewMessage(nsq.MessageID{}, []byte(body))
}

func TestConsumerHandleMessage(t *testing.T) {
	t.Run("Valid Message Becomes A Task", func(t *testing.T) {
		sub := &recordingSubmitter{}
		c := NewConsumer(sub)

		err := c.HandleMessage(nsqMessage(`{"operation":"update","document_id":"d1","correlation_id":"corr-1"}`))
		require.NoError(t, err)

		require.Len(t, sub.tasks, 1)
		assert.Equal(t, "d1", sub.tasks[0].DocumentID)
		assert.Equal(t, OpUpdate, sub.tasks[0].Operation)
		assert.Equal(t, "corr-1", sub.tasks[0].CorrelationID)
	})

	t.Run("Malformed Message Is Dropped Not Requeued", func(t *testing.T) {
		sub := &recordingSubmitter{}
		c := NewConsumer(sub)

		assert.NoError(t, c.HandleMessage(nsqMessage(`{not json`)))
		assert.Empty(t, sub.tasks)
	})

	t.Run("Missing Document ID Is Dropped", func(t *testing.T) {
		sub := &recordingSubmitter{}
		c := NewConsumer(sub)

		assert.NoError(t, c.HandleMessage(nsqMessage(`{"operation":"update"}`)))
		assert.Empty(t, sub.tasks)
	})

	t.Run("Unknown Operation Is Dropped", func(t *testing.T) {
		sub := &recordingSubmitter{}
		c := NewConsumer(sub)

		assert.NoError(t, c.HandleMessage(nsqMessage(`{"operation":"rename","document_id":"d1"}`)))
		assert.Empty(t, sub.tasks)
	})

	t.Run("Empty Body Is Ignored", func(t *testing.T) {
		sub := &recordingSubmitter{}
		c := NewConsumer(sub)

		assert.NoError(t, c.HandleMessage(nsqMessage(``)))
		assert.Empty(t, sub.tasks)
	})
}
