package task

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmesh/task-delivery-service/infra/broker"
)

func TestTaskWireFormatOmitsUnusedVariants(t *testing.T) {
	data, err := json.Marshal(NewCleanupExpiredToken())
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"CleanupExpiredToken"}`, string(data))

	text := "hi"
	data, err = json.Marshal(NewSendEmail("a@b.c", "Hello", &text, nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"SendEmail","to":"a@b.c","subject":"Hello","text_body":"hi"}`, string(data))
}

func TestTaskDecode(t *testing.T) {
	raw := `{"type":"ProcessAvatarUpload","task_id":"t-1","user_id":7,"file_name":"me.png"}`

	var decoded Task
	require.NoError(t, json.Unmarshal([]byte(raw), &decoded))
	assert.Equal(t, KindProcessAvatarUpload, decoded.Type)
	assert.Equal(t, "t-1", decoded.TaskID)
	assert.Equal(t, int32(7), decoded.UserID)
	assert.Equal(t, "me.png", decoded.FileName)
}

func TestValidateRejectsUnknownKind(t *testing.T) {
	assert.NoError(t, NewProcessUserRegistration(1).Validate())
	assert.Error(t, Task{Type: "MineBitcoin"}.Validate())
}

// recordingProducer captures serialized events.
type recordingProducer struct {
	payloads [][]byte
	dests    []string
}

func (p *recordingProducer) PublishJSON(_ context.Context, payload []byte, destination string) error {
	p.payloads = append(p.payloads, payload)
	p.dests = append(p.dests, destination)
	return nil
}

func (p *recordingProducer) BrokerType() string { return "record" }
func (p *recordingProducer) Close() error       { return nil }

func TestPublishWrapsInEnvelope(t *testing.T) {
	p := &recordingProducer{}

	err := PublishWithPriority(context.Background(), p, NewCleanupExpiredToken(), broker.PriorityLow, "tasks")
	require.NoError(t, err)
	require.Len(t, p.payloads, 1)
	assert.Equal(t, "tasks", p.dests[0])

	var ev Event
	require.NoError(t, json.Unmarshal(p.payloads[0], &ev))
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, KindCleanupExpiredToken, ev.Task.Type)
	assert.Equal(t, broker.PriorityLow, ev.Priority)
	assert.Equal(t, uint32(0), ev.RetryCount)
	assert.Equal(t, uint32(3), ev.MaxRetries)
}

func TestPublishRejectsInvalidTask(t *testing.T) {
	p := &recordingProducer{}
	err := Publish(context.Background(), p, Task{Type: "Nope"}, "")
	assert.Error(t, err)
	assert.Empty(t, p.payloads)
}
