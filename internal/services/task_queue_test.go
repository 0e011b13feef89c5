package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskTypes(t *testing.T) {
	assert.Equal(t, "search:index_ticket", TaskTypeIndexTicket)
	assert.Equal(t, "search:remove_ticket", TaskTypeRemoveTicket)
	assert.Equal(t, "email:send", TaskTypeSendEmail)
}

func TestSideEffectTask_Payload(t *testing.T) {
	data, err := json.Marshal(&SideEffectTask{Type: TaskTypeIndexTicket, TicketID: 7})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"search:index_ticket","ticket_id":7}`, string(data))
}

func TestSyncQueue_RunsTasks(t *testing.T) {
	q := NewSyncQueue()
	assert.False(t, q.IsAsync())

	var mu sync.Mutex
	var seen []uint
	q.SetProcessor(func(_ context.Context, task *SideEffectTask) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, task.TicketID)
		return nil
	})

	for i := uint(1); i <= 3; i++ {
		require.NoError(t, q.Enqueue(&SideEffectTask{Type: TaskTypeIndexTicket, TicketID: i}))
	}
	require.NoError(t, q.Close())
	assert.ElementsMatch(t, []uint{1, 2, 3}, seen)
}

func TestSyncQueue_FailureIsNotReturned(t *testing.T) {
	q := NewSyncQueue()
	q.SetProcessor(func(context.Context, *SideEffectTask) error {
		return errors.New("index down")
	})

	assert.NoError(t, q.Enqueue(&SideEffectTask{Type: TaskTypeRemoveTicket, TicketID: 1}))
	assert.NoError(t, q.Close())
}

func TestSyncQueue_NoProcessorDropsTask(t *testing.T) {
	q := NewSyncQueue()
	assert.NoError(t, q.Enqueue(&SideEffectTask{Type: TaskTypeSendEmail}))
	assert.NoError(t, q.Close())
}
