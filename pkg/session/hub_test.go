package session

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crxforge/crxforge/pkg/types"
)

func TestHub_DeliversInPublishOrder(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe("s1")
	defer cancel()

	h.Publish("s1", types.NewMessageEvent(types.RoleUser, "first"))
	h.Publish("s1", types.NewCLIOutputEvent("stdout", "second"))
	h.Publish("s1", types.NewErrorEvent("third"))

	assert.Equal(t, "first", (<-ch).Content)
	assert.Equal(t, "second", (<-ch).Content)
	ev := <-ch
	assert.Equal(t, "third", ev.Content)
	assert.True(t, ev.IsTerminal())
}

func TestHub_PublishWithoutSubscribersIsANoOp(t *testing.T) {
	h := NewHub()
	h.Publish("nobody", types.NewMessageEvent(types.RoleAssistant, "hello"))
	assert.Equal(t, 0, h.SubscriberCount("nobody"))
}

func TestHub_SessionsAreIsolated(t *testing.T) {
	h := NewHub()
	a, cancelA := h.Subscribe("a")
	defer cancelA()
	b, cancelB := h.Subscribe("b")
	defer cancelB()

	h.Publish("a", types.NewMessageEvent(types.RoleUser, "for a"))

	assert.Equal(t, "for a", (<-a).Content)
	select {
	case ev := <-b:
		t.Fatalf("subscriber b received %v", ev)
	default:
	}
}

func TestHub_SlowSubscriberNeverBlocksProducer(t *testing.T) {
	h := NewHub()
	_, cancel := h.Subscribe("s1")
	defer cancel()

	// Overfill the subscriber buffer; every publish must return.
	for i := 0; i < subscriberBuffer+50; i++ {
		h.Publish("s1", types.NewCLIOutputEvent("stdout", fmt.Sprintf("line %d", i)))
	}
}

func TestHub_CancelDetachesAndCloses(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe("s1")
	require.Equal(t, 1, h.SubscriberCount("s1"))

	cancel()
	cancel() // safe twice

	assert.Equal(t, 0, h.SubscriberCount("s1"))
	_, open := <-ch
	assert.False(t, open)

	h.Publish("s1", types.NewMessageEvent(types.RoleUser, "late"))
}
