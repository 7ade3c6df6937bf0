package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryPublishConsume(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	msgs, err := q.Consume(ctx)
	require.NoError(t, err)

	want := Message{Type: TypeCheckout, Body: []byte("rec-1")}
	require.NoError(t, q.Publish(ctx, want))

	select {
	case got := <-msgs:
		assert.Equal(t, want, got)
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
	}
}

func TestInMemoryPublishRespectsCancel(t *testing.T) {
	q := NewInMemory(1)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, q.Publish(ctx, Message{Type: TypeCheckout}))
	cancel()
	// Buffer full and context cancelled: publish must not block.
	err := q.Publish(ctx, Message{Type: TypeCheckout})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInMemoryConsumeClosesOnCancel(t *testing.T) {
	q := NewInMemory(1)
	ctx, cancel := context.WithCancel(context.Background())
	msgs, err := q.Consume(ctx)
	require.NoError(t, err)

	cancel()
	select {
	case _, open := <-msgs:
		assert.False(t, open, "channel closes after cancellation")
	case <-time.After(time.Second):
		t.Fatal("consume channel did not close")
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	msg := Message{Type: TypeCheckout, Body: []byte("rec-42")}
	got, err := deserialize(serialize(msg))
	require.NoError(t, err)
	assert.Equal(t, msg, got)

	// Body may itself contain the separator.
	msg = Message{Type: TypeCheckout, Body: []byte("a|b|c")}
	got, err = deserialize(serialize(msg))
	require.NoError(t, err)
	assert.Equal(t, msg, got)

	// Untyped payloads land in the body.
	got, err = deserialize("bare-payload")
	require.NoError(t, err)
	assert.Equal(t, Message{Body: []byte("bare-payload")}, got)
}
