package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/keithlinneman/linnemanlabs-users/internal/user"
)

func TestBus_DeliversInOrder(t *testing.T) {
	b := New[int]("numbers", nil)
	var got []string
	b.Subscribe("a", func(_ context.Context, n int) { got = append(got, "a") })
	b.Subscribe("b", func(_ context.Context, n int) { got = append(got, "b") })
	b.Subscribe("nil", nil)

	b.Publish(context.Background(), 1)
	require.Equal(t, []string{"a", "b"}, got)
	require.Equal(t, 2, b.Len())
}

func TestBus_NoSubscribers(t *testing.T) {
	b := New[string]("empty", nil)
	require.NotPanics(t, func() { b.Publish(context.Background(), "x") })
}

func TestBus_PanickingSubscriberIsIsolated(t *testing.T) {
	b := New[int]("numbers", nil)
	var after int
	b.Subscribe("boom", func(context.Context, int) { panic("boom") })
	b.Subscribe("after", func(_ context.Context, n int) { after = n })

	var panicked []string
	b.OnPanic(func(topic string) { panicked = append(panicked, topic) })

	require.NotPanics(t, func() { b.Publish(context.Background(), 7) })
	require.Equal(t, 7, after)
	require.Equal(t, []string{"numbers"}, panicked)
}

func TestBus_IsUserPublisher(t *testing.T) {
	b := New[user.Created]("user.created", nil)
	var pub user.Publisher = b

	var got user.Created
	b.Subscribe("capture", func(_ context.Context, ev user.Created) { got = ev })

	ev := user.Created{UserID: 1, Name: "Ann", Email: "ann@example.com", At: time.Unix(0, 0)}
	pub.Publish(context.Background(), ev)
	require.Equal(t, ev, got)
}
