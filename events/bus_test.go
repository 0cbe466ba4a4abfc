package events_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-session/events"
	"github.com/stretchr/testify/require"
)

func TestPublishFansOut(t *testing.T) {
	bus := events.NewBus()
	a, unsubA := bus.Subscribe()
	b, unsubB := bus.Subscribe()
	defer unsubB()

	bus.Publish(events.New(events.TypeAuthRequired, nil))

	for _, ch := range []<-chan events.Event{a, b} {
		select {
		case e := <-ch:
			require.Equal(t, events.TypeAuthRequired, e.Type)
			require.NotEmpty(t, e.ID)
			_, err := time.Parse(time.RFC3339Nano, e.Timestamp)
			require.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}

	unsubA()
	_, open := <-a
	require.False(t, open)
	unsubA()
}

func TestPublishDoesNotBlockOnSlowSubscriber(t *testing.T) {
	bus := events.NewBus()
	_, unsub := bus.Subscribe()
	defer unsub()

	for i := 0; i < 150; i++ {
		bus.Publish(events.New(events.TypeSessionRefreshed, i))
	}
	require.Equal(t, uint64(50), bus.Dropped())
}
