package stream

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Property: every subscriber of a topic, and every TopicAll subscriber,
// receives every event published for that topic in publish order, as long
// as its buffer is not exceeded.
func TestProperty_SubscribersReceiveEventsInOrder(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	topics := []string{"RELIANCE", "TCS", "cash", "fno"}

	properties.Property("fast subscribers receive all events in order", prop.ForAll(
		func(subscriberCount int, eventCount int, topicIdx int) bool {
			topic := topics[topicIdx]

			hub := NewHubWithConfig(HubConfig{BufferSize: 100, SubscriberBufferSize: 100})
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			hub.Start(ctx)
			defer hub.Stop()

			channels := make([]<-chan Event, 0, subscriberCount+1)
			for i := 0; i < subscriberCount; i++ {
				channels = append(channels, hub.Subscribe(topic, fmt.Sprintf("sub-%d", i)))
			}
			channels = append(channels, hub.Subscribe(TopicAll, "all"))
			other := hub.Subscribe("OTHER", "other")

			for i := 0; i < eventCount; i++ {
				hub.Publish(Event{Type: EventLedgerAppended, Topic: topic, Payload: i})
			}

			for _, ch := range channels {
				for want := 0; want < eventCount; want++ {
					select {
					case ev := <-ch:
						if ev.Payload.(int) != want || ev.Timestamp.IsZero() {
							return false
						}
					case <-time.After(time.Second):
						t.Logf("timeout waiting for event %d", want)
						return false
					}
				}
			}

			select {
			case <-other:
				return false
			case <-time.After(5 * time.Millisecond):
			}
			return hub.GetMetrics().EventsDropped == 0
		},
		gen.IntRange(1, 5),
		gen.IntRange(1, 50),
		gen.IntRange(0, len(topics)-1),
	))

	properties.TestingRun(t)
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewHubWithConfig(HubConfig{BufferSize: 100, SubscriberBufferSize: 1})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub.Start(ctx)
	defer hub.Stop()

	slow := hub.Subscribe(TopicAll, "slow")
	for i := 0; i < 10; i++ {
		hub.Publish(Event{Type: EventFundsUpdated, Topic: "cash"})
	}

	deadline := time.Now().Add(time.Second)
	for hub.GetMetrics().EventsReceived < 10 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	m := hub.GetMetrics()
	if m.EventsReceived != 10 {
		t.Fatalf("expected 10 events received, got %d", m.EventsReceived)
	}
	if m.EventsDropped == 0 {
		t.Fatalf("expected drops for the slow subscriber")
	}
	<-slow
}

func TestHub_UnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe("INFY", "a")
	if hub.GetTotalSubscriberCount() != 1 {
		t.Fatalf("expected one subscriber")
	}
	hub.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel")
	}
	if hub.GetTotalSubscriberCount() != 0 {
		t.Fatalf("expected no subscribers")
	}
}
