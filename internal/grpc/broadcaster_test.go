package grpc

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/mr1hm/go-accident-alerts/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testNotification(id string) *models.ChannelNotification {
	return &models.ChannelNotification{
		ReportID: id,
		Channel:  models.ChannelBroadcast,
		Severity: models.SeverityHigh,
		Source:   models.SourceManual,
		Location: &models.Coordinates{Latitude: 17.385, Longitude: 78.4867},
		RadiusKM: 1,
	}
}

func TestBroadcaster_SubscribeUnsubscribe(t *testing.T) {
	b := NewBroadcaster()

	id, ch := b.Subscribe()
	if b.SubscriberCount() != 1 {
		t.Errorf("expected 1 subscriber, got %d", b.SubscriberCount())
	}

	b.Unsubscribe(id)
	if b.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers, got %d", b.SubscriberCount())
	}

	// Channel should be closed
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected channel to be closed")
		}
	default:
		t.Error("channel should be closed and readable")
	}
}

func TestBroadcaster_Broadcast(t *testing.T) {
	b := NewBroadcaster()

	id, ch := b.Subscribe()
	defer b.Unsubscribe(id)

	n := testNotification("report_1")
	if delivered := b.Broadcast(n); delivered != 1 {
		t.Errorf("expected 1 delivery, got %d", delivered)
	}

	select {
	case received := <-ch:
		if received.ReportID != n.ReportID {
			t.Errorf("expected report %s, got %s", n.ReportID, received.ReportID)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("timeout waiting for broadcast")
	}
}

func TestBroadcaster_NoSubscribers(t *testing.T) {
	b := NewBroadcaster()
	if delivered := b.Broadcast(testNotification("report_1")); delivered != 0 {
		t.Errorf("expected 0 deliveries, got %d", delivered)
	}
}

func TestBroadcaster_ConcurrentSubscribeUnsubscribe(t *testing.T) {
	b := NewBroadcaster()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, _ := b.Subscribe()
			time.Sleep(time.Millisecond)
			b.Unsubscribe(id)
		}()
	}
	wg.Wait()

	if b.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers after cleanup, got %d", b.SubscriberCount())
	}
}

func TestBroadcaster_ConcurrentSubscribeBroadcast(t *testing.T) {
	b := NewBroadcaster()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, ch := b.Subscribe()
			// Drain channel to prevent blocking
			go func() {
				for range ch {
				}
			}()
			time.Sleep(5 * time.Millisecond)
			b.Unsubscribe(id)
		}()
	}

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			b.Broadcast(testNotification(fmt.Sprintf("report_%d", n)))
		}(i)
	}

	wg.Wait()

	if b.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers, got %d", b.SubscriberCount())
	}
}

func TestBroadcaster_Close(t *testing.T) {
	b := NewBroadcaster()

	var channels []chan *models.ChannelNotification
	for i := 0; i < 5; i++ {
		_, ch := b.Subscribe()
		channels = append(channels, ch)
	}

	if b.SubscriberCount() != 5 {
		t.Errorf("expected 5 subscribers, got %d", b.SubscriberCount())
	}

	b.Close()

	if b.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers after close, got %d", b.SubscriberCount())
	}

	for i, ch := range channels {
		select {
		case _, ok := <-ch:
			if ok {
				t.Errorf("channel %d should be closed", i)
			}
		default:
			t.Errorf("channel %d should be closed and readable", i)
		}
	}
}

func TestBroadcaster_SlowSubscriber(t *testing.T) {
	b := NewBroadcaster()

	id, ch := b.Subscribe()
	defer b.Unsubscribe(id)

	// Fill the buffer and one more
	for i := 0; i < cap(ch)+1; i++ {
		b.Broadcast(testNotification(fmt.Sprintf("report_%d", i)))
	}

	if len(ch) != cap(ch) {
		t.Errorf("expected buffer full at %d, got %d", cap(ch), len(ch))
	}
}
