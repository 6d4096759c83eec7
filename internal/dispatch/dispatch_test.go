package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/mr1hm/go-accident-alerts/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func ptr[T any](v T) *T { return &v }

func testReport() models.AccidentReport {
	return models.AccidentReport{
		ID:          "report_1",
		Latitude:    ptr(17.385),
		Longitude:   ptr(78.4867),
		Severity:    models.SeverityHigh,
		Description: "Severe crash",
		Source:      models.SourceManual,
		CreatedAt:   time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

type recordingSink struct {
	mu   sync.Mutex
	sent []models.ChannelNotification
	err  error
}

func (s *recordingSink) Send(ctx context.Context, n models.ChannelNotification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type countingObserver struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (o *countingObserver) ObserveDispatch(c models.Channel, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.outcomes == nil {
		o.outcomes = make(map[string]int)
	}
	o.outcomes[string(c)+":"+outcome]++
}

func TestDispatcher_BothChannels(t *testing.T) {
	broadcast, push := &recordingSink{}, &recordingSink{}
	d := New(Config{Timeout: time.Second, BroadcastRadiusKM: 2}, map[models.Channel]Sink{
		models.ChannelBroadcast: broadcast,
		models.ChannelPush:      push,
	})

	results := d.Dispatch(context.Background(), testReport(),
		[]models.Channel{models.ChannelPush, models.ChannelBroadcast, models.ChannelPush},
		models.Addressing{DeviceToken: "device-abc"})

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Channel != models.ChannelBroadcast || results[1].Channel != models.ChannelPush {
		t.Errorf("unexpected result order: %+v", results)
	}
	for _, r := range results {
		if !r.Success {
			t.Errorf("expected %s to succeed, got %+v", r.Channel, r)
		}
	}

	if broadcast.count() != 1 || push.count() != 1 {
		t.Fatalf("expected one send per sink, got %d and %d", broadcast.count(), push.count())
	}
	b := broadcast.sent[0]
	if b.RadiusKM != 2 || b.Location == nil || b.Location.Latitude != 17.385 {
		t.Errorf("unexpected broadcast notification: %+v", b)
	}
	if b.DeviceToken != "" {
		t.Error("broadcast notification should not carry a device token")
	}
	p := push.sent[0]
	if p.DeviceToken != "device-abc" || p.ReportID != "report_1" {
		t.Errorf("unexpected push notification: %+v", p)
	}
	if !strings.Contains(p.Message, "high severity") {
		t.Errorf("expected default message, got %q", p.Message)
	}
}

func TestDispatcher_NoChannels(t *testing.T) {
	d := New(Config{}, map[models.Channel]Sink{models.ChannelPush: &recordingSink{}})

	results := d.Dispatch(context.Background(), testReport(), nil, models.Addressing{})
	if len(results) != 0 {
		t.Errorf("expected no results, got %+v", results)
	}
}

func TestDispatcher_PushFailureDoesNotAffectBroadcast(t *testing.T) {
	broadcast := &recordingSink{}
	push := &recordingSink{err: errors.New("provider rejected token")}
	d := New(Config{Timeout: time.Second}, map[models.Channel]Sink{
		models.ChannelBroadcast: broadcast,
		models.ChannelPush:      push,
	})

	results := d.Dispatch(context.Background(), testReport(), models.AllChannels,
		models.Addressing{DeviceToken: "device-abc"})

	if !results[0].Success {
		t.Errorf("expected broadcast success, got %+v", results[0])
	}
	if results[1].Success {
		t.Error("expected push failure")
	}
	if !strings.Contains(results[1].Message, "provider rejected token") {
		t.Errorf("expected diagnostic message, got %q", results[1].Message)
	}
}

func TestDispatcher_PushMissingAddress(t *testing.T) {
	push := &recordingSink{}
	d := New(Config{}, map[models.Channel]Sink{models.ChannelPush: push})

	results := d.Dispatch(context.Background(), testReport(), []models.Channel{models.ChannelPush}, models.Addressing{})

	if results[0].Success || results[0].Message != MsgMissingAddress {
		t.Errorf("expected missing address failure, got %+v", results[0])
	}
	if push.count() != 0 {
		t.Error("sink should not be called without an address")
	}
}

func TestDispatcher_BroadcastNoLocation(t *testing.T) {
	broadcast := &recordingSink{}
	d := New(Config{}, map[models.Channel]Sink{models.ChannelBroadcast: broadcast})

	r := testReport()
	r.Latitude, r.Longitude = nil, nil
	results := d.Dispatch(context.Background(), r, []models.Channel{models.ChannelBroadcast}, models.Addressing{})

	if results[0].Success || !results[0].Skipped || results[0].Message != MsgNoLocation {
		t.Errorf("expected no location skip, got %+v", results[0])
	}
	if broadcast.count() != 0 {
		t.Error("sink should not be called without a location")
	}
}

func TestDispatcher_UnconfiguredChannel(t *testing.T) {
	d := New(Config{}, map[models.Channel]Sink{models.ChannelPush: nil})

	results := d.Dispatch(context.Background(), testReport(), []models.Channel{models.ChannelPush},
		models.Addressing{DeviceToken: "device-abc"})

	if results[0].Success || results[0].Message != MsgNoSink {
		t.Errorf("expected unconfigured failure, got %+v", results[0])
	}
}

func TestDispatcher_Timeout(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	// Ignores ctx entirely; the dispatcher must still return.
	stuck := SinkFunc(func(ctx context.Context, n models.ChannelNotification) error {
		<-release
		return nil
	})
	broadcast := &recordingSink{}
	d := New(Config{Timeout: 50 * time.Millisecond}, map[models.Channel]Sink{
		models.ChannelBroadcast: broadcast,
		models.ChannelPush:      stuck,
	})

	start := time.Now()
	results := d.Dispatch(context.Background(), testReport(), models.AllChannels,
		models.Addressing{DeviceToken: "device-abc"})
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("dispatch took %v, expected to be bounded by the timeout", elapsed)
	}

	if !results[0].Success {
		t.Errorf("expected broadcast success, got %+v", results[0])
	}
	if results[1].Success || !strings.Contains(results[1].Message, "timed out") {
		t.Errorf("expected push timeout, got %+v", results[1])
	}
}

func TestDispatcher_TimedOutSendSeesCancelledContext(t *testing.T) {
	finished := make(chan error, 1)
	slow := SinkFunc(func(ctx context.Context, n models.ChannelNotification) error {
		time.Sleep(100 * time.Millisecond)
		finished <- ctx.Err()
		return nil
	})
	d := New(Config{Timeout: 20 * time.Millisecond}, map[models.Channel]Sink{
		models.ChannelPush: slow,
	})

	results := d.Dispatch(context.Background(), testReport(), []models.Channel{models.ChannelPush},
		models.Addressing{DeviceToken: "device-abc"})
	if results[0].Success {
		t.Fatalf("expected timeout, got %+v", results[0])
	}

	select {
	case err := <-finished:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected the late send to see its deadline, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("send goroutine never finished")
	}
}

func TestDispatcher_RunsConcurrently(t *testing.T) {
	slow := SinkFunc(func(ctx context.Context, n models.ChannelNotification) error {
		select {
		case <-time.After(100 * time.Millisecond):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	d := New(Config{Timeout: time.Second}, map[models.Channel]Sink{
		models.ChannelBroadcast: slow,
		models.ChannelPush:      slow,
	})

	start := time.Now()
	results := d.Dispatch(context.Background(), testReport(), models.AllChannels,
		models.Addressing{DeviceToken: "device-abc"})
	elapsed := time.Since(start)

	if elapsed >= 190*time.Millisecond {
		t.Errorf("expected concurrent attempts, took %v", elapsed)
	}
	for _, r := range results {
		if !r.Success {
			t.Errorf("expected success, got %+v", r)
		}
	}
}

func TestDispatcher_CancelAbortsAttempts(t *testing.T) {
	blocking := SinkFunc(func(ctx context.Context, n models.ChannelNotification) error {
		<-ctx.Done()
		return ctx.Err()
	})
	d := New(Config{Timeout: time.Minute}, map[models.Channel]Sink{
		models.ChannelBroadcast: blocking,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	results := d.Dispatch(ctx, testReport(), []models.Channel{models.ChannelBroadcast}, models.Addressing{})
	if results[0].Success {
		t.Error("expected cancelled attempt to fail")
	}
}

func TestDispatcher_RecoversSinkPanic(t *testing.T) {
	panicky := SinkFunc(func(ctx context.Context, n models.ChannelNotification) error {
		panic("boom")
	})
	push := &recordingSink{}
	d := New(Config{Timeout: time.Second}, map[models.Channel]Sink{
		models.ChannelBroadcast: panicky,
		models.ChannelPush:      push,
	})

	results := d.Dispatch(context.Background(), testReport(), models.AllChannels,
		models.Addressing{DeviceToken: "device-abc"})

	if results[0].Success || !strings.Contains(results[0].Message, "boom") {
		t.Errorf("expected panic recorded as failure, got %+v", results[0])
	}
	if !results[1].Success {
		t.Errorf("expected push success, got %+v", results[1])
	}
}

func TestDispatcher_CustomMessageAndObserver(t *testing.T) {
	push := &recordingSink{}
	d := New(Config{}, map[models.Channel]Sink{models.ChannelPush: push})
	obs := &countingObserver{}
	d.SetObserver(obs)

	d.Dispatch(context.Background(), testReport(), models.AllChannels,
		models.Addressing{DeviceToken: "device-abc", Message: "Road blocked"})

	if push.sent[0].Message != "Road blocked" {
		t.Errorf("expected custom message, got %q", push.sent[0].Message)
	}
	if obs.outcomes["push:success"] != 1 || obs.outcomes["broadcast:failure"] != 1 {
		t.Errorf("unexpected observed outcomes: %v", obs.outcomes)
	}
}

func TestDefaultMessage(t *testing.T) {
	r := testReport()
	if got := DefaultMessage(r); got != "high severity accident reported near 17.38500, 78.48670" {
		t.Errorf("unexpected message %q", got)
	}

	r.Latitude, r.Longitude = nil, nil
	r.Severity = models.SeverityLow
	if got := DefaultMessage(r); got != "low severity accident reported" {
		t.Errorf("unexpected message %q", got)
	}
}
