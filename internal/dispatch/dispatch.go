package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mr1hm/go-accident-alerts/internal/apperr"
	"github.com/mr1hm/go-accident-alerts/internal/models"
)

const (
	MsgMissingAddress = "missing address"
	MsgNoLocation     = "no location"
	MsgNoSink         = "channel not configured"
	MsgDelivered      = "delivered"
)

// Sink delivers a notification over one channel. Send must return promptly once
// ctx is done and release any transport handle it acquired; the dispatcher stops
// waiting at the attempt timeout but the Send goroutine lives until Send returns.
type Sink interface {
	Send(ctx context.Context, n models.ChannelNotification) error
}

type SinkFunc func(ctx context.Context, n models.ChannelNotification) error

func (f SinkFunc) Send(ctx context.Context, n models.ChannelNotification) error {
	return f(ctx, n)
}

// Observer is notified once per attempted channel.
type Observer interface {
	ObserveDispatch(channel models.Channel, outcome string, elapsed time.Duration)
}

type Config struct {
	Timeout           time.Duration
	BroadcastRadiusKM float64
}

type Dispatcher struct {
	sinks    map[models.Channel]Sink
	cfg      Config
	observer Observer
}

func New(cfg Config, sinks map[models.Channel]Sink) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.BroadcastRadiusKM <= 0 {
		cfg.BroadcastRadiusKM = 1.0
	}
	registered := make(map[models.Channel]Sink, len(sinks))
	for c, s := range sinks {
		if s != nil {
			registered[c] = s
		}
	}
	return &Dispatcher{sinks: registered, cfg: cfg}
}

func (d *Dispatcher) SetObserver(o Observer) {
	d.observer = o
}

// Dispatch attempts every requested channel concurrently and waits for all of them.
// Results are returned in models.AllChannels order; channel failures never surface
// as errors.
func (d *Dispatcher) Dispatch(ctx context.Context, report models.AccidentReport, channels []models.Channel, addr models.Addressing) []models.ChannelResult {
	channels = models.NormalizeChannels(channels)
	results := make([]models.ChannelResult, len(channels))

	var wg sync.WaitGroup
	for i, c := range channels {
		n, skip := d.notification(report, c, addr)
		if skip != nil {
			results[i] = *skip
			d.observe(c, outcome(*skip), 0)
			continue
		}

		wg.Add(1)
		go func(i int, n models.ChannelNotification) {
			defer wg.Done()
			results[i] = d.attempt(ctx, n)
		}(i, n)
	}
	wg.Wait()

	return results
}

// notification builds the per-channel view, or a result when a precondition fails.
func (d *Dispatcher) notification(r models.AccidentReport, c models.Channel, addr models.Addressing) (models.ChannelNotification, *models.ChannelResult) {
	n := models.ChannelNotification{
		ReportID:   r.ID,
		Channel:    c,
		Severity:   r.Severity,
		Source:     r.Source,
		Message:    addr.Message,
		ReportedAt: r.CreatedAt,
	}
	if n.Message == "" {
		n.Message = DefaultMessage(r)
	}
	if loc, ok := r.Coordinates(); ok {
		n.Location = &loc
	}

	if _, ok := d.sinks[c]; !ok {
		return n, &models.ChannelResult{Channel: c, Message: MsgNoSink}
	}

	switch c {
	case models.ChannelPush:
		if addr.DeviceToken == "" {
			return n, &models.ChannelResult{Channel: c, Message: MsgMissingAddress}
		}
		n.DeviceToken = addr.DeviceToken
	case models.ChannelBroadcast:
		if n.Location == nil {
			return n, &models.ChannelResult{Channel: c, Skipped: true, Message: MsgNoLocation}
		}
		n.RadiusKM = addr.RadiusKM
		if n.RadiusKM <= 0 {
			n.RadiusKM = d.cfg.BroadcastRadiusKM
		}
	}
	return n, nil
}

func (d *Dispatcher) attempt(ctx context.Context, n models.ChannelNotification) models.ChannelResult {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- fmt.Errorf("sink panic: %v", p)
			}
		}()
		done <- d.sinks[n.Channel].Send(ctx, n)
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	res := models.ChannelResult{Channel: n.Channel, Success: err == nil, Message: MsgDelivered}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", d.cfg.Timeout, err)
		}
		err = apperr.Channel(string(n.Channel), err)
		res.Message = err.Error()
		slog.Warn("channel dispatch failed", "id", n.ReportID, "channel", n.Channel, "error", err)
	}

	d.observe(n.Channel, outcome(res), time.Since(start))
	return res
}

func (d *Dispatcher) observe(c models.Channel, outcome string, elapsed time.Duration) {
	if d.observer != nil {
		d.observer.ObserveDispatch(c, outcome, elapsed)
	}
}

func outcome(r models.ChannelResult) string {
	switch {
	case r.Success:
		return "success"
	case r.Skipped:
		return "skipped"
	default:
		return "failure"
	}
}

func DefaultMessage(r models.AccidentReport) string {
	msg := fmt.Sprintf("%s severity accident reported", r.Severity)
	if loc, ok := r.Coordinates(); ok {
		msg += fmt.Sprintf(" near %.5f, %.5f", loc.Latitude, loc.Longitude)
	}
	return msg
}
