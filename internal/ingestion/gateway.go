package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mr1hm/go-accident-alerts/internal/apperr"
	"github.com/mr1hm/go-accident-alerts/internal/classifier"
	"github.com/mr1hm/go-accident-alerts/internal/models"
)

const (
	VariantManual  = "manual"
	VariantVoice   = "voice"
	VariantSensor  = "sensor"
	VariantRealert = "realert"

	MsgRecorded    = "report recorded"
	MsgNotDetected = "no emergency detected"
	MsgRealerted   = "alert dispatched"
)

type Classifier interface {
	Classify(classifier.Signal) classifier.Verdict
}

type ReportStore interface {
	Save(ctx context.Context, r models.AccidentReport) (models.AccidentReport, error)
	Get(ctx context.Context, id string) (models.AccidentReport, error)
	MaxDescription() int
}

type Dispatcher interface {
	Dispatch(ctx context.Context, r models.AccidentReport, channels []models.Channel, addr models.Addressing) []models.ChannelResult
}

// Observer is notified of every ingestion outcome.
type Observer interface {
	ObserveIngestion(variant, outcome string)
	ObservePersisted(r models.AccidentReport)
}

// Result always states whether the report was persisted. When it was, the
// per-channel outcomes follow.
type Result struct {
	Status         bool                   `json:"status"`
	Report         *models.AccidentReport `json:"report,omitempty"`
	ChannelResults []models.ChannelResult `json:"channel_results,omitempty"`
	Message        string                 `json:"message,omitempty"`
}

type ManualInput struct {
	Latitude    *float64
	Longitude   *float64
	Severity    string
	Description string
	Source      string

	// Channels is the caller's dispatch intent; nil defers to policy.
	Channels    []string
	DeviceToken string
}

type VoiceInput struct {
	Text        string
	Latitude    *float64
	Longitude   *float64
	DeviceToken string
}

type SensorInput struct {
	Sample      models.SensorSample
	Latitude    *float64
	Longitude   *float64
	DeviceToken string
}

type RealertInput struct {
	ReportID    string
	Channels    []string
	DeviceToken string
	Message     string
}

// Gateway runs one linear pipeline per call and keeps no per-call state.
type Gateway struct {
	classifier Classifier
	store      ReportStore
	dispatcher Dispatcher
	policy     Policy
	identity   Identity
	observer   Observer
}

type Option func(*Gateway)

func WithIdentity(id Identity) Option {
	return func(g *Gateway) { g.identity = id }
}

func WithObserver(o Observer) Option {
	return func(g *Gateway) { g.observer = o }
}

func NewGateway(c Classifier, s ReportStore, d Dispatcher, policy Policy, opts ...Option) (*Gateway, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	g := &Gateway{
		classifier: c,
		store:      s,
		dispatcher: d,
		policy:     policy,
		identity:   ContextIdentity{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// intake is a classified, not yet persisted report plus its dispatch plan.
type intake struct {
	variant  string
	report   models.AccidentReport
	channels []models.Channel
	addr     models.Addressing
}

func (g *Gateway) SubmitManual(ctx context.Context, in ManualInput) (Result, error) {
	if in.Latitude == nil && in.Longitude == nil {
		return g.reject(VariantManual, apperr.Validation("location", "latitude and longitude required"))
	}

	source := models.SourceManual
	if strings.TrimSpace(in.Source) != "" {
		src, ok := models.ParseSource(in.Source)
		if !ok {
			return g.reject(VariantManual, apperr.Validation("source", fmt.Sprintf("unknown source %q", in.Source)))
		}
		source = src
	}

	severity, ok := models.ParseSeverity(in.Severity)
	if !ok {
		if strings.TrimSpace(in.Severity) != "" {
			slog.Info("unrecognized severity, using default", "severity", in.Severity, "default", g.policy.ManualDefaultSeverity)
		}
		severity = g.policy.ManualDefaultSeverity
	}

	description := in.Description
	if strings.TrimSpace(description) == "" {
		description = g.policy.ManualDefaultDescription
	}

	channels := g.policy.ManualChannels.For(severity)
	if in.Channels != nil {
		parsed, err := parseChannels(in.Channels)
		if err != nil {
			return g.reject(VariantManual, err)
		}
		channels = parsed
	}

	return g.record(ctx, intake{
		variant: VariantManual,
		report: models.AccidentReport{
			Latitude:    in.Latitude,
			Longitude:   in.Longitude,
			Severity:    severity,
			Description: description,
			Source:      source,
		},
		channels: channels,
		addr:     models.Addressing{DeviceToken: in.DeviceToken},
	})
}

func (g *Gateway) SubmitVoice(ctx context.Context, in VoiceInput) (Result, error) {
	v := g.classify(classifier.TextSignal{Text: in.Text})
	if !v.Detected {
		g.observe(VariantVoice, "not_detected")
		return Result{Status: false, Message: MsgNotDetected}, nil
	}

	return g.record(ctx, intake{
		variant: VariantVoice,
		report: models.AccidentReport{
			Latitude:    in.Latitude,
			Longitude:   in.Longitude,
			Severity:    models.SeverityHigh,
			Description: g.truncate("Voice detected: " + in.Text),
			Source:      models.SourceVoice,
		},
		channels: g.policy.VoiceChannels,
		addr:     models.Addressing{DeviceToken: in.DeviceToken},
	})
}

func (g *Gateway) SubmitSensor(ctx context.Context, in SensorInput) (Result, error) {
	v := g.classify(classifier.MotionSignal{Sample: in.Sample})

	s := in.Sample
	desc := fmt.Sprintf("Sensor reading: acc=(%.2f, %.2f, %.2f) gyro=(%.2f, %.2f, %.2f)",
		s.AccX, s.AccY, s.AccZ, s.GyroX, s.GyroY, s.GyroZ)

	return g.record(ctx, intake{
		variant: VariantSensor,
		report: models.AccidentReport{
			Latitude:    in.Latitude,
			Longitude:   in.Longitude,
			Severity:    v.Severity,
			Description: g.truncate(desc),
			Source:      models.SourceSensor,
		},
		channels: g.policy.SensorChannels.For(v.Severity),
		addr:     models.Addressing{DeviceToken: in.DeviceToken},
	})
}

// Realert dispatches an already persisted report again. The report is never modified.
func (g *Gateway) Realert(ctx context.Context, in RealertInput) (Result, error) {
	if len(in.Channels) == 0 {
		return g.reject(VariantRealert, apperr.Validation("channels", "at least one channel is required"))
	}
	channels, err := parseChannels(in.Channels)
	if err != nil {
		return g.reject(VariantRealert, err)
	}

	r, err := g.store.Get(ctx, in.ReportID)
	if err != nil {
		return g.reject(VariantRealert, err)
	}

	results := g.dispatcher.Dispatch(ctx, r, channels, models.Addressing{
		DeviceToken: in.DeviceToken,
		Message:     in.Message,
	})
	g.observe(VariantRealert, "dispatched")

	return Result{Status: true, Report: &r, ChannelResults: results, Message: MsgRealerted}, nil
}

func (g *Gateway) classify(s classifier.Signal) classifier.Verdict {
	v := g.classifier.Classify(s)
	if v.Degraded {
		slog.Warn("classification degraded",
			"error", apperr.ErrClassificationDegraded,
			"severity", v.Severity,
			"reason", v.Reason,
		)
	}
	return v
}

// record is the shared persist-then-dispatch path. A saved report stays saved
// whatever happens during dispatch.
func (g *Gateway) record(ctx context.Context, in intake) (Result, error) {
	if ref, ok := g.identity.ReporterRef(ctx); ok {
		in.report.ReporterRef = &ref
	}

	saved, err := g.store.Save(ctx, in.report)
	if err != nil {
		return g.reject(in.variant, err)
	}
	if g.observer != nil {
		g.observer.ObservePersisted(saved)
	}

	slog.Info("report recorded",
		"id", saved.ID,
		"source", saved.Source,
		"severity", saved.Severity,
		"channels", in.channels,
	)

	results := g.dispatcher.Dispatch(ctx, saved, in.channels, in.addr)
	g.observe(in.variant, "persisted")

	return Result{
		Status:         true,
		Report:         &saved,
		ChannelResults: results,
		Message:        MsgRecorded,
	}, nil
}

func (g *Gateway) reject(variant string, err error) (Result, error) {
	outcome := "error"
	switch {
	case errors.Is(err, apperr.ErrValidation):
		outcome = "invalid"
	case errors.Is(err, apperr.ErrNotFound):
		outcome = "not_found"
	case errors.Is(err, apperr.ErrStoreUnavailable):
		outcome = "unavailable"
		slog.Error("report not persisted", "variant", variant, "error", err)
	}
	g.observe(variant, outcome)
	return Result{Status: false, Message: err.Error()}, err
}

func (g *Gateway) observe(variant, outcome string) {
	if g.observer != nil {
		g.observer.ObserveIngestion(variant, outcome)
	}
}

func (g *Gateway) truncate(s string) string {
	limit := g.store.MaxDescription()
	runes := []rune(s)
	if limit <= 0 || len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func parseChannels(raw []string) ([]models.Channel, error) {
	channels := make([]models.Channel, 0, len(raw))
	for _, s := range raw {
		c, ok := models.ParseChannel(s)
		if !ok {
			return nil, apperr.Validation("channels", fmt.Sprintf("unknown channel %q", s))
		}
		channels = append(channels, c)
	}
	return channels, nil
}
