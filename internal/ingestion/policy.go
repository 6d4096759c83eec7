package ingestion

import (
	"fmt"

	"github.com/mr1hm/go-accident-alerts/internal/models"
)

// Policy holds the defaults and channel-selection rules of the ingestion paths.
type Policy struct {
	// ManualDefaultSeverity applies when a manual report omits severity or sends an
	// unknown value.
	ManualDefaultSeverity models.Severity

	// ManualDefaultDescription replaces a blank manual description.
	ManualDefaultDescription string

	// ManualChannels applies only when the caller states no channel intent.
	ManualChannels models.ChannelPolicy
	SensorChannels models.ChannelPolicy
	VoiceChannels  []models.Channel
}

func DefaultPolicy() Policy {
	both := []models.Channel{models.ChannelBroadcast, models.ChannelPush}
	return Policy{
		ManualDefaultSeverity:    models.SeverityMedium,
		ManualDefaultDescription: "Emergency Alert Triggered",
		ManualChannels: models.ChannelPolicy{
			models.SeverityHigh: both,
		},
		SensorChannels: models.ChannelPolicy{
			models.SeverityHigh:   both,
			models.SeverityMedium: {models.ChannelPush},
		},
		VoiceChannels: both,
	}
}

func (p Policy) Validate() error {
	if !p.ManualDefaultSeverity.Valid() {
		return fmt.Errorf("ingestion policy: unknown manual default severity %q", p.ManualDefaultSeverity)
	}
	for name, cp := range map[string]models.ChannelPolicy{"manual": p.ManualChannels, "sensor": p.SensorChannels} {
		for sev, channels := range cp {
			if !sev.Valid() {
				return fmt.Errorf("ingestion policy: %s channels: unknown severity %q", name, sev)
			}
			if err := validChannels(channels); err != nil {
				return fmt.Errorf("ingestion policy: %s channels: %w", name, err)
			}
		}
	}
	if err := validChannels(p.VoiceChannels); err != nil {
		return fmt.Errorf("ingestion policy: voice channels: %w", err)
	}
	return nil
}

func validChannels(channels []models.Channel) error {
	for _, c := range channels {
		if !c.Valid() {
			return fmt.Errorf("unknown channel %q", c)
		}
	}
	return nil
}
