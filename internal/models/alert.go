package models

import (
	"slices"
	"strings"
	"time"
)

type Channel string

const (
	ChannelBroadcast Channel = "broadcast"
	ChannelPush      Channel = "push"
)

// AllChannels is in dispatch result order.
var AllChannels = []Channel{ChannelBroadcast, ChannelPush}

func (c Channel) Valid() bool {
	return c == ChannelBroadcast || c == ChannelPush
}

func ParseChannel(s string) (Channel, bool) {
	c := Channel(strings.ToLower(strings.TrimSpace(s)))
	return c, c.Valid()
}

// NormalizeChannels drops duplicates and returns the set in AllChannels order.
func NormalizeChannels(channels []Channel) []Channel {
	out := make([]Channel, 0, len(AllChannels))
	for _, c := range AllChannels {
		if slices.Contains(channels, c) {
			out = append(out, c)
		}
	}
	return out
}

// Addressing carries channel-specific delivery hints supplied by the caller.
type Addressing struct {
	DeviceToken string  `json:"device_token,omitempty"`
	RadiusKM    float64 `json:"radius_km,omitempty"`
	Message     string  `json:"message,omitempty"`
}

// ChannelNotification is built per dispatch attempt and never stored.
type ChannelNotification struct {
	ReportID    string       `json:"report_id"`
	Channel     Channel      `json:"channel"`
	Severity    Severity     `json:"severity"`
	Source      Source       `json:"source"`
	Message     string       `json:"message"`
	Location    *Coordinates `json:"location,omitempty"`
	RadiusKM    float64      `json:"radius_km,omitempty"`
	DeviceToken string       `json:"device_token,omitempty"`
	ReportedAt  time.Time    `json:"reported_at"`
}

type ChannelResult struct {
	Channel Channel `json:"channel"`
	Success bool    `json:"success"`
	Skipped bool    `json:"skipped,omitempty"`
	Message string  `json:"message,omitempty"`
}

// ChannelPolicy selects dispatch channels from a severity band.
type ChannelPolicy map[Severity][]Channel

func (p ChannelPolicy) For(s Severity) []Channel {
	return NormalizeChannels(p[s])
}
