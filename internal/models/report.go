package models

import (
	"strings"
	"time"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rank orders severities so bands can be compared. Unknown values rank below low.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	default:
		return 0
	}
}

func (s Severity) Valid() bool { return s.Rank() > 0 }

// ParseSeverity is case-insensitive and reports whether the value was recognized.
func ParseSeverity(s string) (Severity, bool) {
	sev := Severity(strings.ToLower(strings.TrimSpace(s)))
	return sev, sev.Valid()
}

type Source string

const (
	SourceSensor Source = "sensor"
	SourceVoice  Source = "voice"
	SourceManual Source = "manual"
)

func (s Source) Valid() bool {
	switch s {
	case SourceSensor, SourceVoice, SourceManual:
		return true
	}
	return false
}

func ParseSource(s string) (Source, bool) {
	src := Source(strings.ToLower(strings.TrimSpace(s)))
	return src, src.Valid()
}

type AccidentReport struct {
	ID          string    `json:"id"`
	ReporterRef *string   `json:"reporter_ref,omitempty"` // nil for anonymous reports
	Latitude    *float64  `json:"latitude,omitempty"`
	Longitude   *float64  `json:"longitude,omitempty"`
	Severity    Severity  `json:"severity"`
	Description string    `json:"description"`
	Source      Source    `json:"source"`
	CreatedAt   time.Time `json:"created_at"`
}

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Coordinates returns the report location when both halves of the pair are set.
func (r *AccidentReport) Coordinates() (Coordinates, bool) {
	if r.Latitude == nil || r.Longitude == nil {
		return Coordinates{}, false
	}
	return Coordinates{
		Latitude:  *r.Latitude,
		Longitude: *r.Longitude,
	}, true
}

// SensorSample is a six-axis motion reading: acceleration in m/s^2, angular velocity in rad/s.
type SensorSample struct {
	AccX  float64 `json:"acc_x"`
	AccY  float64 `json:"acc_y"`
	AccZ  float64 `json:"acc_z"`
	GyroX float64 `json:"gyro_x"`
	GyroY float64 `json:"gyro_y"`
	GyroZ float64 `json:"gyro_z"`
}
