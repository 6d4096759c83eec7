package classifier

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mr1hm/go-accident-alerts/internal/models"
)

// Thresholds are lower bounds of the medium and high bands.
type Thresholds struct {
	Medium float64 `yaml:"medium"`
	High   float64 `yaml:"high"`
}

type Policy struct {
	Keywords []string `yaml:"keywords"`

	// Acceleration magnitude in m/s^2, angular velocity magnitude in rad/s.
	Acceleration    Thresholds `yaml:"acceleration"`
	AngularVelocity Thresholds `yaml:"angular_velocity"`

	// Physical sensor range; larger magnitudes are saturated.
	MaxAcceleration    float64 `yaml:"max_acceleration"`
	MaxAngularVelocity float64 `yaml:"max_angular_velocity"`

	// DegradedSeverity is returned when a sample cannot be scored.
	DegradedSeverity models.Severity `yaml:"degraded_severity"`
}

func DefaultPolicy() Policy {
	return Policy{
		Keywords: []string{"accident", "help", "emergency", "crash", "injury"},
		Acceleration: Thresholds{
			Medium: 19.6, // 2g
			High:   39.2, // 4g
		},
		AngularVelocity: Thresholds{
			Medium: 3.5,
			High:   7.0,
		},
		MaxAcceleration:    156.9, // 16g
		MaxAngularVelocity: 34.9,  // 2000 deg/s
		DegradedSeverity:   models.SeverityHigh,
	}
}

func (p Policy) Validate() error {
	hasKeyword := false
	for _, kw := range p.Keywords {
		if strings.TrimSpace(kw) != "" {
			hasKeyword = true
			break
		}
	}
	if !hasKeyword {
		return errors.New("classifier policy: at least one keyword is required")
	}
	if err := p.Acceleration.validate("acceleration", p.MaxAcceleration); err != nil {
		return err
	}
	if err := p.AngularVelocity.validate("angular_velocity", p.MaxAngularVelocity); err != nil {
		return err
	}
	if !p.DegradedSeverity.Valid() {
		return fmt.Errorf("classifier policy: invalid degraded severity %q", p.DegradedSeverity)
	}
	return nil
}

func (t Thresholds) validate(name string, limit float64) error {
	if t.Medium <= 0 {
		return fmt.Errorf("classifier policy: %s medium threshold must be positive", name)
	}
	if t.High < t.Medium {
		return fmt.Errorf("classifier policy: %s high threshold %.2f below medium %.2f", name, t.High, t.Medium)
	}
	if limit < t.High {
		return fmt.Errorf("classifier policy: %s max %.2f below high threshold %.2f", name, limit, t.High)
	}
	return nil
}

func (t Thresholds) band(magnitude float64) models.Severity {
	switch {
	case magnitude >= t.High:
		return models.SeverityHigh
	case magnitude >= t.Medium:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}
