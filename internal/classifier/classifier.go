package classifier

import (
	"fmt"
	"math"
	"strings"

	"github.com/mr1hm/go-accident-alerts/internal/models"
)

// Signal is one of TextSignal or MotionSignal.
type Signal interface {
	signal()
}

type TextSignal struct {
	Text string
}

type MotionSignal struct {
	Sample models.SensorSample
}

func (TextSignal) signal()   {}
func (MotionSignal) signal() {}

// Verdict is the classifier output. Detected is false only for text without a
// distress keyword; such a verdict must not produce a report.
type Verdict struct {
	Detected bool
	Severity models.Severity
	Source   models.Source
	Degraded bool
	Reason   string
}

type Classifier struct {
	policy   Policy
	keywords []string
}

func New(policy Policy) (*Classifier, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	keywords := make([]string, 0, len(policy.Keywords))
	for _, kw := range policy.Keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			keywords = append(keywords, kw)
		}
	}

	return &Classifier{
		policy:   policy,
		keywords: keywords,
	}, nil
}

// Classify never fails. Inputs it cannot score yield the policy's degraded severity.
func (c *Classifier) Classify(s Signal) Verdict {
	switch sig := s.(type) {
	case TextSignal:
		return c.classifyText(sig.Text)
	case MotionSignal:
		return c.classifyMotion(sig.Sample)
	default:
		return Verdict{
			Severity: c.policy.DegradedSeverity,
			Degraded: true,
			Reason:   fmt.Sprintf("unrecognized signal %T", s),
		}
	}
}

func (c *Classifier) classifyText(text string) Verdict {
	lower := strings.ToLower(text)
	for _, kw := range c.keywords {
		if strings.Contains(lower, kw) {
			return Verdict{
				Detected: true,
				Severity: models.SeverityHigh,
				Source:   models.SourceVoice,
				Reason:   "keyword: " + kw,
			}
		}
	}
	return Verdict{
		Source: models.SourceVoice,
		Reason: "no distress keyword",
	}
}

func (c *Classifier) classifyMotion(s models.SensorSample) Verdict {
	v := Verdict{
		Detected: true,
		Source:   models.SourceSensor,
	}

	for _, f := range []float64{s.AccX, s.AccY, s.AccZ, s.GyroX, s.GyroY, s.GyroZ} {
		if math.IsNaN(f) {
			v.Severity = c.policy.DegradedSeverity
			v.Degraded = true
			v.Reason = "sample contains NaN"
			return v
		}
	}

	acc, accSaturated := saturate(magnitude(s.AccX, s.AccY, s.AccZ), c.policy.MaxAcceleration)
	gyro, gyroSaturated := saturate(magnitude(s.GyroX, s.GyroY, s.GyroZ), c.policy.MaxAngularVelocity)

	v.Severity = maxSeverity(c.policy.Acceleration.band(acc), c.policy.AngularVelocity.band(gyro))
	v.Reason = fmt.Sprintf("acc=%.2f gyro=%.2f", acc, gyro)
	if accSaturated || gyroSaturated {
		v.Degraded = true
		v.Reason += " (saturated)"
	}
	return v
}

func magnitude(x, y, z float64) float64 {
	return math.Sqrt(x*x + y*y + z*z)
}

// saturate clamps to the sensor range; +Inf from overflow clamps as well.
func saturate(m, limit float64) (float64, bool) {
	if m > limit {
		return limit, true
	}
	return m, false
}

func maxSeverity(a, b models.Severity) models.Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}
