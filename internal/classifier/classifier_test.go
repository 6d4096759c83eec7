package classifier

import (
	"math"
	"testing"

	"github.com/mr1hm/go-accident-alerts/internal/models"
)

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := New(DefaultPolicy())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c
}

func TestClassify_TextKeywordMatch(t *testing.T) {
	c := newTestClassifier(t)

	tests := []string{
		"please send help now",
		"There was an ACCIDENT on the highway",
		"Emergency!",
		"car crash near the bridge",
		"serious injury",
	}
	for _, text := range tests {
		v := c.Classify(TextSignal{Text: text})
		if !v.Detected {
			t.Errorf("%q: expected detection", text)
			continue
		}
		if v.Severity != models.SeverityHigh {
			t.Errorf("%q: expected severity high, got %s", text, v.Severity)
		}
		if v.Source != models.SourceVoice {
			t.Errorf("%q: expected source voice, got %s", text, v.Source)
		}
	}
}

func TestClassify_TextNoMatch(t *testing.T) {
	c := newTestClassifier(t)

	for _, text := range []string{"just checking in", "", "all good here"} {
		v := c.Classify(TextSignal{Text: text})
		if v.Detected {
			t.Errorf("%q: expected no detection, got %+v", text, v)
		}
	}
}

func TestClassify_MotionBands(t *testing.T) {
	c := newTestClassifier(t)

	tests := []struct {
		name   string
		sample models.SensorSample
		want   models.Severity
	}{
		{"at rest", models.SensorSample{AccZ: 9.81}, models.SeverityLow},
		{"hard braking", models.SensorSample{AccX: 18, AccZ: 9.81}, models.SeverityMedium},
		{"impact", models.SensorSample{AccX: 45, AccY: 10, AccZ: 9.81}, models.SeverityHigh},
		{"spin", models.SensorSample{AccZ: 9.81, GyroZ: 8}, models.SeverityHigh},
		{"wobble", models.SensorSample{AccZ: 9.81, GyroX: 2.5, GyroY: 2.5}, models.SeverityMedium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := c.Classify(MotionSignal{Sample: tt.sample})
			if !v.Detected {
				t.Fatal("motion signals are always detected")
			}
			if v.Severity != tt.want {
				t.Errorf("expected %s, got %s (%s)", tt.want, v.Severity, v.Reason)
			}
			if v.Source != models.SourceSensor {
				t.Errorf("expected source sensor, got %s", v.Source)
			}
		})
	}
}

func TestClassify_MotionMonotonic(t *testing.T) {
	c := newTestClassifier(t)

	bases := []models.SensorSample{
		{AccX: 1, AccY: -2, AccZ: 3, GyroX: 0.1, GyroY: 0.2, GyroZ: -0.3},
		{AccX: 0.5, GyroZ: 0.05},
		{AccZ: 9.81},
		{AccX: -4, AccY: 4, GyroX: 1, GyroY: -1, GyroZ: 1},
	}
	factors := []float64{1, 1.5, 2, 3, 5, 10, 50, 100, 1e6, 1e300}

	for _, base := range bases {
		prev := 0
		for _, f := range factors {
			scaled := models.SensorSample{
				AccX: base.AccX * f, AccY: base.AccY * f, AccZ: base.AccZ * f,
				GyroX: base.GyroX * f, GyroY: base.GyroY * f, GyroZ: base.GyroZ * f,
			}
			rank := c.Classify(MotionSignal{Sample: scaled}).Severity.Rank()
			if rank < prev {
				t.Fatalf("severity decreased at factor %g for %+v", f, base)
			}
			prev = rank
		}
	}
}

func TestClassify_MotionNaNDegrades(t *testing.T) {
	c := newTestClassifier(t)

	v := c.Classify(MotionSignal{Sample: models.SensorSample{AccX: math.NaN()}})
	if !v.Degraded {
		t.Error("expected degraded verdict")
	}
	if !v.Detected {
		t.Error("degraded motion verdicts still produce a report")
	}
	if v.Severity != DefaultPolicy().DegradedSeverity {
		t.Errorf("expected degraded severity, got %s", v.Severity)
	}
}

func TestClassify_MotionSaturates(t *testing.T) {
	c := newTestClassifier(t)

	v := c.Classify(MotionSignal{Sample: models.SensorSample{AccX: math.Inf(1)}})
	if !v.Degraded {
		t.Error("expected saturated sample to be flagged degraded")
	}
	if v.Severity != models.SeverityHigh {
		t.Errorf("expected high, got %s", v.Severity)
	}
}

func TestClassify_NilSignal(t *testing.T) {
	c := newTestClassifier(t)

	v := c.Classify(nil)
	if v.Detected {
		t.Error("nil signal must not be detected")
	}
	if !v.Degraded {
		t.Error("expected degraded verdict")
	}
}

func TestClassify_CustomPolicy(t *testing.T) {
	p := DefaultPolicy()
	p.Keywords = []string{"  Mayday "}
	p.Acceleration = Thresholds{Medium: 1, High: 2}

	c, err := New(p)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if !c.Classify(TextSignal{Text: "mayday mayday"}).Detected {
		t.Error("expected custom keyword to match")
	}
	if c.Classify(TextSignal{Text: "help"}).Detected {
		t.Error("default keywords should be replaced")
	}
	if got := c.Classify(MotionSignal{Sample: models.SensorSample{AccX: 1.5}}).Severity; got != models.SeverityMedium {
		t.Errorf("expected medium, got %s", got)
	}
}

func TestPolicy_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Policy)
	}{
		{"no keywords", func(p *Policy) { p.Keywords = []string{" "} }},
		{"zero medium", func(p *Policy) { p.Acceleration.Medium = 0 }},
		{"high below medium", func(p *Policy) { p.AngularVelocity.High = p.AngularVelocity.Medium - 1 }},
		{"max below high", func(p *Policy) { p.MaxAcceleration = p.Acceleration.High - 1 }},
		{"bad degraded severity", func(p *Policy) { p.DegradedSeverity = "critical" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultPolicy()
			tt.mutate(&p)
			if _, err := New(p); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
