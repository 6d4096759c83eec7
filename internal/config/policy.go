package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mr1hm/go-accident-alerts/internal/classifier"
	"github.com/mr1hm/go-accident-alerts/internal/ingestion"
	"github.com/mr1hm/go-accident-alerts/internal/models"
)

// Policy bundles the tunables loaded from POLICY_PATH.
type Policy struct {
	Classifier classifier.Policy
	Ingestion  ingestion.Policy
}

// policyFile mirrors the YAML layout. Omitted sections keep their defaults;
// a channel map that is present replaces the default map as a whole.
type policyFile struct {
	Classifier *classifier.Policy `yaml:"classifier"`
	Manual     struct {
		DefaultSeverity    models.Severity      `yaml:"default_severity"`
		DefaultDescription *string              `yaml:"default_description"`
		Channels           models.ChannelPolicy `yaml:"channels"`
	} `yaml:"manual"`
	Sensor struct {
		Channels models.ChannelPolicy `yaml:"channels"`
	} `yaml:"sensor"`
	Voice struct {
		Channels []models.Channel `yaml:"channels"`
	} `yaml:"voice"`
}

func DefaultPolicy() Policy {
	return Policy{
		Classifier: classifier.DefaultPolicy(),
		Ingestion:  ingestion.DefaultPolicy(),
	}
}

// LoadPolicy returns the defaults when path is empty.
func LoadPolicy(path string) (Policy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy: %w", err)
	}
	return ParsePolicy(data)
}

func ParsePolicy(data []byte) (Policy, error) {
	p := DefaultPolicy()

	f := policyFile{Classifier: &p.Classifier}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Policy{}, fmt.Errorf("parse policy: %w", err)
	}

	if f.Manual.DefaultSeverity != "" {
		p.Ingestion.ManualDefaultSeverity = f.Manual.DefaultSeverity
	}
	if f.Manual.DefaultDescription != nil {
		p.Ingestion.ManualDefaultDescription = *f.Manual.DefaultDescription
	}
	if f.Manual.Channels != nil {
		p.Ingestion.ManualChannels = f.Manual.Channels
	}
	if f.Sensor.Channels != nil {
		p.Ingestion.SensorChannels = f.Sensor.Channels
	}
	if f.Voice.Channels != nil {
		p.Ingestion.VoiceChannels = f.Voice.Channels
	}

	if err := p.Classifier.Validate(); err != nil {
		return Policy{}, err
	}
	if err := p.Ingestion.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}
