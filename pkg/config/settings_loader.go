package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Settings is the YAML file shape layered on top of environment
// configuration. Zero values leave the corresponding Config field
// untouched.
type Settings struct {
	LogLevel            string                     `yaml:"log_level,omitempty" json:"log_level,omitempty"`
	RulesDir            string                     `yaml:"rules_dir,omitempty" json:"rules_dir,omitempty"`
	EscalationThreshold float64                    `yaml:"escalation_threshold,omitempty" json:"escalation_threshold,omitempty"`
	Alternatives        *bool                      `yaml:"alternatives,omitempty" json:"alternatives,omitempty"`
	Redis               RedisSettings              `yaml:"redis,omitempty" json:"redis,omitempty"`
	AuditDBPath         string                     `yaml:"audit_db_path,omitempty" json:"audit_db_path,omitempty"`
	OTLPEndpoint        string                     `yaml:"otlp_endpoint,omitempty" json:"otlp_endpoint,omitempty"`
	Environment         string                     `yaml:"environment,omitempty" json:"environment,omitempty"`
	Channels            map[string]ChannelSettings `yaml:"channels,omitempty" json:"channels,omitempty"`
	EmergencyServices   map[string]string          `yaml:"emergency_services,omitempty" json:"emergency_services,omitempty"`
}

// RedisSettings configures the durable intervention store.
type RedisSettings struct {
	Addr     string `yaml:"addr,omitempty" json:"addr,omitempty"`
	Password string `yaml:"password,omitempty" json:"password,omitempty"`
	DB       int    `yaml:"db,omitempty" json:"db,omitempty"`
}

// LoadSettings parses a YAML settings file.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load settings %q: %w", path, err)
	}

	var settings Settings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("parse settings %q: %w", path, err)
	}

	if settings.EscalationThreshold < 0 || settings.EscalationThreshold > 1 {
		return nil, fmt.Errorf("settings %q: escalation_threshold must be in [0,1]", path)
	}

	return &settings, nil
}

// Apply overlays non-zero settings fields onto a Config.
func (s *Settings) Apply(cfg *Config) {
	if s.LogLevel != "" {
		cfg.LogLevel = s.LogLevel
	}
	if s.RulesDir != "" {
		cfg.RulesDir = s.RulesDir
	}
	if s.EscalationThreshold > 0 {
		cfg.EscalationThreshold = s.EscalationThreshold
	}
	if s.Alternatives != nil {
		cfg.AlternativesEnabled = *s.Alternatives
	}
	if s.Redis.Addr != "" {
		cfg.RedisAddr = s.Redis.Addr
		cfg.RedisPassword = s.Redis.Password
		cfg.RedisDB = s.Redis.DB
	}
	if s.AuditDBPath != "" {
		cfg.AuditDBPath = s.AuditDBPath
	}
	if s.OTLPEndpoint != "" {
		cfg.OTLPEndpoint = s.OTLPEndpoint
	}
	if s.Environment != "" {
		cfg.Environment = s.Environment
	}
	for name, ch := range s.Channels {
		if cfg.Channels == nil {
			cfg.Channels = map[string]ChannelSettings{}
		}
		cfg.Channels[name] = ch
	}
	for crisisType, service := range s.EmergencyServices {
		if cfg.EmergencyServices == nil {
			cfg.EmergencyServices = map[string]string{}
		}
		cfg.EmergencyServices[crisisType] = service
	}
}
