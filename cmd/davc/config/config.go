package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
)

type CredentialConfig struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type Config struct {
	Credentials    map[string]CredentialConfig `json:"credentials"`
	SpillThreshold string                      `json:"spill_threshold"`
	Thread         int                         `json:"thread"`
	LogLevel       string                      `json:"log_level"`
	MaxRetries     int                         `json:"max_retries"`
}

func Parse(f string) (*Config, error) {
	raw, err := os.ReadFile(f)
	if err != nil {
		return nil, fmt.Errorf("read file:%w", err)
	}
	c := &Config{
		Thread:         5,
		LogLevel:       "info",
		SpillThreshold: "50MiB",
		MaxRetries:     3,
	}
	if err := json.Unmarshal(raw, c); err != nil {
		return nil, fmt.Errorf("unmarshal file:%w", err)
	}
	return c, nil
}

// SpillThresholdBytes parses the human readable threshold, e.g. "50MiB".
func (c *Config) SpillThresholdBytes() (int64, error) {
	v, err := humanize.ParseBytes(c.SpillThreshold)
	if err != nil {
		return 0, fmt.Errorf("parse spill threshold:%s, err:%w", c.SpillThreshold, err)
	}
	return int64(v), nil
}
