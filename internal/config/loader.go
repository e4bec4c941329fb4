package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"muster/pkg/logging"
)

const configFileName = "config.yaml"

// subsystem is the logging tag this package logs under.
const subsystem = "ConfigLoader"

// Load reads config.yaml from configPath, layered on top of DefaultConfig.
// A missing file is not an error: the defaults are returned as-is.
func Load(configPath string) (AgentConfig, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		return cfg, nil
	}

	configFilePath := filepath.Join(configPath, configFileName)
	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info(subsystem, "no config.yaml found at %s, using defaults", configFilePath)
			return cfg, nil
		}
		return AgentConfig{}, fmt.Errorf("reading %s: %w", configFilePath, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return AgentConfig{}, fmt.Errorf("parsing %s: %w", configFilePath, err)
	}

	logging.Info(subsystem, "loaded configuration from %s", configFilePath)
	return cfg, nil
}

// ParseTags parses the repeatable "K=V" --tag flags into a map, following
// the last occurrence of a duplicate key.
func ParseTags(raw []string) (map[string]string, error) {
	tags := make(map[string]string, len(raw))
	for _, kv := range raw {
		key, value, ok := splitKV(kv)
		if !ok {
			return nil, fmt.Errorf("invalid tag %q: expected K=V", kv)
		}
		tags[key] = value
	}
	return tags, nil
}

func splitKV(s string) (string, string, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '=' {
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}
