package config

// DefaultConfig returns the configuration used when no config.yaml is
// present and no flags override it.
func DefaultConfig() AgentConfig {
	return AgentConfig{
		DataDirectory:    "/var/lib/podhost",
		PackageDirectory: "/var/lib/podhost/packages",
		ConfigDirectory:  "/var/lib/podhost/config",
		LogDirectory:     "/var/log/podhost",
		ServerBindIP:     "0.0.0.0",
		ServerPort:       10250,
		Session:          "system",
		Tags:             map[string]string{},
	}
}
