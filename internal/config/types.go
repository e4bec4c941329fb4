// Package config loads the agent's process configuration: the small set of
// knobs (hostname, directory roots, bind address, certificates, tags,
// session mode, pod CIDR) needed to stand up command-line and file-based
// configuration loading with TLS bootstrap. Config files are layered
// YAML-over-defaults.
package config

// AgentConfig is the top-level configuration for a node agent process.
type AgentConfig struct {
	Hostname string `yaml:"hostname,omitempty"`

	DataDirectory    string `yaml:"dataDirectory,omitempty"`
	BootstrapFile    string `yaml:"bootstrapFile,omitempty"`
	ServerBindIP     string `yaml:"serverBindIP,omitempty"`
	ServerCertFile   string `yaml:"serverCertFile,omitempty"`
	ServerKeyFile    string `yaml:"serverKeyFile,omitempty"`
	ServerPort       int    `yaml:"serverPort,omitempty"`
	PackageDirectory string `yaml:"packageDirectory,omitempty"`
	ConfigDirectory  string `yaml:"configDirectory,omitempty"`
	LogDirectory     string `yaml:"logDirectory,omitempty"`

	NoConfig bool              `yaml:"noConfig,omitempty"`
	Tags     map[string]string `yaml:"tags,omitempty"`
	Session  string            `yaml:"session,omitempty"`
	PodCIDR  string            `yaml:"podCIDR,omitempty"`
}
